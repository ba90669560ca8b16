package remote

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema is deliberately loose: every field is optional and unknown
// fields are allowed. It only rejects shapes the decoder would misread.
const responseSchema = `{
  "type": "object",
  "properties": {
    "items": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": ["string", "null"]},
          "price": {"type": ["string", "number", "null"]},
          "unitPrice": {"type": ["string", "number", "null"]},
          "expiryLabel": {"type": ["string", "null"]},
          "expiry": {"type": ["string", "null"]},
          "code": {"type": ["string", "null"]}
        }
      }
    },
    "rawText": {"type": ["string", "null"]},
    "totalPages": {"type": ["integer", "null"], "minimum": 0},
    "confidence": {"type": ["string", "number", "null"]}
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("docparse-response.json", strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("docparse-response.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
