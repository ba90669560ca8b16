// Package source wraps uploaded files as pipeline inputs.
package source

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Input is one uploaded file: its bytes, original name and declared media type.
type Input struct {
	Name      string
	MediaType string
	Content   []byte
}

var fallbackTypes = map[string]string{
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
	".xls":  "application/vnd.ms-excel",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".heic": "image/heic",
	".webp": "image/webp",
}

func New(name, mediaType string, content []byte) Input {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(mediaType) == "" {
		mediaType = MediaTypeFor(name)
	}
	return Input{Name: name, MediaType: mediaType, Content: content}
}

func FromFile(path string) (Input, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("read input: %w", err)
	}
	return New(filepath.Base(path), "", blob), nil
}

// MediaTypeFor guesses a media type from the file extension, without
// parameters. It returns "" when nothing is known about the extension.
func MediaTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := fallbackTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
		return t
	}
	return ""
}

func (in Input) Ext() string {
	return strings.ToLower(filepath.Ext(in.Name))
}

func (in Input) Size() int {
	return len(in.Content)
}
