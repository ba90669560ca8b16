package internal

import "strings"

type FileKind string

const (
	KindSpreadsheet FileKind = "spreadsheet"
	KindDocument    FileKind = "document"
	KindUnsupported FileKind = "unsupported"
)

type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// CandidateItem is a provisional purchasable line. It stays editable until the
// review session is confirmed.
type CandidateItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	UnitPrice   float64 `json:"unitPrice"`
	ExpiryLabel *string `json:"expiryLabel"`
	Code        *string `json:"code"`
}

// ColumnMapping says which spreadsheet columns hold each field. Optional
// columns are nil when absent.
type ColumnMapping struct {
	NameColumn   int  `json:"nameColumn"`
	PriceColumn  int  `json:"priceColumn"`
	ExpiryColumn *int `json:"expiryColumn,omitempty"`
	CodeColumn   *int `json:"codeColumn,omitempty"`
}

// Row is one spreadsheet row. Nil cells are cells the source did not provide.
type Row []*string

// Cell returns the trimmed cell text, or "" for nil and out-of-range cells.
func (r Row) Cell(idx int) string {
	if idx < 0 || idx >= len(r) || r[idx] == nil {
		return ""
	}
	return strings.TrimSpace(*r[idx])
}

// Strings flattens the row, turning nil cells into "".
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i := range r {
		out[i] = r.Cell(i)
	}
	return out
}

func NewRow(cells ...string) Row {
	row := make(Row, len(cells))
	for i := range cells {
		c := cells[i]
		row[i] = &c
	}
	return row
}

type ParseResult struct {
	Items          []CandidateItem `json:"items"`
	RawText        string          `json:"rawText,omitempty"`
	TotalPages     int             `json:"totalPages,omitempty"` // 0 when unknown
	ExtractedCount int             `json:"extractedCount"`
	Confidence     Confidence      `json:"confidence"`
	Source         FileKind        `json:"source"`
}

// MappingRequest is raised when the name or price column cannot be found.
// Rows is kept so the mapping can be applied without rereading the file.
type MappingRequest struct {
	Header  []string   `json:"header"`
	Preview [][]string `json:"preview"`
	// Rows starts at the detected header row; anything above it is dropped.
	Rows    []Row      `json:"-"`
}

// DocumentItem is one line as reported by a document collaborator. Price is
// kept as text and coerced during normalization.
type DocumentItem struct {
	Name        string  `json:"name"`
	Price       string  `json:"price"`
	ExpiryLabel *string `json:"expiryLabel,omitempty"`
	Code        *string `json:"code,omitempty"`
}

// DocumentResponse is the raw collaborator answer. Every field is optional.
type DocumentResponse struct {
	Items      []DocumentItem `json:"items"`
	RawText    *string        `json:"rawText"`
	TotalPages *int           `json:"totalPages"`
	Confidence *string        `json:"confidence"`
}

type IntakeRun struct {
	ID             int
	TraceID        string
	SessionID      string
	EmailID        *int
	FileName       string
	Kind           string
	Outcome        string
	ExtractedCount int
	Confidence     string
	ElapsedMs      int64
	Error          string
	CreatedAt      string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
