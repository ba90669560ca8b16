package pipeline

import (
	"strings"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

const (
	defaultScanRows    = 10
	defaultPreviewRows = 3
)

// Resolver finds the header row and the name/price/expiry/code columns of a
// spreadsheet. It never guesses: when a required column is missing it asks
// for a manual mapping instead.
type Resolver struct {
	Keywords    Keywords
	ScanRows    int
	PreviewRows int
}

func NewResolver(kw Keywords) *Resolver {
	return &Resolver{Keywords: kw, ScanRows: defaultScanRows, PreviewRows: defaultPreviewRows}
}

// Resolve returns either a spreadsheet ParseResult or a MappingRequest,
// never both.
func (r *Resolver) Resolve(rows []internal.Row) (internal.ParseResult, *internal.MappingRequest) {
	headerIdx := r.DetectHeaderRow(rows)
	var header internal.Row
	if headerIdx < len(rows) {
		header = rows[headerIdx]
	}

	mapping, ok := r.ResolveColumns(header)
	if !ok {
		return internal.ParseResult{}, r.mappingRequest(rows, headerIdx)
	}

	items := extractItems(rows[headerIdx+1:], headerIdx+1, mapping)
	return internal.ParseResult{
		Items:          items,
		ExtractedCount: len(items),
		Confidence:     internal.ConfidenceHigh,
		Source:         internal.KindSpreadsheet,
	}, nil
}

// DetectHeaderRow returns the first row within the scan window whose joined
// text contains a name keyword, or 0 when none does.
func (r *Resolver) DetectHeaderRow(rows []internal.Row) int {
	limit := r.scanRows()
	if limit > len(rows) {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		joined := util.NormalizeHeader(strings.Join(rows[i].Strings(), " "))
		if util.ContainsAny(joined, r.Keywords.Name) {
			return i
		}
	}
	return 0
}

// ResolveColumns maps header cells to fields. Duplicate matches resolve to
// the leftmost column. ok is false when name or price is missing.
func (r *Resolver) ResolveColumns(header internal.Row) (internal.ColumnMapping, bool) {
	norm := make([]string, len(header))
	for i := range header {
		norm[i] = util.NormalizeHeader(header.Cell(i))
	}

	mapping := internal.ColumnMapping{
		NameColumn:  findHeaderIndex(norm, r.Keywords.Name),
		PriceColumn: findHeaderIndex(norm, r.Keywords.Price),
	}
	if mapping.NameColumn < 0 || mapping.PriceColumn < 0 {
		return mapping, false
	}
	if idx := findHeaderIndex(norm, r.Keywords.Expiry); idx >= 0 {
		mapping.ExpiryColumn = util.IntPtr(idx)
	}
	if idx := findHeaderIndex(norm, r.Keywords.Code); idx >= 0 {
		mapping.CodeColumn = util.IntPtr(idx)
	}
	return mapping, true
}

func (r *Resolver) mappingRequest(rows []internal.Row, headerIdx int) *internal.MappingRequest {
	req := &internal.MappingRequest{Rows: rows[min(headerIdx, len(rows)):]}
	if len(req.Rows) == 0 {
		return req
	}
	req.Header = req.Rows[0].Strings()
	end := min(len(req.Rows), r.previewRows()+1)
	for _, row := range req.Rows[:end] {
		req.Preview = append(req.Preview, row.Strings())
	}
	return req
}

func (r *Resolver) scanRows() int {
	if r.ScanRows <= 0 {
		return defaultScanRows
	}
	return r.ScanRows
}

func (r *Resolver) previewRows() int {
	if r.PreviewRows < 0 {
		return defaultPreviewRows
	}
	return r.PreviewRows
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		if util.ContainsAny(h, probes) {
			return i
		}
	}
	return -1
}
