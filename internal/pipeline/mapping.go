package pipeline

import (
	"fmt"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

// ResolveWithMapping extracts items using user-chosen columns. Row 0 is the
// header. Out-of-range indices read as empty cells, so a bad mapping yields
// fewer items rather than an error.
func ResolveWithMapping(rows []internal.Row, mapping internal.ColumnMapping) []internal.CandidateItem {
	if len(rows) < 2 {
		return []internal.CandidateItem{}
	}
	return extractItems(rows[1:], 1, mapping)
}

// extractItems builds one candidate per row with a non-blank name. offset is
// the index of rows[0] within the original sheet and feeds the item id.
func extractItems(rows []internal.Row, offset int, mapping internal.ColumnMapping) []internal.CandidateItem {
	out := make([]internal.CandidateItem, 0, len(rows))
	for i, row := range rows {
		name := util.NormalizeSpaces(row.Cell(mapping.NameColumn))
		if name == "" {
			continue
		}
		item := internal.CandidateItem{
			ID:        fmt.Sprintf("row-%d", offset+i+1),
			Name:      name,
			UnitPrice: util.ParsePrice(row.Cell(mapping.PriceColumn)),
		}
		if mapping.ExpiryColumn != nil {
			item.ExpiryLabel = util.OptionalString(row.Cell(*mapping.ExpiryColumn))
		}
		if mapping.CodeColumn != nil {
			item.Code = util.OptionalString(row.Cell(*mapping.CodeColumn))
		}
		out = append(out, item)
	}
	return out
}
