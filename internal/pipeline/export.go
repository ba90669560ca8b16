package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

var itemHeaders = []string{"id", "name", "unit_price", "expiry", "code"}

// ExportConfirmedXLSX writes the confirmed order lines.
func ExportConfirmedXLSX(items []internal.CandidateItem, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	writeItems(f, f.GetSheetName(0), items)
	return save(f, outputPath)
}

// ExportReviewXLSX writes an unconfirmed extraction for offline review, with
// the extraction details on a second sheet.
func ExportReviewXLSX(res internal.ParseResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	_ = f.SetSheetName(sheet, "Review")
	writeItems(f, "Review", res.Items)

	if _, err := f.NewSheet("Info"); err != nil {
		return err
	}
	info := [][]any{
		{"source", string(res.Source)},
		{"confidence", string(res.Confidence)},
		{"extracted", res.ExtractedCount},
		{"pages", res.TotalPages},
	}
	for i, row := range info {
		_ = f.SetSheetRow("Info", cellName(1, i+1), &row)
	}
	return save(f, outputPath)
}

// ExportMappingXLSX writes the rows of a mapping request with a leading row of
// column indices, so the reader can pick name and price columns by number.
func ExportMappingXLSX(req *internal.MappingRequest, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	width := 0
	for _, row := range req.Rows {
		width = max(width, len(row))
	}
	for c := 0; c < width; c++ {
		_ = f.SetCellValue(sheet, cellName(c+1, 1), c)
	}
	for r, row := range req.Rows {
		for c := range row {
			if v := row.Cell(c); v != "" {
				_ = f.SetCellValue(sheet, cellName(c+1, r+2), v)
			}
		}
	}
	return save(f, outputPath)
}

func writeItems(f *excelize.File, sheet string, items []internal.CandidateItem) {
	for i, h := range itemHeaders {
		_ = f.SetCellValue(sheet, cellName(i+1, 1), h)
	}
	for i, it := range items {
		r := i + 2
		set := func(col int, value any) {
			_ = f.SetCellValue(sheet, cellName(col, r), value)
		}
		set(1, it.ID)
		set(2, it.Name)
		set(3, it.UnitPrice)
		set(4, util.Deref(it.ExpiryLabel))
		set(5, util.Deref(it.Code))
	}
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
