package pipeline

import (
	"path/filepath"
	"strings"

	"quoteintake/internal"
)

type sheetFormat string

const (
	formatCSV  sheetFormat = "csv"
	formatTSV  sheetFormat = "tsv"
	formatXLSX sheetFormat = "xlsx"
	formatXLS  sheetFormat = "xls"
	formatHTML sheetFormat = "html"
)

var sheetExtensions = map[string]sheetFormat{
	".csv":  formatCSV,
	".tsv":  formatTSV,
	".xlsx": formatXLSX,
	".xlsm": formatXLSX,
	".xltx": formatXLSX,
	".xls":  formatXLS,
	".htm":  formatHTML,
	".html": formatHTML,
}

var sheetMediaTypes = map[string]sheetFormat{
	"text/csv":                  formatCSV,
	"application/csv":           formatCSV,
	"text/tab-separated-values": formatTSV,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": formatXLSX,
	"application/vnd.ms-excel.sheet.macroenabled.12":                    formatXLSX,
	"application/vnd.ms-excel":                                          formatXLS,
	"text/html":                                                         formatHTML,
}

var documentExtensions = map[string]struct{}{
	".pdf": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {},
	".heic": {}, ".tif": {}, ".tiff": {}, ".txt": {},
}

var documentMediaTypes = map[string]struct{}{
	"application/pdf": {},
	"text/plain":      {},
}

// Dispatch routes a file to the spreadsheet or document path. A known
// extension wins over the declared media type; unknown inputs are reported
// as KindUnsupported rather than an error.
func Dispatch(fileName, mediaType string) internal.FileKind {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if _, ok := sheetExtensions[ext]; ok {
		return internal.KindSpreadsheet
	}
	if _, ok := documentExtensions[ext]; ok {
		return internal.KindDocument
	}

	mt := normalizeMediaType(mediaType)
	if _, ok := sheetMediaTypes[mt]; ok {
		return internal.KindSpreadsheet
	}
	if _, ok := documentMediaTypes[mt]; ok || strings.HasPrefix(mt, "image/") {
		return internal.KindDocument
	}
	return internal.KindUnsupported
}

func detectSheetFormat(fileName, mediaType string) (sheetFormat, bool) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if f, ok := sheetExtensions[ext]; ok {
		return f, true
	}
	f, ok := sheetMediaTypes[normalizeMediaType(mediaType)]
	return f, ok
}

func normalizeMediaType(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
