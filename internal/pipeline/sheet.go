package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"quoteintake/internal"
	"quoteintake/internal/source"
	"quoteintake/internal/util"
)

// ReadRows decodes a tabular input into padded rows. Only the first sheet
// (or table) that holds any data is read.
func ReadRows(in source.Input) ([]internal.Row, error) {
	format, ok := detectSheetFormat(in.Name, in.MediaType)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a spreadsheet", ErrUnsupportedInput, in.Name)
	}

	var (
		cells [][]string
		err   error
	)
	switch format {
	case formatCSV:
		cells, err = parseDelimited(in.Content, 0)
	case formatTSV:
		cells, err = parseDelimited(in.Content, '\t')
	case formatXLSX:
		cells, err = parseXLSX(in.Content)
	case formatXLS:
		// Legacy BIFF workbooks are not readable by excelize; give it a try in
		// case the file is an OOXML workbook with the wrong extension.
		cells, err = parseXLSX(in.Content)
	case formatHTML:
		cells, err = parseHTMLTable(in.Content)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, in.Name, err)
	}
	return toRows(cells), nil
}

func parseXLSX(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || !hasData(rows) {
			continue
		}
		if stored, err := f.GetRows(sheet, excelize.Options{RawCellValue: true}); err == nil {
			useStoredNumbers(f, sheet, rows, stored)
		}
		return rows, nil
	}
	return nil, nil
}

// useStoredNumbers replaces the display text of numeric cells with the value
// the workbook stores, so a price shown as "12.500" reads back as 12.5 rather
// than going through the thousands-separator guess. Date cells keep their
// display text.
func useStoredNumbers(f *excelize.File, sheet string, shown, stored [][]string) {
	for r := range shown {
		if r >= len(stored) {
			return
		}
		for c := range shown[r] {
			if c >= len(stored[r]) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(stored[r][c]), 64)
			if err != nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if numericCell(f, sheet, cell) {
				shown[r][c] = util.FormatStoredNumber(v)
			}
		}
	}
}

func numericCell(f *excelize.File, sheet, cell string) bool {
	typ, err := f.GetCellType(sheet, cell)
	if err != nil || (typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset) {
		return false
	}
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return false
	}
	style, err := f.GetStyle(idx)
	if err != nil {
		return false
	}
	return !isDateFormat(style)
}

// Literal text, colour and locale sections of a format code.
var numFmtLiterals = regexp.MustCompile(`"[^"]*"|\\.|\[[^\]]*\]`)

func isDateFormat(style *excelize.Style) bool {
	if style.CustomNumFmt != nil {
		code := numFmtLiterals.ReplaceAllString(*style.CustomNumFmt, "")
		return strings.ContainsAny(strings.ToLower(code), "ymdhs")
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 22, n >= 27 && n <= 36, n >= 45 && n <= 47, n >= 50 && n <= 58:
		return true
	}
	return false
}

func parseDelimited(content []byte, delimiter rune) ([][]string, error) {
	text := decodeText(content)
	if delimiter == 0 {
		delimiter = sniffDelimiter(text)
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var out [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func parseHTMLTable(content []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var out [][]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := [][]string{}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cell.Text())
			})
			rows = append(rows, cells)
		})
		if len(rows) < 2 || !hasData(rows) {
			return true
		}
		out = rows
		return false
	})
	return out, nil
}

// decodeText returns UTF-8 text, stripping a BOM. Bytes that are not valid
// UTF-8 are read as Windows-1256, the usual export encoding for Arabic sheets.
func decodeText(content []byte) string {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if utf8.Valid(content) {
		return string(content)
	}
	decoded, err := charmap.Windows1256.NewDecoder().Bytes(content)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

func sniffDelimiter(text string) rune {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	best, bestCount := ',', strings.Count(firstLine, ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if n := strings.Count(firstLine, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func hasData(rows [][]string) bool {
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				return true
			}
		}
	}
	return false
}

// toRows pads every row to the widest row; blank cells become nil.
func toRows(cells [][]string) []internal.Row {
	width := 0
	for _, row := range cells {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([]internal.Row, 0, len(cells))
	for _, record := range cells {
		row := make(internal.Row, width)
		for i, c := range record {
			c = normalizeCell(c)
			if c == "" {
				continue
			}
			v := c
			row[i] = &v
		}
		out = append(out, row)
	}
	return out
}

func normalizeCell(c string) string {
	return strings.Join(strings.Fields(c), " ")
}
