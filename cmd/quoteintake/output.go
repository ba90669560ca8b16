package main

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func itemsTable(items []internal.CandidateItem) string {
	t := newTable("id", "name", "unit price", "expiry", "code")
	for _, it := range items {
		t.Row(it.ID, it.Name, strconv.FormatFloat(it.UnitPrice, 'f', -1, 64), util.Deref(it.ExpiryLabel), util.Deref(it.Code))
	}
	return t.String()
}

func printMappingRequest(cmd *cobra.Command, req *internal.MappingRequest) {
	cmd.Println("name or price column not recognised; pick columns by index with --map")
	width := len(req.Header)
	for _, row := range req.Preview {
		width = max(width, len(row))
	}
	headers := make([]string, width)
	for i := range headers {
		headers[i] = strconv.Itoa(i)
	}
	t := newTable(headers...)
	for _, row := range req.Preview {
		cells := make([]string, width)
		copy(cells, row)
		t.Row(cells...)
	}
	cmd.Println(t.String())
}

func printRawText(cmd *cobra.Command, res internal.ParseResult) {
	if res.RawText == "" {
		cmd.Println("no items and no readable text; transcribe the file by hand with --transcribe")
		return
	}
	cmd.Println("no items found; raw text follows, transcribe it with --transcribe")
	cmd.Println(res.RawText)
}
