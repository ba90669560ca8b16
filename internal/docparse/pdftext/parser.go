// Package pdftext is an in-process document collaborator. It reads the text
// layer of PDFs and plain text files and picks lines that end in a price.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

var (
	expiryPattern  = regexp.MustCompile(`(?:^|\s)((?:0?[1-9]|1[0-2])[/-](?:20\d{2}|\d{2}))(?:\s|$)`)
	currencySuffix = regexp.MustCompile(`(?i)(\d)\s*(?:egp|l\.?e\.?|usd|sar|\$|ج\.?\s?م\.?|جنيه|ر\.?\s?س\.?)$`)
	currencyTail   = regexp.MustCompile(`(?i)(?:^|\s)(?:egp|l\.?e\.?|usd|sar|\$|ج\.?\s?م\.?|جنيه|ر\.?\s?س\.?)$`)
	trailingPrice  = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d+)?)$`)
	separators     = regexp.MustCompile(`[\s|:;*\-–]+$`)
)

var ignorePrefixes = []string{
	"total", "subtotal", "vat", "tel", "phone", "fax", "page", "http",
	"الاجمالي", "اجمالي", "المجموع", "ضريبه", "تليفون", "هاتف", "صفحه",
}

type Parser struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func (p *Parser) ParseDocument(ctx context.Context, content []byte, fileName string) (internal.DocumentResponse, error) {
	var (
		text  string
		pages *int
		err   error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		text, pages, err = pdfText(ctx, content)
		if err != nil {
			return internal.DocumentResponse{}, fmt.Errorf("read pdf %s: %w", fileName, err)
		}
	case ".txt":
		text = string(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf")))
	default:
		// no OCR here: images have no machine-readable text
		p.logger.Info("pdftext.no_text_layer", "file", fileName)
		return internal.DocumentResponse{
			Items:      []internal.DocumentItem{},
			RawText:    util.StringPtr(""),
			Confidence: util.StringPtr(string(internal.ConfidenceLow)),
		}, nil
	}

	items := ExtractLines(text)
	confidence := internal.ConfidenceLow
	if len(items) > 0 {
		confidence = internal.ConfidenceMedium
	}
	return internal.DocumentResponse{
		Items:      items,
		RawText:    util.StringPtr(text),
		TotalPages: pages,
		Confidence: util.StringPtr(string(confidence)),
	}, nil
}

func pdfText(ctx context.Context, content []byte) (string, *int, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	n := r.NumPage()
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), &n, nil
}

// ExtractLines turns every line that ends in a price into an item.
func ExtractLines(text string) []internal.DocumentItem {
	out := []internal.DocumentItem{}
	for _, line := range splitLines(text) {
		if item, ok := lineToItem(line); ok {
			out = append(out, item)
		}
	}
	return out
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = util.NormalizeSpaces(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lineToItem(raw string) (internal.DocumentItem, bool) {
	line := util.NormalizeSpaces(util.FoldDigits(raw))
	if line == "" || isLikelyNoise(line) {
		return internal.DocumentItem{}, false
	}

	var expiry *string
	if m := expiryPattern.FindStringSubmatchIndex(line); m != nil {
		expiry = util.StringPtr(line[m[2]:m[3]])
		line = util.NormalizeSpaces(line[:m[2]] + " " + line[m[3]:])
	}

	line = currencySuffix.ReplaceAllString(line, "${1}")
	loc := trailingPrice.FindStringIndex(line)
	if loc == nil {
		return internal.DocumentItem{}, false
	}
	// "Vitamin B12" is a name, not a price
	if prev, _ := utf8.DecodeLastRuneInString(line[:loc[0]]); unicode.IsLetter(prev) {
		return internal.DocumentItem{}, false
	}
	priceText := line[loc[0]:loc[1]]
	if _, ok := util.ParsePriceStrict(priceText); !ok {
		return internal.DocumentItem{}, false
	}

	name := separators.ReplaceAllString(line[:loc[0]], "")
	name = currencyTail.ReplaceAllString(name, "")
	name = util.NormalizeSpaces(name)
	if !hasLetter(name) {
		return internal.DocumentItem{}, false
	}
	return internal.DocumentItem{Name: name, Price: priceText, ExpiryLabel: expiry}, true
}

func isLikelyNoise(line string) bool {
	lower := util.NormalizeHeader(line)
	for _, prefix := range ignorePrefixes {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(lower[len(prefix):])
		if !unicode.IsLetter(next) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
