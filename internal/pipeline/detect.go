package pipeline

import (
	"regexp"
	"strings"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

type DetectResult struct {
	IsQuote bool
	Score   float64
	Reason  string
}

var detectKeywords = []string{
	"عرض سعر", "عرض اسعار", "قائمه اسعار", "قائمه الاسعار", "اسعار", "عرض",
	"quotation", "quote", "price list", "pricelist", "prices", "offer", "proforma",
}

var pricePattern = regexp.MustCompile(`\d+[.,]\d{1,2}\b`)

// DetectQuote scores an email as a likely supplier quote from its wording,
// price-looking numbers and attachment types.
func DetectQuote(subject, text, html string, attachmentNames []string) DetectResult {
	subject = util.NormalizeHeader(subject)
	text = util.NormalizeHeader(text)
	lowerHTML := strings.ToLower(html)

	score := 0.0
	reasons := []string{}
	for _, kw := range detectKeywords {
		kw = util.NormalizeHeader(kw)
		if strings.Contains(subject, kw) {
			score += 0.3
			reasons = append(reasons, "subject:"+kw)
			break
		}
	}
	for _, kw := range detectKeywords {
		kw = util.NormalizeHeader(kw)
		if strings.Contains(text, kw) || strings.Contains(lowerHTML, kw) {
			score += 0.15
			reasons = append(reasons, "body:"+kw)
			break
		}
	}

	if hits := len(pricePattern.FindAllString(util.FoldDigits(text), 3)); hits >= 2 {
		score += 0.2
		reasons = append(reasons, "prices")
	}

	best := 0.0
	for _, name := range attachmentNames {
		switch Dispatch(name, "") {
		case internal.KindSpreadsheet:
			best = max(best, 0.4)
		case internal.KindDocument:
			best = max(best, 0.25)
		}
	}
	if best > 0 {
		score += best
		reasons = append(reasons, "attachment")
	}

	if strings.Contains(lowerHTML, "<table") {
		score += 0.2
		reasons = append(reasons, "html_table")
	}
	if score > 1 {
		score = 1
	}

	isQuote := score >= 0.45
	reason := "rules_negative"
	if isQuote {
		reason = "rules_positive"
	}
	if len(reasons) > 0 {
		reason += ":" + strings.Join(reasons, ",")
	}

	return DetectResult{IsQuote: isQuote, Score: score, Reason: reason}
}
