package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

// NormalizeDocument fills every optional collaborator field with its default.
// Code past this point never checks the response for missing fields again.
func NormalizeDocument(resp internal.DocumentResponse) internal.ParseResult {
	items := make([]internal.CandidateItem, 0, len(resp.Items))
	for i, it := range resp.Items {
		items = append(items, internal.CandidateItem{
			ID:          fmt.Sprintf("doc-%d", i+1),
			Name:        util.NormalizeSpaces(it.Name),
			UnitPrice:   util.ParsePrice(it.Price),
			ExpiryLabel: util.OptionalString(util.Deref(it.ExpiryLabel)),
			Code:        util.OptionalString(util.Deref(it.Code)),
		})
	}

	result := internal.ParseResult{
		Items:          items,
		ExtractedCount: len(items),
		Confidence:     ParseConfidence(util.Deref(resp.Confidence)),
		Source:         internal.KindDocument,
	}
	if resp.RawText != nil {
		result.RawText = *resp.RawText
	}
	if resp.TotalPages != nil && *resp.TotalPages > 0 {
		result.TotalPages = *resp.TotalPages
	}
	return result
}

// ParseConfidence accepts the named levels or a 0..1 score.
func ParseConfidence(v string) internal.Confidence {
	v = strings.ToLower(strings.TrimSpace(v))
	switch internal.Confidence(v) {
	case internal.ConfidenceHigh, internal.ConfidenceMedium, internal.ConfidenceLow:
		return internal.Confidence(v)
	}
	score, err := strconv.ParseFloat(v, 64)
	if err != nil || score < 0 || score > 1 {
		return internal.ConfidenceUnknown
	}
	switch {
	case score >= 0.8:
		return internal.ConfidenceHigh
	case score >= 0.5:
		return internal.ConfidenceMedium
	default:
		return internal.ConfidenceLow
	}
}
