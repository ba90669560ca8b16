package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectQuote(t *testing.T) {
	tests := []struct {
		name        string
		subject     string
		text        string
		html        string
		attachments []string
		want        bool
	}{
		{name: "arabic subject with sheet", subject: "عرض أسعار أكتوبر", attachments: []string{"offer.xlsx"}, want: true},
		{name: "english subject with pdf", subject: "Quotation 2026/114", attachments: []string{"q.pdf"}, want: true},
		{name: "prices in body", subject: "Offer", text: "Panadol 12.50\nBrufen 30.25\n", want: true},
		{name: "html table", subject: "Price list", html: "<table><tr><td>x</td></tr></table>", want: true},
		{name: "sheet without wording", subject: "fwd", attachments: []string{"stock.csv"}, want: false},
		{name: "small talk", subject: "Lunch on Friday", text: "see you there", attachments: []string{"map.png"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectQuote(tt.subject, tt.text, tt.html, tt.attachments)
			assert.Equal(t, tt.want, got.IsQuote, got.Reason)
			assert.LessOrEqual(t, got.Score, 1.0)
		})
	}
}

func TestDetectQuoteReason(t *testing.T) {
	got := DetectQuote("Quotation", "", "", []string{"offer.xlsx"})
	assert.Contains(t, got.Reason, "rules_positive")
	assert.Contains(t, got.Reason, "attachment")

	got = DetectQuote("", "", "", nil)
	assert.Equal(t, "rules_negative", got.Reason)
	assert.Zero(t, got.Score)
}
