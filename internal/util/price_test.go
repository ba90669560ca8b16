package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "decimal dot", input: "12.5", want: 12.5},
		{name: "integer", input: "30", want: 30},
		{name: "decimal comma", input: "12,5", want: 12.5},
		{name: "thousand comma with cents", input: "1,250.00", want: 1250},
		{name: "european grouping", input: "1.250,50", want: 1250.5},
		{name: "thousand with space", input: "1 000", want: 1000},
		{name: "arabic indic digits", input: "١٢٫٥", want: 12.5},
		{name: "currency prefix", input: "EGP 45", want: 45},
		{name: "currency suffix", input: "45 ج.م", want: 45},
		{name: "empty", input: "", want: 0},
		{name: "text", input: "N/A", want: 0},
		{name: "negative", input: "-3", want: 0},
		{name: "leading zero is not a group", input: "0.125", want: 0.125},
		{name: "four decimals", input: "1.2345", want: 1.2345},
		{name: "three decimal display", input: "12.500", want: 12500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParsePrice(tc.input))
		})
	}
}

func TestParsePriceStrictReportsFailure(t *testing.T) {
	_, ok := ParsePriceStrict("price on request")
	assert.False(t, ok)

	v, ok := ParsePriceStrict("0")
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestFormatStoredNumberRoundTrips(t *testing.T) {
	for _, v := range []float64{12.5, 1.234, 0.125, 999.999, 1234567.5, 30, 0} {
		assert.Equal(t, v, ParsePrice(FormatStoredNumber(v)), "value %v", v)
	}
	assert.Equal(t, "1.2340", FormatStoredNumber(1.234))
	assert.Equal(t, "12.5", FormatStoredNumber(12.5))
}
