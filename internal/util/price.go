package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceNumberPattern = regexp.MustCompile(`(-?)(\d{1,3}(?:[\s.,]\d{3}\b)+(?:[.,]\d{1,2})?|\d+(?:[.,]\d+)?)`)
	thousandDots       = regexp.MustCompile(`^[1-9]\d{0,2}(?:\.\d{3})+$`)
	thousandCommas     = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

// ParsePrice reads the first number in a price cell. Anything that does not
// yield a non-negative number comes back as 0.
func ParsePrice(input string) float64 {
	v, ok := ParsePriceStrict(input)
	if !ok {
		return 0
	}
	return v
}

// ParsePriceStrict is ParsePrice with an explicit success flag.
func ParsePriceStrict(input string) (float64, bool) {
	line := FoldDigits(input)
	m := priceNumberPattern.FindStringSubmatch(line)
	if len(m) < 3 {
		return 0, false
	}
	if m[1] == "-" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(normalizeNumericToken(m[2]), 64)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return parsed, true
}

// FormatStoredNumber renders a typed numeric cell value so that ParsePrice
// reads it back unchanged. 1.234 becomes "1.2340", which is not mistaken for
// a thousands group.
func FormatStoredNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if thousandDots.MatchString(s) {
		s += "0"
	}
	return s
}

// FoldDigits maps Arabic-Indic and Persian digits and separators to ASCII and
// replaces non-breaking spaces.
func FoldDigits(input string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == '٫':
			return '.'
		case r == '٬':
			return ','
		case r == '\u00a0':
			return ' '
		}
		return r
	}, input)
}

func normalizeNumericToken(token string) string {
	compact := strings.Join(strings.Fields(token), "")
	if thousandDots.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if thousandCommas.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	lastDot := strings.LastIndex(compact, ".")
	lastComma := strings.LastIndex(compact, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			return strings.ReplaceAll(compact, ",", "")
		}
		return strings.ReplaceAll(strings.ReplaceAll(compact, ".", ""), ",", ".")
	case lastComma >= 0:
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
