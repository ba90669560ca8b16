package util

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

var arabicFolds = strings.NewReplacer(
	"أ", "ا", "إ", "ا", "آ", "ا",
	"ة", "ه",
	"ى", "ي",
	"ـ", "",
)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeHeader lowercases header text and folds the Arabic letter variants
// suppliers use interchangeably, so keyword lookups do not depend on spelling.
func NormalizeHeader(input string) string {
	s := strings.ToLower(input)
	s = arabicFolds.Replace(s)
	return NormalizeSpaces(s)
}

// ContainsAny reports whether text contains any of the probes. Probes are
// expected to be normalized with NormalizeHeader already.
func ContainsAny(text string, probes []string) bool {
	for _, probe := range probes {
		if probe != "" && strings.Contains(text, probe) {
			return true
		}
	}
	return false
}

// FirstNonEmpty returns the first value with non-blank content.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
