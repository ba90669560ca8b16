package util

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func IntPtr(v int) *int { return &v }

// OptionalString returns nil for blank input so empty cells stay absent.
func OptionalString(v string) *string {
	v = NormalizeSpaces(v)
	if v == "" {
		return nil
	}
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
