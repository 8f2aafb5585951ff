package internal

import "strings"

// SanitizeString strips control characters from user supplied input before it
// reaches a log line, so a crafted value cannot forge log entries.
func SanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

// SanitizeStringArray sanitizes every element in place and returns the slice.
func SanitizeStringArray(values []string) []string {
	for i := range values {
		values[i] = SanitizeString(values[i])
	}
	return values
}
