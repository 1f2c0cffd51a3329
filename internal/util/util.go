package util

import "unicode"

// TruncateString shortens s to at most maxLen runes including a trailing "...". With
// preserveWords the cut moves back to the last whitespace before the limit when there is one.
func TruncateString(s string, maxLen int, preserveWords bool) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."[:maxLen]
	}
	cut := maxLen - 3
	if preserveWords {
		for i := cut - 1; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
	}
	return string(runes[:cut]) + "..."
}
