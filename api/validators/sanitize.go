package validators

import (
	"strings"
	"unicode"
)

// SanitizeString drops control characters, collapses runs of whitespace and
// caps the result at maxLen runes. maxLen <= 0 means no cap.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))

	count := 0
	pendingSpace := false
	for _, r := range input {
		if unicode.IsSpace(r) {
			pendingSpace = count > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if pendingSpace {
			if maxLen > 0 && count+1 >= maxLen {
				break
			}
			b.WriteRune(' ')
			count++
			pendingSpace = false
		}
		if maxLen > 0 && count >= maxLen {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
