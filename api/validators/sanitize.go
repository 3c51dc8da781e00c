package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims, drops control characters, collapses inner whitespace runs and caps
// the result at maxLen runes. Ingredient names like "Azúcar morena" keep their accents.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))

	runes := 0
	pendingSpace := false
	for _, r := range strings.TrimSpace(input) {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if maxLen > 0 && runes+boolToInt(pendingSpace) >= maxLen {
			break
		}
		if pendingSpace {
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
