// internal/security/sanitizer.go
package security

import (
	"strings"
	"unicode"
)

// MaxValueLength is the number of runes kept by SanitizeValue.
const MaxValueLength = 256

// SanitizeValue makes externally observed evidence (a network name, a
// broker payload) safe to log and store. Control characters are dropped
// and the result is truncated to MaxValueLength runes.
func SanitizeValue(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		if n == MaxValueLength {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
