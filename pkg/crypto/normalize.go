package crypto

import (
	"strings"
	"unicode"
)

// normalize drops whitespace and invisible formatting characters (zero
// width spaces and joiners, word joiner, BOM, soft hyphen, bidi marks)
// that survive copy and paste.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// NormalizeWIF cleans a user-supplied WIF string before decoding.
func NormalizeWIF(wif string) string { return normalize(wif) }

// NormalizeAddress cleans a user-supplied address before decoding.
func NormalizeAddress(addr string) string { return normalize(addr) }
