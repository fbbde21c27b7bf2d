// Package normalize canonicalises user-supplied book and loan fields before they are
// validated, compared or stored.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ISBN returns the canonical form of an isbn: separators (hyphens and any whitespace)
// removed and a trailing check character x upper-cased.
// "978-85-359-0277-5" -> "9788535902775", "0-306-40615-x" -> "030640615X".
func ISBN(raw string) string {
	s := strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, norm.NFKC.String(raw))

	if strings.HasSuffix(s, "x") {
		s = s[:len(s)-1] + "X"
	}
	return s
}

// Text trims a free-text field, collapses internal whitespace runs to one space and
// applies Unicode NFC so composed and decomposed accents compare equal.
func Text(raw string) string {
	return strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
}

// Email trims surrounding whitespace and lower-cases the domain part.
// The local part is left alone; some mail servers treat it case-sensitively.
func Email(raw string) string {
	s := strings.TrimSpace(raw)
	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return s
	}
	return s[:at+1] + strings.ToLower(s[at+1:])
}
