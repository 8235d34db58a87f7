package disclosure

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Sanitize makes free text safe for Postgres TEXT columns: invalid UTF-8
// (including encoded unpaired surrogates) is dropped, NUL and other control
// characters other than tab and newline are removed, and the result is NFC
// normalised.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case unicode.IsControl(r), r == utf8.RuneError, unicode.Is(unicode.Cs, r):
			return -1
		default:
			return r
		}
	}, s)
	return norm.NFC.String(s)
}

// SanitizeField is Sanitize for single-line values: whitespace runs collapse
// to one space and the ends are trimmed.
func SanitizeField(s string) string {
	return strings.Join(strings.Fields(Sanitize(s)), " ")
}

// Truncate caps s at limit bytes without splitting a rune. A limit <= 0
// disables the cap.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
