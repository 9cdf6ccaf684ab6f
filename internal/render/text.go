// Package render provides text cleanup and fitting for presence payloads
// and CLI output.
package render

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "…"

// Sanitize removes control characters (except tab/space) and drops invalid
// UTF-8 bytes. Player metadata occasionally carries both.
func Sanitize(s string) string {
	if !needsSanitize(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			i++
			continue
		}
		if r != '\t' && unicode.IsControl(r) {
			i += size
			continue
		}
		// Non-breaking space becomes a regular space
		if r == '\u00a0' {
			b.WriteByte(' ')
			i += size
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

// needsSanitize returns true if the string contains bytes that need sanitizing.
func needsSanitize(s string) bool {
	if !utf8.ValidString(s) {
		return true
	}
	for i := range len(s) {
		b := s[i]
		if b < 0x20 && b != '\t' {
			return true
		}
		if b == 0x7f {
			return true
		}
		if b == 0xc2 && i+1 < len(s) {
			// U+0080..U+009F (C1 controls) and U+00A0 (NBSP)
			if n := s[i+1]; n >= 0x80 && n <= 0xa0 {
				return true
			}
		}
	}
	return false
}

// Truncate caps s at limit user-perceived characters, the last of which is
// an ellipsis when anything was cut. Grapheme clusters are never split, so
// emoji and combining marks survive intact.
func Truncate(s string, limit int) string {
	s = Sanitize(s)
	if limit <= 0 {
		return ""
	}
	if uniseg.GraphemeClusterCount(s) <= limit {
		return s
	}

	var b strings.Builder
	gr := uniseg.NewGraphemes(s)
	for n := 0; n < limit-1 && gr.Next(); n++ {
		b.WriteString(gr.Str())
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace) + Ellipsis
}

// PadRight fills s with spaces up to width terminal columns, truncating
// first when it is too wide.
func PadRight(s string, width int) string {
	s = runewidth.Truncate(Sanitize(s), width, Ellipsis)
	return runewidth.FillRight(s, width)
}
