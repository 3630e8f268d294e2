package printer

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// sink is the writer the printer renders into. Both *bufio.Writer and
// *strings.Builder satisfy it.
type sink interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

var reservedKeywords = map[string]struct{}{
	"if":      {},
	"then":    {},
	"else":    {},
	"assert":  {},
	"with":    {},
	"let":     {},
	"in":      {},
	"rec":     {},
	"inherit": {},
}

// IsReservedKeyword reports whether s must be quoted when used as a name.
// The set follows the lexer; keywords such as "or" are not reserved.
func IsReservedKeyword(s string) bool {
	_, ok := reservedKeywords[s]
	return ok
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '\'' || c == '-'
}

// isVarName is stricter than the identifier check in writeIdentifier:
// besides keywords it rejects names starting with a digit, '-' or '\''.
func isVarName(s string) bool {
	if s == "" || IsReservedKeyword(s) {
		return false
	}
	if c := s[0]; (c >= '0' && c <= '9') || c == '-' || c == '\'' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

func writeIdentifier(w sink, s string) {
	switch {
	case s == "":
		_, _ = w.WriteString(`""`)
	case IsReservedKeyword(s):
		_ = w.WriteByte('"')
		_, _ = w.WriteString(s)
		_ = w.WriteByte('"')
	default:
		if !isIdentStart(s[0]) {
			writeLiteralString(w, s, Unlimited, false)
			return
		}
		for i := 0; i < len(s); i++ {
			if !isIdentChar(s[i]) {
				writeLiteralString(w, s, Unlimited, false)
				return
			}
		}
		_, _ = w.WriteString(s)
	}
}

func writeAttributeName(w sink, name string) {
	if isVarName(name) {
		_, _ = w.WriteString(name)
		return
	}
	writeLiteralString(w, name, Unlimited, false)
}

// writeLiteralString writes s as a quoted, escaped literal. At most
// maxLength characters are written; the remaining bytes are reported by an
// elision marker after the closing quote.
func writeLiteralString(w sink, s string, maxLength int, colors bool) {
	colorStart(w, ansiMagenta, colors)
	_ = w.WriteByte('"')

	printed := 0
	for i := 0; i < len(s); {
		if printed >= maxLength {
			_, _ = w.WriteString(`" `)
			writeElided(w, len(s)-i, "byte", "bytes", colors)
			return
		}

		_, size := utf8.DecodeRuneInString(s[i:])
		switch c := s[i]; c {
		case '"', '\\':
			_ = w.WriteByte('\\')
			_ = w.WriteByte(c)
		case '\n':
			_, _ = w.WriteString(`\n`)
		case '\r':
			_, _ = w.WriteString(`\r`)
		case '\t':
			_, _ = w.WriteString(`\t`)
		case '$':
			if strings.HasPrefix(s[i+1:], "{") {
				_ = w.WriteByte('\\')
			}
			_ = w.WriteByte(c)
		default:
			_, _ = w.WriteString(s[i : i+size])
		}
		i += size
		printed++
	}

	_ = w.WriteByte('"')
	colorEnd(w, colors)
}

func writeLiteralBool(w sink, b bool) {
	_, _ = w.WriteString(strconv.FormatBool(b))
}

// writeElided writes a marker such as «3 attributes elided».
func writeElided(w sink, n int, single, plural string, colors bool) {
	colorStart(w, ansiFaint, colors)
	_, _ = w.WriteString("«")
	_, _ = w.WriteString(strconv.Itoa(n))
	_ = w.WriteByte(' ')
	if n == 1 {
		_, _ = w.WriteString(single)
	} else {
		_, _ = w.WriteString(plural)
	}
	_, _ = w.WriteString(" elided»")
	colorEnd(w, colors)
}

// PrintIdentifier writes s unquoted when it is a plain identifier and as a
// string literal otherwise.
func PrintIdentifier(w io.Writer, s string) error {
	bw := bufio.NewWriter(w)
	writeIdentifier(bw, s)
	return bw.Flush()
}

// PrintAttributeName writes name as it would appear on the left of an
// attribute binding.
func PrintAttributeName(w io.Writer, name string) error {
	bw := bufio.NewWriter(w)
	writeAttributeName(bw, name)
	return bw.Flush()
}

// PrintLiteralString writes s as a quoted literal truncated to maxLength
// characters.
func PrintLiteralString(w io.Writer, s string, maxLength int, colors bool) error {
	bw := bufio.NewWriter(w)
	writeLiteralString(bw, s, maxLength, colors)
	return bw.Flush()
}

// PrintLiteralBool writes true or false.
func PrintLiteralBool(w io.Writer, b bool) error {
	bw := bufio.NewWriter(w)
	writeLiteralBool(bw, b)
	return bw.Flush()
}

// PrintElided writes an elision marker for n omitted units.
func PrintElided(w io.Writer, n int, single, plural string, colors bool) error {
	bw := bufio.NewWriter(w)
	writeElided(bw, n, single, plural, colors)
	return bw.Flush()
}
