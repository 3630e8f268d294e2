package printer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func literal(s string, maxLength int) string {
	var b strings.Builder
	writeLiteralString(&b, s, maxLength, false)
	return b.String()
}

func TestLiteralStringEscapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", `"hello"`},
		{"empty", "", `""`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"newline", "a\nb", `"a\nb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"interpolation", "${x}", `"\${x}"`},
		{"bare dollar", "$x", `"$x"`},
		{"trailing dollar", "x$", `"x$"`},
		{"double dollar", "$${x}", `"$\${x}"`},
		{"unicode", "héllo «»", `"héllo «»"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, literal(tt.in, Unlimited))
		})
	}
}

func TestLiteralStringTruncation(t *testing.T) {
	assert.Equal(t, `"abc" «3 bytes elided»`, literal("abcdef", 3))
	assert.Equal(t, `"abc" «1 byte elided»`, literal("abcd", 3))
	assert.Equal(t, `"abc"`, literal("abc", 3))
	assert.Equal(t, `"" «2 bytes elided»`, literal("ab", 0))

	// limits count characters, the marker counts bytes
	assert.Equal(t, `"hé" «3 bytes elided»`, literal("héllo", 2))
}

func TestLiteralStringColors(t *testing.T) {
	var b strings.Builder
	writeLiteralString(&b, "ab", Unlimited, true)
	assert.Equal(t, ansiMagenta+`"ab"`+ansiNormal, b.String())

	b.Reset()
	writeLiteralString(&b, "abc", 1, true)
	assert.Equal(t, ansiMagenta+`"a" `+ansiFaint+"«2 bytes elided»"+ansiNormal, b.String())
}

func TestReservedKeywords(t *testing.T) {
	for _, kw := range []string{"if", "then", "else", "assert", "with", "let", "in", "rec", "inherit"} {
		assert.True(t, IsReservedKeyword(kw), kw)
	}
	for _, name := range []string{"or", "import", "true", "null", "If", ""} {
		assert.False(t, IsReservedKeyword(name), name)
	}
}

func TestPrintIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo", "foo"},
		{"_foo", "_foo"},
		{"foo-bar'", "foo-bar'"},
		{"Foo9", "Foo9"},
		{"", `""`},
		{"if", `"if"`},
		{"inherit", `"inherit"`},
		{"9lives", `"9lives"`},
		{"-x", `"-x"`},
		{"a.b", `"a.b"`},
		{"with space", `"with space"`},
		{"${x}", `"\${x}"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var b strings.Builder
			require.NoError(t, PrintIdentifier(&b, tt.in))
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestPrintAttributeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo", "foo"},
		{"foo-bar", "foo-bar"},
		{"x'", "x'"},
		{"_", "_"},
		{"", `""`},
		{"rec", `"rec"`},
		{"1", `"1"`},
		{"'a", `"'a"`},
		{"-a", `"-a"`},
		{"a/b", `"a/b"`},
		{"é", `"é"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var b strings.Builder
			require.NoError(t, PrintAttributeName(&b, tt.in))
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestIsVarName(t *testing.T) {
	assert.True(t, isVarName("abc"))
	assert.True(t, isVarName("a-b'c_"))
	assert.False(t, isVarName(""))
	assert.False(t, isVarName("let"))
	assert.False(t, isVarName("0a"))
	assert.False(t, isVarName("-a"))
	assert.False(t, isVarName("'a"))
	assert.False(t, isVarName("a b"))
}

func TestPrintLiteralBool(t *testing.T) {
	var b strings.Builder
	require.NoError(t, PrintLiteralBool(&b, true))
	require.NoError(t, PrintLiteralBool(&b, false))
	assert.Equal(t, "truefalse", b.String())
}

func TestPrintElided(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "«0 items elided»"},
		{1, "«1 item elided»"},
		{2, "«2 items elided»"},
	}
	for _, tt := range tests {
		var b strings.Builder
		require.NoError(t, PrintElided(&b, tt.n, "item", "items", false))
		assert.Equal(t, tt.want, b.String())
	}
}

func TestSortAttrs(t *testing.T) {
	names := func(pairs []attrPair) []string {
		out := make([]string, len(pairs))
		for i, p := range pairs {
			out[i] = p.name
		}
		return out
	}
	mk := func() []attrPair {
		return []attrPair{{name: "z"}, {name: "_type"}, {name: "a"}, {name: "type"}, {name: "m"}}
	}

	plain := mk()
	sortAttrs(plain, false)
	assert.Equal(t, []string{"_type", "a", "m", "type", "z"}, names(plain))

	important := mk()
	sortAttrs(important, true)
	assert.Equal(t, []string{"_type", "type", "a", "m", "z"}, names(important))
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		1.5:       "1.5",
		0.1:       "0.1",
		3:         "3",
		1e6:       "1e+06",
		123456:    "123456",
		1234567:   "1.23457e+06",
		0.0001:    "0.0001",
		0.00001:   "1e-05",
		-2.25:     "-2.25",
		1.0 / 3.0: "0.333333",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatFloat(in))
	}
}
