package printer

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/openfroyo/lazyval/pkg/value"
)

func (p *Printer) printInt(v *value.Value) {
	colorStart(p.out, ansiCyan, p.opts.ANSIColors)
	_, _ = p.out.WriteString(strconv.FormatInt(v.Int(), 10))
	colorEnd(p.out, p.opts.ANSIColors)
}

func (p *Printer) printFloat(v *value.Value) {
	colorStart(p.out, ansiCyan, p.opts.ANSIColors)
	_, _ = p.out.WriteString(formatFloat(v.Float()))
	colorEnd(p.out, p.opts.ANSIColors)
}

// formatFloat uses six significant digits, switching to exponent notation
// for large and small magnitudes.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}

func (p *Printer) printBool(v *value.Value) {
	colorStart(p.out, ansiCyan, p.opts.ANSIColors)
	writeLiteralBool(p.out, v.Bool())
	colorEnd(p.out, p.opts.ANSIColors)
}

func (p *Printer) printString(v *value.Value) {
	s := v.Str()
	writeLiteralString(p.out, s, p.opts.MaxStringLength, p.opts.ANSIColors)
	if len(s) > p.opts.MaxStringLength && utf8.RuneCountInString(s) > p.opts.MaxStringLength {
		p.stats.Elided++
	}
}

// printPath writes the path text with terminal escape sequences removed.
func (p *Printer) printPath(v *value.Value) {
	colorStart(p.out, ansiGreen, p.opts.ANSIColors)
	_, _ = p.out.WriteString(StripANSI(v.Str()))
	colorEnd(p.out, p.opts.ANSIColors)
}

func (p *Printer) printNull() {
	colorStart(p.out, ansiCyan, p.opts.ANSIColors)
	_, _ = p.out.WriteString("null")
	colorEnd(p.out, p.opts.ANSIColors)
}
