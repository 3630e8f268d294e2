package printer

import "github.com/charmbracelet/x/ansi"

// Terminal color sequences. The exact bytes are part of the output format.
const (
	ansiNormal  = "\x1b[0m"
	ansiFaint   = "\x1b[2m"
	ansiRed     = "\x1b[31;1m"
	ansiGreen   = "\x1b[32;1m"
	ansiBlue    = "\x1b[34;1m"
	ansiMagenta = "\x1b[35;1m"
	ansiCyan    = "\x1b[36;1m"
)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansi.Strip(s)
}

// colorStart opens a color region when colors are enabled.
func colorStart(w sink, color string, enabled bool) {
	if enabled {
		_, _ = w.WriteString(color)
	}
}

// colorEnd closes the current color region when colors are enabled.
func colorEnd(w sink, enabled bool) {
	if enabled {
		_, _ = w.WriteString(ansiNormal)
	}
}
