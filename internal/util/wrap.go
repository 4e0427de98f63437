package util

import (
	"os"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	terminal "golang.org/x/term"
)

// DefaultWidth is used by OutputWidth when STDOUT is not a terminal.
const DefaultWidth = 80

// OutputWidth returns the width of f if it is a terminal, or DefaultWidth
// otherwise.
func OutputWidth(f *os.File) int {
	fd := int(f.Fd())
	if !terminal.IsTerminal(fd) {
		return DefaultWidth
	}
	if width, _, err := terminal.GetSize(fd); err == nil && width > 0 {
		return width
	}
	return DefaultWidth
}

// Indent word-wraps s so that each line, including padder, fits within width,
// and prefixes every line with padder. Text which cannot fit is returned
// padded but unwrapped.
func Indent(s string, width int, padder string) string {
	if width > len(padder) {
		s = wordwrap.WrapString(s, uint(width-len(padder)))
	}
	return padder + strings.ReplaceAll(s, "\n", "\n"+padder)
}
