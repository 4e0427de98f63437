// This file contains shellout functionality that is specific to Windows.

//go:build windows
// +build windows

package shellout

import (
	"strings"
)

// quoteArg wraps value in double-quotes if it contains whitespace or quotes,
// matching the rules used by the Windows command-line parser.
func quoteArg(value string) string {
	if value != "" && !strings.ContainsAny(value, " \t\"") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}
