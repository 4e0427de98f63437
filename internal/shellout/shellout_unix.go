// This file contains shellout functionality that is specific to UNIX-like
// operating systems.

//go:build !windows
// +build !windows

package shellout

import (
	"fmt"
	"regexp"
	"strings"
)

// noQuotesNeeded is a regexp for detecting which arg values do not require
// escaping and quote-wrapping in quoteArg()
var noQuotesNeeded = regexp.MustCompile(`^[\w/@%=:.,+-]+$`)

// quoteArg takes a string, and wraps it in single-quotes so that a human could
// paste Command.String() into /bin/sh and get the same argument. If the value
// already contained any single-quotes, they will be escaped in a way that will
// cause /bin/sh to still interpret them as part of a single arg.
func quoteArg(value string) string {
	if noQuotesNeeded.MatchString(value) {
		return value
	}
	return fmt.Sprintf("'%s'", strings.ReplaceAll(value, "'", `'"'"'`))
}
