package golden

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is a single normalization step applied to captured output before it is
// compared to a fixture. Implementations must be deterministic, and applying a
// rule to its own output must be a no-op.
type Rule interface {
	Apply(lines []string) []string
	String() string
}

// LiteralMask replaces the first occurrence of Literal at or after the
// position of Marker, on every line containing Marker. Marker may itself
// contain Literal, as in masking the number of "Error 2003:".
type LiteralMask struct {
	Marker  string
	Literal string
	Mask    string
}

// Apply satisfies the Rule interface.
func (lm LiteralMask) Apply(lines []string) []string {
	if lm.Literal == "" {
		return lines
	}
	for n, line := range lines {
		start := strings.Index(line, lm.Marker)
		if start < 0 {
			continue
		}
		loc := strings.Index(line[start:], lm.Literal)
		if loc < 0 {
			continue
		}
		loc += start
		lines[n] = line[:loc] + lm.Mask + line[loc+len(lm.Literal):]
	}
	return lines
}

// Validate returns an error if applying the mask to its own output would
// change it again, which happens when Mask reintroduces Literal after Marker.
func (lm LiteralMask) Validate() error {
	if lm.Literal == "" {
		return nil
	}
	sample := lm.Marker
	if !strings.Contains(sample, lm.Literal) {
		sample += lm.Literal
	}
	once := lm.Apply([]string{sample})[0]
	if twice := lm.Apply([]string{once})[0]; twice != once {
		return fmt.Errorf("Mask rule %q is not idempotent: %q becomes %q, then %q", lm.Literal, sample, once, twice)
	}
	return nil
}

func (lm LiteralMask) String() string {
	return fmt.Sprintf("mask %q after %q with %q", lm.Literal, lm.Marker, lm.Mask)
}

// LineReplace replaces every line beginning with Prefix with Line in full.
type LineReplace struct {
	Prefix string
	Line   string
}

// Apply satisfies the Rule interface.
func (lr LineReplace) Apply(lines []string) []string {
	for n, line := range lines {
		if strings.HasPrefix(line, lr.Prefix) {
			lines[n] = lr.Line
		}
	}
	return lines
}

func (lr LineReplace) String() string {
	return fmt.Sprintf("replace lines starting with %q", lr.Prefix)
}

// RegexReplace replaces all matches of Pattern on each line with Replacement,
// which may reference capture groups using $1 syntax.
type RegexReplace struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// NewRegexReplace compiles pattern into a RegexReplace rule. The pattern must
// not match the replacement text, otherwise a second pass would rewrite the
// output of the first.
func NewRegexReplace(pattern, replacement string) (RegexReplace, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return RegexReplace{}, fmt.Errorf("Invalid regex rule %q: %w", pattern, err)
	}
	if re.MatchString(replacement) {
		return RegexReplace{}, fmt.Errorf("Regex rule %q is not idempotent: it matches its own replacement %q", pattern, replacement)
	}
	return RegexReplace{Pattern: re, Replacement: replacement}, nil
}

// Apply satisfies the Rule interface.
func (rr RegexReplace) Apply(lines []string) []string {
	for n, line := range lines {
		lines[n] = rr.Pattern.ReplaceAllString(line, rr.Replacement)
	}
	return lines
}

func (rr RegexReplace) String() string {
	return fmt.Sprintf("regex %q => %q", rr.Pattern, rr.Replacement)
}

// RuleSet is an ordered list of Rules. Order is significant whenever rules
// overlap.
type RuleSet []Rule

// Normalize returns a copy of lines with every rule applied in order. The
// input slice is not modified.
func (rs RuleSet) Normalize(lines []string) []string {
	result := make([]string, len(lines))
	copy(result, lines)
	for _, rule := range rs {
		result = rule.Apply(result)
	}
	return result
}
