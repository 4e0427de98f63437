package golden

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// PrerequisiteError indicates the environment cannot run a scenario at all.
// No subprocess has been started when this is returned.
type PrerequisiteError struct {
	Scenario string
	Reason   string
	Err      error
}

// Error satisfies the builtin error interface.
func (e *PrerequisiteError) Error() string {
	msg := fmt.Sprintf("Prerequisites for %s not met: %s", e.Scenario, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

// SpawnError indicates a test case's process could not be started, or did not
// exit on its own (killed by a signal or a timeout).
type SpawnError struct {
	Comment string
	Command string
	Err     error
}

// Error satisfies the builtin error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s: failed to run `%s`: %v", e.Comment, e.Command, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitStatusMismatchError indicates a test case's process exited in a way
// incompatible with its Expectation.
type ExitStatusMismatchError struct {
	Comment  string
	Command  string
	Expected Expectation
	Policy   ExitPolicy
	Actual   int
	Output   string
}

// Error satisfies the builtin error interface.
func (e *ExitStatusMismatchError) Error() string {
	return fmt.Sprintf("%s: failed: expected %s, but `%s` returned exit code %d", e.Comment, e.Expected, e.Command, e.Actual)
}

// OutputMismatchError indicates the normalized output differs from the stored
// fixture, or the fixture is missing.
type OutputMismatchError struct {
	Name     string
	Path     string
	Missing  bool
	Expected []string
	Actual   []string
}

// Error satisfies the builtin error interface.
func (e *OutputMismatchError) Error() string {
	if e.Missing {
		return fmt.Sprintf("Result file %s for %s does not exist; use the record command to create it", e.Path, e.Name)
	}
	return fmt.Sprintf("Output of %s differs from result file %s", e.Name, e.Path)
}

// Diff returns a unified diff from the fixture to the actual output.
func (e *OutputMismatchError) Diff() string {
	if e.Missing {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        diffLines(e.Expected),
		B:        diffLines(e.Actual),
		FromFile: e.Path,
		ToFile:   e.Name + " (actual)",
		Context:  3,
	}
	diffText, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return err.Error()
	}
	return strings.TrimSuffix(diffText, "\n")
}

// diffLines converts lines into the newline-terminated form difflib expects.
// No lines means no diff input at all, rather than one blank line.
func diffLines(lines []string) []string {
	if len(lines) == 0 {
		return []string{}
	}
	return difflib.SplitLines(strings.Join(lines, "\n"))
}

// IsOutputMismatch returns true if err is or wraps an *OutputMismatchError.
func IsOutputMismatch(err error) bool {
	var omerr *OutputMismatchError
	return errors.As(err, &omerr)
}

// IsPrerequisiteError returns true if err is or wraps a *PrerequisiteError.
func IsPrerequisiteError(err error) bool {
	var perr *PrerequisiteError
	return errors.As(err, &perr)
}
