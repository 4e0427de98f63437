package golden

import (
	"fmt"
	"strings"
)

// ExitClass categorizes a process exit status.
type ExitClass int

// Constants enumerating exit classes
const (
	Success         ExitClass = iota // exit code 0
	ExpectedFailure                  // any nonzero exit code
)

func (ec ExitClass) String() string {
	if ec == Success {
		return "SUCCESS"
	}
	return "EXPECTED_FAILURE"
}

// ClassOf returns the ExitClass of a raw process exit code.
func ClassOf(code int) ExitClass {
	if code == 0 {
		return Success
	}
	return ExpectedFailure
}

// Expectation describes how a test case's process is expected to terminate.
// Code is the raw exit code recorded alongside the scenario; it only matters
// under the ExactCode policy.
type Expectation struct {
	Class ExitClass
	Code  int
}

// ExpectSuccess returns an Expectation of exit code 0.
func ExpectSuccess() Expectation {
	return Expectation{Class: Success}
}

// ExpectFailure returns an Expectation of a nonzero exit, nominally with the
// supplied code. A code of 0 is coerced to 1.
func ExpectFailure(code int) Expectation {
	if code == 0 {
		code = 1
	}
	return Expectation{Class: ExpectedFailure, Code: code}
}

func (e Expectation) String() string {
	if e.Class == Success {
		return "exit 0"
	}
	return fmt.Sprintf("nonzero exit (nominally %d)", e.Code)
}

// ExitPolicy controls how strictly a nonzero exit code is matched against an
// Expectation.
type ExitPolicy int

// Constants enumerating exit policies
const (
	CollapseNonzero ExitPolicy = iota // any nonzero code satisfies ExpectedFailure
	ExactCode                         // nonzero codes must equal Expectation.Code
)

// ParseExitPolicy converts a config string ("collapse" or "exact") into an
// ExitPolicy.
func ParseExitPolicy(value string) (ExitPolicy, error) {
	switch strings.ToLower(value) {
	case "", "collapse":
		return CollapseNonzero, nil
	case "exact":
		return ExactCode, nil
	}
	return CollapseNonzero, fmt.Errorf("Invalid exit code policy %q: must be \"collapse\" or \"exact\"", value)
}

func (p ExitPolicy) String() string {
	if p == ExactCode {
		return "exact"
	}
	return "collapse"
}

// Satisfied returns true if a process exiting with code meets expectation e
// under policy p.
func (p ExitPolicy) Satisfied(e Expectation, code int) bool {
	if ClassOf(code) != e.Class {
		return false
	}
	if e.Class == ExpectedFailure && p == ExactCode {
		return code == e.Code
	}
	return true
}
