//go:build !windows
// +build !windows

package golden

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeScenario struct {
	name      string
	prereqErr error
	setupErr  error
	cases     []TestCase
	ran       bool
}

func (fs *fakeScenario) Name() string { return fs.name }

func (fs *fakeScenario) CheckPrerequisites(ctx context.Context) error {
	return fs.prereqErr
}

func (fs *fakeScenario) Setup(ctx context.Context, s *Session) error {
	if fs.setupErr != nil {
		return fs.setupErr
	}
	s.MaskResult("id", "42", "##")
	return nil
}

func (fs *fakeScenario) Run(ctx context.Context, s *Session) error {
	fs.ran = true
	return s.RunCases(ctx, fs.cases)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	st := NewStore(filepath.Join(t.TempDir(), "r"))

	newScenario := func() *fakeScenario {
		return &fakeScenario{
			name: "unit",
			cases: []TestCase{
				shellCase("Test case 1", "echo server id 42; exit 2", ExpectFailure(2)),
			},
		}
	}
	assertState := func(sc Scenario, mode Mode, expected State) error {
		t.Helper()
		sess := newTestSession(t)
		state, err := Execute(ctx, sc, sess, mode, st)
		if state != expected {
			t.Errorf("Expected Execute in %s mode to return %s, instead found %s (err=%v)", mode, expected, state, err)
		}
		if (err == nil) != (state == StatePassed) {
			t.Errorf("Expected non-nil error iff state is not PASSED; state=%s err=%v", state, err)
		}
		if _, statErr := os.Stat(sess.ResultPath()); !os.IsNotExist(statErr) {
			t.Errorf("Expected result file to be cleaned up, instead Stat returned %v", statErr)
		}
		return err
	}

	// Compare without a fixture fails
	err := assertState(newScenario(), ModeCompare, StateFailed)
	if !IsOutputMismatch(err) {
		t.Errorf("Expected OutputMismatchError, instead found %v", err)
	}

	// Record then compare passes
	assertState(newScenario(), ModeRecord, StatePassed)
	if lines, _ := st.Read("unit"); len(lines) != 2 || lines[1] != "server id ##" {
		t.Errorf("Unexpected recorded fixture: %q", lines)
	}
	assertState(newScenario(), ModeCompare, StatePassed)

	// Output changes fail
	sc := newScenario()
	sc.cases[0] = shellCase("Test case 1", "echo server id 42; echo extra; exit 2", ExpectFailure(2))
	assertState(sc, ModeCompare, StateFailed)

	// Exit mismatch aborts, in both modes, and does not touch the fixture
	sc = newScenario()
	sc.cases[0] = shellCase("Test case 1", "echo server id 42", ExpectFailure(2))
	err = assertState(sc, ModeRecord, StateAborted)
	var emerr *ExitStatusMismatchError
	if !errors.As(err, &emerr) {
		t.Errorf("Expected ExitStatusMismatchError, instead found %v", err)
	}
	if lines, _ := st.Read("unit"); len(lines) != 2 {
		t.Errorf("Fixture unexpectedly changed by aborted record: %q", lines)
	}

	// Prerequisite failure aborts before running anything
	sc = newScenario()
	sc.prereqErr = errors.New("need 1 server")
	err = assertState(sc, ModeCompare, StateAborted)
	if !IsPrerequisiteError(err) || sc.ran {
		t.Errorf("Expected PrerequisiteError without running cases, instead found %v (ran=%t)", err, sc.ran)
	}
	sc = newScenario()
	sc.prereqErr = &PrerequisiteError{Scenario: "unit", Reason: "custom"}
	err = assertState(sc, ModeCompare, StateAborted)
	var perr *PrerequisiteError
	if !errors.As(err, &perr) || perr.Reason != "custom" {
		t.Errorf("Expected PrerequisiteError to pass through unwrapped, instead found %v", err)
	}

	// Setup failure aborts
	sc = newScenario()
	sc.setupErr = errors.New("bad setup")
	assertState(sc, ModeCompare, StateAborted)
	if sc.ran {
		t.Error("Expected Run to be skipped after setup failure")
	}
}

func TestExecuteCleanupAfterAbort(t *testing.T) {
	sess := newTestSession(t)
	sc := &fakeScenario{
		name: "cleanup",
		cases: []TestCase{
			{
				Command: shellCase("", "mkdir -p test123; exit 1", ExpectSuccess()).Command,
				Expect:  ExpectSuccess(),
				Comment: "Test case 1",
				Before: []Hook{func(s *Session) error {
					_, err := s.MakeScratchDir("test123", map[string]string{"temp123": "test"})
					return err
				}},
			},
		},
	}
	state, err := Execute(context.Background(), sc, sess, ModeCompare, NewStore(t.TempDir()))
	if state != StateAborted || err == nil {
		t.Errorf("Expected ABORTED with error, instead found %s %v", state, err)
	}
	if _, err := os.Stat(sess.ScratchPath("test123")); !os.IsNotExist(err) {
		t.Errorf("Expected scratch dir to be removed after abort, instead Stat returned %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StatePassed.String() != "PASSED" || StateFailed.String() != "FAILED" || StateAborted.String() != "ABORTED" {
		t.Error("Unexpected State string values")
	}
	if ModeRecord.String() != "record" || ModeCompare.String() != "compare" {
		t.Error("Unexpected Mode string values")
	}
}
