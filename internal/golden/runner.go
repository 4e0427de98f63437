package golden

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// Scenario is a named sequence of test cases plus the normalization rules for
// their output. Run should stop at the first error returned by
// Session.RunTestCase.
type Scenario interface {
	Name() string
	CheckPrerequisites(ctx context.Context) error
	Setup(ctx context.Context, s *Session) error
	Run(ctx context.Context, s *Session) error
}

// Mode selects what Execute does with a scenario's normalized output.
type Mode int

// Constants enumerating modes
const (
	ModeCompare Mode = iota // compare against the fixture
	ModeRecord              // overwrite the fixture
)

func (m Mode) String() string {
	if m == ModeRecord {
		return "record"
	}
	return "compare"
}

// State is the terminal state of a scenario execution.
type State int

// Constants enumerating terminal states
const (
	StatePassed  State = iota // output matched, or was recorded
	StateFailed               // output differed from the fixture
	StateAborted              // prerequisites, setup, or a test case failed
)

func (st State) String() string {
	switch st {
	case StatePassed:
		return "PASSED"
	case StateFailed:
		return "FAILED"
	default:
		return "ABORTED"
	}
}

// Execute drives sc through its lifecycle using sess: prerequisites, setup,
// run, then either compare or record depending on mode. sess.Cleanup is
// always called before returning, regardless of outcome; a cleanup failure
// aborts an otherwise-successful run. A non-nil error is returned for any
// state other than StatePassed.
func Execute(ctx context.Context, sc Scenario, sess *Session, mode Mode, st *Store) (state State, err error) {
	defer func() {
		if cleanupErr := sess.Cleanup(); cleanupErr != nil {
			log.Warnf("Cleanup of %s incomplete: %s", sc.Name(), cleanupErr)
			if err == nil {
				state, err = StateAborted, cleanupErr
			}
		}
	}()

	if err := sc.CheckPrerequisites(ctx); err != nil {
		if !IsPrerequisiteError(err) {
			err = &PrerequisiteError{Scenario: sc.Name(), Reason: "check failed", Err: err}
		}
		return StateAborted, err
	}
	if err := sc.Setup(ctx, sess); err != nil {
		return StateAborted, err
	}
	if err := sc.Run(ctx, sess); err != nil {
		return StateAborted, err
	}

	if mode == ModeRecord {
		if err := sess.Record(st); err != nil {
			return StateAborted, err
		}
		log.Infof("Recorded %d lines to %s", len(sess.Results()), st.Path(sess.Name))
		return StatePassed, nil
	}

	err = sess.Compare(st)
	var omerr *OutputMismatchError
	if errors.As(err, &omerr) {
		return StateFailed, err
	} else if err != nil {
		return StateAborted, err
	}
	return StatePassed, nil
}
