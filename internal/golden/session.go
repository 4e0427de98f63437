// Package golden runs external commands, captures and normalizes their
// output, and compares it against recorded golden fixtures.
package golden

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mysql-utilities/mut/internal/shellout"
	log "github.com/sirupsen/logrus"
)

// DefaultResultFile is the name of the scratch file that captures each test
// case's output.
const DefaultResultFile = "result.txt"

// Hook is run by a Session immediately before or after a test case's process.
type Hook func(s *Session) error

// TestCase is a single process invocation along with its expected exit
// status. The Command should already have any variables interpolated.
type TestCase struct {
	Command *shellout.Command
	Expect  Expectation
	Comment string
	Before  []Hook
	After   []Hook
}

// RunRecord is the outcome of one executed TestCase.
type RunRecord struct {
	Case     TestCase
	Output   string // raw combined STDOUT and STDERR
	ExitCode int
	Class    ExitClass
	Duration time.Duration
}

// Session is the state of a single scenario run: the cumulative output
// buffer, the ordered normalization rules, the run records, and any scratch
// files or directories which must be removed by Cleanup. A Session is not
// safe for concurrent use.
type Session struct {
	Name       string        // scenario name; also the fixture name
	WorkDir    string        // test case processes run here, and scratch paths are relative to it
	ResultFile string        // scratch capture file name, relative to WorkDir
	Timeout    time.Duration // per test case; 0 means no limit
	Policy     ExitPolicy
	Env        []string // extra "key=value" env entries for test case processes

	rules    RuleSet
	buffer   []string
	records  []RunRecord
	scratch  []string // absolute paths of scratch dirs to remove in Cleanup
	captured bool     // true once the result file may exist
}

// NewSession returns a Session for the named scenario, using workDir for
// process execution and scratch files. If workDir is blank, the current
// working directory is used.
func NewSession(name, workDir string) (*Session, error) {
	if workDir == "" {
		workDir = "."
	}
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	if fi, err := os.Stat(absDir); err != nil {
		return nil, err
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absDir)
	}
	return &Session{
		Name:       name,
		WorkDir:    absDir,
		ResultFile: DefaultResultFile,
	}, nil
}

// ResultPath returns the absolute path of the scratch capture file.
func (s *Session) ResultPath() string {
	return filepath.Join(s.WorkDir, s.ResultFile)
}

// RunTestCase runs tc's process to completion, appending tc.Comment and the
// process's combined output to the session's buffer. A non-nil error means
// the scenario must abort: the process could not be run (*SpawnError), its
// exit status did not satisfy tc.Expect (*ExitStatusMismatchError), or a hook
// failed.
func (s *Session) RunTestCase(ctx context.Context, tc TestCase) error {
	if tc.Command == nil {
		return fmt.Errorf("%s: no command supplied", tc.Comment)
	}
	for _, hook := range tc.Before {
		if err := hook(s); err != nil {
			return fmt.Errorf("%s: setup failed: %w", tc.Comment, err)
		}
	}

	if tc.Comment != "" {
		s.buffer = append(s.buffer, tc.Comment)
	}
	cmd := tc.Command.WithWorkingDir(s.WorkDir).WithStdin(strings.NewReader(""))
	if s.Timeout > 0 {
		cmd = cmd.WithTimeout(s.Timeout)
	}
	if len(s.Env) > 0 {
		cmd = cmd.WithEnv(s.Env...)
	}
	log.Debugf("Running %s", cmd)

	start := time.Now()
	code, err := s.capture(ctx, cmd)
	if err != nil {
		return &SpawnError{Comment: tc.Comment, Command: cmd.String(), Err: err}
	}
	raw, err := os.ReadFile(s.ResultPath())
	if err != nil {
		return &SpawnError{Comment: tc.Comment, Command: cmd.String(), Err: err}
	}
	rec := RunRecord{
		Case:     tc,
		Output:   string(raw),
		ExitCode: code,
		Class:    ClassOf(code),
		Duration: time.Since(start),
	}
	s.records = append(s.records, rec)
	s.buffer = append(s.buffer, SplitLines(rec.Output)...)
	log.Debugf("Exit code %d after %s", code, rec.Duration.Round(time.Millisecond))

	if !s.Policy.Satisfied(tc.Expect, code) {
		return &ExitStatusMismatchError{
			Comment:  tc.Comment,
			Command:  cmd.String(),
			Expected: tc.Expect,
			Policy:   s.Policy,
			Actual:   code,
			Output:   rec.Output,
		}
	}

	for _, hook := range tc.After {
		if err := hook(s); err != nil {
			return fmt.Errorf("%s: teardown failed: %w", tc.Comment, err)
		}
	}
	return nil
}

// capture runs cmd with STDOUT and STDERR both redirected to the scratch
// result file, truncating any previous contents. It returns the exit code, or
// an error if the process did not exit on its own.
func (s *Session) capture(ctx context.Context, cmd *shellout.Command) (int, error) {
	s.captured = true
	f, err := os.Create(s.ResultPath())
	if err != nil {
		return -1, err
	}
	runErr := cmd.WithStdout(f).WithStderr(f).RunContext(ctx)
	if err := f.Close(); err != nil && runErr == nil {
		runErr = err
	}
	code, exited := shellout.ExitCode(runErr)
	if !exited {
		return code, runErr
	}
	return code, nil
}

// RunCases runs each test case in order, stopping at the first error.
func (s *Session) RunCases(ctx context.Context, cases []TestCase) error {
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.RunTestCase(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}

// AddRule appends a normalization rule. Rules apply in the order added.
func (s *Session) AddRule(rule Rule) {
	s.rules = append(s.rules, rule)
}

// MaskResult adds a rule which, on each output line containing marker,
// replaces the first occurrence of literal (searching from the start of
// marker) with mask.
func (s *Session) MaskResult(marker, literal, mask string) {
	s.AddRule(LiteralMask{Marker: marker, Literal: literal, Mask: mask})
}

// ReplaceResult adds a rule which replaces every output line beginning with
// prefix with line. A trailing newline in line is ignored.
func (s *Session) ReplaceResult(prefix, line string) {
	s.AddRule(LineReplace{Prefix: prefix, Line: strings.TrimRight(line, "\r\n")})
}

// RegexReplace adds a rule replacing matches of pattern on each line.
func (s *Session) RegexReplace(pattern, replacement string) error {
	rule, err := NewRegexReplace(pattern, replacement)
	if err != nil {
		return err
	}
	s.AddRule(rule)
	return nil
}

// Rules returns the session's rules, in application order.
func (s *Session) Rules() RuleSet {
	return append(RuleSet(nil), s.rules...)
}

// RawResults returns the accumulated output buffer before normalization.
func (s *Session) RawResults() []string {
	return append([]string(nil), s.buffer...)
}

// Results returns the accumulated output buffer with all rules applied.
func (s *Session) Results() []string {
	return s.rules.Normalize(s.buffer)
}

// Records returns the run records of all test cases executed so far.
func (s *Session) Records() []RunRecord {
	return append([]RunRecord(nil), s.records...)
}

// Compare checks the normalized results against the session's fixture in st.
// It returns nil if they are identical, an *OutputMismatchError if they
// differ or the fixture is missing, or some other error if the fixture could
// not be read.
func (s *Session) Compare(st *Store) error {
	actual := s.Results()
	expected, err := st.Read(s.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return &OutputMismatchError{Name: s.Name, Path: st.Path(s.Name), Missing: true, Actual: actual}
	} else if err != nil {
		return err
	}
	if equalLines(expected, actual) {
		return nil
	}
	return &OutputMismatchError{
		Name:     s.Name,
		Path:     st.Path(s.Name),
		Expected: expected,
		Actual:   actual,
	}
}

// Record overwrites the session's fixture in st with the normalized results.
func (s *Session) Record(st *Store) error {
	return st.Write(s.Name, s.Results())
}

// MakeScratchDir creates (or recreates) a directory under WorkDir, populated
// with the supplied files (map of file name => contents). The directory will
// be removed by Cleanup. The absolute path is returned.
func (s *Session) MakeScratchDir(name string, files map[string]string) (string, error) {
	if err := checkScratchName(name); err != nil {
		return "", err
	}
	path := s.ScratchPath(name)
	if err := os.RemoveAll(path); err != nil {
		return path, err
	}
	s.trackScratch(path)
	if err := os.Mkdir(path, 0777); err != nil {
		return path, err
	}
	for fileName, contents := range files {
		if err := os.WriteFile(filepath.Join(path, fileName), []byte(contents), 0666); err != nil {
			return path, err
		}
	}
	return path, nil
}

// RemoveScratchDir removes a directory under WorkDir, if it exists. The path
// remains tracked, so Cleanup will remove it again if it is recreated by a
// test case process.
func (s *Session) RemoveScratchDir(name string) error {
	if err := checkScratchName(name); err != nil {
		return err
	}
	path := s.ScratchPath(name)
	s.trackScratch(path)
	return os.RemoveAll(path)
}

// ScratchPath returns the absolute path of a scratch entry under WorkDir.
func (s *Session) ScratchPath(name string) string {
	return filepath.Join(s.WorkDir, name)
}

// checkScratchName requires name to be a relative path strictly beneath
// WorkDir.
func checkScratchName(name string) error {
	clean := filepath.Clean(name)
	if name == "" || clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("Invalid scratch directory name %q", name)
	}
	return nil
}

func (s *Session) trackScratch(path string) {
	for _, existing := range s.scratch {
		if existing == path {
			return
		}
	}
	s.scratch = append(s.scratch, path)
}

// Cleanup removes the scratch result file and all scratch directories. It is
// safe to call multiple times, and does not modify the results buffer.
func (s *Session) Cleanup() error {
	var errs []error
	if s.captured {
		if err := os.Remove(s.ResultPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	for _, path := range s.scratch {
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}
