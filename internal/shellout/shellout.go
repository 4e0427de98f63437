// Package shellout executes external programs from a structured argument
// list, optionally interpolating variables into the arguments first.
package shellout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned by RunContext when a Command with a timeout was
// killed for exceeding it.
var ErrTimeout = errors.New("command exceeded its timeout and was killed")

// Command represents an external program plus its arguments. No shell is
// involved in execution, so arguments never require quoting.
type Command struct {
	program    string
	args       []string
	printable  []string  // if non-nil, used by String() in place of args
	workingDir string
	env        []string  // if nil, defaults to current process's environment
	stdin      io.Reader // if nil, defaults to os.Stdin
	stdout     io.Writer // if nil, defaults to os.Stdout
	stderr     io.Writer // if nil, defaults to os.Stderr
	timeout    time.Duration
}

// New returns a new Command for the supplied program and arguments.
func New(program string, args ...string) *Command {
	return &Command{
		program: program,
		args:    append([]string(nil), args...),
	}
}

// WithTimeout returns a copy of c which will enforce a maximum execution time
// as specified by d.
func (c Command) WithTimeout(d time.Duration) *Command {
	c.timeout = d
	return &c
}

// WithWorkingDir returns a copy of c which will execute from the supplied
// working directory. The directory is not validated by this method.
func (c Command) WithWorkingDir(dir string) *Command {
	c.workingDir = dir
	return &c
}

// WithStdin returns a copy of c which will use r for standard input.
func (c Command) WithStdin(r io.Reader) *Command {
	c.stdin = r
	return &c
}

// WithStdout returns a copy of c which will use w for standard output.
func (c Command) WithStdout(w io.Writer) *Command {
	c.stdout = w
	return &c
}

// WithStderr returns a copy of c which will use w for standard error.
func (c Command) WithStderr(w io.Writer) *Command {
	c.stderr = w
	return &c
}

// WithEnv returns a copy of c which uses the supplied environment variables,
// with each entry of the form "key=value". The parent process env variables
// are still used as the initial baseline, but env can override entries as
// needed.
func (c Command) WithEnv(env ...string) *Command {
	// In case of duplicates, the last entry takes precedence, so this works as-is
	// to allow overrides
	if c.env == nil {
		c.env = os.Environ()
	} else {
		c.env = append([]string(nil), c.env...)
	}
	c.env = append(c.env, env...)
	return &c
}

// WithVariables returns a copy of c with variable interpolation applied to
// each of its arguments. Any placeholders of format "{VARNAME}" will be looked
// up as keys in the vars map and replaced with the corresponding value. Keys
// should be supplied to vars in ALL CAPS; placeholders in the arguments are
// case-insensitive though. The arguments must not contain any unknown
// variables or an error is returned.
// As a special case, any variable name may appear with an X suffix. This will
// still be replaced as normal in the argument, but will appear as all X's in
// Command.String(), for example {PASSWORDX} will be replaced by the "PASSWORD"
// key in this map but for printing purposes the value will be obfuscated.
func (c Command) WithVariables(vars map[string]string) (*Command, error) {
	args := make([]string, len(c.args))
	printable := make([]string, len(c.args))
	var anyObfuscated bool
	for n, arg := range c.args {
		var obfuscated bool
		var err error
		args[n], printable[n], obfuscated, err = Interpolate(arg, vars)
		if err != nil {
			return &c, err
		}
		anyObfuscated = anyObfuscated || obfuscated
	}
	c.args = args
	if anyObfuscated {
		c.printable = printable
	} else {
		c.printable = nil
	}
	return &c, nil
}

// Interpolate replaces "{VARNAME}" placeholders in s using vars, returning the
// real result, a printable result with X-suffixed variables obfuscated, and
// whether any obfuscation occurred. Shell env var references of the form
// "${FOO}" and Go template invocations of the form "{{ ... }}" are left as-is.
func Interpolate(s string, vars map[string]string) (result, printable string, obfuscated bool, err error) {
	var b, p strings.Builder
	var pos int
	for {
		start := strings.IndexByte(s[pos:], '{') + pos
		if start < pos { // IndexByte returned -1: no more variables
			break
		}
		end := strings.IndexByte(s[start+1:], '}') + start + 1
		if end <= start { // IndexByte returned -1: no closing tag
			return s, s, false, fmt.Errorf("Variable name missing closing brace: %s", s[start:])
		}
		varName := strings.ToUpper(s[start+1 : end])
		value, ok := vars[varName]
		var hide bool
		if !ok && varName != "" && varName[len(varName)-1] == 'X' {
			value, ok = vars[varName[:len(varName)-1]]
			hide = ok
		}
		if !ok {
			if (start > 0 && s[start-1] == '$') || s[start+1] == '{' {
				b.WriteString(s[pos : end+1])
				p.WriteString(s[pos : end+1])
				pos = end + 1
				continue
			}
			return s, s, false, fmt.Errorf("Unknown variable %s", varName)
		}
		b.WriteString(s[pos:start])
		b.WriteString(value)
		p.WriteString(s[pos:start])
		if hide {
			p.WriteString("XXXXX")
			obfuscated = true
		} else {
			p.WriteString(value)
		}
		pos = end + 1
	}
	b.WriteString(s[pos:])
	p.WriteString(s[pos:])
	return b.String(), p.String(), obfuscated, nil
}

// Validate confirms c can be handed to the OS for execution.
func (c *Command) Validate() error {
	if c.program == "" {
		return errors.New("Attempted to shell out to an empty program name")
	}
	if strings.IndexByte(c.program, 0) >= 0 {
		return fmt.Errorf("Program name %q contains a NUL byte", c.program)
	}
	for n, arg := range c.args {
		if strings.IndexByte(arg, 0) >= 0 {
			return fmt.Errorf("Argument %d of %s contains a NUL byte", n+1, c.program)
		}
	}
	return nil
}

// String returns a shell-quoted rendering of c, with any obfuscated variables
// masked. It is intended for logging only.
func (c *Command) String() string {
	args := c.args
	if c.printable != nil {
		args = c.printable
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(c.program))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

// RunContext executes the external program and blocks until it completes,
// killing it if ctx is done first. STDIN, STDOUT, and STDERR default to those
// of the parent process unless WithStdin, WithStdout, or WithStderr were used.
func (c *Command) RunContext(ctx context.Context) error {
	cmd, cancel, err := c.cmd(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	if c.stdout != nil {
		cmd.Stdout = c.stdout
	} else {
		cmd.Stdout = os.Stdout
	}
	if c.stderr != nil {
		cmd.Stderr = c.stderr
	} else {
		cmd.Stderr = os.Stderr
	}
	return c.wrapTimeout(cmd.Run())
}

func (c *Command) cmd(ctx context.Context) (*exec.Cmd, context.CancelFunc, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	execCmd := exec.CommandContext(ctx, c.program, c.args...)
	execCmd.Env = c.env
	execCmd.Dir = c.workingDir
	if c.stdin != nil {
		execCmd.Stdin = c.stdin
	} else {
		execCmd.Stdin = os.Stdin
	}
	return execCmd, cancel, nil
}

// wrapTimeout converts the error from a process killed by its timeout into
// ErrTimeout.
func (c *Command) wrapTimeout(err error) error {
	if err == nil || c.timeout <= 0 {
		return err
	}
	var exitErr *exec.ExitError
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &exitErr) && !exitErr.Exited()) {
		return fmt.Errorf("%s: %w", c, ErrTimeout)
	}
	return err
}

// ExitCode inspects an error returned by RunContext. If the
// program ran and exited on its own, the exit status is returned along with
// true. A nil err means exit status 0. Any other error means the program
// could not be started, was killed, or timed out, and false is returned.
func ExitCode(err error) (code int, exited bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return exitErr.ExitCode(), true
	}
	return -1, false
}
