//go:build !windows
// +build !windows

package shellout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// capture runs c with STDOUT and STDERR sent to one buffer, returning the
// combined output.
func capture(c *Command) (string, error) {
	var out strings.Builder
	err := c.WithStdout(&out).WithStderr(&out).RunContext(context.Background())
	return out.String(), err
}

func TestRunContext(t *testing.T) {
	assertResult := func(c *Command, expectSuccess bool) {
		t.Helper()
		if err := c.RunContext(context.Background()); expectSuccess && err != nil {
			t.Errorf("Expected command `%s` to return no error, but it returned error %v", c, err)
		} else if !expectSuccess && err == nil {
			t.Errorf("Expected command `%s` to return an error, but it did not", c)
		}
	}
	assertResult(New(""), false)
	assertResult(New("false"), false)
	assertResult(New("/does/not/exist"), false)
	assertResult(New("true"), true)
	assertResult(New("true").WithWorkingDir(".."), true)
	assertResult(New("true").WithWorkingDir("/invalid/dir"), false)
	assertResult(New("true", "has\x00nul"), false)

	// Test behavior when using WithStdin and WithStderr
	r := strings.NewReader("hello\nworld\nfoo\n\nbar\n")
	out := &strings.Builder{}
	if err := New("/bin/sh", "-c", "wc -l 1>&2").WithStdin(r).WithStderr(out).RunContext(context.Background()); err != nil {
		t.Errorf("Unexpected non-nil err: %v", err)
	} else if outstr := strings.TrimSpace(out.String()); outstr != "5" {
		t.Errorf("Expected STDERR output to be \"5\", instead found %q", outstr)
	}

	// WithStdout
	out.Reset()
	if err := New("echo", "hello world").WithStdout(out).RunContext(context.Background()); err != nil {
		t.Errorf("Unexpected non-nil err: %v", err)
	} else if out.String() != "hello world\n" {
		t.Errorf("Expected STDOUT output to be \"hello world\\n\", instead found %q", out.String())
	}

	// Combined output keeps write order
	if output, err := capture(New("/bin/sh", "-c", "echo hello 1>&2; echo world")); err != nil {
		t.Errorf("Unexpected error: %v", err)
	} else if output != "hello\nworld\n" {
		t.Errorf("Unexpected combined output: %q", output)
	}

	// Arguments are passed as-is, with no shell interpretation
	if output, err := capture(New("echo", "$HOME", "a b", "'quoted'")); err != nil {
		t.Errorf("Unexpected error: %v", err)
	} else if output != "$HOME a b 'quoted'\n" {
		t.Errorf("Unexpected output: %q", output)
	}

	// A cancelled context kills the process
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New("sleep", "5").RunContext(ctx); err == nil {
		t.Error("Expected cancelled context to return an error, but it did not")
	}
}

func TestWithVariables(t *testing.T) {
	variables := map[string]string{
		"HOST":     "ahost",
		"USER":     "someone",
		"PASSWORD": "",
		"PORT":     "3306",
		"DIRPATH":  "/var/data/clone one",
	}
	assertCommand := func(c *Command, expected, expectedForDisplay string) {
		t.Helper()
		c2, err := c.WithVariables(variables)
		if err != nil {
			t.Errorf("Unexpected error from WithVariables on %s: %s", c, err)
			return
		}
		if actual := strings.Join(c2.args, "|"); actual != expected {
			t.Errorf("Expected args of %q, instead found %q", expected, actual)
		}
		if actual := c2.String(); actual != expectedForDisplay {
			t.Errorf("Expected String() of %q, instead found %q", expectedForDisplay, actual)
		}
	}
	assertCommand(New("clone", "--server={USER}@{host}:{Port}", "--new-data={DIRPATH}"), "--server=someone@ahost:3306|--new-data=/var/data/clone one", "clone --server=someone@ahost:3306 '--new-data=/var/data/clone one'")
	assertCommand(New("clone", "{HOSTX}{USERX}{PORTX}"), "ahostsomeone3306", "clone XXXXXXXXXXXXXXX")
	assertCommand(New("clone", "${THIS_IS_OK}", "{HOST}"), "${THIS_IS_OK}|ahost", "clone '${THIS_IS_OK}' ahost")

	variables["PASSWORD"] = "SuPeRsEcReT"
	assertCommand(New("clone", "--server={USER}:{PASSWORD}@{HOST}"), "--server=someone:SuPeRsEcReT@ahost", "clone --server=someone:SuPeRsEcReT@ahost")
	assertCommand(New("clone", "--server={USER}:{PASSWORDX}@{HOST}", "--new-id=7"), "--server=someone:SuPeRsEcReT@ahost|--new-id=7", "clone --server=someone:XXXXX@ahost --new-id=7")
	assertCommand(New("docker", `--format={{json .NetworkSettings}}`, "{HOST}"), `--format={{json .NetworkSettings}}|ahost`, `docker '--format={{json .NetworkSettings}}' ahost`)

	assertCommandError := func(args ...string) {
		t.Helper()
		c := New("clone", args...)
		c2, err := c.WithVariables(variables)
		if err == nil {
			t.Error("Expected WithVariables to return an error when invalid variable used, but it did not")
		} else if c2 == nil || strings.Join(c2.args, "|") != strings.Join(args, "|") {
			t.Errorf("Unexpected result when an invalid variable was present: %#v", c2)
		}
	}
	assertCommandError("{HOST}", "{iNvAlId}")
	assertCommandError("{HOST}", "{INVALIDX}")
	assertCommandError("{X}")
	assertCommandError("{HOST}{}")
	assertCommandError("{HOST} {PORT")
}

func TestQuoteArg(t *testing.T) {
	values := map[string]string{
		``:                    `''`,
		`has space`:           `'has space'`,
		`has "double quote"`:  `'has "double quote"'`,
		`\`:                   `'\'`,
		`/etc/*`:              `'/etc/*'`,
		`has 'single quoted'`: `'has '"'"'single quoted'"'"''`,
	}
	for input, expected := range values {
		if actual := quoteArg(input); actual != expected {
			t.Errorf("Expected quoteArg(`%s`) to return `%s`, instead found `%s`", input, expected, actual)
		}
	}

	fineAsIs := []string{
		"just-words",
		"this@that,1=1:no_spaces-so/we.r+ok",
	}
	for _, val := range fineAsIs {
		if actual := quoteArg(val); actual != val {
			t.Errorf("Expected \"%s\" to not need quoting, but quoteArg returned: %s", val, actual)
		}
	}
}

func TestCommandTimeout(t *testing.T) {
	c := New("sleep", "1").WithTimeout(200 * time.Millisecond)
	err := c.RunContext(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected timeout error, instead found %v", err)
	}
	if _, exited := ExitCode(err); exited {
		t.Error("Expected ExitCode to report a killed process as not having exited")
	}
	c = New("echo", "hello").WithTimeout(time.Second)
	if _, err := capture(c); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestExitCode(t *testing.T) {
	assertExitCode := func(c *Command, expectedCode int, expectedExited bool) {
		t.Helper()
		code, exited := ExitCode(c.RunContext(context.Background()))
		if code != expectedCode || exited != expectedExited {
			t.Errorf("Expected ExitCode from `%s` to return %d,%t; instead found %d,%t", c, expectedCode, expectedExited, code, exited)
		}
	}
	assertExitCode(New("true"), 0, true)
	assertExitCode(New("false"), 1, true)
	assertExitCode(New("/bin/sh", "-c", "exit 2"), 2, true)
	assertExitCode(New("/does/not/exist"), -1, false)
	assertExitCode(New(""), -1, false)
}

func TestCommandEnv(t *testing.T) {
	assertOutput := func(c *Command, expected string) {
		t.Helper()
		if out, err := capture(c); err != nil {
			t.Errorf("Unexpected error: %v", err)
		} else if actual := strings.TrimSpace(out); actual != expected {
			t.Errorf("Expected output to be %q, instead found %q", expected, actual)
		}
	}

	t.Setenv("MUT_TEST_ENV1", "foo")
	t.Setenv("MUT_TEST_ENV2", "bar")
	c := New("/bin/sh", "-c", "echo $MUT_TEST_ENV1 $MUT_TEST_ENV2 $MUT_TEST_ENV3")

	// Confirm behavior with no env overrides
	assertOutput(c, "foo bar")

	// Now test overriding one env var, and setting another previously-unset one
	assertOutput(c.WithEnv("MUT_TEST_ENV1=bork", "MUT_TEST_ENV3=blurb"), "bork bar blurb")

	// Confirm repeated overrides work as expected
	assertOutput(c.WithEnv("MUT_TEST_ENV1=boo").WithEnv("MUT_TEST_ENV1=groo"), "groo bar")
}
