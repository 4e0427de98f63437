package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/juju/errors"
	"github.com/mysql-utilities/mut/internal/golden"
)

func TestLoadBuiltin(t *testing.T) {
	if names := Names(); !cmp.Equal(names, []string{"clone_server_errors"}) {
		t.Errorf("Unexpected built-in scenario names: %q", names)
	}
	def, err := Load("clone_server_errors")
	if err != nil {
		t.Fatalf("Unexpected error from Load: %v", err)
	}
	if def.Name != "clone_server_errors" || def.Utility != "mysqlserverclone" || def.Servers != 1 {
		t.Errorf("Unexpected definition header: %+v", def)
	}
	if len(def.Cases) != 8 {
		t.Fatalf("Expected 8 cases, instead found %d", len(def.Cases))
	}
	var codes []int
	for _, c := range def.Cases {
		e, err := c.Expectation()
		if err != nil {
			t.Errorf("Unexpected error from Expectation: %v", err)
		}
		if e.Class != golden.ExpectedFailure {
			t.Errorf("Expected every case to expect failure, instead found %s for %q", e, c.Comment)
		}
		codes = append(codes, e.Code)
	}
	if !cmp.Equal(codes, []int{2, 2, 1, 1, 1, 2, 1, 1}) {
		t.Errorf("Unexpected expected exit codes: %v", codes)
	}
	if !cmp.Equal(def.Cases[5].Before, []string{HookMakeScratch}) || !cmp.Equal(def.Cases[5].After, []string{HookRemoveScratch}) {
		t.Errorf("Unexpected hooks on case 6: %+v", def.Cases[5])
	}

	var rules golden.RuleSet
	for _, rd := range def.Rules {
		rule, err := rd.Rule()
		if err != nil {
			t.Fatalf("Unexpected error from Rule: %v", err)
		}
		rules = append(rules, rule)
	}
	if len(rules) != 6 {
		t.Fatalf("Expected 6 rules, instead found %d", len(rules))
	}
	input := []string{
		"ERROR: Error 2003: Can't connect to MySQL server on 'nothere:3306' (-2)",
		"Error 2003: Can't connect to MySQL server on 'localhost:90125' (111)",
		"#  -uroot --port=3311 --basedir=/usr",
		"ERROR: Unable to create directory '/not/there/yes', reason: [Errno 13]",
	}
	expected := []string{
		"ERROR: Error ####: Can't connect to MySQL server on 'nothere:3306' (-2)",
		"Error ####: Can't connect to MySQL server on 'nothere:####'",
		"#  -uroot [...]",
		"ERROR: Unable to create directory '/not/there/yes'",
	}
	if diff := cmp.Diff(expected, rules.Normalize(input)); diff != "" {
		t.Errorf("Unexpected normalization (-want +got):\n%s", diff)
	}

	if _, err := Load("does_not_exist"); !errors.IsNotFound(err) {
		t.Errorf("Expected NotFound error, instead found %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	header := "name = \"x\"\nutility = \"u\"\n"
	okCase := "[[case]]\nexpect = \"failure\"\ncode = 1\nargs = [\"--a\"]\n"
	assertInvalid := func(data, substring string) {
		t.Helper()
		_, err := Parse(data)
		if err == nil {
			t.Errorf("Expected error parsing:\n%s", data)
		} else if !strings.Contains(err.Error(), substring) {
			t.Errorf("Expected error to contain %q, instead found %q", substring, err.Error())
		}
	}
	assertInvalid("utility = \"u\"\n"+okCase, "without name")
	assertInvalid("name = \"x\"\n"+okCase, "without utility")
	assertInvalid(header, "without any cases")
	assertInvalid(header+"bogus = 1\n"+okCase, "bogus")
	assertInvalid(header+"[[case]]\nexpect = \"maybe\"\n", "maybe")
	assertInvalid(header+"[[case]]\nexpect = \"success\"\ncode = 2\n", "expect success with code 2")
	assertInvalid(header+"[[case]]\nargs = [\"--server={SERVER0}\"]\n", "Unknown variable SERVER0")
	assertInvalid(header+"servers = 1\n[[case]]\nargs = [\"--server={SERVER1}\"]\n", "Unknown variable SERVER1")
	assertInvalid(header+"[[case]]\ncomment = \"Test {TNUM\"\n", "missing closing brace")
	assertInvalid(header+"[[case]]\nbefore = [\"make-scratch\"]\n", "without [scratch] dir")
	assertInvalid(header+"[scratch]\ndir = \"d\"\n[[case]]\nafter = [\"explode\"]\n", "explode")
	assertInvalid(header+okCase+"[[rule]]\nkind = \"mask\"\nmarker = \"m\"\n", "mask rule")
	assertInvalid(header+okCase+"[[rule]]\nkind = \"regex\"\npattern = \"(\"\n", "Invalid regex")
	assertInvalid(header+okCase+"[[rule]]\nkind = \"rewrite\"\n", "rewrite")
	assertInvalid(header+okCase+"[[rule]]\nkind = \"regex\"\npattern = '(\\d+)'\nreplacement = '<$1>'\n", "not idempotent")
	assertInvalid(header+okCase+"[[rule]]\nkind = \"mask\"\nmarker = \"port\"\nliteral = \"3306\"\nmask = \"3306-masked\"\n", "not idempotent")
	assertInvalid("this is not toml", "")

	def, err := Parse(header + "servers = 2\n[[case]]\ncomment = \"Test case {TNUM}\"\nargs = [\"--server={server1}\", \"--port={SERVER0_PORT}\", \"--id={ID}\"]\n")
	if err != nil {
		t.Fatalf("Unexpected error from Parse: %v", err)
	}
	if e, _ := def.Cases[0].Expectation(); e.Class != golden.Success {
		t.Errorf("Expected omitted expect and code to mean success, instead found %s", e)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "my_scenario.toml")
	contents := "utility = \"u\"\n[[case]]\ncode = 2\nargs = []\n"
	if err := os.WriteFile(path, []byte(contents), 0666); err != nil {
		t.Fatalf("Unable to write file: %v", err)
	}
	def, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Unexpected error from LoadFile: %v", err)
	}
	if def.Name != "my_scenario" {
		t.Errorf("Expected name to default to file base name, instead found %q", def.Name)
	}
	if e, _ := def.Cases[0].Expectation(); e != golden.ExpectFailure(2) {
		t.Errorf("Expected code 2 without expect to mean failure, instead found %s", e)
	}

	if err := os.WriteFile(path, []byte("name = \"explicit\"\n"+contents), 0666); err != nil {
		t.Fatalf("Unable to write file: %v", err)
	}
	if def, err := LoadFile(path); err != nil || def.Name != "explicit" {
		t.Errorf("Expected explicit name to be kept, instead found %v, %v", def, err)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Expected error loading nonexistent file")
	}
	if err := os.WriteFile(path, []byte("utility = 5\n"), 0666); err != nil {
		t.Fatalf("Unable to write file: %v", err)
	}
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("Expected error mentioning %s, instead found %v", path, err)
	}
}
