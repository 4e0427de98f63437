// Package scenario loads golden-output scenarios from TOML files and binds
// them to a server pool, producing test cases that a golden.Session can run.
package scenario

import (
	"embed"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/juju/errors"
	"github.com/mysql-utilities/mut/internal/golden"
	"github.com/mysql-utilities/mut/internal/shellout"
)

//go:embed scenarios/*.toml
var builtin embed.FS

// Hook names permitted in a case's before and after lists.
const (
	HookMakeScratch   = "make-scratch"
	HookRemoveScratch = "remove-scratch"
)

// Definition is the decoded form of a scenario file.
type Definition struct {
	Name        string    `toml:"name"`
	Description string    `toml:"description"`
	Utility     string    `toml:"utility"`
	Servers     int       `toml:"servers"`
	Scratch     Scratch   `toml:"scratch"`
	Cases       []Case    `toml:"case"`
	Rules       []RuleDef `toml:"rule"`
}

// Scratch describes a directory, optionally containing one file, which test
// cases may create and remove using hooks.
type Scratch struct {
	Dir      string `toml:"dir"`
	File     string `toml:"file"`
	Contents string `toml:"contents"`
}

// Case is one invocation of the scenario's utility.
type Case struct {
	Comment string   `toml:"comment"`
	Expect  string   `toml:"expect"` // "success" or "failure"; derived from Code if omitted
	Code    int      `toml:"code"`
	Args    []string `toml:"args"`
	Before  []string `toml:"before"`
	After   []string `toml:"after"`
}

// RuleDef is one normalization rule. Which fields apply depends on Kind:
// "mask" uses Marker, Literal, and Mask; "replace" uses Marker as the line
// prefix along with Line; "regex" uses Pattern and Replacement.
type RuleDef struct {
	Kind        string `toml:"kind"`
	Marker      string `toml:"marker"`
	Literal     string `toml:"literal"`
	Mask        string `toml:"mask"`
	Line        string `toml:"line"`
	Pattern     string `toml:"pattern"`
	Replacement string `toml:"replacement"`
}

// Parse decodes and validates a scenario from TOML text. Unknown keys are an
// error.
func Parse(data string) (*Definition, error) {
	var def Definition
	md, err := toml.Decode(data, &def)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for n, key := range undecoded {
			keys[n] = key.String()
		}
		return nil, errors.Errorf("unknown key(s) in scenario: %s", strings.Join(keys, ", "))
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and parses a scenario file from disk. If the file does not
// set a name, the file's base name without extension is used.
func LoadFile(filePath string) (*Definition, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	def, err := parseNamed(string(data), strings.TrimSuffix(filepath.Base(filePath), ".toml"))
	if err != nil {
		return nil, errors.Annotatef(err, "scenario file %s", filePath)
	}
	return def, nil
}

// Load returns the built-in scenario with the supplied name.
func Load(name string) (*Definition, error) {
	data, err := builtin.ReadFile("scenarios/" + name + ".toml")
	if err != nil {
		return nil, errors.NotFoundf("scenario %q", name)
	}
	def, err := parseNamed(string(data), name)
	if err != nil {
		return nil, errors.Annotatef(err, "built-in scenario %s", name)
	}
	return def, nil
}

// Names returns the names of all built-in scenarios, sorted.
func Names() []string {
	entries, _ := builtin.ReadDir("scenarios")
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), ".toml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseNamed(data, defaultName string) (*Definition, error) {
	var hasName bool
	if md, err := toml.Decode(data, &struct{}{}); err == nil {
		hasName = md.IsDefined("name")
	}
	if !hasName {
		data = "name = " + strconv.Quote(defaultName) + "\n" + data
	}
	return Parse(data)
}

// Validate checks the definition for errors that would otherwise only surface
// partway through a run: unknown hooks, malformed rules, bad expectations, and
// unknown or malformed variable placeholders.
func (def *Definition) Validate() error {
	if def.Name == "" {
		return errors.NotValidf("scenario without name")
	}
	if def.Utility == "" {
		return errors.NotValidf("scenario %s without utility", def.Name)
	}
	if def.Servers < 0 {
		return errors.NotValidf("scenario %s servers count %d", def.Name, def.Servers)
	}
	if len(def.Cases) == 0 {
		return errors.NotValidf("scenario %s without any cases", def.Name)
	}
	vars := placeholderVars(def.Servers)
	for n, c := range def.Cases {
		vars["TNUM"] = strconv.Itoa(n + 1)
		if _, err := c.Expectation(); err != nil {
			return errors.Annotatef(err, "case %d", n+1)
		}
		if _, _, _, err := shellout.Interpolate(c.Comment, vars); err != nil {
			return errors.Annotatef(err, "case %d comment", n+1)
		}
		for _, arg := range c.Args {
			if _, _, _, err := shellout.Interpolate(arg, vars); err != nil {
				return errors.Annotatef(err, "case %d args", n+1)
			}
		}
		for _, hook := range append(append([]string(nil), c.Before...), c.After...) {
			switch hook {
			case HookMakeScratch, HookRemoveScratch:
				if def.Scratch.Dir == "" {
					return errors.NotValidf("case %d hook %s without [scratch] dir", n+1, hook)
				}
			default:
				return errors.NotValidf("case %d hook %q", n+1, hook)
			}
		}
	}
	for n, rd := range def.Rules {
		if _, err := rd.Rule(); err != nil {
			return errors.Annotatef(err, "rule %d", n+1)
		}
	}
	return nil
}

// Expectation converts the case's expect and code fields into a
// golden.Expectation.
func (c Case) Expectation() (golden.Expectation, error) {
	switch strings.ToLower(c.Expect) {
	case "success":
		if c.Code != 0 {
			return golden.Expectation{}, errors.NotValidf("expect success with code %d", c.Code)
		}
		return golden.ExpectSuccess(), nil
	case "failure":
		if c.Code < 0 {
			return golden.Expectation{}, errors.NotValidf("code %d", c.Code)
		}
		return golden.ExpectFailure(c.Code), nil
	case "":
		if c.Code == 0 {
			return golden.ExpectSuccess(), nil
		} else if c.Code < 0 {
			return golden.Expectation{}, errors.NotValidf("code %d", c.Code)
		}
		return golden.ExpectFailure(c.Code), nil
	}
	return golden.Expectation{}, errors.NotValidf("expect value %q", c.Expect)
}

// Rule converts the definition into a golden.Rule.
func (rd RuleDef) Rule() (golden.Rule, error) {
	switch strings.ToLower(rd.Kind) {
	case "mask":
		if rd.Marker == "" || rd.Literal == "" {
			return nil, errors.NotValidf("mask rule without marker and literal")
		}
		rule := golden.LiteralMask{Marker: rd.Marker, Literal: rd.Literal, Mask: rd.Mask}
		if err := rule.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
		return rule, nil
	case "replace":
		if rd.Marker == "" {
			return nil, errors.NotValidf("replace rule without marker")
		}
		return golden.LineReplace{Prefix: rd.Marker, Line: strings.TrimRight(rd.Line, "\r\n")}, nil
	case "regex":
		if rd.Pattern == "" {
			return nil, errors.NotValidf("regex rule without pattern")
		}
		rule, err := golden.NewRegexReplace(rd.Pattern, rd.Replacement)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return rule, nil
	}
	return nil, errors.NotValidf("rule kind %q", rd.Kind)
}

// placeholderVars returns a variable map with every name a scenario may
// reference, using dummy values. It is used for validation before any
// servers, ports, or scratch paths are known.
func placeholderVars(numServers int) map[string]string {
	vars := map[string]string{
		"PORT":    "0",
		"ID":      "0",
		"SCRATCH": "scratch",
		"TNUM":    "0",
		"UTILITY": "utility",
	}
	for n := 0; n < numServers; n++ {
		prefix := "SERVER" + strconv.Itoa(n)
		vars[prefix] = "user@host:0"
		vars[prefix+"_HOST"] = "host"
		vars[prefix+"_PORT"] = "0"
	}
	return vars
}
