package scenario

import (
	"context"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/juju/errors"
	"github.com/mysql-utilities/mut/internal/golden"
	"github.com/mysql-utilities/mut/internal/servers"
	"github.com/mysql-utilities/mut/internal/shellout"
	log "github.com/sirupsen/logrus"
)

// Environment holds the run-time settings a Definition is bound to.
type Environment struct {
	Pool         *servers.Pool
	Utility      string // program path; overrides the definition's utility if set
	UtilDir      string // directory containing the definition's utility
	CheckServers bool   // connect to each required server during prerequisite checks
}

// Scenario is a Definition bound to an Environment. It satisfies the
// golden.Scenario interface.
type Scenario struct {
	def  *Definition
	env  Environment
	vars map[string]string
}

// Bind returns a Scenario which runs def's cases using env.
func Bind(def *Definition, env Environment) *Scenario {
	if env.Pool == nil {
		env.Pool = servers.NewPool(nil, 0, 0)
	}
	return &Scenario{def: def, env: env}
}

// Name returns the scenario's name, which is also the fixture name.
func (sc *Scenario) Name() string {
	return sc.def.Name
}

// Program returns the utility path or name that test cases will execute.
func (sc *Scenario) Program() string {
	if sc.env.Utility != "" {
		return sc.env.Utility
	} else if sc.env.UtilDir != "" {
		return filepath.Join(sc.env.UtilDir, sc.def.Utility)
	}
	return sc.def.Utility
}

// CheckPrerequisites verifies enough servers are configured, the utility can
// be found, and optionally that the servers accept connections.
func (sc *Scenario) CheckPrerequisites(ctx context.Context) error {
	if err := sc.env.Pool.CheckNumServers(sc.def.Servers); err != nil {
		return &golden.PrerequisiteError{Scenario: sc.Name(), Reason: err.Error()}
	}
	if _, err := exec.LookPath(sc.Program()); err != nil {
		return &golden.PrerequisiteError{Scenario: sc.Name(), Reason: "utility " + sc.Program() + " not found", Err: err}
	}
	if sc.env.CheckServers && sc.def.Servers > 0 {
		if err := sc.env.Pool.Ping(ctx, sc.def.Servers); err != nil {
			return &golden.PrerequisiteError{Scenario: sc.Name(), Reason: "server check failed", Err: err}
		}
	}
	return nil
}

// Setup registers the scenario's normalization rules with s, reserves a port
// and server id, and removes any stale scratch directory.
func (sc *Scenario) Setup(ctx context.Context, s *golden.Session) error {
	for n, rd := range sc.def.Rules {
		rule, err := rd.Rule()
		if err != nil {
			return errors.Annotatef(err, "rule %d", n+1)
		}
		s.AddRule(rule)
	}

	port, err := sc.env.Pool.NextPort()
	if err != nil {
		return errors.Trace(err)
	}
	vars := map[string]string{
		"PORT":    strconv.Itoa(port),
		"ID":      strconv.Itoa(sc.env.Pool.NextID()),
		"SCRATCH": s.ScratchPath(sc.def.Scratch.Dir),
		"UTILITY": sc.Program(),
	}
	for n, server := range sc.env.Pool.Servers() {
		prefix := "SERVER" + strconv.Itoa(n)
		vars[prefix] = server.ConnectionString()
		vars[prefix+"_HOST"] = server.Host
		vars[prefix+"_PORT"] = strconv.Itoa(server.Port)
	}
	sc.vars = vars
	log.Debugf("Scenario %s using port %s and server id %s", sc.Name(), vars["PORT"], vars["ID"])

	if sc.def.Scratch.Dir != "" {
		if err := s.RemoveScratchDir(sc.def.Scratch.Dir); err != nil {
			return errors.Annotatef(err, "removing stale scratch dir")
		}
	}
	return nil
}

// Run executes every case in order, stopping at the first failure.
func (sc *Scenario) Run(ctx context.Context, s *golden.Session) error {
	cases, err := sc.TestCases()
	if err != nil {
		return err
	}
	return s.RunCases(ctx, cases)
}

// TestCases converts the definition's cases into golden.TestCases, with all
// variables interpolated. Setup must be called first.
func (sc *Scenario) TestCases() ([]golden.TestCase, error) {
	if sc.vars == nil {
		return nil, errors.New("scenario variables not set up")
	}
	cases := make([]golden.TestCase, 0, len(sc.def.Cases))
	for n, c := range sc.def.Cases {
		vars := make(map[string]string, len(sc.vars)+1)
		for k, v := range sc.vars {
			vars[k] = v
		}
		vars["TNUM"] = strconv.Itoa(n + 1)

		expect, err := c.Expectation()
		if err != nil {
			return nil, errors.Annotatef(err, "case %d", n+1)
		}
		comment, _, _, err := shellout.Interpolate(c.Comment, vars)
		if err != nil {
			return nil, errors.Annotatef(err, "case %d comment", n+1)
		}
		cmd, err := shellout.New(sc.Program(), c.Args...).WithVariables(vars)
		if err != nil {
			return nil, errors.Annotatef(err, "case %d args", n+1)
		}
		tc := golden.TestCase{
			Command: cmd,
			Expect:  expect,
			Comment: comment,
		}
		if tc.Before, err = sc.hooks(c.Before); err != nil {
			return nil, errors.Annotatef(err, "case %d", n+1)
		}
		if tc.After, err = sc.hooks(c.After); err != nil {
			return nil, errors.Annotatef(err, "case %d", n+1)
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

func (sc *Scenario) hooks(names []string) ([]golden.Hook, error) {
	var hooks []golden.Hook
	scratch := sc.def.Scratch
	for _, name := range names {
		switch name {
		case HookMakeScratch:
			files := map[string]string{}
			if scratch.File != "" {
				files[scratch.File] = scratch.Contents
			}
			hooks = append(hooks, func(s *golden.Session) error {
				_, err := s.MakeScratchDir(scratch.Dir, files)
				return err
			})
		case HookRemoveScratch:
			hooks = append(hooks, func(s *golden.Session) error {
				return s.RemoveScratchDir(scratch.Dir)
			})
		default:
			return nil, errors.NotValidf("hook %q", name)
		}
	}
	return hooks, nil
}
