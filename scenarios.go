package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mysql-utilities/mut/internal/golden"
	"github.com/mysql-utilities/mut/internal/scenario"
	"github.com/mysql-utilities/mut/internal/servers"
	"github.com/mysql-utilities/mut/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/skeema/mybase"
)

// selectScenarios returns the definitions a command should operate on: the
// file named by --scenario-file, else the built-in scenario named by the
// command's scenario arg, else all built-in scenarios.
func selectScenarios(cfg *mybase.Config) ([]*scenario.Definition, error) {
	var name string
	if len(cfg.CLI.ArgValues) > 0 {
		name = cfg.CLI.ArgValues[0]
	}
	if path := cfg.Get("scenario-file"); path != "" {
		def, err := scenario.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if name != "" && name != def.Name {
			return nil, fmt.Errorf("Scenario file %s defines scenario %s, not %s", path, def.Name, name)
		}
		return []*scenario.Definition{def}, nil
	}
	if name != "" {
		def, err := scenario.Load(name)
		if err != nil {
			return nil, err
		}
		return []*scenario.Definition{def}, nil
	}
	var defs []*scenario.Definition
	for _, name := range scenario.Names() {
		def, err := scenario.Load(name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// runner holds everything needed to execute scenarios, as derived from the
// configuration.
type runner struct {
	defs    []*scenario.Definition
	env     scenario.Environment
	store   *golden.Store
	workDir string
	timeout time.Duration
	policy  golden.ExitPolicy
}

func newRunner(cfg *mybase.Config) (*runner, error) {
	r := &runner{
		store:   golden.NewStore(cfg.Get("result-dir")),
		workDir: cfg.Get("scratch-root"),
	}
	var err error
	if r.defs, err = selectScenarios(cfg); err != nil {
		return nil, WrapExitCode(CodeBadConfig, err)
	}
	if r.timeout, err = util.Timeout(cfg); err != nil {
		return nil, WrapExitCode(CodeBadConfig, err)
	}
	policy, err := cfg.GetEnum("exit-codes", "collapse", "exact")
	if err != nil {
		return nil, WrapExitCode(CodeBadConfig, err)
	}
	if r.policy, err = golden.ParseExitPolicy(policy); err != nil {
		return nil, WrapExitCode(CodeBadConfig, err)
	}
	pool, err := servers.ParsePool(cfg.GetSlice("server", ',', false), cfg.GetIntOrDefault("base-port"), cfg.GetIntOrDefault("start-id"))
	if err != nil {
		return nil, WrapExitCode(CodeBadConfig, err)
	}
	r.env = scenario.Environment{
		Pool:         pool,
		Utility:      cfg.Get("utility"),
		UtilDir:      cfg.Get("utildir"),
		CheckServers: cfg.GetBool("check-servers"),
	}
	return r, nil
}

// executeAll runs every selected scenario in mode, logging the outcome of
// each. The returned error carries the highest exit code of any scenario.
func (r *runner) executeAll(ctx context.Context, mode golden.Mode) error {
	var errs []error
	for _, def := range r.defs {
		if err := ctx.Err(); err != nil {
			return WrapExitCode(CodeFatalError, err)
		}
		if err := r.execute(ctx, def, mode); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	code := ExitCode(HighestExitCode(errs...))
	return NewExitValue(code, "%d of %d scenario(s) did not pass", len(errs), len(r.defs))
}

func (r *runner) execute(ctx context.Context, def *scenario.Definition, mode golden.Mode) error {
	sess, err := golden.NewSession(def.Name, r.workDir)
	if err != nil {
		return WrapExitCode(CodeBadConfig, fmt.Errorf("Unable to use scratch root for %s: %w", def.Name, err))
	}
	sess.Timeout = r.timeout
	sess.Policy = r.policy

	start := time.Now()
	log.Infof("Running scenario %s (%s)", def.Name, mode)
	state, err := golden.Execute(ctx, scenario.Bind(def, r.env), sess, mode, r.store)
	elapsed := time.Since(start).Round(time.Millisecond)
	for _, line := range summarizeRecords(sess.Records()) {
		log.Debugf("%s: %s", def.Name, line)
	}

	switch state {
	case golden.StatePassed:
		log.Infof("%s: %s in %s", def.Name, state, elapsed)
		return nil
	case golden.StateFailed:
		var omerr *golden.OutputMismatchError
		if errors.As(err, &omerr) {
			if diff := omerr.Diff(); diff != "" {
				fmt.Fprintln(os.Stdout, diff)
			}
		}
		log.Warnf("%s: %s: %s", def.Name, state, err)
	default:
		var emerr *golden.ExitStatusMismatchError
		if errors.As(err, &emerr) && emerr.Output != "" {
			log.Debugf("Output of `%s`:\n%s", emerr.Command, emerr.Output)
		}
		log.Errorf("%s: %s: %s", def.Name, state, err)
	}
	return err
}

// summarizeRecords returns one line per executed test case, describing how its
// process exited and how long it took.
func summarizeRecords(records []golden.RunRecord) []string {
	lines := make([]string, 0, len(records))
	for n, rec := range records {
		lines = append(lines, fmt.Sprintf("case %d exited %d (%s) after %s: %s", n+1, rec.ExitCode, rec.Class, rec.Duration.Round(time.Millisecond), rec.Case.Comment))
	}
	return lines
}
