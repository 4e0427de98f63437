package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mysql-utilities/mut/internal/golden"
	"github.com/skeema/mybase"
)

func init() {
	summary := "Run scenarios and compare their output to fixtures"
	desc := "Runs the named built-in scenario, or every built-in scenario if none is named, " +
		"or the scenario in --scenario-file. Each test case's output is captured, normalized, " +
		"and compared to the scenario's .result file in --result-dir. Differences are printed " +
		"to STDOUT as a unified diff.\n\n" +
		"An exit code of 0 will be returned if every scenario passed; 1 if some output did not " +
		"match; 69 if a scenario's prerequisites were not met; or 2 if a scenario aborted."

	cmd := mybase.NewCommand("run", summary, desc, RunHandler)
	cmd.AddArg("scenario", "", false)
	CommandSuite.AddSubCommand(cmd)
}

// RunHandler is the handler method for `mut run`
func RunHandler(cfg *mybase.Config) error {
	return handleScenarios(cfg, golden.ModeCompare)
}

func handleScenarios(cfg *mybase.Config, mode golden.Mode) error {
	r, err := newRunner(cfg)
	if err != nil {
		return err
	}
	// Interrupting kills the running test case; cleanup still happens
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.executeAll(ctx, mode)
}
