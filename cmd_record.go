package main

import (
	"github.com/mysql-utilities/mut/internal/golden"
	"github.com/skeema/mybase"
)

func init() {
	summary := "Run scenarios and overwrite their fixtures"
	desc := "Runs scenarios exactly like `mut run`, but instead of comparing the normalized " +
		"output to each scenario's .result file, overwrites that file with it. Use this to " +
		"create a fixture for a new scenario, or to accept intentional changes in a utility's " +
		"output. Review the resulting changes before committing them.\n\n" +
		"A scenario whose test cases exit unexpectedly aborts without touching its fixture."

	cmd := mybase.NewCommand("record", summary, desc, RecordHandler)
	cmd.AddArg("scenario", "", false)
	CommandSuite.AddSubCommand(cmd)
}

// RecordHandler is the handler method for `mut record`
func RecordHandler(cfg *mybase.Config) error {
	return handleScenarios(cfg, golden.ModeRecord)
}
