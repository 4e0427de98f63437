package main

import (
	"os"

	"github.com/mysql-utilities/mut/internal/util"
	"github.com/skeema/mybase"
)

const version = "1.0.0"

const rootDesc = `mut runs golden-output regression scenarios against MySQL command-line
utilities. Each scenario invokes a utility with a series of inputs, captures
everything it prints, masks platform-dependent details, and compares the
result to a stored .result fixture.`

// CommandSuite is the root command. It is global so that subcommands can be
// added to it via init() functions in each subcommand's source file.
var CommandSuite = mybase.NewCommandSuite("mut", version, rootDesc)

func main() {
	defer panicHandler()
	util.AddGlobalOptions(CommandSuite)

	cfg, err := mybase.ParseCLI(CommandSuite, os.Args)
	if err != nil {
		Exit(NewExitValue(CodeBadUsage, err.Error()))
	}
	util.AddGlobalConfigFiles(cfg)
	if err := util.ProcessSpecialGlobalOptions(cfg); err != nil {
		Exit(WrapExitCode(CodeBadConfig, err))
	}
	Exit(cfg.HandleCommand())
}
