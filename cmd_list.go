package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mysql-utilities/mut/internal/golden"
	"github.com/mysql-utilities/mut/internal/scenario"
	"github.com/mysql-utilities/mut/internal/util"
	"github.com/skeema/mybase"
)

func init() {
	summary := "List available scenarios"
	desc := "Lists the built-in scenarios, or the scenario in --scenario-file, along with " +
		"each scenario's description, utility, server requirement, and whether its fixture " +
		"exists in --result-dir."

	cmd := mybase.NewCommand("list", summary, desc, ListHandler)
	CommandSuite.AddSubCommand(cmd)
}

// ListHandler is the handler method for `mut list`
func ListHandler(cfg *mybase.Config) error {
	defs, err := selectScenarios(cfg)
	if err != nil {
		return WrapExitCode(CodeBadConfig, err)
	}
	return listScenarios(cfg, defs, os.Stdout, util.OutputWidth(os.Stdout))
}

func listScenarios(cfg *mybase.Config, defs []*scenario.Definition, w io.Writer, width int) error {
	store := golden.NewStore(cfg.Get("result-dir"))
	for n, def := range defs {
		if n > 0 {
			fmt.Fprintln(w)
		}
		fixture := "fixture " + store.Path(def.Name)
		if !store.Exists(def.Name) {
			fixture += " (missing)"
		}
		fmt.Fprintln(w, def.Name)
		if def.Description != "" {
			fmt.Fprintln(w, util.Indent(def.Description, width, "    "))
		}
		fmt.Fprintf(w, "    utility %s, %d case(s), %d server(s) required\n", def.Utility, len(def.Cases), def.Servers)
		fmt.Fprintf(w, "    %s\n", fixture)
	}
	return nil
}
