// Package util contains option and terminal handling shared by the mut
// subcommands.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/skeema/mybase"
	"gopkg.in/natefinch/lumberjack.v2"
)

// AddGlobalOptions adds mut global options to the supplied mybase.Command.
// Typically cmd should be the top-level Command / Command Suite.
func AddGlobalOptions(cmd *mybase.Command) {
	cmd.AddOption(mybase.StringOption("utility", 0, "", "Path of the utility under test; overrides the scenario's utility name and --utildir"))
	cmd.AddOption(mybase.StringOption("utildir", 0, "", "Directory containing the utilities under test (default search $PATH)"))
	cmd.AddOption(mybase.StringOption("server", 's', "", "Comma-separated DSNs of running servers, e.g. root:pw@tcp(127.0.0.1:3306)/"))
	cmd.AddOption(mybase.StringOption("base-port", 0, "3310", "Lowest port handed out to servers created by scenarios"))
	cmd.AddOption(mybase.StringOption("start-id", 0, "100", "First server id handed out to servers created by scenarios"))
	cmd.AddOption(mybase.StringOption("result-dir", 'r', "r", "Directory holding .result fixture files"))
	cmd.AddOption(mybase.StringOption("scenario-file", 'f', "", "Load the scenario from this TOML file instead of the built-in scenarios"))
	cmd.AddOption(mybase.StringOption("timeout", 0, "2m", "Kill any single test case process running longer than this; 0 for no limit"))
	cmd.AddOption(mybase.StringOption("exit-codes", 0, "collapse", `How nonzero exit codes are checked: "collapse" treats all nonzero codes alike, "exact" requires the recorded code`))
	cmd.AddOption(mybase.BoolOption("check-servers", 0, false, "Connect to each required server before running a scenario"))
	cmd.AddOption(mybase.StringOption("scratch-root", 0, "", "Directory in which test cases run and scratch files are created (default current directory)"))
	cmd.AddOption(mybase.StringOption("log-file", 0, "", "Write log output to this file instead of STDERR"))
	cmd.AddOption(mybase.BoolOption("debug", 0, false, "Enable debug logging"))
}

// GlobalConfigFilePaths returns the option files read by AddGlobalConfigFiles,
// lowest priority first.
func GlobalConfigFilePaths(cfg *mybase.Config) []string {
	// Avoid real global paths in tests, so that a ~/.mut.cnf belonging to the
	// user running the tests has no effect
	if cfg.IsTest {
		return []string{"fake-etc/mut.cnf", "fake-home/.mut.cnf", ".mut"}
	}
	var paths []string
	if runtime.GOOS == "windows" {
		paths = append(paths, "C:\\Program Files\\mut\\mut.cnf")
	} else {
		paths = append(paths, "/etc/mut.cnf")
	}
	if home, err := os.UserHomeDir(); home != "" && err == nil {
		paths = append(paths, filepath.Join(home, ".mut.cnf"))
	}
	return append(paths, ".mut")
}

// AddGlobalConfigFiles takes the mybase.Config generated from the CLI and adds
// global option files as sources. Sectionless options apply to every command;
// a section named after the subcommand (e.g. [record]) applies only to that
// command.
func AddGlobalConfigFiles(cfg *mybase.Config) {
	for _, path := range GlobalConfigFilePaths(cfg) {
		f := mybase.NewFile(path)
		if !f.Exists() {
			continue
		}
		if err := f.Read(); err != nil {
			log.Warnf("Ignoring option file %s due to read error: %s", f.Path(), err)
			continue
		}
		if err := f.Parse(cfg); err != nil {
			log.Warnf("Ignoring option file %s due to parse error: %s", f.Path(), err)
			continue
		}
		_ = f.UseSection(cfg.CLI.Command.Name) // section need not exist
		cfg.AddSource(f)
	}
}

// ProcessSpecialGlobalOptions applies options that affect the process as a
// whole: debug logging and log file redirection. It also rejects malformed
// values of options that every command relies upon.
func ProcessSpecialGlobalOptions(cfg *mybase.Config) error {
	if cfg.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	if logFile := cfg.Get("log-file"); logFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:  logFile,
			LocalTime: true,
		})
	}
	if _, err := Timeout(cfg); err != nil {
		return err
	}
	for _, name := range []string{"base-port", "start-id"} {
		if n, err := cfg.GetInt(name); err != nil || n < 0 {
			return fmt.Errorf("Option %s must be a non-negative integer, instead found %q", name, cfg.Get(name))
		}
	}
	return nil
}

// Timeout returns the value of the timeout option. A bare integer is treated
// as a number of seconds.
func Timeout(cfg *mybase.Config) (time.Duration, error) {
	value := cfg.Get("timeout")
	if n, err := cfg.GetInt("timeout"); err == nil {
		value = fmt.Sprintf("%ds", n)
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("Option timeout must be a non-negative duration such as 90s or 2m, instead found %q", cfg.Get("timeout"))
	}
	return d, nil
}
