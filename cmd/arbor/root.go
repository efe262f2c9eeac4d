package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/arbor/pkg/cli"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/setup"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor - parser backend resolution and normalized syntax trees",
	Long: `Arbor parses configuration and source files through interchangeable
parser backends and normalizes every result into one tree model.

Backends are chosen per call in this order:
  - an explicit --backend
  - a scoped override
  - the configured default backend
  - automatic selection by priority among available, unconflicted backends

Built-in backends cover TOML, YAML, HCL, Go and plain text.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml, csv")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration file and applies the verbose flag.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("config", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newRuntime builds the runtime for one-shot commands. Logs go to stderr
// only with --verbose, keeping stdout for results.
func newRuntime() (*setup.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var logOut io.Writer = io.Discard
	if verbose {
		logOut = os.Stderr
	}
	rt, err := setup.New(cfg, setup.WithVersion(Version), setup.WithLogWriter(logOut))
	if err != nil {
		return nil, cli.NewCommandError("setup", err)
	}
	return rt, nil
}

// printResult writes result to stdout in the selected output format.
func printResult(cmd *cobra.Command, result any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
}
