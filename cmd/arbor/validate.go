package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"mercator-hq/arbor/pkg/cli"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/setup"
)

var validateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting anything.

Beyond the field checks, the backends, resources and engine are assembled so
that unknown backend ids in the default, priority and conflict settings are
reported too. FILE defaults to --config.

Examples:
  arbor validate arbor.yaml
  arbor validate --config /etc/arbor/arbor.yaml -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// ValidationReport is the output of the validate command.
type ValidationReport struct {
	File      string   `json:"file" yaml:"file"`
	Valid     bool     `json:"valid" yaml:"valid"`
	Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Default   string   `json:"default,omitempty" yaml:"default,omitempty"`
	Priority  []string `json:"priority,omitempty" yaml:"priority,omitempty"`
	Available []string `json:"available,omitempty" yaml:"available,omitempty"`
	Resources []string `json:"resources,omitempty" yaml:"resources,omitempty"`
	Journal   bool     `json:"journal" yaml:"journal"`
}

// WriteText implements cli.TextWriter.
func (r ValidationReport) WriteText(w io.Writer) error {
	name := r.File
	if name == "" {
		name = "built-in defaults"
	}
	if !r.Valid {
		fmt.Fprintf(w, "✗ %s is invalid\n", name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		return nil
	}

	fmt.Fprintf(w, "✓ %s is valid\n\n", name)
	fmt.Fprintf(w, "Default:   %s\n", r.Default)
	fmt.Fprintf(w, "Priority:  %v\n", r.Priority)
	fmt.Fprintf(w, "Available: %v\n", r.Available)
	fmt.Fprintf(w, "Resources: %v\n", r.Resources)
	fmt.Fprintf(w, "Journal:   %v\n", r.Journal)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) == 1 {
		path = args[0]
	}

	report := validateConfig(path)
	if err := printResult(cmd, report); err != nil {
		return err
	}
	if !report.Valid {
		return cli.NewConfigError(path, fmt.Sprintf("%d problems found", len(report.Errors)))
	}
	return nil
}

func validateConfig(path string) ValidationReport {
	report := ValidationReport{File: path}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				report.Errors = append(report.Errors, fe.Error())
			}
		} else {
			report.Errors = append(report.Errors, err.Error())
		}
		return report
	}

	// Journal files are not created while validating.
	report.Journal = cfg.Journal.Enabled
	cfg.Journal.Enabled = false
	rt, err := setup.New(cfg, setup.WithLogWriter(io.Discard))
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	defer rt.Close(context.Background())

	ctx := context.Background()
	report.Valid = true
	report.Default = rt.Engine.ResolveEffective(ctx, "")
	report.Priority = rt.Engine.Priority()
	report.Available = rt.Engine.AvailableIDs()
	report.Resources = rt.Resources.Resources()
	return report
}
