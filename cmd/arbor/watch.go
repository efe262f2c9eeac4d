package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"mercator-hq/arbor/pkg/cli"
	"mercator-hq/arbor/pkg/parse"
	"mercator-hq/arbor/pkg/setup"
	"mercator-hq/arbor/pkg/watch"
)

var watchFlags struct {
	parseOptions
	all bool
}

var watchCmd = &cobra.Command{
	Use:   "watch PATH...",
	Short: "Re-parse files as they change",
	Long: `Watch files and directories and re-parse changed files, printing one
report per batch of changes. Directories are watched recursively. Unless
--all is given, only files with a known extension are watched.

Examples:
  arbor watch ./deploy
  arbor watch --backend goyaml values.yaml
  arbor watch --all -o json ./conf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchFlags.backend, "backend", "b", "", "explicit backend id")
	watchCmd.Flags().StringVarP(&watchFlags.resource, "resource", "r", "", "resource for every file (detected from the extension when empty)")
	watchCmd.Flags().BoolVar(&watchFlags.fallback, "fallback", false, "try other backends when the chosen one is not available")
	watchCmd.Flags().IntVarP(&watchFlags.jobs, "jobs", "j", 4, "files parsed concurrently")
	watchCmd.Flags().BoolVar(&watchFlags.all, "all", false, "watch files of every extension")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	if err := rt.Start(ctx); err != nil {
		return cli.NewCommandError("watch", err)
	}

	wcfg := watch.DefaultConfig()
	wcfg.Paths = args
	if rt.Config.Watch.Debounce > 0 {
		wcfg.Debounce = rt.Config.Watch.Debounce
	}
	if !watchFlags.all {
		wcfg.Extensions = slices.Sorted(maps.Keys(setup.Extensions))
	}

	fw, err := watch.NewFileWatcher(wcfg, rt.Logger.Slog())
	if err != nil {
		return cli.NewCommandError("watch", err)
	}

	files, err := fw.Files()
	if err != nil {
		return cli.NewCommandError("watch", err)
	}
	if err := reportChanges(ctx, cmd, rt.Parser, files); err != nil {
		return err
	}

	err = fw.Watch(ctx, func(paths []string) {
		if err := reportChanges(ctx, cmd, rt.Parser, paths); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
	})
	if err != nil && ctx.Err() == nil {
		return cli.NewCommandError("watch", err)
	}
	return nil
}

// reportChanges parses paths and prints the report. Removed files are
// skipped.
func reportChanges(ctx context.Context, cmd *cobra.Command, p *parse.Parser, paths []string) error {
	existing := slices.DeleteFunc(slices.Clone(paths), func(path string) bool {
		return !fileExists(path)
	})
	if len(existing) == 0 {
		return nil
	}

	report, err := parseFiles(ctx, p, existing, nil, watchFlags.parseOptions, cli.NoProgress{})
	if err != nil {
		return err
	}
	return printResult(cmd, report)
}
