package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"mercator-hq/arbor/pkg/cli"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/server"
	"mercator-hq/arbor/pkg/setup"
	"mercator-hq/arbor/pkg/watch"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arbor HTTP API",
	Long: `Start the HTTP API with the specified configuration.

The server exposes parsing, backend status and resolution endpoints along
with metrics and health probes. With watch.config enabled, changes to the
configuration file are applied without a restart.

Examples:
  # Start with default config
  arbor serve

  # Start with custom config
  arbor serve --config /etc/arbor/arbor.yaml

  # Override listen address
  arbor serve --listen 0.0.0.0:8470

  # Validate config without starting server
  arbor serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	rt, err := setup.New(cfg, setup.WithVersion(Version))
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			rt.Logger.Error("shutdown failed", "error", err)
		}
	}()

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := rt.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(rt)
	g.Go(func() error {
		// The server returning ends the reloader too.
		defer cancel()
		return srv.Start(ctx)
	})

	if path := config.ConfigPath(); cfg.Watch.Config && path != "" {
		reloader := watch.NewConfigReloader(path, cfg.Watch.Debounce, rt.Apply, rt.Logger.Slog())
		g.Go(func() error {
			return reloader.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}
