package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"mercator-hq/arbor/pkg/config"
)

// ApplyFunc receives each successfully reloaded configuration.
type ApplyFunc func(cfg *config.Config) error

// ConfigReloader reloads the configuration file through the config
// singleton whenever it changes on disk, then hands the result to an
// ApplyFunc. A file that fails to load or validate keeps the previous
// configuration in place.
type ConfigReloader struct {
	path     string
	apply    ApplyFunc
	debounce time.Duration
	logger   *slog.Logger

	reloads  atomic.Int64
	failures atomic.Int64
}

// NewConfigReloader creates a reloader for the configuration file at path.
func NewConfigReloader(path string, debounce time.Duration, apply ApplyFunc, logger *slog.Logger) *ConfigReloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigReloader{
		path:     path,
		apply:    apply,
		debounce: debounce,
		logger:   logger.With("component", "watch.config"),
	}
}

// Reload loads the file once and applies it.
func (r *ConfigReloader) Reload() error {
	cfg, err := config.ReloadConfig(r.path)
	if err != nil {
		r.failures.Add(1)
		return err
	}
	if r.apply != nil {
		if err := r.apply(cfg); err != nil {
			r.failures.Add(1)
			return fmt.Errorf("failed to apply configuration: %w", err)
		}
	}
	r.reloads.Add(1)
	return nil
}

// Run watches the file until ctx is done.
func (r *ConfigReloader) Run(ctx context.Context) error {
	cfg := DefaultConfig()
	cfg.Paths = []string{r.path}
	if r.debounce > 0 {
		cfg.Debounce = r.debounce
	}

	fw, err := NewFileWatcher(cfg, r.logger)
	if err != nil {
		return err
	}

	return fw.Watch(ctx, func(paths []string) {
		if err := r.Reload(); err != nil {
			r.logger.Error("configuration reload failed", "path", r.path, "error", err)
			return
		}
		r.logger.Info("configuration reloaded", "path", r.path)
	})
}

// Reloads returns the number of successful reloads.
func (r *ConfigReloader) Reloads() int64 { return r.reloads.Load() }

// Failures returns the number of failed reloads.
func (r *ConfigReloader) Failures() int64 { return r.failures.Load() }
