// Package setup assembles arbor from its configuration: the built-in
// backends, the resource registry, the resolution engine, the parse
// facade and the telemetry that observes them.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"

	"mercator-hq/arbor/pkg/conflict"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/journal"
	"mercator-hq/arbor/pkg/parse"
	"mercator-hq/arbor/pkg/registry"
	"mercator-hq/arbor/pkg/resolve"
	"mercator-hq/arbor/pkg/scope"
	"mercator-hq/arbor/pkg/telemetry/health"
	"mercator-hq/arbor/pkg/telemetry/logging"
	"mercator-hq/arbor/pkg/telemetry/metrics"
	"mercator-hq/arbor/pkg/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
)

// scheduleOff disables a cron schedule in configuration.
const scheduleOff = "off"

// Runtime holds every component built from one configuration.
type Runtime struct {
	Config    *config.Config
	Logger    *logging.Logger
	Metrics   *metrics.Collector
	Tracer    *tracing.Tracer
	Engine    *resolve.Engine
	Resources *registry.Registry
	Parser    *parse.Parser
	Health    *health.Checker

	// Store and Recorder are nil when the journal is disabled.
	Store     journal.Store
	Recorder  *journal.Recorder
	Retention *journal.Retention
}

type options struct {
	version  string
	logOut   io.Writer
	registry *prometheus.Registry
	builtins []Builtin
}

// Option configures New.
type Option func(*options)

// WithVersion sets the service version reported in traces.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithLogWriter sends logs to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logOut = w
	}
}

// WithPrometheusRegistry registers metrics with reg instead of a fresh
// registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithBuiltins replaces the built-in backend set.
func WithBuiltins(b []Builtin) Option {
	return func(o *options) {
		o.builtins = b
	}
}

// New builds a runtime from cfg. Defaults are applied to cfg first.
// Background jobs do not run until Start.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	config.ApplyDefaults(cfg)

	o := options{version: "dev", builtins: Builtins()}
	for _, opt := range opts {
		opt(&o)
	}

	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	logCfg.Writer = o.logOut
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log := logger.Slog()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, o.registry)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, o.version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Metrics: collector,
		Tracer:  tracer,
	}

	var sink journal.Sink
	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Driver, cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		rt.Store = store
		rt.Recorder = journal.NewRecorder(store, journal.RecorderConfig{
			BufferSize:   cfg.Journal.BufferSize,
			WriteTimeout: cfg.Journal.WriteTimeout,
		},
			journal.WithRecorderMetrics(collector),
			journal.WithRecorderLogger(log.With("component", "journal.recorder")),
		)
		schedule := cfg.Journal.PruneSchedule
		if schedule == scheduleOff {
			schedule = ""
		}
		rt.Retention = journal.NewRetention(store, cfg.Journal.RetentionDays, schedule, collector)
		sink = rt.Recorder
	}

	backends, adapters, err := Backends(o.builtins, cfg.Backends)
	if err != nil {
		rt.closeJournal(context.Background())
		return nil, err
	}

	tracker := conflict.NewTracker(backends)
	tracker.SetProtection(cfg.Engine.Protected())

	engineOpts := []resolve.Option{
		resolve.WithPriority(cfg.Engine.Priority...),
		resolve.WithDefault(cfg.Engine.DefaultBackend),
		resolve.WithMetrics(collector),
		resolve.WithTracer(tracer),
		resolve.WithLogger(log.With("component", "resolve")),
	}
	if sink != nil {
		engineOpts = append(engineOpts, resolve.WithJournal(sink))
	}
	engine, err := resolve.New(backends, tracker, engineOpts...)
	if err != nil {
		rt.closeJournal(context.Background())
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	rt.Engine = engine

	rt.Resources = registry.New(
		registry.WithCache(cfg.Cache.Size, cfg.Cache.TTL),
		registry.WithMetrics(collector),
		registry.WithLogger(log.With("component", "registry")),
	)
	if err := Resources(rt.Resources, cfg.Resources); err != nil {
		rt.closeJournal(context.Background())
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	parseOpts := []parse.Option{
		parse.WithLogger(log.With("component", "parse")),
		parse.WithMetrics(collector),
		parse.WithTracer(tracer),
	}
	if sink != nil {
		parseOpts = append(parseOpts, parse.WithJournal(sink))
	}
	rt.Parser = parse.New(engine, rt.Resources, adapters, parseOpts...)

	rt.Health = health.New(cfg.Telemetry.Health.CheckTimeout)
	rt.Health.RegisterCheck("backends", health.BackendsCheck(engine, cfg.Telemetry.Health.MinAvailableBackends))
	if rt.Store != nil {
		rt.Health.RegisterCheck("journal", health.PingCheck(rt.Store))
	}

	return rt, nil
}

// Start installs the scope observer and starts the availability refresh
// and journal retention schedules. They stop when ctx is done or on Close.
func (rt *Runtime) Start(ctx context.Context) error {
	scope.SetObserver(rt.Metrics)

	rt.Engine.Refresh()

	if err := rt.Engine.StartRefresh(ctx, rt.Config.Engine.AvailabilityRefresh); err != nil {
		return err
	}
	if rt.Retention != nil {
		if err := rt.Retention.Start(ctx); err != nil {
			return err
		}
	}

	rt.Logger.Info("arbor runtime started",
		"backends", rt.Engine.Backends().IDs(),
		"available", rt.Engine.AvailableIDs(),
		"default", rt.Engine.ResolveEffective(ctx, ""),
		"journal", rt.Store != nil,
	)
	return nil
}

// Apply updates the engine settings, log level and resource table from a
// reloaded configuration. Backend enablement and conflict tables are fixed
// at construction and require a restart.
func (rt *Runtime) Apply(cfg *config.Config) error {
	config.ApplyDefaults(cfg)

	if err := rt.Engine.SetPriority(cfg.Engine.Priority); err != nil {
		return fmt.Errorf("engine.priority: %w", err)
	}
	if err := rt.Engine.SetDefault(cfg.Engine.DefaultBackend); err != nil {
		return fmt.Errorf("engine.default_backend: %w", err)
	}
	rt.Engine.Tracker().SetProtection(cfg.Engine.Protected())

	if err := rt.Logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
		return fmt.Errorf("telemetry.logging.level: %w", err)
	}
	if err := ConfigResources(rt.Resources, cfg.Resources); err != nil {
		return err
	}

	rt.Config = cfg
	rt.Logger.Info("configuration applied",
		"default", cfg.Engine.DefaultBackend,
		"protect_conflicts", cfg.Engine.Protected(),
		"resources", len(cfg.Resources),
	)
	return nil
}

// Close stops background jobs, drains the journal and shuts the tracer
// down. Errors from each step are joined.
func (rt *Runtime) Close(ctx context.Context) error {
	scope.SetObserver(nil)
	rt.Engine.StopRefresh()

	var errs []error
	if err := rt.closeJournal(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := rt.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}
	return errors.Join(errs...)
}

func (rt *Runtime) closeJournal(ctx context.Context) error {
	if rt.Store == nil {
		return nil
	}
	if rt.Retention != nil {
		rt.Retention.Stop()
	}

	var errs []error
	if rt.Recorder != nil {
		if err := rt.Recorder.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("journal recorder: %w", err))
		}
	}
	if err := rt.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("journal store: %w", err))
	}
	return errors.Join(errs...)
}
