package config

import (
	"slices"
	"time"
)

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultBackend             = "auto"
	DefaultProtectConflicts    = true
	DefaultAvailabilityRefresh = "*/5 * * * *"

	// Cache defaults
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Minute

	// Journal defaults
	DefaultJournalDriver        = "sqlite"
	DefaultJournalPath          = "data/journal.db"
	DefaultJournalBufferSize    = 1000
	DefaultJournalWriteTimeout  = 5 * time.Second
	DefaultJournalRetentionDays = 30
	DefaultJournalPruneSchedule = "0 3 * * *"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8470"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxSourceBytes  = int64(4 << 20)
	DefaultMaxTreeDepth    = 64

	// Watch defaults
	DefaultWatchDebounce = 100 * time.Millisecond

	// Telemetry defaults
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "arbor"
	DefaultMetricsCardinality   = 1000
	DefaultTracingSampler       = SamplerRatio
	DefaultTracingSampleRatio   = 0.1
	DefaultTracingServiceName   = "arbor"
	DefaultLivenessPath         = "/health/live"
	DefaultReadinessPath        = "/health/ready"
	DefaultHealthCheckTimeout   = 5 * time.Second
	DefaultMinAvailableBackends = 1
)

// DefaultPriority is the auto selection order of the built-in backends.
var DefaultPriority = []string{"gotoml", "yamlv3", "hcl", "goyaml", "burntsushi", "goast", "text"}

// DefaultParseDurationBuckets are histogram buckets tuned for in-memory
// parses of configuration-sized files.
var DefaultParseDurationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}

// NewDefault returns a configuration with every default applied.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields with their default values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.DefaultBackend == "" {
		cfg.Engine.DefaultBackend = DefaultBackend
	}
	if cfg.Engine.ProtectConflicts == nil {
		cfg.Engine.ProtectConflicts = Bool(DefaultProtectConflicts)
	}
	if len(cfg.Engine.Priority) == 0 {
		cfg.Engine.Priority = slices.Clone(DefaultPriority)
	}
	if cfg.Engine.AvailabilityRefresh == "" {
		cfg.Engine.AvailabilityRefresh = DefaultAvailabilityRefresh
	}

	if cfg.Backends == nil {
		cfg.Backends = make(map[string]BackendConfig)
	}
	if cfg.Resources == nil {
		cfg.Resources = make(map[string]map[string]ResourceConfig)
	}

	// Cache defaults
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = DefaultCacheSize
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}

	// Journal defaults
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = DefaultJournalDriver
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.Journal.BufferSize == 0 {
		cfg.Journal.BufferSize = DefaultJournalBufferSize
	}
	if cfg.Journal.WriteTimeout == 0 {
		cfg.Journal.WriteTimeout = DefaultJournalWriteTimeout
	}
	if cfg.Journal.RetentionDays == 0 {
		cfg.Journal.RetentionDays = DefaultJournalRetentionDays
	}
	if cfg.Journal.PruneSchedule == "" {
		cfg.Journal.PruneSchedule = DefaultJournalPruneSchedule
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxSourceBytes == 0 {
		cfg.Server.MaxSourceBytes = DefaultMaxSourceBytes
	}
	if cfg.Server.MaxTreeDepth == 0 {
		cfg.Server.MaxTreeDepth = DefaultMaxTreeDepth
	}

	// Watch defaults
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}

	if t.Metrics.Enabled == nil {
		t.Metrics.Enabled = Bool(true)
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.ParseDurationBuckets) == 0 {
		t.Metrics.ParseDurationBuckets = slices.Clone(DefaultParseDurationBuckets)
	}
	if t.Metrics.MaxCardinality == 0 {
		t.Metrics.MaxCardinality = DefaultMetricsCardinality
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
	if t.Health.MinAvailableBackends == 0 {
		t.Health.MinAvailableBackends = DefaultMinAvailableBackends
	}
}

// Trace samplers accepted by telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)
