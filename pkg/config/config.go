package config

import "time"

// Config is the root configuration structure for arbor.
// It contains the resolution engine settings, backend and resource
// tables, caching, the resolution journal, the HTTP server and telemetry.
type Config struct {
	// Engine contains resolution engine settings: the process default
	// backend, conflict protection and the auto selection order.
	Engine EngineConfig `yaml:"engine"`

	// Backends contains per-backend settings keyed by backend id.
	Backends map[string]BackendConfig `yaml:"backends"`

	// Resources contains extra resource registrations keyed by resource id,
	// then by implementation key.
	Resources map[string]map[string]ResourceConfig `yaml:"resources"`

	// Cache contains producer cache settings.
	Cache CacheConfig `yaml:"cache"`

	// Journal contains resolution journal storage and retention settings.
	Journal JournalConfig `yaml:"journal"`

	// Server contains HTTP API server settings.
	Server ServerConfig `yaml:"server"`

	// Watch contains file watching settings.
	Watch WatchConfig `yaml:"watch"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains resolution engine settings.
type EngineConfig struct {
	// DefaultBackend is the process-wide default backend id.
	// Empty or "auto" means auto selection.
	// Default: "auto"
	DefaultBackend string `yaml:"default_backend"`

	// ProtectConflicts enables the conflict check before a backend is used.
	// Default: true
	ProtectConflicts *bool `yaml:"protect_conflicts"`

	// Priority is the auto selection order. Registered backends missing
	// from the list are tried afterwards in id order.
	// Default: [gotoml, yamlv3, hcl, goyaml, burntsushi, goast, text]
	Priority []string `yaml:"priority"`

	// AvailabilityRefresh is a cron schedule for re-probing backend
	// availability. "off" disables periodic refresh.
	// Default: "*/5 * * * *"
	AvailabilityRefresh string `yaml:"availability_refresh"`
}

// Protected returns the effective conflict protection setting.
func (e EngineConfig) Protected() bool {
	return BoolValue(e.ProtectConflicts, DefaultProtectConflicts)
}

// BackendConfig contains settings for one backend.
type BackendConfig struct {
	// Enabled makes the backend available. A disabled backend reports
	// NotAvailable.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// BlockedBy lists backends that must never run in the same process as
	// this one.
	BlockedBy []string `yaml:"blocked_by"`
}

// IsEnabled returns the effective enabled setting.
func (b BackendConfig) IsEnabled() bool {
	return BoolValue(b.Enabled, true)
}

// ResourceConfig contains one resource registration under one
// implementation key.
type ResourceConfig struct {
	// Options are passed to the backend producer.
	Options map[string]string `yaml:"options"`
}

// CacheConfig contains producer cache settings.
type CacheConfig struct {
	// Size is the maximum number of cached producers. Zero means unlimited.
	// Default: 256
	Size int `yaml:"size"`

	// TTL is the lifetime of a cached producer.
	// Default: 30m
	TTL time.Duration `yaml:"ttl"`
}

// JournalConfig contains resolution journal settings.
type JournalConfig struct {
	// Enabled controls whether resolutions are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Driver selects the SQLite driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file. ":memory:" keeps records in memory.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// BufferSize is the async recorder channel size.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds a single journal write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays is how long records are kept. Zero keeps them forever.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron schedule for retention pruning.
	// "off" disables scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// ServerConfig contains HTTP API server settings.
type ServerConfig struct {
	// ListenAddress is the address and port for the API to listen on.
	// Default: "127.0.0.1:8470"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum keep-alive idle time.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxSourceBytes is the largest source accepted by the parse endpoint.
	// Default: 4MiB
	MaxSourceBytes int64 `yaml:"max_source_bytes"`

	// MaxTreeDepth limits the depth of trees rendered in responses.
	// Default: 64
	MaxTreeDepth int `yaml:"max_tree_depth"`
}

// WatchConfig contains file watching settings.
type WatchConfig struct {
	// Config enables reloading the configuration file on change.
	// Default: false
	Config bool `yaml:"config"`

	// Debounce is the quiet period before a change is acted upon.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "arbor"
	Namespace string `yaml:"namespace"`

	// ParseDurationBuckets defines histogram buckets for parse duration (seconds).
	// Default: [0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1]
	ParseDurationBuckets []float64 `yaml:"parse_duration_buckets"`

	// MaxCardinality caps the number of distinct resource label values.
	// Default: 1000
	MaxCardinality int `yaml:"max_cardinality"`
}

// IsEnabled returns the effective enabled setting.
func (m MetricsConfig) IsEnabled() bool {
	return BoolValue(m.Enabled, true)
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// ServiceName is the service name in traces.
	// Default: "arbor"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health/live"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/health/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// MinAvailableBackends is the number of available backends required
	// for readiness.
	// Default: 1
	MinAvailableBackends int `yaml:"min_available_backends"`
}

// BoolValue dereferences p, returning def when p is nil.
func BoolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
