package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mercator-hq/arbor/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the main orchestrator for all Prometheus metrics in arbor.
// It manages metric registration and provides a unified interface for
// recording metrics across the engine, the parse facade, the producer cache
// and the journal.
//
// All recording methods are safe to call on a nil *Collector, so components
// can take an optional collector without guarding every call site.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	resolutionMetrics *ResolutionMetrics
	parseMetrics      *ParseMetrics
	cacheMetrics      *CacheMetrics
	journalMetrics    *JournalMetrics

	// Cardinality tracking
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{Namespace: "arbor"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.ParseDurationBuckets) == 0 {
		cfg.ParseDurationBuckets = append([]float64(nil), config.DefaultParseDurationBuckets...)
	}
	maxCardinality := cfg.MaxCardinality
	if maxCardinality <= 0 {
		maxCardinality = config.DefaultMetricsCardinality
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(maxCardinality),
	}

	c.resolutionMetrics = NewResolutionMetrics(cfg, registry)
	c.parseMetrics = NewParseMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)
	c.journalMetrics = NewJournalMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.IsEnabled()
}

// RecordResolution records the outcome of one resolution.
//
// Parameters:
//   - backend: Requested or selected backend id ("auto" for failed auto resolution)
//   - outcome: "selected", "conflict", "unknown", "not_available" or "exhausted"
func (c *Collector) RecordResolution(backend, outcome string) {
	if !c.enabled() {
		return
	}

	// Backend ids come from user input on the HTTP surface.
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("resolution:%s:%s", backend, outcome)) {
		backend = "other"
	}

	c.resolutionMetrics.RecordResolution(backend, outcome)
}

// RecordConflict records a rejected resolution and the backends that blocked it.
func (c *Collector) RecordConflict(backend string, conflicting []string) {
	if !c.enabled() {
		return
	}

	c.resolutionMetrics.RecordConflict(backend, conflicting)
}

// SetBackendAvailable updates the availability gauge of a backend.
//
// The gauge is 1 when the backend's availability check passes, 0 otherwise.
func (c *Collector) SetBackendAvailable(backend string, available bool) {
	if !c.enabled() {
		return
	}

	c.resolutionMetrics.SetAvailable(backend, available)
}

// OverrideEntered implements scope.Observer.
func (c *Collector) OverrideEntered(id string, depth int) {
	if !c.enabled() {
		return
	}

	c.resolutionMetrics.OverrideEntered()
}

// OverrideExited implements scope.Observer.
func (c *Collector) OverrideExited(id string, depth int) {
	if !c.enabled() {
		return
	}

	c.resolutionMetrics.OverrideExited()
}

// RecordParse records metrics for a completed parse.
//
// Parameters:
//   - backend: Backend id that produced the tree
//   - resource: Resource name (e.g. "toml", "yaml")
//   - duration: Time spent in the producer
//   - sourceBytes: Size of the parsed source
//   - treeErrors: Number of syntax errors reported by the tree
func (c *Collector) RecordParse(backend, resource string, duration time.Duration, sourceBytes, treeErrors int) {
	if !c.enabled() {
		return
	}

	if !c.cardinalityLimiter.Allow(fmt.Sprintf("parse:%s:%s", backend, resource)) {
		resource = "other"
	}

	c.parseMetrics.RecordParse(backend, resource, duration, sourceBytes, treeErrors)
}

// RecordParseError records a producer failure.
func (c *Collector) RecordParseError(backend, resource string) {
	if !c.enabled() {
		return
	}

	if !c.cardinalityLimiter.Allow(fmt.Sprintf("parse:%s:%s", backend, resource)) {
		resource = "other"
	}

	c.parseMetrics.RecordError(backend, resource)
}

// RecordCacheHit records a cache hit.
//
// Parameters:
//   - cacheName: Name of the cache (e.g., "producer")
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.enabled() {
		return
	}

	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.enabled() {
		return
	}

	c.cacheMetrics.RecordMiss(cacheName)
}

// RecordCacheEviction records a cache eviction.
func (c *Collector) RecordCacheEviction(cacheName string) {
	if !c.enabled() {
		return
	}

	c.cacheMetrics.RecordEviction(cacheName)
}

// UpdateCacheSize updates the current size of a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.enabled() {
		return
	}

	c.cacheMetrics.UpdateSize(cacheName, size)
}

// RecordJournalRecord records a journal record written with the given outcome.
func (c *Collector) RecordJournalRecord(outcome string) {
	if !c.enabled() {
		return
	}

	c.journalMetrics.RecordWritten(outcome)
}

// RecordJournalDropped records a journal record dropped on a full buffer.
func (c *Collector) RecordJournalDropped() {
	if !c.enabled() {
		return
	}

	c.journalMetrics.RecordDropped()
}

// RecordJournalPruned records records removed by retention.
func (c *Collector) RecordJournalPruned(n int64) {
	if !c.enabled() || n <= 0 {
		return
	}

	c.journalMetrics.RecordPruned(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry, in OpenMetrics when the scraper
// asks for it. Gather errors are logged at warn level and the remaining
// series are still served.
func (c *Collector) Handler() http.Handler {
	logger := slog.Default().With("component", "metrics")
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	})
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
