package metrics

import (
	"time"

	"mercator-hq/arbor/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ParseMetrics tracks parse calls.
//
// Metrics:
//   - arbor_parse_duration_seconds: Parse latency by backend and resource
//   - arbor_parse_errors_total: Producer failures by backend and resource
//   - arbor_parse_tree_errors_total: Syntax errors reported inside trees
//   - arbor_parse_source_bytes: Size of parsed sources
type ParseMetrics struct {
	duration       *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	treeErrorTotal *prometheus.CounterVec
	sourceBytes    *prometheus.HistogramVec
}

// NewParseMetrics creates and registers parse metrics.
func NewParseMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ParseMetrics {
	pm := &ParseMetrics{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "parse",
				Name:      "duration_seconds",
				Help:      "Parse duration in seconds",
				Buckets:   cfg.ParseDurationBuckets,
			},
			[]string{"backend", "resource"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "parse",
				Name:      "errors_total",
				Help:      "Total number of failed parse calls",
			},
			[]string{"backend", "resource"},
		),

		treeErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "parse",
				Name:      "tree_errors_total",
				Help:      "Total number of syntax errors reported in parsed trees",
			},
			[]string{"backend"},
		),

		sourceBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "parse",
				Name:      "source_bytes",
				Help:      "Size of parsed sources in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(
		pm.duration,
		pm.errorsTotal,
		pm.treeErrorTotal,
		pm.sourceBytes,
	)

	return pm
}

// RecordParse records a successful parse.
func (pm *ParseMetrics) RecordParse(backend, resource string, duration time.Duration, sourceBytes, treeErrors int) {
	pm.duration.WithLabelValues(backend, resource).Observe(duration.Seconds())
	pm.sourceBytes.WithLabelValues(backend).Observe(float64(sourceBytes))
	if treeErrors > 0 {
		pm.treeErrorTotal.WithLabelValues(backend).Add(float64(treeErrors))
	}
}

// RecordError records a failed parse call.
func (pm *ParseMetrics) RecordError(backend, resource string) {
	pm.errorsTotal.WithLabelValues(backend, resource).Inc()
}
