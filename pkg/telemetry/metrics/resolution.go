package metrics

import (
	"mercator-hq/arbor/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolutionMetrics tracks backend resolution outcomes.
//
// Metrics:
//   - arbor_resolution_resolutions_total: Resolutions by backend and outcome
//   - arbor_resolution_conflicts_total: Conflicts by requested and blocking backend
//   - arbor_backend_available: Availability gauge per backend (1=available)
//   - arbor_scope_active_overrides: Scoped overrides currently active
type ResolutionMetrics struct {
	resolutionsTotal *prometheus.CounterVec
	conflictsTotal   *prometheus.CounterVec
	available        *prometheus.GaugeVec
	activeOverrides  prometheus.Gauge
}

// NewResolutionMetrics creates and registers resolution metrics.
func NewResolutionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ResolutionMetrics {
	rm := &ResolutionMetrics{
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "resolution",
				Name:      "resolutions_total",
				Help:      "Total number of backend resolutions by outcome",
			},
			[]string{"backend", "outcome"},
		),

		conflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "resolution",
				Name:      "conflicts_total",
				Help:      "Total number of resolutions rejected by a conflicting backend",
			},
			[]string{"backend", "conflicting"},
		),

		available: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "backend",
				Name:      "available",
				Help:      "Backend availability (1=available, 0=unavailable)",
			},
			[]string{"backend"},
		),

		activeOverrides: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "scope",
				Name:      "active_overrides",
				Help:      "Number of scoped backend overrides currently active",
			},
		),
	}

	registry.MustRegister(
		rm.resolutionsTotal,
		rm.conflictsTotal,
		rm.available,
		rm.activeOverrides,
	)

	return rm
}

// RecordResolution records one resolution outcome.
func (rm *ResolutionMetrics) RecordResolution(backend, outcome string) {
	rm.resolutionsTotal.WithLabelValues(backend, outcome).Inc()
}

// RecordConflict records a conflict with each blocking backend.
func (rm *ResolutionMetrics) RecordConflict(backend string, conflicting []string) {
	for _, c := range conflicting {
		rm.conflictsTotal.WithLabelValues(backend, c).Inc()
	}
}

// SetAvailable updates the availability gauge of a backend.
func (rm *ResolutionMetrics) SetAvailable(backend string, available bool) {
	value := 0.0
	if available {
		value = 1.0
	}
	rm.available.WithLabelValues(backend).Set(value)
}

// OverrideEntered increments the active override gauge.
func (rm *ResolutionMetrics) OverrideEntered() {
	rm.activeOverrides.Inc()
}

// OverrideExited decrements the active override gauge.
func (rm *ResolutionMetrics) OverrideExited() {
	rm.activeOverrides.Dec()
}
