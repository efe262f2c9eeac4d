package metrics

import (
	"mercator-hq/arbor/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics tracks the resolution journal.
//
// Metrics:
//   - arbor_journal_records_total: Records written by outcome
//   - arbor_journal_dropped_total: Records dropped because the buffer was full
//   - arbor_journal_pruned_total: Records removed by retention
type JournalMetrics struct {
	recordsTotal *prometheus.CounterVec
	droppedTotal prometheus.Counter
	prunedTotal  prometheus.Counter
}

// NewJournalMetrics creates and registers journal metrics.
func NewJournalMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JournalMetrics {
	jm := &JournalMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "journal",
				Name:      "records_total",
				Help:      "Total number of journal records written",
			},
			[]string{"outcome"},
		),
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "journal",
				Name:      "dropped_total",
				Help:      "Total number of journal records dropped",
			},
		),
		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "journal",
				Name:      "pruned_total",
				Help:      "Total number of journal records removed by retention",
			},
		),
	}

	registry.MustRegister(jm.recordsTotal, jm.droppedTotal, jm.prunedTotal)

	return jm
}

// RecordWritten records a stored journal record.
func (jm *JournalMetrics) RecordWritten(outcome string) {
	jm.recordsTotal.WithLabelValues(outcome).Inc()
}

// RecordDropped records a dropped journal record.
func (jm *JournalMetrics) RecordDropped() {
	jm.droppedTotal.Inc()
}

// RecordPruned records records removed by retention.
func (jm *JournalMetrics) RecordPruned(n int64) {
	jm.prunedTotal.Add(float64(n))
}
