// Package metrics provides Prometheus metrics collection for arbor.
//
// # Overview
//
// The metrics package exposes counters, gauges and histograms for backend
// resolution, parsing, the producer cache and the resolution journal. Every
// metric lives in a private registry owned by the Collector, so tests and
// embedded engines never collide with the global Prometheus registry.
//
// # Metrics Categories
//
//   - Resolution Metrics: resolutions by outcome, conflicts, backend availability
//   - Scope Metrics: active scoped overrides
//   - Parse Metrics: duration, source size, failures and syntax errors
//   - Cache Metrics: producer cache hits, misses, evictions and size
//   - Journal Metrics: written, dropped and pruned records
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	scope.SetObserver(collector)
//
//	collector.RecordResolution("gotoml", "selected")
//	collector.RecordParse("gotoml", "toml", 2*time.Millisecond, 512, 0)
//
//	mux.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Backend ids and resource names can arrive from HTTP clients. Label
// combinations beyond MetricsConfig.MaxCardinality are folded into "other".
package metrics
