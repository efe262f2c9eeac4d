// Package telemetry groups arbor's observability packages.
//
// # Components
//
//   - logging: Structured slog logging with request, backend and resource context
//   - metrics: Prometheus metrics for resolution, parsing, caching and the journal
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: Liveness and readiness probes
//
// The components are wired together by pkg/setup; nothing in this package
// itself is imported at runtime.
package telemetry
