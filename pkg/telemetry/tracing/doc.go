// Package tracing provides OpenTelemetry tracing for arbor.
//
// # Overview
//
// Resolution and parsing are wrapped in spans ("engine.resolve",
// "parse.source") carrying the requested and selected backend, the resource
// and the outcome. Spans are exported over OTLP gRPC when an endpoint is
// configured; without one, spans are still created so trace ids reach the
// logs.
//
// # Sampling Strategies
//
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces by trace id
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "engine.resolve")
//	defer span.End()
//	tracing.SetResolutionAttributes(span, "auto", "gotoml", "ok")
package tracing
