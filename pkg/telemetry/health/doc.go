// Package health provides liveness and readiness probes for arbor.
//
// Liveness only reports that the process is up. Readiness runs every
// registered check concurrently, each bounded by the configured timeout:
// the standard checks verify that enough backends pass their availability
// check and that the journal store answers a ping.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("backends", health.BackendsCheck(engine, 1))
//	mux.HandleFunc(cfg.Telemetry.Health.ReadinessPath, checker.ReadinessHandler())
package health
