// Package server provides the arbor HTTP API.
//
// # Endpoints
//
//	POST /v1/parse      parse a source; the body is a ParseRequest
//	GET  /v1/backends   list backends with availability, usage and conflicts
//	GET  /v1/resolve    report the backend a request would use (?backend=&resource=)
//	GET  /metrics       Prometheus metrics, when enabled
//	GET  /health/live   liveness probe
//	GET  /health/ready  readiness probe
//
// A parse response is a tree.View: the node tree up to the depth limit,
// followed by the backend's errors, warnings and comments. Errors are
// returned as an ErrorBody whose code follows the engine error:
//
//	not_found               404  unknown resource
//	unknown_backend         400  unknown backend id
//	invalid_configuration   400
//	conflict                409  backend blocked by one already used
//	not_available           503
//	no_backend_available    503  auto selection exhausted; attempts listed
//	parse_failed            422  the producer failed
//
// Syntax errors in the source are not request errors: the tree is returned
// with its errors listed.
//
// # Usage
//
//	rt, err := setup.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(rt)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Every request carries an X-Request-ID, generated when the client sends
// none, which the context-aware logger attaches to each log line.
package server
