// Package logging provides structured logging for arbor.
//
// The package wraps log/slog. Records logged with a context pick up the
// request id, backend and resource stored in that context:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	logging.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	ctx = logging.WithResource(ctx, "toml")
//	slog.InfoContext(ctx, "backend selected", "backend", "gotoml")
//
// Packages log through slog directly with key/value pairs; installing the
// logger with SetDefault is what attaches the context fields.
package logging
