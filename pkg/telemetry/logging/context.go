package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// BackendKey is the context key for the selected backend id.
	BackendKey contextKey = "backend"

	// ResourceKey is the context key for the resource being parsed.
	ResourceKey contextKey = "resource"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithBackend adds a backend id to the context.
func WithBackend(ctx context.Context, backend string) context.Context {
	return context.WithValue(ctx, BackendKey, backend)
}

// GetBackend retrieves the backend id from the context.
func GetBackend(ctx context.Context) string {
	if backend, ok := ctx.Value(BackendKey).(string); ok {
		return backend
	}
	return ""
}

// WithResource adds a resource id to the context.
func WithResource(ctx context.Context, resource string) context.Context {
	return context.WithValue(ctx, ResourceKey, resource)
}

// GetResource retrieves the resource id from the context.
func GetResource(ctx context.Context) string {
	if resource, ok := ctx.Value(ResourceKey).(string); ok {
		return resource
	}
	return ""
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// contextAttrs extracts the known fields present in ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if requestID := GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), requestID))
	}
	if backend := GetBackend(ctx); backend != "" {
		attrs = append(attrs, slog.String(string(BackendKey), backend))
	}
	if resource := GetResource(ctx); resource != "" {
		attrs = append(attrs, slog.String(string(ResourceKey), resource))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		attrs = append(attrs, slog.String(string(TraceIDKey), traceID))
	}

	return attrs
}
