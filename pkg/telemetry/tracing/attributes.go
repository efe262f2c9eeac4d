package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for arbor spans. Standard keys follow OpenTelemetry
// semantic conventions; domain keys use the "arbor.*" namespace.
const (
	AttrBackend          = "arbor.backend"
	AttrRequestedBackend = "arbor.backend.requested"
	AttrResource         = "arbor.resource"
	AttrResourceKey      = "arbor.resource.key"
	AttrOverride         = "arbor.override"
	AttrOverrideDepth    = "arbor.override.depth"
	AttrOutcome          = "arbor.outcome"
	AttrAttempts         = "arbor.attempts"

	AttrSourceBytes = "arbor.source.bytes"
	AttrTreeErrors  = "arbor.tree.errors"

	AttrCacheHit  = "arbor.cache.hit"
	AttrCacheName = "arbor.cache.name"

	AttrRequestID = "arbor.request_id"
)

// SetResolutionAttributes sets resolution attributes on a span.
//
// Example:
//
//	SetResolutionAttributes(span, "auto", "gotoml", "selected")
func SetResolutionAttributes(span trace.Span, requested, selected, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRequestedBackend, requested),
		attribute.String(AttrOutcome, outcome),
	}
	if selected != "" {
		attrs = append(attrs, attribute.String(AttrBackend, selected))
	}
	span.SetAttributes(attrs...)
}

// SetParseAttributes sets parse attributes on a span.
func SetParseAttributes(span trace.Span, resource, key string, sourceBytes int) {
	span.SetAttributes(
		attribute.String(AttrResource, resource),
		attribute.String(AttrResourceKey, key),
		attribute.Int(AttrSourceBytes, sourceBytes),
	)
}

// SetCacheAttributes sets cache-related attributes on a span.
func SetCacheAttributes(span trace.Span, hit bool, cacheName string) {
	span.SetAttributes(
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheName, cacheName),
	)
}

// AddEvent adds a named event to the span with optional attributes.
//
// Example:
//
//	AddEvent(span, "backend_skipped",
//	    attribute.String(AttrBackend, "goast"),
//	    attribute.String("reason", "not available"),
//	)
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// AttributeBuilder provides a fluent interface for building span attributes.
type AttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewAttributeBuilder creates a new attribute builder.
func NewAttributeBuilder() *AttributeBuilder {
	return &AttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 8),
	}
}

// WithBackend adds the backend id.
func (ab *AttributeBuilder) WithBackend(id string) *AttributeBuilder {
	if id != "" {
		ab.attrs = append(ab.attrs, attribute.String(AttrBackend, id))
	}
	return ab
}

// WithResource adds the resource name and key.
func (ab *AttributeBuilder) WithResource(resource, key string) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.String(AttrResource, resource))
	if key != "" {
		ab.attrs = append(ab.attrs, attribute.String(AttrResourceKey, key))
	}
	return ab
}

// WithOverride adds the active scoped override.
func (ab *AttributeBuilder) WithOverride(id string, depth int) *AttributeBuilder {
	if id != "" {
		ab.attrs = append(ab.attrs,
			attribute.String(AttrOverride, id),
			attribute.Int(AttrOverrideDepth, depth),
		)
	}
	return ab
}

// WithRequest adds the request id.
func (ab *AttributeBuilder) WithRequest(requestID string) *AttributeBuilder {
	if requestID != "" {
		ab.attrs = append(ab.attrs, attribute.String(AttrRequestID, requestID))
	}
	return ab
}

// Build returns the built attributes as a trace.SpanStartOption.
func (ab *AttributeBuilder) Build() trace.SpanStartOption {
	return trace.WithAttributes(ab.attrs...)
}

// Attributes returns the raw attribute slice.
func (ab *AttributeBuilder) Attributes() []attribute.KeyValue {
	return ab.attrs
}
