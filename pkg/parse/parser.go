// Package parse runs the full request flow: resolve a backend, fetch its
// producer for the resource, unwrap the Language, parse and normalize.
package parse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/journal"
	"mercator-hq/arbor/pkg/registry"
	"mercator-hq/arbor/pkg/resolve"
	"mercator-hq/arbor/pkg/telemetry/logging"
	"mercator-hq/arbor/pkg/telemetry/metrics"
	"mercator-hq/arbor/pkg/telemetry/tracing"
	"mercator-hq/arbor/pkg/tree"

	"go.opentelemetry.io/otel/attribute"
)

// Parser is the parse facade.
//
// Parser is thread-safe and can be used concurrently.
type Parser struct {
	engine    *resolve.Engine
	resources *registry.Registry
	adapters  *tree.Table

	metrics *metrics.Collector
	tracer  *tracing.Tracer
	journal journal.Sink
	logger  *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// WithMetrics reports parse durations and failures to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Parser) {
		p.metrics = c
	}
}

// WithTracer records a span per parse.
func WithTracer(t *tracing.Tracer) Option {
	return func(p *Parser) {
		p.tracer = t
	}
}

// WithJournal records producer failures.
func WithJournal(s journal.Sink) Option {
	return func(p *Parser) {
		p.journal = s
	}
}

// New creates a parser. A nil adapter table passes the Language through
// to every backend with 0-based positions.
func New(engine *resolve.Engine, resources *registry.Registry, adapters *tree.Table, opts ...Option) *Parser {
	if adapters == nil {
		adapters = tree.NewTable()
	}
	p := &Parser{
		engine:    engine,
		resources: resources,
		adapters:  adapters,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Engine returns the resolution engine.
func (p *Parser) Engine() *resolve.Engine { return p.engine }

// Resources returns the resource registry.
func (p *Parser) Resources() *registry.Registry { return p.resources }

// Adapters returns the adapter table.
func (p *Parser) Adapters() *tree.Table { return p.adapters }

type callOptions struct {
	backend string
}

// CallOption configures one Parse call.
type CallOption func(*callOptions)

// WithBackend sets the explicit backend id for the call.
func WithBackend(id string) CallOption {
	return func(o *callOptions) {
		o.backend = id
	}
}

// Parse parses src as lang.Name with the backend resolved for the call.
func (p *Parser) Parse(ctx context.Context, lang *tree.Language, src []byte, opts ...CallOption) (*tree.Tree, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	if lang == nil || lang.Name == "" {
		return nil, &backend.InvalidConfigurationError{Reason: "language name is empty"}
	}
	resource := lang.Name
	if !p.resources.Has(resource) {
		return nil, &backend.NotFoundError{Resource: resource}
	}
	ctx = logging.WithResource(ctx, resource)

	desc, err := p.resolve(ctx, resource, co.backend)
	if err != nil {
		return nil, err
	}
	return p.parseWith(ctx, desc, lang, src, nil)
}

// resolve picks the backend for resource. Auto selection only considers
// backends that parse the resource under a key it registered. A concrete
// id that fails either test is NotAvailable and is rejected before usage
// is recorded.
func (p *Parser) resolve(ctx context.Context, resource, explicit string) (backend.Descriptor, error) {
	if err := p.precheck(ctx, resource, explicit); err != nil {
		return backend.Descriptor{}, err
	}
	return p.engine.ResolveFor(ctx, explicit, func(d backend.Descriptor) bool {
		return p.serves(resource, d)
	})
}

// Check reports the backend Parse would use for resource, without
// recording usage.
func (p *Parser) Check(ctx context.Context, resource, explicit string) (backend.Descriptor, error) {
	if !p.resources.Has(resource) {
		return backend.Descriptor{}, &backend.NotFoundError{Resource: resource}
	}
	if err := p.precheck(ctx, resource, explicit); err != nil {
		return backend.Descriptor{}, err
	}
	return p.engine.CheckFor(ctx, explicit, func(d backend.Descriptor) bool {
		return p.serves(resource, d)
	})
}

func (p *Parser) precheck(ctx context.Context, resource, explicit string) error {
	effective := p.engine.ResolveEffective(ctx, explicit)
	if effective != backend.Auto {
		if d, ok := p.engine.Backends().Lookup(effective); ok {
			if !d.Serves(resource) {
				return &backend.NotAvailableError{
					Backend: d.ID,
					Reason:  fmt.Sprintf("backend does not parse %s", resource),
				}
			}
			if !p.resources.HasKey(resource, d.Key) {
				return &backend.NotAvailableError{
					Backend: d.ID,
					Reason:  fmt.Sprintf("resource has no %s configuration", d.Key),
				}
			}
			if !p.resources.Accepts(resource, d) {
				return &backend.NotAvailableError{
					Backend: d.ID,
					Reason:  fmt.Sprintf("resource's %s producer is bound to another backend", d.Key),
				}
			}
		}
	}
	return nil
}

func (p *Parser) serves(resource string, d backend.Descriptor) bool {
	return d.Serves(resource) && p.resources.Accepts(resource, d)
}

func (p *Parser) parseWith(ctx context.Context, desc backend.Descriptor, lang *tree.Language, src []byte, old *tree.Tree) (*tree.Tree, error) {
	resource := lang.Name
	ctx = logging.WithBackend(ctx, desc.ID)

	ctx, span := p.tracer.Start(ctx, "arbor.parse")
	defer span.End()
	tracing.SetParseAttributes(span, resource, desc.Key, len(src))
	span.SetAttributes(attribute.String(tracing.AttrBackend, desc.ID))

	producer, err := p.resources.Producer(ctx, resource, desc)
	if err != nil {
		tracing.SetStatus(span, err)
		return nil, err
	}

	input, err := p.adapters.Unwrap(desc.ID, lang)
	if err != nil {
		tracing.SetStatus(span, err)
		return nil, fmt.Errorf("failed to unwrap language %s for %s: %w", resource, desc.ID, err)
	}

	start := time.Now()
	var raw backend.RawTree
	if rp, ok := producer.(backend.Reparser); ok && old != nil && old.Backend() == desc.ID {
		raw, err = rp.Reparse(ctx, input, src, old.Raw())
	} else {
		raw, err = producer.Parse(ctx, input, src)
	}
	duration := time.Since(start)

	if err != nil {
		perr := &backend.ParseError{Backend: desc.ID, Resource: resource, Err: err}
		p.failed(ctx, desc.ID, resource, perr, duration)
		tracing.SetStatus(span, perr)
		return nil, perr
	}

	adapter := p.adapters.Adapter(desc.ID)
	t, err := tree.Wrap(raw, tree.NewSource(src), desc.ID,
		tree.WithAdapter(adapter),
		tree.WithCapabilities(desc.Capabilities),
		tree.WithLanguage(lang),
	)
	if err != nil {
		p.failed(ctx, desc.ID, resource, err, duration)
		tracing.SetStatus(span, err)
		return nil, err
	}

	treeErrors := len(t.Errors())
	p.metrics.RecordParse(desc.ID, resource, duration, len(src), treeErrors)
	span.SetAttributes(attribute.Int(tracing.AttrTreeErrors, treeErrors))
	tracing.SetStatus(span, nil)

	p.logger.DebugContext(ctx, "source parsed",
		"bytes", len(src),
		"tree_errors", treeErrors,
		"duration", duration,
	)

	return t, nil
}

func (p *Parser) failed(ctx context.Context, backendID, resource string, err error, d time.Duration) {
	p.metrics.RecordParseError(backendID, resource)
	p.logger.ErrorContext(ctx, "parse failed", "error", err)

	if p.journal != nil {
		p.journal.Record(ctx, journal.Record{
			RequestID: logging.GetRequestID(ctx),
			Effective: backendID,
			Selected:  backendID,
			Resource:  resource,
			Outcome:   journal.OutcomeParseError,
			Reason:    err.Error(),
			Duration:  d,
		})
	}
}

// ParseWithFallback tries each backend id in chain in order. It moves to
// the next id only when the current one is not available, which includes
// a resource without a configuration for the backend's key. Any other
// error is returned at once. An empty chain is the effective id followed
// by every other backend serving the resource, in priority order.
//
// When every id is unavailable the result is a
// NoImplementationAvailableError listing each attempt.
func (p *Parser) ParseWithFallback(ctx context.Context, lang *tree.Language, src []byte, chain ...string) (*tree.Tree, error) {
	if lang == nil || lang.Name == "" {
		return nil, &backend.InvalidConfigurationError{Reason: "language name is empty"}
	}
	if !p.resources.Has(lang.Name) {
		return nil, &backend.NotFoundError{Resource: lang.Name}
	}
	if len(chain) == 0 {
		chain = p.DefaultChain(ctx, lang.Name)
	}

	var attempts []backend.Attempt
	for i, id := range chain {
		t, err := p.Parse(ctx, lang, src, WithBackend(id))
		if err == nil {
			if i > 0 {
				p.logger.WarnContext(ctx, "parsed with fallback backend",
					"resource", lang.Name,
					"backend", t.Backend(),
					"skipped", attempts,
				)
			}
			return t, nil
		}
		if !errors.Is(err, backend.ErrNotAvailable) {
			return nil, err
		}

		attempts = append(attempts, backend.Attempt{Backend: backend.NormalizeID(id), Reason: err.Error()})
		p.logger.DebugContext(ctx, "fallback candidate not available",
			"resource", lang.Name,
			"backend", id,
			"error", err,
		)
	}

	return nil, &backend.NoImplementationAvailableError{Attempts: attempts}
}

// DefaultChain returns the fallback chain used when none is given.
func (p *Parser) DefaultChain(ctx context.Context, resource string) []string {
	effective := p.engine.ResolveEffective(ctx, "")
	chain := []string{effective}
	if effective == backend.Auto {
		return chain
	}

	for _, id := range p.engine.Priority() {
		if id == effective || slices.Contains(chain, id) {
			continue
		}
		d, ok := p.engine.Backends().Lookup(id)
		if ok && p.serves(resource, d) {
			chain = append(chain, id)
		}
	}
	return chain
}

// Reparse parses newSrc after edit, using the backend and Language of
// old. The edit is applied to old first when its backend supports
// incremental edits, and producers that can reuse old trees receive it.
func (p *Parser) Reparse(ctx context.Context, old *tree.Tree, edit backend.InputEdit, newSrc []byte) (*tree.Tree, error) {
	if old == nil {
		return nil, &backend.InvalidConfigurationError{Reason: "no tree to reparse"}
	}
	lang := old.Language()
	if lang == nil {
		return nil, &backend.InvalidConfigurationError{Reason: "tree has no recorded language"}
	}

	backendID := old.Backend()
	if old.SupportsIncrementalEdit() {
		if err := old.Edit(edit); err != nil {
			return nil, err
		}
	} else {
		old = nil
	}

	ctx = logging.WithResource(ctx, lang.Name)
	desc, err := p.resolve(ctx, lang.Name, backendID)
	if err != nil {
		return nil, err
	}
	return p.parseWith(ctx, desc, lang, newSrc, old)
}
