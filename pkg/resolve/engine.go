// Package resolve decides which backend serves a request.
//
// The effective backend id is chosen by precedence: an explicit id, then
// the innermost scoped override, then the process default, then "auto".
// Auto selection walks the priority order and picks the first backend
// that is available and not blocked by a backend already used in this
// process.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/conflict"
	"mercator-hq/arbor/pkg/journal"
	"mercator-hq/arbor/pkg/scope"
	"mercator-hq/arbor/pkg/telemetry/logging"
	"mercator-hq/arbor/pkg/telemetry/metrics"
	"mercator-hq/arbor/pkg/telemetry/tracing"
)

// Skip reasons reported in backend.Attempt.
const (
	ReasonConflicted   = "conflicted"
	ReasonNotAvailable = "not available"
	ReasonIncompatible = "incompatible"
)

// Engine resolves backend ids to descriptors.
//
// Engine is thread-safe and can be used concurrently.
type Engine struct {
	backends *backend.Registry
	tracker  *conflict.Tracker

	mu       sync.RWMutex
	def      string
	priority []string

	availMu sync.Mutex
	avail   map[string]bool

	refresh *refresher

	metrics *metrics.Collector
	tracer  *tracing.Tracer
	journal journal.Sink
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPriority sets the auto selection order.
func WithPriority(ids ...string) Option {
	return func(e *Engine) {
		e.priority = normalizeIDs(ids)
	}
}

// WithDefault sets the process default backend id.
func WithDefault(id string) Option {
	return func(e *Engine) {
		e.def = backend.NormalizeID(id)
	}
}

// WithMetrics reports resolutions and availability to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// WithTracer records a span per resolution.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithJournal appends a journal record per resolution.
func WithJournal(s journal.Sink) Option {
	return func(e *Engine) {
		e.journal = s
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine over backends. The tracker decides conflicts; a
// nil tracker gets a fresh one over backends.
func New(backends *backend.Registry, tracker *conflict.Tracker, opts ...Option) (*Engine, error) {
	if backends == nil {
		return nil, &backend.InvalidConfigurationError{Reason: "backend registry is nil"}
	}
	if tracker == nil {
		tracker = conflict.NewTracker(backends)
	}

	e := &Engine{
		backends: backends,
		tracker:  tracker,
		avail:    make(map[string]bool),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.refresh = newRefresher(e)

	if e.def == backend.Auto {
		e.def = ""
	}
	if e.def != "" {
		if _, ok := backends.Lookup(e.def); !ok {
			return nil, e.unknown(e.def)
		}
	}
	for _, id := range e.priority {
		if _, ok := backends.Lookup(id); !ok {
			return nil, e.unknown(id)
		}
	}

	return e, nil
}

// Backends returns the implementation registry.
func (e *Engine) Backends() *backend.Registry { return e.backends }

// Tracker returns the conflict tracker.
func (e *Engine) Tracker() *conflict.Tracker { return e.tracker }

// ResolveEffective returns the id a request resolves against, without
// checking it: explicit, then the scoped override, then the default, then
// backend.Auto.
func (e *Engine) ResolveEffective(ctx context.Context, explicit string) string {
	if id := backend.NormalizeID(explicit); id != "" {
		return id
	}
	if id := scope.Override(ctx); id != "" {
		return id
	}
	if id := e.Default(); id != "" {
		return id
	}
	return backend.Auto
}

// Resolve returns the descriptor of the backend serving a request and
// records its usage.
func (e *Engine) Resolve(ctx context.Context, explicit string) (backend.Descriptor, error) {
	return e.ResolveFor(ctx, explicit, nil)
}

// ResolveFor is Resolve with an auto selection filter. Candidates rejected
// by accept are skipped as incompatible. Concrete ids are not filtered.
func (e *Engine) ResolveFor(ctx context.Context, explicit string, accept func(backend.Descriptor) bool) (backend.Descriptor, error) {
	start := time.Now()
	effective := e.ResolveEffective(ctx, explicit)

	ctx, span := e.tracer.Start(ctx, "arbor.resolve")
	defer span.End()

	// Usage is recorded here, before any producer is built.
	res := e.choose(effective, accept, true)

	tracing.SetResolutionAttributes(span, effective, res.desc.ID, string(res.outcome))
	tracing.SetStatus(span, res.err)

	e.report(ctx, explicit, effective, res, time.Since(start))

	if res.err != nil {
		return backend.Descriptor{}, res.err
	}
	return res.desc, nil
}

// Capabilities returns the capabilities of the backend Resolve would pick,
// without recording usage.
func (e *Engine) Capabilities(ctx context.Context, explicit string) (backend.Capabilities, error) {
	res := e.choose(e.ResolveEffective(ctx, explicit), nil, false)
	if res.err != nil {
		return nil, res.err
	}
	return res.desc.Capabilities.Clone(), nil
}

// Check reports whether explicit would resolve, without recording usage.
func (e *Engine) Check(ctx context.Context, explicit string) (backend.Descriptor, error) {
	return e.CheckFor(ctx, explicit, nil)
}

// CheckFor is Check with an auto selection filter, as in ResolveFor.
func (e *Engine) CheckFor(ctx context.Context, explicit string, accept func(backend.Descriptor) bool) (backend.Descriptor, error) {
	res := e.choose(e.ResolveEffective(ctx, explicit), accept, false)
	if res.err != nil {
		return backend.Descriptor{}, res.err
	}
	return res.desc, nil
}

type result struct {
	desc        backend.Descriptor
	outcome     journal.Outcome
	reason      string
	conflicting []string
	err         error
}

// choose picks the backend for effective. With acquire set, the winner is
// checked and recorded in the tracker atomically; otherwise the tracker is
// only read.
func (e *Engine) choose(effective string, accept func(backend.Descriptor) bool, acquire bool) result {
	if effective == backend.Auto {
		return e.chooseAuto(accept, acquire)
	}
	return e.chooseConcrete(effective, acquire)
}

// claim runs the conflict check for id, recording usage when acquire is
// set. It returns the conflicting ids along with the error.
func (e *Engine) claim(id string, acquire bool) ([]string, error) {
	var err error
	if acquire {
		err = e.tracker.Acquire(id)
	} else {
		err = e.tracker.CheckConflict(id)
	}
	if err == nil {
		return nil, nil
	}
	var ce *backend.ConflictError
	if errors.As(err, &ce) {
		return ce.ConflictingWith, err
	}
	return nil, err
}

func (e *Engine) chooseConcrete(id string, acquire bool) result {
	desc, ok := e.backends.Lookup(id)
	if !ok {
		err := e.unknown(id)
		return result{outcome: journal.OutcomeUnknown, reason: err.Error(), err: err}
	}

	conflictResult := func(conflicting []string, err error) result {
		return result{
			desc:        desc,
			outcome:     journal.OutcomeConflict,
			reason:      err.Error(),
			conflicting: conflicting,
			err:         err,
		}
	}

	// A conflict is reported ahead of unavailability.
	if conflicting, err := e.claim(desc.ID, false); err != nil {
		return conflictResult(conflicting, err)
	}

	if !e.Available(desc.ID) {
		reason := desc.Unavailable
		if reason == "" {
			reason = "availability check failed"
		}
		err := &backend.NotAvailableError{Backend: desc.ID, Reason: reason}
		return result{desc: desc, outcome: journal.OutcomeNotAvailable, reason: err.Error(), err: err}
	}

	// Another request may have claimed a conflicting backend during the
	// probe; Acquire settles it under the tracker lock.
	if acquire {
		if conflicting, err := e.claim(desc.ID, true); err != nil {
			return conflictResult(conflicting, err)
		}
	}

	return result{desc: desc, outcome: journal.OutcomeSelected}
}

func (e *Engine) chooseAuto(accept func(backend.Descriptor) bool, acquire bool) result {
	var attempts []backend.Attempt

	for _, id := range e.Priority() {
		desc, ok := e.backends.Lookup(id)
		if !ok {
			continue
		}

		if accept != nil && !accept(desc) {
			attempts = append(attempts, backend.Attempt{Backend: id, Reason: ReasonIncompatible})
			continue
		}
		skipConflicted := func(conflicting []string) {
			reason := fmt.Sprintf("%s with %s", ReasonConflicted, strings.Join(conflicting, ", "))
			attempts = append(attempts, backend.Attempt{Backend: id, Reason: reason})
			e.logger.Debug("auto candidate skipped", "backend", id, "reason", reason)
		}
		if conflicting, err := e.claim(id, false); err != nil {
			skipConflicted(conflicting)
			continue
		}
		if !e.Available(id) {
			reason := ReasonNotAvailable
			if desc.Unavailable != "" {
				reason += ": " + desc.Unavailable
			}
			attempts = append(attempts, backend.Attempt{Backend: id, Reason: reason})
			e.logger.Debug("auto candidate skipped", "backend", id, "reason", reason)
			continue
		}
		if acquire {
			if conflicting, err := e.claim(id, true); err != nil {
				skipConflicted(conflicting)
				continue
			}
		}

		return result{desc: desc, outcome: journal.OutcomeSelected}
	}

	err := &backend.NoImplementationAvailableError{Attempts: attempts}
	return result{outcome: journal.OutcomeExhausted, reason: err.Error(), err: err}
}

func (e *Engine) report(ctx context.Context, explicit, effective string, res result, d time.Duration) {
	label := res.desc.ID
	if label == "" {
		label = effective
	}
	e.metrics.RecordResolution(label, string(res.outcome))
	if res.outcome == journal.OutcomeConflict {
		e.metrics.RecordConflict(label, res.conflicting)
	}

	if res.err != nil {
		e.logger.DebugContext(ctx, "backend resolution failed",
			"requested", explicit,
			"effective", effective,
			"outcome", res.outcome,
			"error", res.err,
		)
	} else {
		e.logger.DebugContext(ctx, "backend resolved",
			"requested", explicit,
			"effective", effective,
			"backend", res.desc.ID,
			"override_depth", scope.Depth(ctx),
		)
	}

	if e.journal == nil {
		return
	}
	var selected string
	if res.err == nil {
		selected = res.desc.ID
	}
	e.journal.Record(ctx, journal.Record{
		RequestID:   logging.GetRequestID(ctx),
		Requested:   backend.NormalizeID(explicit),
		Effective:   effective,
		Selected:    selected,
		Resource:    logging.GetResource(ctx),
		Outcome:     res.outcome,
		Reason:      res.reason,
		Conflicting: res.conflicting,
		Duration:    d,
	})
}

// SetDefault sets the process default. Empty or "auto" clears it.
func (e *Engine) SetDefault(id string) error {
	id = backend.NormalizeID(id)
	if id == backend.Auto {
		id = ""
	}
	if id != "" {
		if _, ok := e.backends.Lookup(id); !ok {
			return e.unknown(id)
		}
	}

	e.mu.Lock()
	prev := e.def
	e.def = id
	e.mu.Unlock()

	if prev != id {
		e.logger.Info("default backend changed", "previous", prev, "default", id)
	}
	return nil
}

// Default returns the process default, or "" when auto selection applies.
func (e *Engine) Default() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.def
}

// SetPriority replaces the auto selection order.
func (e *Engine) SetPriority(ids []string) error {
	ids = normalizeIDs(ids)
	for _, id := range ids {
		if _, ok := e.backends.Lookup(id); !ok {
			return e.unknown(id)
		}
	}

	e.mu.Lock()
	e.priority = ids
	e.mu.Unlock()

	e.logger.Info("auto selection order changed", "priority", ids)
	return nil
}

// Priority returns the full auto selection order: the configured ids
// followed by every other registered backend in id order.
func (e *Engine) Priority() []string {
	e.mu.RLock()
	order := slices.Clone(e.priority)
	e.mu.RUnlock()

	for _, id := range e.backends.IDs() {
		if !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	return order
}

func (e *Engine) unknown(id string) error {
	return &backend.UnknownImplementationError{Backend: id, Known: e.backends.IDs()}
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = backend.NormalizeID(id)
		if id != "" && id != backend.Auto && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
