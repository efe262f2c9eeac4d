package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/arbor/pkg/backend"

	"github.com/robfig/cron/v3"
)

// RefreshOff disables periodic availability refresh.
const RefreshOff = "off"

// Available reports whether id passes its availability check. The result
// is memoized until Refresh; unknown ids are never available.
func (e *Engine) Available(id string) bool {
	id = backend.NormalizeID(id)

	e.availMu.Lock()
	ok, cached := e.avail[id]
	e.availMu.Unlock()
	if cached {
		return ok
	}

	desc, known := e.backends.Lookup(id)
	if !known {
		return false
	}
	ok = desc.IsAvailable()

	e.availMu.Lock()
	e.avail[id] = ok
	e.availMu.Unlock()

	e.metrics.SetBackendAvailable(id, ok)
	return ok
}

// Refresh clears the availability memo and probes every backend again.
// It returns the new availability per backend id.
func (e *Engine) Refresh() map[string]bool {
	e.availMu.Lock()
	clear(e.avail)
	e.availMu.Unlock()

	out := make(map[string]bool)
	for _, id := range e.backends.IDs() {
		out[id] = e.Available(id)
	}

	e.logger.Debug("backend availability refreshed", "available", e.availableFrom(out))
	return out
}

// AvailableIDs returns the ids of available backends, sorted.
func (e *Engine) AvailableIDs() []string {
	out := make(map[string]bool)
	for _, id := range e.backends.IDs() {
		out[id] = e.Available(id)
	}
	return e.availableFrom(out)
}

func (e *Engine) availableFrom(m map[string]bool) []string {
	var ids []string
	for _, id := range e.backends.IDs() {
		if m[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// StartRefresh runs Refresh on a standard cron schedule until ctx is done
// or StopRefresh is called. An empty schedule or "off" does nothing.
func (e *Engine) StartRefresh(ctx context.Context, schedule string) error {
	return e.refresh.start(ctx, schedule)
}

// StopRefresh stops the refresh schedule.
func (e *Engine) StopRefresh() {
	e.refresh.stop()
}

type refresher struct {
	engine  *Engine
	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	logger  *slog.Logger
}

func newRefresher(e *Engine) *refresher {
	return &refresher{
		engine: e,
		logger: e.logger.With("component", "resolve.refresh"),
	}
}

func (r *refresher) start(ctx context.Context, schedule string) error {
	if schedule == "" || schedule == RefreshOff {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid availability refresh schedule %q: %w", schedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(schedule, func() { r.engine.Refresh() }); err != nil {
		return fmt.Errorf("failed to schedule availability refresh: %w", err)
	}
	r.cron.Start()
	r.running = true

	r.logger.Info("availability refresh started", "schedule", schedule)

	go func() {
		<-ctx.Done()
		r.stop()
	}()

	return nil
}

func (r *refresher) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("availability refresh stopped")
}
