// Package conflict tracks which backends have run in this process and
// rejects backends that are declared incompatible with any of them.
package conflict

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"mercator-hq/arbor/pkg/backend"
)

// Lookup resolves a backend id to its descriptor.
// *backend.Registry satisfies it.
type Lookup interface {
	Lookup(id string) (backend.Descriptor, bool)
}

// Tracker holds the process-wide used set. Entries are only ever added;
// Reset exists for tests.
//
// Tracker is thread-safe and can be used concurrently.
type Tracker struct {
	lookup Lookup

	mu    sync.RWMutex
	used  map[string]struct{}
	order []string

	unprotected atomic.Bool
}

// NewTracker creates a tracker with conflict protection enabled.
func NewTracker(lookup Lookup) *Tracker {
	return &Tracker{
		lookup: lookup,
		used:   make(map[string]struct{}),
	}
}

// RecordUsage adds id to the used set. Recording the same id twice is a
// no-op.
func (t *Tracker) RecordUsage(id string) {
	id = backend.NormalizeID(id)
	if id == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.addLocked(id)
}

func (t *Tracker) addLocked(id string) {
	if _, ok := t.used[id]; ok {
		return
	}
	t.used[id] = struct{}{}
	t.order = append(t.order, id)

	slog.Debug("backend usage recorded", "backend", id, "used", len(t.order))
}

// WasUsed reports whether id is in the used set.
func (t *Tracker) WasUsed(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.used[backend.NormalizeID(id)]
	return ok
}

// Used returns the used set in first-use order.
func (t *Tracker) Used() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.order)
}

// ConflictingFor returns the used backends that block id or that id
// blocks. Both directions are checked because blocked-by tables are not
// guaranteed to be symmetric. The result is sorted.
func (t *Tracker) ConflictingFor(id string) []string {
	id = backend.NormalizeID(id)

	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.conflictingLocked(id)
}

// conflictingLocked must be called with t.mu held.
func (t *Tracker) conflictingLocked(id string) []string {
	self, hasSelf := t.lookup.Lookup(id)

	var conflicting []string
	for _, u := range t.order {
		if u == id {
			continue
		}
		blocked := hasSelf && self.Blocks(u)
		if !blocked {
			if other, ok := t.lookup.Lookup(u); ok && other.Blocks(id) {
				blocked = true
			}
		}
		if blocked {
			conflicting = append(conflicting, u)
		}
	}

	slices.Sort(conflicting)
	return conflicting
}

// Acquire checks id against the used set and records it in one step, so
// two incompatible backends racing for first use cannot both win. It
// returns a ConflictError, and records nothing, when protection is enabled
// and id conflicts with a used backend.
func (t *Tracker) Acquire(id string) error {
	id = backend.NormalizeID(id)
	if id == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Protected() {
		if conflicting := t.conflictingLocked(id); len(conflicting) > 0 {
			return &backend.ConflictError{Backend: id, ConflictingWith: conflicting}
		}
	}
	t.addLocked(id)
	return nil
}

// CheckConflict returns a ConflictError when protection is enabled and id
// conflicts with a used backend. With protection disabled it always
// returns nil.
func (t *Tracker) CheckConflict(id string) error {
	if !t.Protected() {
		return nil
	}

	conflicting := t.ConflictingFor(id)
	if len(conflicting) == 0 {
		return nil
	}

	return &backend.ConflictError{
		Backend:         backend.NormalizeID(id),
		ConflictingWith: conflicting,
	}
}

// SetProtection enables or disables conflict checking. Disabling it is an
// escape hatch for callers who accept the risk of loading incompatible
// backends together.
func (t *Tracker) SetProtection(enabled bool) {
	if t.unprotected.Swap(!enabled) == !enabled {
		return
	}
	if enabled {
		slog.Info("backend conflict protection enabled")
	} else {
		slog.Warn("backend conflict protection disabled")
	}
}

// Protected reports whether conflict checking is enabled.
func (t *Tracker) Protected() bool {
	return !t.unprotected.Load()
}

// Reset clears the used set and re-enables protection.
// Only tests call this; production code never removes usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.used = make(map[string]struct{})
	t.order = nil
	t.unprotected.Store(false)
}
