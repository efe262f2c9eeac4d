package tree

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"mercator-hq/arbor/pkg/backend"
)

// Base is the origin of a native line or column number.
type Base int

const (
	ZeroBased Base = 0
	OneBased  Base = 1
)

func (b Base) String() string {
	if b == OneBased {
		return "1-based"
	}
	return "0-based"
}

// Adapter describes how one backend exchanges values with this layer.
type Adapter struct {
	// Unwrap converts the uniform Language into the backend's input. Nil
	// passes the *Language itself.
	Unwrap func(lang *Language) (any, error)

	// Lines and Columns are the bases of the backend's native points.
	Lines   Base
	Columns Base

	// Incremental is true when the backend's trees support Edit.
	Incremental bool
}

// Table is the per-backend-id dispatch table of adapters. Dispatch is
// always by id, never by probing a value's methods.
//
// Table is thread-safe and can be used concurrently.
type Table struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{adapters: make(map[string]Adapter)}
}

// Register sets the adapter of backend id, replacing any previous one.
func (t *Table) Register(id string, a Adapter) {
	id = backend.NormalizeID(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.adapters[id] = a
	slog.Debug("adapter registered",
		"backend", id,
		"lines", a.Lines,
		"columns", a.Columns,
		"incremental", a.Incremental,
	)
}

// Lookup returns the adapter of backend id.
func (t *Table) Lookup(id string) (Adapter, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	a, ok := t.adapters[backend.NormalizeID(id)]
	return a, ok
}

// Adapter returns the adapter of backend id, or the zero Adapter (0-based
// positions, Language passed through) when none is registered.
func (t *Table) Adapter(id string) Adapter {
	a, _ := t.Lookup(id)
	return a
}

// IDs returns the ids with a registered adapter, sorted.
func (t *Table) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Sorted(maps.Keys(t.adapters))
}

// Unwrap converts lang into the input backend id expects. Ids without an
// adapter or without an Unwrap function receive lang itself.
func (t *Table) Unwrap(id string, lang *Language) (any, error) {
	if lang == nil {
		return nil, &backend.InvalidConfigurationError{Reason: "language is nil"}
	}

	a, ok := t.Lookup(id)
	if !ok || a.Unwrap == nil {
		return lang, nil
	}
	return a.Unwrap(lang)
}
