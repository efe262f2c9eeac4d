package backend

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Registry is the static table of backend descriptors.
//
// Registry is thread-safe and can be used concurrently.
type Registry struct {
	descriptors map[string]Descriptor
	mu          sync.RWMutex
}

// NewRegistry creates a registry holding the given descriptors.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a descriptor. IDs are normalized; registering the same id
// twice is an error.
func (r *Registry) Register(d Descriptor) error {
	d.ID = NormalizeID(d.ID)
	if d.ID == "" {
		return &InvalidConfigurationError{Reason: "backend id is empty"}
	}
	if d.ID == Auto {
		return &InvalidConfigurationError{Reason: fmt.Sprintf("backend id %q is reserved", Auto)}
	}
	if d.Key == "" {
		return &InvalidConfigurationError{Reason: fmt.Sprintf("backend %q has no implementation key", d.ID)}
	}
	d.BlockedBy = slices.Clone(d.BlockedBy)
	for i, b := range d.BlockedBy {
		d.BlockedBy[i] = NormalizeID(b)
	}
	d.Capabilities = d.Capabilities.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.descriptors[d.ID]; ok {
		return &InvalidConfigurationError{Reason: fmt.Sprintf("backend %q already registered", d.ID)}
	}
	r.descriptors[d.ID] = d

	slog.Debug("backend registered",
		"backend", d.ID,
		"key", d.Key,
		"blocked_by", d.BlockedBy,
	)

	return nil
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[NormalizeID(id)]
	return d, ok
}

// Get returns the descriptor for id or an UnknownImplementationError.
func (r *Registry) Get(id string) (Descriptor, error) {
	if d, ok := r.Lookup(id); ok {
		return d, nil
	}
	return Descriptor{}, &UnknownImplementationError{Backend: NormalizeID(id), Known: r.IDs()}
}

// IDs returns all registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.descriptors))
}

// All returns all descriptors sorted by id.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.descriptors))
	for _, id := range slices.Sorted(maps.Keys(r.descriptors)) {
		out = append(out, r.descriptors[id])
	}
	return out
}

// ServingKey returns the ids of backends that serve key, sorted.
func (r *Registry) ServingKey(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, d := range r.descriptors {
		if d.Key == key {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.descriptors)
}
