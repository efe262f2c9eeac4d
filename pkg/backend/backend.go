package backend

import (
	"context"
	"maps"
	"slices"
	"strings"
)

// Auto is the effective id meaning "pick the first usable backend in
// priority order".
const Auto = "auto"

// Implementation-class keys used by the built-in backends. A resource
// registers one configuration per key; several backends may serve the
// same key.
const (
	KeyNative   = "native"
	KeyFallback = "fallback"
)

// Capability names reported by descriptors.
const (
	CapIncremental    = "incremental"
	CapSiblings       = "siblings"
	CapParent         = "parent"
	CapComments       = "comments"
	CapErrorRecovery  = "error_recovery"
	CapExactPositions = "exact_positions"
)

// Producer parses source for one resource configuration. lang is whatever
// the backend's unwrap function produced from the uniform Language.
type Producer interface {
	Parse(ctx context.Context, lang any, src []byte) (RawTree, error)
}

// Reparser is implemented by producers that can reuse an edited tree.
// old has already received every Edit describing the change to src.
type Reparser interface {
	Reparse(ctx context.Context, lang any, src []byte, old RawTree) (RawTree, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context, lang any, src []byte) (RawTree, error)

// Parse calls f.
func (f ProducerFunc) Parse(ctx context.Context, lang any, src []byte) (RawTree, error) {
	return f(ctx, lang, src)
}

// Config is the opaque per (resource, key) configuration blob.
type Config struct {
	// Producer is an optional pre-built producer. When set it must
	// implement Producer and Backend must name the backend it belongs to;
	// registration fails otherwise.
	Producer any

	// Backend binds a pre-built Producer to one backend id. Other backends
	// serving the same key are not available for the resource.
	Backend string

	// Handle is an optional raw language handle made available to
	// backends through the uniform Language.
	Handle any

	// Options are free-form backend options.
	Options map[string]string
}

// Option returns the named option or def when unset.
func (c Config) Option(name, def string) string {
	if v, ok := c.Options[name]; ok {
		return v
	}
	return def
}

// Clone returns a copy that does not share the options map.
func (c Config) Clone() Config {
	c.Options = maps.Clone(c.Options)
	return c
}

// Capabilities is a map of named capability values, usually booleans.
type Capabilities map[string]any

// Bool reports whether the named capability is set to true.
func (c Capabilities) Bool(name string) bool {
	v, ok := c[name].(bool)
	return ok && v
}

// Names returns the capability names in sorted order.
func (c Capabilities) Names() []string {
	return slices.Sorted(maps.Keys(c))
}

// Clone returns an independent copy.
func (c Capabilities) Clone() Capabilities {
	if c == nil {
		return Capabilities{}
	}
	return maps.Clone(c)
}

// Descriptor describes one pluggable backend.
type Descriptor struct {
	// ID is the unique, stable, lower-case backend id.
	ID string

	// Key is the implementation-class key this backend serves.
	Key string

	// Description is a human readable summary.
	Description string

	// Resources lists the resources the backend can parse. Empty means any.
	Resources []string

	// Available reports whether the backend can run. It may be expensive;
	// callers memoize it.
	Available func() bool

	// Unavailable explains a failing availability check, when known.
	Unavailable string

	// BlockedBy lists backends that must never run in the same process.
	// The table is not assumed to be symmetric.
	BlockedBy []string

	// Capabilities lists optional features.
	Capabilities Capabilities

	// New builds a producer for one resource configuration.
	New func(cfg Config) (Producer, error)
}

// IsAvailable calls Available, treating a nil predicate as always available.
func (d Descriptor) IsAvailable() bool {
	if d.Available == nil {
		return true
	}
	return d.Available()
}

// Blocks reports whether d lists id in its BlockedBy set.
func (d Descriptor) Blocks(id string) bool {
	id = NormalizeID(id)
	for _, b := range d.BlockedBy {
		if NormalizeID(b) == id {
			return true
		}
	}
	return false
}

// Serves reports whether d can parse resource.
func (d Descriptor) Serves(resource string) bool {
	return len(d.Resources) == 0 || slices.Contains(d.Resources, resource)
}

// Disabled returns a copy of d that is never available.
func (d Descriptor) Disabled(reason string) Descriptor {
	d.Available = func() bool { return false }
	d.Unavailable = reason
	return d
}

// WithBlockedBy returns a copy of d with ids added to BlockedBy.
func (d Descriptor) WithBlockedBy(ids ...string) Descriptor {
	blocked := slices.Clone(d.BlockedBy)
	for _, id := range ids {
		id = NormalizeID(id)
		if id != "" && !slices.Contains(blocked, id) {
			blocked = append(blocked, id)
		}
	}
	d.BlockedBy = blocked
	return d
}

// NormalizeID returns the canonical form of a backend id.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
