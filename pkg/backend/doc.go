// Package backend defines the contracts shared by pluggable parsing backends.
//
// A backend is described by a Descriptor: a stable id, the implementation
// key it serves, an availability predicate, a blocked-by set, capability
// flags and a constructor for producers. Descriptors live in a Registry,
// which is populated once at startup.
//
// Producers return raw trees. Raw nodes come in two shapes, the RawNode
// record interface and plain map[string]any key-value nodes; the tree
// package accepts both.
//
// # Errors
//
// All failures are typed errors that match a sentinel with errors.Is:
//
//	if errors.Is(err, backend.ErrConflict) {
//	    var ce *backend.ConflictError
//	    errors.As(err, &ce)
//	    // ce.ConflictingWith names the already used backends
//	}
package backend
