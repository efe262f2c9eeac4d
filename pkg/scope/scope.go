// Package scope carries temporary backend overrides through a
// context.Context.
//
// An override is active for the duration of a body function and is only
// visible to contexts derived inside that body. Frames are immutable, so
// the caller's context is unchanged after the body returns, fails or
// panics, and two goroutines never observe each other's overrides.
//
//	tree, err := scope.WithOverride(ctx, "text", func(ctx context.Context) (*tree.Tree, error) {
//	    return parser.Parse(ctx, lang, src)
//	})
package scope

import (
	"context"
	"sync/atomic"

	"mercator-hq/arbor/pkg/backend"
)

type contextKey struct{}

// Context is the override state visible to one execution unit.
// Depth is zero exactly when Override is empty.
type Context struct {
	Override string
	Depth    int
}

type frame struct {
	override string
	depth    int
}

// Observer is notified when an override scope is entered and left.
type Observer interface {
	OverrideEntered(id string, depth int)
	OverrideExited(id string, depth int)
}

var observer atomic.Pointer[Observer]

// SetObserver installs a process-wide observer. Passing nil removes it.
func SetObserver(o Observer) {
	if o == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&o)
}

func currentObserver() Observer {
	if p := observer.Load(); p != nil {
		return *p
	}
	return nil
}

// Current returns the override state carried by ctx.
func Current(ctx context.Context) Context {
	if f, ok := ctx.Value(contextKey{}).(frame); ok {
		return Context{Override: f.override, Depth: f.depth}
	}
	return Context{}
}

// Override returns the innermost active override, or "" when none is set.
func Override(ctx context.Context) string {
	return Current(ctx).Override
}

// Depth returns the number of nested overrides active in ctx.
func Depth(ctx context.Context) int {
	return Current(ctx).Depth
}

// WithOverride runs body with id as the active override. The override
// shadows any outer one for the duration of body. The release step runs on
// every exit path, including panics, which are re-raised afterwards.
func WithOverride[T any](ctx context.Context, id string, body func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	id = backend.NormalizeID(id)
	if id == "" {
		return zero, &backend.InvalidConfigurationError{Reason: "override backend id is empty"}
	}

	parent := Current(ctx)
	inner := frame{override: id, depth: parent.Depth + 1}

	obs := currentObserver()
	if obs != nil {
		obs.OverrideEntered(id, inner.depth)
		defer obs.OverrideExited(id, inner.depth)
	}

	return body(context.WithValue(ctx, contextKey{}, inner))
}

// Do is WithOverride for bodies that only return an error.
func Do(ctx context.Context, id string, body func(ctx context.Context) error) error {
	_, err := WithOverride(ctx, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, body(ctx)
	})
	return err
}
