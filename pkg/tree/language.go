package tree

import (
	"maps"

	"mercator-hq/arbor/pkg/backend"
)

// Language is the uniform parse input. Handles carries raw per-backend
// language handles keyed by backend id; backends that need none ignore
// them.
type Language struct {
	Name    string
	Handles map[string]any
}

// NewLanguage returns a Language without handles.
func NewLanguage(name string) *Language {
	return &Language{Name: name}
}

// WithHandle returns a copy of l carrying handle for backendID.
func (l *Language) WithHandle(backendID string, handle any) *Language {
	out := &Language{Name: l.Name, Handles: maps.Clone(l.Handles)}
	if out.Handles == nil {
		out.Handles = make(map[string]any)
	}
	out.Handles[backend.NormalizeID(backendID)] = handle
	return out
}

// Handle returns the raw handle registered for backendID.
func (l *Language) Handle(backendID string) (any, bool) {
	if l == nil || l.Handles == nil {
		return nil, false
	}
	h, ok := l.Handles[backend.NormalizeID(backendID)]
	return h, ok
}
