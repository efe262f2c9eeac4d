package resolve

import (
	"slices"

	"mercator-hq/arbor/pkg/backend"
)

// BackendStatus describes one backend for listings.
type BackendStatus struct {
	ID           string               `json:"id"`
	Key          string               `json:"key"`
	Description  string               `json:"description,omitempty"`
	Available    bool                 `json:"available"`
	Used         bool                 `json:"used"`
	Default      bool                 `json:"default,omitempty"`
	Priority     int                  `json:"priority"`
	BlockedBy    []string             `json:"blocked_by,omitempty"`
	ConflictWith []string             `json:"conflicts_with,omitempty"`
	Capabilities backend.Capabilities `json:"capabilities,omitempty"`
}

// Status lists every registered backend in priority order.
func (e *Engine) Status() []BackendStatus {
	def := e.Default()
	order := e.Priority()

	out := make([]BackendStatus, 0, len(order))
	for i, id := range order {
		desc, ok := e.backends.Lookup(id)
		if !ok {
			continue
		}
		out = append(out, BackendStatus{
			ID:           desc.ID,
			Key:          desc.Key,
			Description:  desc.Description,
			Available:    e.Available(desc.ID),
			Used:         e.tracker.WasUsed(desc.ID),
			Default:      desc.ID == def,
			Priority:     i + 1,
			BlockedBy:    slices.Clone(desc.BlockedBy),
			ConflictWith: e.tracker.ConflictingFor(desc.ID),
			Capabilities: desc.Capabilities.Clone(),
		})
	}
	return out
}
