package health

import (
	"context"
	"fmt"
)

// AvailabilityReporter lists backends whose availability check passes.
type AvailabilityReporter interface {
	AvailableIDs() []string
}

// BackendsCheck fails when fewer than min backends are available.
func BackendsCheck(r AvailabilityReporter, min int) CheckFunc {
	return func(ctx context.Context) error {
		available := r.AvailableIDs()
		if len(available) < min {
			return fmt.Errorf("%d backends available, need at least %d", len(available), min)
		}
		return nil
	}
}

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}
