package journal

import (
	"context"
	"errors"
	"time"
)

// Outcome classifies a journal record.
type Outcome string

// Outcomes recorded by the engine and the parse facade.
const (
	OutcomeSelected     Outcome = "selected"
	OutcomeConflict     Outcome = "conflict"
	OutcomeNotAvailable Outcome = "not_available"
	OutcomeUnknown      Outcome = "unknown"
	OutcomeExhausted    Outcome = "exhausted"
	OutcomeParseError   Outcome = "parse_error"
)

// Record is one journal entry.
type Record struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	RequestID   string        `json:"request_id,omitempty"`
	Requested   string        `json:"requested,omitempty"`
	Effective   string        `json:"effective"`
	Selected    string        `json:"selected,omitempty"`
	Resource    string        `json:"resource,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	Reason      string        `json:"reason,omitempty"`
	Conflicting []string      `json:"conflicting,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Filter selects records in Query. Zero fields match everything.
type Filter struct {
	Since    time.Time
	Until    time.Time
	Backend  string
	Resource string
	Outcome  Outcome

	// Limit caps the number of records returned, newest first.
	// Zero means DefaultQueryLimit.
	Limit int
}

// DefaultQueryLimit caps Query results when Filter.Limit is zero.
const DefaultQueryLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	return f.Limit
}

func (f Filter) matches(r Record) bool {
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.Timestamp.Before(f.Until) {
		return false
	}
	if f.Backend != "" && r.Selected != f.Backend && r.Effective != f.Backend {
		return false
	}
	if f.Resource != "" && r.Resource != f.Resource {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	return true
}

// Store persists journal records.
type Store interface {
	// Append stores one record.
	Append(ctx context.Context, rec Record) error

	// Query returns records matching f, newest first.
	Query(ctx context.Context, f Filter) ([]Record, error)

	// Prune deletes records older than before and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Ping verifies the store is usable.
	Ping(ctx context.Context) error

	Close() error
}

// Sink accepts records without blocking the caller. *Recorder implements it.
type Sink interface {
	Record(ctx context.Context, rec Record)
}

// ErrClosed is returned by stores and recorders after Close.
var ErrClosed = errors.New("journal closed")
