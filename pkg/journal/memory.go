package journal

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps records in memory. It is used in tests and when the
// journal path is ":memory:".
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	rec.Conflicting = slices.Clone(rec.Conflicting)
	s.records = append(s.records, rec)
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var out []Record
	for i := len(s.records) - 1; i >= 0 && len(out) < f.limit(); i-- {
		if f.matches(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	n := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r Record) bool {
		return r.Timestamp.Before(before)
	})
	return int64(n - len(s.records)), nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
