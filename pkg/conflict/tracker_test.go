package conflict

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mercator-hq/arbor/pkg/backend"
)

func newTestTracker(t *testing.T, descs ...backend.Descriptor) *Tracker {
	t.Helper()
	reg, err := backend.NewRegistry(descs...)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	return NewTracker(reg)
}

func TestTracker_RecordUsage(t *testing.T) {
	tr := newTestTracker(t)

	tr.RecordUsage("B")
	tr.RecordUsage("a")
	tr.RecordUsage("b")
	tr.RecordUsage("")

	if diff := cmp.Diff([]string{"b", "a"}, tr.Used()); diff != "" {
		t.Errorf("Used() mismatch (-want +got):\n%s", diff)
	}
	if !tr.WasUsed("A") {
		t.Error("expected a to be recorded")
	}
}

func TestTracker_ConflictingFor(t *testing.T) {
	tests := []struct {
		name  string
		descs []backend.Descriptor
		used  []string
		check string
		want  []string
	}{
		{
			name: "no blocked by",
			descs: []backend.Descriptor{
				{ID: "a", Key: "k"},
				{ID: "b", Key: "k"},
			},
			used:  []string{"b"},
			check: "a",
		},
		{
			name: "requested lists used",
			descs: []backend.Descriptor{
				{ID: "a", Key: "k", BlockedBy: []string{"b"}},
				{ID: "b", Key: "k"},
			},
			used:  []string{"b"},
			check: "a",
			want:  []string{"b"},
		},
		{
			name: "used lists requested",
			descs: []backend.Descriptor{
				{ID: "a", Key: "k"},
				{ID: "b", Key: "k", BlockedBy: []string{"a"}},
			},
			used:  []string{"b"},
			check: "a",
			want:  []string{"b"},
		},
		{
			name: "blocked but never used",
			descs: []backend.Descriptor{
				{ID: "a", Key: "k", BlockedBy: []string{"b", "c"}},
				{ID: "b", Key: "k"},
				{ID: "c", Key: "k"},
			},
			used:  []string{"c"},
			check: "a",
			want:  []string{"c"},
		},
		{
			name: "self usage is not a conflict",
			descs: []backend.Descriptor{
				{ID: "a", Key: "k", BlockedBy: []string{"a"}},
			},
			used:  []string{"a"},
			check: "a",
		},
		{
			name: "sorted union",
			descs: []backend.Descriptor{
				{ID: "a", Key: "k", BlockedBy: []string{"d"}},
				{ID: "c", Key: "k", BlockedBy: []string{"a"}},
				{ID: "d", Key: "k"},
			},
			used:  []string{"d", "c"},
			check: "a",
			want:  []string{"c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t, tt.descs...)
			for _, u := range tt.used {
				tr.RecordUsage(u)
			}
			if diff := cmp.Diff(tt.want, tr.ConflictingFor(tt.check)); diff != "" {
				t.Errorf("ConflictingFor(%q) mismatch (-want +got):\n%s", tt.check, diff)
			}
		})
	}
}

func TestTracker_CheckConflict(t *testing.T) {
	tr := newTestTracker(t,
		backend.Descriptor{ID: "a", Key: "k", BlockedBy: []string{"b"}},
		backend.Descriptor{ID: "b", Key: "k"},
	)
	tr.RecordUsage("b")

	err := tr.CheckConflict("a")
	var ce *backend.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Backend != "a" || len(ce.ConflictingWith) != 1 || ce.ConflictingWith[0] != "b" {
		t.Errorf("unexpected conflict error: %+v", ce)
	}

	tr.SetProtection(false)
	if tr.Protected() {
		t.Fatal("expected protection disabled")
	}
	if err := tr.CheckConflict("a"); err != nil {
		t.Errorf("expected no error with protection disabled, got %v", err)
	}

	tr.SetProtection(true)
	if err := tr.CheckConflict("a"); !errors.Is(err, backend.ErrConflict) {
		t.Errorf("expected ErrConflict after re-enabling protection, got %v", err)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := newTestTracker(t)
	tr.RecordUsage("a")
	tr.SetProtection(false)

	tr.Reset()

	if len(tr.Used()) != 0 {
		t.Errorf("expected empty used set, got %v", tr.Used())
	}
	if !tr.Protected() {
		t.Error("Reset() should re-enable protection")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	descs := make([]backend.Descriptor, 0, 16)
	for i := range 16 {
		descs = append(descs, backend.Descriptor{
			ID:        fmt.Sprintf("b%d", i),
			Key:       "k",
			BlockedBy: []string{fmt.Sprintf("b%d", (i+1)%16)},
		})
	}
	tr := newTestTracker(t, descs...)

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("b%d", i%16)
			tr.RecordUsage(id)
			_ = tr.ConflictingFor(id)
			_ = tr.CheckConflict(id)
		}(i)
	}
	wg.Wait()

	if got := len(tr.Used()); got != 16 {
		t.Errorf("expected 16 used backends, got %d", got)
	}
}

func TestTracker_Acquire(t *testing.T) {
	tr := newTestTracker(t,
		backend.Descriptor{ID: "a", Key: "k", BlockedBy: []string{"b"}},
		backend.Descriptor{ID: "b", Key: "k"},
		backend.Descriptor{ID: "c", Key: "k"},
	)

	if err := tr.Acquire("A"); err != nil {
		t.Fatalf("Acquire(a) failed: %v", err)
	}
	if err := tr.Acquire("a"); err != nil {
		t.Errorf("second Acquire(a) failed: %v", err)
	}

	err := tr.Acquire("b")
	var conflictErr *backend.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("Acquire(b) error = %v, want ConflictError", err)
	}
	if diff := cmp.Diff([]string{"a"}, conflictErr.ConflictingWith); diff != "" {
		t.Errorf("ConflictingWith mismatch (-want +got):\n%s", diff)
	}

	if err := tr.Acquire("c"); err != nil {
		t.Errorf("Acquire(c) failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, tr.Used()); diff != "" {
		t.Errorf("Used() mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_AcquireUnprotected(t *testing.T) {
	tr := newTestTracker(t,
		backend.Descriptor{ID: "a", Key: "k", BlockedBy: []string{"b"}},
		backend.Descriptor{ID: "b", Key: "k"},
	)
	tr.SetProtection(false)

	for _, id := range []string{"a", "b"} {
		if err := tr.Acquire(id); err != nil {
			t.Errorf("Acquire(%s) with protection off failed: %v", id, err)
		}
	}
	if got := len(tr.Used()); got != 2 {
		t.Errorf("expected 2 used backends, got %d", got)
	}
}

func TestTracker_AcquireConcurrentExclusive(t *testing.T) {
	for round := range 100 {
		tr := newTestTracker(t,
			backend.Descriptor{ID: "a", Key: "k", BlockedBy: []string{"b"}},
			backend.Descriptor{ID: "b", Key: "k"},
		)

		start := make(chan struct{})
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i, id := range []string{"a", "b"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				errs[i] = tr.Acquire(id)
			}()
		}
		close(start)
		wg.Wait()

		if len(tr.Used()) != 1 {
			t.Fatalf("round %d: used = %v, want exactly one of a and b", round, tr.Used())
		}
		if (errs[0] == nil) == (errs[1] == nil) {
			t.Fatalf("round %d: errors = %v, want exactly one conflict", round, errs)
		}
	}
}
