package watch

import (
	"slices"
	"sync"
	"time"
)

// Debouncer collects paths from rapid events and hands them over in one
// batch after a quiet period.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	pending  map[string]bool
	callback func(paths []string)
	stopped  bool
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		pending:  make(map[string]bool),
	}
}

// Trigger adds path to the pending batch and restarts the quiet period.
// The latest callback receives the batch, sorted.
func (d *Debouncer) Trigger(path string, callback func(paths []string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if path != "" {
		d.pending[path] = true
	}
	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	clear(d.pending)
	cb := d.callback
	d.mu.Unlock()

	slices.Sort(paths)
	if cb != nil {
		cb(paths)
	}
}

// Flush delivers the pending batch at once.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.fire()
}

// Stop cancels the pending batch. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	clear(d.pending)
	d.callback = nil
}
