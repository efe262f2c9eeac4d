package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/arbor/pkg/telemetry/metrics"

	"github.com/google/uuid"
)

// RecorderConfig contains configuration for the Recorder.
type RecorderConfig struct {
	// BufferSize is the size of the async write channel buffer.
	// Default: 1000
	BufferSize int

	// WriteTimeout bounds a single Append.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderMetrics reports written and dropped records to c.
func WithRecorderMetrics(c *metrics.Collector) RecorderOption {
	return func(r *Recorder) {
		r.metrics = c
	}
}

// WithRecorderLogger sets the logger.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l.With("component", "journal.recorder")
	}
}

// Recorder writes records to a Store from a background worker, so that
// resolution and parsing never wait on storage. When the buffer is full
// records are dropped and counted.
type Recorder struct {
	store   Store
	config  RecorderConfig
	records chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	metrics *metrics.Collector
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder writing to store.
func NewRecorder(store Store, cfg RecorderConfig, opts ...RecorderOption) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	r := &Recorder{
		store:   store,
		config:  cfg,
		records: make(chan Record, cfg.BufferSize),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "journal.recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("journal recorder started",
		"buffer_size", cfg.BufferSize,
		"write_timeout", cfg.WriteTimeout,
	)

	return r
}

// Record implements Sink. It fills in ID and Timestamp when empty and
// returns without waiting for the write.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(rec, "recorder closed")
		return
	}

	select {
	case r.records <- rec:
	default:
		r.drop(rec, "buffer full")
	}
}

func (r *Recorder) drop(rec Record, reason string) {
	r.metrics.RecordJournalDropped()
	r.logger.Warn("dropping journal record",
		"record_id", rec.ID,
		"outcome", rec.Outcome,
		"reason", reason,
		"buffer_size", r.config.BufferSize,
	)
}

// Pending returns the number of records waiting to be written.
func (r *Recorder) Pending() int {
	return len(r.records)
}

// Close stops accepting records and waits until the buffered ones are
// written or ctx is done. The store is not closed.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		r.logger.Debug("journal recorder stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.records:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.records:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.store.Append(ctx, rec); err != nil {
		r.logger.Error("failed to write journal record",
			"record_id", rec.ID,
			"error", err,
		)
		return
	}
	r.metrics.RecordJournalRecord(string(rec.Outcome))

	if d := time.Since(start); d > r.config.WriteTimeout/2 {
		r.logger.Warn("slow journal write",
			"record_id", rec.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
}
