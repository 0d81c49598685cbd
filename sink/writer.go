package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/storage"
	"github.com/pithecene-io/assay/types"
)

// Config configures a Writer.
type Config struct {
	// BatchSize triggers a flush when the buffer reaches this many events.
	// Zero uses the pipeline default (100).
	BatchSize int

	// FlushInterval is the period of the background flush loop.
	// Zero uses the pipeline default (10s).
	FlushInterval time.Duration

	// Logger is an optional logger for writer observability.
	Logger *log.Logger

	// Metrics is an optional ingest metric set.
	Metrics *metrics.Ingest
}

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("writer closed")

// Writer is the buffered columnar writer.
//
// Producers contend only for a brief append under mu; the parquet encode and
// blob write happen outside any lock held by producers. Flushes are
// serialized by flushMu so the time-driven and size-driven triggers never
// write concurrently.
//
// Flush strategy: swap the buffer under mu, write outside mu, and on failure
// prepend the swapped batch back ahead of anything enqueued meanwhile. The
// next trigger retries; under continuous failure the buffer grows without
// back-pressure, so consecutive failures are logged for alerting alongside
// the buffer-size gauge.
type Writer struct {
	store  storage.BlobStore
	config Config
	logger *log.Logger

	mu      sync.Mutex // guards buffer and stopped
	buffer  []*types.TransactionEvent
	stopped bool

	// flushMu serializes flush operations.
	flushMu       sync.Mutex
	failureStreak int // guarded by flushMu

	stopCh chan struct{}
}

// NewWriter creates a writer over the given blob store and starts the
// background flush loop.
func NewWriter(store storage.BlobStore, config Config) *Writer {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 10 * time.Second
	}

	w := &Writer{
		store:  store,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.TransactionEvent, 0, config.BatchSize),
		stopCh: make(chan struct{}),
	}

	go w.intervalLoop()

	return w
}

// Enqueue appends a validated event to the buffer. It returns once the event
// is in the buffer and never blocks on I/O; when the append fills the batch,
// a flush is started fire-and-forget.
func (w *Writer) Enqueue(ctx context.Context, event *types.TransactionEvent) error {
	if _, err := event.EventTime(); err != nil {
		// The buffer only holds partitionable rows.
		return err
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrClosed
	}
	w.buffer = append(w.buffer, event)
	size := len(w.buffer)
	w.mu.Unlock()

	w.setBufferGauge(size)

	if size >= w.config.BatchSize {
		go func() {
			_, _ = w.Flush(context.WithoutCancel(ctx))
		}()
	}

	return nil
}

// Size returns the current buffered event count.
func (w *Writer) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// Flush writes the current buffer as one partitioned blob and returns the
// number of events written. Concurrent calls serialize; an empty buffer is
// a no-op. On write failure the batch is re-inserted at the head of the
// buffer, preserving event order, and the error is surfaced.
func (w *Writer) Flush(ctx context.Context) (int, error) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	batch := w.buffer
	if len(batch) == 0 {
		w.mu.Unlock()
		return 0, nil
	}
	// Fresh buffer so producers keep appending during the write.
	w.buffer = make([]*types.TransactionEvent, 0, w.config.BatchSize)
	w.mu.Unlock()

	w.setBufferGauge(0)

	start := time.Now()
	err := w.writeBatch(ctx, batch)
	if err != nil {
		w.mu.Lock()
		w.buffer = append(batch, w.buffer...)
		size := len(w.buffer)
		w.mu.Unlock()

		w.failureStreak++
		w.setBufferGauge(size)
		w.logFlushFailure(err, len(batch), size)
		return 0, err
	}

	w.failureStreak = 0
	if m := w.config.Metrics; m != nil {
		m.FlushesTotal.Inc()
		m.FlushLatency.Observe(time.Since(start).Seconds())
	}
	w.setBufferGauge(w.Size())
	w.logFlush(len(batch), time.Since(start))

	return len(batch), nil
}

// writeBatch encodes the batch and puts it at the partition key derived
// from the first event.
func (w *Writer) writeBatch(ctx context.Context, batch []*types.TransactionEvent) error {
	first, err := batch[0].EventTime()
	if err != nil {
		// Enqueue guarantees parseable timestamps; treat violation as a
		// write failure so the batch is retried rather than dropped.
		return err
	}

	data, err := encodeBatch(batch)
	if err != nil {
		return err
	}

	return w.store.Put(ctx, blobKey(first), data)
}

// Close stops the background loop, performs a final best-effort flush, and
// closes the underlying store. Shutdown proceeds even if the final flush
// fails; the error is logged and returned from the flush path only.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return w.store.Close()
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)

	if _, err := w.Flush(context.Background()); err != nil {
		if w.logger != nil {
			w.logger.Error("final flush failed", map[string]any{
				"error":    err.Error(),
				"buffered": w.Size(),
			})
		}
	}

	return w.store.Close()
}

// intervalLoop drives time-based flushes until Close.
func (w *Writer) intervalLoop() {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.Size() > 0 {
				// Best-effort interval flush; failures are logged and retried.
				_, _ = w.Flush(context.Background())
			}
		case <-w.stopCh:
			return
		}
	}
}

func (w *Writer) setBufferGauge(size int) {
	if m := w.config.Metrics; m != nil {
		m.BufferSize.Set(float64(size))
	}
}

func (w *Writer) logFlush(count int, elapsed time.Duration) {
	if w.logger == nil {
		return
	}
	w.logger.Debug("flushed batch", map[string]any{
		"events":     count,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func (w *Writer) logFlushFailure(err error, batch, buffered int) {
	if w.logger == nil {
		return
	}
	w.logger.Error("flush failed", map[string]any{
		"error":          err.Error(),
		"batch":          batch,
		"buffered":       buffered,
		"failure_streak": w.failureStreak,
	})
}
