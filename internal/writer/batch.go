package writer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/headsync/internal/monitoring"
	"github.com/banshee-data/headsync/internal/telemetry"
	"github.com/banshee-data/headsync/internal/timeutil"
)

const (
	DefaultBatchSize = 50
	DefaultPeriod    = 100 * time.Millisecond
)

// Config contains configuration options for the BatchWriter.
type Config struct {
	BatchSize int
	Period    time.Duration
	Clock     timeutil.Clock
}

// BatchWriter moves samples from the queue to the sink, at most BatchSize
// per cycle.
type BatchWriter struct {
	queue     *telemetry.Queue
	sink      Sink
	batchSize int
	period    time.Duration
	clock     timeutil.Clock

	// cycleMu keeps write cycles from interleaving, so batches reach the
	// sink in queue order.
	cycleMu sync.Mutex
	written uint64
}

// NewBatchWriter creates a BatchWriter. Zero values in cfg take the defaults.
func NewBatchWriter(cfg Config, queue *telemetry.Queue, sink Sink) *BatchWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &BatchWriter{
		queue:     queue,
		sink:      sink,
		batchSize: cfg.BatchSize,
		period:    cfg.Period,
		clock:     cfg.Clock,
	}
}

// WriteCycle pops up to BatchSize samples and writes them in one AppendRows
// call. On failure the batch goes back to the head of the queue for the next
// cycle and the error (wrapping ErrSinkWrite) is returned.
func (w *BatchWriter) WriteCycle() (int, error) {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	batch := w.queue.PopN(w.batchSize)
	if len(batch) == 0 {
		return 0, nil
	}

	if err := w.sink.AppendRows(batch); err != nil {
		w.queue.PushFront(batch)
		monitoring.SinkWriteErrors.Inc()
		monitoring.QueueDepth.Set(float64(w.queue.Len()))
		return 0, fmt.Errorf("%w: %d samples re-queued: %v", ErrSinkWrite, len(batch), err)
	}

	w.written += uint64(len(batch))
	monitoring.SamplesWritten.Add(float64(len(batch)))
	monitoring.QueueDepth.Set(float64(w.queue.Len()))
	return len(batch), nil
}

// Run performs a write cycle every period until ctx is cancelled. Failed
// cycles are logged; their samples stay queued for the next cycle.
func (w *BatchWriter) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := w.WriteCycle(); err != nil {
				monitoring.Logf("Batch write failed, will retry: %v", err)
			}
		}
	}
}

// Drain runs write cycles until the queue is empty. It stops at the first
// failure and returns it, leaving the unwritten samples queued.
func (w *BatchWriter) Drain() error {
	for w.queue.Len() > 0 {
		if _, err := w.WriteCycle(); err != nil {
			return err
		}
	}
	return nil
}

// Written returns the number of samples persisted so far.
func (w *BatchWriter) Written() uint64 {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()
	return w.written
}
