// Package session runs one clock-sync-and-capture session: it starts the
// offset estimator, captures poses at a fixed rate, writes them in batches,
// and on Stop shuts everything down without losing a captured sample.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/headsync/internal/capture"
	"github.com/banshee-data/headsync/internal/clocksync"
	"github.com/banshee-data/headsync/internal/monitoring"
	"github.com/banshee-data/headsync/internal/pose"
	"github.com/banshee-data/headsync/internal/telemetry"
	"github.com/banshee-data/headsync/internal/timeutil"
	"github.com/banshee-data/headsync/internal/writer"
)

// Config contains configuration options for a Session.
type Config struct {
	// ID tags the session's rows. A nil ID gets a fresh random one.
	ID uuid.UUID

	Sync      clocksync.Config
	TickHz    int
	BatchSize int
	Period    time.Duration

	// Clock drives capture, writing and sync. Nil uses the real clock.
	Clock timeutil.Clock
}

// Session owns the goroutines of one run.
type Session struct {
	id    uuid.UUID
	state *clocksync.State
	queue *telemetry.Queue
	sink  writer.Sink

	estimator *clocksync.Estimator
	pipeline  *capture.Pipeline
	driver    *capture.Driver
	writer    *writer.BatchWriter

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stopOnce sync.Once
	stopErr  error
}

// New wires a session reading poses from source and persisting to sink.
// The session owns sink and closes it in Stop.
func New(cfg Config, source pose.Source, sink writer.Sink) *Session {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Sync.Clock == nil {
		cfg.Sync.Clock = cfg.Clock
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}

	state := clocksync.NewState()
	queue := telemetry.NewQueue()
	pipeline := capture.NewPipeline(source, cfg.Clock, state, queue)

	return &Session{
		id:        cfg.ID,
		state:     state,
		queue:     queue,
		sink:      sink,
		estimator: clocksync.NewEstimator(cfg.Sync, state),
		pipeline:  pipeline,
		driver:    capture.NewDriver(pipeline, cfg.Clock, cfg.TickHz),
		writer: writer.NewBatchWriter(writer.Config{
			BatchSize: cfg.BatchSize,
			Period:    cfg.Period,
			Clock:     cfg.Clock,
		}, queue, sink),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Start begins clock sync, capture and writing. If clock sync cannot start
// the session still runs, recording uncorrected timestamps.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("session already started")
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.estimator.Start(runCtx); err != nil {
		monitoring.Warnf("clock sync unavailable, timestamps will not be corrected: %v", err)
		s.state.Publish(0)
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.driver.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.writer.Run(runCtx)
	}()

	monitoring.Logf("Session %s started: capturing at %v intervals", s.id, s.driver.Interval())
	return nil
}

// Stop shuts the session down in order: clock sync, capture, pre-sync
// buffer flush, final write drain, sink close. If no offset was published
// the buffered samples are written uncorrected. The returned error reports
// any sample that could not be persisted. Stop is idempotent.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.estimator.Stop()

		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()

		if _, computed := s.state.Load(); !computed {
			monitoring.Warnf("clock sync did not complete; writing %d buffered samples uncorrected",
				s.pipeline.Pending())
			s.state.Publish(0)
		}
		if held := s.pipeline.Flush(); held > 0 {
			monitoring.Warnf("%d buffered samples could not be flushed", held)
		}

		var errs []error
		if err := s.writer.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("final flush left %d samples unwritten: %w", s.queue.Len(), err))
		}
		if err := s.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sink: %w", err))
		}
		s.stopErr = errors.Join(errs...)

		offset, _ := s.state.Load()
		monitoring.Logf("Session %s stopped: %d captured, %d written, offset %d ms",
			s.id, s.pipeline.Captured(), s.writer.Written(), offset)
	})
	return s.stopErr
}

// Synced reports whether the offset came from a completed clock sync rather
// than the zero-offset fallback.
func (s *Session) Synced() bool {
	return s.estimator.Synced()
}

// Offset returns the published clock offset, if any.
func (s *Session) Offset() (offsetMs int64, computed bool) {
	return s.state.Load()
}

// SyncDone is closed when the sync listener exits or the session stops.
func (s *Session) SyncDone() <-chan struct{} {
	return s.estimator.Done()
}

// SyncStats returns the estimator's datagram counters.
func (s *Session) SyncStats() clocksync.Stats {
	return s.estimator.Stats()
}

// Captured returns the number of samples taken so far.
func (s *Session) Captured() uint64 {
	return s.pipeline.Captured()
}

// Written returns the number of samples persisted so far.
func (s *Session) Written() uint64 {
	return s.writer.Written()
}
