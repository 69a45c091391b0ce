// Package capture samples the device pose once per tick and routes each
// sample according to clock sync state: held in a pre-sync buffer until the
// offset is known, then corrected and handed to the writer queue.
package capture

import (
	"sync"

	"github.com/banshee-data/headsync/internal/clocksync"
	"github.com/banshee-data/headsync/internal/monitoring"
	"github.com/banshee-data/headsync/internal/pose"
	"github.com/banshee-data/headsync/internal/telemetry"
	"github.com/banshee-data/headsync/internal/timeutil"
)

type phase int

const (
	awaitingSync phase = iota
	synced
)

func (p phase) String() string {
	if p == synced {
		return "synced"
	}
	return "awaiting_sync"
}

// Pipeline captures pose samples. Every captured sample reaches the queue
// exactly once, in capture order, shifted by the single published offset.
type Pipeline struct {
	source pose.Source
	clock  timeutil.Clock
	state  *clocksync.State
	queue  *telemetry.Queue

	// mu serialises ticks with Flush. Ticks come from one driver goroutine,
	// so it is uncontended outside shutdown.
	mu       sync.Mutex
	phase    phase
	offsetMs int64
	pending  []telemetry.Sample
	captured uint64
}

// NewPipeline creates a pipeline reading poses from source and pushing
// corrected samples to queue. A nil clock uses the real clock.
func NewPipeline(source pose.Source, clock timeutil.Clock, state *clocksync.State, queue *telemetry.Queue) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{
		source: source,
		clock:  clock,
		state:  state,
		queue:  queue,
	}
}

// CaptureTick takes one sample. It never performs I/O.
func (p *Pipeline) CaptureTick() {
	pos, rot := p.source.ReadPose()
	raw := telemetry.Sample{
		CaptureTimeMs: timeutil.UnixMilli(p.clock),
		Position:      pos,
		Orientation:   rot,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.captured++

	if p.phase == awaitingSync && !p.trySync() {
		p.pending = append(p.pending, raw)
		monitoring.SamplesCaptured.WithLabelValues(monitoring.PhaseBuffered).Inc()
		return
	}

	p.queue.Push(raw.Shifted(p.offsetMs))
	monitoring.SamplesCaptured.WithLabelValues(monitoring.PhaseLive).Inc()
}

// Flush moves buffered samples to the queue if the offset has been published
// since the last tick. It returns the number of samples still held because
// no offset exists yet. The session calls it at shutdown after making sure an
// offset is published.
func (p *Pipeline) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == awaitingSync {
		p.trySync()
	}
	return len(p.pending)
}

// trySync performs the awaitingSync -> synced transition when the offset is
// available: the pre-sync buffer is corrected and pushed to the queue in one
// call, ahead of any live sample. Callers hold mu.
func (p *Pipeline) trySync() bool {
	offset, computed := p.state.Load()
	if !computed {
		return false
	}

	drained := make([]telemetry.Sample, len(p.pending))
	for i, s := range p.pending {
		drained[i] = s.Shifted(offset)
	}
	p.queue.Push(drained...)

	monitoring.Logf("Clock offset %d ms applied; flushed %d buffered samples", offset, len(drained))
	p.pending = nil
	p.offsetMs = offset
	p.phase = synced
	return true
}

// Synced reports whether the pipeline has applied an offset.
func (p *Pipeline) Synced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase == synced
}

// Pending returns the number of samples in the pre-sync buffer.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Captured returns the number of ticks taken.
func (p *Pipeline) Captured() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captured
}
