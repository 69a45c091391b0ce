package clocksync

import (
	"sync/atomic"

	"github.com/banshee-data/headsync/internal/monitoring"
)

// State is the session's shared clock offset. It is written once by the
// estimator (or by the session when sync cannot complete) and read on every
// capture tick. The offset and its computed flag are published together
// through a single atomic pointer, so readers never see one without the other.
type State struct {
	offset atomic.Pointer[int64]
	ready  chan struct{}
}

// NewState returns a State with no offset published.
func NewState() *State {
	return &State{ready: make(chan struct{})}
}

// Publish stores offsetMs and latches the state as computed. Only the first
// call has any effect; it returns false for every later call.
func (s *State) Publish(offsetMs int64) bool {
	v := offsetMs
	if !s.offset.CompareAndSwap(nil, &v) {
		return false
	}
	close(s.ready)
	monitoring.ClockOffsetMs.Set(float64(offsetMs))
	monitoring.ClockOffsetComputed.Set(1)
	return true
}

// Load returns the published offset and whether one has been published.
func (s *State) Load() (offsetMs int64, computed bool) {
	p := s.offset.Load()
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Ready is closed once an offset has been published.
func (s *State) Ready() <-chan struct{} {
	return s.ready
}
