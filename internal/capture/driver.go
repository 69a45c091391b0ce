package capture

import (
	"context"
	"time"

	"github.com/banshee-data/headsync/internal/timeutil"
)

// DefaultTickHz is the capture rate when none is configured.
const DefaultTickHz = 60

// Ticker is anything that takes one sample per call.
type Ticker interface {
	CaptureTick()
}

// Driver calls CaptureTick at a fixed rate. It stands in for a render loop
// when the process has no frame callback of its own.
type Driver struct {
	target   Ticker
	clock    timeutil.Clock
	interval time.Duration
}

// NewDriver creates a Driver ticking hz times per second. Non-positive hz
// uses DefaultTickHz.
func NewDriver(target Ticker, clock timeutil.Clock, hz int) *Driver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if hz <= 0 {
		hz = DefaultTickHz
	}
	return &Driver{
		target:   target,
		clock:    clock,
		interval: time.Second / time.Duration(hz),
	}
}

// Interval returns the tick period.
func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Run ticks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			d.target.CaptureTick()
		}
	}
}
