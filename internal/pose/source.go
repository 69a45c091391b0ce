// Package pose supplies the latest device pose to the capture pipeline.
package pose

import (
	"sync"

	"github.com/banshee-data/headsync/internal/telemetry"
)

// Source returns the latest known pose. ReadPose must not block; before the
// device is tracked it returns the zero pose.
type Source interface {
	ReadPose() (telemetry.Vec3, telemetry.Quat)
}

// Latest holds the most recent pose reported by a device reader. Updates and
// reads may come from different goroutines.
type Latest struct {
	mu  sync.RWMutex
	pos telemetry.Vec3
	rot telemetry.Quat
}

// Set replaces the stored pose.
func (l *Latest) Set(pos telemetry.Vec3, rot telemetry.Quat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pos, l.rot = pos, rot
}

// ReadPose implements Source.
func (l *Latest) ReadPose() (telemetry.Vec3, telemetry.Quat) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pos, l.rot
}

// Static is a Source that always returns the same pose, used in dev mode.
type Static struct {
	Position    telemetry.Vec3
	Orientation telemetry.Quat
}

// ReadPose implements Source.
func (s Static) ReadPose() (telemetry.Vec3, telemetry.Quat) {
	return s.Position, s.Orientation
}
