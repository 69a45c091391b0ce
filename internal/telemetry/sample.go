// Package telemetry holds the pose sample model and the queue that hands
// samples from the capture pipeline to the batch writer.
package telemetry

import "strconv"

// Vec3 is a position in the tracking space.
type Vec3 struct {
	X, Y, Z float64
}

// Quat is an orientation quaternion in x, y, z, w order.
type Quat struct {
	X, Y, Z, W float64
}

// Sample is one pose reading. CaptureTimeMs is Unix milliseconds; whether it
// has been corrected by the clock offset depends on where the sample lives.
type Sample struct {
	CaptureTimeMs int64
	Position      Vec3
	Orientation   Quat
}

// Shifted returns a copy of s with offsetMs added to the capture time.
func (s Sample) Shifted(offsetMs int64) Sample {
	s.CaptureTimeMs += offsetMs
	return s
}

// CSVHeader is the header row written once at the start of every output file.
func CSVHeader() []string {
	return []string{"timestamp", "pos_x", "pos_y", "pos_z", "qua_1", "qua_2", "qua_3", "qua_4"}
}

// CSVRow returns the sample as one output row, columns matching CSVHeader.
func (s Sample) CSVRow() []string {
	return []string{
		strconv.FormatInt(s.CaptureTimeMs, 10),
		ftoa(s.Position.X), ftoa(s.Position.Y), ftoa(s.Position.Z),
		ftoa(s.Orientation.X), ftoa(s.Orientation.Y), ftoa(s.Orientation.Z), ftoa(s.Orientation.W),
	}
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
