package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSample_Shifted(t *testing.T) {
	raw := Sample{CaptureTimeMs: 1000, Position: Vec3{1, 2, 3}, Orientation: Quat{0, 0, 0, 1}}

	got := raw.Shifted(100)

	assert.Equal(t, int64(1100), got.CaptureTimeMs)
	assert.Equal(t, raw.Position, got.Position)
	assert.Equal(t, raw.Orientation, got.Orientation)
	assert.Equal(t, int64(1000), raw.CaptureTimeMs, "Shifted must not mutate the receiver")
}

func TestSample_CSVRow(t *testing.T) {
	s := Sample{
		CaptureTimeMs: 1700000000123,
		Position:      Vec3{X: 0.5, Y: -1.25, Z: 2},
		Orientation:   Quat{X: 0, Y: 0.7071, Z: 0, W: 0.7071},
	}

	row := s.CSVRow()

	assert.Len(t, row, len(CSVHeader()))
	assert.Equal(t, []string{"1700000000123", "0.5", "-1.25", "2", "0", "0.7071", "0", "0.7071"}, row)
}

func TestCSVHeader(t *testing.T) {
	assert.Equal(t,
		[]string{"timestamp", "pos_x", "pos_y", "pos_z", "qua_1", "qua_2", "qua_3", "qua_4"},
		CSVHeader())
}
