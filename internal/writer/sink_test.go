package writer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/headsync/internal/telemetry"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSink_HeaderThenRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "HeadTrackingData.csv")
	sink, err := CreateCSV(path)
	require.NoError(t, err)

	// Header is on disk before any sample is written.
	assert.Equal(t, [][]string{telemetry.CSVHeader()}, readCSV(t, path))

	require.NoError(t, sink.AppendRows([]telemetry.Sample{
		{CaptureTimeMs: 1100, Position: telemetry.Vec3{X: 1, Y: 2, Z: 3}, Orientation: telemetry.Quat{W: 1}},
		{CaptureTimeMs: 1200, Position: telemetry.Vec3{X: 0.5}, Orientation: telemetry.Quat{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9}},
	}))

	// AppendRows flushes, so rows are visible without Close.
	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1100", "1", "2", "3", "0", "0", "0", "1"}, rows[1])
	assert.Equal(t, []string{"1200", "0.5", "0", "0", "0.1", "0.2", "0.3", "0.9"}, rows[2])

	require.NoError(t, sink.Close())
	assert.Len(t, readCSV(t, path), 3)
}

func TestCreateCSV_BadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := CreateCSV(filepath.Join(blocker, "out.csv"))
	assert.Error(t, err)
}

func TestBatchWriter_CSVEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	sink, err := CreateCSV(path)
	require.NoError(t, err)

	q := fillQueue(55)
	w := NewBatchWriter(Config{BatchSize: 50}, q, sink)
	require.NoError(t, w.Drain())
	require.NoError(t, sink.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 56)
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "54", rows[55][0])
}

// flakyFile accepts writes into a buffer, rejecting the next failNext of them
// without storing anything.
type flakyFile struct {
	bytes.Buffer
	writes   int
	failNext int
}

func (f *flakyFile) Write(p []byte) (int, error) {
	f.writes++
	if f.failNext > 0 {
		f.failNext--
		return 0, errors.New("no space left on device")
	}
	return f.Buffer.Write(p)
}

func (f *flakyFile) Close() error { return nil }

func TestCSVSink_RetriedBatchNotDuplicated(t *testing.T) {
	out := &flakyFile{}
	sink, err := NewCSVSink(out)
	require.NoError(t, err)
	require.Equal(t, 1, out.writes)

	// Large enough to overflow a 4KB write buffer several times over.
	q := fillQueue(500)
	out.failNext = 1
	w := NewBatchWriter(Config{BatchSize: 500}, q, sink)

	_, err = w.WriteCycle()
	require.ErrorIs(t, err, ErrSinkWrite)
	assert.Equal(t, 2, out.writes, "a batch reaches the file in one write")
	assert.Equal(t, 500, q.Len())

	require.NoError(t, w.Drain())
	assert.Equal(t, 3, out.writes)

	rows, err := csv.NewReader(&out.Buffer).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 501)
	for i, row := range rows[1:] {
		require.Equal(t, strconv.Itoa(i), row[0])
	}
}
