// Package writer drains the sample queue on a fixed period and persists
// bounded batches to a sink.
package writer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/headsync/internal/telemetry"
)

// ErrSinkWrite wraps any error returned by a sink during a write cycle.
var ErrSinkWrite = errors.New("sink write failed")

// Sink persists rows. AppendRows writes the whole batch as one operation and
// flushes it before returning.
type Sink interface {
	AppendRows(samples []telemetry.Sample) error
	Close() error
}

// CSVSink writes one row per sample under the standard header. Each batch is
// rendered in memory first and reaches out in a single Write, so a failed
// batch leaves no partial rows behind to be duplicated by the retry.
type CSVSink struct {
	out io.WriteCloser
	buf bytes.Buffer
	w   *csv.Writer
}

// CreateCSV creates (or truncates) path and writes the header row.
func CreateCSV(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}
	sink, err := NewCSVSink(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return sink, nil
}

// NewCSVSink writes the header row to out and returns a sink appending to it.
func NewCSVSink(out io.WriteCloser) (*CSVSink, error) {
	s := &CSVSink{out: out}
	s.w = csv.NewWriter(&s.buf)
	if err := s.writeRecords([][]string{telemetry.CSVHeader()}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return s, nil
}

// AppendRows implements Sink.
func (s *CSVSink) AppendRows(samples []telemetry.Sample) error {
	records := make([][]string, len(samples))
	for i, sample := range samples {
		records[i] = sample.CSVRow()
	}
	return s.writeRecords(records)
}

func (s *CSVSink) writeRecords(records [][]string) error {
	s.buf.Reset()
	if err := s.w.WriteAll(records); err != nil {
		return err
	}
	_, err := s.out.Write(s.buf.Bytes())
	return err
}

// Close closes the underlying file.
func (s *CSVSink) Close() error {
	return s.out.Close()
}
