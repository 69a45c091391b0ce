package pose

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/banshee-data/headsync/internal/monitoring"
	"github.com/banshee-data/headsync/internal/telemetry"
)

// PortOptions describes the serial connection parameters of a pose tracker.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// Serial reads pose lines from a tracker on a serial port. Each line is
// "px,py,pz,qx,qy,qz,qw"; the most recent good line is what ReadPose returns.
type Serial struct {
	Latest
	port io.ReadCloser
}

// OpenSerial opens the tracker at path.
func OpenSerial(path string, opts PortOptions) (*Serial, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewSerial(port), nil
}

// NewSerial wraps an already open port, or any line-oriented reader in tests.
func NewSerial(port io.ReadCloser) *Serial {
	return &Serial{port: port}
}

// Monitor reads lines until ctx is cancelled or the port fails. Malformed
// lines are logged and skipped.
func (s *Serial) Monitor(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// The blocking scan runs on its own goroutine so cancellation is prompt.
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(s.port)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return fmt.Errorf("pose serial read failed: %w", err)
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return fmt.Errorf("pose serial read failed: %w", err)
				default:
					return nil
				}
			}
			pos, rot, err := ParseLine(line)
			if err != nil {
				monitoring.Logf("Skipping pose line %q: %v", line, err)
				continue
			}
			s.Set(pos, rot)
		}
	}
}

// Close closes the underlying port, which also ends a running Monitor.
func (s *Serial) Close() error {
	return s.port.Close()
}

// ParseLine parses "px,py,pz,qx,qy,qz,qw".
func ParseLine(line string) (telemetry.Vec3, telemetry.Quat, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 7 {
		return telemetry.Vec3{}, telemetry.Quat{}, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}
	var v [7]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return telemetry.Vec3{}, telemetry.Quat{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v[i] = x
	}
	return telemetry.Vec3{X: v[0], Y: v[1], Z: v[2]},
		telemetry.Quat{X: v[3], Y: v[4], Z: v[5], W: v[6]}, nil
}
