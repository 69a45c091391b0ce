package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Sink names accepted by the sink key.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
)

// SessionConfig holds the settings for one sync-and-capture session. Every
// field is optional; the Get* methods supply defaults for omitted ones.
type SessionConfig struct {
	// Clock sync
	ServerAddress *string `json:"server_address,omitempty"`
	ServerPort    *int    `json:"server_port,omitempty"`
	ReceivePort   *int    `json:"receive_port,omitempty"`
	SyncTimeout   *string `json:"sync_timeout,omitempty"` // duration string like "5s"; empty waits forever

	// Capture and write
	TickHz    *int `json:"tick_hz,omitempty"`
	BatchSize *int `json:"batch_size,omitempty"`
	PeriodMs  *int `json:"period_ms,omitempty"`

	// Output
	Sink       *string `json:"sink,omitempty"`
	CSVPath    *string `json:"csv_path,omitempty"`
	SQLitePath *string `json:"sqlite_path,omitempty"`

	// Pose input. An empty serial_port selects the static source.
	SerialPort *string `json:"serial_port,omitempty"`
	SerialBaud *int    `json:"serial_baud,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptySessionConfig returns a SessionConfig with all fields nil.
func EmptySessionConfig() *SessionConfig {
	return &SessionConfig{}
}

// LoadSessionConfig loads a SessionConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySessionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SessionConfig) Validate() error {
	if c.ServerAddress != nil && net.ParseIP(*c.ServerAddress) == nil {
		return fmt.Errorf("server_address must be an IP address, got %q", *c.ServerAddress)
	}
	for name, port := range map[string]*int{"server_port": c.ServerPort, "receive_port": c.ReceivePort} {
		if port != nil && (*port < 0 || *port > 65535) {
			return fmt.Errorf("%s must be between 0 and 65535, got %d", name, *port)
		}
	}
	if c.SyncTimeout != nil && *c.SyncTimeout != "" {
		d, err := time.ParseDuration(*c.SyncTimeout)
		if err != nil {
			return fmt.Errorf("invalid sync_timeout '%s': %w", *c.SyncTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("sync_timeout must not be negative, got %s", d)
		}
	}
	if c.TickHz != nil && *c.TickHz <= 0 {
		return fmt.Errorf("tick_hz must be positive, got %d", *c.TickHz)
	}
	if c.BatchSize != nil && *c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", *c.BatchSize)
	}
	if c.PeriodMs != nil && *c.PeriodMs <= 0 {
		return fmt.Errorf("period_ms must be positive, got %d", *c.PeriodMs)
	}
	if c.Sink != nil && *c.Sink != SinkCSV && *c.Sink != SinkSQLite {
		return fmt.Errorf("sink must be %q or %q, got %q", SinkCSV, SinkSQLite, *c.Sink)
	}
	if c.SerialBaud != nil && *c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", *c.SerialBaud)
	}
	return nil
}

// GetServerAddress returns the reference server address or the default.
func (c *SessionConfig) GetServerAddress() string {
	if c.ServerAddress == nil {
		return "192.168.1.1" // default
	}
	return *c.ServerAddress
}

// GetServerPort returns the reference server's hello port or the default.
func (c *SessionConfig) GetServerPort() int {
	if c.ServerPort == nil {
		return 12345 // default
	}
	return *c.ServerPort
}

// GetReceivePort returns the local port timestamps arrive on or the default.
func (c *SessionConfig) GetReceivePort() int {
	if c.ReceivePort == nil {
		return 54321 // default
	}
	return *c.ReceivePort
}

// GetSyncTimeout parses and returns the SyncTimeout. Zero means no timeout.
func (c *SessionConfig) GetSyncTimeout() time.Duration {
	if c.SyncTimeout == nil || *c.SyncTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.SyncTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetTickHz returns the capture rate or the default.
func (c *SessionConfig) GetTickHz() int {
	if c.TickHz == nil {
		return 60 // default
	}
	return *c.TickHz
}

// GetBatchSize returns the max samples per write cycle or the default.
func (c *SessionConfig) GetBatchSize() int {
	if c.BatchSize == nil {
		return 50 // default
	}
	return *c.BatchSize
}

// GetPeriod returns the write cycle period.
func (c *SessionConfig) GetPeriod() time.Duration {
	if c.PeriodMs == nil {
		return 100 * time.Millisecond // default
	}
	return time.Duration(*c.PeriodMs) * time.Millisecond
}

// GetSink returns the sink name or the default.
func (c *SessionConfig) GetSink() string {
	if c.Sink == nil {
		return SinkCSV
	}
	return *c.Sink
}

func (c *SessionConfig) GetCSVPath() string {
	if c.CSVPath == nil {
		return "HeadTrackingData.csv"
	}
	return *c.CSVPath
}

func (c *SessionConfig) GetSQLitePath() string {
	if c.SQLitePath == nil {
		return "headsync.db"
	}
	return *c.SQLitePath
}

func (c *SessionConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

func (c *SessionConfig) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return 115200
	}
	return *c.SerialBaud
}

// Override copies every non-nil field of o onto c. Used to layer CLI flags
// over a loaded file.
func (c *SessionConfig) Override(o *SessionConfig) {
	if o == nil {
		return
	}
	if o.ServerAddress != nil {
		c.ServerAddress = o.ServerAddress
	}
	if o.ServerPort != nil {
		c.ServerPort = o.ServerPort
	}
	if o.ReceivePort != nil {
		c.ReceivePort = o.ReceivePort
	}
	if o.SyncTimeout != nil {
		c.SyncTimeout = o.SyncTimeout
	}
	if o.TickHz != nil {
		c.TickHz = o.TickHz
	}
	if o.BatchSize != nil {
		c.BatchSize = o.BatchSize
	}
	if o.PeriodMs != nil {
		c.PeriodMs = o.PeriodMs
	}
	if o.Sink != nil {
		c.Sink = o.Sink
	}
	if o.CSVPath != nil {
		c.CSVPath = o.CSVPath
	}
	if o.SQLitePath != nil {
		c.SQLitePath = o.SQLitePath
	}
	if o.SerialPort != nil {
		c.SerialPort = o.SerialPort
	}
	if o.SerialBaud != nil {
		c.SerialBaud = o.SerialBaud
	}
}
