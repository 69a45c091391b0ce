// Command headsync synchronises with a reference clock over UDP and records
// the device pose, corrected to the reference clock, until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/headsync/internal/clocksync"
	"github.com/banshee-data/headsync/internal/config"
	"github.com/banshee-data/headsync/internal/db"
	"github.com/banshee-data/headsync/internal/monitoring"
	"github.com/banshee-data/headsync/internal/pose"
	"github.com/banshee-data/headsync/internal/session"
	"github.com/banshee-data/headsync/internal/telemetry"
	"github.com/banshee-data/headsync/internal/version"
	"github.com/banshee-data/headsync/internal/writer"
)

var (
	configFile    = flag.String("config", "", "Path to a JSON session config file")
	devMode       = flag.Bool("dev", false, "Use a static pose instead of the serial tracker")
	metricsListen = flag.String("metrics-listen", "", "Serve Prometheus metrics on this address (disabled when empty)")
	showVersion   = flag.Bool("version", false, "Print version and exit")

	// These override the matching config file keys when set.
	serverAddress = flag.String("server", "", "Reference clock IPv4 address")
	serverPort    = flag.Int("server-port", 0, "Reference clock hello port")
	receivePort   = flag.Int("receive-port", 0, "Local port for timestamp datagrams")
	syncTimeout   = flag.Duration("sync-timeout", 0, "Give up waiting for \"Sync Over\" after this long (0 waits forever)")
	tickHz        = flag.Int("tick-hz", 0, "Pose capture rate")
	batchSize     = flag.Int("batch-size", 0, "Max samples per write")
	periodMs      = flag.Int("period-ms", 0, "Write period in milliseconds")
	sinkName      = flag.String("sink", "", "Output sink: csv or sqlite")
	csvPath       = flag.String("csv", "", "CSV output path")
	dbPath        = flag.String("db", "", "SQLite database path")
	serialPort    = flag.String("serial", "", "Serial port of the pose tracker")
	serialBaud    = flag.Int("baud", 0, "Serial baud rate")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("headsync"))
		return
	}

	cfg, err := loadConfig(*configFile, flagOverrides(flag.CommandLine))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := openOutput(cfg, time.Now())
	if err != nil {
		log.Fatalf("Failed to open output: %v", err)
	}

	var wg sync.WaitGroup
	source, closeSource, err := openSource(ctx, cfg, &wg)
	if err != nil {
		log.Fatalf("Failed to open pose source: %v", err)
	}

	if *metricsListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveMetrics(ctx, *metricsListen)
		}()
	}

	s := session.New(session.Config{
		ID: out.id,
		Sync: clocksync.Config{
			ServerAddress: cfg.GetServerAddress(),
			ServerPort:    cfg.GetServerPort(),
			ReceivePort:   cfg.GetReceivePort(),
			SyncTimeout:   cfg.GetSyncTimeout(),
		},
		TickHz:    cfg.GetTickHz(),
		BatchSize: cfg.GetBatchSize(),
		Period:    cfg.GetPeriod(),
	}, source, out.sink)

	if err := s.Start(ctx); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	<-ctx.Done()
	log.Printf("shutting down session %s...", s.ID())

	exitCode := 0
	if err := s.Stop(); err != nil {
		log.Printf("Session ended with errors: %v", err)
		exitCode = 1
	}
	offset, _ := s.Offset()
	if err := out.finish(offset, s.Synced()); err != nil {
		log.Printf("Failed to finalise output: %v", err)
		exitCode = 1
	}
	if err := closeSource(); err != nil {
		log.Printf("Failed to close pose source: %v", err)
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
	os.Exit(exitCode)
}

// loadConfig reads path (if any) and layers overrides on top.
func loadConfig(path string, overrides *config.SessionConfig) (*config.SessionConfig, error) {
	cfg := config.EmptySessionConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadSessionConfig(path); err != nil {
			return nil, err
		}
	}
	cfg.Override(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagOverrides returns a partial config holding only the override flags
// that were set in fs.
func flagOverrides(fs *flag.FlagSet) *config.SessionConfig {
	o := config.EmptySessionConfig()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			o.ServerAddress = serverAddress
		case "server-port":
			o.ServerPort = serverPort
		case "receive-port":
			o.ReceivePort = receivePort
		case "sync-timeout":
			d := syncTimeout.String()
			o.SyncTimeout = &d
		case "tick-hz":
			o.TickHz = tickHz
		case "batch-size":
			o.BatchSize = batchSize
		case "period-ms":
			o.PeriodMs = periodMs
		case "sink":
			o.Sink = sinkName
		case "csv":
			o.CSVPath = csvPath
		case "db":
			o.SQLitePath = dbPath
		case "serial":
			o.SerialPort = serialPort
		case "baud":
			o.SerialBaud = serialBaud
		}
	})
	return o
}

// output is the session's sink plus whatever owns it.
type output struct {
	id   uuid.UUID
	sink writer.Sink
	db   *db.DB
}

func openOutput(cfg *config.SessionConfig, startedAt time.Time) (*output, error) {
	switch cfg.GetSink() {
	case config.SinkSQLite:
		store, err := db.Open(cfg.GetSQLitePath())
		if err != nil {
			return nil, err
		}
		id, err := store.CreateSession(cfg.GetServerAddress(), startedAt)
		if err != nil {
			store.Close()
			return nil, err
		}
		log.Printf("Recording session %s to %s", id, cfg.GetSQLitePath())
		return &output{id: id, sink: store.Sink(id), db: store}, nil
	default:
		sink, err := writer.CreateCSV(cfg.GetCSVPath())
		if err != nil {
			return nil, err
		}
		log.Printf("Recording to %s", cfg.GetCSVPath())
		return &output{id: uuid.New(), sink: sink}, nil
	}
}

// finish records the applied offset, and whether clock sync produced it, then
// releases the database, if any. The session has already closed the sink.
func (o *output) finish(offsetMs int64, synced bool) error {
	if o.db == nil {
		return nil
	}
	return errors.Join(
		o.db.SetSessionOffset(o.id, offsetMs, synced),
		o.db.Close(),
	)
}

// openSource returns the static pose in dev mode or when no serial port is
// configured, otherwise the serial tracker with its read loop running.
func openSource(ctx context.Context, cfg *config.SessionConfig, wg *sync.WaitGroup) (pose.Source, func() error, error) {
	if *devMode || cfg.GetSerialPort() == "" {
		log.Printf("Using static pose source")
		return pose.Static{Orientation: telemetry.Quat{W: 1}}, func() error { return nil }, nil
	}

	tracker, err := pose.OpenSerial(cfg.GetSerialPort(), pose.PortOptions{BaudRate: cfg.GetSerialBaud()})
	if err != nil {
		return nil, nil, err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tracker.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pose monitor stopped: %v", err)
		}
		log.Print("pose monitor routine terminated")
	}()
	return tracker, tracker.Close, nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
		server.Close()
	}
}
