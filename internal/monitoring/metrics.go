package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Datagram kinds used as the "kind" label on SyncDatagrams.
const (
	DatagramTimestamp = "timestamp"
	DatagramSyncOver  = "sync_over"
	DatagramText      = "text"
	DatagramInvalid   = "invalid"
)

// Capture phases used as the "phase" label on SamplesCaptured.
const (
	PhaseBuffered = "buffered"
	PhaseLive     = "live"
)

var (
	SyncDatagrams = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headsync_sync_datagrams_total",
			Help: "Datagrams received from the reference clock, by kind",
		},
		[]string{"kind"},
	)

	SyncReadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headsync_sync_read_errors_total",
			Help: "Socket read errors on the sync listener (excluding shutdown)",
		},
	)

	ClockOffsetMs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headsync_clock_offset_ms",
			Help: "Published clock offset in milliseconds",
		},
	)

	ClockOffsetComputed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headsync_clock_offset_computed",
			Help: "1 once the clock offset has been published, 0 before",
		},
	)

	SamplesCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headsync_samples_captured_total",
			Help: "Pose samples captured, by phase (buffered before sync, live after)",
		},
		[]string{"phase"},
	)

	SamplesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headsync_samples_written_total",
			Help: "Pose samples persisted to the sink",
		},
	)

	SinkWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headsync_sink_write_errors_total",
			Help: "Failed batch writes; the batch is re-queued",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headsync_queue_depth",
			Help: "Samples waiting in the main queue after the last write cycle",
		},
	)
)

// Handler serves the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
