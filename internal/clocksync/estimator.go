package clocksync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/headsync/internal/monitoring"
	"github.com/banshee-data/headsync/internal/timeutil"
)

// readPollInterval bounds each blocking read so the listener can notice
// cancellation and the optional sync timeout.
const readPollInterval = 100 * time.Millisecond

// maxDatagramSize covers any payload a sync peer sends.
const maxDatagramSize = 1500

// Config contains configuration options for the Estimator.
type Config struct {
	ServerAddress string
	ServerPort    int
	ReceivePort   int

	// SyncTimeout, when positive, ends the session and computes the offset
	// from whatever was collected if "Sync Over" has not arrived in time.
	// Zero waits indefinitely.
	SyncTimeout time.Duration

	Clock            timeutil.Clock
	ResolveLocalAddr AddrResolver
}

// Stats counts datagrams seen by the listener.
type Stats struct {
	Timestamps uint64
	SyncOver   uint64
	Text       uint64
	Invalid    uint64
	ReadErrors uint64
}

// Estimator runs the client side of the sync protocol and publishes the
// resulting offset to a State exactly once.
type Estimator struct {
	cfg   Config
	state *State
	clock timeutil.Clock

	// mu guards differences. Only the listener goroutine appends and
	// averages today, so the lock is uncontended.
	mu          sync.Mutex
	differences []int64

	lifecycleMu sync.Mutex
	started     bool
	recvConn    *net.UDPConn
	sendConn    *net.UDPConn
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once
	done        chan struct{}
	doneOnce    sync.Once

	timestamps atomic.Uint64
	syncOver   atomic.Uint64
	text       atomic.Uint64
	invalid    atomic.Uint64
	readErrors atomic.Uint64
	published  atomic.Bool
}

// NewEstimator creates an Estimator that publishes into state.
func NewEstimator(cfg Config, state *State) *Estimator {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.ResolveLocalAddr == nil {
		cfg.ResolveLocalAddr = OutboundIPv4
	}
	return &Estimator{
		cfg:   cfg,
		state: state,
		clock: cfg.Clock,
		done:  make(chan struct{}),
	}
}

// Start resolves the local address, sends it to the peer as the hello
// datagram and starts the listener goroutine. It returns an error wrapping
// ErrNetworkUnavailable when no local IPv4 address can be found.
func (e *Estimator) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.started {
		return errors.New("clock sync already started")
	}
	e.started = true

	server := net.JoinHostPort(e.cfg.ServerAddress, strconv.Itoa(e.cfg.ServerPort))
	localIP, err := e.cfg.ResolveLocalAddr(server)
	switch {
	case errors.Is(err, ErrNetworkUnavailable):
		return err
	case err != nil:
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	case localIP == nil || localIP.To4() == nil:
		return ErrNetworkUnavailable
	}

	recv, err := net.ListenUDP("udp4", &net.UDPAddr{Port: e.cfg.ReceivePort})
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", e.cfg.ReceivePort, err)
	}

	serverAddr, err := net.ResolveUDPAddr("udp4", server)
	if err != nil {
		recv.Close()
		return fmt.Errorf("failed to resolve sync server %s: %w", server, err)
	}
	send, err := net.DialUDP("udp4", nil, serverAddr)
	if err != nil {
		recv.Close()
		return fmt.Errorf("failed to open UDP socket to %s: %w", server, err)
	}
	e.recvConn = recv
	e.sendConn = send

	// A lost hello is not fatal: the peer may already know this client.
	if _, err := send.Write([]byte(localIP.To4().String())); err != nil {
		monitoring.Logf("Error sending local address %s to %s: %v", localIP, server, err)
	}

	var timeout timeutil.Timer
	if e.cfg.SyncTimeout > 0 {
		timeout = e.clock.NewTimer(e.cfg.SyncTimeout)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go e.listen(listenCtx, timeout)

	monitoring.Logf("Clock sync started: announced %s to %s, listening on %s", localIP, server, recv.LocalAddr())
	return nil
}

// ReceiveAddr returns the bound address of the receive socket, or nil before
// Start succeeds.
func (e *Estimator) ReceiveAddr() *net.UDPAddr {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	if e.recvConn == nil {
		return nil
	}
	addr, _ := e.recvConn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Done is closed when the listener has exited, or when Stop is called on an
// estimator that never started listening.
func (e *Estimator) Done() <-chan struct{} {
	return e.done
}

// Stats returns a snapshot of the datagram counters.
func (e *Estimator) Stats() Stats {
	return Stats{
		Timestamps: e.timestamps.Load(),
		SyncOver:   e.syncOver.Load(),
		Text:       e.text.Load(),
		Invalid:    e.invalid.Load(),
		ReadErrors: e.readErrors.Load(),
	}
}

// Synced reports whether this estimator completed a sync session and
// published its offset. A zero offset published by a caller's fallback does
// not count.
func (e *Estimator) Synced() bool {
	return e.published.Load()
}

// Stop ends the listener, closes both sockets and waits for the listener
// goroutine. It is safe to call more than once and before or after a failed
// Start. Stop does not publish an offset.
func (e *Estimator) Stop() {
	e.stopOnce.Do(func() {
		e.lifecycleMu.Lock()
		cancel, recv, send := e.cancel, e.recvConn, e.sendConn
		e.lifecycleMu.Unlock()

		if cancel != nil {
			cancel()
		}
		if recv != nil {
			recv.Close()
		}
		e.wg.Wait()
		if send != nil {
			send.Close()
		}
		e.closeDone()
	})
}

func (e *Estimator) closeDone() {
	e.doneOnce.Do(func() { close(e.done) })
}

// listen reads datagrams until "Sync Over", cancellation, or timeout
// firing. A nil timeout waits indefinitely.
func (e *Estimator) listen(ctx context.Context, timeout timeutil.Timer) {
	defer e.wg.Done()
	defer e.closeDone()

	var expired <-chan time.Time
	if timeout != nil {
		defer timeout.Stop()
		expired = timeout.C()
	}
	buf := make([]byte, maxDatagramSize)

	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-expired:
			monitoring.Warnf("no %q within %v; computing offset from %d timestamps",
				SyncOver, e.cfg.SyncTimeout, e.timestamps.Load())
			e.computeOffset()
			return
		default:
		}

		e.recvConn.SetReadDeadline(time.Now().Add(readPollInterval))
		n, from, err := e.recvConn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			// Closing the socket in Stop unblocks the read; that is not an error.
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			e.readErrors.Add(1)
			monitoring.SyncReadErrors.Inc()
			monitoring.Logf("Sync receive error: %v", err)
			continue
		}

		if e.handleDatagram(buf[:n], from) {
			e.computeOffset()
			return
		}
	}
}

// handleDatagram folds one payload into the session and reports whether it
// ended the session.
func (e *Estimator) handleDatagram(payload []byte, from *net.UDPAddr) bool {
	d, err := ParseDatagram(payload)
	if err != nil {
		e.invalid.Add(1)
		monitoring.SyncDatagrams.WithLabelValues(monitoring.DatagramInvalid).Inc()
		monitoring.Logf("Ignoring datagram from %v: %v", from, err)
		return false
	}

	switch d.Kind {
	case KindTimestamp:
		diff := timeutil.UnixMilli(e.clock) - d.RemoteMs
		e.mu.Lock()
		e.differences = append(e.differences, diff)
		e.mu.Unlock()
		e.timestamps.Add(1)
		monitoring.SyncDatagrams.WithLabelValues(monitoring.DatagramTimestamp).Inc()
	case KindSyncOver:
		e.syncOver.Add(1)
		monitoring.SyncDatagrams.WithLabelValues(monitoring.DatagramSyncOver).Inc()
		return true
	default:
		e.text.Add(1)
		monitoring.SyncDatagrams.WithLabelValues(monitoring.DatagramText).Inc()
		monitoring.Logf("Ignoring text datagram from %v: %q", from, d.Text)
	}
	return false
}

// computeOffset averages the collected differences and publishes the result.
// With no differences the offset is zero and ErrNoSyncData is logged; the
// state is still published so capture never waits on a failed session.
func (e *Estimator) computeOffset() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	offset, err := MeanOffset(e.differences)
	if err != nil {
		monitoring.Warnf("%v; using zero offset", err)
	} else {
		monitoring.Logf("Average offset calculated: %d ms from %d timestamps", offset, len(e.differences))
	}
	e.differences = nil

	if e.state.Publish(offset) {
		e.published.Store(true)
	} else {
		monitoring.Warnf("clock offset already published; discarding %d ms", offset)
	}
	return offset
}
