package clocksync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/banshee-data/headsync/internal/monitoring"
	"github.com/banshee-data/headsync/internal/timeutil"
)

// Reference is the peer side of the protocol: it waits for a client hello,
// then answers with timestamps from its own clock and a closing "Sync Over".
type Reference struct {
	conn  *net.UDPConn
	clock timeutil.Clock
}

// ListenReference binds a reference peer to addr (host:port, port 0 for
// ephemeral). A nil clock uses the real clock.
func ListenReference(addr string, clock timeutil.Clock) (*Reference, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Reference{conn: conn, clock: clock}, nil
}

// Addr returns the bound address.
func (r *Reference) Addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Close releases the socket.
func (r *Reference) Close() error {
	return r.conn.Close()
}

// AwaitHello blocks until a datagram carrying an IPv4 address arrives and
// returns that address. Other payloads are logged and skipped.
func (r *Reference) AwaitHello(ctx context.Context) (net.IP, error) {
	buf := make([]byte, maxDatagramSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.conn.SetReadDeadline(time.Now().Add(readPollInterval))
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, err
			}
			monitoring.Logf("Reference receive error: %v", err)
			continue
		}
		ip := net.ParseIP(strings.TrimSpace(string(buf[:n]))).To4()
		if ip == nil {
			monitoring.Logf("Ignoring non-hello datagram from %v (%d bytes)", from, n)
			continue
		}
		return ip, nil
	}
}

// SendTimestamps sends each value as one timestamp datagram.
func (r *Reference) SendTimestamps(dst *net.UDPAddr, stamps ...int64) error {
	for _, ms := range stamps {
		if _, err := r.conn.WriteToUDP(EncodeTimestamp(ms), dst); err != nil {
			return fmt.Errorf("failed to send timestamp to %v: %w", dst, err)
		}
	}
	return nil
}

// SendSyncOver ends the session for dst.
func (r *Reference) SendSyncOver(dst *net.UDPAddr) error {
	if _, err := r.conn.WriteToUDP([]byte(SyncOver), dst); err != nil {
		return fmt.Errorf("failed to send %q to %v: %w", SyncOver, dst, err)
	}
	return nil
}

// Serve runs one complete session: wait for a hello, send count timestamps
// of the reference clock spaced by interval to the announced address on
// replyPort, then send "Sync Over".
func (r *Reference) Serve(ctx context.Context, replyPort, count int, interval time.Duration) error {
	ip, err := r.AwaitHello(ctx)
	if err != nil {
		return err
	}
	dst := &net.UDPAddr{IP: ip, Port: replyPort}
	monitoring.Logf("Sync client %s announced; sending %d timestamps to %v", ip, count, dst)

	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		if err := r.SendTimestamps(dst, timeutil.UnixMilli(r.clock)); err != nil {
			return err
		}
	}
	return r.SendSyncOver(dst)
}
