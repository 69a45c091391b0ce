// Package clocksync estimates the offset between the local clock and a remote
// reference clock. The reference peer answers a one-line hello with a burst
// of 8-byte big-endian millisecond timestamps and ends the session with the
// ASCII text "Sync Over". The offset is the mean of local-minus-remote
// differences observed while the burst arrives.
package clocksync

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// SyncOver is the text payload that ends a sync session.
const SyncOver = "Sync Over"

// TimestampSize is the payload length of a timestamp datagram.
const TimestampSize = 8

// ErrMalformedDatagram is returned for payloads that are neither a timestamp
// nor decodable text.
var ErrMalformedDatagram = errors.New("malformed sync datagram")

// DatagramKind classifies a received payload.
type DatagramKind int

const (
	KindTimestamp DatagramKind = iota
	KindSyncOver
	KindText
)

func (k DatagramKind) String() string {
	switch k {
	case KindTimestamp:
		return "timestamp"
	case KindSyncOver:
		return "sync_over"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("DatagramKind(%d)", int(k))
	}
}

// Datagram is a decoded sync payload. RemoteMs is set for KindTimestamp and
// Text for the text kinds.
type Datagram struct {
	Kind     DatagramKind
	RemoteMs int64
	Text     string
}

// ParseDatagram classifies payload by shape: exactly TimestampSize bytes is a
// remote timestamp, anything else is text.
func ParseDatagram(payload []byte) (Datagram, error) {
	if len(payload) == TimestampSize {
		return Datagram{
			Kind:     KindTimestamp,
			RemoteMs: int64(binary.BigEndian.Uint64(payload)),
		}, nil
	}
	if !utf8.Valid(payload) {
		return Datagram{}, fmt.Errorf("%w: %d bytes of non-text payload", ErrMalformedDatagram, len(payload))
	}
	text := string(payload)
	if text == SyncOver {
		return Datagram{Kind: KindSyncOver, Text: text}, nil
	}
	return Datagram{Kind: KindText, Text: text}, nil
}

// EncodeTimestamp returns the wire form of a remote timestamp.
func EncodeTimestamp(ms int64) []byte {
	b := make([]byte, TimestampSize)
	binary.BigEndian.PutUint64(b, uint64(ms))
	return b
}
