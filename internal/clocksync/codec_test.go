package clocksync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatagram(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Datagram
	}{
		{
			name:    "timestamp",
			payload: []byte{0, 0, 0x01, 0x8b, 0xcf, 0xe5, 0x68, 0x00},
			want:    Datagram{Kind: KindTimestamp, RemoteMs: 1_700_000_000_000},
		},
		{
			name:    "sync over",
			payload: []byte("Sync Over"),
			want:    Datagram{Kind: KindSyncOver, Text: SyncOver},
		},
		{
			name:    "other text",
			payload: []byte("hello"),
			want:    Datagram{Kind: KindText, Text: "hello"},
		},
		{
			name:    "sync over with trailing newline is plain text",
			payload: []byte("Sync Over\n"),
			want:    Datagram{Kind: KindText, Text: "Sync Over\n"},
		},
		{
			name:    "eight byte text is a timestamp",
			payload: []byte("SyncOver"),
			want:    Datagram{Kind: KindTimestamp, RemoteMs: 0x53796e634f766572},
		},
		{
			name:    "empty payload",
			payload: []byte{},
			want:    Datagram{Kind: KindText, Text: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDatagram(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDatagram_Malformed(t *testing.T) {
	_, err := ParseDatagram([]byte{0xff, 0xfe, 0xfd})
	if !errors.Is(err, ErrMalformedDatagram) {
		t.Errorf("expected ErrMalformedDatagram, got %v", err)
	}
}

func TestEncodeTimestamp_RoundTrip(t *testing.T) {
	for _, ms := range []int64{0, 1_700_000_000_000, -5} {
		got, err := ParseDatagram(EncodeTimestamp(ms))
		require.NoError(t, err)
		assert.Equal(t, KindTimestamp, got.Kind)
		assert.Equal(t, ms, got.RemoteMs)
	}
}

func TestDatagramKind_String(t *testing.T) {
	assert.Equal(t, "timestamp", KindTimestamp.String())
	assert.Equal(t, "sync_over", KindSyncOver.String())
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "DatagramKind(9)", DatagramKind(9).String())
}
