package clocksync

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedDatagram struct {
	at      time.Time
	dstPort uint16
	payload []byte
}

func writeCapture(t *testing.T, datagrams []capturedDatagram) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	for _, d := range datagrams {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 168, 1, 1),
			DstIP:    net.IPv4(192, 168, 1, 20),
		}
		udp := &layers.UDP{SrcPort: 12345, DstPort: layers.UDPPort(d.dstPort)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		sb := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(sb, opts, eth, ip, udp, gopacket.Payload(d.payload)))

		data := sb.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     d.at,
			CaptureLength: len(data),
			Length:        len(data),
		}, data))
	}
	return &buf
}

func TestReplayPCAP(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	capture := writeCapture(t, []capturedDatagram{
		{at: base, dstPort: 54321, payload: EncodeTimestamp(1_700_000_000_000 - 10)},
		{at: base.Add(5 * time.Millisecond), dstPort: 54321, payload: EncodeTimestamp(1_700_000_000_005 - 20)},
		{at: base.Add(6 * time.Millisecond), dstPort: 9999, payload: EncodeTimestamp(0)},
		{at: base.Add(7 * time.Millisecond), dstPort: 54321, payload: []byte("status: ok")},
		{at: base.Add(9 * time.Millisecond), dstPort: 54321, payload: EncodeTimestamp(1_700_000_000_009 - 30)},
		{at: base.Add(10 * time.Millisecond), dstPort: 54321, payload: []byte(SyncOver)},
		{at: base.Add(11 * time.Millisecond), dstPort: 54321, payload: EncodeTimestamp(0)},
	})

	res, err := ReplayPCAP(capture, 54321)
	require.NoError(t, err)

	assert.Equal(t, int64(20), res.OffsetMs)
	assert.Equal(t, 3, res.Timestamps)
	assert.True(t, res.SyncOver)
	assert.Equal(t, 6, res.Packets, "reading stops at Sync Over")
}

func TestReplayPCAP_NoTimestamps(t *testing.T) {
	capture := writeCapture(t, []capturedDatagram{
		{at: time.UnixMilli(1000), dstPort: 54321, payload: []byte(SyncOver)},
	})

	res, err := ReplayPCAP(capture, 54321)
	assert.True(t, errors.Is(err, ErrNoSyncData), "got %v", err)
	assert.Equal(t, int64(0), res.OffsetMs)
	assert.True(t, res.SyncOver)
}

func TestReplayPCAP_NotPcap(t *testing.T) {
	_, err := ReplayPCAP(bytes.NewReader([]byte("definitely not a capture")), 0)
	assert.Error(t, err)
}
