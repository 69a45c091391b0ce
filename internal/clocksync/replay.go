package clocksync

import (
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReplayResult summarises an offline estimate from a packet capture.
type ReplayResult struct {
	OffsetMs   int64
	Timestamps int
	Packets    int
	SyncOver   bool
}

// ReplayPCAP estimates the offset from a pcap capture of a sync session taken
// on the client. Each timestamp datagram's capture time stands in for the
// local receive time. Only UDP packets to port are considered (0 for any),
// and reading stops at the first "Sync Over".
//
// The returned error wraps ErrNoSyncData when the capture holds no timestamps.
func ReplayPCAP(r io.Reader, port int) (ReplayResult, error) {
	var res ReplayResult

	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return res, fmt.Errorf("failed to open pcap stream: %w", err)
	}

	var differences []int64
	for !res.SyncOver {
		data, ci, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to read packet %d: %w", res.Packets+1, err)
		}
		res.Packets++

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		d, err := ParseDatagram(udp.Payload)
		if err != nil {
			continue
		}
		switch d.Kind {
		case KindTimestamp:
			differences = append(differences, ci.Timestamp.UnixMilli()-d.RemoteMs)
		case KindSyncOver:
			res.SyncOver = true
		}
	}

	res.Timestamps = len(differences)
	res.OffsetMs, err = MeanOffset(differences)
	return res, err
}
