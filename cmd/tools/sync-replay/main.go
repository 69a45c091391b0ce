// Command sync-replay estimates the clock offset from a packet capture of a
// sync session taken on the client, e.g. with
// `tcpdump -w sync.pcap udp port 54321`.
//
// Usage:
//
//	go run ./cmd/tools/sync-replay -pcap sync.pcap [-port 54321]
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/headsync/internal/clocksync"
)

func main() {
	pcapFile := flag.String("pcap", "", "Path to the pcap file (required)")
	port := flag.Int("port", 54321, "Destination UDP port of the timestamp datagrams (0 for any)")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("Error: -pcap flag is required")
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("Failed to open pcap: %v", err)
	}
	defer f.Close()

	res, err := clocksync.ReplayPCAP(f, *port)
	if err != nil && !errors.Is(err, clocksync.ErrNoSyncData) {
		log.Fatalf("Failed to replay capture: %v", err)
	}
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	if !res.SyncOver {
		log.Printf("Warning: capture ends before %q", clocksync.SyncOver)
	}

	fmt.Printf("packets=%d timestamps=%d sync_over=%t offset_ms=%d\n",
		res.Packets, res.Timestamps, res.SyncOver, res.OffsetMs)
}
