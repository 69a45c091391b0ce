// Command sync-peer is a reference clock for headsync. It waits for a client
// hello, answers with timestamps from the local clock and ends with
// "Sync Over", then waits for the next client.
//
// Usage:
//
//	go run ./cmd/tools/sync-peer [flags]
//
// Flags:
//
//	-listen     Hello listen address (default: :12345)
//	-reply-port Port the client receives timestamps on (default: 54321)
//	-count      Timestamps per session (default: 10)
//	-interval   Gap between timestamps (default: 10ms)
//	-once       Exit after one session
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/headsync/internal/clocksync"
)

func main() {
	listen := flag.String("listen", ":12345", "Hello listen address")
	replyPort := flag.Int("reply-port", 54321, "Port the client receives timestamps on")
	count := flag.Int("count", 10, "Timestamps per session")
	interval := flag.Duration("interval", 10*time.Millisecond, "Gap between timestamps")
	once := flag.Bool("once", false, "Exit after one session")
	flag.Parse()

	if *count < 0 {
		log.Fatal("Error: -count must not be negative")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ref, err := clocksync.ListenReference(*listen, nil)
	if err != nil {
		log.Fatalf("Failed to start reference peer: %v", err)
	}
	defer ref.Close()
	log.Printf("Reference clock listening on %s", ref.Addr())

	for {
		err := ref.Serve(ctx, *replyPort, *count, *interval)
		switch {
		case errors.Is(err, context.Canceled):
			log.Printf("Reference clock stopped")
			return
		case err != nil:
			log.Printf("Sync session failed: %v", err)
		default:
			log.Printf("Sync session complete")
		}
		if *once {
			return
		}
	}
}
