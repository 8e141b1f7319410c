package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/canmon"
)

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// simulated adapter (see mock_bus.go); a real one comes from
	// canmon.OpenSerial("/dev/ttyACM0", 115200, 0)
	pr, pw := io.Pipe()
	go StartMockBus(ctx, pw, 20*time.Millisecond)

	m, err := canmon.New(pr,
		canmon.WithAllowIDs(0xF6, 0x101, 0x1A0),
		canmon.WithHTTPAddr("127.0.0.1:8080"),
		canmon.WithTitle("canmon demo"),
		canmon.WithFrameCallback(func(f canmon.Frame) {
			if f.ID == 0x101 && f.Payload[1] == 0 {
				slog.Info("speed counter wrapped", "id", canmon.FormatID(f.ID))
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  canmon demo")
	fmt.Println("  Dashboard: http://127.0.0.1:8080")
	fmt.Println("  Simulated IDs 0xF6, 0x101, 0x1A0 (0x3E8 is filtered)")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// print the table once a second, like a minimal static view
	err = m.Run(ctx, func(ctx context.Context, m *canmon.Monitor) error {
		sig := m.Subscribe()
		defer m.Unsubscribe(sig)

		last := time.Time{}
		for {
			if !sig.WaitContext(ctx, time.Second) && ctx.Err() != nil {
				return nil
			}
			if time.Since(last) < time.Second {
				continue
			}
			last = time.Now()
			for _, r := range m.Snapshot() {
				fmt.Printf("  %-8s %-24s %6d\n", canmon.FormatID(r.ID), r.HexString(), r.Count)
			}
			s := m.Stats()
			fmt.Printf("  frames %d  filtered %d  malformed %d\n\n", s.FramesAccepted, s.FramesFiltered, s.MalformedLines)
		}
	})
	if err != nil {
		slog.Error("monitor error", "error", err)
		os.Exit(1)
	}
}
