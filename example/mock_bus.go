package main

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jpalmerr/canmon/internal/frame"
)

// mockNode is one simulated ECU broadcasting a frame with a drifting value.
type mockNode struct {
	id      uint32
	payload []byte
	// drift is the payload byte that changes on every send.
	drift int
}

// StartMockBus writes simulated frame lines to w every interval until ctx
// is done, then closes w. Roughly one line in fifty is corrupted to show
// that malformed input is skipped.
func StartMockBus(ctx context.Context, w io.WriteCloser, interval time.Duration) {
	defer w.Close()

	nodes := []*mockNode{
		{id: 0xF6, payload: []byte{0x8E, 0x62, 0x1C, 0xF6, 0x1E, 0x63, 0x63, 0x20}, drift: 7},
		{id: 0x101, payload: []byte{0x00, 0x32}, drift: 1},
		{id: 0x1A0, payload: []byte{0x5A, 0x5B, 0x5C, 0x5D}, drift: 2},
		{id: 0x3E8, payload: []byte{0x01}, drift: 0},
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n := nodes[rand.Intn(len(nodes))]
		n.payload[n.drift]++
		line := frame.Encode(frame.Frame{ID: n.id, Payload: n.payload})
		if rand.Intn(50) == 0 {
			line = line[:len(line)/2]
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			slog.Error("mock bus write failed", "error", err)
			return
		}
	}
}
