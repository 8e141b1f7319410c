package canmon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestWithFrameCallback_InvokedPerAcceptedFrame(t *testing.T) {
	input := "FR:ID=1:LN=1:01\nFR:ID=2:LN=1:02\ngarbage\nFR:ID=1:LN=1:03\n"

	var mu sync.Mutex
	var got []Frame
	cb := func(f Frame) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	}

	m := newTestMonitor(t, io.NopCloser(strings.NewReader(input)), WithFrameCallback(cb))
	if err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("callback invoked %d times, want 3", len(got))
	}
	if got[2].ID != 1 || !bytes.Equal(got[2].Payload, []byte{0x03}) {
		t.Errorf("third frame = %+v", got[2])
	}
	if got[0].ObservedAt.IsZero() {
		t.Error("ObservedAt not set")
	}
}

func TestWithFrameCallback_RunsAfterStoreUpdate(t *testing.T) {
	var m *Monitor
	var seen uint64
	cb := func(f Frame) {
		for _, r := range m.Snapshot() {
			if r.ID == f.ID {
				seen = r.Count
			}
		}
	}

	m = newTestMonitor(t, io.NopCloser(strings.NewReader("FR:ID=7:LN=0:\n")), WithFrameCallback(cb))
	if err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if seen != 1 {
		t.Errorf("callback saw count %d, want 1", seen)
	}
}

func TestWithFrameCallback_ExecutionOrder(t *testing.T) {
	var order []int
	m := newTestMonitor(t, io.NopCloser(strings.NewReader("FR:ID=1:LN=1:01\n")),
		WithFrameCallback(func(Frame) { order = append(order, 1) }),
		WithFrameCallback(func(Frame) { order = append(order, 2) }),
		WithFrameCallback(func(Frame) { order = append(order, 3) }),
	)
	if err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestWithFrameCallback_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var after int
	m, err := New(io.NopCloser(strings.NewReader("FR:ID=1:LN=1:01\nFR:ID=2:LN=1:02\n")),
		WithLogger(logger),
		WithFrameCallback(func(Frame) { panic("callback exploded") }),
		WithFrameCallback(func(Frame) { after++ }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if after != 2 {
		t.Errorf("callback after the panicking one ran %d times, want 2", after)
	}
	if got := len(m.Snapshot()); got != 2 {
		t.Errorf("Snapshot() has %d records, want 2", got)
	}
	logs := buf.String()
	if !strings.Contains(logs, "frame callback panicked") || !strings.Contains(logs, "correlation_id") {
		t.Errorf("panic not logged with correlation id: %s", logs)
	}
}

func TestWithFrameCallback_NilIsSafe(t *testing.T) {
	m := newTestMonitor(t, io.NopCloser(strings.NewReader("FR:ID=1:LN=0:\n")), WithFrameCallback(nil))
	if err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestWithFrameCallback_NoSharedPayload(t *testing.T) {
	var captured Frame
	m := newTestMonitor(t, io.NopCloser(strings.NewReader("FR:ID=9:LN=2:AA:BB\n")),
		WithFrameCallback(func(f Frame) {
			captured = f
			f.Payload[0] = 0x00
		}),
	)
	if err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if captured.ID != 9 {
		t.Fatalf("captured = %+v", captured)
	}
	if got := m.Snapshot()[0].HexString(); got != "AA BB" {
		t.Errorf("stored payload = %s, callback mutation leaked into the store", got)
	}
}

func TestRun_ConsumerDecidesAfterEndOfStream(t *testing.T) {
	m := newTestMonitor(t, io.NopCloser(strings.NewReader("FR:ID=1:LN=0:\n")))

	var sawDone bool
	err := m.Run(context.Background(), func(ctx context.Context, m *Monitor) error {
		select {
		case <-m.Done():
			sawDone = true
		case <-time.After(2 * time.Second):
		}
		// still allowed to read after the stream ended
		if len(m.Snapshot()) != 1 {
			return errors.New("snapshot missing record")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sawDone {
		t.Error("consumer did not observe Done()")
	}
}

func TestRun_FatalErrorCancelsConsumer(t *testing.T) {
	boom := errors.New("port vanished")
	m := newTestMonitor(t, &failingSource{err: boom})

	err := m.Run(context.Background(), func(ctx context.Context, m *Monitor) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
	if m.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", m.State())
	}
}

func TestRun_ConsumerErrorReturned(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	m := newTestMonitor(t, pr)

	quit := errors.New("user quit with error")
	err := m.Run(context.Background(), func(ctx context.Context, m *Monitor) error {
		return quit
	})
	if !errors.Is(err, quit) {
		t.Errorf("Run() error = %v, want %v", err, quit)
	}
	if m.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", m.State())
	}
}

func TestRun_ConsumerPanicStillStops(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := &trackingSource{Reader: pr}
	m := newTestMonitor(t, src)

	err := m.Run(context.Background(), func(ctx context.Context, m *Monitor) error {
		panic("render failed")
	})
	if err == nil || !strings.Contains(err.Error(), "consumer panicked") {
		t.Errorf("Run() error = %v, want consumer panic error", err)
	}
	if src.closed.Load() != 1 {
		t.Error("source not closed after consumer panic")
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	m := newTestMonitor(t, pr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, func(ctx context.Context, m *Monitor) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context timeout")
	}
}
