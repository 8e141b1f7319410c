// Package canmon watches a serial CAN adapter that prints one text line per
// received frame and keeps the latest payload of every CAN ID.
//
// Lines look like this:
//
//	FR:ID=246:LN=8:8E:62:1C:F6:1E:63:63:20
//
// A [Monitor] reads lines from any byte source on its own goroutine,
// decodes them, drops malformed ones and frames outside the [AllowList],
// and records the rest in a shared table. Consumers such as the terminal
// view or the HTTP dashboard read that table and wait on a [RedrawSignal]
// to learn when it changed.
//
// # Quick Start
//
//	port, err := canmon.OpenSerial("/dev/ttyUSB0", 115200, 100*time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	m, err := canmon.New(port, canmon.WithAllowIDs(0xF6))
//	if err != nil {
//	    return err
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	<-ctx.Done()
//	return m.Stop() // the fatal read error, if any
//
// # Lifecycle
//
// A monitor moves through [StateIdle], [StateRunning], [StateStopRequested]
// and [StateStopped]. [Monitor.Stop] always releases the source and joins
// the reader before it reports anything, and read errors caused by the stop
// itself are never reported. [Monitor.Run] wraps Start, a [Consumer] and
// Stop into one call.
//
// # Architecture
//
// The internal packages are not part of the public API:
//
//   - internal/frame: line decoder and encoder
//   - internal/assembler: splits a byte stream into lines
//   - internal/reader: the producer loop
//   - internal/store: per-ID table and recent history
//   - internal/signal: coalescing change notification
//   - internal/source: serial, file, stdin and capture replay sources
//   - internal/capture: CBOR and MessagePack frame recordings
//   - internal/server: JSON API and Server-Sent Events
//   - internal/tui: terminal views
//   - dashboard: embedded web page
package canmon
