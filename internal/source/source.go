package source

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// DefaultReadTimeout bounds a single serial read so the reader loop can
// notice a stop request even on a silent bus.
const DefaultReadTimeout = 100 * time.Millisecond

// DefaultBaudRate matches the adapters this tool was written for.
const DefaultBaudRate = 115200

// Source is a readable, closable byte stream.
type Source interface {
	io.Reader
	io.Closer
}

// OpenSerial opens a serial device in raw 8N1 mode. A readTimeout of zero
// or less uses [DefaultReadTimeout]; reads that time out return 0, nil.
func OpenSerial(device string, baud int, readTimeout time.Duration) (Source, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial device %s: %w", device, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}

	return port, nil
}

// OpenFile opens a file or named pipe containing frame lines.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame file: %w", err)
	}
	return f, nil
}

// Stdin reads frame lines from standard input.
//
// Close unblocks a pending Read even though standard input itself stays
// open; the copying goroutine exits on the next chunk or at end of input.
func Stdin() Source {
	return FromReader(os.Stdin)
}

// FromReader pumps r through a pipe so that closing the returned Source
// interrupts a Read blocked on r.
func FromReader(r io.Reader) Source {
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, r)
		_ = pw.CloseWithError(err)
	}()
	return pr
}
