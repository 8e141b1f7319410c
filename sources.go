package canmon

import (
	"io"
	"time"

	"github.com/jpalmerr/canmon/internal/capture"
	"github.com/jpalmerr/canmon/internal/source"
)

// OpenSerial opens a serial CAN adapter in raw 8N1 mode, ready to pass to
// [New]. Zero values select 115200 baud and a 100ms read timeout.
func OpenSerial(device string, baud int, readTimeout time.Duration) (io.ReadCloser, error) {
	return source.OpenSerial(device, baud, readTimeout)
}

// OpenFile opens a file or named pipe of frame lines.
func OpenFile(path string) (io.ReadCloser, error) {
	return source.OpenFile(path)
}

// Stdin returns standard input as a source whose Close unblocks reads.
func Stdin() io.ReadCloser {
	return source.Stdin()
}

// FromReader wraps any reader, such as a network connection or a pipe
// from another process, as a source whose Close unblocks reads.
func FromReader(r io.Reader) io.ReadCloser {
	return source.FromReader(r)
}

// OpenReplay plays back a capture written with "--record". format is
// "cbor", "msgpack" or empty to pick by file extension. With pace set,
// frames are spaced by their recorded timestamps.
func OpenReplay(path, format string, pace bool) (io.ReadCloser, error) {
	var f capture.Format
	if format != "" {
		var err error
		if f, err = capture.ParseFormat(format); err != nil {
			return nil, err
		}
	}
	r, err := source.OpenReplay(path, f, pace)
	if err != nil {
		return nil, err
	}
	return r, nil
}
