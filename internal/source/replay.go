package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jpalmerr/canmon/internal/capture"
	"github.com/jpalmerr/canmon/internal/frame"
)

// Replay turns a capture file back into frame lines.
//
// With pacing enabled, records are released with the same spacing they
// were recorded with. Close interrupts a paced wait.
type Replay struct {
	file   io.Closer
	reader *capture.Reader
	pace   bool

	pending []byte
	last    time.Time // observation time of the previous record

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenReplay opens a capture file. If format is empty it is derived from
// the file extension.
func OpenReplay(path string, format capture.Format, pace bool) (*Replay, error) {
	if format == "" {
		var err error
		if format, err = capture.FormatFromPath(path); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}

	r, err := NewReplay(f, format, pace)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// NewReplay reads capture records from rc.
func NewReplay(rc io.ReadCloser, format capture.Format, pace bool) (*Replay, error) {
	cr, err := capture.NewReader(rc, format)
	if err != nil {
		return nil, err
	}
	return &Replay{
		file:   rc,
		reader: cr,
		pace:   pace,
		closed: make(chan struct{}),
	}, nil
}

// Read implements io.Reader over the encoded frame lines.
func (r *Replay) Read(p []byte) (int, error) {
	select {
	case <-r.closed:
		return 0, os.ErrClosed
	default:
	}

	if len(r.pending) == 0 {
		f, err := r.reader.Read()
		if err != nil {
			return 0, err
		}
		if err := r.wait(f.ObservedAt); err != nil {
			return 0, err
		}
		r.pending = append(frame.Encode(f), '\n')
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// wait sleeps for the recorded gap before a frame observed at ts.
func (r *Replay) wait(ts time.Time) error {
	defer func() {
		if !ts.IsZero() {
			r.last = ts
		}
	}()

	if !r.pace || ts.IsZero() || r.last.IsZero() {
		return nil
	}
	gap := ts.Sub(r.last)
	if gap <= 0 {
		return nil
	}

	timer := time.NewTimer(gap)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-r.closed:
		return os.ErrClosed
	}
}

// Close stops the replay and closes the capture file.
func (r *Replay) Close() error {
	err := os.ErrClosed
	r.closeOnce.Do(func() {
		close(r.closed)
		err = r.file.Close()
	})
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
