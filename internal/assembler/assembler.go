// Package assembler turns a byte stream with short or partial reads into
// newline-terminated records.
package assembler

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jpalmerr/canmon/internal/frame"
)

const (
	// DefaultMaxLineLength bounds a single record. A source that never sends
	// a newline cannot grow the buffer past this.
	DefaultMaxLineLength = 4096

	readChunkSize = 512
)

// ErrLineTooLong is returned once for every record that exceeded the
// maximum length. The oversized record is dropped.
var ErrLineTooLong = fmt.Errorf("%w: line too long", frame.ErrMalformed)

// Assembler accumulates bytes from a reader until a full line is available.
//
// Assembler is not safe for concurrent use; it is owned by the goroutine
// reading the source.
type Assembler struct {
	r       io.Reader
	maxLine int
	buf     []byte
	chunk   []byte

	// discarding is set while skipping the remainder of an overlong line.
	discarding bool
	eof        bool
}

// New creates an Assembler reading from r. A maxLine of zero or less uses
// [DefaultMaxLineLength].
func New(r io.Reader, maxLine int) *Assembler {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	return &Assembler{
		r:       r,
		maxLine: maxLine,
		chunk:   make([]byte, readChunkSize),
	}
}

// Next returns the next complete line with the newline stripped and
// surrounding whitespace trimmed.
//
// When no complete line is buffered Next performs at most one Read. If that
// read does not complete a line, Next returns ok=false and a nil error so the
// caller can check for cancellation before calling again. Partial data is
// kept across calls.
//
// At end of stream a trailing unterminated fragment is returned as a final
// line, after which Next returns [io.EOF]. Other read errors are returned
// as is.
func (a *Assembler) Next() (line []byte, ok bool, err error) {
	if line, ok, err := a.takeLine(); ok || err != nil {
		return line, ok, err
	}

	if a.eof {
		return a.flush()
	}

	n, rerr := a.r.Read(a.chunk)
	if n > 0 {
		a.buf = append(a.buf, a.chunk[:n]...)
	}
	if rerr != nil && !errors.Is(rerr, io.EOF) {
		return nil, false, rerr
	}
	if errors.Is(rerr, io.EOF) {
		a.eof = true
	}

	if line, ok, err := a.takeLine(); ok || err != nil {
		return line, ok, err
	}
	if a.eof {
		return a.flush()
	}
	return nil, false, nil
}

// takeLine extracts one buffered line, enforcing the length bound.
func (a *Assembler) takeLine() ([]byte, bool, error) {
	for {
		idx := bytes.IndexByte(a.buf, '\n')
		if idx < 0 {
			if len(a.buf) > a.maxLine {
				// keep nothing of an overlong record, report it once
				a.buf = a.buf[:0]
				if !a.discarding {
					a.discarding = true
					return nil, false, ErrLineTooLong
				}
			}
			return nil, false, nil
		}

		raw := a.buf[:idx]
		rest := a.buf[idx+1:]

		if a.discarding {
			a.discarding = false
			a.buf = append(a.buf[:0], rest...)
			continue
		}
		if len(raw) > a.maxLine {
			a.buf = append(a.buf[:0], rest...)
			return nil, false, ErrLineTooLong
		}

		line := bytes.Clone(bytes.TrimSpace(raw))
		a.buf = append(a.buf[:0], rest...)
		return line, true, nil
	}
}

// flush hands out whatever is left after end of stream.
func (a *Assembler) flush() ([]byte, bool, error) {
	if a.discarding || len(bytes.TrimSpace(a.buf)) == 0 {
		a.buf = a.buf[:0]
		a.discarding = false
		return nil, false, io.EOF
	}
	if len(a.buf) > a.maxLine {
		a.buf = a.buf[:0]
		return nil, false, ErrLineTooLong
	}

	line := bytes.Clone(bytes.TrimSpace(a.buf))
	a.buf = a.buf[:0]
	return line, true, nil
}

// Buffered reports how many bytes of an incomplete line are held.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}
