// Package capture records decoded frames to a file and reads them back.
//
// Two binary encodings are supported: CBOR and MessagePack. A capture file
// is a plain concatenation of encoded records, so it can be appended to and
// streamed without an index.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/jpalmerr/canmon/internal/frame"
)

// Format names a capture encoding.
type Format string

const (
	FormatCBOR    Format = "cbor"
	FormatMsgpack Format = "msgpack"
)

// ErrUnknownFormat is returned for unsupported format names or extensions.
var ErrUnknownFormat = errors.New("unknown capture format")

// ParseFormat validates a format name. An empty name yields an error.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cbor":
		return FormatCBOR, nil
	case "msgpack", "mpk", "messagepack":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// record is the on-disk shape of one frame.
type record struct {
	ID         uint32 `cbor:"1,keyasint" msgpack:"id"`
	Payload    []byte `cbor:"2,keyasint" msgpack:"payload"`
	ObservedAt int64  `cbor:"3,keyasint" msgpack:"ts"` // unix nanoseconds
}

type encoder interface {
	Encode(v any) error
}

type decoder interface {
	Decode(v any) error
}

// Writer encodes frames to an io.Writer.
type Writer struct {
	enc encoder
}

// NewWriter returns a Writer producing format.
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	switch format {
	case FormatCBOR:
		return &Writer{enc: cbor.NewEncoder(w)}, nil
	case FormatMsgpack:
		return &Writer{enc: msgpack.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Write encodes one frame.
func (w *Writer) Write(f frame.Frame) error {
	rec := record{ID: f.ID, Payload: f.Payload}
	if !f.ObservedAt.IsZero() {
		rec.ObservedAt = f.ObservedAt.UnixNano()
	}
	return w.enc.Encode(rec)
}

// Reader decodes frames from an io.Reader.
type Reader struct {
	dec decoder
}

// NewReader returns a Reader for format.
func NewReader(r io.Reader, format Format) (*Reader, error) {
	switch format {
	case FormatCBOR:
		return &Reader{dec: cbor.NewDecoder(r)}, nil
	case FormatMsgpack:
		return &Reader{dec: msgpack.NewDecoder(r)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Read decodes the next frame. It returns io.EOF after the last record.
func (r *Reader) Read() (frame.Frame, error) {
	var rec record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return frame.Frame{}, io.EOF
		}
		return frame.Frame{}, fmt.Errorf("decode capture record: %w", err)
	}

	f := frame.Frame{ID: rec.ID, Payload: rec.Payload}
	if f.Payload == nil {
		f.Payload = []byte{}
	}
	if rec.ObservedAt != 0 {
		f.ObservedAt = time.Unix(0, rec.ObservedAt)
	}
	return f, nil
}

// Recorder appends frames to a capture file.
//
// Recorder is safe for concurrent use. Close flushes buffered records.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	w    *Writer
}

// Create opens path for appending and returns a Recorder. If format is
// empty it is derived from the file extension.
func Create(path string, format Format) (*Recorder, error) {
	if format == "" {
		var err error
		if format, err = FormatFromPath(path); err != nil {
			return nil, err
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}

	buf := bufio.NewWriter(file)
	w, err := NewWriter(buf, format)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &Recorder{file: file, buf: buf, w: w}, nil
}

// Record writes f to the capture.
func (r *Recorder) Record(f frame.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return os.ErrClosed
	}
	return r.w.Write(f)
}

// Close flushes and closes the capture file. Safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	flushErr := r.buf.Flush()
	closeErr := r.file.Close()
	r.file = nil

	return errors.Join(flushErr, closeErr)
}
