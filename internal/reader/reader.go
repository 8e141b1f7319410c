package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/canmon/internal/assembler"
	"github.com/jpalmerr/canmon/internal/frame"
	"github.com/jpalmerr/canmon/internal/store"
)

// DefaultIdleBackoff is how long the loop sleeps after a read that returned
// no data, so that fully non-blocking sources do not spin a CPU.
const DefaultIdleBackoff = 5 * time.Millisecond

// IOError is an unexpected failure of the byte source while the session was
// still active.
type IOError struct {
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read failed: %v", e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Config holds the collaborators of a [Reader].
type Config struct {
	// Source is read until end of stream or cancellation. Reads may return
	// zero bytes with a nil error.
	Source io.Reader

	// Store receives every accepted frame.
	Store store.Store

	// Allow reports whether a frame ID should be kept. Nil accepts all.
	Allow func(id uint32) bool

	// OnFrame, if set, is called after the store update for each accepted
	// frame, on the reader goroutine.
	OnFrame func(frame.Frame)

	// MaxLineLength bounds a single line. Zero uses the assembler default.
	MaxLineLength int

	// IdleBackoff overrides [DefaultIdleBackoff]. Negative disables it.
	IdleBackoff time.Duration

	// Now stamps frames. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Stats counts what the reader has seen so far.
type Stats struct {
	LinesRead      uint64 `json:"lines_read"`
	FramesAccepted uint64 `json:"frames_accepted"`
	FramesFiltered uint64 `json:"frames_filtered"`
	MalformedLines uint64 `json:"malformed_lines"`
}

// Reader is the producer side of the pipeline.
type Reader struct {
	cfg Config
	asm *assembler.Assembler

	linesRead      atomic.Uint64
	framesAccepted atomic.Uint64
	framesFiltered atomic.Uint64
	malformedLines atomic.Uint64
}

// New creates a [Reader]. Source and Store are required.
func New(cfg Config) (*Reader, error) {
	if cfg.Source == nil {
		return nil, errors.New("reader: source is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("reader: store is required")
	}
	if cfg.IdleBackoff == 0 {
		cfg.IdleBackoff = DefaultIdleBackoff
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Reader{
		cfg: cfg,
		asm: assembler.New(cfg.Source, cfg.MaxLineLength),
	}, nil
}

// Run reads until end of stream, a fatal read error, or ctx is done.
//
// Run returns nil on end of stream and on cancellation, including read
// errors that surface after ctx is done. Any other read error is returned
// as an *[IOError]. Run must be called at most once.
func (r *Reader) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, ok, err := r.asm.Next()
		if err != nil {
			if errors.Is(err, frame.ErrMalformed) {
				r.malformedLines.Add(1)
				r.cfg.Logger.Debug("discarding malformed line", "error", err)
				continue
			}
			if errors.Is(err, io.EOF) {
				r.cfg.Logger.Debug("end of stream")
				return nil
			}
			if ctx.Err() != nil {
				// closing the source to unblock a read makes it fail
				return nil
			}
			return &IOError{Err: err}
		}

		if !ok {
			r.idle(ctx)
			continue
		}

		r.handleLine(line)
	}
}

// handleLine decodes one line and records it if it is accepted.
func (r *Reader) handleLine(line []byte) {
	if len(line) == 0 {
		return
	}
	r.linesRead.Add(1)

	f, err := frame.Decode(line)
	if err != nil {
		r.malformedLines.Add(1)
		r.cfg.Logger.Debug("discarding malformed line", "error", err)
		return
	}

	if r.cfg.Allow != nil && !r.cfg.Allow(f.ID) {
		r.framesFiltered.Add(1)
		return
	}

	f.ObservedAt = r.cfg.Now()
	r.cfg.Store.Update(f)
	r.framesAccepted.Add(1)

	if r.cfg.OnFrame != nil {
		r.cfg.OnFrame(f)
	}
}

// idle waits out an empty read unless ctx is done first.
func (r *Reader) idle(ctx context.Context) {
	if r.cfg.IdleBackoff < 0 {
		return
	}
	timer := time.NewTimer(r.cfg.IdleBackoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Stats returns the current counters. Safe to call from any goroutine.
func (r *Reader) Stats() Stats {
	return Stats{
		LinesRead:      r.linesRead.Load(),
		FramesAccepted: r.framesAccepted.Load(),
		FramesFiltered: r.framesFiltered.Load(),
		MalformedLines: r.malformedLines.Load(),
	}
}
