package canmon

import (
	"errors"
	"log/slog"
	"time"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	allow          AllowList
	logger         *slog.Logger
	frameCallbacks []func(Frame)
	historySize    int
	maxLineLength  int
	idleBackoff    time.Duration
	httpAddr       string
	title          string
	recordPath     string
	recordFormat   string
}

// Option is a function that configures a [Monitor] during construction.
//
// Options return an error if validation fails, which [New] passes back to
// the caller.
type Option func(*monitorConfig) error

// WithAllowList records only frames whose ID is in list. An empty list
// records everything, which is also the default.
//
// Example:
//
//	m, err := canmon.New(src,
//	    canmon.WithAllowList(canmon.NewAllowList(0xF6, 0x1A0)),
//	)
func WithAllowList(list AllowList) Option {
	return func(cfg *monitorConfig) error {
		cfg.allow = list
		return nil
	}
}

// WithAllowIDs is shorthand for WithAllowList(NewAllowList(ids...)).
func WithAllowIDs(ids ...uint32) Option {
	return WithAllowList(NewAllowList(ids...))
}

// WithLogger sets a custom [slog.Logger] for monitor events.
//
// If not specified, defaults to [slog.Default]. Malformed lines are logged
// at Debug level, fatal read errors at Error level.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithFrameCallback registers a function called for every accepted frame.
//
// Callbacks run on the reader goroutine after the store has been updated,
// in registration order. They must not block: a slow callback delays every
// subsequent frame. Panics are recovered and logged with a correlation ID.
//
// Example:
//
//	m, err := canmon.New(src,
//	    canmon.WithFrameCallback(func(f canmon.Frame) {
//	        if f.ID == 0x7DF {
//	            log.Printf("diagnostic request: %s", f.HexString())
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithFrameCallback(cb func(Frame)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.frameCallbacks = append(cfg.frameCallbacks, cb)
		return nil
	}
}

// WithHistorySize sets how many recent frames are kept for [Monitor.Since].
// Defaults to 1000.
//
// Returns an error if n is not positive.
func WithHistorySize(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("history size must be positive")
		}
		cfg.historySize = n
		return nil
	}
}

// WithMaxLineLength bounds a single input line. Longer lines are discarded
// and counted as malformed. Defaults to 4096 bytes.
//
// Returns an error if n is not positive.
func WithMaxLineLength(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("max line length must be positive")
		}
		cfg.maxLineLength = n
		return nil
	}
}

// WithIdleBackoff sets how long the reader pauses after a read that
// returned no data. Zero disables the pause. Defaults to 5ms.
//
// Returns an error if d is negative.
func WithIdleBackoff(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d < 0 {
			return errors.New("idle backoff cannot be negative")
		}
		cfg.idleBackoff = d
		return nil
	}
}

// WithHTTPAddr serves the JSON API and web dashboard on addr while the
// monitor runs. Disabled by default.
//
// Example:
//
//	m, err := canmon.New(src, canmon.WithHTTPAddr("127.0.0.1:8080"))
func WithHTTPAddr(addr string) Option {
	return func(cfg *monitorConfig) error {
		if addr == "" {
			return errors.New("http address cannot be empty")
		}
		cfg.httpAddr = addr
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "canmon".
func WithTitle(title string) Option {
	return func(cfg *monitorConfig) error {
		cfg.title = title
		return nil
	}
}

// WithRecording appends every accepted frame to the capture file at path.
// format is "cbor" or "msgpack"; empty picks it from the extension. The
// file is created if missing and closed by [Monitor.Stop]. Replay it with
// [OpenReplay].
//
// Returns an error if path is empty.
func WithRecording(path, format string) Option {
	return func(cfg *monitorConfig) error {
		if path == "" {
			return errors.New("recording path cannot be empty")
		}
		cfg.recordPath = path
		cfg.recordFormat = format
		return nil
	}
}
