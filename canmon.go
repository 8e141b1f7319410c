package canmon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/canmon/dashboard"
	"github.com/jpalmerr/canmon/internal/capture"
	"github.com/jpalmerr/canmon/internal/frame"
	"github.com/jpalmerr/canmon/internal/reader"
	"github.com/jpalmerr/canmon/internal/server"
	"github.com/jpalmerr/canmon/internal/signal"
	"github.com/jpalmerr/canmon/internal/store"
)

// ErrAlreadyStarted is returned by [Monitor.Start] on any call after the
// first.
var ErrAlreadyStarted = errors.New("monitor already started")

// RedrawSignal tells one consumer that the store has changed.
//
// Raises are coalesced: many updates between two waits produce a single
// wake-up. After waking, read the full state again with [Monitor.Snapshot]
// or [Monitor.Since].
type RedrawSignal interface {
	// Wait blocks up to timeout and reports whether the store changed.
	Wait(timeout time.Duration) bool

	// WaitContext is like Wait but returns false once ctx is done.
	WaitContext(ctx context.Context, timeout time.Duration) bool

	// C exposes the signal for select loops. Receiving consumes it.
	C() <-chan struct{}

	// Pending reports whether a change is waiting, without consuming it.
	Pending() bool

	// Clear drops a pending change.
	Clear()
}

// Consumer presents monitor state to someone. It should return when ctx is
// done, or earlier if the user asks to quit.
type Consumer func(ctx context.Context, m *Monitor) error

// Monitor owns one monitoring session: the byte source, the reader
// goroutine, the shared store and the optional HTTP server.
//
// The typical lifecycle is:
//
//	m, err := canmon.New(port, canmon.WithAllowIDs(0xF6))
//	if err != nil {
//	    return err
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	return m.Run(ctx, func(ctx context.Context, m *canmon.Monitor) error {
//	    sig := m.Subscribe()
//	    defer m.Unsubscribe(sig)
//	    for sig.WaitContext(ctx, time.Second) || ctx.Err() == nil {
//	        render(m.Snapshot())
//	    }
//	    return nil
//	})
//
// Monitor is safe for concurrent use.
type Monitor struct {
	source         io.ReadCloser
	allow          AllowList
	logger         *slog.Logger
	frameCallbacks []func(Frame)
	httpAddr       string
	title          string
	sessionID      string

	store    *store.MemoryStore
	reader   *reader.Reader
	server   *server.Server
	recorder *capture.Recorder

	recordFailed atomic.Bool

	mu            sync.Mutex
	state         State
	fatalErr      error
	cancel        context.CancelFunc
	readerStarted bool
	serverStarted bool

	done     chan struct{} // closed when the reader goroutine exits
	stopOnce sync.Once
	stopped  chan struct{} // closed when teardown has finished
}

// New creates a [Monitor] reading frame lines from src.
//
// The monitor takes ownership of src and closes it on [Monitor.Stop]. Reads
// on src may return zero bytes with a nil error; Close must unblock a
// pending Read.
//
// Defaults:
//   - Allow list: empty (every ID is recorded)
//   - History: 1000 frames
//   - Max line length: 4096 bytes
//   - Idle backoff: 5ms
//   - HTTP server: disabled
func New(src io.ReadCloser, opts ...Option) (*Monitor, error) {
	if src == nil {
		return nil, errors.New("source is required")
	}

	cfg := &monitorConfig{
		historySize: store.DefaultHistorySize,
		idleBackoff: reader.DefaultIdleBackoff,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	sessionID := uuid.NewString()
	m := &Monitor{
		source:         src,
		allow:          cfg.allow,
		logger:         logger.With("session_id", sessionID),
		frameCallbacks: cfg.frameCallbacks,
		httpAddr:       cfg.httpAddr,
		title:          cfg.title,
		sessionID:      sessionID,
		store:          store.NewMemoryStore(cfg.historySize),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}

	// reader treats zero as "use default" and negative as "off"
	backoff := cfg.idleBackoff
	if backoff == 0 {
		backoff = -1
	}

	var allow func(uint32) bool
	if !cfg.allow.IsEmpty() {
		allow = cfg.allow.Allows
	}

	if cfg.recordPath != "" {
		var format capture.Format
		if cfg.recordFormat != "" {
			if format, err = capture.ParseFormat(cfg.recordFormat); err != nil {
				return nil, err
			}
		}
		if m.recorder, err = capture.Create(cfg.recordPath, format); err != nil {
			return nil, err
		}
	}

	var onFrame func(frame.Frame)
	if len(cfg.frameCallbacks) > 0 || m.recorder != nil {
		onFrame = m.dispatchFrame
	}

	m.reader, err = reader.New(reader.Config{
		Source:        src,
		Store:         m.store,
		Allow:         allow,
		OnFrame:       onFrame,
		MaxLineLength: cfg.maxLineLength,
		IdleBackoff:   backoff,
		Logger:        m.logger,
	})
	if err != nil {
		m.closeRecorder()
		return nil, err
	}

	if cfg.httpAddr != "" {
		m.server = server.NewServer(m.store, cfg.httpAddr, dashboard.Assets, cfg.title,
			func() any { return m.Stats() }, m.logger)
	}

	return m, nil
}

// Start launches the reader goroutine and, if configured, the HTTP server.
//
// Start returns immediately. Cancelling ctx stops reading, but resources
// are only released by [Monitor.Stop]. Calling Start more than once
// returns [ErrAlreadyStarted].
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.state = StateRunning
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("monitor starting",
		"allow_ids", m.allow.Len(),
		"http", m.httpAddr != "",
	)

	if m.server != nil {
		if err := m.server.Start(runCtx); err != nil {
			_ = m.Stop()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		m.mu.Lock()
		m.serverStarted = true
		m.mu.Unlock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRunning {
		// stopped while the server was starting
		return nil
	}
	m.readerStarted = true
	go m.readLoop(runCtx)
	return nil
}

func (m *Monitor) readLoop(ctx context.Context) {
	defer close(m.done)

	err := m.reader.Run(ctx)
	if err == nil {
		m.logger.Info("reader finished")
		return
	}

	m.mu.Lock()
	// an error racing with a stop request is a side effect of the stop
	if m.state == StateRunning {
		m.fatalErr = err
	}
	m.mu.Unlock()

	m.logger.Error("reader failed", "error", err)
}

// Stop tears the session down and waits for it to finish.
//
// Stop cancels the reader, closes the source so a blocked read returns,
// joins the reader goroutine and shuts down the HTTP server. Only then does
// it return the fatal read error, if one occurred before the stop request.
// Stop is idempotent; later calls wait for the first and return the same
// result. Stop before Start just releases the source.
func (m *Monitor) Stop() error {
	m.stopOnce.Do(m.teardown)
	<-m.stopped

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatalErr
}

func (m *Monitor) teardown() {
	defer close(m.stopped)

	m.mu.Lock()
	m.state = StateStopRequested
	cancel := m.cancel
	readerStarted := m.readerStarted
	serverStarted := m.serverStarted
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := m.source.Close(); err != nil {
		m.logger.Debug("closing source", "error", err)
	}

	if readerStarted {
		<-m.done
	} else {
		close(m.done)
	}
	if serverStarted {
		<-m.server.Done()
	}

	m.closeRecorder()

	m.mu.Lock()
	m.state = StateStopped
	m.mu.Unlock()

	m.logger.Info("monitor stopped", "stats", m.Stats())
}

func (m *Monitor) closeRecorder() {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Close(); err != nil {
		m.logger.Error("closing recording", "error", err)
	}
}

// Run starts the monitor, runs consumer, then stops the monitor.
//
// consumer runs until it returns or ctx is done. A fatal read error cancels
// the consumer's context. A clean end of stream does not: the consumer
// decides when the session is over, for example by watching [Monitor.Done].
// A nil consumer waits for ctx or the reader to finish.
//
// The returned error joins the consumer's error and the fatal read error.
func (m *Monitor) Run(ctx context.Context, consumer Consumer) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if consumer == nil {
		consumer = func(ctx context.Context, m *Monitor) error {
			select {
			case <-ctx.Done():
			case <-m.Done():
			}
			return nil
		}
	}

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- m.invokeConsumerSafe(consumerCtx, consumer)
	}()

	var consumerErr error
	select {
	case consumerErr = <-consumerDone:
	case <-m.Done():
		if m.Err() != nil {
			cancel()
		}
		consumerErr = <-consumerDone
	}

	if errors.Is(consumerErr, context.Canceled) || errors.Is(consumerErr, context.DeadlineExceeded) {
		consumerErr = nil
	}
	return errors.Join(consumerErr, m.Stop())
}

// invokeConsumerSafe runs consumer with panic recovery so the session is
// still torn down.
func (m *Monitor) invokeConsumerSafe(ctx context.Context, consumer Consumer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			id := uuid.NewString()
			m.logger.Error("consumer panicked", "panic", r, "correlation_id", id)
			err = fmt.Errorf("consumer panicked (correlation_id=%s): %v", id, r)
		}
	}()
	return consumer(ctx, m)
}

// dispatchFrame records f and hands a copy to every registered callback.
func (m *Monitor) dispatchFrame(f frame.Frame) {
	if m.recorder != nil && !m.recordFailed.Load() {
		if err := m.recorder.Record(f); err != nil {
			// one bad write ends the recording; monitoring goes on
			m.recordFailed.Store(true)
			m.logger.Error("recording stopped", "error", err)
		}
	}

	if len(m.frameCallbacks) == 0 {
		return
	}
	public := frameFromInternal(f)
	for _, cb := range m.frameCallbacks {
		invokeCallbackSafe(cb, public, m.logger)
	}
}

// invokeCallbackSafe calls a frame callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Frame), f Frame, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("frame callback panicked",
				"panic", r,
				"frame_id", f.ID,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	cb(f)
}

// Done is closed when the reader goroutine has exited, whether through end
// of stream, a fatal error or cancellation.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Err returns the fatal read error, if any. It is nil while running and
// after a clean end of stream or stop.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatalErr
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the random identifier attached to this session's logs.
func (m *Monitor) SessionID() string {
	return m.sessionID
}

// HTTPAddr returns the address the HTTP server is bound to, or "" if it is
// disabled.
func (m *Monitor) HTTPAddr() string {
	if m.server == nil {
		return ""
	}
	return m.server.Addr()
}

// AllowList returns the configured allow list.
func (m *Monitor) AllowList() AllowList {
	return m.allow
}

// Snapshot returns the latest record of every ID, ordered by ID.
//
// Every record pairs a payload with the count of the same update; the
// returned payloads are copies.
func (m *Monitor) Snapshot() []Record {
	recs := m.store.Snapshot()
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = recordFromStore(r)
	}
	return out
}

// Since returns the frames accepted after seq, oldest first, and the
// newest sequence number. Pass the returned number to the next call.
// Frames older than the history size are skipped.
func (m *Monitor) Since(seq uint64) ([]Entry, uint64) {
	entries, last := m.store.Since(seq)
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Seq: e.Seq, Frame: frameFromInternal(e.Frame)}
	}
	return out, last
}

// Subscribe returns a new [RedrawSignal] raised after every store update.
// Call [Monitor.Unsubscribe] when done.
func (m *Monitor) Subscribe() RedrawSignal {
	return m.store.Subscribe()
}

// Unsubscribe stops raising sig. Signals not created by Subscribe are
// ignored.
func (m *Monitor) Unsubscribe(sig RedrawSignal) {
	if s, ok := sig.(*signal.Signal); ok {
		m.store.Unsubscribe(s)
	}
}

// Stats returns reader counters and the number of distinct IDs.
func (m *Monitor) Stats() Stats {
	return statsFromReader(m.reader.Stats(), m.store.Len())
}
