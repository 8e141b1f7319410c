package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/canmon/internal/frame"
	"github.com/jpalmerr/canmon/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// sseMinInterval bounds how often one client receives a table.
	sseMinInterval = 100 * time.Millisecond

	shutdownTimeout = 5 * time.Second

	defaultTitle = "canmon"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// StatsFunc returns a JSON-encodable summary of the session.
type StatsFunc func() any

// FrameView is the JSON form of one store record.
type FrameView struct {
	ID        uint32    `json:"id"`
	IDHex     string    `json:"id_hex"`
	Length    int       `json:"length"`
	Data      string    `json:"data"`
	Count     uint64    `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toFrameViews(records []store.Record) []FrameView {
	out := make([]FrameView, len(records))
	for i, r := range records {
		out[i] = FrameView{
			ID:        r.ID,
			IDHex:     fmt.Sprintf("0x%X", r.ID),
			Length:    len(r.Payload),
			Data:      frame.Frame{Payload: r.Payload}.HexString(),
			Count:     r.Count,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return out
}

// Server handles HTTP requests for the dashboard and API.
type Server struct {
	store      store.Store
	addr       string
	stats      StatsFunc
	httpServer *http.Server
	listener   net.Listener
	assets     fs.FS
	title      string
	logger     *slog.Logger
	done       chan struct{}
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: store to read records from
//   - addr: listen address, e.g. ":8080" or "127.0.0.1:0"
//   - assets: embedded filesystem containing dashboard assets (may be nil)
//   - title: dashboard title (defaults to "canmon" if empty)
//   - stats: source for /api/stats (may be nil)
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, addr string, assets fs.FS, title string, stats StatsFunc, logger *slog.Logger) *Server {
	return &Server{
		store:  st,
		addr:   addr,
		stats:  stats,
		assets: assets,
		title:  title,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Handler returns the request router without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/sse", s.handleSSE)

	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start returns once the listener is bound. The server runs until ctx is
// cancelled, then shuts down gracefully and closes [Server.Done].
//
// Returns an error if the server fails to bind to the configured address.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", s.addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx, so SSE handlers return on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Done is closed once shutdown has completed.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleFrames returns the per-ID table as JSON, ordered by ID.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, toFrameViews(s.store.Snapshot()))
}

// handleStats returns reader counters as JSON.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.stats == nil {
		s.writeJSON(w, map[string]int{"ids": s.store.Len()})
		return
	}
	s.writeJSON(w, s.stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams the per-ID table via Server-Sent Events.
//
// Each event carries the full table. Bursts of updates collapse into one
// event per sseMinInterval.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	sendTable := func() error {
		data, err := json.Marshal(toFrameViews(s.store.Snapshot()))
		if err != nil {
			return err
		}
		return writeAndFlush(data)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sig := s.store.Subscribe()
	defer s.store.Unsubscribe(sig)

	if err := sendTable(); err != nil {
		return
	}

	throttle := time.NewTimer(0)
	defer throttle.Stop()

	for {
		select {
		case <-sig.C():
		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}

		select {
		case <-throttle.C:
		case <-r.Context().Done():
			return
		}

		// updates raised while throttled are covered by this table
		sig.Clear()
		if err := sendTable(); err != nil {
			return
		}
		throttle.Reset(sseMinInterval)
	}
}
