package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jpalmerr/canmon"
)

func finishedMonitor(t *testing.T, src io.ReadCloser, opts ...canmon.Option) *canmon.Monitor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := canmon.New(src, append([]canmon.Option{canmon.WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not finish")
	}
	return m
}

func textSource(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func newModel(t *testing.T, mon *canmon.Monitor, opts Options) Model {
	t.Helper()
	sig := mon.Subscribe()
	t.Cleanup(func() { mon.Unsubscribe(sig) })
	return NewModel(mon, sig, opts)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T, want Model", next)
	}
	return nm, cmd
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

const busInput = "FR:ID=246:LN=2:8E:62\n" +
	"FR:ID=16:LN=1:AA\n" +
	"FR:ID=246:LN=2:8E:63\n" +
	"garbage\n"

func TestModel_StaticViewShowsLatestRecord(t *testing.T) {
	mon := finishedMonitor(t, textSource(busInput))
	m := newModel(t, mon, Options{})

	view := m.View()
	for _, want := range []string{"canmon", "ID", "Bytes", "Count", "0xF6", "8E 63", "0x10", "AA"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "8E 62") {
		t.Errorf("View() shows a superseded payload:\n%s", view)
	}
	if !strings.Contains(view, "ids 2  frames 3  filtered 0  malformed 1") {
		t.Errorf("View() status line wrong:\n%s", view)
	}
}

func TestModel_StaticRowsOrderedByID(t *testing.T) {
	mon := finishedMonitor(t, textSource(busInput))
	m := newModel(t, mon, Options{})

	view := m.View()
	if strings.Index(view, "0x10") > strings.Index(view, "0xF6") {
		t.Errorf("0x10 should be listed before 0xF6:\n%s", view)
	}
}

func TestModel_ScrollKeysMoveOffset(t *testing.T) {
	mon := finishedMonitor(t, textSource(busInput))
	m := newModel(t, mon, Options{})

	m, _ = update(t, m, keyRune('d'))
	if m.offset != 1 {
		t.Fatalf("offset after d = %d, want 1", m.offset)
	}
	if strings.Contains(m.View(), "0x10 ") {
		t.Errorf("first record still visible after scrolling down:\n%s", m.View())
	}

	// Clamped at the last record.
	m, _ = update(t, m, keyRune('d'))
	m, _ = update(t, m, keyRune('d'))
	if m.offset != 1 {
		t.Errorf("offset = %d, want clamp at 1", m.offset)
	}

	m, _ = update(t, m, keyRune('u'))
	m, _ = update(t, m, keyRune('u'))
	if m.offset != 0 {
		t.Errorf("offset = %d, want clamp at 0", m.offset)
	}
}

func TestModel_ToggleShowsScrollView(t *testing.T) {
	mon := finishedMonitor(t, textSource(busInput))
	m := newModel(t, mon, Options{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.view != ViewScroll {
		t.Fatalf("view = %v, want scroll", m.view)
	}

	view := m.View()
	if !strings.Contains(view, "8E 62") || !strings.Contains(view, "8E 63") {
		t.Errorf("scroll view should list every accepted frame:\n%s", view)
	}
	if strings.Index(view, "8E 62") > strings.Index(view, "8E 63") {
		t.Errorf("scroll view out of arrival order:\n%s", view)
	}

	m, _ = update(t, m, keyRune('v'))
	if m.view != ViewStatic {
		t.Errorf("view = %v, want static", m.view)
	}
}

func TestModel_ScrollViewLimitedToHeight(t *testing.T) {
	mon := finishedMonitor(t, textSource(busLines(30)))
	m := newModel(t, mon, Options{View: ViewScroll})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: chromeLines + 4})

	// Four body rows: IDs 27 to 30.
	view := m.View()
	if !strings.Contains(view, "0x1E ") {
		t.Errorf("newest frame missing:\n%s", view)
	}
	if strings.Contains(view, "0x1A ") {
		t.Errorf("older frame visible beyond height:\n%s", view)
	}

	m, _ = update(t, m, keyRune('u'))
	if !strings.Contains(m.View(), "0x1A ") {
		t.Errorf("scrolling up should reveal an older frame:\n%s", m.View())
	}
}

// busLines returns n one-byte frames with IDs 1 to n.
func busLines(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "FR:ID=%d:LN=1:01\n", i)
	}
	return b.String()
}

func TestModel_WideTerminalUsesColumns(t *testing.T) {
	mon := finishedMonitor(t, textSource(busLines(10)))
	m := newModel(t, mon, Options{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 2 * columnWidth, Height: chromeLines + 4})

	header := strings.Count(m.View(), "Count")
	if header != 2 {
		t.Errorf("header repeated %d times, want 2", header)
	}
}

func TestModel_HighlightMatchesID(t *testing.T) {
	mon := finishedMonitor(t, textSource(busInput))
	m := newModel(t, mon, Options{Highlight: NewHighlight("0xf6")})

	if !m.highlight.Matches(246) || m.highlight.Matches(16) {
		t.Error("highlight set should match only 0xF6")
	}
	if m.View() == "" {
		t.Error("View() empty")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{keyRune('q'), {Type: tea.KeyCtrlC}} {
		t.Run(msg.String(), func(t *testing.T) {
			mon := finishedMonitor(t, textSource(""))
			m := newModel(t, mon, Options{})

			m, cmd := update(t, m, msg)
			if cmd == nil {
				t.Fatal("expected a quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("command did not quit")
			}
			if m.View() != "" {
				t.Error("View() should be empty after quitting")
			}
		})
	}
}

func TestModel_CleanEndKeepsView(t *testing.T) {
	mon := finishedMonitor(t, textSource(busInput))
	m := newModel(t, mon, Options{})

	m, cmd := update(t, m, doneMsg{})
	if cmd != nil {
		t.Error("clean end should not quit")
	}
	if !strings.Contains(m.View(), "stream ended") {
		t.Errorf("View() missing end notice:\n%s", m.View())
	}

	// No more redraw waits once the stream has ended.
	_, cmd = update(t, m, redrawMsg{changed: true})
	if cmd != nil {
		t.Error("redraw after end should not schedule another wait")
	}
}

func TestModel_FatalErrorQuits(t *testing.T) {
	unplugged := errors.New("device unplugged")
	src := struct {
		io.Reader
		io.Closer
	}{iotest.ErrReader(unplugged), io.NopCloser(nil)}
	mon := finishedMonitor(t, src)
	m := newModel(t, mon, Options{})

	msg := waitForDone(mon)()
	m, cmd := update(t, m, msg)
	if cmd == nil {
		t.Fatal("fatal error should quit")
	}
	if !errors.Is(m.Err(), unplugged) {
		t.Errorf("Err() = %v, want %v", m.Err(), unplugged)
	}
}

func TestModel_RedrawReadsNewFrames(t *testing.T) {
	pr, pw := io.Pipe()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mon, err := canmon.New(pr, canmon.WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = mon.Stop() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mon.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m := newModel(t, mon, Options{})
	if _, err := io.WriteString(pw, "FR:ID=246:LN=1:42\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := waitForRedraw(m.sig)
	deadline := time.Now().Add(2 * time.Second)
	for {
		r := msg().(redrawMsg)
		var cmd tea.Cmd
		m, cmd = update(t, m, r)
		if cmd == nil {
			t.Fatal("redraw should schedule another wait")
		}
		if r.changed || time.Now().After(deadline) {
			break
		}
	}
	if !strings.Contains(m.View(), "0xF6") {
		t.Errorf("View() missing new frame:\n%s", m.View())
	}
}

func TestParseView(t *testing.T) {
	tests := []struct {
		in      string
		want    View
		wantErr bool
	}{
		{"", ViewStatic, false},
		{"static", ViewStatic, false},
		{"SCROLL", ViewScroll, false},
		{"log", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseView(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseView(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseView(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatEntry(t *testing.T) {
	f := canmon.Frame{
		ID:         0xF6,
		Payload:    []byte{0x8E, 0x62},
		ObservedAt: time.Date(2024, 1, 2, 13, 4, 5, 678_000_000, time.UTC),
	}
	want := "13:04:05.678 0xF6   8E 62"
	if got := FormatEntry(f); got != want {
		t.Errorf("FormatEntry() = %q, want %q", got, want)
	}
}

func TestRunPlain_PrintsUntilStreamEnds(t *testing.T) {
	mon := finishedMonitor(t, textSource(busInput))

	var buf bytes.Buffer
	if err := RunPlain(context.Background(), mon, &buf, NewHighlight()); err != nil {
		t.Fatalf("RunPlain() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[2], "0xF6   8E 63") {
		t.Errorf("last line = %q", lines[2])
	}
}

func TestRunPlain_StopsOnContext(t *testing.T) {
	pr, _ := io.Pipe()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mon, err := canmon.New(pr, canmon.WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = mon.Stop() })
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := RunPlain(ctx, mon, io.Discard, NewHighlight()); err != nil {
		t.Errorf("RunPlain() error = %v", err)
	}
}
