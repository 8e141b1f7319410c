package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jpalmerr/canmon"
)

const (
	// redrawWait bounds one wait on the redraw signal.
	redrawWait = 50 * time.Millisecond

	// scrollback is the number of frames kept by the scroll view.
	scrollback = 1000

	columnWidth = 50
	defaultRows = 20

	// chromeLines counts the title, blank, status and help lines.
	chromeLines = 5
)

// View selects what the model renders.
type View int

const (
	// ViewStatic shows one row per ID with its latest payload and count.
	ViewStatic View = iota
	// ViewScroll shows accepted frames in arrival order.
	ViewScroll
)

func (v View) String() string {
	switch v {
	case ViewStatic:
		return "static"
	case ViewScroll:
		return "scroll"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// ParseView maps a view name to a View.
func ParseView(name string) (View, error) {
	switch strings.ToLower(name) {
	case "", "static":
		return ViewStatic, nil
	case "scroll":
		return ViewScroll, nil
	default:
		return 0, fmt.Errorf("unknown view %q", name)
	}
}

// Monitor is the part of [canmon.Monitor] the terminal views read.
type Monitor interface {
	Snapshot() []canmon.Record
	Since(seq uint64) ([]canmon.Entry, uint64)
	Stats() canmon.Stats
	Subscribe() canmon.RedrawSignal
	Unsubscribe(sig canmon.RedrawSignal)
	Done() <-chan struct{}
	Err() error
}

// Options configures the terminal views.
type Options struct {
	View      View
	Highlight Highlight
	Title     string
}

type redrawMsg struct {
	changed bool
}

type doneMsg struct {
	err error
}

// Model is a Bubble Tea model over a running monitor.
type Model struct {
	mon       Monitor
	sig       canmon.RedrawSignal
	view      View
	highlight Highlight
	title     string
	help      help.Model

	records []canmon.Record
	lines   []canmon.Entry
	seq     uint64
	stats   canmon.Stats

	// offset is the first visible record in the static view; back is the
	// distance from the newest line in the scroll view.
	offset int
	back   int

	width    int
	height   int
	ended    bool
	err      error
	quitting bool
}

// NewModel creates a model reading from mon and woken by sig.
func NewModel(mon Monitor, sig canmon.RedrawSignal, opts Options) Model {
	title := opts.Title
	if title == "" {
		title = "canmon"
	}
	m := Model{
		mon:       mon,
		sig:       sig,
		view:      opts.View,
		highlight: opts.Highlight,
		title:     title,
		help:      help.New(),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForRedraw(m.sig), waitForDone(m.mon))
}

func waitForRedraw(sig canmon.RedrawSignal) tea.Cmd {
	return func() tea.Msg {
		return redrawMsg{changed: sig.Wait(redrawWait)}
	}
}

func waitForDone(mon Monitor) tea.Cmd {
	return func() tea.Msg {
		<-mon.Done()
		return doneMsg{err: mon.Err()}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clamp()
		return m, nil

	case redrawMsg:
		if msg.changed {
			m.refresh()
		}
		if m.ended {
			return m, nil
		}
		return m, waitForRedraw(m.sig)

	case doneMsg:
		m.refresh()
		if msg.err != nil {
			m.err = msg.err
			m.quitting = true
			return m, tea.Quit
		}
		m.ended = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.view == ViewStatic {
				m.offset--
			} else {
				m.back++
			}
		case key.Matches(msg, keys.Down):
			if m.view == ViewStatic {
				m.offset++
			} else {
				m.back--
			}
		case key.Matches(msg, keys.Toggle):
			if m.view == ViewStatic {
				m.view = ViewScroll
			} else {
				m.view = ViewStatic
			}
		}
		m.clamp()
	}

	return m, nil
}

func (m *Model) refresh() {
	m.records = m.mon.Snapshot()
	entries, last := m.mon.Since(m.seq)
	m.seq = last
	m.lines = append(m.lines, entries...)
	if over := len(m.lines) - scrollback; over > 0 {
		m.lines = append(m.lines[:0:0], m.lines[over:]...)
	}
	m.stats = m.mon.Stats()
	m.clamp()
}

func (m *Model) clamp() {
	m.offset = min(m.offset, len(m.records)-1)
	m.offset = max(m.offset, 0)
	m.back = min(m.back, len(m.lines)-1)
	m.back = max(m.back, 0)
}

// Err returns the fatal reader error that closed the model, if any.
func (m Model) Err() error {
	return m.err
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString(HelpStyle.Render("  " + m.view.String()))
	b.WriteString("\n\n")

	switch m.view {
	case ViewScroll:
		m.renderScroll(&b)
	default:
		m.renderStatic(&b)
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) bodyRows() int {
	if m.height <= 0 {
		return defaultRows
	}
	return max(m.height-chromeLines, 2)
}

func (m Model) renderStatic(b *strings.Builder) {
	columns := max(m.width/columnWidth, 1)
	rows := m.bodyRows() - 1

	header := pad(fmt.Sprintf("%-12s %-24s %6s", "ID", "Bytes", "Count"), columnWidth)
	b.WriteString(HeaderStyle.Render(strings.Repeat(header, columns)))
	b.WriteString("\n")

	if len(m.records) == 0 {
		b.WriteString(HelpStyle.Render("waiting for frames"))
		b.WriteString("\n")
		return
	}

	visible := m.records[m.offset:]
	for r := 0; r < rows && r < len(visible); r++ {
		for c := 0; c < columns; c++ {
			i := c*rows + r
			if i >= len(visible) {
				break
			}
			b.WriteString(m.style(visible[i].ID, pad(FormatRecord(visible[i]), columnWidth)))
		}
		b.WriteString("\n")
	}
}

func (m Model) renderScroll(b *strings.Builder) {
	if len(m.lines) == 0 {
		b.WriteString(HelpStyle.Render("waiting for frames"))
		b.WriteString("\n")
		return
	}
	end := len(m.lines) - m.back
	start := max(end-m.bodyRows(), 0)
	for _, e := range m.lines[start:end] {
		b.WriteString(m.style(e.Frame.ID, FormatEntry(e.Frame)))
		b.WriteString("\n")
	}
}

func (m Model) style(id uint32, line string) string {
	if m.highlight.Matches(id) {
		return HighlightStyle.Render(line)
	}
	return line
}

func (m Model) renderStatus() string {
	s := m.stats
	line := StatusStyle.Render(fmt.Sprintf("ids %d  frames %d  filtered %d  malformed %d",
		s.IDs, s.FramesAccepted, s.FramesFiltered, s.MalformedLines))
	switch {
	case m.err != nil:
		line += "  " + ErrorStyle.Render(m.err.Error())
	case m.ended:
		line += "  " + WarningStyle.Render("stream ended")
	}
	return line
}

// FormatRecord renders one static-view row: ID, payload bytes and count.
func FormatRecord(r canmon.Record) string {
	return fmt.Sprintf("%-12s %-24s %6d", canmon.FormatID(r.ID), r.HexString(), r.Count)
}

// FormatEntry renders one scroll-view line: arrival time, ID and payload.
func FormatEntry(f canmon.Frame) string {
	head := f.ObservedAt.Format("15:04:05.000") + " " + canmon.FormatID(f.ID)
	return fmt.Sprintf("%-19s %s", head, f.HexString())
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}
