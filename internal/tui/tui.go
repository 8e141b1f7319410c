package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the full-screen view until the user quits, ctx is done or the
// monitor fails. A clean end of stream keeps the last state on screen.
func Run(ctx context.Context, mon Monitor, opts Options) error {
	sig := mon.Subscribe()
	defer mon.Unsubscribe(sig)

	p := tea.NewProgram(NewModel(mon, sig, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

// RunPlain writes every accepted frame to w as a log line until ctx is done
// or the monitor stops. Highlighted IDs are styled when w is a terminal.
func RunPlain(ctx context.Context, mon Monitor, w io.Writer, hl Highlight) error {
	sig := mon.Subscribe()
	defer mon.Unsubscribe(sig)

	var seq uint64
	flush := func() error {
		entries, last := mon.Since(seq)
		seq = last
		for _, e := range entries {
			line := FormatEntry(e.Frame)
			if hl.Matches(e.Frame.ID) {
				line = HighlightStyle.Render(line)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		if err := flush(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return flush()
		case <-mon.Done():
			return flush()
		case <-sig.C():
		}
	}
}
