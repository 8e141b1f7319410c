package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jpalmerr/canmon"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestResolveWhitelist_FileWins(t *testing.T) {
	cfg := Default()
	cfg.Whitelist = IDList{1, 2}
	cfg.WhitelistFile = writeFile(t, "ids.txt", "0xF6\nbad\n16\n")

	ids, invalid, err := cfg.ResolveWhitelist()
	if err != nil {
		t.Fatalf("ResolveWhitelist() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 246 || ids[1] != 16 {
		t.Errorf("ids = %v, want [246 16]", ids)
	}
	if len(invalid) != 1 || invalid[0] != "bad" {
		t.Errorf("invalid = %v", invalid)
	}
}

func TestResolveWhitelist_Inline(t *testing.T) {
	cfg := Default()
	cfg.Whitelist = IDList{7}

	ids, _, err := cfg.ResolveWhitelist()
	if err != nil || len(ids) != 1 || ids[0] != 7 {
		t.Errorf("ResolveWhitelist() = %v, %v", ids, err)
	}
}

func TestResolveHighlights_FileWins(t *testing.T) {
	cfg := Default()
	cfg.Highlight = TokenList{"0x1"}
	cfg.HighlightFile = writeFile(t, "hl.txt", "0xF6 0x10\n")

	got, err := cfg.ResolveHighlights()
	if err != nil {
		t.Fatalf("ResolveHighlights() error = %v", err)
	}
	if len(got) != 2 || got[0] != "0xF6" || got[1] != "0x10" {
		t.Errorf("ResolveHighlights() = %v", got)
	}

	cfg.HighlightFile = ""
	got, _ = cfg.ResolveHighlights()
	if len(got) != 1 || got[0] != "0x1" {
		t.Errorf("inline ResolveHighlights() = %v", got)
	}
}

func TestBuildOptions_AppliesToMonitor(t *testing.T) {
	cfg, err := Parse([]byte("whitelist: [246]\nhistory_size: 2\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg, testLogger())
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	input := "FR:ID=246:LN=1:01\nFR:ID=16:LN=1:02\nFR:ID=246:LN=1:03\nFR:ID=246:LN=1:04\n"
	m, err := canmon.New(io.NopCloser(strings.NewReader(input)), opts...)
	if err != nil {
		t.Fatalf("canmon.New() error = %v", err)
	}
	if err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].ID != 246 || snap[0].Count != 3 {
		t.Errorf("Snapshot() = %+v", snap)
	}
	if entries, _ := m.Since(0); len(entries) != 2 {
		t.Errorf("history holds %d entries, want 2", len(entries))
	}
}

func TestBuildOptions_MissingWhitelistFile(t *testing.T) {
	cfg := Default()
	cfg.WhitelistFile = filepath.Join(t.TempDir(), "missing.txt")

	if _, err := BuildOptions(cfg, testLogger()); err == nil {
		t.Error("BuildOptions() with missing whitelist file error = nil")
	}
}

func TestOpenSource(t *testing.T) {
	path := writeFile(t, "frames.log", "FR:ID=1:LN=0:\n")

	cfg := Default()
	cfg.File = path
	src, err := OpenSource(cfg)
	if err != nil {
		t.Fatalf("OpenSource() error = %v", err)
	}
	data, _ := io.ReadAll(src)
	_ = src.Close()
	if string(data) != "FR:ID=1:LN=0:\n" {
		t.Errorf("read %q", data)
	}

	if _, err := OpenSource(Default()); !errors.Is(err, ErrNoSource) {
		t.Errorf("OpenSource() without source error = %v, want ErrNoSource", err)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Device: "/dev/ttyUSB0", BaudRate: 9600}, "/dev/ttyUSB0 @ 9600 baud"},
		{Config{File: "-"}, "stdin"},
		{Config{File: "bus.log"}, "bus.log"},
		{Config{Replay: ReplayConfig{Path: "bus.cbor"}}, "replay bus.cbor"},
		{Config{}, "none"},
	}
	for _, tt := range tests {
		if got := tt.cfg.Describe(); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}
