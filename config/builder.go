package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jpalmerr/canmon"
)

// ResolveWhitelist returns the effective allow list. A whitelist file takes
// precedence over the inline list. Lines of the file that are not valid
// IDs are returned in invalid.
func (c *Config) ResolveWhitelist() (ids []uint32, invalid []string, err error) {
	if c.WhitelistFile != "" {
		return ReadIDFile(c.WhitelistFile)
	}
	return append([]uint32(nil), c.Whitelist...), nil, nil
}

// ResolveHighlights returns the effective highlight tokens. A highlight file
// takes precedence over the inline list.
func (c *Config) ResolveHighlights() ([]string, error) {
	if c.HighlightFile != "" {
		return ReadTokenFile(c.HighlightFile)
	}
	return ParseTokens(c.Highlight), nil
}

// BuildOptions converts parsed configuration into [canmon.Option] values.
//
// Invalid whitelist file entries are skipped with a warning on logger.
func BuildOptions(cfg *Config, logger *slog.Logger) ([]canmon.Option, error) {
	ids, invalid, err := cfg.ResolveWhitelist()
	if err != nil {
		return nil, err
	}
	for _, v := range invalid {
		logger.Warn("ignoring invalid whitelist entry", "value", v)
	}

	opts := []canmon.Option{
		canmon.WithLogger(logger),
		canmon.WithAllowList(canmon.NewAllowList(ids...)),
		canmon.WithHistorySize(cfg.HistorySize),
		canmon.WithMaxLineLength(cfg.MaxLineLength),
	}

	if cfg.HTTPAddr != "" {
		opts = append(opts, canmon.WithHTTPAddr(cfg.HTTPAddr))
	}
	if cfg.Title != "" {
		opts = append(opts, canmon.WithTitle(cfg.Title))
	}
	if cfg.Record.Path != "" {
		opts = append(opts, canmon.WithRecording(cfg.Record.Path, cfg.Record.Format))
	}

	return opts, nil
}

// OpenSource opens the configured byte source: the serial device, the
// frame file ("-" for stdin) or the capture replay.
//
// Returns [ErrNoSource] if none is configured.
func OpenSource(cfg *Config) (io.ReadCloser, error) {
	switch {
	case cfg.Device != "":
		return canmon.OpenSerial(cfg.Device, cfg.BaudRate, cfg.ReadTimeout.Duration())
	case cfg.File == "-":
		return canmon.Stdin(), nil
	case cfg.File != "":
		return canmon.OpenFile(cfg.File)
	case cfg.Replay.Path != "":
		return canmon.OpenReplay(cfg.Replay.Path, cfg.Replay.Format, cfg.Replay.Pace)
	default:
		return nil, ErrNoSource
	}
}

// Describe returns a short human readable name of the configured source.
func (c *Config) Describe() string {
	switch {
	case c.Device != "":
		return fmt.Sprintf("%s @ %d baud", c.Device, c.BaudRate)
	case c.File == "-":
		return "stdin"
	case c.File != "":
		return c.File
	case c.Replay.Path != "":
		return "replay " + c.Replay.Path
	default:
		return "none"
	}
}
