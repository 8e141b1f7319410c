package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jpalmerr/canmon"
	"github.com/jpalmerr/canmon/config"
	"github.com/jpalmerr/canmon/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// monitorCmd watches a frame source until interrupted.
var monitorCmd = &cobra.Command{
	Use:   "monitor [device] [baud]",
	Short: "Watch CAN frames from a serial device, file or stdin",
	Long: `Watch CAN frames and show the latest payload of every ID.

Sources (pick one):
  - a serial device given as the first argument, with an optional baud rate
  - --file PATH, or --file - for stdin
  - --replay PATH, a capture written earlier with --record

Views:
  static  one row per ID with payload and count (default)
  scroll  frames in arrival order with timestamps
  log     plain log lines on stdout, no full-screen UI

Keys: u/d scroll, tab switches view, q quits.

Command-line flags override values loaded with -c. A whitelist file
replaces inline whitelist values, and the same holds for highlights.

Example:
  canmon monitor /dev/ttyACM0 115200
  canmon monitor /dev/ttyACM0 -w 0xF6 -w 0x101 -H 0xF6
  canmon monitor --file - -v log < capture.log
  canmon monitor --replay bus.cbor --pace --http :8080`,
	Args: cobra.MaximumNArgs(2),
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	f := monitorCmd.Flags()
	f.StringP("config", "c", "", "path to a YAML or TOML config file")
	f.StringSliceP("whitelist", "w", nil, "CAN IDs to show (e.g. 0xF6,246); default all")
	f.String("whitelist-file", "", "file with one CAN ID per line")
	f.StringSliceP("highlight", "H", nil, "CAN IDs to highlight")
	f.String("highlight-file", "", "file with highlight tokens")
	f.StringP("view", "v", "", "view: static, scroll or log")
	f.String("file", "", "read frames from a file, - for stdin")
	f.String("replay", "", "replay a recorded capture")
	f.Bool("pace", false, "replay with the recorded timing")
	f.String("record", "", "record accepted frames to a capture file")
	f.String("record-format", "", "capture format: cbor or msgpack (default from extension)")
	f.String("http", "", "serve the web dashboard on this address")
	f.String("title", "", "title shown by the views")
}

// monitorConfig merges the config file, arguments and flags. Inline
// whitelist values that do not parse are returned for logging.
func monitorConfig(cmd *cobra.Command, args []string) (*config.Config, []string, error) {
	flags := cmd.Flags()

	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if len(args) > 0 {
		cfg.Device = args[0]
		cfg.File = ""
		cfg.Replay.Path = ""
	}
	if len(args) > 1 {
		baud, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid baud rate %q", args[1])
		}
		cfg.BaudRate = baud
	}

	var invalid []string
	if flags.Changed("whitelist") {
		values, _ := flags.GetStringSlice("whitelist")
		var ids []uint32
		ids, invalid = config.ParseIDs(values)
		cfg.Whitelist = config.IDList(ids)
	}
	if flags.Changed("highlight") {
		values, _ := flags.GetStringSlice("highlight")
		cfg.Highlight = config.TokenList(config.ParseTokens(values))
	}

	setString(flags, "whitelist-file", &cfg.WhitelistFile)
	setString(flags, "highlight-file", &cfg.HighlightFile)
	setString(flags, "view", &cfg.View)
	setString(flags, "http", &cfg.HTTPAddr)
	setString(flags, "title", &cfg.Title)
	setString(flags, "record", &cfg.Record.Path)
	setString(flags, "record-format", &cfg.Record.Format)
	if flags.Changed("file") {
		cfg.File, _ = flags.GetString("file")
		cfg.Device = ""
		cfg.Replay.Path = ""
	}
	if flags.Changed("replay") {
		cfg.Replay.Path, _ = flags.GetString("replay")
		cfg.Device = ""
		cfg.File = ""
	}
	if flags.Changed("pace") {
		cfg.Replay.Pace, _ = flags.GetBool("pace")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, invalid, nil
}

func setString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Changed(name) {
		*dst, _ = flags.GetString(name)
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, invalid, err := monitorConfig(cmd, args)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cmd, cfg.View != config.ViewLog)
	if err != nil {
		return err
	}
	defer closeLog()

	for _, v := range invalid {
		logger.Warn("ignoring invalid whitelist entry", "value", v)
	}

	opts, err := config.BuildOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	highlights, err := cfg.ResolveHighlights()
	if err != nil {
		return fmt.Errorf("failed to load highlights: %w", err)
	}

	consumer, err := newConsumer(cmd, cfg, tui.NewHighlight(highlights...))
	if err != nil {
		return err
	}

	src, err := openSource(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	m, err := canmon.New(src, opts...)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("source opened",
		"source", cfg.Describe(),
		"view", cfg.View,
		"whitelist", len(cfg.Whitelist),
	)

	if err := m.Run(ctx, consumer); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// openSource reads "--file -" from the command's input so it can be
// redirected.
func openSource(cmd *cobra.Command, cfg *config.Config) (io.ReadCloser, error) {
	if cfg.File == "-" {
		return canmon.FromReader(cmd.InOrStdin()), nil
	}
	return config.OpenSource(cfg)
}

// newConsumer picks the presentation for the configured view.
func newConsumer(cmd *cobra.Command, cfg *config.Config, hl tui.Highlight) (canmon.Consumer, error) {
	announce := func(m *canmon.Monitor) {
		if addr := m.HTTPAddr(); addr != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "dashboard: http://%s\n", addr)
		}
	}

	if cfg.View == config.ViewLog {
		return func(ctx context.Context, m *canmon.Monitor) error {
			announce(m)
			return tui.RunPlain(ctx, m, cmd.OutOrStdout(), hl)
		}, nil
	}

	view, err := tui.ParseView(cfg.View)
	if err != nil {
		return nil, err
	}
	opts := tui.Options{View: view, Highlight: hl, Title: cfg.Title}
	return func(ctx context.Context, m *canmon.Monitor) error {
		announce(m)
		return tui.Run(ctx, m, opts)
	}, nil
}
