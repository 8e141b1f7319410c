// Package main is the entry point for the canmon CLI.
//
// canmon can be used as a library (SDK) or as a standalone binary driven by
// flags and an optional YAML or TOML config file. This CLI provides the
// standalone binary approach.
//
// Usage:
//
//	canmon monitor /dev/ttyACM0 115200    # Watch a serial CAN adapter
//	canmon monitor --file capture.log -v log
//	canmon decode capture.log             # Decode frame lines offline
//	canmon validate -c canmon.yaml        # Validate configuration
//	canmon version                        # Show version info
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "canmon",
	Short: "A terminal monitor for serial CAN adapters",
	Long: `canmon reads text-encoded CAN frames from a serial adapter, a file or
stdin and shows the latest payload of every CAN ID as it changes.

Each frame arrives as one line:
  FR:ID=246:LN=8:8E:62:1C:F6:1E:63:63:20

Quick start:
  canmon monitor /dev/ttyACM0 115200
  canmon monitor /dev/ttyACM0 -w 0xF6,0x101 -H 0xF6 -v scroll
  canmon monitor --file capture.log -v log --http :8080`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this canmon binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "canmon %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "append logs to this file instead of stderr")
}

// newLogger creates a JSON logger for CLI use.
//
// Logs go to --log-file when set. Otherwise they go to stderr, unless quiet
// is set because a full-screen view owns the terminal; then they are
// dropped. The returned function closes the log file.
func newLogger(cmd *cobra.Command, quiet bool) (*slog.Logger, func(), error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level %q: %w", levelName, err)
	}

	var w io.Writer = cmd.ErrOrStderr()
	closeFn := func() {}

	path, _ := cmd.Flags().GetString("log-file")
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	case quiet:
		w = io.Discard
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}
