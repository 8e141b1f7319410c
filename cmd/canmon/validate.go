package main

import (
	"fmt"

	"github.com/jpalmerr/canmon/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without opening a source.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a canmon configuration file without opening the source.

This command parses the YAML or TOML, expands environment variables,
validates all fields and loads the whitelist and highlight files.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  canmon validate -c canmon.yaml
  canmon validate --config /etc/canmon/canmon.toml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ids, invalid, err := cfg.ResolveWhitelist()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	highlights, err := cfg.ResolveHighlights()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	whitelist := fmt.Sprintf("%d IDs", len(ids))
	if len(ids) == 0 {
		whitelist = "all IDs"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Source:     %s\n", cfg.Describe())
	fmt.Fprintf(out, "  View:       %s\n", cfg.View)
	fmt.Fprintf(out, "  Whitelist:  %s\n", whitelist)
	if len(invalid) > 0 {
		fmt.Fprintf(out, "  Skipped:    %d invalid whitelist entries\n", len(invalid))
	}
	fmt.Fprintf(out, "  Highlights: %d\n", len(highlights))
	if cfg.HTTPAddr != "" {
		fmt.Fprintf(out, "  Dashboard:  %s\n", cfg.HTTPAddr)
	}
	if cfg.Record.Path != "" {
		fmt.Fprintf(out, "  Recording:  %s\n", cfg.Record.Path)
	}

	return nil
}
