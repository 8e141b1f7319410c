package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jpalmerr/canmon"
	"github.com/jpalmerr/canmon/internal/assembler"
	"github.com/jpalmerr/canmon/internal/frame"
	"github.com/spf13/cobra"
)

// decodeCmd decodes frame lines without starting a monitor.
var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode frame lines from a file or stdin",
	Long: `Decode frame lines and print one result per line.

Valid lines print as "ID LN payload". Malformed lines print the reason,
prefixed with the line number. Reads stdin when no file is given.

Exit codes:
  0 - every line decoded, or --strict not set
  1 - --strict set and at least one line was malformed

Example:
  canmon decode capture.log
  echo "FR:ID=246:LN=2:8E:62" | canmon decode
  canmon decode capture.log --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().Bool("json", false, "print frames as JSON objects")
	decodeCmd.Flags().Bool("strict", false, "fail when any line is malformed")
}

type decodedLine struct {
	Line  int    `json:"line"`
	ID    uint32 `json:"id,omitempty"`
	IDHex string `json:"id_hex,omitempty"`
	Len   int    `json:"length"`
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	strict, _ := cmd.Flags().GetBool("strict")

	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	asm := assembler.New(r, assembler.DefaultMaxLineLength)

	lineNo, malformed := 0, 0
	for {
		line, ok, err := asm.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, assembler.ErrLineTooLong) {
			return fmt.Errorf("read failed: %w", err)
		}
		if !ok && err == nil {
			continue
		}
		lineNo++
		if ok && len(line) == 0 {
			continue
		}

		res := decodedLine{Line: lineNo}
		if err == nil {
			var f frame.Frame
			f, err = frame.Decode(line)
			if err == nil {
				res.ID = f.ID
				res.IDHex = canmon.FormatID(f.ID)
				res.Len = len(f.Payload)
				res.Data = f.HexString()
			}
		}
		if err != nil {
			malformed++
			res.Error = err.Error()
		}

		if asJSON {
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}
		if res.Error != "" {
			fmt.Fprintf(out, "line %d: %s\n", res.Line, res.Error)
		} else {
			fmt.Fprintf(out, "%-10s LN=%d %s\n", res.IDHex, res.Len, res.Data)
		}
	}

	if strict && malformed > 0 {
		return fmt.Errorf("%d of %d lines malformed", malformed, lineNo)
	}
	return nil
}
