// Standalone simulated CAN adapter for trying the CLI without hardware.
//
// Usage:
//
//	go run ./example/cmd/fakebus | go run ./cmd/canmon monitor --file -
//
// Or write a capture file to replay later:
//
//	go run ./example/cmd/fakebus --count 500 > bus.log
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/jpalmerr/canmon/internal/frame"
)

func main() {
	interval := pflag.DurationP("interval", "i", 20*time.Millisecond, "delay between frames (0 for no delay)")
	count := pflag.IntP("count", "n", 0, "stop after this many frames (0 runs forever)")
	ids := pflag.UintSlice("id", []uint{0xF6, 0x101, 0x1A0, 0x3E8}, "CAN IDs to simulate")
	noise := pflag.Int("noise", 50, "corrupt one line in N (0 disables)")
	pflag.Parse()

	if len(*ids) == 0 {
		fmt.Fprintln(os.Stderr, "fakebus: at least one --id is required")
		os.Exit(2)
	}

	payloads := make(map[uint32][]byte, len(*ids))
	for i, id := range *ids {
		payloads[uint32(id)] = make([]byte, 1+i%8)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for sent := 0; *count == 0 || sent < *count; sent++ {
		id := uint32((*ids)[rand.Intn(len(*ids))])
		p := payloads[id]
		p[rand.Intn(len(p))]++

		line := frame.Encode(frame.Frame{ID: id, Payload: p})
		if *noise > 0 && rand.Intn(*noise) == 0 {
			line = line[:len(line)/2]
		}
		line = append(line, '\n')
		if _, err := out.Write(line); err != nil {
			slog.Error("write failed", "error", err)
			os.Exit(1)
		}
		if *interval > 0 {
			if err := out.Flush(); err != nil {
				slog.Error("write failed", "error", err)
				os.Exit(1)
			}
			time.Sleep(*interval)
		}
	}
}
