package canmon

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jpalmerr/canmon/internal/frame"
	"github.com/jpalmerr/canmon/internal/reader"
	"github.com/jpalmerr/canmon/internal/store"
)

// Frame is one decoded CAN message as delivered to callbacks.
//
// Frame values handed to callbacks own their payload; holding on to them
// is safe.
type Frame struct {
	// ID is the CAN arbitration ID.
	ID uint32

	// Payload holds the data bytes. Its length always equals the length
	// declared on the wire.
	Payload []byte

	// ObservedAt is when the reader accepted the frame.
	ObservedAt time.Time
}

// HexString formats the payload as space separated hex bytes ("8E 62 1C").
func (f Frame) HexString() string {
	return hexString(f.Payload)
}

// Record is the latest known state of one CAN ID.
type Record struct {
	// ID is the CAN arbitration ID.
	ID uint32

	// Payload is the most recent payload for ID.
	Payload []byte

	// Count is how many frames with this ID were accepted this session.
	Count uint64

	// UpdatedAt is when the most recent frame was observed.
	UpdatedAt time.Time
}

// HexString formats the payload as space separated hex bytes.
func (r Record) HexString() string {
	return hexString(r.Payload)
}

// Entry is one accepted frame in arrival order.
type Entry struct {
	// Seq starts at 1 and increases by one per accepted frame.
	Seq   uint64
	Frame Frame
}

// Stats summarises what the reader has processed.
type Stats struct {
	LinesRead      uint64 `json:"lines_read"`
	FramesAccepted uint64 `json:"frames_accepted"`
	FramesFiltered uint64 `json:"frames_filtered"`
	MalformedLines uint64 `json:"malformed_lines"`

	// IDs is the number of distinct IDs in the store.
	IDs int `json:"ids"`
}

// State is the lifecycle state of a [Monitor].
type State int

const (
	// StateIdle means the monitor was created but not started.
	StateIdle State = iota

	// StateRunning means the reader goroutine is active.
	StateRunning

	// StateStopRequested means teardown is in progress.
	StateStopRequested

	// StateStopped means every resource has been released.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func hexString(b []byte) string {
	return frame.Frame{Payload: b}.HexString()
}

func frameFromInternal(f frame.Frame) Frame {
	return Frame{
		ID:         f.ID,
		Payload:    bytes.Clone(f.Payload),
		ObservedAt: f.ObservedAt,
	}
}

func recordFromStore(r store.Record) Record {
	return Record{
		ID:        r.ID,
		Payload:   r.Payload,
		Count:     r.Count,
		UpdatedAt: r.UpdatedAt,
	}
}

func statsFromReader(s reader.Stats, ids int) Stats {
	return Stats{
		LinesRead:      s.LinesRead,
		FramesAccepted: s.FramesAccepted,
		FramesFiltered: s.FramesFiltered,
		MalformedLines: s.MalformedLines,
		IDs:            ids,
	}
}

// FormatID renders a CAN ID the way the terminal views show it ("0xF6").
func FormatID(id uint32) string {
	return "0x" + strings.ToUpper(fmt.Sprintf("%x", id))
}
