package store

import (
	"time"

	"github.com/jpalmerr/canmon/internal/frame"
	"github.com/jpalmerr/canmon/internal/signal"
)

// Record is the current state of one CAN ID.
type Record struct {
	// ID is the CAN arbitration ID.
	ID uint32 `json:"id"`

	// Payload is the most recent payload seen for ID.
	Payload []byte `json:"payload"`

	// Count is the number of accepted frames for ID in this session.
	Count uint64 `json:"count"`

	// UpdatedAt is the observation time of the most recent frame.
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is one accepted frame in arrival order.
type Entry struct {
	// Seq increases by one for every accepted frame, starting at 1.
	Seq uint64 `json:"seq"`

	Frame frame.Frame `json:"frame"`
}

// Store defines the interface for recording frames and observing changes.
//
// Store implementations must be safe for concurrent access. Returned slices
// and payloads are copies; modifying them does not affect the store.
type Store interface {
	// Update replaces the latest payload for f.ID, increments its count and
	// raises every subscribed signal. It returns the new record.
	Update(f frame.Frame) Record

	// Snapshot returns every record ordered by ID.
	Snapshot() []Record

	// Get returns the record for id, if any.
	Get(id uint32) (Record, bool)

	// Len returns the number of distinct IDs seen.
	Len() int

	// Since returns history entries with Seq greater than seq, oldest first,
	// along with the latest Seq. Entries that fell out of the bounded
	// history are skipped.
	Since(seq uint64) ([]Entry, uint64)

	// Subscribe returns a signal raised after every update.
	// Caller must call Unsubscribe when done.
	Subscribe() *signal.Signal

	// Unsubscribe stops raising sig. Safe to call more than once.
	Unsubscribe(sig *signal.Signal)
}
