package store

import (
	"bytes"
	"sort"
	"sync"

	"github.com/jpalmerr/canmon/internal/frame"
	"github.com/jpalmerr/canmon/internal/signal"
)

// DefaultHistorySize is the number of frames kept for the scrolling view.
const DefaultHistorySize = 1000

// MemoryStore is an in-memory implementation of [Store].
//
// Records are keyed by CAN ID and never removed. Every update replaces the
// stored payload with a private copy, so a snapshot can never observe a
// payload paired with the wrong count or a partially written payload.
//
// The history is a fixed-size ring of the most recent accepted frames.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uint32]*Record
	history []Entry
	head    int // next write position in history
	seq     uint64

	subscribers map[*signal.Signal]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] keeping historySize recent
// frames. A historySize of zero or less uses [DefaultHistorySize].
func NewMemoryStore(historySize int) *MemoryStore {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &MemoryStore{
		records:     make(map[uint32]*Record),
		history:     make([]Entry, 0, historySize),
		subscribers: make(map[*signal.Signal]struct{}),
	}
}

// Update stores f as the latest frame for its ID and notifies subscribers.
//
// The lock is released before subscribers are raised.
func (m *MemoryStore) Update(f frame.Frame) Record {
	f = f.Clone()

	m.mu.Lock()
	rec, ok := m.records[f.ID]
	if !ok {
		rec = &Record{ID: f.ID}
		m.records[f.ID] = rec
	}
	rec.Payload = f.Payload
	rec.Count++
	rec.UpdatedAt = f.ObservedAt

	m.seq++
	m.appendHistory(Entry{Seq: m.seq, Frame: f})

	out := copyRecord(rec)
	m.mu.Unlock()

	m.notifySubscribers()
	return out
}

// appendHistory writes e into the ring. Caller holds m.mu.
func (m *MemoryStore) appendHistory(e Entry) {
	if len(m.history) < cap(m.history) {
		m.history = append(m.history, e)
		return
	}
	m.history[m.head] = e
	m.head = (m.head + 1) % len(m.history)
}

// Snapshot returns a copy of every record ordered by ID.
func (m *MemoryStore) Snapshot() []Record {
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, copyRecord(rec))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a copy of the record for id.
func (m *MemoryStore) Get(id uint32) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, false
	}
	return copyRecord(rec), true
}

// Len returns the number of distinct IDs stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Since returns the retained history entries newer than seq.
func (m *MemoryStore) Since(seq uint64) ([]Entry, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if seq >= m.seq {
		return nil, m.seq
	}

	// oldest retained entry sits at head once the ring has wrapped
	n := len(m.history)
	out := make([]Entry, 0, min(n, int(m.seq-seq)))
	for i := 0; i < n; i++ {
		e := m.history[(m.head+i)%n]
		if e.Seq > seq {
			out = append(out, Entry{Seq: e.Seq, Frame: e.Frame.Clone()})
		}
	}
	return out, m.seq
}

// Subscribe creates a new subscription.
//
// Caller must call [MemoryStore.Unsubscribe] when done to stop receiving
// notifications.
func (m *MemoryStore) Subscribe() *signal.Signal {
	sig := signal.New()

	m.subMu.Lock()
	m.subscribers[sig] = struct{}{}
	m.subMu.Unlock()

	return sig
}

// Unsubscribe removes a subscription. Safe to call multiple times or with
// an unknown signal.
func (m *MemoryStore) Unsubscribe(sig *signal.Signal) {
	m.subMu.Lock()
	delete(m.subscribers, sig)
	m.subMu.Unlock()
}

// Subscribers returns the number of active subscriptions.
func (m *MemoryStore) Subscribers() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

// notifySubscribers raises every subscribed signal. Raising never blocks,
// so a consumer that is busy rendering cannot stall the reader.
func (m *MemoryStore) notifySubscribers() {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for sig := range m.subscribers {
		sig.Raise()
	}
}

func copyRecord(r *Record) Record {
	return Record{
		ID:        r.ID,
		Payload:   bytes.Clone(r.Payload),
		Count:     r.Count,
		UpdatedAt: r.UpdatedAt,
	}
}
