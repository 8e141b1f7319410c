// Package store holds the latest frame per CAN ID and notifies consumers
// when it changes.
//
// This package is internal to canmon and is the only state shared between
// the reader goroutine and the display. The reader is the sole writer; any
// number of consumers take read-only snapshots.
//
// The main components are:
//
//   - [Store]: Interface defining update, snapshot and subscription operations
//   - [MemoryStore]: In-memory implementation of Store
//   - [Record]: Latest payload and occurrence count for one ID
//   - [Entry]: One accepted frame in the arrival-ordered history
//
// Subscribers receive a coalescing [signal.Signal] rather than a queue of
// deltas. Raising never blocks the writer; a slow consumer simply sees
// several updates folded into its next snapshot.
package store
