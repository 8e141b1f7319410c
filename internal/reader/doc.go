// Package reader runs the read, assemble, decode loop over a byte source.
//
// This package is internal to canmon. The [Reader] is the only writer of
// the frame store: each decoded frame that passes the allow-list replaces
// the latest payload for its ID and wakes subscribed consumers.
//
// Decode failures are per-line and never stop the loop. End of stream stops
// it cleanly. Any other read error stops it and is reported to the caller,
// unless the context was already cancelled, in which case the error is the
// expected result of closing the source mid-read and is dropped.
package reader
