// Package signal provides a coalescing "new data available" notification
// shared between the frame reader and a single consumer.
//
// A Signal holds at most one pending notification. Raising it repeatedly
// before the consumer waits collapses into one wake-up; it is not a counting
// semaphore. Consumers always re-read the full current state after waking,
// so intermediate raises carry no information of their own.
package signal

import (
	"context"
	"time"
)

// Signal is a single-slot, idempotent notification.
//
// The zero value is not usable; create one with [New]. All methods are safe
// for concurrent use.
type Signal struct {
	ch chan struct{}
}

// New returns a Signal with nothing pending.
func New() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise marks work as pending. It never blocks.
func (s *Signal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
		// already pending
	}
}

// Wait blocks up to timeout for a pending notification. It returns true if
// the signal was raised, consuming the pending flag, and false on timeout.
//
// A raise that arrives after Wait returns, for example while the consumer is
// rendering, stays pending for the next Wait.
func (s *Signal) Wait(timeout time.Duration) bool {
	return s.WaitContext(context.Background(), timeout)
}

// WaitContext is like [Signal.Wait] but also returns false as soon as ctx is
// done.
func (s *Signal) WaitContext(ctx context.Context, timeout time.Duration) bool {
	// fast path: avoid allocating a timer when already pending
	select {
	case <-s.ch:
		return true
	default:
	}

	if timeout <= 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// C exposes the notification channel for use in select statements.
// Receiving from it consumes the pending flag.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Pending reports whether a notification is waiting, without consuming it.
func (s *Signal) Pending() bool {
	return len(s.ch) > 0
}

// Clear drops a pending notification if there is one.
func (s *Signal) Clear() {
	select {
	case <-s.ch:
	default:
	}
}
