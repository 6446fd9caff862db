// Package ringchan provides a bounded channel-like buffer with
// overwrite-oldest semantics, used for scan and notification event streams
// where a slow consumer must never block the BLE callback path.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel and guarantees that producers never
// block: when the buffer is full the oldest element is discarded. Readers
// consume it like a normal channel via C().
type RingChannel[T any] struct {
	ch          chan T
	overwritten atomic.Int64
}

// New creates a RingChannel with the given capacity. Panics if capacity <= 0.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers can range over it
// until Close is called.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an item, discarding the oldest buffered item if the channel is
// full. It never blocks indefinitely.
func (rc *RingChannel[T]) Send(v T) {
	for {
		select {
		case rc.ch <- v:
			return
		default:
		}
		select {
		case <-rc.ch:
			rc.overwritten.Add(1)
		default:
		}
	}
}

// Len reports the number of buffered items.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Overwritten reports how many items were discarded because the buffer was
// full when Send was called.
func (rc *RingChannel[T]) Overwritten() int64 {
	return rc.overwritten.Load()
}

// Close closes the channel. Send must not be called after Close.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}
