// Package bus is the message-passing substrate that decouples the pipeline
// stages: bounded single-consumer mailboxes and a broadcast channel with a
// fixed subscriber list. Every producer-side operation is non-blocking and
// drops on overflow, so a stalled downstream stage can never stall the
// timing-sensitive sensor path.
package bus

import (
	"sync/atomic"

	"github.com/banshee-data/lane.report/internal/monitoring"
)

// Mailbox is a bounded FIFO queue with a single consumer group. Put never
// blocks: when the queue is full the message is dropped, counted, and
// reported to the diagnostics sink.
type Mailbox[T any] struct {
	name    string
	ch      chan T
	dropped atomic.Uint64
}

// NewMailbox creates a mailbox with the given diagnostic name and capacity.
func NewMailbox[T any](name string, capacity int) *Mailbox[T] {
	return &Mailbox[T]{
		name: name,
		ch:   make(chan T, capacity),
	}
}

// Put enqueues v without blocking. It reports whether the message was
// accepted; a full mailbox drops the message.
func (m *Mailbox[T]) Put(v T) bool {
	select {
	case m.ch <- v:
		return true
	default:
		m.dropped.Add(1)
		monitoring.Logf("bus: mailbox %q full, message dropped (total dropped %d)", m.name, m.dropped.Load())
		return false
	}
}

// Poll dequeues the next message without blocking. The second return value
// reports whether a message was available.
func (m *Mailbox[T]) Poll() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for blocking consumption or select loops.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}

// Len returns the number of messages currently queued.
func (m *Mailbox[T]) Len() int {
	return len(m.ch)
}

// Dropped returns the number of messages discarded because the mailbox was full.
func (m *Mailbox[T]) Dropped() uint64 {
	return m.dropped.Load()
}
