package bus

import (
	"sync"
	"sync/atomic"

	"github.com/banshee-data/lane.report/internal/monitoring"
)

// Broadcast fans messages out to a fixed set of subscribers, each with its
// own bounded queue. Subscribers are registered once at setup; there is no
// subscription churn during operation. Publish never blocks: a subscriber
// whose queue is full misses that message.
type Broadcast[T any] struct {
	name      string
	mu        sync.RWMutex
	subs      []*Subscription[T]
	published atomic.Uint64
}

// Subscription is one subscriber's private queue on a Broadcast.
type Subscription[T any] struct {
	id      string
	ch      chan T
	dropped atomic.Uint64
}

// NewBroadcast creates a broadcast channel with the given diagnostic name.
func NewBroadcast[T any](name string) *Broadcast[T] {
	return &Broadcast[T]{name: name}
}

// Subscribe registers a subscriber with a private queue of the given
// capacity and returns its subscription. Intended to be called during
// setup, before any Publish.
func (b *Broadcast[T]) Subscribe(id string, capacity int) *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &Subscription[T]{
		id: id,
		ch: make(chan T, capacity),
	}
	b.subs = append(b.subs, s)
	return s
}

// Publish fans v out to every subscriber without blocking. Messages to a
// full subscriber queue are dropped and counted. Publishing with no
// subscribers is a silent no-op.
func (b *Broadcast[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.published.Add(1)
	for _, s := range b.subs {
		select {
		case s.ch <- v:
		default:
			s.dropped.Add(1)
			monitoring.Logf("bus: broadcast %q subscriber %q full, message dropped (total dropped %d)",
				b.name, s.id, s.dropped.Load())
		}
	}
}

// Published returns the number of messages published on this channel.
func (b *Broadcast[T]) Published() uint64 {
	return b.published.Load()
}

// Poll dequeues the next message without blocking.
func (s *Subscription[T]) Poll() (T, bool) {
	select {
	case v := <-s.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the subscriber's receive side for blocking consumption.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// ID returns the subscriber identifier supplied at registration.
func (s *Subscription[T]) ID() string {
	return s.id
}

// Dropped returns the number of messages this subscriber missed because its
// queue was full.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}
