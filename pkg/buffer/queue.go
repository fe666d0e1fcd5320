// Package buffer provides a generic, thread-safe bounded queue with
// configurable overflow policies.
//
// The queue is the delivery primitive behind push subscriptions: producers
// never block under the drop policies, consumers block with context-aware
// cancellation, and every drop is observable through a callback and an
// atomic counter.
package buffer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/c360/tagkit/errors"
)

// OverflowPolicy defines how a full queue treats a new item.
type OverflowPolicy int

const (
	// DropOldest removes the least recent item to make room. The producer
	// never blocks; slow consumers lose the oldest data first.
	DropOldest OverflowPolicy = iota

	// DropNewest discards the incoming item when the queue is full.
	DropNewest

	// Block makes Write wait until space is available.
	Block
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// DropCallback is invoked with every item discarded by an overflow
// policy. Close does not drop: buffered items stay readable until
// drained. The callback runs outside the queue lock.
type DropCallback[T any] func(item T)

// Option configures queue behavior.
type Option[T any] func(*options[T])

type options[T any] struct {
	policy       OverflowPolicy
	dropCallback DropCallback[T]
}

// WithOverflowPolicy sets the overflow behavior. Defaults to DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *options[T]) {
		o.policy = policy
	}
}

// WithDropCallback sets a callback invoked for every dropped item.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(o *options[T]) {
		o.dropCallback = cb
	}
}

// Queue is a fixed-capacity ring buffer.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	closed   bool

	notEmpty *sync.Cond
	notFull  *sync.Cond

	dropped atomic.Uint64
	opts    options[T]
}

// NewQueue creates a queue with the given capacity. Capacity below one is
// raised to one.
func NewQueue[T any](capacity int, opts ...Option[T]) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}

	q := &Queue[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		opts:     options[T]{policy: DropOldest},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&q.opts)
		}
	}

	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Policy returns the queue's overflow policy.
func (q *Queue[T]) Policy() OverflowPolicy {
	return q.opts.policy
}

// Write adds an item according to the overflow policy. Under DropOldest and
// DropNewest it never blocks.
func (q *Queue[T]) Write(item T) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return errors.ErrQueueClosed
	}

	if q.size == q.capacity {
		switch q.opts.policy {
		case DropOldest:
			dropped := q.items[q.tail]
			q.tail = (q.tail + 1) % q.capacity
			q.size--
			q.dropped.Add(1)
			q.enqueueLocked(item)
			q.mu.Unlock()
			if q.opts.dropCallback != nil {
				q.opts.dropCallback(dropped)
			}
			return nil

		case DropNewest:
			q.dropped.Add(1)
			q.mu.Unlock()
			if q.opts.dropCallback != nil {
				q.opts.dropCallback(item)
			}
			return nil

		case Block:
			for q.size == q.capacity && !q.closed {
				q.notFull.Wait()
			}
			if q.closed {
				q.mu.Unlock()
				return errors.ErrQueueClosed
			}
		}
	}

	q.enqueueLocked(item)
	q.mu.Unlock()
	return nil
}

// enqueueLocked assumes the lock is held and space exists.
func (q *Queue[T]) enqueueLocked(item T) {
	q.items[q.head] = item
	q.head = (q.head + 1) % q.capacity
	q.size++
	q.notEmpty.Signal()
}

// Read blocks until an item is available, the context is canceled, or the
// queue is closed and drained. A closed queue keeps serving the items it
// already holds before reporting ErrQueueClosed.
func (q *Queue[T]) Read(ctx context.Context) (T, error) {
	var zero T

	// Wake blocked waiters when the context fires. The broadcast takes the
	// lock so it cannot slip between a waiter's ctx check and its Wait.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 {
		if q.closed {
			return zero, errors.ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.notEmpty.Wait()
	}

	return q.dequeueLocked(), nil
}

// TryRead retrieves one item without blocking.
func (q *Queue[T]) TryRead() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.size == 0 {
		return zero, false
	}
	return q.dequeueLocked(), true
}

// dequeueLocked assumes the lock is held and size > 0.
func (q *Queue[T]) dequeueLocked() T {
	var zero T
	item := q.items[q.tail]
	q.items[q.tail] = zero // release for GC
	q.tail = (q.tail + 1) % q.capacity
	q.size--
	q.notFull.Signal()
	return item
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Dropped returns the total number of items discarded by overflow policies.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close marks the queue closed and wakes all waiters. Items already queued
// remain readable; Write fails immediately. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
