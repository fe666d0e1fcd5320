// Package cache provides a generic, thread-safe TTL cache. Entries
// expire after a fixed duration; an optional background janitor reclaims
// expired entries between accesses.
package cache

import (
	"sync"
	"time"
)

// EvictCallback is invoked after an entry is removed by expiry or
// displacement, outside the cache lock.
type EvictCallback[V any] func(key string, value V)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// TTL is a time-to-live cache. The zero value is unusable; create
// instances with New. A TTL of zero keeps entries until deleted.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	onEvict EvictCallback[V]

	janitorStop chan struct{}
	closeOnce   sync.Once
}

// Option configures a TTL cache.
type Option[V any] func(*TTL[V])

// WithEvictCallback observes evictions.
func WithEvictCallback[V any](cb EvictCallback[V]) Option[V] {
	return func(c *TTL[V]) { c.onEvict = cb }
}

// WithJanitor starts a background goroutine that sweeps expired entries
// every interval. Close stops it.
func WithJanitor[V any](interval time.Duration) Option[V] {
	return func(c *TTL[V]) {
		if interval <= 0 {
			return
		}
		c.janitorStop = make(chan struct{})
		go c.janitor(interval)
	}
}

// New creates a TTL cache whose entries expire ttl after each Set.
func New[V any](ttl time.Duration, opts ...Option[V]) *TTL[V] {
	c := &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a live value by key. Expired entries read as absent and
// are reclaimed lazily.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if e.expired(time.Now()) {
		c.deleteExpired(key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value, resetting its expiry.
func (c *TTL[V]) Set(key string, value V) {
	e := entry[V]{value: value}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Delete removes an entry, reporting whether it existed.
func (c *TTL[V]) Delete(key string) bool {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	return ok
}

// Len counts entries, including expired ones not yet reclaimed.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys lists the keys of live entries.
func (c *TTL[V]) Keys() []string {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if !e.expired(now) {
			out = append(out, k)
		}
	}
	return out
}

// Close stops the janitor, if any. The cache remains usable.
func (c *TTL[V]) Close() {
	c.closeOnce.Do(func() {
		if c.janitorStop != nil {
			close(c.janitorStop)
		}
	})
}

// deleteExpired re-checks expiry under the write lock so a concurrent
// Set is not lost.
func (c *TTL[V]) deleteExpired(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.expired(time.Now()) {
		delete(c.entries, key)
	} else {
		ok = false
	}
	c.mu.Unlock()

	if ok && c.onEvict != nil {
		c.onEvict(key, e.value)
	}
}

func (c *TTL[V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.janitorStop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *TTL[V]) sweep() {
	now := time.Now()
	type evicted struct {
		key   string
		value V
	}
	var removed []evicted

	c.mu.Lock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			if c.onEvict != nil {
				removed = append(removed, evicted{k, e.value})
			}
		}
	}
	c.mu.Unlock()

	for _, ev := range removed {
		c.onEvict(ev.key, ev.value)
	}
}
