// Package hub fans real-time tag values out to subscribers. Membership
// changes serialize on one mutex and rebuild an immutable reverse index
// (normalized tag name to subscriber list) that Publish reads without
// locking, so a publish never waits on a Subscribe, AddTags or
// Unsubscribe in flight. Each subscription owns a bounded queue; when a
// reader falls behind, its queue's overflow policy decides what to drop
// and no other subscriber is affected.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/c360/tagkit/adapter"
	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/metric"
	"github.com/c360/tagkit/pkg/buffer"
	"github.com/c360/tagkit/tag"
)

// DefaultQueueCapacity bounds subscription queues unless overridden.
const DefaultQueueCapacity = 1024

// index is the immutable read view Publish operates on.
type index map[string][]*Subscription

// Hub is safe for concurrent use. Create instances with New.
type Hub struct {
	mu     sync.Mutex
	index  atomic.Value // index
	subs   map[string]*Subscription
	closed bool

	defaultCapacity int
	defaultPolicy   buffer.OverflowPolicy
	metrics         *metric.CoreMetrics
	logger          *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithDefaultQueueCapacity sets the queue capacity used by subscriptions
// that do not choose their own.
func WithDefaultQueueCapacity(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.defaultCapacity = n
		}
	}
}

// WithDefaultPolicy sets the overflow policy used by subscriptions that
// do not choose their own.
func WithDefaultPolicy(p buffer.OverflowPolicy) Option {
	return func(h *Hub) { h.defaultPolicy = p }
}

// WithMetrics publishes fan-out counters and the active subscription
// gauge.
func WithMetrics(m *metric.CoreMetrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		subs:            make(map[string]*Subscription),
		defaultCapacity: DefaultQueueCapacity,
		defaultPolicy:   buffer.DropOldest,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.index.Store(index{})
	return h
}

// SubscribeOption adjusts one subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	capacity int
	policy   buffer.OverflowPolicy
}

// WithQueueCapacity sets this subscription's queue capacity.
func WithQueueCapacity(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithOverflowPolicy sets this subscription's overflow policy.
func WithOverflowPolicy(p buffer.OverflowPolicy) SubscribeOption {
	return func(c *subscribeConfig) { c.policy = p }
}

// Subscribe registers a new subscription with an empty tag set. The
// subscription stays open until Unsubscribe is called or ctx is
// canceled, whichever comes first.
func (h *Hub) Subscribe(ctx context.Context, caller adapter.Caller, opts ...SubscribeOption) (*Subscription, error) {
	cfg := subscribeConfig{capacity: h.defaultCapacity, policy: h.defaultPolicy}
	for _, opt := range opts {
		opt(&cfg)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.WrapUnavailable(errors.ErrHubClosed, "Hub", "Subscribe", "registering subscription")
	}

	sub := &Subscription{
		id:     uuid.NewString(),
		caller: caller,
		tags:   make(map[string]string),
	}
	sub.queue = buffer.NewQueue[tag.Value](cfg.capacity,
		buffer.WithOverflowPolicy[tag.Value](cfg.policy),
		buffer.WithDropCallback[tag.Value](func(tag.Value) {
			if h.metrics != nil {
				h.metrics.ValuesDropped.WithLabelValues(cfg.policy.String()).Inc()
			}
		}),
	)
	sub.stopWatch = context.AfterFunc(ctx, func() {
		h.Unsubscribe(sub)
	})

	h.subs[sub.id] = sub
	if h.metrics != nil {
		h.metrics.ActiveSubscriptions.Inc()
	}
	h.logger.Debug("subscription opened", "subscription", sub.id, "caller", caller.ID)
	return sub, nil
}

// AddTags merges tag names into the subscription, ignoring names it
// already holds under case-insensitive comparison, and returns the new
// total tag count.
func (h *Hub) AddTags(sub *Subscription, names []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkMemberLocked(sub, "AddTags"); err != nil {
		return 0, err
	}

	changed := false
	for _, name := range names {
		key := tag.NormalizeName(name)
		if key == "" {
			continue
		}
		if _, ok := sub.tags[key]; !ok {
			sub.tags[key] = name
			changed = true
		}
	}
	if changed {
		h.rebuildIndexLocked()
	}
	return len(sub.tags), nil
}

// RemoveTags removes tag names from the subscription, matching
// case-insensitively, and returns the new total tag count. Unknown names
// are ignored.
func (h *Hub) RemoveTags(sub *Subscription, names []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkMemberLocked(sub, "RemoveTags"); err != nil {
		return 0, err
	}

	changed := false
	for _, name := range names {
		key := tag.NormalizeName(name)
		if _, ok := sub.tags[key]; ok {
			delete(sub.tags, key)
			changed = true
		}
	}
	if changed {
		h.rebuildIndexLocked()
	}
	return len(sub.tags), nil
}

// Tags lists the subscription's tag names, sorted.
func (h *Hub) Tags(sub *Subscription) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkMemberLocked(sub, "Tags"); err != nil {
		return nil, err
	}
	return sub.tagsLocked(), nil
}

func (h *Hub) checkMemberLocked(sub *Subscription, method string) error {
	if sub == nil {
		return errors.WrapInvalid(errors.ErrSubscriptionNotFound, "Hub", method, "resolving subscription")
	}
	if sub.State() != Active {
		return errors.WrapInvalid(errors.ErrSubscriptionClosed, "Hub", method, "resolving subscription "+sub.id)
	}
	if _, ok := h.subs[sub.id]; !ok {
		return errors.WrapNotFound(errors.ErrSubscriptionNotFound, "Hub", method, "resolving subscription "+sub.id)
	}
	return nil
}

// rebuildIndexLocked recomputes the reverse index and publishes it
// atomically. Publish goroutines keep using the old index until the
// store completes.
func (h *Hub) rebuildIndexLocked() {
	next := make(index)
	for _, sub := range h.subs {
		for key := range sub.tags {
			next[key] = append(next[key], sub)
		}
	}
	h.index.Store(next)
}

// Publish delivers a value to every active subscription of the named
// tag and returns how many queues accepted it. It never blocks on slow
// subscribers: full queues resolve per their own overflow policy.
func (h *Hub) Publish(name string, value tag.Value) int {
	idx := h.index.Load().(index)
	subs := idx[tag.NormalizeName(name)]
	if len(subs) == 0 {
		return 0
	}

	if value.TagName == "" {
		value.TagName = name
	}

	delivered := 0
	for _, sub := range subs {
		if sub.State() != Active {
			continue
		}
		if err := sub.queue.Write(value); err != nil {
			continue
		}
		delivered++
	}
	if h.metrics != nil && delivered > 0 {
		h.metrics.ValuesPublished.WithLabelValues("delivered").Add(float64(delivered))
	}
	return delivered
}

// Unsubscribe detaches the subscription from the hub and closes its
// queue. Values buffered before the call remain readable. Unsubscribing
// an already-closed subscription is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.state.CompareAndSwap(int32(Active), int32(Closing)) {
		return
	}
	if sub.stopWatch != nil {
		sub.stopWatch()
	}

	h.mu.Lock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		h.rebuildIndexLocked()
		if h.metrics != nil {
			h.metrics.ActiveSubscriptions.Dec()
		}
	}
	h.mu.Unlock()

	sub.queue.Close()
	sub.state.Store(int32(Closed))
	h.logger.Debug("subscription closed", "subscription", sub.id)
}

// Close unsubscribes everything and rejects future Subscribe calls.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	remaining := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		remaining = append(remaining, sub)
	}
	h.mu.Unlock()

	for _, sub := range remaining {
		h.Unsubscribe(sub)
	}
}

// Len reports the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
