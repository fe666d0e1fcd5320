package hub

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/c360/tagkit/adapter"
	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/pkg/buffer"
	"github.com/c360/tagkit/tag"
)

// State is a subscription's position in its lifecycle. Transitions only
// move forward: Active, then Closing while the hub detaches it, then
// Closed once no publisher can reach its queue.
type State int32

const (
	Active State = iota
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscription is one caller's registration for real-time values. Values
// for its tags arrive on a dedicated bounded queue; a slow reader only
// ever loses its own values. Obtain subscriptions from Hub.Subscribe and
// release them with Hub.Unsubscribe.
type Subscription struct {
	id     string
	caller adapter.Caller
	queue  *buffer.Queue[tag.Value]
	state  atomic.Int32

	// tags maps normalized names to the form the subscriber supplied.
	// Guarded by the owning hub's mutex.
	tags map[string]string

	// stopWatch detaches the context watcher installed by Subscribe.
	stopWatch func() bool
}

// ID is the hub-assigned subscription key.
func (s *Subscription) ID() string { return s.id }

// Caller is the identity that opened the subscription.
func (s *Subscription) Caller() adapter.Caller { return s.caller }

// State reports the current lifecycle state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// Tags lists the subscribed tag names, sorted, in the form the
// subscriber supplied them. The snapshot is taken by the owning hub.
func (s *Subscription) tagsLocked() []string {
	out := make([]string, 0, len(s.tags))
	for _, original := range s.tags {
		out = append(out, original)
	}
	sort.Strings(out)
	return out
}

// Read blocks until a value arrives, ctx is canceled, or the
// subscription is closed and its queue drained. Values buffered before
// Unsubscribe remain readable afterwards.
func (s *Subscription) Read(ctx context.Context) (tag.Value, error) {
	v, err := s.queue.Read(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrQueueClosed) {
			return tag.Value{}, errors.Wrap(errors.ErrSubscriptionClosed, "Subscription", "Read", "reading value")
		}
		return tag.Value{}, errors.WrapCanceled(err, "Subscription", "Read", "waiting for value")
	}
	return v, nil
}

// TryRead retrieves one buffered value without blocking.
func (s *Subscription) TryRead() (tag.Value, bool) {
	return s.queue.TryRead()
}

// Buffered is the number of values waiting to be read.
func (s *Subscription) Buffered() int { return s.queue.Len() }

// Dropped is the number of values lost to this subscription's overflow
// policy since it was created.
func (s *Subscription) Dropped() uint64 { return s.queue.Dropped() }
