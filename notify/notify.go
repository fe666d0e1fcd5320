// Package notify delivers configuration-changed events to external
// collaborators when tag definitions are created, updated, or deleted.
//
// Delivery is deferred through the registry's background task pool, so a
// slow notification subscriber never blocks registry mutations.
package notify

import (
	"context"
	"time"
)

// ChangeType identifies what happened to a tag definition.
type ChangeType string

const (
	// TagCreated is emitted when AddOrUpdate inserts a new definition.
	TagCreated ChangeType = "created"
	// TagUpdated is emitted when AddOrUpdate replaces an existing definition.
	TagUpdated ChangeType = "updated"
	// TagDeleted is emitted when Delete removes a definition.
	TagDeleted ChangeType = "deleted"
)

// ChangeEvent describes one tag configuration change.
type ChangeEvent struct {
	Type      ChangeType `json:"type"`
	TagID     string     `json:"tag_id"`
	TagName   string     `json:"tag_name"`
	Timestamp time.Time  `json:"timestamp"`
}

// Notifier receives configuration-changed events. Implementations must
// tolerate concurrent calls; they run on background workers.
type Notifier interface {
	Notify(ctx context.Context, event ChangeEvent) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event ChangeEvent) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event ChangeEvent) error {
	return f(ctx, event)
}

// Nop returns a Notifier that discards all events.
func Nop() Notifier {
	return NotifierFunc(func(context.Context, ChangeEvent) error { return nil })
}
