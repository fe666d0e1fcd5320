// Package snapshot keeps the last-known value of each tag so a new
// subscriber can render current state immediately instead of waiting for
// the next change. An optional TTL ages values out of stale tags.
package snapshot

import (
	"sort"
	"time"

	"github.com/c360/tagkit/pkg/cache"
	"github.com/c360/tagkit/tag"
)

// janitorInterval is how often expired snapshots are swept when a TTL
// is set.
const janitorInterval = time.Minute

// Store is safe for concurrent use. Create instances with New.
type Store struct {
	values *cache.TTL[tag.Value]
}

// New creates a snapshot store. With ttl zero, values persist until
// overwritten or deleted; otherwise a value older than ttl reads as
// absent.
func New(ttl time.Duration) *Store {
	var opts []cache.Option[tag.Value]
	if ttl > 0 {
		opts = append(opts, cache.WithJanitor[tag.Value](janitorInterval))
	}
	return &Store{values: cache.New[tag.Value](ttl, opts...)}
}

// Update records the latest value for the named tag. Names compare
// case-insensitively.
func (s *Store) Update(name string, v tag.Value) {
	key := tag.NormalizeName(name)
	if key == "" {
		return
	}
	s.values.Set(key, v)
}

// Get returns the last-known value for the named tag.
func (s *Store) Get(name string) (tag.Value, bool) {
	return s.values.Get(tag.NormalizeName(name))
}

// Delete drops the snapshot of a removed tag.
func (s *Store) Delete(name string) bool {
	return s.values.Delete(tag.NormalizeName(name))
}

// Names lists the tags with a live snapshot, sorted by normalized name.
func (s *Store) Names() []string {
	names := s.values.Keys()
	sort.Strings(names)
	return names
}

// Len counts held snapshots, including those awaiting expiry.
func (s *Store) Len() int { return s.values.Len() }

// Close stops the expiry janitor, if any.
func (s *Store) Close() { s.values.Close() }
