// Package registry holds the authoritative tag definition catalog for an
// adapter. Reads are lock-free over an immutable snapshot; writes serialize
// on a single mutex, persist to the configured key-value store, then swap
// the snapshot atomically. Initialization is single-flight: the first
// operation to need the catalog loads it, concurrent callers wait on the
// same load, and a failed load is sticky so the registry never silently
// serves an empty catalog in place of a lost one. A load aborted by the
// triggering caller's cancellation is the exception: it is not latched,
// and the next caller retries.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/kv"
	"github.com/c360/tagkit/metric"
	"github.com/c360/tagkit/notify"
	"github.com/c360/tagkit/pkg/worker"
	"github.com/c360/tagkit/tag"
)

// DefaultPageSize bounds Find results when the filter does not set one.
const DefaultPageSize = 10

// Scheduler runs change-notification tasks off the writer's goroutine.
// worker.Pool satisfies it.
type Scheduler interface {
	Submit(task worker.Task) error
}

// Filter selects tag definitions in Find. Name supports the wildcards
// "*" (any run) and "?" (any single character); a pattern without
// wildcards matches as a case-insensitive substring. Description always
// matches as a substring. Page is 1-based.
type Filter struct {
	Name        string
	Description string
	PageSize    int
	Page        int
}

// snapshot is the immutable read view. byName keeps the first definition
// in (name, ID) order for each normalized name, so lookups across
// duplicate names are deterministic.
type snapshot struct {
	byID   map[string]*tag.Definition
	byName map[string]*tag.Definition
	sorted []*tag.Definition
}

func buildSnapshot(defs []*tag.Definition) *snapshot {
	sorted := make([]*tag.Definition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool {
		ni, nj := tag.NormalizeName(sorted[i].Name), tag.NormalizeName(sorted[j].Name)
		if ni != nj {
			return ni < nj
		}
		return sorted[i].ID < sorted[j].ID
	})

	s := &snapshot{
		byID:   make(map[string]*tag.Definition, len(sorted)),
		byName: make(map[string]*tag.Definition, len(sorted)),
		sorted: sorted,
	}
	for _, d := range sorted {
		s.byID[d.ID] = d
		name := tag.NormalizeName(d.Name)
		if _, ok := s.byName[name]; !ok {
			s.byName[name] = d
		}
	}
	return s
}

// lookup resolves by ID first, then by case-insensitive name.
func (s *snapshot) lookup(idOrName string) (*tag.Definition, bool) {
	if d, ok := s.byID[idOrName]; ok {
		return d, true
	}
	d, ok := s.byName[tag.NormalizeName(idOrName)]
	return d, ok
}

// TagRegistry is safe for concurrent use. Create instances with New.
type TagRegistry struct {
	mu   sync.Mutex
	snap atomic.Value // *snapshot

	store     kv.Store
	notifier  notify.Notifier
	scheduler Scheduler
	metrics   *metric.CoreMetrics
	logger    *slog.Logger

	initMu   sync.Mutex
	initDone bool
	initErr  error
}

// Option configures a TagRegistry.
type Option func(*TagRegistry)

// WithStore persists definitions to the given key-value store and loads
// them from it on initialization. Without a store the registry is
// in-memory only.
func WithStore(store kv.Store) Option {
	return func(r *TagRegistry) { r.store = store }
}

// WithNotifier emits configuration-changed events after each successful
// write.
func WithNotifier(n notify.Notifier) Option {
	return func(r *TagRegistry) { r.notifier = n }
}

// WithScheduler defers notification delivery to the given scheduler
// instead of a fresh goroutine per event.
func WithScheduler(s Scheduler) Option {
	return func(r *TagRegistry) { r.scheduler = s }
}

// WithMetrics publishes catalog size and notification counts.
func WithMetrics(m *metric.CoreMetrics) Option {
	return func(r *TagRegistry) { r.metrics = m }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *TagRegistry) { r.logger = l }
}

// New creates an empty, uninitialized registry.
func New(opts ...Option) *TagRegistry {
	r := &TagRegistry{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init loads the catalog from the configured store. Concurrent callers
// share one load. A store failure is remembered and returned to every
// subsequent operation; a load aborted by the caller's own context is
// not, so a later caller with a live context retries it.
func (r *TagRegistry) Init(ctx context.Context) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	if !r.initDone {
		err := r.load(ctx)
		if errors.IsCanceled(err) {
			return errors.WrapCanceled(err, "TagRegistry", "Init", "loading catalog")
		}
		r.initDone = true
		r.initErr = err
	}
	if r.initErr != nil {
		return errors.WrapUnavailable(errors.ErrInitFailed, "TagRegistry", "Init", r.initErr.Error())
	}
	return nil
}

func (r *TagRegistry) load(ctx context.Context) error {
	if r.store == nil {
		r.swap(buildSnapshot(nil))
		return nil
	}

	keys, err := r.store.Keys(ctx)
	if err != nil {
		return errors.Wrap(err, "TagRegistry", "load", "listing stored tags")
	}

	defs := make([]*tag.Definition, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.IsNotFound(err) {
				// Deleted between Keys and Get.
				continue
			}
			return errors.Wrap(err, "TagRegistry", "load", "reading stored tag "+key)
		}
		var def tag.Definition
		if err := json.Unmarshal(data, &def); err != nil {
			return errors.WrapInvalid(err, "TagRegistry", "load", "decoding stored tag "+key)
		}
		defs = append(defs, &def)
	}

	r.swap(buildSnapshot(defs))
	r.logger.Info("tag registry initialized", "tags", len(defs))
	return nil
}

func (r *TagRegistry) swap(s *snapshot) {
	r.snap.Store(s)
	if r.metrics != nil {
		r.metrics.TagDefinitions.Set(float64(len(s.sorted)))
	}
}

func (r *TagRegistry) snapshot(ctx context.Context) (*snapshot, error) {
	if err := r.Init(ctx); err != nil {
		return nil, err
	}
	return r.snap.Load().(*snapshot), nil
}

// Get resolves a definition by ID or, failing that, by case-insensitive
// name. The returned definition is a copy the caller owns.
func (r *TagRegistry) Get(ctx context.Context, idOrName string) (*tag.Definition, error) {
	if err := errors.FromContext(ctx, "TagRegistry", "Get"); err != nil {
		return nil, err
	}
	snap, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	def, ok := snap.lookup(idOrName)
	if !ok {
		return nil, errors.WrapNotFound(errors.ErrTagNotFound, "TagRegistry", "Get", "resolving "+idOrName)
	}
	return def.Clone(), nil
}

// Find returns the requested page of definitions matching the filter,
// ordered by name then ID. Returned definitions are copies.
func (r *TagRegistry) Find(ctx context.Context, filter Filter) ([]*tag.Definition, error) {
	if err := errors.FromContext(ctx, "TagRegistry", "Find"); err != nil {
		return nil, err
	}
	snap, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	nameMatch, err := compileMatcher(filter.Name)
	if err != nil {
		return nil, errors.WrapInvalid(err, "TagRegistry", "Find", "compiling name filter")
	}
	desc := strings.ToLower(strings.TrimSpace(filter.Description))

	var matched []*tag.Definition
	for _, def := range snap.sorted {
		if !nameMatch(def.Name) {
			continue
		}
		if desc != "" && !strings.Contains(strings.ToLower(def.Description), desc) {
			continue
		}
		matched = append(matched, def)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*tag.Definition, 0, end-offset)
	for _, def := range matched[offset:end] {
		out = append(out, def.Clone())
	}
	return out, nil
}

// AddOrUpdate upserts a definition keyed by ID, assigning a fresh ID when
// the definition has none. The stored copy is returned.
func (r *TagRegistry) AddOrUpdate(ctx context.Context, def *tag.Definition) (*tag.Definition, error) {
	if def == nil || strings.TrimSpace(def.Name) == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidTagDefinition, "TagRegistry", "AddOrUpdate", "validating name")
	}
	if err := r.Init(ctx); err != nil {
		return nil, err
	}

	stored := def.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snap.Load().(*snapshot)
	_, exists := snap.byID[stored.ID]

	if r.store != nil {
		data, err := json.Marshal(stored)
		if err != nil {
			return nil, errors.WrapInvalid(err, "TagRegistry", "AddOrUpdate", "encoding definition")
		}
		if err := r.store.Put(ctx, stored.ID, data); err != nil {
			return nil, errors.Wrap(err, "TagRegistry", "AddOrUpdate", "persisting definition")
		}
	}

	defs := make([]*tag.Definition, 0, len(snap.sorted)+1)
	for _, d := range snap.sorted {
		if d.ID != stored.ID {
			defs = append(defs, d)
		}
	}
	defs = append(defs, stored)
	r.swap(buildSnapshot(defs))

	changeType := notify.TagCreated
	if exists {
		changeType = notify.TagUpdated
	}
	r.scheduleNotify(notify.ChangeEvent{
		Type:      changeType,
		TagID:     stored.ID,
		TagName:   stored.Name,
		Timestamp: time.Now().UTC(),
	})

	return stored.Clone(), nil
}

// Delete removes a definition by ID or name. It reports whether a
// definition was removed; deleting an absent tag is not an error.
func (r *TagRegistry) Delete(ctx context.Context, idOrName string) (bool, error) {
	if err := r.Init(ctx); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snap.Load().(*snapshot)
	def, ok := snap.lookup(idOrName)
	if !ok {
		return false, nil
	}

	if r.store != nil {
		if err := r.store.Delete(ctx, def.ID); err != nil {
			return false, errors.Wrap(err, "TagRegistry", "Delete", "removing stored definition")
		}
	}

	defs := make([]*tag.Definition, 0, len(snap.sorted)-1)
	for _, d := range snap.sorted {
		if d.ID != def.ID {
			defs = append(defs, d)
		}
	}
	r.swap(buildSnapshot(defs))

	r.scheduleNotify(notify.ChangeEvent{
		Type:      notify.TagDeleted,
		TagID:     def.ID,
		TagName:   def.Name,
		Timestamp: time.Now().UTC(),
	})

	return true, nil
}

// Len reports the number of definitions in the current snapshot. It does
// not trigger initialization.
func (r *TagRegistry) Len() int {
	snap, _ := r.snap.Load().(*snapshot)
	if snap == nil {
		return 0
	}
	return len(snap.sorted)
}

// scheduleNotify hands the event to the scheduler when one is configured,
// otherwise delivers on a fresh goroutine. Delivery failures are logged,
// never surfaced to the writer.
func (r *TagRegistry) scheduleNotify(event notify.ChangeEvent) {
	if r.notifier == nil {
		return
	}
	if r.metrics != nil {
		r.metrics.ChangeNotifications.Inc()
	}

	task := worker.Task(func(ctx context.Context) {
		if err := r.notifier.Notify(ctx, event); err != nil {
			r.logger.Warn("change notification failed",
				"type", string(event.Type),
				"tag", event.TagName,
				"error", err)
		}
	})

	if r.scheduler != nil {
		if err := r.scheduler.Submit(task); err != nil {
			r.logger.Warn("change notification not scheduled",
				"type", string(event.Type),
				"tag", event.TagName,
				"error", err)
		}
		return
	}
	go task(context.Background())
}

// compileMatcher turns a Find name filter into a predicate. Wildcard
// patterns compile to an anchored regexp; plain patterns match as
// substrings. The empty pattern matches everything.
func compileMatcher(pattern string) (func(string) bool, error) {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return func(string) bool { return true }, nil
	}
	if !strings.ContainsAny(p, "*?") {
		return func(name string) bool {
			return strings.Contains(strings.ToLower(name), p)
		}, nil
	}

	quoted := regexp.QuoteMeta(p)
	quoted = strings.ReplaceAll(quoted, `\*`, `.*`)
	quoted = strings.ReplaceAll(quoted, `\?`, `.`)
	re, err := regexp.Compile("^" + quoted + "$")
	if err != nil {
		return nil, err
	}
	return func(name string) bool {
		return re.MatchString(strings.ToLower(name))
	}, nil
}
