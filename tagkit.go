package tagkit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/tagkit/adapter"
	"github.com/c360/tagkit/config"
	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/hub"
	"github.com/c360/tagkit/kv"
	"github.com/c360/tagkit/metric"
	"github.com/c360/tagkit/notify"
	"github.com/c360/tagkit/pkg/buffer"
	"github.com/c360/tagkit/pkg/worker"
	"github.com/c360/tagkit/query"
	"github.com/c360/tagkit/registry"
	"github.com/c360/tagkit/snapshot"
	"github.com/c360/tagkit/storage/timescale"
	"github.com/c360/tagkit/tag"
)

// stopTimeout bounds how long Close waits for background tasks.
const stopTimeout = 5 * time.Second

// Adapter is a fully wired adapter instance. Create it with New.
type Adapter struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.MetricsRegistry

	nc       *nats.Conn
	ownsConn bool

	registry  *registry.TagRegistry
	hub       *hub.Hub
	engine    *query.Engine
	caps      *adapter.Registry
	pool      *worker.Pool
	snapshots *snapshot.Store

	history     *timescale.Provider
	ownsHistory bool

	// injectedProvider is set by WithRawProvider and wins over the
	// configured history backend.
	injectedProvider query.RawProvider
}

// Option configures New.
type Option func(*Adapter)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithNATSConn uses an existing NATS connection instead of dialing one
// from config. The caller keeps ownership.
func WithNATSConn(nc *nats.Conn) Option {
	return func(a *Adapter) { a.nc = nc }
}

// WithRawProvider overrides the history backend for the query engine,
// for adapters whose raw samples live somewhere other than TimescaleDB.
func WithRawProvider(p query.RawProvider) Option {
	return func(a *Adapter) { a.injectedProvider = p }
}

// New wires a complete adapter from configuration: metrics, worker pool,
// tag registry with its persistence and change notifications, the
// subscription hub, and, when a history backend is configured, the
// derived query engine. The capability registry reflects exactly what
// got wired.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Adapter, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Adapter{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: metric.NewMetricsRegistry(),
		caps:    adapter.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("adapter", cfg.Adapter.ID)

	a.pool = worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize,
		worker.WithMetrics(a.metrics, "adapter"))
	if err := a.pool.Start(ctx); err != nil {
		return nil, err
	}

	store, notifier, err := a.buildStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.registry = registry.New(
		registry.WithStore(store),
		registry.WithNotifier(notifier),
		registry.WithScheduler(a.pool),
		registry.WithMetrics(a.metrics.Core),
		registry.WithLogger(a.logger),
	)
	if err := a.registry.Init(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.hub = hub.New(
		hub.WithDefaultQueueCapacity(cfg.Hub.QueueCapacity),
		hub.WithDefaultPolicy(overflowPolicy(cfg.Hub.OverflowPolicy)),
		hub.WithMetrics(a.metrics.Core),
		hub.WithLogger(a.logger),
	)
	a.snapshots = snapshot.New(cfg.Hub.SnapshotTTL)

	if err := a.buildEngine(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.registerCapabilities()
	a.logger.Info("adapter ready",
		"storage", cfg.Storage.Mode,
		"capabilities", len(a.caps.List()))
	return a, nil
}

// buildStorage creates the tag persistence store and change notifier for
// the configured mode, dialing NATS when needed.
func (a *Adapter) buildStorage(ctx context.Context) (kv.Store, notify.Notifier, error) {
	if a.cfg.Storage.Mode == config.StorageModeMemory {
		return kv.NewMemoryStore(), notify.Nop(), nil
	}

	if a.nc == nil {
		natsOpts := []nats.Option{
			nats.Name("tagkit-" + a.cfg.Adapter.ID),
			nats.MaxReconnects(a.cfg.NATS.MaxReconnects),
			nats.ReconnectWait(a.cfg.NATS.ReconnectWait),
		}
		if a.cfg.NATS.Username != "" {
			natsOpts = append(natsOpts, nats.UserInfo(a.cfg.NATS.Username, a.cfg.NATS.Password))
		}
		if a.cfg.NATS.Token != "" {
			natsOpts = append(natsOpts, nats.Token(a.cfg.NATS.Token))
		}
		nc, err := nats.Connect(strings.Join(a.cfg.NATS.URLs, ","), natsOpts...)
		if err != nil {
			return nil, nil, errors.WrapUnavailable(err, "Adapter", "New", "connecting to NATS")
		}
		a.nc = nc
		a.ownsConn = true
	}

	store, err := kv.NewNATSStore(ctx, a.nc, kv.DefaultNATSOptions(a.cfg.Bucket()))
	if err != nil {
		return nil, nil, err
	}

	notifier, err := notify.NewNATSNotifier(a.nc, "tagkit."+a.cfg.Adapter.ID+".tags.changed")
	if err != nil {
		return nil, nil, err
	}
	return store, notifier, nil
}

// buildEngine attaches the query engine when a raw-sample source exists:
// either one injected with WithRawProvider or the configured TimescaleDB
// backend. Without a source the adapter simply does not advertise the
// derived read capabilities.
func (a *Adapter) buildEngine(ctx context.Context) error {
	provider := a.injectedProvider
	if provider == nil && a.cfg.History.ConnString != "" {
		history, err := timescale.Open(ctx, a.cfg.History.ConnString,
			timescale.WithTable(a.cfg.History.Table))
		if err != nil {
			return err
		}
		a.history = history
		a.ownsHistory = true
		provider = history
	}
	if provider == nil {
		return nil
	}

	maxSamples := a.cfg.Query.MaxSamplesPerTag
	if maxSamples == 0 {
		maxSamples = a.cfg.History.MaxSamplesPerTag
	}
	burst := a.cfg.Query.RateBurst
	if burst == 0 {
		burst = 1
	}
	a.engine = query.NewEngine(a.registry, provider,
		query.WithMaxSamplesPerTag(maxSamples),
		query.WithRateLimit(a.cfg.Query.RateLimit, burst),
		query.WithMetrics(a.metrics.Core),
		query.WithLogger(a.logger),
	)
	return nil
}

// registerCapabilities advertises what actually got wired.
func (a *Adapter) registerCapabilities() {
	_ = a.caps.Register(adapter.CapTagSearch, a.registry)
	_ = a.caps.Register(adapter.CapTagConfiguration, a.registry)
	_ = a.caps.Register(adapter.CapSnapshotPush, a.hub)
	if a.engine != nil {
		_ = a.caps.Register(adapter.CapReadInterpolated, a.engine)
		_ = a.caps.Register(adapter.CapReadPlot, a.engine)
		_ = a.caps.Register(adapter.CapReadProcessed, a.engine)
		_ = a.caps.Register(adapter.CapReadAtTimes, a.engine)
	}
}

// Publish records the value as the tag's current snapshot and fans it
// out to subscribers. Adapters push live values through here rather
// than through the hub directly so the snapshot store stays current.
func (a *Adapter) Publish(name string, value tag.Value) int {
	a.snapshots.Update(name, value)
	return a.hub.Publish(name, value)
}

// Snapshot returns the last-known value of the named tag.
func (a *Adapter) Snapshot(name string) (tag.Value, bool) {
	return a.snapshots.Get(name)
}

// Registry is the adapter's tag definition catalog.
func (a *Adapter) Registry() *registry.TagRegistry { return a.registry }

// Hub is the adapter's real-time subscription hub.
func (a *Adapter) Hub() *hub.Hub { return a.hub }

// Engine is the derived query engine, nil when no raw-sample source is
// configured.
func (a *Adapter) Engine() *query.Engine { return a.engine }

// Capabilities is the adapter's capability registry.
func (a *Adapter) Capabilities() *adapter.Registry { return a.caps }

// Scheduler runs background tasks on the adapter's worker pool.
func (a *Adapter) Scheduler() adapter.TaskScheduler { return a.pool }

// MetricsHandler serves the adapter's Prometheus metrics.
func (a *Adapter) MetricsHandler() http.Handler { return a.metrics.Handler() }

// Close releases the hub, worker pool and any connections the adapter
// opened itself. It is safe to call after a failed New.
func (a *Adapter) Close() error {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.snapshots != nil {
		a.snapshots.Close()
	}

	var firstErr error
	if a.pool != nil {
		if err := a.pool.Stop(stopTimeout); err != nil &&
			!errors.Is(err, worker.ErrPoolNotStarted) && !errors.Is(err, worker.ErrPoolStopped) {
			firstErr = err
		}
	}
	if a.ownsHistory && a.history != nil {
		if err := a.history.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.ownsConn && a.nc != nil {
		a.nc.Close()
	}
	return firstErr
}

// overflowPolicy maps config strings onto buffer policies; unknown or
// empty strings fall back to DropOldest.
func overflowPolicy(s string) buffer.OverflowPolicy {
	switch s {
	case "drop_newest":
		return buffer.DropNewest
	case "block":
		return buffer.Block
	default:
		return buffer.DropOldest
	}
}
