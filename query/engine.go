// Package query derives interpolated, plot-friendly, aggregated and
// at-instant values from a raw-sample provider. It exists as a fallback
// for adapters whose backing system only supports raw reads: hosts see
// the same four read operations whether the adapter implements them
// natively or through this engine.
//
// Every operation follows the same three steps: resolve the requested
// tag names through the registry, dropping names that do not resolve;
// fetch raw samples over a window expanded for the query type with the
// outside boundary policy; and run the matching series algorithm per
// tag, preserving the caller's tag order.
package query

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/tagkit/adapter"
	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/metric"
	"github.com/c360/tagkit/series"
	"github.com/c360/tagkit/tag"
)

// atTimesPadding is the slack fetched around the earliest and latest
// requested instants so edge instants can still be bracketed.
const atTimesPadding = time.Second

// Engine is safe for concurrent use. Create instances with NewEngine.
type Engine struct {
	resolver   TagResolver
	provider   RawProvider
	functions  *series.FunctionTable
	maxSamples int
	limiter    *rate.Limiter
	metrics    *metric.CoreMetrics
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFunctionTable replaces the default aggregation function table,
// letting adapters expose custom processed-data functions.
func WithFunctionTable(t *series.FunctionTable) EngineOption {
	return func(e *Engine) { e.functions = t }
}

// WithMaxSamplesPerTag caps how many raw samples each query fetches per
// tag. Zero means unbounded.
func WithMaxSamplesPerTag(n int) EngineOption {
	return func(e *Engine) { e.maxSamples = n }
}

// WithRateLimit throttles provider reads to rps queries per second with
// the given burst, protecting a slow backing store from query storms.
// Zero rps leaves reads unthrottled.
func WithRateLimit(rps float64, burst int) EngineOption {
	return func(e *Engine) {
		if rps > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithMetrics publishes query counts and latencies.
func WithMetrics(m *metric.CoreMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine reading raw samples from provider and
// resolving tag names through resolver.
func NewEngine(resolver TagResolver, provider RawProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver:  resolver,
		provider:  provider,
		functions: series.NewFunctionTable(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Functions lists the aggregation functions ReadProcessed accepts.
func (e *Engine) Functions() []series.Descriptor {
	return e.functions.Functions()
}

// InterpolatedRequest asks for one value per interval boundary in
// [Start, End], inclusive of both ends.
type InterpolatedRequest struct {
	Tags     []string
	Start    time.Time
	End      time.Time
	Interval time.Duration
	Mode     series.InterpolationMode
}

// PlotRequest asks for chart-ready downsampled values over [Start, End)
// split into IntervalCount buckets.
type PlotRequest struct {
	Tags          []string
	Start         time.Time
	End           time.Time
	IntervalCount int
}

// ProcessedRequest asks for bucket aggregates over [Start, End), one
// result series per tag and function pair.
type ProcessedRequest struct {
	Tags      []string
	Functions []string
	Start     time.Time
	End       time.Time
	Interval  time.Duration
}

// AtTimesRequest asks for one interpolated-or-held value per requested
// instant. Repeated instants are deduplicated.
type AtTimesRequest struct {
	Tags     []string
	Instants []time.Time
}

// ProcessedSeries is one tag's values under one aggregation function.
type ProcessedSeries struct {
	tag.Series
	Function string
}

// ReadInterpolated emits one value per interval boundary in
// [Start, End] for each resolvable tag.
func (e *Engine) ReadInterpolated(ctx context.Context, caller adapter.Caller, req InterpolatedRequest) ([]tag.Series, error) {
	done := e.observe("interpolated")

	if err := validateRange(req.Tags, req.Start, req.End, "ReadInterpolated"); err != nil {
		return nil, done(err)
	}
	if req.Interval <= 0 {
		return nil, done(errors.WrapInvalid(errors.ErrInvalidInterval, "Engine", "ReadInterpolated", "validating interval"))
	}

	defs, raw, err := e.fetch(ctx, caller, req.Tags, req.Start.Add(-req.Interval), req.End)
	if err != nil {
		return nil, done(err)
	}

	out := make([]tag.Series, 0, len(defs))
	for _, def := range defs {
		samples := raw[def.ID]
		s := tag.Series{TagID: def.ID, TagName: def.Name}
		for t := req.Start; !t.After(req.End); t = t.Add(req.Interval) {
			v, ok := series.InterpolateAt(def, samples, t, req.Mode)
			if !ok {
				continue
			}
			s.Values = append(s.Values, stamp(v, def))
		}
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out, done(nil)
}

// ReadPlot emits up to four representative values per bucket for each
// resolvable tag, suited to rendering at IntervalCount horizontal
// pixels.
func (e *Engine) ReadPlot(ctx context.Context, caller adapter.Caller, req PlotRequest) ([]tag.Series, error) {
	done := e.observe("plot")

	if err := validateRange(req.Tags, req.Start, req.End, "ReadPlot"); err != nil {
		return nil, done(err)
	}
	if req.IntervalCount <= 0 {
		return nil, done(errors.WrapInvalid(errors.ErrInvalidIntervalCount, "Engine", "ReadPlot", "validating interval count"))
	}

	bucketWidth := req.End.Sub(req.Start) / time.Duration(req.IntervalCount)
	defs, raw, err := e.fetch(ctx, caller, req.Tags, req.Start.Add(-bucketWidth), req.End)
	if err != nil {
		return nil, done(err)
	}

	out := make([]tag.Series, 0, len(defs))
	for _, def := range defs {
		s := tag.Series{TagID: def.ID, TagName: def.Name}
		for _, v := range series.Plot(raw[def.ID], req.Start, req.End, req.IntervalCount) {
			s.Values = append(s.Values, stamp(v, def))
		}
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out, done(nil)
}

// ReadProcessed emits one aggregated series per tag and function pair,
// in the caller's tag order with functions in request order within each
// tag.
func (e *Engine) ReadProcessed(ctx context.Context, caller adapter.Caller, req ProcessedRequest) ([]ProcessedSeries, error) {
	done := e.observe("processed")

	if err := validateRange(req.Tags, req.Start, req.End, "ReadProcessed"); err != nil {
		return nil, done(err)
	}
	if req.Interval <= 0 {
		return nil, done(errors.WrapInvalid(errors.ErrInvalidInterval, "Engine", "ReadProcessed", "validating interval"))
	}
	if len(req.Functions) == 0 {
		return nil, done(errors.WrapInvalid(errors.ErrUnsupportedFunction, "Engine", "ReadProcessed", "validating functions"))
	}
	// Reject unknown functions before touching the provider.
	for _, fn := range req.Functions {
		if _, ok := e.functions.Lookup(fn); !ok {
			return nil, done(errors.WrapInvalid(
				errors.ErrUnsupportedFunction, "Engine", "ReadProcessed", "validating function "+fn))
		}
	}

	defs, raw, err := e.fetch(ctx, caller, req.Tags, req.Start.Add(-req.Interval), req.End)
	if err != nil {
		return nil, done(err)
	}

	out := make([]ProcessedSeries, 0, len(defs)*len(req.Functions))
	for _, def := range defs {
		for _, fn := range req.Functions {
			values, err := e.functions.Aggregate(def, fn, raw[def.ID], req.Start, req.End, req.Interval)
			if err != nil {
				return nil, done(err)
			}
			if len(values) == 0 {
				continue
			}
			out = append(out, ProcessedSeries{
				Series:   tag.Series{TagID: def.ID, TagName: def.Name, Values: values},
				Function: fn,
			})
		}
	}
	return out, done(nil)
}

// ReadAtTimes emits one interpolated-or-held value per requested
// instant for each resolvable tag. Instants are deduplicated and
// processed in increasing time order.
func (e *Engine) ReadAtTimes(ctx context.Context, caller adapter.Caller, req AtTimesRequest) ([]tag.Series, error) {
	done := e.observe("at_times")

	if len(req.Tags) == 0 {
		return nil, done(errors.WrapInvalid(errors.ErrEmptyTagList, "Engine", "ReadAtTimes", "validating tags"))
	}
	if len(req.Instants) == 0 {
		return nil, done(errors.WrapInvalid(errors.ErrEmptyTimestampList, "Engine", "ReadAtTimes", "validating instants"))
	}

	instants := dedupInstants(req.Instants)
	defs, raw, err := e.fetchSpans(ctx, caller, req.Tags, atTimesSpans(instants))
	if err != nil {
		return nil, done(err)
	}

	out := make([]tag.Series, 0, len(defs))
	for _, def := range defs {
		samples := raw[def.ID]
		s := tag.Series{TagID: def.ID, TagName: def.Name}
		for _, t := range instants {
			v, ok := series.InterpolateAt(def, samples, t, series.Linear)
			if !ok {
				continue
			}
			s.Values = append(s.Values, stamp(v, def))
		}
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out, done(nil)
}

// fetch resolves tag names in caller order and reads their raw samples
// over [start, end] with the outside boundary policy. Names that do not
// resolve are dropped silently.
func (e *Engine) fetch(ctx context.Context, caller adapter.Caller, names []string, start, end time.Time) ([]*tag.Definition, map[string][]tag.Value, error) {
	return e.fetchSpans(ctx, caller, names, []span{{start, end}})
}

// fetchSpans is fetch over several disjoint windows in increasing time
// order, issuing one provider read per window. Per-tag sample slices stay
// in timestamp order because the windows are.
func (e *Engine) fetchSpans(ctx context.Context, caller adapter.Caller, names []string, spans []span) ([]*tag.Definition, map[string][]tag.Value, error) {
	if err := errors.FromContext(ctx, "Engine", "fetch"); err != nil {
		return nil, nil, err
	}

	defs, err := e.resolve(ctx, caller, names)
	if err != nil {
		return nil, nil, err
	}
	if len(defs) == 0 {
		return nil, map[string][]tag.Value{}, nil
	}

	ids := make([]string, len(defs))
	for i, def := range defs {
		ids[i] = def.ID
	}

	raw := make(map[string][]tag.Value, len(ids))
	for _, sp := range spans {
		part, err := e.read(ctx, ids, sp)
		if err != nil {
			return nil, nil, err
		}
		for id, samples := range part {
			raw[id] = append(raw[id], samples...)
		}
	}
	if len(spans) > 1 {
		// Adjacent windows can each pull the same boundary row.
		for id := range raw {
			raw[id] = normalizeSamples(raw[id])
		}
	}
	return defs, raw, nil
}

// normalizeSamples restores timestamp order across window reads and drops
// rows fetched twice by neighboring windows' boundary arms.
func normalizeSamples(samples []tag.Value) []tag.Value {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	out := samples[:0]
	for _, v := range samples {
		if n := len(out); n > 0 && sameSample(out[n-1], v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func sameSample(a, b tag.Value) bool {
	return a.Timestamp.Equal(b.Timestamp) &&
		a.NumericValue == b.NumericValue &&
		a.TextValue == b.TextValue &&
		a.Quality == b.Quality
}

// resolve maps names to definitions in caller order, deduplicating by ID
// and dropping names that do not resolve.
func (e *Engine) resolve(ctx context.Context, caller adapter.Caller, names []string) ([]*tag.Definition, error) {
	defs := make([]*tag.Definition, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		def, err := e.resolver.Get(ctx, name)
		if err != nil {
			if errors.IsNotFound(err) {
				e.logger.Debug("dropping unresolvable tag", "tag", name, "caller", caller.ID)
				continue
			}
			return nil, err
		}
		if _, ok := seen[def.ID]; ok {
			continue
		}
		seen[def.ID] = struct{}{}
		defs = append(defs, def)
	}
	return defs, nil
}

// read issues one provider read, honoring the configured rate limit.
func (e *Engine) read(ctx context.Context, ids []string, sp span) (map[string][]tag.Value, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, errors.WrapCanceled(err, "Engine", "fetch", "waiting for a query slot")
		}
	}

	raw, err := e.provider.ReadRaw(ctx, RawRequest{
		TagIDs:           ids,
		Start:            sp.start,
		End:              sp.end,
		MaxSamplesPerTag: e.maxSamples,
		Boundary:         Outside,
	})
	if err != nil {
		if ctxErr := errors.FromContext(ctx, "Engine", "fetch"); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(err, "Engine", "fetch", "reading raw samples")
	}
	return raw, nil
}

// span is one closed fetch window.
type span struct {
	start, end time.Time
}

// atTimesSpans pads each instant by atTimesPadding on both sides and
// merges windows that touch, so distant instants do not drag the whole
// gap between them into one read. Instants must be sorted ascending.
func atTimesSpans(instants []time.Time) []span {
	spans := make([]span, 0, len(instants))
	for _, t := range instants {
		sp := span{t.Add(-atTimesPadding), t.Add(atTimesPadding)}
		if n := len(spans); n > 0 && !sp.start.After(spans[n-1].end) {
			spans[n-1].end = sp.end
			continue
		}
		spans = append(spans, sp)
	}
	return spans
}

// observe returns a completion callback that records the query's outcome
// and latency, passing the error through for one-line returns.
func (e *Engine) observe(kind string) func(error) error {
	start := time.Now()
	return func(err error) error {
		if e.metrics == nil {
			return err
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.QueriesTotal.WithLabelValues(kind, status).Inc()
		e.metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		return err
	}
}

func validateRange(tags []string, start, end time.Time, method string) error {
	if len(tags) == 0 {
		return errors.WrapInvalid(errors.ErrEmptyTagList, "Engine", method, "validating tags")
	}
	if !start.Before(end) {
		return errors.WrapInvalid(errors.ErrInvalidTimeRange, "Engine", method, "validating time range")
	}
	return nil
}

func stamp(v tag.Value, def *tag.Definition) tag.Value {
	v.TagID = def.ID
	v.TagName = def.Name
	if v.Unit == "" {
		v.Unit = def.Unit
	}
	return v
}

func dedupInstants(instants []time.Time) []time.Time {
	out := make([]time.Time, len(instants))
	copy(out, instants)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	dedup := out[:0]
	for _, t := range out {
		if len(dedup) == 0 || !t.Equal(dedup[len(dedup)-1]) {
			dedup = append(dedup, t)
		}
	}
	return dedup
}
