package series

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/tag"
)

// Bucket is a time interval [Start, End) holding the ordered raw samples
// that fall inside it. Series carries the full query window so boundary
// functions can reach the neighbors of an empty or sparse bucket. Buckets
// are intermediate aggregation structures, never persisted.
type Bucket struct {
	Start   time.Time
	End     time.Time
	Samples []tag.Value
	Series  []tag.Value
}

// Func computes at most one output value for a bucket. Returning false
// emits nothing for that bucket; results are never fabricated for buckets
// a function cannot evaluate.
type Func func(def *tag.Definition, b Bucket) (tag.Value, bool)

// Descriptor describes a registered aggregation for discovery.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Built-in aggregation function names.
const (
	FuncAverage           = "Average"
	FuncMinimum           = "Minimum"
	FuncMaximum           = "Maximum"
	FuncCount             = "Count"
	FuncStandardDeviation = "StandardDeviation"
	FuncInterpolated      = "Interpolated"
	FuncSum               = "Sum"
	FuncRange             = "Range"
)

type registration struct {
	descriptor Descriptor
	fn         Func
}

// FunctionTable maps case-insensitive aggregation names to implementations.
// The zero value is unusable; create tables with NewFunctionTable.
type FunctionTable struct {
	mu    sync.RWMutex
	funcs map[string]registration
}

// NewFunctionTable creates a table pre-populated with the built-in
// aggregation functions.
func NewFunctionTable() *FunctionTable {
	t := &FunctionTable{funcs: make(map[string]registration)}

	builtins := []struct {
		name, description string
		fn                Func
	}{
		{FuncAverage, "Arithmetic mean of the numeric samples in each bucket", average},
		{FuncMinimum, "Smallest numeric sample in each bucket", minimum},
		{FuncMaximum, "Largest numeric sample in each bucket", maximum},
		{FuncCount, "Number of samples in each bucket", count},
		{FuncStandardDeviation, "Sample standard deviation of the numeric samples in each bucket", stddev},
		{FuncInterpolated, "Value interpolated at each bucket boundary", interpolated},
		{FuncSum, "Sum of the numeric samples in each bucket", sum},
		{FuncRange, "Difference between the largest and smallest sample in each bucket", valueRange},
	}
	for _, b := range builtins {
		t.Register(b.name, b.description, b.fn)
	}
	return t
}

// Register adds or replaces a named aggregation function.
func (t *FunctionTable) Register(name, description string, fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[strings.ToLower(name)] = registration{
		descriptor: Descriptor{Name: name, Description: description},
		fn:         fn,
	}
}

// Lookup resolves a function by case-insensitive name.
func (t *FunctionTable) Lookup(name string) (Func, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	reg, ok := t.funcs[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return reg.fn, true
}

// Functions lists all registered aggregations sorted by name. This is the
// discovery operation hosts expose to callers.
func (t *FunctionTable) Functions() []Descriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Descriptor, 0, len(t.funcs))
	for _, reg := range t.funcs {
		out = append(out, reg.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Aggregate partitions [start, end) into fixed-width buckets of size
// interval and applies the named function to each. Result timestamps are
// bucket starts; output is in increasing time order.
func (t *FunctionTable) Aggregate(def *tag.Definition, functionName string, samples []tag.Value, start, end time.Time, interval time.Duration) ([]tag.Value, error) {
	if !start.Before(end) {
		return nil, errors.WrapInvalid(errors.ErrInvalidTimeRange, "FunctionTable", "Aggregate", "time range validation")
	}
	if interval <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidInterval, "FunctionTable", "Aggregate", "interval validation")
	}

	fn, ok := t.Lookup(functionName)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnsupportedFunction, functionName),
			"FunctionTable", "Aggregate", "function lookup")
	}

	var out []tag.Value
	idx := 0

	for bucketStart := start; bucketStart.Before(end); bucketStart = bucketStart.Add(interval) {
		bucketEnd := bucketStart.Add(interval)
		if bucketEnd.After(end) {
			bucketEnd = end
		}

		for idx < len(samples) && samples[idx].Timestamp.Before(bucketStart) {
			idx++
		}
		lo := idx
		hi := lo
		for hi < len(samples) && samples[hi].Timestamp.Before(bucketEnd) {
			hi++
		}
		idx = hi

		bucket := Bucket{Start: bucketStart, End: bucketEnd, Samples: samples[lo:hi], Series: samples}
		v, ok := fn(def, bucket)
		if !ok {
			continue
		}
		v.Timestamp = bucket.Start
		if def != nil {
			v.TagID = def.ID
			v.TagName = def.Name
		}
		out = append(out, v)
	}

	return out, nil
}

// bucketQuality is Good only when every sample in the bucket is Good.
func bucketQuality(samples []tag.Value) tag.Quality {
	q := tag.Good
	for _, s := range samples {
		if s.Quality > q {
			q = s.Quality
		}
	}
	return q
}

func average(_ *tag.Definition, b Bucket) (tag.Value, bool) {
	if len(b.Samples) == 0 {
		return tag.Value{}, false
	}
	total := 0.0
	for _, s := range b.Samples {
		total += s.NumericValue
	}
	return tag.Value{NumericValue: total / float64(len(b.Samples)), Quality: bucketQuality(b.Samples)}, true
}

func minimum(_ *tag.Definition, b Bucket) (tag.Value, bool) {
	if len(b.Samples) == 0 {
		return tag.Value{}, false
	}
	min := b.Samples[0].NumericValue
	for _, s := range b.Samples[1:] {
		if s.NumericValue < min {
			min = s.NumericValue
		}
	}
	return tag.Value{NumericValue: min, Quality: bucketQuality(b.Samples)}, true
}

func maximum(_ *tag.Definition, b Bucket) (tag.Value, bool) {
	if len(b.Samples) == 0 {
		return tag.Value{}, false
	}
	max := b.Samples[0].NumericValue
	for _, s := range b.Samples[1:] {
		if s.NumericValue > max {
			max = s.NumericValue
		}
	}
	return tag.Value{NumericValue: max, Quality: bucketQuality(b.Samples)}, true
}

// count reports bucket population, including zero for empty buckets: a
// count of zero is a true observation, not a fabricated value.
func count(_ *tag.Definition, b Bucket) (tag.Value, bool) {
	return tag.Value{NumericValue: float64(len(b.Samples)), Quality: tag.Good}, true
}

func sum(_ *tag.Definition, b Bucket) (tag.Value, bool) {
	if len(b.Samples) == 0 {
		return tag.Value{}, false
	}
	total := 0.0
	for _, s := range b.Samples {
		total += s.NumericValue
	}
	return tag.Value{NumericValue: total, Quality: bucketQuality(b.Samples)}, true
}

func valueRange(_ *tag.Definition, b Bucket) (tag.Value, bool) {
	lo, okLo := minimum(nil, b)
	hi, okHi := maximum(nil, b)
	if !okLo || !okHi {
		return tag.Value{}, false
	}
	return tag.Value{NumericValue: hi.NumericValue - lo.NumericValue, Quality: bucketQuality(b.Samples)}, true
}

// stddev is the sample standard deviation (n-1 denominator); buckets with
// fewer than two samples emit nothing.
func stddev(_ *tag.Definition, b Bucket) (tag.Value, bool) {
	n := len(b.Samples)
	if n < 2 {
		return tag.Value{}, false
	}
	mean := 0.0
	for _, s := range b.Samples {
		mean += s.NumericValue
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, s := range b.Samples {
		d := s.NumericValue - mean
		sumSq += d * d
	}
	return tag.Value{NumericValue: math.Sqrt(sumSq / float64(n-1)), Quality: bucketQuality(b.Samples)}, true
}

// interpolated synthesizes the value at the bucket's start boundary from
// the full series, so neighbors outside a sparse bucket still bracket it.
func interpolated(def *tag.Definition, b Bucket) (tag.Value, bool) {
	return InterpolateAt(def, b.Series, b.Start, Linear)
}
