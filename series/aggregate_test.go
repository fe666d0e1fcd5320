package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/tag"
)

func numericSamples(sec []int, vals []float64) []tag.Value {
	out := make([]tag.Value, len(sec))
	for i := range sec {
		out[i] = tag.NewNumeric(at(sec[i]), vals[i], tag.Good)
	}
	return out
}

func TestAggregateAverageAndCount(t *testing.T) {
	table := NewFunctionTable()
	samples := numericSamples([]int{1, 2, 3}, []float64{2, 4, 6})

	avg, err := table.Aggregate(numericDef, "Average", samples, at(0), at(10), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, avg, 1)
	assert.Equal(t, 4.0, avg[0].NumericValue)
	assert.True(t, avg[0].Timestamp.Equal(at(0)), "result timestamp is the bucket start")
	assert.Equal(t, "n1", avg[0].TagID)

	cnt, err := table.Aggregate(numericDef, "count", samples, at(0), at(10), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, cnt, 1)
	assert.Equal(t, 3.0, cnt[0].NumericValue)
}

func TestAggregateCaseInsensitiveLookup(t *testing.T) {
	table := NewFunctionTable()
	samples := numericSamples([]int{1}, []float64{5})

	for _, name := range []string{"MINIMUM", "minimum", "MiNiMuM"} {
		out, err := table.Aggregate(numericDef, name, samples, at(0), at(10), 10*time.Second)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, 5.0, out[0].NumericValue)
	}
}

func TestAggregateUnsupportedFunction(t *testing.T) {
	table := NewFunctionTable()
	samples := numericSamples([]int{1}, []float64{5})

	_, err := table.Aggregate(numericDef, "Median", samples, at(0), at(10), 10*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedFunction)
	assert.True(t, errors.IsInvalid(err))
}

func TestAggregateValidation(t *testing.T) {
	table := NewFunctionTable()

	_, err := table.Aggregate(numericDef, "Average", nil, at(10), at(0), time.Second)
	assert.ErrorIs(t, err, errors.ErrInvalidTimeRange)

	_, err = table.Aggregate(numericDef, "Average", nil, at(0), at(10), 0)
	assert.ErrorIs(t, err, errors.ErrInvalidInterval)
}

func TestAggregateBucketsInTimeOrder(t *testing.T) {
	table := NewFunctionTable()
	samples := numericSamples([]int{1, 11, 21}, []float64{1, 2, 3})

	out, err := table.Aggregate(numericDef, "Maximum", samples, at(0), at(30), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, want := range []float64{1, 2, 3} {
		assert.Equal(t, want, out[i].NumericValue)
		assert.True(t, out[i].Timestamp.Equal(at(i*10)))
	}
}

func TestAggregateEmptyBuckets(t *testing.T) {
	table := NewFunctionTable()
	samples := numericSamples([]int{1}, []float64{5})

	// Average skips empty buckets, never fabricating values.
	out, err := table.Aggregate(numericDef, "Average", samples, at(0), at(30), 10*time.Second)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// Count reports zero for empty buckets: a true observation.
	out, err = table.Aggregate(numericDef, "Count", samples, at(0), at(30), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 1.0, out[0].NumericValue)
	assert.Equal(t, 0.0, out[1].NumericValue)
	assert.Equal(t, 0.0, out[2].NumericValue)
}

func TestAggregateStandardDeviation(t *testing.T) {
	table := NewFunctionTable()
	samples := numericSamples([]int{1, 2, 3, 4}, []float64{2, 4, 4, 6})

	out, err := table.Aggregate(numericDef, "StandardDeviation", samples, at(0), at(10), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	// Sample stddev of {2,4,4,6} = sqrt(8/3).
	assert.InDelta(t, math.Sqrt(8.0/3.0), out[0].NumericValue, 1e-9)

	// Fewer than two samples emit nothing.
	out, err = table.Aggregate(numericDef, "StandardDeviation", samples[:1], at(0), at(10), 10*time.Second)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAggregateSumAndRange(t *testing.T) {
	table := NewFunctionTable()
	samples := numericSamples([]int{1, 2, 3}, []float64{2, 9, 4})

	out, err := table.Aggregate(numericDef, "Sum", samples, at(0), at(10), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 15.0, out[0].NumericValue)

	out, err = table.Aggregate(numericDef, "Range", samples, at(0), at(10), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 7.0, out[0].NumericValue)
}

func TestAggregateInterpolatedAtBoundaries(t *testing.T) {
	table := NewFunctionTable()
	samples := numericSamples([]int{0, 20}, []float64{0, 20})

	out, err := table.Aggregate(numericDef, "Interpolated", samples, at(0), at(20), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0.0, out[0].NumericValue)
	// Boundary at t=10 sits between the knots; linear gives 10.
	assert.Equal(t, 10.0, out[1].NumericValue)
}

func TestAggregateBucketQuality(t *testing.T) {
	table := NewFunctionTable()
	samples := []tag.Value{
		tag.NewNumeric(at(1), 2, tag.Good),
		tag.NewNumeric(at(2), 4, tag.Uncertain),
	}

	out, err := table.Aggregate(numericDef, "Average", samples, at(0), at(10), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, tag.Uncertain, out[0].Quality)
}

func TestFunctionsDiscovery(t *testing.T) {
	table := NewFunctionTable()
	descriptors := table.Functions()

	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
		assert.NotEmpty(t, d.Description)
	}

	assert.Equal(t, []string{
		FuncAverage, FuncCount, FuncInterpolated, FuncMaximum,
		FuncMinimum, FuncRange, FuncStandardDeviation, FuncSum,
	}, names)
}

func TestRegisterCustomFunction(t *testing.T) {
	table := NewFunctionTable()
	table.Register("First", "First sample in each bucket", func(_ *tag.Definition, b Bucket) (tag.Value, bool) {
		if len(b.Samples) == 0 {
			return tag.Value{}, false
		}
		return b.Samples[0], true
	})

	samples := numericSamples([]int{1, 2}, []float64{7, 8})
	out, err := table.Aggregate(numericDef, "first", samples, at(0), at(10), 10*time.Second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 7.0, out[0].NumericValue)
}
