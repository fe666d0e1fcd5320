package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tagkit/tag"
)

func TestPlotSingleBucketRepresentatives(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	samples := make([]tag.Value, len(values))
	for i, v := range values {
		samples[i] = tag.NewNumeric(at(i), v, tag.Good)
	}

	out := Plot(samples, at(0), at(8), 1)
	require.NotEmpty(t, out)
	assert.LessOrEqual(t, len(out), 4)

	got := make([]float64, len(out))
	for i, v := range out {
		got[i] = v.NumericValue
	}

	// Earliest(3), minimum(first 1), maximum(9), latest(6), chronological.
	assert.Equal(t, []float64{3, 1, 9, 6}, got)
}

func TestPlotDeduplicatesCoincidingRepresentatives(t *testing.T) {
	// A single sample is simultaneously earliest, latest, min, and max.
	samples := []tag.Value{tag.NewNumeric(at(1), 42, tag.Good)}

	out := Plot(samples, at(0), at(10), 1)
	require.Len(t, out, 1)
	assert.Equal(t, 42.0, out[0].NumericValue)
}

func TestPlotEmptyBucketsEmitNothing(t *testing.T) {
	samples := []tag.Value{
		tag.NewNumeric(at(1), 1, tag.Good),
		tag.NewNumeric(at(9), 2, tag.Good),
	}

	// Buckets [0,2) [2,4) [4,6) [6,8) [8,10): middle three are empty.
	out := Plot(samples, at(0), at(10), 5)
	require.Len(t, out, 2)
	assert.Equal(t, 1.0, out[0].NumericValue)
	assert.Equal(t, 2.0, out[1].NumericValue)
}

func TestPlotOutputIsChronological(t *testing.T) {
	var samples []tag.Value
	for i := 0; i < 100; i++ {
		samples = append(samples, tag.NewNumeric(at(i), float64((i*37)%100), tag.Good))
	}

	out := Plot(samples, at(0), at(100), 10)
	assert.LessOrEqual(t, len(out), 40)
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.Before(out[i-1].Timestamp) {
			t.Fatalf("output not chronological at %d", i)
		}
	}
}

func TestPlotDegenerateInputs(t *testing.T) {
	samples := []tag.Value{tag.NewNumeric(at(1), 1, tag.Good)}

	assert.Nil(t, Plot(nil, at(0), at(10), 5))
	assert.Nil(t, Plot(samples, at(0), at(10), 0))
	assert.Nil(t, Plot(samples, at(10), at(0), 5))
	assert.Nil(t, Plot(samples, at(10), at(10), 5))
}

func TestPlotSamplesOutsideRangeIgnored(t *testing.T) {
	samples := []tag.Value{
		tag.NewNumeric(at(0).Add(-time.Second), 99, tag.Good),
		tag.NewNumeric(at(5), 1, tag.Good),
		tag.NewNumeric(at(20), 99, tag.Good),
	}

	out := Plot(samples, at(0), at(10), 2)
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].NumericValue)
}
