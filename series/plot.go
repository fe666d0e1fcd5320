package series

import (
	"sort"
	"time"

	"github.com/c360/tagkit/tag"
)

// Plot downsamples samples for display by partitioning [start, end) into
// intervalCount equal-width buckets and emitting up to four representative
// samples per non-empty bucket: earliest, latest, minimum-value, and
// maximum-value, deduplicated and in chronological order. Output size is
// bounded by about four times the bucket count regardless of raw density.
// Minimum/maximum compare the numeric payload, so for text tags they
// collapse onto samples already selected by earliest/latest.
func Plot(samples []tag.Value, start, end time.Time, intervalCount int) []tag.Value {
	if len(samples) == 0 || intervalCount <= 0 || !start.Before(end) {
		return nil
	}

	width := end.Sub(start) / time.Duration(intervalCount)
	if width <= 0 {
		width = time.Nanosecond
	}

	var out []tag.Value
	idx := 0

	for b := 0; b < intervalCount; b++ {
		bucketStart := start.Add(time.Duration(b) * width)
		bucketEnd := bucketStart.Add(width)
		if b == intervalCount-1 {
			bucketEnd = end
		}

		// Samples are time-ordered; advance to the bucket's range.
		for idx < len(samples) && samples[idx].Timestamp.Before(bucketStart) {
			idx++
		}

		first, last, min, max := -1, -1, -1, -1
		for i := idx; i < len(samples) && samples[i].Timestamp.Before(bucketEnd); i++ {
			if first == -1 {
				first = i
			}
			last = i
			if min == -1 || samples[i].NumericValue < samples[min].NumericValue {
				min = i
			}
			if max == -1 || samples[i].NumericValue > samples[max].NumericValue {
				max = i
			}
		}
		if first == -1 {
			continue // empty bucket emits nothing
		}
		idx = last + 1

		picks := dedupIndexes(first, min, max, last)
		for _, i := range picks {
			out = append(out, samples[i])
		}
	}

	return out
}

// dedupIndexes returns the unique indexes in ascending (chronological) order.
func dedupIndexes(indexes ...int) []int {
	seen := make(map[int]struct{}, len(indexes))
	var unique []int
	for _, i := range indexes {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		unique = append(unique, i)
	}
	sort.Ints(unique)
	return unique
}
