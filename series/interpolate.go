// Package series implements the pure numeric algorithms behind derived
// historical queries: interpolation, plot downsampling, and bucket
// aggregation over ordered raw-sample sequences.
package series

import (
	"time"

	"github.com/c360/tagkit/tag"
)

// InterpolationMode selects how a value is synthesized between samples.
type InterpolationMode int

const (
	// Linear interpolates proportionally between the bracketing samples.
	// Only meaningful for numeric tags.
	Linear InterpolationMode = iota
	// Step holds the previous value until the next sample.
	Step
)

// InterpolateAt synthesizes a value for def at time t from the ordered
// samples. Non-numeric tags always use Step regardless of mode. When t
// exactly matches a sample's timestamp, that sample is returned unchanged.
// When only one side of t has a sample, its value is repeated with quality
// downgraded to Uncertain. Returns false when samples is empty.
func InterpolateAt(def *tag.Definition, samples []tag.Value, t time.Time, mode InterpolationMode) (tag.Value, bool) {
	if len(samples) == 0 {
		return tag.Value{}, false
	}

	if def == nil || !def.DataType.IsNumeric() {
		mode = Step
	}

	before, after := bracket(samples, t)

	// Idempotence at knot points: an exact hit returns the source sample.
	if before != nil && before.Timestamp.Equal(t) {
		return *before, true
	}

	switch {
	case before != nil && after != nil:
		if mode == Step {
			v := *before
			v.Timestamp = t
			return v, true
		}
		return lerp(*before, *after, t), true

	case before != nil:
		v := *before
		v.Timestamp = t
		v.Quality = degrade(v.Quality)
		return v, true

	default: // only after exists
		v := *after
		v.Timestamp = t
		v.Quality = degrade(v.Quality)
		return v, true
	}
}

// bracket returns the nearest sample at-or-before t and the nearest sample
// at-or-after t. With duplicate timestamps the before side keeps the last
// arrival and the after side the first, preserving arrival-order semantics.
func bracket(samples []tag.Value, t time.Time) (before, after *tag.Value) {
	for i := range samples {
		s := &samples[i]
		if !s.Timestamp.After(t) {
			before = s
		} else {
			after = s
			break
		}
	}
	if before != nil && before.Timestamp.Equal(t) {
		return before, before
	}
	return before, after
}

// lerp linearly interpolates between two numeric samples. Quality is the
// worse of the two sources.
func lerp(a, b tag.Value, t time.Time) tag.Value {
	span := b.Timestamp.Sub(a.Timestamp)
	v := a.NumericValue
	if span > 0 {
		frac := float64(t.Sub(a.Timestamp)) / float64(span)
		v = a.NumericValue + (b.NumericValue-a.NumericValue)*frac
	}

	quality := a.Quality
	if b.Quality > quality {
		quality = b.Quality
	}

	return tag.Value{
		TagID:        a.TagID,
		TagName:      a.TagName,
		Timestamp:    t,
		NumericValue: v,
		Quality:      quality,
		Unit:         a.Unit,
	}
}

// degrade lowers Good to Uncertain; worse qualities pass through.
func degrade(q tag.Quality) tag.Quality {
	if q == tag.Good {
		return tag.Uncertain
	}
	return q
}
