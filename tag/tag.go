// Package tag defines the TagKit data model: tag definitions, tag values,
// and the series type shared by the query engine and the subscription hub.
package tag

import (
	"strings"
	"time"
)

// DataType describes the payload type of a tag.
type DataType int

const (
	// Numeric tags carry float64 payloads and support interpolation.
	Numeric DataType = iota
	// Text tags carry string payloads; derived queries hold the previous
	// value instead of interpolating.
	Text
	// StateSet tags carry named discrete states; treated like Text for
	// interpolation purposes.
	StateSet
)

// String returns the string representation of the data type.
func (dt DataType) String() string {
	switch dt {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	case StateSet:
		return "state-set"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether values of this type can be interpolated.
func (dt DataType) IsNumeric() bool {
	return dt == Numeric
}

// Quality describes the trustworthiness of a value.
type Quality int

const (
	// Good values come straight from the source.
	Good Quality = iota
	// Uncertain values were synthesized under degraded conditions, for
	// example extrapolation past the last raw sample.
	Uncertain
	// Bad values should not be used for calculations.
	Bad
)

// String returns the string representation of the quality.
func (q Quality) String() string {
	switch q {
	case Good:
		return "good"
	case Uncertain:
		return "uncertain"
	case Bad:
		return "bad"
	default:
		return "unknown"
	}
}

// Property is a named, typed attribute attached to a definition or value.
type Property struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// Definition describes a tag: a named, typed time-series data point source.
//
// ID is opaque and immutable once assigned. Name comparisons are
// case-insensitive everywhere in the SDK; a name is not required to be
// unique across IDs, but lookups resolve deterministically.
type Definition struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Unit        string     `json:"unit,omitempty"`
	DataType    DataType   `json:"data_type"`
	Properties  []Property `json:"properties,omitempty"`
}

// MatchesName reports whether the definition's name equals the given name,
// ignoring case.
func (d *Definition) MatchesName(name string) bool {
	return strings.EqualFold(d.Name, name)
}

// Clone returns a deep copy so registry snapshots can be handed to callers
// without aliasing registry-owned state.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Properties != nil {
		cp.Properties = make([]Property, len(d.Properties))
		copy(cp.Properties, d.Properties)
	}
	return &cp
}

// Value is a single tag value: a UTC timestamp, a numeric or text payload
// (exclusive by the tag's data type), and a quality.
type Value struct {
	TagID        string         `json:"tag_id,omitempty"`
	TagName      string         `json:"tag_name,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	NumericValue float64        `json:"numeric_value,omitempty"`
	TextValue    string         `json:"text_value,omitempty"`
	Quality      Quality        `json:"quality"`
	Unit         string         `json:"unit,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// NewNumeric builds a numeric value at the given UTC instant.
func NewNumeric(ts time.Time, v float64, q Quality) Value {
	return Value{Timestamp: ts.UTC(), NumericValue: v, Quality: q}
}

// NewText builds a text value at the given UTC instant.
func NewText(ts time.Time, v string, q Quality) Value {
	return Value{Timestamp: ts.UTC(), TextValue: v, Quality: q}
}

// Series is an ordered sequence of values for one tag. Ordering is by
// timestamp; duplicate timestamps are permitted and preserved in arrival
// order.
type Series struct {
	TagID   string  `json:"tag_id"`
	TagName string  `json:"tag_name"`
	Values  []Value `json:"values"`
}

// NormalizeName lowercases a tag name for case-insensitive set and index
// membership. All hub and registry indexes key on the normalized form.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
