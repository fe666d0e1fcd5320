package query

import (
	"context"
	"time"

	"github.com/c360/tagkit/tag"
)

// BoundaryPolicy controls how a raw read treats the edges of the
// requested range.
type BoundaryPolicy int

const (
	// Inside returns only samples inside [Start, End].
	Inside BoundaryPolicy = iota
	// Outside additionally returns the nearest sample on each side of
	// the range when one exists, so interpolation works at the edges.
	Outside
)

func (p BoundaryPolicy) String() string {
	switch p {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return "unknown"
	}
}

// RawRequest asks a provider for the ordered raw samples of one or more
// tags. MaxSamplesPerTag of zero means unbounded.
type RawRequest struct {
	TagIDs           []string
	Start            time.Time
	End              time.Time
	MaxSamplesPerTag int
	Boundary         BoundaryPolicy
}

// RawProvider is the pull-based source of historical raw samples the
// engine derives everything from. Implementations return samples per
// tag ID in increasing timestamp order; tags with no samples may be
// omitted from the result map.
type RawProvider interface {
	ReadRaw(ctx context.Context, req RawRequest) (map[string][]tag.Value, error)
}

// TagResolver resolves a tag ID or name to its definition.
// registry.TagRegistry satisfies it.
type TagResolver interface {
	Get(ctx context.Context, idOrName string) (*tag.Definition, error)
}
