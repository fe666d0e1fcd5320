// Package adapter defines the capability model shared by every adapter:
// the fixed vocabulary of feature identifiers, the registry mapping a
// capability to its implementation, and the caller identity passed
// through operations. Hosts inspect the registry to discover what an
// adapter can do instead of type-asserting against its concrete type.
package adapter

import (
	"sort"
	"sync"

	"github.com/c360/tagkit/errors"
)

// Capability identifies one optional adapter feature.
type Capability string

const (
	// CapTagSearch is browsing and filtering the tag catalog.
	CapTagSearch Capability = "tag-search"
	// CapTagConfiguration is creating, updating and deleting tags.
	CapTagConfiguration Capability = "tag-configuration"
	// CapReadInterpolated is reading values interpolated onto a fixed grid.
	CapReadInterpolated Capability = "read-interpolated"
	// CapReadPlot is reading downsampled values suited to charting.
	CapReadPlot Capability = "read-plot"
	// CapReadProcessed is reading bucket-aggregated values.
	CapReadProcessed Capability = "read-processed"
	// CapReadAtTimes is reading values at caller-supplied instants.
	CapReadAtTimes Capability = "read-at-times"
	// CapSnapshotPush is subscribing to real-time value changes.
	CapSnapshotPush Capability = "snapshot-push"
)

// Descriptor carries the display metadata for one capability.
type Descriptor struct {
	ID          Capability `json:"id"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description"`
}

var descriptors = map[Capability]Descriptor{
	CapTagSearch: {
		ID:          CapTagSearch,
		DisplayName: "Tag Search",
		Description: "Browse and filter the adapter's tag definitions",
	},
	CapTagConfiguration: {
		ID:          CapTagConfiguration,
		DisplayName: "Tag Configuration",
		Description: "Create, update and delete tag definitions",
	},
	CapReadInterpolated: {
		ID:          CapReadInterpolated,
		DisplayName: "Interpolated Data",
		Description: "Read tag values interpolated onto a fixed time grid",
	},
	CapReadPlot: {
		ID:          CapReadPlot,
		DisplayName: "Plot Data",
		Description: "Read downsampled tag values suited to charting",
	},
	CapReadProcessed: {
		ID:          CapReadProcessed,
		DisplayName: "Processed Data",
		Description: "Read tag values aggregated over fixed-width buckets",
	},
	CapReadAtTimes: {
		ID:          CapReadAtTimes,
		DisplayName: "Values At Times",
		Description: "Read tag values at caller-supplied instants",
	},
	CapSnapshotPush: {
		ID:          CapSnapshotPush,
		DisplayName: "Snapshot Push",
		Description: "Subscribe to real-time tag value changes",
	},
}

// Describe returns the descriptor for a known capability.
func Describe(c Capability) (Descriptor, bool) {
	d, ok := descriptors[c]
	return d, ok
}

// AllCapabilities lists every known capability descriptor sorted by ID.
func AllCapabilities() []Descriptor {
	out := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Registry maps the capabilities an adapter supports to their
// implementations. The zero value is unusable; create with NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	features map[Capability]any
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{features: make(map[Capability]any)}
}

// Register associates an implementation with a capability. Registering
// an unknown capability or a nil implementation fails; re-registering a
// capability replaces the previous implementation.
func (r *Registry) Register(c Capability, impl any) error {
	if _, ok := descriptors[c]; !ok {
		return errors.WrapInvalid(errors.ErrCapabilityNotSupported, "Registry", "Register", "registering "+string(c))
	}
	if impl == nil {
		return errors.WrapInvalid(errors.ErrCapabilityNotSupported, "Registry", "Register", "registering nil implementation for "+string(c))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.features[c] = impl
	return nil
}

// Supports reports whether an implementation is registered for the
// capability.
func (r *Registry) Supports(c Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.features[c]
	return ok
}

// Get returns the implementation registered for the capability.
func (r *Registry) Get(c Capability) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.features[c]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrCapabilityNotSupported, "Registry", "Get", "resolving "+string(c))
	}
	return impl, nil
}

// List returns the descriptors of all registered capabilities sorted
// by ID.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.features))
	for c := range r.features {
		out = append(out, descriptors[c])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
