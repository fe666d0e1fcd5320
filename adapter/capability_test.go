package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tagkit/errors"
)

func TestDescribeKnownCapabilities(t *testing.T) {
	for _, c := range []Capability{
		CapTagSearch, CapTagConfiguration, CapReadInterpolated,
		CapReadPlot, CapReadProcessed, CapReadAtTimes, CapSnapshotPush,
	} {
		d, ok := Describe(c)
		require.True(t, ok, "capability %s", c)
		assert.Equal(t, c, d.ID)
		assert.NotEmpty(t, d.DisplayName)
		assert.NotEmpty(t, d.Description)
	}

	_, ok := Describe("made-up")
	assert.False(t, ok)
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	impl := struct{ name string }{"search"}

	require.NoError(t, r.Register(CapTagSearch, impl))
	assert.True(t, r.Supports(CapTagSearch))
	assert.False(t, r.Supports(CapReadPlot))

	got, err := r.Get(CapTagSearch)
	require.NoError(t, err)
	assert.Equal(t, impl, got)

	_, err = r.Get(CapReadPlot)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCapabilityNotSupported)
}

func TestRegistryRejectsUnknownAndNil(t *testing.T) {
	r := NewRegistry()

	err := r.Register("made-up", struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCapabilityNotSupported)

	err = r.Register(CapTagSearch, nil)
	require.Error(t, err)
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(CapSnapshotPush, struct{}{}))
	require.NoError(t, r.Register(CapReadPlot, struct{}{}))
	require.NoError(t, r.Register(CapTagSearch, struct{}{}))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, CapReadPlot, list[0].ID)
	assert.Equal(t, CapSnapshotPush, list[1].ID)
	assert.Equal(t, CapTagSearch, list[2].ID)
}

func TestCallerClaims(t *testing.T) {
	c := Caller{ID: "u1", Claims: map[string]string{"role": "operator"}}

	v, ok := c.Claim("role")
	assert.True(t, ok)
	assert.Equal(t, "operator", v)

	_, ok = c.Claim("missing")
	assert.False(t, ok)

	assert.Equal(t, "system", System().ID)
}
