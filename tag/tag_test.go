package tag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeString(t *testing.T) {
	assert.Equal(t, "numeric", Numeric.String())
	assert.Equal(t, "text", Text.String())
	assert.Equal(t, "state-set", StateSet.String())
	assert.Equal(t, "unknown", DataType(42).String())
}

func TestDataTypeIsNumeric(t *testing.T) {
	assert.True(t, Numeric.IsNumeric())
	assert.False(t, Text.IsNumeric())
	assert.False(t, StateSet.IsNumeric())
}

func TestDefinitionMatchesName(t *testing.T) {
	def := &Definition{ID: "t1", Name: "Reactor.Temperature"}

	assert.True(t, def.MatchesName("reactor.temperature"))
	assert.True(t, def.MatchesName("REACTOR.TEMPERATURE"))
	assert.False(t, def.MatchesName("reactor.pressure"))
}

func TestDefinitionClone(t *testing.T) {
	def := &Definition{
		ID:       "t1",
		Name:     "Flow",
		DataType: Numeric,
		Properties: []Property{
			{Name: "engUnitLow", Value: 0.0},
			{Name: "engUnitHigh", Value: 100.0},
		},
	}

	cp := def.Clone()
	require.NotNil(t, cp)
	require.Equal(t, def, cp)

	// Mutating the clone must not leak back into the original.
	cp.Properties[0].Value = 50.0
	assert.Equal(t, 0.0, def.Properties[0].Value)

	var nilDef *Definition
	assert.Nil(t, nilDef.Clone())
}

func TestValueConstructorsNormalizeToUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	local := time.Date(2024, 3, 1, 12, 0, 0, 0, loc)

	v := NewNumeric(local, 42.5, Good)
	assert.Equal(t, time.UTC, v.Timestamp.Location())
	assert.True(t, v.Timestamp.Equal(local))
	assert.Equal(t, 42.5, v.NumericValue)

	tv := NewText(local, "running", Uncertain)
	assert.Equal(t, "running", tv.TextValue)
	assert.Equal(t, Uncertain, tv.Quality)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "reactor.temp", NormalizeName("  Reactor.Temp "))
	assert.Equal(t, "a", NormalizeName("A"))
	assert.Equal(t, "", NormalizeName("   "))
}
