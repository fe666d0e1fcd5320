package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tagkit/tag"
)

func TestUpdateAndGetCaseInsensitive(t *testing.T) {
	s := New(0)
	defer s.Close()

	s.Update("Pump1.Flow", tag.NewNumeric(time.Now(), 42, tag.Good))

	v, ok := s.Get("PUMP1.FLOW")
	require.True(t, ok)
	assert.Equal(t, 42.0, v.NumericValue)

	_, ok = s.Get("Tank1.Level")
	assert.False(t, ok)
}

func TestUpdateOverwrites(t *testing.T) {
	s := New(0)
	defer s.Close()

	s.Update("Temp", tag.NewNumeric(time.Now(), 1, tag.Good))
	s.Update("Temp", tag.NewNumeric(time.Now(), 2, tag.Good))

	v, ok := s.Get("Temp")
	require.True(t, ok)
	assert.Equal(t, 2.0, v.NumericValue)
	assert.Equal(t, 1, s.Len())
}

func TestDelete(t *testing.T) {
	s := New(0)
	defer s.Close()

	s.Update("Temp", tag.NewNumeric(time.Now(), 1, tag.Good))
	assert.True(t, s.Delete("TEMP"))
	_, ok := s.Get("Temp")
	assert.False(t, ok)
}

func TestNamesSorted(t *testing.T) {
	s := New(0)
	defer s.Close()

	s.Update("b.tag", tag.NewNumeric(time.Now(), 1, tag.Good))
	s.Update("A.Tag", tag.NewNumeric(time.Now(), 2, tag.Good))

	assert.Equal(t, []string{"a.tag", "b.tag"}, s.Names())
}

func TestTTLExpiry(t *testing.T) {
	s := New(20 * time.Millisecond)
	defer s.Close()

	s.Update("Temp", tag.NewNumeric(time.Now(), 1, tag.Good))
	time.Sleep(30 * time.Millisecond)

	_, ok := s.Get("Temp")
	assert.False(t, ok)
}

func TestBlankNameIgnored(t *testing.T) {
	s := New(0)
	defer s.Close()

	s.Update("  ", tag.NewNumeric(time.Now(), 1, tag.Good))
	assert.Equal(t, 0, s.Len())
}
