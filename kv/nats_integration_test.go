//go:build integration

package kv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tagkit/errors"
)

func natsURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	return url
}

func TestNATSStoreRoundTrip(t *testing.T) {
	nc, err := nats.Connect(natsURL(t))
	require.NoError(t, err)
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewNATSStore(ctx, nc, DefaultNATSOptions("tagkit-test-roundtrip"))
	require.NoError(t, err)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)

	require.NoError(t, store.Put(ctx, "tag1", []byte(`{"id":"tag1"}`)))
	got, err := store.Get(ctx, "tag1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"tag1"}`, string(got))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "tag1")

	require.NoError(t, store.Delete(ctx, "tag1"))
	_, err = store.Get(ctx, "tag1")
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)

	// Absent delete is silent.
	assert.NoError(t, store.Delete(ctx, "tag1"))
}

func TestNewNATSStoreValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewNATSStore(ctx, nil, DefaultNATSOptions("b"))
	assert.True(t, errors.IsInvalid(err))

	nc, err := nats.Connect(natsURL(t))
	require.NoError(t, err)
	defer nc.Close()

	_, err = NewNATSStore(ctx, nc, NATSOptions{})
	assert.True(t, errors.IsInvalid(err))
}
