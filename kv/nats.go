package kv

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/pkg/retry"
)

// NATSOptions configures the JetStream KV bucket backing a NATSStore.
type NATSOptions struct {
	Bucket      string        // Bucket name (required)
	Description string        // Bucket description
	History     uint8         // Number of historical revisions to keep
	Timeout     time.Duration // Per-operation timeout
	Retry       retry.Config  // Backoff for transient JetStream failures
}

// DefaultNATSOptions returns production defaults for a tag definition bucket.
func DefaultNATSOptions(bucket string) NATSOptions {
	return NATSOptions{
		Bucket:      bucket,
		Description: "TagKit tag definitions",
		History:     5,
		Timeout:     5 * time.Second,
		Retry:       retry.DefaultConfig(),
	}
}

// NATSStore is a Store backed by a NATS JetStream key/value bucket.
type NATSStore struct {
	bucket  jetstream.KeyValue
	options NATSOptions
}

// NewNATSStore creates (or binds to) the configured JetStream KV bucket.
func NewNATSStore(ctx context.Context, nc *nats.Conn, options NATSOptions) (*NATSStore, error) {
	if nc == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil NATS connection"), "NATSStore", "New", "connection validation")
	}
	if options.Bucket == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("empty bucket name"), "NATSStore", "New", "bucket validation")
	}
	if options.Timeout <= 0 {
		options.Timeout = 5 * time.Second
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, errors.WrapUnavailable(err, "NATSStore", "New", "create JetStream context")
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      options.Bucket,
		Description: options.Description,
		History:     options.History,
	})
	if err != nil {
		return nil, errors.WrapUnavailable(err, "NATSStore", "New", "create KV bucket")
	}

	return &NATSStore{bucket: bucket, options: options}, nil
}

// NewNATSStoreFromBucket wraps an existing bucket, for hosts that manage
// their own JetStream resources.
func NewNATSStoreFromBucket(bucket jetstream.KeyValue, options NATSOptions) *NATSStore {
	if options.Timeout <= 0 {
		options.Timeout = 5 * time.Second
	}
	return &NATSStore{bucket: bucket, options: options}
}

func (s *NATSStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.options.Timeout)
}

// Get returns the value for key.
func (s *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := retry.DoWithResult(ctx, s.options.Retry, func() (jetstream.KeyValueEntry, error) {
		opCtx, cancel := s.withTimeout(ctx)
		defer cancel()

		entry, err := s.bucket.Get(opCtx, key)
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, retry.NonRetryable(errors.ErrKeyNotFound)
		}
		return entry, err
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrKeyNotFound) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapUnavailable(err, "NATSStore", "Get", fmt.Sprintf("kv get %s", key))
	}
	return entry.Value(), nil
}

// Put creates or replaces the value for key (last writer wins).
func (s *NATSStore) Put(ctx context.Context, key string, value []byte) error {
	err := retry.Do(ctx, s.options.Retry, func() error {
		opCtx, cancel := s.withTimeout(ctx)
		defer cancel()

		_, err := s.bucket.Put(opCtx, key, value)
		return err
	})
	if err != nil {
		return errors.WrapUnavailable(err, "NATSStore", "Put", fmt.Sprintf("kv put %s", key))
	}
	return nil
}

// Delete removes the key. Absent keys are not an error.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	err := retry.Do(ctx, s.options.Retry, func() error {
		opCtx, cancel := s.withTimeout(ctx)
		defer cancel()

		err := s.bucket.Delete(opCtx, key)
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return errors.WrapUnavailable(err, "NATSStore", "Delete", fmt.Sprintf("kv delete %s", key))
	}
	return nil
}

// Keys lists all present keys.
func (s *NATSStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := retry.DoWithResult(ctx, s.options.Retry, func() ([]string, error) {
		opCtx, cancel := s.withTimeout(ctx)
		defer cancel()

		keys, err := s.bucket.Keys(opCtx)
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return keys, err
	})
	if err != nil {
		return nil, errors.WrapUnavailable(err, "NATSStore", "Keys", "kv list keys")
	}
	return keys, nil
}

var _ Store = (*NATSStore)(nil)
