package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  string
	}{
		{ErrorInvalid, "invalid"},
		{ErrorNotFound, "not-found"},
		{ErrorCanceled, "canceled"},
		{ErrorUnavailable, "unavailable"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("ErrorClass(%d).String() = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestWrapPattern(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "TagRegistry", "Init", "load definitions")
	require.Error(t, err)
	assert.Equal(t, "TagRegistry.Init: load definitions failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.Nil(t, Wrap(nil, "TagRegistry", "Init", "load definitions"))
}

func TestClassifiedWrappersPreserveChain(t *testing.T) {
	err := WrapUnavailable(ErrStoreUnavailable, "TagRegistry", "Init", "load definitions")

	var ce *ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, ErrorUnavailable, ce.Class)
	assert.Equal(t, "TagRegistry", ce.Component)
	assert.Equal(t, "Init", ce.Operation)
	assert.True(t, stderrors.Is(err, ErrStoreUnavailable))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"invalid classified", WrapInvalid(ErrEmptyTagList, "c", "m", "a"), IsInvalid, true},
		{"invalid bare", ErrInvalidTimeRange, IsInvalid, true},
		{"invalid wrapped bare", fmt.Errorf("check: %w", ErrUnsupportedFunction), IsInvalid, true},
		{"not found classified", WrapNotFound(ErrTagNotFound, "c", "m", "a"), IsNotFound, true},
		{"not found bare", ErrKeyNotFound, IsNotFound, true},
		{"canceled ctx", context.Canceled, IsCanceled, true},
		{"deadline ctx", context.DeadlineExceeded, IsCanceled, true},
		{"canceled classified", WrapCanceled(context.Canceled, "c", "m", "a"), IsCanceled, true},
		{"unavailable bare", ErrProviderUnavailable, IsUnavailable, true},
		{"nil invalid", nil, IsInvalid, false},
		{"nil canceled", nil, IsCanceled, false},
		{"cross class", WrapInvalid(ErrEmptyTagList, "c", "m", "a"), IsCanceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorCanceled, Classify(context.Canceled))
	assert.Equal(t, ErrorInvalid, Classify(ErrEmptyTagList))
	assert.Equal(t, ErrorNotFound, Classify(ErrTagNotFound))
	assert.Equal(t, ErrorUnavailable, Classify(stderrors.New("mystery failure")))
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, FromContext(ctx, "QueryEngine", "ReadPlot"))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err := FromContext(canceled, "QueryEngine", "ReadPlot")
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
}
