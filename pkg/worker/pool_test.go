package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tagkit/metric"
)

func TestPoolProcessesSubmittedTasks(t *testing.T) {
	p := NewPool(2, 16)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(time.Second)

	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(context.Context) {
			defer wg.Done()
			ran.Add(1)
		}))
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks never ran")
	}
	assert.Equal(t, int64(10), ran.Load())
}

func TestSubmitBeforeStartFails(t *testing.T) {
	p := NewPool(1, 4)
	err := p.Submit(func(context.Context) {})
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestDoubleStartFails(t *testing.T) {
	p := NewPool(1, 4)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(time.Second)
	assert.ErrorIs(t, p.Start(context.Background()), ErrPoolAlreadyStarted)
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	p := NewPool(1, 1)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(time.Second)

	block := make(chan struct{})
	// First task occupies the worker; second fills the queue.
	require.NoError(t, p.Submit(func(context.Context) { <-block }))

	// Give the worker a moment to pick up the first task.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Submit(func(context.Context) {}))

	var dropped bool
	for i := 0; i < 10; i++ {
		if err := p.Submit(func(context.Context) {}); err == ErrQueueFull {
			dropped = true
			break
		}
	}
	close(block)

	assert.True(t, dropped, "expected ErrQueueFull once queue was saturated")
	assert.Greater(t, p.Stats().Dropped, int64(0))
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	p := NewPool(1, 16)
	require.NoError(t, p.Start(context.Background()))

	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func(context.Context) {
			ran.Add(1)
		}))
	}

	require.NoError(t, p.Stop(time.Second))
	assert.Equal(t, int64(5), ran.Load())

	assert.ErrorIs(t, p.Submit(func(context.Context) {}), ErrPoolStopped)
	// Stop is idempotent.
	assert.NoError(t, p.Stop(time.Second))
}

func TestSubmitRacingStopNeverPanics(t *testing.T) {
	for iter := 0; iter < 200; iter++ {
		p := NewPool(2, 8)
		require.NoError(t, p.Start(context.Background()))

		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 20; j++ {
					switch err := p.Submit(func(context.Context) {}); err {
					case nil, ErrQueueFull:
					case ErrPoolStopped:
						return
					default:
						t.Errorf("unexpected submit error: %v", err)
						return
					}
				}
			}()
		}

		close(start)
		require.NoError(t, p.Stop(time.Second))
		wg.Wait()
	}
}

func TestContextCancellationStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(2, 4)
	require.NoError(t, p.Start(ctx))

	cancel()
	// Workers exit on ctx; Stop afterwards must not hang.
	require.NoError(t, p.Stop(time.Second))
}

func TestPoolMetricsRegistered(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	p := NewPool(1, 4, WithMetrics(reg, "notifier"))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(func(context.Context) { wg.Done() }))
	wg.Wait()

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "tagkit_worker_tasks_total" {
			found = true
		}
	}
	assert.True(t, found)
}
