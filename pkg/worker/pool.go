// Package worker provides a background task pool for fire-and-forget work.
//
// The registry uses a pool to deliver configuration-changed notifications
// off the mutation path: AddOrUpdate and Delete submit a task and return,
// so a slow notification subscriber never blocks a registry writer.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/tagkit/metric"
)

// Sentinel errors for pool lifecycle and submission.
var (
	ErrPoolNotStarted     = errors.New("worker pool not started")
	ErrPoolStopped        = errors.New("worker pool stopped")
	ErrPoolAlreadyStarted = errors.New("worker pool already started")
	ErrQueueFull          = errors.New("worker pool queue full")
	ErrStopTimeout        = errors.New("timeout waiting for workers to stop")
)

// Task is one unit of background work. The context passed to the task is
// the pool's run context; it fires when the pool is shutting down.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed set of workers with a bounded queue.
// Submission is non-blocking: when the queue is full the task is dropped
// and counted.
type Pool struct {
	workers   int
	queueSize int

	taskChan chan Task
	wg       sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64

	queueDepth prometheus.Gauge
	taskCount  *prometheus.CounterVec
}

// Option configures a Pool.
type Option func(*Pool)

// WithMetrics registers pool metrics with the given registrar under the
// given component name.
func WithMetrics(registrar metric.Registrar, component string) Option {
	return func(p *Pool) {
		depth := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagkit",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Current background task queue depth",
		})
		count := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagkit",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Total background tasks by outcome",
		}, []string{"outcome"})

		if registrar.Register(component, "queue_depth", depth) == nil {
			p.queueDepth = depth
		}
		if registrar.Register(component, "tasks_total", count) == nil {
			p.taskCount = count
		}
	}
}

// NewPool creates a pool with the given worker count and queue size.
func NewPool(workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	p := &Pool{
		workers:   workers,
		queueSize: queueSize,
		taskChan:  make(chan Task, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. The context governs their lifetime: when it
// fires, workers stop after their current task.
func (p *Pool) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.started = true
	return nil
}

// Submit enqueues a task without blocking. Returns ErrQueueFull when the
// queue is at capacity; the task is dropped and counted.
//
// The lock is held across the send so a concurrent Stop cannot close the
// queue between the lifecycle check and the enqueue.
func (p *Pool) Submit(task Task) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.taskChan <- task:
		p.submitted.Add(1)
		if p.queueDepth != nil {
			p.queueDepth.Set(float64(len(p.taskChan)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.taskCount != nil {
			p.taskCount.WithLabelValues("dropped").Inc()
		}
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for workers to drain. The
// lock is released before the wait so concurrent Submit calls fail fast
// with ErrPoolStopped instead of blocking on the drain.
func (p *Pool) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.taskChan)
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats reports current pool counters.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Dropped    int64 `json:"dropped"`
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueDepth: len(p.taskChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskChan:
			if !ok {
				return
			}
			task(ctx)
			p.processed.Add(1)
			if p.taskCount != nil {
				p.taskCount.WithLabelValues("processed").Inc()
			}
			if p.queueDepth != nil {
				p.queueDepth.Set(float64(len(p.taskChan)))
			}
		}
	}
}
