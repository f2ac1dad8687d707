// Package queue runs storage tasks one at a time on a single goroutine.
//
// Every state-changing storage operation (salt creation, record writes,
// clear-all, shutdown finalization) goes through one Queue, so operations
// are applied in submission order and never interleave.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"go.uber.org/zap"
)

// DefaultSize is the buffer used when New is given a non-positive size
const DefaultSize = 256

// Task is a unit of work executed on the queue goroutine. A task must not
// wait on another task submitted to the same queue.
type Task func() error

type job struct {
	fn     Task
	result chan error
}

// Queue executes tasks serially in FIFO order
type Queue struct {
	jobs    chan job
	done    chan struct{}
	pending atomic.Int64

	mu     sync.RWMutex
	closed bool

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New starts a queue with a buffer of size tasks
func New(size int, logger *zap.Logger, metrics *monitoring.Metrics) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &Queue{
		jobs:    make(chan job, size),
		done:    make(chan struct{}),
		logger:  logger,
		metrics: metrics,
	}
	go q.run()
	return q
}

// Submit enqueues fn and returns a channel that receives its result once.
// It blocks while the buffer is full.
func (q *Queue) Submit(fn Task) (<-chan error, error) {
	return q.SubmitContext(context.Background(), fn)
}

// SubmitContext is Submit with a bound on the time spent waiting for buffer
// space. Once accepted the task always runs.
func (q *Queue) SubmitContext(ctx context.Context, fn Task) (<-chan error, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, types.ErrClosed
	}

	j := job{fn: fn, result: make(chan error, 1)}
	select {
	case q.jobs <- j:
		q.metrics.SetQueueDepth(int(q.pending.Add(1)))
		return j.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do runs fn on the queue and waits for its result. If ctx ends before fn
// is accepted, Do returns ctx.Err() and fn never runs. If ctx ends after,
// fn still runs and Do returns an error matching both
// types.ErrOutcomeUnknown and ctx.Err().
func Do[T any](ctx context.Context, q *Queue, fn func() (T, error)) (T, error) {
	var (
		zero   T
		result T
	)

	ch, err := q.SubmitContext(ctx, func() error {
		v, err := fn()
		if err == nil {
			result = v
		}
		return err
	})
	if err != nil {
		return zero, err
	}

	select {
	case err := <-ch:
		if err != nil {
			return zero, err
		}
		return result, nil
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", types.ErrOutcomeUnknown, ctx.Err())
	}
}

// Run is Do for tasks without a result
func Run(ctx context.Context, q *Queue, fn Task) error {
	_, err := Do(ctx, q, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Len returns the number of accepted tasks not yet finished
func (q *Queue) Len() int {
	return int(q.pending.Load())
}

// Close stops accepting tasks, drains the ones already accepted and waits
// for the worker to exit or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)

	for j := range q.jobs {
		start := time.Now()
		err := q.execute(j.fn)
		q.metrics.ObserveQueueTask(time.Since(start))
		q.metrics.SetQueueDepth(int(q.pending.Add(-1)))
		j.result <- err
	}
}

func (q *Queue) execute(fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("storage task panicked", zap.Any("panic", r))
			err = fmt.Errorf("storage task panicked: %v", r)
		}
	}()
	return fn()
}
