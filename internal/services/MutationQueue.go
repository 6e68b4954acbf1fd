package services

import (
	"context"
	"errors"
	"fmt"
	"parasited/internal/providers"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("mutation queue closed")

type Operation func(ctx context.Context) error

type MutationQueueInterface interface {
	Do(ctx context.Context, name string, op Operation) error
	Depth() int
	Close()
}

type job struct {
	name string
	ctx  context.Context
	op   Operation
	done chan error
}

// MutationQueue runs operations one at a time in submission order. A
// dequeued operation always runs to completion on a context detached from
// the caller's cancellation. An operation whose caller gave up before it
// was dequeued is skipped.
type MutationQueue struct {
	mu      sync.Mutex
	pending []job
	running bool
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewMutationQueue(logger providers.Logger, metrics providers.MetricsProviderInterface) MutationQueueInterface {
	q := &MutationQueue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  logger,
		metrics: metrics,
	}
	go q.worker()
	return q
}

func (q *MutationQueue) Do(ctx context.Context, name string, op Operation) error {
	j := job{name: name, ctx: ctx, op: op, done: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, j)
	q.reportDepthLocked()
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MutationQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

func (q *MutationQueue) depthLocked() int {
	n := len(q.pending)
	if q.running {
		n++
	}
	return n
}

func (q *MutationQueue) reportDepthLocked() {
	q.metrics.SetQueueDepth(q.depthLocked())
}

// Close rejects new operations, lets queued ones finish and waits for the
// worker to exit.
func (q *MutationQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.stopped
}

func (q *MutationQueue) next() (job, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		q.running = false
		q.reportDepthLocked()
		return job{}, false, q.closed
	}
	j := q.pending[0]
	q.pending[0] = job{}
	q.pending = q.pending[1:]
	q.running = true
	return j, true, false
}

func (q *MutationQueue) worker() {
	defer close(q.stopped)
	for {
		j, ok, closed := q.next()
		if !ok {
			if closed {
				return
			}
			<-q.wake
			continue
		}
		if err := j.ctx.Err(); err != nil {
			q.logger.Debugf(providers.TypeQueue, "Skipping %s, caller gave up: %s", j.name, err)
			j.done <- err
			continue
		}
		j.done <- q.run(j)
	}
}

func (q *MutationQueue) run(j job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %s panicked: %v", j.name, r)
		}
		if err != nil {
			q.logger.Warnf(providers.TypeQueue, "Operation %s failed: %s", j.name, err)
		}
		q.metrics.ObserveMutationDuration(j.name, time.Since(start))
	}()
	return j.op(context.WithoutCancel(j.ctx))
}

// Enqueue runs op on the queue and hands back its result.
func Enqueue[T any](ctx context.Context, q MutationQueueInterface, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := q.Do(ctx, name, func(ctx context.Context) error {
		r, err := op(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
