package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parasited/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (MutationQueueInterface, *testutil.MockMetrics) {
	t.Helper()
	metrics := testutil.NewMockMetrics()
	q := NewMutationQueue(&testutil.MockLogger{}, metrics)
	t.Cleanup(q.Close)
	return q, metrics
}

func TestMutationQueue_RunsInSubmissionOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = q.Do(context.Background(), "blocker", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), "append", func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// Wait until the op is queued so submission order is deterministic.
		require.Eventually(t, func() bool { return q.Depth() == i+2 }, time.Second, time.Millisecond)
	}
	close(release)
	wg.Wait()

	require.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestMutationQueue_NeverOverlaps(t *testing.T) {
	q, _ := newTestQueue(t)
	var running, maxSeen int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), "op", func(context.Context) error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()
				time.Sleep(100 * time.Microsecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestMutationQueue_FailureDoesNotStopQueue(t *testing.T) {
	q, _ := newTestQueue(t)
	boom := errors.New("boom")

	err := q.Do(context.Background(), "fail", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = q.Do(context.Background(), "panic", func(context.Context) error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	ran := false
	require.NoError(t, q.Do(context.Background(), "ok", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestMutationQueue_CallerCancellationDoesNotAbortRunningOp(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	finished := make(chan error, 1)
	opErr := make(chan error, 1)

	go func() {
		finished <- q.Do(ctx, "slow", func(opCtx context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			opErr <- opCtx.Err()
			return nil
		})
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-finished, context.Canceled)
	assert.NoError(t, <-opErr, "running op keeps an uncancelled context")

	// The op still completes; the next one runs after it.
	var after bool
	require.NoError(t, q.Do(context.Background(), "after", func(context.Context) error {
		after = true
		return nil
	}))
	assert.True(t, after)
}

func TestMutationQueue_SkipsOpsWhoseCallerGaveUp(t *testing.T) {
	q, _ := newTestQueue(t)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "blocker", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := q.Do(ctx, "skipped", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	close(release)

	require.NoError(t, q.Do(context.Background(), "sync", func(context.Context) error { return nil }))
	assert.False(t, ran)
}

func TestMutationQueue_Close(t *testing.T) {
	q := NewMutationQueue(&testutil.MockLogger{}, testutil.NewMockMetrics())
	q.Close()
	q.Close()

	err := q.Do(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMutationQueue_ReportsDepthAndDuration(t *testing.T) {
	q, metrics := newTestQueue(t)
	require.NoError(t, q.Do(context.Background(), "op", func(context.Context) error { return nil }))
	assert.Eventually(t, func() bool { return q.Depth() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, metrics.Count("mutation:op"))
}

func TestEnqueue_ReturnsResult(t *testing.T) {
	q, _ := newTestQueue(t)
	v, err := Enqueue(context.Background(), q, "answer", func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Enqueue(context.Background(), q, "fail", func(context.Context) (int, error) { return 7, errors.New("nope") })
	assert.Error(t, err)
	assert.Zero(t, v)
}
