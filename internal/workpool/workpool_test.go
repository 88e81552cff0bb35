package workpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbuild/internal/workpool"
)

func TestInvoke_Empty(t *testing.T) {
	results, err := workpool.Invoke[int](context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInvoke_PreservesSubmissionOrder(t *testing.T) {
	// Later tasks finish first.
	delays := []time.Duration{30 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond, 0}
	tasks := make([]workpool.Task[int], len(delays))
	for i, d := range delays {
		tasks[i] = func() (int, error) {
			time.Sleep(d)
			return i * 10, nil
		}
	}

	results, err := workpool.Invoke(context.Background(), 0, tasks)
	require.NoError(t, err)
	require.Len(t, results, len(tasks))
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, i*10, r.Value)
	}
}

func TestInvoke_PartialFailure(t *testing.T) {
	errBoom := errors.New("boom")
	tasks := []workpool.Task[string]{
		func() (string, error) { return "a", nil },
		func() (string, error) { return "", errBoom },
		func() (string, error) { return "c", nil },
	}

	results, err := workpool.Invoke(context.Background(), 3, tasks)
	require.NoError(t, err)

	assert.Equal(t, "a", results[0].Value)
	assert.ErrorIs(t, results[1].Err, errBoom)
	assert.Equal(t, "c", results[2].Value)
	assert.NoError(t, results[2].Err)
}

func TestInvoke_RespectsLimit(t *testing.T) {
	var running, peak atomic.Int32
	tasks := make([]workpool.Task[struct{}], 8)
	for i := range tasks {
		tasks[i] = func() (struct{}, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		}
	}

	_, err := workpool.Invoke(context.Background(), 2, tasks)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestInvoke_ContextCanceledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	tasks := []workpool.Task[int]{
		func() (int, error) { <-release; return 1, nil },
		func() (int, error) { <-release; return 2, nil },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	results, err := workpool.Invoke(ctx, 0, tasks)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, results)
}

// canceledAfter is a context that turns done only once release is closed,
// and then reports as canceled.
type canceledAfter struct {
	context.Context
	release <-chan struct{}
	settle  time.Duration
}

func (c canceledAfter) Done() <-chan struct{} {
	<-c.release
	time.Sleep(c.settle)
	closed := make(chan struct{})
	close(closed)
	return closed
}

func (c canceledAfter) Err() error {
	return context.Canceled
}

func TestInvoke_FinishedBatchWinsOverCancellation(t *testing.T) {
	for i := range 20 {
		finished := make(chan struct{})
		tasks := []workpool.Task[int]{
			func() (int, error) { defer close(finished); return i, nil },
		}
		ctx := canceledAfter{Context: context.Background(), release: finished, settle: 20 * time.Millisecond}

		results, err := workpool.Invoke(ctx, 0, tasks)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, i, results[0].Value)
	}
}
