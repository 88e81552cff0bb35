// Package workpool runs independent tasks on a bounded set of goroutines and
// returns their outcomes in submission order.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work submitted to Invoke.
type Task[R any] func() (R, error)

// Result holds the outcome of a single task.
// Either Value is populated or Err is non-nil.
type Result[R any] struct {
	Value R
	Err   error
}

// Invoke runs every task with at most limit running at once (limit <= 0 means
// unbounded) and waits for all of them. results[i] always belongs to tasks[i],
// whatever order the tasks complete in.
//
// Tasks are not cancellable. If ctx is done before every task has finished,
// Invoke stops waiting and returns ctx.Err(); tasks already submitted keep
// running in the background and their results are discarded.
func Invoke[R any](ctx context.Context, limit int, tasks []Task[R]) ([]Result[R], error) {
	results := make([]Result[R], len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, task := range tasks {
			g.Go(func() error {
				v, err := task()
				results[i] = Result[R]{Value: v, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		// A batch that finished is never reported as interrupted.
		select {
		case <-done:
			return results, nil
		default:
			return nil, ctx.Err()
		}
	}
}
