package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit   = 8
	DefaultTimeout = 30 * time.Second
)

// ErrPanic wraps a panic recovered from a task.
var ErrPanic = errors.New("task panicked")

// Task is one unit of remote work.
type Task[T any] func(ctx context.Context) (T, error)

// Result carries either a task's value or its failure, never both.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Options bound a batch.
type Options struct {
	// Limit caps the number of tasks in flight.
	Limit int
	// Timeout applies to each task individually.
	Timeout time.Duration
	// Observe, when set, is called once per finished task.
	Observe func(err error, elapsed time.Duration)
}

// Run executes every task with at most opts.Limit running at once and
// returns one Result per task in input order. A failing task never aborts
// its siblings; a cancelled ctx fails the tasks that have not started.
func Run[T any](ctx context.Context, opts Options, tasks []Task[T]) []Result[T] {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	results := make([]Result[T], len(tasks))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, task := range tasks {
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			start := time.Now()
			v, err := invoke(ctx, timeout, task)
			if err != nil {
				results[i].Err = err
			} else {
				results[i].Value = v
			}
			if opts.Observe != nil {
				opts.Observe(err, time.Since(start))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func invoke[T any](ctx context.Context, timeout time.Duration, task Task[T]) (v T, err error) {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return task(taskCtx)
}

// Failures counts failed results.
func Failures[T any](results []Result[T]) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
