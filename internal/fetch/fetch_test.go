package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBoundsConcurrencyAndKeepsOrder(t *testing.T) {
	var inFlight, peak int32
	failing := map[int]bool{1: true, 4: true, 6: true, 9: true, 12: true, 15: true, 19: true}

	tasks := make([]Task[int], 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			if failing[i] {
				return 0, fmt.Errorf("task %d failed", i)
			}
			return i * 10, nil
		}
	}

	results := Run(context.Background(), Options{Limit: 5, Timeout: time.Second}, tasks)

	require.Len(t, results, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(5))
	assert.Equal(t, 7, Failures(results))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		if failing[i] {
			assert.Error(t, r.Err)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, i*10, r.Value)
	}
}

func TestRunAppliesPerTaskTimeout(t *testing.T) {
	tasks := []Task[string]{
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		func(ctx context.Context) (string, error) {
			return "fast", nil
		},
	}

	results := Run(context.Background(), Options{Limit: 2, Timeout: 20 * time.Millisecond}, tasks)

	assert.True(t, errors.Is(results[0].Err, context.DeadlineExceeded))
	assert.Equal(t, "fast", results[1].Value)
}

func TestRunRecoversPanics(t *testing.T) {
	tasks := []Task[int]{
		func(context.Context) (int, error) { panic("boom") },
		func(context.Context) (int, error) { return 1, nil },
	}

	results := Run(context.Background(), Options{}, tasks)

	assert.ErrorIs(t, results[0].Err, ErrPanic)
	assert.True(t, results[1].OK())
}

func TestRunCancelledContextFailsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	tasks := make([]Task[int], 3)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 1, nil
		}
	}

	results := Run(ctx, Options{Limit: 1}, tasks)

	assert.Equal(t, 3, Failures(results))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRunObserve(t *testing.T) {
	var seen int32
	tasks := []Task[int]{
		func(context.Context) (int, error) { return 0, errors.New("x") },
		func(context.Context) (int, error) { return 1, nil },
	}
	Run(context.Background(), Options{Observe: func(error, time.Duration) { atomic.AddInt32(&seen, 1) }}, tasks)
	assert.Equal(t, int32(2), atomic.LoadInt32(&seen))
}

func TestRunEmpty(t *testing.T) {
	assert.Empty(t, Run[int](context.Background(), Options{}, nil))
}
