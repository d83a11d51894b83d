package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunReportsEveryTaskInOrder(t *testing.T) {
	pool := NewPool("test", PoolConfig{Workers: 2})
	boom := errors.New("boom")

	tasks := make([]Task, 5)
	for i := range tasks {
		i := i
		tasks[i] = Task{ID: string(rune('a' + i)), Run: func(context.Context) error {
			if i == 2 {
				return boom
			}
			return nil
		}}
	}

	results := pool.Run(context.Background(), tasks)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, tasks[i].ID, r.ID)
		if i == 2 {
			assert.ErrorIs(t, r.Err, boom)
		} else {
			assert.NoError(t, r.Err)
		}
	}
}

func TestPoolDoesNotRetry(t *testing.T) {
	pool := NewPool("test", PoolConfig{Workers: 3})
	var calls int32

	results := pool.Run(context.Background(), []Task{{ID: "x", Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("fail")
	}}})

	require.Error(t, results[0].Err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool("test", PoolConfig{Workers: 2})
	var running, peak int32

	tasks := make([]Task, 6)
	for i := range tasks {
		tasks[i] = Task{ID: "t", Run: func(context.Context) error {
			now := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}}
	}

	pool.Run(context.Background(), tasks)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolRecoversPanics(t *testing.T) {
	pool := NewPool("test", PoolConfig{})
	results := pool.Run(context.Background(), []Task{{ID: "p", Run: func(context.Context) error {
		panic("kaboom")
	}}})
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "kaboom")
}

func TestPoolCancelledContextSkipsTasks(t *testing.T) {
	pool := NewPool("test", PoolConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := pool.Run(ctx, []Task{{ID: "a", Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}}})
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
