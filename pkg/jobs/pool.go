package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of fan-out work.
type Task struct {
	ID  string
	Run func(context.Context) error
}

// Result reports how a task finished. Results keep the order of the tasks
// that produced them.
type Result struct {
	ID       string
	Err      error
	Duration time.Duration
}

// PoolConfig configures worker pool behaviour.
type PoolConfig struct {
	Workers int
	Logger  *zap.Logger
}

// Pool runs batches of tasks on a bounded number of goroutines. Failed
// tasks are reported, never retried.
type Pool struct {
	name    string
	workers int
	logger  *zap.Logger
}

// NewPool builds a pool.
func NewPool(name string, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{name: name, workers: cfg.Workers, logger: cfg.Logger}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes every task and blocks until all have finished. Tasks not yet
// started when ctx is cancelled finish with ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = p.execute(ctx, tasks[i])
			}
		}()
	}

	for i := range tasks {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.Sugar().Infow("pool batch finished", "pool", p.name, "tasks", len(tasks), "failed", failed)
	return results
}

func (p *Pool) execute(ctx context.Context, task Task) (result Result) {
	result.ID = task.ID
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result.Err = fmt.Errorf("task %s panicked: %v", task.ID, rec)
		}
		result.Duration = time.Since(start)
		if result.Err != nil {
			p.logger.Sugar().Warnw("task failed", "pool", p.name, "task_id", task.ID, "error", result.Err)
		}
	}()

	result.Err = task.Run(ctx)
	return result
}
