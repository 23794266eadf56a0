package resilience

import (
	"context"
	"errors"
	"sync"
)

// ErrNoTasks is returned by FirstSuccess when called without tasks.
var ErrNoTasks = errors.New("no tasks to run")

// Task is one competitor in a FirstSuccess race.
type Task[T any] func(ctx context.Context) (T, error)

// FirstSuccess runs all tasks concurrently and returns the first successful
// result. A failing task does not end the race; only when every task has
// failed is the last observed error returned. Remaining tasks are cancelled
// and joined before FirstSuccess returns, so tasks must honor ctx.
func FirstSuccess[T any](ctx context.Context, tasks ...Task[T]) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, ErrNoTasks
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	results := make(chan outcome, len(tasks))
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task Task[T]) {
			defer wg.Done()
			value, err := task(ctx)
			results <- outcome{value: value, err: err}
		}(task)
	}

	var lastErr error
	for range tasks {
		res := <-results
		if res.err == nil {
			cancel()
			wg.Wait()
			return res.value, nil
		}
		lastErr = res.err
	}

	wg.Wait()
	return zero, lastErr
}
