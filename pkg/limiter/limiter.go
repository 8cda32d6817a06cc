// Package limiter bounds how many tasks run at once. Waiting submissions are admitted in
// FIFO order, so every task eventually runs as long as running tasks finish.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrTaskPanicked wraps a panic raised inside a task so the caller sees it as an error.
var ErrTaskPanicked = errors.New("limiter: task panicked")

// Limiter admits at most Size() concurrently running tasks.
type Limiter struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int64
}

// New creates a limiter with bound n. Values below 1 are treated as 1.
func New(n int) *Limiter {
	if n < 1 {
		n = 1
	}

	return &Limiter{
		sem:  semaphore.NewWeighted(int64(n)),
		size: n,
	}
}

// Size returns the concurrency bound.
func (l *Limiter) Size() int {
	return l.size
}

// InFlight returns the number of tasks currently running.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Execute blocks until a slot is free, runs task, and returns its error. semaphore.Weighted
// serves waiters in arrival order. If ctx is done before a slot frees, task is not run and
// ctx.Err() is returned.
func (l *Limiter) Execute(ctx context.Context, task func(context.Context) error) (err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("limiter: acquire: %w", err)
	}

	l.inFlight.Add(1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}

		l.inFlight.Add(-1)
		l.sem.Release(1)
	}()

	return task(ctx)
}
