// Package worker provides bounded fan-out and small helpers for blocking work:
// context-aware waits, per-task timeouts and panic recovery.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	logFieldWorker = "worker"
	logFieldTask   = "task"
)

// Task is one unit of work submitted to a Pool.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs tasks on at most Size goroutines. A failing task is logged and
// does not cancel its siblings.
type Pool struct {
	name   string
	size   int
	logger *zerolog.Logger
}

// NewPool creates a pool. Sizes below one are treated as one.
func NewPool(name string, size int, logger *zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Pool{name: name, size: size, logger: logger}
}

// Run executes all tasks and blocks until every task returned.
// It reports how many tasks failed. The only returned error is the context
// error when ctx was canceled before the pool joined.
func (p *Pool) Run(ctx context.Context, tasks []Task) (int, error) {
	g := new(errgroup.Group)
	g.SetLimit(p.size)

	// Every task counts as failed until it returns cleanly, panics included.
	failures := make([]bool, len(tasks))
	for i := range failures {
		failures[i] = true
	}

	for i, task := range tasks {
		g.Go(func() error {
			defer RecoverPanic(p.logger, task.Name)

			if ctx.Err() != nil {
				return nil
			}

			if err := task.Run(ctx); err != nil {
				p.logger.Warn().Err(err).
					Str(logFieldWorker, p.name).
					Str(logFieldTask, task.Name).
					Msg("task failed")

				return nil
			}

			failures[i] = false

			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // tasks never return errors to the group

	failed := 0

	for _, f := range failures {
		if f {
			failed++
		}
	}

	if err := ctx.Err(); err != nil {
		return failed, fmt.Errorf("pool %s: %w", p.name, err)
	}

	return failed, nil
}

// Wait blocks until duration elapses or context is canceled.
// Returns a wrapped context error if context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}

// RunWithTimeout runs fn with a timeout derived from the parent context.
// The function receives a context that will be canceled after timeout.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}

// RecoverPanic recovers from panics and logs them.
// Use as: defer worker.RecoverPanic(logger, "operation name")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}
