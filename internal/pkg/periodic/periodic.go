// Package periodic runs housekeeping work on a fixed interval.
package periodic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Task is one named unit of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	// RunImmediately runs the first tick at start instead of after Interval.
	RunImmediately bool
	Fn             func(ctx context.Context) error
}

// Runner drives a Task. Ticks run synchronously, so a slow run delays the next
// tick instead of overlapping it. Errors and panics are logged and the task
// keeps going.
type Runner struct {
	clock  clock.Clock
	logger *slog.Logger
}

func NewRunner(clk clock.Clock, logger *slog.Logger) *Runner {
	return &Runner{clock: clk, logger: logger.With("component", "periodic")}
}

// Run blocks until ctx is cancelled and then returns nil, so it can be used
// directly as an errgroup function. Only a non-positive interval is an error.
func (r *Runner) Run(ctx context.Context, task Task) error {
	if task.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	}
	log := r.logger.With("task", task.Name)
	log.Info("Starting periodic task", "interval", task.Interval)

	if task.RunImmediately {
		r.runOnce(ctx, log, task)
	}

	ticker := r.clock.Ticker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping periodic task")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			r.runOnce(ctx, log, task)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, log *slog.Logger, task Task) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Periodic task panicked", "panic", p)
		}
	}()
	start := r.clock.Now()
	if err := task.Fn(ctx); err != nil {
		log.Error("Periodic task failed", "error", err, "elapsed", r.clock.Since(start))
	}
}
