// Package scheduler runs a task repeatedly on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	cron "github.com/pardnchiu/go-scheduler"

	"github.com/idling-app/dbmigrate/log"
)

// Task is a unit of work executed on every scheduled tick.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts an ordinary function to the Task interface.
type TaskFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Scheduler represents a periodic task runner that executes a task based on a cron expression.
// Runs never overlap: a tick that fires while the previous run is still in
// progress is skipped.
type Scheduler struct {
	cronExpr string // The cron expression
	task     Task   // The task to execute periodically
	running  sync.Mutex
}

// New creates a new Scheduler instance with a cron expression.
// The scheduler executes the task according to the cron schedule.
//
// Supported cron formats:
//   - Standard 5-field cron: "minute hour day month weekday" (e.g., "0 9 * * MON-FRI")
//   - Custom descriptors: @yearly, @monthly, @weekly, @daily, @hourly
//   - Interval syntax: @every 5m, @every 2h, @every 30s
//
// Returns an error if the cron expression is invalid.
func New(cronExpr string, task Task) (*Scheduler, error) {
	// Check for empty expression first to avoid library panic
	if cronExpr == "" {
		return nil, fmt.Errorf("invalid cron expression %q: expression cannot be empty", cronExpr)
	}

	testScheduler, err := cron.New(cron.Config{Location: time.UTC})
	if err != nil {
		return nil, fmt.Errorf("failed to create cron validator: %w", err)
	}

	_, err = testScheduler.Add(cronExpr, func() {})
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	return &Scheduler{
		cronExpr: cronExpr,
		task:     task,
	}, nil
}

// Run starts the scheduler and executes the task according to the cron schedule.
// The scheduler will continue running until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	cronScheduler, err := cron.New(cron.Config{Location: time.UTC})
	if err != nil {
		return fmt.Errorf("failed to create cron scheduler: %w", err)
	}

	_, err = cronScheduler.Add(s.cronExpr, func() error {
		return s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron task: %w", err)
	}

	cronScheduler.Start()
	log.InfoContext(ctx, "scheduler started", "schedule", s.cronExpr)

	<-ctx.Done()

	// Stop the cron scheduler and wait for tasks to complete
	stopCtx := cronScheduler.Stop()
	<-stopCtx.Done()

	return fmt.Errorf("scheduler context canceled: %w", ctx.Err())
}

func (s *Scheduler) tick(ctx context.Context) error {
	runCtx := log.WithTraceID(ctx)

	if !s.running.TryLock() {
		log.WarnContext(runCtx, "previous scheduled run still in progress, skipping")
		return nil
	}
	defer s.running.Unlock()

	log.InfoContext(runCtx, "scheduler task started")

	err := s.task.Run(runCtx)
	if err != nil {
		log.ErrorContext(runCtx, "error in scheduler", "error", err)
	}

	log.InfoContext(runCtx, "scheduler task finished")
	return err
}
