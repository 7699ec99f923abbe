package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/idling-app/dbmigrate/log"
	"github.com/idling-app/dbmigrate/scheduler"
)

func TestContextDecline(t *testing.T) {
	t.Parallel()

	var counter atomic.Int32
	s, err := scheduler.New("@every 1s", scheduler.TaskFunc(func(ctx context.Context) error {
		counter.Add(1)
		return nil
	}))
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(3*time.Second + 10*time.Millisecond)
		cancel()
	}()

	runErr := s.Run(ctx)

	if counter.Load() != 3 {
		t.Errorf("wrong counter value. expected %v, got %v", 3, counter.Load())
	}

	if runErr == nil {
		t.Error("expected error, got nil")
	}
}

func TestNew_ValidExpression(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		expr string
	}{
		{"standard cron every minute", "* * * * *"},
		{"every 5 minutes", "*/5 * * * *"},
		{"hourly descriptor", "@hourly"},
		{"daily descriptor", "@daily"},
		{"weekly descriptor", "@weekly"},
		{"monthly descriptor", "@monthly"},
		{"yearly descriptor", "@yearly"},
		{"every 30 seconds", "@every 30s"},
		{"every 5 minutes interval", "@every 5m"},
		{"every 2 hours interval", "@every 2h"},
		{"weekday mornings", "0 9 * * MON-FRI"},
		{"specific time", "30 14 * * *"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, err := scheduler.New(tc.expr, scheduler.TaskFunc(func(ctx context.Context) error {
				return nil
			}))

			if err != nil {
				t.Errorf("expected no error for valid expression %q, got: %v", tc.expr, err)
			}

			if s == nil {
				t.Error("expected non-nil scheduler")
			}
		})
	}
}

func TestNew_InvalidExpression(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		expr string
	}{
		{"empty expression", ""},
		{"invalid format", "invalid"},
		{"too many fields", "* * * * * * *"},
		{"invalid range", "60 * * * *"},
		{"invalid descriptor", "@invalid"},
		{"invalid interval", "@every abc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, err := scheduler.New(tc.expr, scheduler.TaskFunc(func(ctx context.Context) error {
				return nil
			}))

			if err == nil {
				t.Errorf("expected error for invalid expression %q, got nil", tc.expr)
			}

			if s != nil {
				t.Error("expected nil scheduler for invalid expression")
			}
		})
	}
}

func TestCronScheduling_ErrorHandling(t *testing.T) {
	t.Parallel()

	var counter atomic.Int32
	s, err := scheduler.New("@every 1s", scheduler.TaskFunc(func(ctx context.Context) error {
		counter.Add(1)
		return errors.New("task error")
	}))

	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)

	time.Sleep(3500 * time.Millisecond)
	cancel()

	// Allow time for graceful shutdown
	time.Sleep(100 * time.Millisecond)

	// Errors should not stop execution - should still run multiple times
	count := counter.Load()
	if count < 2 || count > 4 {
		t.Errorf("expected 3 executions (±1) despite errors, got %v", count)
	}
}

func TestCronScheduling_ContextCancellation(t *testing.T) {
	t.Parallel()

	var counter atomic.Int32
	s, err := scheduler.New("@every 1s", scheduler.TaskFunc(func(ctx context.Context) error {
		counter.Add(1)
		return nil
	}))

	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(2500 * time.Millisecond)
		cancel()
	}()

	runErr := s.Run(ctx)

	// Should have executed 2-3 times before cancellation
	count := counter.Load()
	if count < 1 || count > 3 {
		t.Errorf("expected 2 executions (±1), got %v", count)
	}

	if runErr == nil {
		t.Error("expected error from context cancellation, got nil")
	}
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	t.Parallel()

	var started, inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})

	s, err := scheduler.New("@every 1s", scheduler.TaskFunc(func(ctx context.Context) error {
		started.Add(1)
		current := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			previous := maxInFlight.Load()
			if current <= previous || maxInFlight.CompareAndSwap(previous, current) {
				break
			}
		}

		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Several ticks fire while the first run is blocked
	time.Sleep(3500 * time.Millisecond)
	close(release)
	cancel()
	<-done

	if started.Load() != 1 {
		t.Errorf("expected a single run while blocked, got %v", started.Load())
	}
	if maxInFlight.Load() != 1 {
		t.Errorf("expected runs to never overlap, got %v concurrent runs", maxInFlight.Load())
	}
}

func TestEachRunGetsTraceID(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[string]bool{}

	s, err := scheduler.New("@every 1s", scheduler.TaskFunc(func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		seen[log.TraceID(ctx)] = true
		return nil
	}))
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	s.Run(ctx)

	mu.Lock()
	defer mu.Unlock()

	if seen[""] {
		t.Error("expected every run to carry a trace id")
	}
	if len(seen) < 2 {
		t.Errorf("expected distinct trace ids per run, got %v", seen)
	}
}
