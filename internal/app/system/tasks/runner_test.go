package tasks_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/stratasort/internal/app/system/tasks"
	"go.uber.org/zap"
)

func TestRunner_StartAndStop(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var runCount atomic.Int32
	runner.Register(tasks.Job{
		Name:     "test-job",
		Interval: 100 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runCount.Add(1)
			return nil
		},
	})

	runner.Start()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}

	// Jobs run once immediately on start.
	if runCount.Load() < 1 {
		t.Errorf("expected job to run at least once, ran %d times", runCount.Load())
	}
}

func TestRunner_StopWithTimeout(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	inJob := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "slow-job",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(inJob)
			// Ignores context on purpose so Stop has to time out.
			time.Sleep(5 * time.Second)
			return nil
		},
	})

	runner.Start()
	<-inJob
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := runner.Stop(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got: %v", err)
	}
}

func TestRunner_JobContextCancellation(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	cancelled := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "context-aware-job",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
	})

	runner.Start()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Error("job context was not cancelled")
	}
}

func TestRunner_RunOnce(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var runCount atomic.Int32
	runner.Register(tasks.Job{
		Name:     "manual-job",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runCount.Add(1)
			return nil
		},
	})

	if err := runner.RunOnce(context.Background(), "manual-job"); err != nil {
		t.Errorf("RunOnce() returned error: %v", err)
	}
	if got := runCount.Load(); got != 1 {
		t.Errorf("expected job to run once, ran %d times", got)
	}

	if err := runner.RunOnce(context.Background(), "no-such-job"); err != nil {
		t.Errorf("RunOnce() for unknown job should return nil, got: %v", err)
	}
}
