package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func blockUntilCancelled(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStartAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(nil)
	ctx := context.Background()

	var started atomic.Int32
	for i := 0; i < 5; i++ {
		s.Start(ctx, fmt.Sprintf("user-%d", i), fmt.Sprintf("agent-%d", i), func(ctx context.Context, _, _ string) error {
			started.Add(1)
			<-ctx.Done()
			return ctx.Err()
		})
	}

	if got := s.Active(); got != 5 {
		t.Errorf("Active() = %d, want 5", got)
	}

	if err := s.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if got := s.Active(); got != 0 {
		t.Errorf("Active() after shutdown = %d, want 0", got)
	}
	if got := started.Load(); got != 5 {
		t.Errorf("%d workers ran, want 5", got)
	}
}

func TestShutdownCollectsWorkerErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(nil)
	ctx := context.Background()

	s.Start(ctx, "clean", "a1", blockUntilCancelled)
	s.Start(ctx, "broken", "a2", func(ctx context.Context, _, _ string) error {
		<-ctx.Done()
		return errors.New("flush failed")
	})
	s.Start(ctx, "also-clean", "a3", blockUntilCancelled)

	err := s.Shutdown()
	if err == nil {
		t.Fatal("Shutdown should surface the broken worker's error")
	}
	if !strings.Contains(err.Error(), "broken") || !strings.Contains(err.Error(), "flush failed") {
		t.Errorf("Shutdown error = %q", err)
	}
}

func TestShutdownToleratesPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(nil)
	ctx := context.Background()

	s.Start(ctx, "panicky", "a1", func(context.Context, string, string) error {
		panic("worker blew up")
	})
	s.Start(ctx, "steady", "a2", blockUntilCancelled)

	err := s.Shutdown()
	if err == nil {
		t.Fatal("Shutdown should report the panicked worker")
	}
	if !strings.Contains(err.Error(), "panicked") {
		t.Errorf("Shutdown error = %q, want panic report", err)
	}
}

func TestShutdownOfFinishedWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(nil)
	s.Start(context.Background(), "quick", "a1", func(context.Context, string, string) error {
		return nil
	})

	// Let the worker return before shutdown.
	time.Sleep(20 * time.Millisecond)

	if err := s.Shutdown(); err != nil {
		t.Errorf("Shutdown of finished worker: %v", err)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(nil)
	if err := s.Shutdown(); err != nil {
		t.Errorf("empty Shutdown: %v", err)
	}

	s.Start(context.Background(), "u1", "a1", blockUntilCancelled)
	if err := s.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
