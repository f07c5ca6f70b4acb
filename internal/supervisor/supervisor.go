// Package supervisor runs background agent workers, one per user, and
// shuts them all down without letting one worker's failure strand the
// rest.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// WorkerFunc is a long-running worker bound to one user's agent. It
// must return promptly once its context is cancelled.
type WorkerFunc func(ctx context.Context, userID, agentID string) error

type handle struct {
	userID string
	cancel context.CancelFunc
	done   chan error
}

// Supervisor owns the lifecycle of a set of workers.
type Supervisor struct {
	mu      sync.Mutex
	workers []*handle
	log     *zap.Logger
}

func New(log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{log: log}
}

// Start launches fn for the given user. The worker runs until Shutdown
// or until fn returns on its own. Panics inside fn are converted to
// errors and surfaced at shutdown instead of crashing the run.
func (s *Supervisor) Start(ctx context.Context, userID, agentID string, fn WorkerFunc) {
	workerCtx, cancel := context.WithCancel(ctx)
	h := &handle{userID: userID, cancel: cancel, done: make(chan error, 1)}

	s.mu.Lock()
	s.workers = append(s.workers, h)
	s.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.done <- fmt.Errorf("worker for user %s panicked: %v", userID, r)
			}
			close(h.done)
		}()
		if err := fn(workerCtx, userID, agentID); err != nil {
			h.done <- err
		}
	}()

	s.log.Debug("worker started", zap.String("user_id", userID))
}

// Active reports how many workers have been started and not yet shut
// down.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Shutdown cancels every worker and waits for each to exit. A worker
// returning context.Canceled counts as a clean stop; any other error is
// logged and folded into the returned error without blocking the
// remaining workers' shutdown. Shutdown is a no-op when nothing is
// running.
func (s *Supervisor) Shutdown() error {
	s.mu.Lock()
	workers := s.workers
	s.workers = nil
	s.mu.Unlock()

	var errs []error
	for _, h := range workers {
		h.cancel()
		err, ok := <-h.done
		if !ok || err == nil || errors.Is(err, context.Canceled) {
			s.log.Debug("worker stopped", zap.String("user_id", h.userID))
			continue
		}
		s.log.Warn("worker exited with error", zap.String("user_id", h.userID), zap.Error(err))
		errs = append(errs, fmt.Errorf("worker %s: %w", h.userID, err))
	}
	return errors.Join(errs...)
}
