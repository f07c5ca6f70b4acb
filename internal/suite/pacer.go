package suite

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/mealmind/e2eharness/internal/config"
)

// Pacer enforces the configured gaps between consecutive messages and
// between consecutive users.
type Pacer struct {
	message *rate.Limiter
	user    *rate.Limiter
}

func newLimiter(gap time.Duration) *rate.Limiter {
	if gap <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(gap), 1)
}

func NewPacer(cfg config.RateLimitConfig) *Pacer {
	return &Pacer{
		message: newLimiter(cfg.DelayBetweenMessages),
		user:    newLimiter(cfg.DelayBetweenUsers),
	}
}

// waitGap spends a token accrued while the limiter sat idle before
// waiting, so a gap is never skipped after a pause elsewhere in the
// run.
func waitGap(ctx context.Context, l *rate.Limiter) error {
	l.Allow()
	return l.Wait(ctx)
}

// MessageGap blocks for the configured gap before the next message or
// until the context is cancelled.
func (p *Pacer) MessageGap(ctx context.Context) error {
	return waitGap(ctx, p.message)
}

// UserGap blocks for the configured gap before the next user's turn or
// until the context is cancelled.
func (p *Pacer) UserGap(ctx context.Context) error {
	return waitGap(ctx, p.user)
}

// Sleep waits for d unless the context is cancelled first. A
// non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
