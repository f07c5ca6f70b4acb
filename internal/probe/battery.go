// Package probe exercises the services with hostile inputs and records
// whether each holds up. Probes are independent: one failing never
// stops the rest.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mealmind/e2eharness/internal/agent"
	"github.com/mealmind/e2eharness/internal/config"
	"github.com/mealmind/e2eharness/internal/store"
)

// Probe names as they appear in the report.
const (
	NameDuplicateRegistration = "duplicate_registration"
	NameEmptyInteraction      = "empty_interaction"
	NameConcurrentRoundTrips  = "concurrent_round_trips"
	NameOversizedPayload      = "oversized_payload"
)

// Result is one probe's verdict.
type Result struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail"`
}

// Battery runs the error probes against the personal-agent service and
// its store.
type Battery struct {
	agents   *agent.Service
	personal *store.PersonalStore
	cfg      config.ProbeConfig
	log      *zap.Logger
}

func NewBattery(agents *agent.Service, personal *store.PersonalStore, cfg config.ProbeConfig, log *zap.Logger) *Battery {
	if log == nil {
		log = zap.NewNop()
	}
	return &Battery{agents: agents, personal: personal, cfg: cfg, log: log}
}

// Run executes every probe and returns a result per probe in battery
// order. A probe that panics is recorded as a failure.
func (b *Battery) Run(ctx context.Context, userID, agentID string) []Result {
	probes := []struct {
		name string
		fn   func(context.Context, string, string) Result
	}{
		{NameDuplicateRegistration, b.duplicateRegistration},
		{NameEmptyInteraction, b.emptyInteraction},
		{NameConcurrentRoundTrips, b.concurrentRoundTrips},
		{NameOversizedPayload, b.oversizedPayload},
	}

	results := make([]Result, 0, len(probes))
	for _, p := range probes {
		results = append(results, b.runOne(ctx, p.name, userID, agentID, p.fn))
	}
	return results
}

func (b *Battery) runOne(ctx context.Context, name, userID, agentID string, fn func(context.Context, string, string) Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("probe panicked", zap.String("probe", name), zap.Any("panic", r))
			res = Result{Name: name, Pass: false, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()
	res = fn(ctx, userID, agentID)
	b.log.Info("probe finished",
		zap.String("probe", res.Name),
		zap.Bool("pass", res.Pass),
		zap.String("detail", res.Detail))
	return res
}

// duplicateRegistration registers the same email twice and expects the
// second attempt to resolve to the first registration's IDs.
func (b *Battery) duplicateRegistration(ctx context.Context, _, _ string) Result {
	const (
		name  = "Probe Duplicate"
		email = "probe.duplicate@example.com"
	)

	userA, agentA, err := b.agents.GetOrCreate(ctx, name, email, "+10000000001", "duplicate probe intake")
	if err != nil {
		return Result{Name: NameDuplicateRegistration, Pass: false, Detail: fmt.Sprintf("first registration failed: %v", err)}
	}
	userB, agentB, err := b.agents.GetOrCreate(ctx, name, email, "+10000000001", "duplicate probe intake")
	if err != nil {
		return Result{Name: NameDuplicateRegistration, Pass: false, Detail: fmt.Sprintf("second registration failed: %v", err)}
	}
	if userA != userB || agentA != agentB {
		return Result{
			Name:   NameDuplicateRegistration,
			Pass:   false,
			Detail: fmt.Sprintf("duplicate email produced distinct identities: %s vs %s", userA, userB),
		}
	}
	return Result{Name: NameDuplicateRegistration, Pass: true, Detail: "duplicate email resolved to the existing registration"}
}

// emptyInteraction submits an empty message. Either storing it or
// rejecting it cleanly passes; only a crash or partial write fails.
func (b *Battery) emptyInteraction(ctx context.Context, userID, agentID string) Result {
	it := store.Interaction{
		ID:        ulid.Make().String(),
		UserID:    userID,
		AgentID:   agentID,
		Input:     "",
		Output:    "",
		CreatedAt: time.Now().UTC(),
	}
	if err := b.personal.InsertInteraction(ctx, it); err != nil {
		return Result{Name: NameEmptyInteraction, Pass: true, Detail: fmt.Sprintf("empty message rejected: %v", err)}
	}

	stored, err := b.personal.InteractionsByUser(ctx, userID)
	if err != nil {
		return Result{Name: NameEmptyInteraction, Pass: false, Detail: fmt.Sprintf("reading back stored message: %v", err)}
	}
	for _, s := range stored {
		if s.ID == it.ID {
			return Result{Name: NameEmptyInteraction, Pass: true, Detail: "empty message accepted and stored"}
		}
	}
	return Result{Name: NameEmptyInteraction, Pass: false, Detail: "empty message neither rejected nor stored"}
}

// concurrentRoundTrips fires the configured number of simultaneous
// write-then-read round trips and passes when the success ratio meets
// the threshold.
func (b *Battery) concurrentRoundTrips(ctx context.Context, userID, agentID string) Result {
	n := b.cfg.ConcurrentRoundTrips
	if n <= 0 {
		n = 1
	}

	results := make([]error, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			results[i] = b.roundTrip(gctx, userID, agentID, i)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	ratio := float64(succeeded) / float64(n)
	detail := fmt.Sprintf("%d/%d concurrent round trips succeeded (need %.0f%%)", succeeded, n, b.cfg.ConcurrencyThreshold*100)
	return Result{Name: NameConcurrentRoundTrips, Pass: ratio >= b.cfg.ConcurrencyThreshold, Detail: detail}
}

func (b *Battery) roundTrip(ctx context.Context, userID, agentID string, seq int) error {
	it := store.Interaction{
		ID:        ulid.Make().String(),
		UserID:    userID,
		AgentID:   agentID,
		Input:     fmt.Sprintf("concurrent probe message %d", seq),
		Output:    "acknowledged",
		CreatedAt: time.Now().UTC(),
	}
	if err := b.personal.InsertInteraction(ctx, it); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	stored, err := b.personal.InteractionsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	for _, s := range stored {
		if s.ID == it.ID {
			return nil
		}
	}
	return fmt.Errorf("message %s not found after write", it.ID)
}

// oversizedPayload submits a message of the configured size and expects
// either a clean rejection or lossless storage.
func (b *Battery) oversizedPayload(ctx context.Context, userID, agentID string) Result {
	size := b.cfg.OversizedPayloadSize
	if size <= 0 {
		size = 10_000
	}
	payload := strings.Repeat("x", size)

	it := store.Interaction{
		ID:        ulid.Make().String(),
		UserID:    userID,
		AgentID:   agentID,
		Input:     payload,
		Output:    "acknowledged",
		CreatedAt: time.Now().UTC(),
	}
	if err := b.personal.InsertInteraction(ctx, it); err != nil {
		return Result{Name: NameOversizedPayload, Pass: true, Detail: fmt.Sprintf("%d-byte message rejected: %v", size, err)}
	}

	stored, err := b.personal.InteractionsByUser(ctx, userID)
	if err != nil {
		return Result{Name: NameOversizedPayload, Pass: false, Detail: fmt.Sprintf("reading back oversized message: %v", err)}
	}
	for _, s := range stored {
		if s.ID == it.ID {
			if len(s.Input) != size {
				return Result{
					Name:   NameOversizedPayload,
					Pass:   false,
					Detail: fmt.Sprintf("oversized message truncated: stored %d of %d bytes", len(s.Input), size),
				}
			}
			return Result{Name: NameOversizedPayload, Pass: true, Detail: fmt.Sprintf("%d-byte message stored intact", size)}
		}
	}
	return Result{Name: NameOversizedPayload, Pass: false, Detail: "oversized message neither rejected nor stored"}
}
