package suite

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/agent"
	"github.com/mealmind/e2eharness/internal/config"
	"github.com/mealmind/e2eharness/internal/group"
	"github.com/mealmind/e2eharness/internal/metrics"
	"github.com/mealmind/e2eharness/internal/onboarding"
	"github.com/mealmind/e2eharness/internal/probe"
	"github.com/mealmind/e2eharness/internal/scenario"
	"github.com/mealmind/e2eharness/internal/store"
	"github.com/mealmind/e2eharness/internal/supervisor"
)

func newHarness(t *testing.T, cfg *config.Config) *Harness {
	t.Helper()

	stores, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = stores.Close() })

	log := zap.NewNop()
	agents := agent.NewService(stores.Personal, log)
	collector := metrics.NewCollector()
	pacer := NewPacer(cfg.RateLimit)

	return &Harness{
		Stores:          stores,
		Agents:          agents,
		Worker:          agent.NewWorker(stores.Personal, log).WithPollInterval(10 * time.Millisecond),
		Groups:          group.NewService(stores.Group, log),
		UserOnboarding:  onboarding.NewUserService(stores.UserOnboarding, agents, log),
		GroupOnboarding: onboarding.NewGroupService(stores.GroupOnboarding, log),
		Workers:         supervisor.New(log),
		Scheduler:       NewScheduler(stores.Personal, pacer, collector, cfg.RateLimit, log),
		Battery:         probe.NewBattery(agents, stores.Personal, cfg.Probes, log),
		Log:             log,
	}
}

func harnessConfig() *config.Config {
	cfg := config.Default()
	cfg.RateLimit.DelayBetweenMessages = 0
	cfg.RateLimit.DelayBetweenUsers = 0
	cfg.RateLimit.WorkerStartupWait = 50 * time.Millisecond
	// Enough for the 10ms pollers to drain every message.
	cfg.RateLimit.BackendProcessingWait = 1500 * time.Millisecond
	cfg.RateLimit.MaxMessagesPerUser = 2
	cfg.Probes.ConcurrentRoundTrips = 4
	cfg.Probes.OversizedPayloadSize = 20_000
	return cfg
}

func TestFullSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("full suite run")
	}

	cfg := harnessConfig()
	h := newHarness(t, cfg)
	rc := NewRunContext(scenario.Default(), *cfg)

	NewOrchestrator(h.Phases(), h.Cleanup, nil, nil).Run(context.Background(), rc)

	outcomes := rc.Outcomes()
	if len(outcomes) != 8 {
		t.Fatalf("recorded %d outcomes, want 8", len(outcomes))
	}

	wantOrder := []string{
		PhaseDatabaseReset,
		PhaseUserOnboarding,
		PhaseAgentAssignment,
		PhaseRateLimitedSending,
		PhaseBackendProcessing,
		PhaseErrorProbes,
		PhaseGroupOnboarding,
		PhaseGroupCreation,
	}
	for i, o := range outcomes {
		if o.Name != wantOrder[i] {
			t.Errorf("phase %d = %s, want %s", i, o.Name, wantOrder[i])
		}
		if !o.Success {
			t.Errorf("phase %s failed: %s", o.Name, o.Message)
		}
	}

	// The message cap held: 2 of each user's 5 messages were stored.
	ctx := context.Background()
	for _, u := range rc.Users() {
		count, err := h.Stores.Personal.CountInteractions(ctx, u.UserID)
		if err != nil {
			t.Fatalf("CountInteractions(%s): %v", u.Name, err)
		}
		// The first user also absorbs the probe traffic.
		if u.UserID == rc.Users()[0].UserID {
			if count < 2 {
				t.Errorf("user %s has %d interactions, want at least 2", u.Name, count)
			}
			continue
		}
		if count != 2 {
			t.Errorf("user %s has %d interactions, want exactly 2", u.Name, count)
		}
	}

	if len(rc.ProbeResults()) != 4 {
		t.Errorf("probe results = %d, want 4", len(rc.ProbeResults()))
	}
	if rc.Snapshot.MemberCount() != 3 {
		t.Errorf("group snapshot has %d members, want 3", rc.Snapshot.MemberCount())
	}
	sessionID, invited := rc.Snapshot.Session()
	if sessionID == "" {
		t.Error("group snapshot has no onboarding session id")
	}
	if len(invited) != 2 {
		t.Errorf("group snapshot invited %d users, want 2", len(invited))
	}
	creatorID := rc.Users()[0].UserID
	for _, id := range invited {
		if id == creatorID {
			t.Errorf("invited list contains the creator %s", id)
		}
	}

	// Cleanup already ran through the orchestrator.
	if h.Workers.Active() != 0 {
		t.Errorf("%d workers still active after cleanup", h.Workers.Active())
	}
}

func TestGroupOnboardingNeedsThreeUsers(t *testing.T) {
	cfg := harnessConfig()
	h := newHarness(t, cfg)
	rc := NewRunContext(nil, *cfg)
	rc.AddUser(ProvisionedUser{Name: "Solo", UserID: "u1", AgentID: "a1"})

	outcome := h.Phases()[6].Run(context.Background(), rc)
	if outcome.Success {
		t.Fatal("group onboarding with one user should fail")
	}
}

func TestPhasesWithNoUsers(t *testing.T) {
	cfg := harnessConfig()
	h := newHarness(t, cfg)
	rc := NewRunContext(nil, *cfg)

	for _, idx := range []int{2, 3, 4, 5, 7} {
		phase := h.Phases()[idx]
		outcome := phase.Run(context.Background(), rc)
		if outcome.Success {
			t.Errorf("phase %s succeeded with no onboarded users", phase.Name)
		}
	}
}
