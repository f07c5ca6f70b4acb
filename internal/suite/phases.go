package suite

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/agent"
	"github.com/mealmind/e2eharness/internal/group"
	"github.com/mealmind/e2eharness/internal/onboarding"
	"github.com/mealmind/e2eharness/internal/probe"
	"github.com/mealmind/e2eharness/internal/store"
	"github.com/mealmind/e2eharness/internal/supervisor"
)

// Phase names in execution order.
const (
	PhaseDatabaseReset      = "database_reset"
	PhaseUserOnboarding     = "user_onboarding"
	PhaseAgentAssignment    = "personal_agent_assignment"
	PhaseRateLimitedSending = "rate_limited_interactions"
	PhaseBackendProcessing  = "backend_processing_verification"
	PhaseErrorProbes        = "error_probes"
	PhaseGroupOnboarding    = "group_onboarding"
	PhaseGroupCreation      = "group_creation_direct"
)

const directGroupName = "Family Meal Planning"

// Harness bundles the services the phases operate on.
type Harness struct {
	Stores          *store.Stores
	Agents          *agent.Service
	Worker          *agent.Worker
	Groups          *group.Service
	UserOnboarding  *onboarding.UserService
	GroupOnboarding *onboarding.GroupService
	Workers         *supervisor.Supervisor
	Scheduler       *Scheduler
	Battery         *probe.Battery
	Log             *zap.Logger
}

// Phases returns the full suite in execution order.
func (h *Harness) Phases() []Phase {
	return []Phase{
		{Name: PhaseDatabaseReset, Run: h.resetDatabases},
		{Name: PhaseUserOnboarding, Run: h.onboardUsers},
		{Name: PhaseAgentAssignment, Run: h.verifyAgentAssignment},
		{Name: PhaseRateLimitedSending, Run: h.sendInteractions},
		{Name: PhaseBackendProcessing, Run: h.verifyBackendProcessing},
		{Name: PhaseErrorProbes, Run: h.runErrorProbes},
		{Name: PhaseGroupOnboarding, Run: h.onboardGroup},
		{Name: PhaseGroupCreation, Run: h.createGroupDirect},
	}
}

// Cleanup shuts down the background workers. It is safe to call when
// no workers were started.
func (h *Harness) Cleanup(_ context.Context) error {
	return h.Workers.Shutdown()
}

func fail(format string, args ...any) Outcome {
	return Outcome{Success: false, Message: fmt.Sprintf(format, args...)}
}

func pass(format string, args ...any) Outcome {
	return Outcome{Success: true, Message: fmt.Sprintf(format, args...)}
}

// resetDatabases wipes every store so the run starts from a known
// state.
func (h *Harness) resetDatabases(ctx context.Context, _ *RunContext) Outcome {
	for _, st := range h.Stores.All() {
		if err := st.Reset(ctx); err != nil {
			return fail("resetting %s store: %v", st.Name(), err)
		}
	}
	return pass("all %d stores reset", len(h.Stores.All()))
}

// onboardUsers runs every scenario user through the onboarding
// service. One user failing does not stop the rest; the phase fails if
// nobody onboarded.
func (h *Harness) onboardUsers(ctx context.Context, rc *RunContext) Outcome {
	var failed []string
	for _, u := range rc.Scenario {
		out, err := h.UserOnboarding.Onboard(ctx, u.Name, u.Email, u.Phone, u.IntakeForm)
		if err != nil {
			h.Log.Warn("onboarding failed", zap.String("user", u.Name), zap.Error(err))
			failed = append(failed, u.Name)
			continue
		}
		rc.AddUser(ProvisionedUser{
			Name:         u.Name,
			Email:        u.Email,
			UserID:       out.UserID,
			AgentID:      out.AgentID,
			DemoMessages: u.DemoMessages,
		})
	}

	onboarded := len(rc.Users())
	if onboarded == 0 {
		return fail("no users onboarded out of %d", len(rc.Scenario))
	}
	if len(failed) > 0 {
		return fail("onboarded %d of %d users; failed: %s", onboarded, len(rc.Scenario), strings.Join(failed, ", "))
	}
	return pass("onboarded %d users", onboarded)
}

// verifyAgentAssignment checks each onboarded user persisted with an
// assigned agent, then starts that user's background worker.
func (h *Harness) verifyAgentAssignment(ctx context.Context, rc *RunContext) Outcome {
	users := rc.Users()
	if len(users) == 0 {
		return fail("no onboarded users to verify")
	}

	for _, u := range users {
		rec, err := h.Stores.Personal.UserByEmail(ctx, u.Email)
		if err != nil {
			return fail("looking up %s: %v", u.Name, err)
		}
		if rec == nil {
			return fail("user %s missing from personal store", u.Name)
		}
		if rec.AgentID == "" || rec.AgentID != u.AgentID {
			return fail("user %s has wrong agent assignment %q", u.Name, rec.AgentID)
		}
		h.Workers.Start(ctx, u.UserID, u.AgentID, h.Worker.Run)
	}

	if err := Sleep(ctx, rc.Policy.RateLimit.WorkerStartupWait); err != nil {
		return fail("waiting for workers: %v", err)
	}
	return pass("%d agents assigned, %d workers running", len(users), h.Workers.Active())
}

// sendInteractions delivers each user's demo messages at the
// configured pace.
func (h *Harness) sendInteractions(ctx context.Context, rc *RunContext) Outcome {
	users := rc.Users()
	if len(users) == 0 {
		return fail("no onboarded users to message")
	}
	sent, err := h.Scheduler.Run(ctx, users)
	if err != nil {
		return fail("after %d messages: %v", sent, err)
	}
	return pass("sent %d messages across %d users", sent, len(users))
}

// verifyBackendProcessing confirms the workers folded each user's
// messages into their persona.
func (h *Harness) verifyBackendProcessing(ctx context.Context, rc *RunContext) Outcome {
	users := rc.Users()
	if len(users) == 0 {
		return fail("no onboarded users to verify")
	}

	for _, u := range users {
		persona, err := h.Stores.Personal.Persona(ctx, u.UserID)
		if err != nil {
			return fail("reading persona for %s: %v", u.Name, err)
		}
		if persona == nil {
			return fail("user %s has no persona", u.Name)
		}

		factCount := gjson.Get(persona.Data, "fact_count").Int()
		facts := gjson.Get(persona.Data, "facts").Array()
		if factCount == 0 || int(factCount) != len(facts) {
			return fail("user %s persona inconsistent: fact_count=%d facts=%d", u.Name, factCount, len(facts))
		}

		pending, err := h.Stores.Personal.UnprocessedInteractions(ctx, u.UserID, 1)
		if err != nil {
			return fail("checking pending messages for %s: %v", u.Name, err)
		}
		if len(pending) > 0 {
			return fail("user %s still has unprocessed messages", u.Name)
		}
	}

	entries, err := h.Stores.Personal.CountCalendarEntries(ctx)
	if err != nil {
		return fail("counting calendar entries: %v", err)
	}
	return pass("%d personas updated, %d calendar entries, no messages pending", len(users), entries)
}

// runErrorProbes fires the probe battery against the first onboarded
// user.
func (h *Harness) runErrorProbes(ctx context.Context, rc *RunContext) Outcome {
	users := rc.Users()
	if len(users) == 0 {
		return fail("no onboarded user to probe")
	}

	results := h.Battery.Run(ctx, users[0].UserID, users[0].AgentID)
	rc.SetProbes(results)

	var failed []string
	for _, r := range results {
		if !r.Pass {
			failed = append(failed, r.Name)
		}
	}
	if len(failed) > 0 {
		return fail("%d of %d probes failed: %s", len(failed), len(results), strings.Join(failed, ", "))
	}
	return pass("all %d probes passed", len(results))
}

// onboardGroup runs the invitation-based group flow with the first
// user as creator.
func (h *Harness) onboardGroup(ctx context.Context, rc *RunContext) Outcome {
	users := rc.Users()
	if len(users) < 3 {
		return fail("group onboarding requires at least 3 onboarded users, have %d", len(users))
	}

	creator := users[0]
	memberIDs := make([]string, 0, len(users))
	for _, u := range users {
		memberIDs = append(memberIDs, u.UserID)
	}

	out, err := h.GroupOnboarding.CreateGroup(ctx, directGroupName, creator.UserID, memberIDs)
	if err != nil {
		return fail("creating group onboarding session: %v", err)
	}
	if len(out.InvitedIDs) != len(users)-1 {
		return fail("invited %d members, expected %d", len(out.InvitedIDs), len(users)-1)
	}

	session, err := h.Stores.GroupOnboarding.SessionByCreator(ctx, creator.UserID)
	if err != nil {
		return fail("reading back onboarding session: %v", err)
	}
	if session == nil || session.Status != onboarding.StatusInvitationsSent {
		return fail("onboarding session not persisted with invitations sent")
	}

	rc.Snapshot.SetSession(out.SessionID, out.InvitedIDs)
	return pass("group session %s created, %d invitations sent", out.SessionID, len(out.InvitedIDs))
}

// createGroupDirect creates the group in the group store, adds every
// user, and verifies duplicate membership is rejected.
func (h *Harness) createGroupDirect(ctx context.Context, rc *RunContext) Outcome {
	users := rc.Users()
	if len(users) == 0 {
		return fail("no onboarded users to add")
	}

	groupID, err := h.Groups.CreateGroup(ctx, directGroupName)
	if err != nil {
		return fail("creating group: %v", err)
	}
	rc.Snapshot.SetGroup(groupID, directGroupName, users[0].UserID)

	for _, u := range users {
		added, err := h.Groups.AddMember(ctx, groupID, u.UserID, u.Name, u.Email)
		if err != nil {
			return fail("adding %s: %v", u.Name, err)
		}
		if !added {
			return fail("user %s unexpectedly already a member", u.Name)
		}
		rc.Snapshot.AddMember(u.UserID, u.Name)
	}

	// Duplicate membership must be a no-op, not an error.
	added, err := h.Groups.AddMember(ctx, groupID, users[0].UserID, users[0].Name, users[0].Email)
	if err != nil {
		return fail("re-adding %s: %v", users[0].Name, err)
	}
	if added {
		return fail("duplicate membership for %s was accepted", users[0].Name)
	}

	members, err := h.Groups.ListMembers(ctx, groupID)
	if err != nil {
		return fail("listing members: %v", err)
	}
	if len(members) != len(users) {
		return fail("group has %d members, expected %d", len(members), len(users))
	}
	return pass("group %s created with %d members", groupID, len(members))
}
