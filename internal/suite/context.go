// Package suite orchestrates the end-to-end test phases against the
// service stores and aggregates their outcomes.
package suite

import (
	"sync"
	"time"

	"github.com/mealmind/e2eharness/internal/config"
	"github.com/mealmind/e2eharness/internal/probe"
	"github.com/mealmind/e2eharness/internal/scenario"
)

// ProvisionedUser is a scenario user after onboarding, carrying the IDs
// the services assigned.
type ProvisionedUser struct {
	Name         string
	Email        string
	UserID       string
	AgentID      string
	DemoMessages []string
}

// GroupSnapshot accumulates facts about the group created during the
// run. Each field is written once by the phase that learns it.
type GroupSnapshot struct {
	mu sync.Mutex

	groupID     string
	groupName   string
	creatorID   string
	sessionID   string
	invitedIDs  []string
	memberIDs   []string
	memberNames []string
}

// SetGroup records the created group's identity. Later calls are
// ignored so a retried phase cannot clobber the first write.
func (g *GroupSnapshot) SetGroup(groupID, groupName, creatorID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.groupID != "" {
		return
	}
	g.groupID = groupID
	g.groupName = groupName
	g.creatorID = creatorID
}

// SetSession records the onboarding session and who it invited. Later
// calls are ignored like SetGroup.
func (g *GroupSnapshot) SetSession(sessionID string, invitedIDs []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionID != "" {
		return
	}
	g.sessionID = sessionID
	g.invitedIDs = append([]string(nil), invitedIDs...)
}

// Session returns the recorded onboarding session id and invited ids.
func (g *GroupSnapshot) Session() (sessionID string, invitedIDs []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID, append([]string(nil), g.invitedIDs...)
}

// AddMember appends a member in join order, skipping IDs already
// recorded.
func (g *GroupSnapshot) AddMember(userID, userName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range g.memberIDs {
		if id == userID {
			return
		}
	}
	g.memberIDs = append(g.memberIDs, userID)
	g.memberNames = append(g.memberNames, userName)
}

// Group returns the recorded group identity.
func (g *GroupSnapshot) Group() (groupID, groupName, creatorID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.groupID, g.groupName, g.creatorID
}

// Members returns member names in join order.
func (g *GroupSnapshot) Members() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.memberNames))
	copy(out, g.memberNames)
	return out
}

// MemberCount returns how many members joined.
func (g *GroupSnapshot) MemberCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.memberIDs)
}

// Outcome is the recorded result of one phase.
type Outcome struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"-"`

	DurationMs float64 `json:"duration_ms"`
}

// RunContext carries everything the phases share: the scenario, the
// run policy, the users provisioned so far, and the accumulated
// results.
type RunContext struct {
	Scenario []scenario.User
	Policy   config.Config

	mu       sync.Mutex
	users    []ProvisionedUser
	order    []string
	outcomes map[string]Outcome

	Snapshot GroupSnapshot
	Probes   []probe.Result
}

func NewRunContext(users []scenario.User, policy config.Config) *RunContext {
	return &RunContext{
		Scenario: users,
		Policy:   policy,
		outcomes: make(map[string]Outcome),
	}
}

// AddUser appends a provisioned user in onboarding order.
func (rc *RunContext) AddUser(u ProvisionedUser) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.users = append(rc.users, u)
}

// Users returns the provisioned users in onboarding order.
func (rc *RunContext) Users() []ProvisionedUser {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]ProvisionedUser, len(rc.users))
	copy(out, rc.users)
	return out
}

// Record stores a phase outcome under its phase name. The first record
// for a name fixes its position in report order; a later record for the
// same name overwrites the value in place.
func (rc *RunContext) Record(o Outcome) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, seen := rc.outcomes[o.Name]; !seen {
		rc.order = append(rc.order, o.Name)
	}
	o.DurationMs = float64(o.Duration) / float64(time.Millisecond)
	rc.outcomes[o.Name] = o
}

// Recorded reports whether the named phase already has an outcome.
func (rc *RunContext) Recorded(name string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	_, ok := rc.outcomes[name]
	return ok
}

// Outcomes returns all recorded outcomes in record order.
func (rc *RunContext) Outcomes() []Outcome {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]Outcome, 0, len(rc.order))
	for _, name := range rc.order {
		out = append(out, rc.outcomes[name])
	}
	return out
}

// SetProbes stores the error-probe battery results.
func (rc *RunContext) SetProbes(results []probe.Result) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Probes = results
}

// ProbeResults returns the stored probe results.
func (rc *RunContext) ProbeResults() []probe.Result {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]probe.Result, len(rc.Probes))
	copy(out, rc.Probes)
	return out
}
