// Package report aggregates a harness run into a readiness report.
package report

import (
	"context"
	"time"

	"github.com/mealmind/e2eharness/internal/config"
	"github.com/mealmind/e2eharness/internal/metrics"
	"github.com/mealmind/e2eharness/internal/probe"
	"github.com/mealmind/e2eharness/internal/store"
	"github.com/mealmind/e2eharness/internal/suite"
)

// Readiness tiers.
const (
	ReadinessExcellent = "excellent"
	ReadinessGood      = "good"
	ReadinessNeedsWork = "needs_work"
)

// UserSummary is one user's footprint in the personal store.
type UserSummary struct {
	Name     string `json:"name"`
	UserID   string `json:"user_id"`
	Messages int64  `json:"messages"`
}

// GroupSummary is the group recorded during the run, including the
// onboarding session that preceded it.
type GroupSummary struct {
	GroupID    string   `json:"group_id"`
	GroupName  string   `json:"group_name"`
	CreatorID  string   `json:"creator_id"`
	SessionID  string   `json:"session_id,omitempty"`
	InvitedIDs []string `json:"invited_ids,omitempty"`
	Members    []string `json:"members"`
}

// StoreCheck is one store's post-run verification. Error captures a
// per-store failure without failing the whole report.
type StoreCheck struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Tables int    `json:"tables"`
	Rows   int64  `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// PacingSummary echoes the pacing the run was driven with.
type PacingSummary struct {
	DelayBetweenMessages  string `json:"delay_between_messages"`
	DelayBetweenUsers     string `json:"delay_between_users"`
	BackendProcessingWait string `json:"backend_processing_wait"`
	MaxMessagesPerUser    int    `json:"max_messages_per_user"`
}

// Report is the full aggregated run result.
type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"-"`
	DurationMs float64       `json:"duration_ms"`

	Phases      []suite.Outcome `json:"phases"`
	Total       int             `json:"total"`
	Passed      int             `json:"passed"`
	Failed      int             `json:"failed"`
	SuccessRate float64         `json:"success_rate"`

	Users           []UserSummary    `json:"users"`
	Group           *GroupSummary    `json:"group,omitempty"`
	Probes          []probe.Result   `json:"probes,omitempty"`
	Stores          []StoreCheck     `json:"stores"`
	Ops             metrics.Snapshot `json:"ops"`
	Pacing          PacingSummary    `json:"pacing"`
	CalendarEntries int              `json:"calendar_entries"`

	Readiness string `json:"readiness"`
}

// Build assembles the report from the run context, the stores, and the
// collected metrics. Store verification errors are recorded per store
// rather than aborting the build.
func Build(ctx context.Context, rc *suite.RunContext, stores *store.Stores, collector *metrics.Collector, cfg config.ReadinessConfig, startedAt time.Time) Report {
	r := Report{
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Phases:    rc.Outcomes(),
		Probes:    rc.ProbeResults(),
		Ops:       collector.Snapshot(),
	}
	r.DurationMs = float64(r.Duration) / float64(time.Millisecond)

	rl := rc.Policy.RateLimit
	r.Pacing = PacingSummary{
		DelayBetweenMessages:  rl.DelayBetweenMessages.String(),
		DelayBetweenUsers:     rl.DelayBetweenUsers.String(),
		BackendProcessingWait: rl.BackendProcessingWait.String(),
		MaxMessagesPerUser:    rl.MaxMessagesPerUser,
	}

	r.Total = len(r.Phases)
	for _, p := range r.Phases {
		if p.Success {
			r.Passed++
		} else {
			r.Failed++
		}
	}
	if r.Total > 0 {
		r.SuccessRate = float64(r.Passed) / float64(r.Total) * 100
	}

	for _, u := range rc.Users() {
		summary := UserSummary{Name: u.Name, UserID: u.UserID}
		if n, err := stores.Personal.CountInteractions(ctx, u.UserID); err == nil {
			summary.Messages = int64(n)
		}
		r.Users = append(r.Users, summary)
	}

	if n, err := stores.Personal.CountCalendarEntries(ctx); err == nil {
		r.CalendarEntries = n
	}

	groupID, groupName, creatorID := rc.Snapshot.Group()
	sessionID, invitedIDs := rc.Snapshot.Session()
	if groupID != "" || sessionID != "" {
		r.Group = &GroupSummary{
			GroupID:    groupID,
			GroupName:  groupName,
			CreatorID:  creatorID,
			SessionID:  sessionID,
			InvitedIDs: invitedIDs,
			Members:    rc.Snapshot.Members(),
		}
	}

	for _, st := range stores.All() {
		check := StoreCheck{Name: st.Name(), Path: st.Path()}
		tables, err := st.Tables(ctx)
		if err != nil {
			check.Error = err.Error()
			r.Stores = append(r.Stores, check)
			continue
		}
		check.Tables = len(tables)
		rows, err := st.ApproxRows(ctx)
		if err != nil {
			check.Error = err.Error()
		} else {
			check.Rows = rows
		}
		r.Stores = append(r.Stores, check)
	}

	r.Readiness = classify(r.Failed, cfg.MinorIssueLimit)
	return r
}

// classify maps the failure count to a readiness tier.
func classify(failed, minorIssueLimit int) string {
	switch {
	case failed == 0:
		return ReadinessExcellent
	case failed <= minorIssueLimit:
		return ReadinessGood
	default:
		return ReadinessNeedsWork
	}
}
