package store

import (
	"context"
	"testing"
	"time"
)

func TestUserSessionLifecycle(t *testing.T) {
	s, err := OpenUserOnboarding(t.TempDir())
	if err != nil {
		t.Fatalf("OpenUserOnboarding: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	rec := UserSession{
		ID:         "s1",
		Name:       "Alice",
		Email:      "alice@example.com",
		Phone:      "+15550002222",
		IntakeForm: "intake",
		Status:     "pending",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.InsertSession(ctx, rec); err != nil {
		t.Fatalf("InsertSession: %v", err)
	}

	if err := s.UpdateSessionOutcome(ctx, "s1", "completed", "u1", "a1"); err != nil {
		t.Fatalf("UpdateSessionOutcome: %v", err)
	}

	got, err := s.SessionByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("SessionByEmail: %v", err)
	}
	if got == nil {
		t.Fatal("SessionByEmail returned nil")
	}
	if got.Status != "completed" || got.UserID != "u1" || got.AgentID != "a1" {
		t.Errorf("session = %+v, want completed with u1/a1", got)
	}

	count, err := s.CountSessions(ctx)
	if err != nil {
		t.Fatalf("CountSessions: %v", err)
	}
	if count != 1 {
		t.Errorf("CountSessions = %d, want 1", count)
	}
}

func TestSessionByEmailReturnsLatest(t *testing.T) {
	s, err := OpenUserOnboarding(t.TempDir())
	if err != nil {
		t.Fatalf("OpenUserOnboarding: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	base := UserSession{
		Name:      "Bob",
		Email:     "bob@example.com",
		Status:    "failed",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	first := base
	first.ID = "s-old"
	second := base
	second.ID = "s-new"
	second.Status = "completed"

	if err := s.InsertSession(ctx, first); err != nil {
		t.Fatalf("InsertSession: %v", err)
	}
	if err := s.InsertSession(ctx, second); err != nil {
		t.Fatalf("InsertSession: %v", err)
	}

	got, err := s.SessionByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("SessionByEmail: %v", err)
	}
	if got == nil || got.ID != "s-new" {
		t.Errorf("SessionByEmail = %+v, want latest session s-new", got)
	}
}

func TestGroupSessionRoundTrip(t *testing.T) {
	s, err := OpenGroupOnboarding(t.TempDir())
	if err != nil {
		t.Fatalf("OpenGroupOnboarding: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	rec := GroupSession{
		ID:            "gs1",
		GroupName:     "Dinner Club",
		CreatorUserID: "u1",
		InvitedIDs:    []string{"u2", "u3"},
		JoinedIDs:     []string{},
		Status:        "invitations_sent",
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.InsertSession(ctx, rec); err != nil {
		t.Fatalf("InsertSession: %v", err)
	}

	got, err := s.SessionByCreator(ctx, "u1")
	if err != nil {
		t.Fatalf("SessionByCreator: %v", err)
	}
	if got == nil {
		t.Fatal("SessionByCreator returned nil")
	}
	if got.GroupName != rec.GroupName || got.Status != rec.Status {
		t.Errorf("session = %+v", got)
	}
	if len(got.InvitedIDs) != 2 || got.InvitedIDs[0] != "u2" || got.InvitedIDs[1] != "u3" {
		t.Errorf("InvitedIDs = %v, want [u2 u3]", got.InvitedIDs)
	}

	if absent, err := s.SessionByCreator(ctx, "nobody"); err != nil || absent != nil {
		t.Errorf("SessionByCreator(nobody) = %+v, %v, want nil, nil", absent, err)
	}

	count, err := s.CountSessions(ctx)
	if err != nil {
		t.Fatalf("CountSessions: %v", err)
	}
	if count != 1 {
		t.Errorf("CountSessions = %d, want 1", count)
	}
}
