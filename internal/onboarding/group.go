package onboarding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/store"
)

// GroupOutcome reports the session recorded for a group creation flow.
type GroupOutcome struct {
	SessionID  string
	Status     string
	InvitedIDs []string
}

// GroupService onboards groups by recording an invitation session. The
// invited set excludes the creator; joining is acknowledged separately
// by the group service itself.
type GroupService struct {
	store *store.GroupOnboardingStore
	log   *zap.Logger
}

func NewGroupService(sessions *store.GroupOnboardingStore, log *zap.Logger) *GroupService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GroupService{store: sessions, log: log}
}

// CreateGroup records a group onboarding session with invitations sent
// to every listed member except the creator.
func (s *GroupService) CreateGroup(ctx context.Context, groupName, creatorID string, memberIDs []string) (GroupOutcome, error) {
	invited := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == creatorID || id == "" {
			continue
		}
		invited = append(invited, id)
	}

	session := store.GroupSession{
		ID:            uuid.NewString(),
		GroupName:     groupName,
		CreatorUserID: creatorID,
		InvitedIDs:    invited,
		JoinedIDs:     []string{},
		Status:        StatusInvitationsSent,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.InsertSession(ctx, session); err != nil {
		return GroupOutcome{}, fmt.Errorf("recording group onboarding session for %q: %w", groupName, err)
	}

	s.log.Info("group onboarding started",
		zap.String("group", groupName),
		zap.String("session_id", session.ID),
		zap.Int("invited", len(invited)))
	return GroupOutcome{SessionID: session.ID, Status: session.Status, InvitedIDs: invited}, nil
}
