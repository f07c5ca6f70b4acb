// Package group implements the group-membership collaborator.
package group

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/store"
)

// Member is one entry in a group's ordered membership listing.
type Member struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

// Service creates groups and manages their membership.
type Service struct {
	store *store.GroupStore
	log   *zap.Logger
}

func NewService(groups *store.GroupStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: groups, log: log}
}

// CreateGroup creates an empty group and returns its identifier.
func (s *Service) CreateGroup(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("group name is required")
	}
	rec := store.GroupRecord{
		GroupID:   uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertGroup(ctx, rec); err != nil {
		return "", fmt.Errorf("creating group %q: %w", name, err)
	}
	s.log.Info("group created", zap.String("group_id", rec.GroupID), zap.String("name", name))
	return rec.GroupID, nil
}

// AddMember adds a user to a group as a regular member. Returns false
// without error when the user is already a member.
func (s *Service) AddMember(ctx context.Context, groupID, userID, userName, userEmail string) (bool, error) {
	err := s.store.InsertMember(ctx, store.MemberRecord{
		GroupID:   groupID,
		UserID:    userID,
		UserName:  userName,
		UserEmail: userEmail,
		Role:      "member",
		JoinedAt:  time.Now().UTC(),
	})
	if err != nil {
		existing, lookupErr := s.store.MembersByGroup(ctx, groupID)
		if lookupErr == nil {
			for _, m := range existing {
				if m.UserID == userID {
					s.log.Debug("member already in group",
						zap.String("group_id", groupID), zap.String("user_id", userID))
					return false, nil
				}
			}
		}
		return false, fmt.Errorf("adding %s to group %s: %w", userID, groupID, err)
	}
	s.log.Debug("member added", zap.String("group_id", groupID), zap.String("user_id", userID))
	return true, nil
}

// ListMembers returns the group's members in join order.
func (s *Service) ListMembers(ctx context.Context, groupID string) ([]Member, error) {
	records, err := s.store.MembersByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", groupID, err)
	}
	members := make([]Member, 0, len(records))
	for _, rec := range records {
		members = append(members, Member{
			UserID:   rec.UserID,
			UserName: rec.UserName,
			Role:     rec.Role,
		})
	}
	return members, nil
}
