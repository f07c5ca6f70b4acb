// Package onboarding implements the two onboarding collaborators. Both
// record a session row before invoking any external dependency, so a
// failed provisioning attempt still leaves an auditable session behind.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/store"
)

// Session statuses.
const (
	StatusPending         = "pending"
	StatusCompleted       = "completed"
	StatusFailed          = "failed"
	StatusInvitationsSent = "invitations_sent"
)

// ErrProvisionerUnavailable indicates the agent-provisioning dependency
// was not wired into the service.
var ErrProvisionerUnavailable = errors.New("agent provisioner unavailable")

// Provisioner is the agent-assignment dependency required to complete a
// user onboarding.
type Provisioner interface {
	GetOrCreate(ctx context.Context, name, email, phone, intakeForm string) (userID, agentID string, err error)
}

// UserOutcome reports where an onboarding attempt ended up. A session is
// always created; UserID and AgentID are set only on completion.
type UserOutcome struct {
	SessionID string
	Status    string
	UserID    string
	AgentID   string
}

// UserService onboards individual users.
type UserService struct {
	store       *store.UserOnboardingStore
	provisioner Provisioner
	log         *zap.Logger
}

// NewUserService wires the onboarding store and the optional
// provisioner. A nil provisioner makes every onboarding fail after the
// session row is written.
func NewUserService(sessions *store.UserOnboardingStore, provisioner Provisioner, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{store: sessions, provisioner: provisioner, log: log}
}

// Onboard records a session and attempts to provision the user's agent.
// The session row survives provisioning failure with a failed status.
func (s *UserService) Onboard(ctx context.Context, name, email, phone, intakeForm string) (UserOutcome, error) {
	now := time.Now().UTC()
	session := store.UserSession{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Phone:      phone,
		IntakeForm: intakeForm,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertSession(ctx, session); err != nil {
		return UserOutcome{}, fmt.Errorf("recording onboarding session for %s: %w", email, err)
	}

	outcome := UserOutcome{SessionID: session.ID, Status: StatusPending}

	if s.provisioner == nil {
		if err := s.store.UpdateSessionOutcome(ctx, session.ID, StatusFailed, "", ""); err != nil {
			s.log.Warn("marking session failed", zap.String("session_id", session.ID), zap.Error(err))
		}
		outcome.Status = StatusFailed
		return outcome, ErrProvisionerUnavailable
	}

	userID, agentID, err := s.provisioner.GetOrCreate(ctx, name, email, phone, intakeForm)
	if err != nil {
		if updateErr := s.store.UpdateSessionOutcome(ctx, session.ID, StatusFailed, "", ""); updateErr != nil {
			s.log.Warn("marking session failed", zap.String("session_id", session.ID), zap.Error(updateErr))
		}
		outcome.Status = StatusFailed
		return outcome, fmt.Errorf("provisioning agent for %s: %w", email, err)
	}

	if err := s.store.UpdateSessionOutcome(ctx, session.ID, StatusCompleted, userID, agentID); err != nil {
		return outcome, fmt.Errorf("completing onboarding session %s: %w", session.ID, err)
	}

	outcome.Status = StatusCompleted
	outcome.UserID = userID
	outcome.AgentID = agentID
	s.log.Info("user onboarded",
		zap.String("email", email),
		zap.String("session_id", session.ID),
		zap.String("user_id", userID))
	return outcome, nil
}
