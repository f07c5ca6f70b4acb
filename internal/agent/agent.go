// Package agent implements the personal-agent collaborator: user
// registration with agent assignment, and the backend worker that folds
// pending interactions into each user's persona document.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/store"
)

// Service registers users with the personal-agent subsystem.
type Service struct {
	store *store.PersonalStore
	log   *zap.Logger
}

func NewService(personal *store.PersonalStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: personal, log: log}
}

// GetOrCreate registers a user and assigns an agent. Idempotent on
// email: re-invoking with a registered email returns the identifiers
// assigned by the first call instead of creating a duplicate.
func (s *Service) GetOrCreate(ctx context.Context, name, email, phone, intakeForm string) (userID, agentID string, err error) {
	existing, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return "", "", fmt.Errorf("looking up user by email: %w", err)
	}
	if existing != nil {
		s.log.Debug("user already registered",
			zap.String("email", email),
			zap.String("user_id", existing.UserID))
		return existing.UserID, existing.AgentID, nil
	}

	now := time.Now().UTC()
	rec := store.UserRecord{
		UserID:     uuid.NewString(),
		AgentID:    uuid.NewString(),
		Name:       name,
		Email:      email,
		Phone:      phone,
		IntakeForm: intakeForm,
		CreatedAt:  now,
	}
	if err := s.store.InsertUser(ctx, rec); err != nil {
		return "", "", fmt.Errorf("registering user %s: %w", email, err)
	}

	// Seed the persona from the intake form so the backend worker has a
	// document to extend.
	doc, err := newPersonaDoc(intakeForm, now)
	if err != nil {
		return "", "", err
	}
	if err := s.store.UpsertPersona(ctx, store.PersonaRecord{
		UserID:    rec.UserID,
		Data:      doc,
		UpdatedAt: now,
	}); err != nil {
		return "", "", fmt.Errorf("seeding persona for %s: %w", email, err)
	}

	s.log.Info("user registered",
		zap.String("name", name),
		zap.String("user_id", rec.UserID),
		zap.String("agent_id", rec.AgentID))
	return rec.UserID, rec.AgentID, nil
}

// personaDoc is the JSON document stored in the personas table.
type personaDoc struct {
	Source    string   `json:"source"`
	Facts     []string `json:"facts"`
	FactCount int      `json:"fact_count"`
	UpdatedAt string   `json:"updated_at"`
}

func newPersonaDoc(intakeForm string, now time.Time) (string, error) {
	doc := personaDoc{
		Source:    "intake_form",
		Facts:     []string{intakeForm},
		FactCount: 1,
		UpdatedAt: now.Format(time.RFC3339),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding persona: %w", err)
	}
	return string(data), nil
}
