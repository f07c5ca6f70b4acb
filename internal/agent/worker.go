package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/store"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	pollBatchSize       = 10
	processedOutput     = "Noted. Your profile has been updated."
)

// Worker is the long-running backend processor for one user. It polls
// the interactions table for unprocessed rows, folds each input into the
// user's persona document, and marks the row processed. It runs until
// its context is cancelled.
type Worker struct {
	store        *store.PersonalStore
	log          *zap.Logger
	pollInterval time.Duration
}

func NewWorker(personal *store.PersonalStore, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		store:        personal,
		log:          log,
		pollInterval: defaultPollInterval,
	}
}

// WithPollInterval overrides the interval between poll cycles.
func (w *Worker) WithPollInterval(d time.Duration) *Worker {
	if d > 0 {
		w.pollInterval = d
	}
	return w
}

// Run polls until ctx is cancelled, returning ctx.Err(). Cancellation is
// observed between poll cycles and between rows.
func (w *Worker) Run(ctx context.Context, userID, agentID string) error {
	log := w.log.With(zap.String("user_id", userID), zap.String("agent_id", agentID))
	log.Debug("backend worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("backend worker stopping", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			if err := w.processPending(ctx, userID); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Transient store trouble; the next cycle retries.
				log.Warn("poll cycle failed", zap.Error(err))
			}
		}
	}
}

func (w *Worker) processPending(ctx context.Context, userID string) error {
	pending, err := w.store.UnprocessedInteractions(ctx, userID, pollBatchSize)
	if err != nil {
		return fmt.Errorf("fetching pending interactions: %w", err)
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.foldIntoPersona(ctx, userID, rec.Input); err != nil {
			return fmt.Errorf("updating persona: %w", err)
		}
		if err := w.store.MarkInteractionProcessed(ctx, rec.ID, processedOutput); err != nil {
			return fmt.Errorf("marking interaction processed: %w", err)
		}
		w.log.Debug("interaction processed", zap.String("interaction_id", rec.ID))
	}
	return nil
}

// foldIntoPersona appends one observed fact to the persona document,
// creating the document if registration did not seed one.
func (w *Worker) foldIntoPersona(ctx context.Context, userID, fact string) error {
	now := time.Now().UTC()

	var doc personaDoc
	current, err := w.store.Persona(ctx, userID)
	if err != nil {
		return err
	}
	if current != nil {
		if err := json.Unmarshal([]byte(current.Data), &doc); err != nil {
			// A corrupt document is replaced rather than propagated.
			w.log.Warn("persona document unreadable, rebuilding", zap.String("user_id", userID), zap.Error(err))
			doc = personaDoc{}
		}
	}

	doc.Source = "interactions"
	doc.Facts = append(doc.Facts, fact)
	doc.FactCount = len(doc.Facts)
	doc.UpdatedAt = now.Format(time.RFC3339)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding persona: %w", err)
	}
	return w.store.UpsertPersona(ctx, store.PersonaRecord{
		UserID:    userID,
		Data:      string(data),
		UpdatedAt: now,
	})
}
