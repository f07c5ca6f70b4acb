package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const personalSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	phone TEXT,
	intake_form TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS personas (
	user_id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	input_by_user TEXT NOT NULL,
	output_by_model TEXT NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id);
CREATE INDEX IF NOT EXISTS idx_interactions_processed ON interactions(processed);

CREATE TABLE IF NOT EXISTS calendar_entries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	window TEXT NOT NULL,
	info TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

var personalTables = []string{"users", "personas", "interactions", "calendar_entries"}

// PersonalStore backs the personal-agent subsystem.
type PersonalStore struct {
	*Store
}

func OpenPersonal(dir string) (*PersonalStore, error) {
	s, err := openStore(dir, "personal.db", "personal", personalSchema, personalTables)
	if err != nil {
		return nil, err
	}
	return &PersonalStore{Store: s}, nil
}

// UserRecord is one registered user with an assigned agent.
type UserRecord struct {
	UserID     string
	AgentID    string
	Name       string
	Email      string
	Phone      string
	IntakeForm string
	CreatedAt  time.Time
}

// PersonaRecord holds the JSON persona document maintained by the
// backend worker.
type PersonaRecord struct {
	UserID    string
	Data      string
	UpdatedAt time.Time
}

// Interaction is one persisted user message awaiting backend processing.
type Interaction struct {
	ID        string
	UserID    string
	AgentID   string
	Input     string
	Output    string
	Processed bool
	CreatedAt time.Time
}

func (p *PersonalStore) InsertUser(ctx context.Context, rec UserRecord) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (user_id, agent_id, name, email, phone, intake_form, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.UserID, rec.AgentID, rec.Name, rec.Email, rec.Phone, rec.IntakeForm, rec.CreatedAt)
		return err
	})
}

// UserByEmail returns the user registered under email, or nil when none
// exists.
func (p *PersonalStore) UserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT user_id, agent_id, name, email, phone, intake_form, created_at
		 FROM users WHERE email = ?`, email))
}

// UserByID returns the user with the given id, or nil when none exists.
func (p *PersonalStore) UserByID(ctx context.Context, userID string) (*UserRecord, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT user_id, agent_id, name, email, phone, intake_form, created_at
		 FROM users WHERE user_id = ?`, userID))
}

func (p *PersonalStore) scanUser(row *sql.Row) (*UserRecord, error) {
	var rec UserRecord
	err := row.Scan(&rec.UserID, &rec.AgentID, &rec.Name, &rec.Email, &rec.Phone, &rec.IntakeForm, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertPersona replaces the persona document for a user.
func (p *PersonalStore) UpsertPersona(ctx context.Context, rec PersonaRecord) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO personas (user_id, data, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			rec.UserID, rec.Data, rec.UpdatedAt)
		return err
	})
}

// Persona returns a user's persona document, or nil when none exists.
func (p *PersonalStore) Persona(ctx context.Context, userID string) (*PersonaRecord, error) {
	var rec PersonaRecord
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, data, updated_at FROM personas WHERE user_id = ?`, userID).
		Scan(&rec.UserID, &rec.Data, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertInteraction persists one interaction in its own transaction.
func (p *PersonalStore) InsertInteraction(ctx context.Context, rec Interaction) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO interactions (id, user_id, agent_id, input_by_user, output_by_model, processed, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.UserID, rec.AgentID, rec.Input, rec.Output, rec.Processed, rec.CreatedAt)
		return err
	})
}

// CountInteractions counts the persisted interactions for one user.
func (p *PersonalStore) CountInteractions(ctx context.Context, userID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

// InteractionsByUser returns a user's interactions in insertion order.
func (p *PersonalStore) InteractionsByUser(ctx context.Context, userID string) ([]Interaction, error) {
	return p.queryInteractions(ctx,
		`SELECT id, user_id, agent_id, input_by_user, output_by_model, processed, created_at
		 FROM interactions WHERE user_id = ? ORDER BY rowid`, userID)
}

// UnprocessedInteractions returns up to limit pending interactions for a
// user, oldest first.
func (p *PersonalStore) UnprocessedInteractions(ctx context.Context, userID string, limit int) ([]Interaction, error) {
	return p.queryInteractions(ctx,
		`SELECT id, user_id, agent_id, input_by_user, output_by_model, processed, created_at
		 FROM interactions WHERE user_id = ? AND processed = 0 ORDER BY rowid LIMIT ?`, userID, limit)
}

func (p *PersonalStore) queryInteractions(ctx context.Context, query string, args ...any) ([]Interaction, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Interaction
	for rows.Next() {
		var rec Interaction
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.AgentID, &rec.Input, &rec.Output, &rec.Processed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkInteractionProcessed flags one interaction as handled and records
// the model output produced for it.
func (p *PersonalStore) MarkInteractionProcessed(ctx context.Context, id, output string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE interactions SET processed = 1, output_by_model = ? WHERE id = ?`, output, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("interaction %s not found", id)
		}
		return nil
	})
}

// CountCalendarEntries counts calendar entries across all users.
func (p *PersonalStore) CountCalendarEntries(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calendar_entries`).Scan(&count)
	return count, err
}
