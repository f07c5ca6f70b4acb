package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const userOnboardingSchema = `
CREATE TABLE IF NOT EXISTS user_onboarding_sessions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT,
	intake_form TEXT,
	status TEXT NOT NULL,
	user_id TEXT,
	agent_id TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_onboarding_email ON user_onboarding_sessions(email);
`

var userOnboardingTables = []string{"user_onboarding_sessions"}

const groupOnboardingSchema = `
CREATE TABLE IF NOT EXISTS group_onboarding_sessions (
	id TEXT PRIMARY KEY,
	group_name TEXT NOT NULL,
	creator_user_id TEXT NOT NULL,
	invited_user_ids TEXT NOT NULL,
	joined_user_ids TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_group_onboarding_creator ON group_onboarding_sessions(creator_user_id);
`

var groupOnboardingTables = []string{"group_onboarding_sessions"}

// UserOnboardingStore backs the user onboarding subsystem.
type UserOnboardingStore struct {
	*Store
}

func OpenUserOnboarding(dir string) (*UserOnboardingStore, error) {
	s, err := openStore(dir, "user_onboarding.db", "user_onboarding", userOnboardingSchema, userOnboardingTables)
	if err != nil {
		return nil, err
	}
	return &UserOnboardingStore{Store: s}, nil
}

// UserSession is one onboarding session row.
type UserSession struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	IntakeForm string
	Status     string
	UserID     string
	AgentID    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u *UserOnboardingStore) InsertSession(ctx context.Context, rec UserSession) error {
	return u.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_onboarding_sessions (id, name, email, phone, intake_form, status, user_id, agent_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Name, rec.Email, rec.Phone, rec.IntakeForm, rec.Status, rec.UserID, rec.AgentID, rec.CreatedAt, rec.UpdatedAt)
		return err
	})
}

// UpdateSessionOutcome records the provisioning result on a session.
func (u *UserOnboardingStore) UpdateSessionOutcome(ctx context.Context, id, status, userID, agentID string) error {
	return u.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE user_onboarding_sessions SET status = ?, user_id = ?, agent_id = ?, updated_at = ? WHERE id = ?`,
			status, userID, agentID, time.Now().UTC(), id)
		return err
	})
}

// SessionByEmail returns the most recent onboarding session for an
// email, or nil when none exists.
func (u *UserOnboardingStore) SessionByEmail(ctx context.Context, email string) (*UserSession, error) {
	var rec UserSession
	err := u.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, intake_form, status, user_id, agent_id, created_at, updated_at
		 FROM user_onboarding_sessions WHERE email = ? ORDER BY rowid DESC LIMIT 1`, email).
		Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Phone, &rec.IntakeForm, &rec.Status, &rec.UserID, &rec.AgentID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountSessions counts all onboarding sessions.
func (u *UserOnboardingStore) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := u.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_onboarding_sessions`).Scan(&count)
	return count, err
}

// GroupOnboardingStore backs the group onboarding subsystem.
type GroupOnboardingStore struct {
	*Store
}

func OpenGroupOnboarding(dir string) (*GroupOnboardingStore, error) {
	s, err := openStore(dir, "group_onboarding.db", "group_onboarding", groupOnboardingSchema, groupOnboardingTables)
	if err != nil {
		return nil, err
	}
	return &GroupOnboardingStore{Store: s}, nil
}

// GroupSession is one group onboarding session. Invited and joined ids
// are stored as JSON arrays.
type GroupSession struct {
	ID            string
	GroupName     string
	CreatorUserID string
	InvitedIDs    []string
	JoinedIDs     []string
	Status        string
	CreatedAt     time.Time
}

func (g *GroupOnboardingStore) InsertSession(ctx context.Context, rec GroupSession) error {
	invited, err := json.Marshal(rec.InvitedIDs)
	if err != nil {
		return err
	}
	joined, err := json.Marshal(rec.JoinedIDs)
	if err != nil {
		return err
	}
	return g.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO group_onboarding_sessions (id, group_name, creator_user_id, invited_user_ids, joined_user_ids, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.GroupName, rec.CreatorUserID, string(invited), string(joined), rec.Status, rec.CreatedAt)
		return err
	})
}

// SessionByCreator returns the most recent group onboarding session
// created by a user, or nil when none exists.
func (g *GroupOnboardingStore) SessionByCreator(ctx context.Context, creatorUserID string) (*GroupSession, error) {
	var rec GroupSession
	var invited, joined string
	err := g.db.QueryRowContext(ctx,
		`SELECT id, group_name, creator_user_id, invited_user_ids, joined_user_ids, status, created_at
		 FROM group_onboarding_sessions WHERE creator_user_id = ? ORDER BY rowid DESC LIMIT 1`, creatorUserID).
		Scan(&rec.ID, &rec.GroupName, &rec.CreatorUserID, &invited, &joined, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(invited), &rec.InvitedIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(joined), &rec.JoinedIDs); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountSessions counts all group onboarding sessions.
func (g *GroupOnboardingStore) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_onboarding_sessions`).Scan(&count)
	return count, err
}
