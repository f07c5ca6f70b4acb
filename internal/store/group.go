package store

import (
	"context"
	"database/sql"
	"time"
)

const groupSchema = `
CREATE TABLE IF NOT EXISTS groups (
	group_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	user_name TEXT NOT NULL,
	user_email TEXT NOT NULL,
	role TEXT NOT NULL,
	joined_at DATETIME NOT NULL,
	PRIMARY KEY (group_id, user_id)
);
`

var groupTables = []string{"groups", "group_members"}

// GroupStore backs the group subsystem.
type GroupStore struct {
	*Store
}

func OpenGroup(dir string) (*GroupStore, error) {
	s, err := openStore(dir, "group.db", "group", groupSchema, groupTables)
	if err != nil {
		return nil, err
	}
	return &GroupStore{Store: s}, nil
}

// GroupRecord is one group.
type GroupRecord struct {
	GroupID   string
	Name      string
	CreatedAt time.Time
}

// MemberRecord is one group membership row.
type MemberRecord struct {
	GroupID   string
	UserID    string
	UserName  string
	UserEmail string
	Role      string
	JoinedAt  time.Time
}

func (g *GroupStore) InsertGroup(ctx context.Context, rec GroupRecord) error {
	return g.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO groups (group_id, name, created_at) VALUES (?, ?, ?)`,
			rec.GroupID, rec.Name, rec.CreatedAt)
		return err
	})
}

// InsertMember adds one user to a group. The primary key rejects a
// second membership row for the same user.
func (g *GroupStore) InsertMember(ctx context.Context, rec MemberRecord) error {
	return g.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, user_name, user_email, role, joined_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.GroupID, rec.UserID, rec.UserName, rec.UserEmail, rec.Role, rec.JoinedAt)
		return err
	})
}

// MembersByGroup returns a group's members in join order.
func (g *GroupStore) MembersByGroup(ctx context.Context, groupID string) ([]MemberRecord, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT group_id, user_id, user_name, user_email, role, joined_at
		 FROM group_members WHERE group_id = ? ORDER BY rowid`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []MemberRecord
	for rows.Next() {
		var rec MemberRecord
		if err := rows.Scan(&rec.GroupID, &rec.UserID, &rec.UserName, &rec.UserEmail, &rec.Role, &rec.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, rec)
	}
	return members, rows.Err()
}
