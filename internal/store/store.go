// Package store manages the four sqlite databases backing the platform
// under test: personal agent, group, user onboarding, and group
// onboarding. Every write runs in its own transaction; nothing holds a
// transaction across a pacing delay.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps one sqlite database together with its schema so it can be
// reset and verified generically.
type Store struct {
	name   string
	path   string
	db     *sql.DB
	schema string
	tables []string
}

func openStore(dir, file, name, schema string, tables []string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dir, file)

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", name, err)
	}

	s := &Store{
		name:   name,
		path:   path,
		db:     db,
		schema: schema,
		tables: tables,
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing %s schema: %w", name, err)
	}
	return s, nil
}

// Name returns the logical store name used in reports.
func (s *Store) Name() string {
	return s.name
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping runs a trivial round-trip query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Reset drops every known table and recreates the schema. Idempotent.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range s.tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("dropping %s.%s: %w", s.name, table, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, s.schema); err != nil {
		return fmt.Errorf("recreating %s schema: %w", s.name, err)
	}
	return nil
}

// Tables enumerates user tables, for verification reporting.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ApproxRows sums COUNT(*) over every user table. A count failure on one
// table is skipped rather than failing the whole estimate.
func (s *Store) ApproxRows(ctx context.Context) (int64, error) {
	tables, err := s.Tables(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, table := range tables {
		var count int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			continue
		}
		total += count
	}
	return total, nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error. One call is one unit of work.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Stores aggregates the four backing databases of the platform.
type Stores struct {
	Personal        *PersonalStore
	Group           *GroupStore
	UserOnboarding  *UserOnboardingStore
	GroupOnboarding *GroupOnboardingStore
}

// Open opens all four databases under dir, creating it if necessary.
func Open(dir string) (*Stores, error) {
	personal, err := OpenPersonal(dir)
	if err != nil {
		return nil, err
	}
	group, err := OpenGroup(dir)
	if err != nil {
		personal.Close()
		return nil, err
	}
	userOnboarding, err := OpenUserOnboarding(dir)
	if err != nil {
		personal.Close()
		group.Close()
		return nil, err
	}
	groupOnboarding, err := OpenGroupOnboarding(dir)
	if err != nil {
		personal.Close()
		group.Close()
		userOnboarding.Close()
		return nil, err
	}
	return &Stores{
		Personal:        personal,
		Group:           group,
		UserOnboarding:  userOnboarding,
		GroupOnboarding: groupOnboarding,
	}, nil
}

// All returns the stores in a fixed order for reset and verification.
func (s *Stores) All() []*Store {
	return []*Store{
		s.Personal.Store,
		s.Group.Store,
		s.UserOnboarding.Store,
		s.GroupOnboarding.Store,
	}
}

func (s *Stores) Close() error {
	var errs []error
	for _, st := range s.All() {
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", st.Name(), err))
		}
	}
	return errors.Join(errs...)
}
