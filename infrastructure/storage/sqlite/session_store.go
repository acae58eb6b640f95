package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/resource"
)

// SessionStore is a SQLite-backed implementation of resource.SessionStore.
type SessionStore struct {
	db    *sql.DB
	table string
}

// NewSessionStore creates a session store on an open, migrated database.
func NewSessionStore(db *sql.DB, prefix string) *SessionStore {
	return &SessionStore{db: db, table: prefix + "sessions"}
}

// Register records id.
func (s *SessionStore) Register(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT OR IGNORE INTO %s (id, created_at) VALUES (?, ?)", s.table),
		id, time.Now().UTC().UnixNano(),
	)
	return err
}

// Exists reports whether id was registered.
func (s *SessionStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE id = ?", s.table), id,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ resource.SessionStore = (*SessionStore)(nil)
