package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/decision-ledger/domain/resource"
)

// SessionStore is a PostgreSQL-backed implementation of resource.SessionStore.
type SessionStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewSessionStore creates a new PostgreSQL session store.
func NewSessionStore(pool *pgxpool.Pool, schema string) *SessionStore {
	return &SessionStore{pool: pool, schema: schema}
}

func (s *SessionStore) tableName() string {
	return quoteSchema(s.schema) + ".sessions"
}

// Register records id.
func (s *SessionStore) Register(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (id) VALUES ($1) ON CONFLICT (id) DO NOTHING", s.tableName()), id)
	return wrapError(err)
}

// Exists reports whether id was registered.
func (s *SessionStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", s.tableName()), id,
	).Scan(&exists)
	if err != nil {
		return false, wrapError(err)
	}
	return exists, nil
}

var _ resource.SessionStore = (*SessionStore)(nil)
