package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

const schema = `
	CREATE TABLE IF NOT EXISTS {p}sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS {p}decisions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		statement TEXT NOT NULL,
		assumptions TEXT NOT NULL DEFAULT '',
		refs TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL,
		status TEXT NOT NULL,
		supersedes_id TEXT,
		created_at INTEGER NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_{p}decisions_session ON {p}decisions(session_id);
	CREATE INDEX IF NOT EXISTS idx_{p}decisions_supersedes ON {p}decisions(supersedes_id);

	CREATE TABLE IF NOT EXISTS {p}approval_requests (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		requester_name TEXT NOT NULL DEFAULT '',
		approver_id TEXT NOT NULL DEFAULT '',
		approver_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		reason TEXT NOT NULL,
		approver_comments TEXT NOT NULL DEFAULT '',
		requested_at INTEGER NOT NULL,
		responded_at INTEGER,
		expires_at INTEGER NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_{p}approval_requests_status ON {p}approval_requests(status);
	CREATE INDEX IF NOT EXISTS idx_{p}approval_requests_resource ON {p}approval_requests(resource_type, resource_id);

	CREATE TABLE IF NOT EXISTS {p}audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		changes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_{p}audit_log_resource ON {p}audit_log(resource_type, resource_id);
`

var errEmptyDB = errors.New("sqlite: nil database")

// Migrate creates the ledger tables if they don't exist.
func Migrate(ctx context.Context, db *sql.DB, prefix string) error {
	if db == nil {
		return errEmptyDB
	}
	if _, err := db.ExecContext(ctx, strings.ReplaceAll(schema, "{p}", prefix)); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
