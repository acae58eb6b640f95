package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrMigrationFailed indicates the schema could not be applied.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// migrations are applied in order; each statement is idempotent.
var migrations = []string{
	`CREATE SCHEMA IF NOT EXISTS %[1]s`,
	`CREATE TABLE IF NOT EXISTS %[1]s.sessions (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.decisions (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL,
		session_id TEXT NOT NULL,
		statement TEXT NOT NULL,
		assumptions TEXT NOT NULL DEFAULT '',
		refs TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL,
		status TEXT NOT NULL,
		supersedes_id TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS decisions_session_idx ON %[1]s.decisions (session_id)`,
	`CREATE INDEX IF NOT EXISTS decisions_supersedes_idx ON %[1]s.decisions (supersedes_id)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.approval_requests (
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
		requested_at TIMESTAMPTZ NOT NULL,
		responded_at TIMESTAMPTZ,
		expires_at TIMESTAMPTZ NOT NULL,
		metadata JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS approval_requests_status_idx ON %[1]s.approval_requests (status)`,
	`CREATE INDEX IF NOT EXISTS approval_requests_resource_idx ON %[1]s.approval_requests (resource_type, resource_id)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.audit_log (
		seq BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		changes JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS audit_log_resource_idx ON %[1]s.audit_log (resource_type, resource_id)`,
}

// Migrate creates the ledger schema and tables if they don't exist.
func Migrate(ctx context.Context, db querier, schema string) error {
	for _, stmt := range migrationStatements(schema) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Join(ErrMigrationFailed, err)
		}
	}
	return nil
}

func migrationStatements(schema string) []string {
	schema = quoteSchema(schema)
	stmts := make([]string, len(migrations))
	for i, m := range migrations {
		stmts[i] = fmt.Sprintf(m, schema)
	}
	return stmts
}

func quoteSchema(schema string) string {
	if schema == "" {
		schema = "public"
	}
	return pgx.Identifier{schema}.Sanitize()
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation reports whether err is a unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// wrapError adds the timeout or connection class to driver errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(errOperationTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	return errors.Join(ErrConnectionFailed, err)
}

var errOperationTimeout = errors.New("postgres: operation timed out")

// whereBuilder accumulates numbered-placeholder conditions.
type whereBuilder struct {
	conditions []string
	args       []any
}

func (w *whereBuilder) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, fmt.Sprintf(expr, len(w.args)))
}

func (w *whereBuilder) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	w.args = append(w.args, values)
	w.conditions = append(w.conditions, fmt.Sprintf("%s = ANY($%d)", column, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + joinConditions(w.conditions)
}

func joinConditions(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}
