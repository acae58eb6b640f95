package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
)

// DecisionStore is a SQLite-backed implementation of decision.Store.
type DecisionStore struct {
	db         *sql.DB
	table      string
	auditTable string
}

// NewDecisionStore creates a decision store on an open, migrated database.
func NewDecisionStore(db *sql.DB, prefix string) *DecisionStore {
	return &DecisionStore{db: db, table: prefix + "decisions", auditTable: prefix + "audit_log"}
}

const decisionColumns = "id, session_id, statement, assumptions, refs, owner_id, status, supersedes_id, created_at"

// Get retrieves a decision by ID.
func (s *DecisionStore) Get(ctx context.Context, id string) (*decision.Decision, error) {
	return s.get(ctx, s.db, id)
}

// Insert persists a new decision.
func (s *DecisionStore) Insert(ctx context.Context, d *decision.Decision) error {
	return s.insert(ctx, s.db, d)
}

// UpdateStatus moves id from expected to next.
func (s *DecisionStore) UpdateStatus(ctx context.Context, id string, expected, next decision.Status) error {
	return s.updateStatus(ctx, s.db, id, expected, next)
}

// Delete removes id while its status equals expected.
func (s *DecisionStore) Delete(ctx context.Context, id string, expected decision.Status) error {
	return s.delete(ctx, s.db, id, expected)
}

// WithTx runs fn inside a database transaction.
func (s *DecisionStore) WithTx(ctx context.Context, fn func(tx decision.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&decisionTx{store: s, tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

// List returns decisions matching the filter.
func (s *DecisionStore) List(ctx context.Context, filter decision.ListFilter) ([]*decision.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", decisionColumns, s.table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if filter.Descending {
		query += " ORDER BY created_at DESC, seq DESC"
	} else {
		query += " ORDER BY created_at ASC, seq ASC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.query(ctx, query, args...)
}

// Successors returns decisions superseding id, oldest first.
func (s *DecisionStore) Successors(ctx context.Context, id string) ([]*decision.Decision, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE supersedes_id = ? ORDER BY created_at ASC, seq ASC", decisionColumns, s.table)
	return s.query(ctx, query, id)
}

func (s *DecisionStore) query(ctx context.Context, query string, args ...any) ([]*decision.Decision, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*decision.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *DecisionStore) get(ctx context.Context, q querier, id string) (*decision.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", decisionColumns, s.table), id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, decision.ErrDecisionNotFound
	}
	return d, err
}

func (s *DecisionStore) insert(ctx context.Context, q querier, d *decision.Decision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.ID == "" {
		return decision.ErrInvalidDecision
	}

	var supersedes sql.NullString
	if d.SupersedesID != "" {
		supersedes = sql.NullString{String: d.SupersedesID, Valid: true}
	}

	_, err := q.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %[1]s (id, session_id, statement, assumptions, refs, owner_id, status, supersedes_id, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM %[1]s))`, s.table),
		d.ID, d.SessionID, d.Statement, d.Assumptions, d.References, d.OwnerID,
		string(d.Status), supersedes, d.CreatedAt.UTC().UnixNano(),
	)
	if isUniqueViolation(err) {
		return decision.ErrDecisionExists
	}
	return err
}

func (s *DecisionStore) updateStatus(ctx context.Context, q querier, id string, expected, next decision.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET status = ? WHERE id = ? AND status = ?", s.table),
		string(next), id, string(expected),
	)
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, q, result, id)
}

func (s *DecisionStore) delete(ctx context.Context, q querier, id string, expected decision.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ? AND status = ?", s.table),
		id, string(expected),
	)
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, q, result, id)
}

// checkAffected distinguishes a missing row from a lost conditional write.
func (s *DecisionStore) checkAffected(ctx context.Context, q querier, result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.get(ctx, q, id); err != nil {
		return err
	}
	return decision.ErrStatusConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*decision.Decision, error) {
	var d decision.Decision
	var status string
	var supersedes sql.NullString
	var createdAt int64

	err := row.Scan(&d.ID, &d.SessionID, &d.Statement, &d.Assumptions, &d.References,
		&d.OwnerID, &status, &supersedes, &createdAt)
	if err != nil {
		return nil, err
	}
	d.Status = decision.Status(status)
	d.SupersedesID = supersedes.String
	d.CreatedAt = time.Unix(0, createdAt).UTC()
	return &d, nil
}

// decisionTx binds the store's statements to one *sql.Tx.
type decisionTx struct {
	store *DecisionStore
	tx    *sql.Tx
}

func (t *decisionTx) Get(ctx context.Context, id string) (*decision.Decision, error) {
	return t.store.get(ctx, t.tx, id)
}

// Append writes an audit entry in the same transaction as the decision writes.
func (t *decisionTx) Append(ctx context.Context, entry audit.Entry) error {
	return appendAudit(ctx, t.tx, t.store.auditTable, entry)
}

func (t *decisionTx) Insert(ctx context.Context, d *decision.Decision) error {
	return t.store.insert(ctx, t.tx, d)
}

func (t *decisionTx) UpdateStatus(ctx context.Context, id string, expected, next decision.Status) error {
	return t.store.updateStatus(ctx, t.tx, id, expected, next)
}

func (t *decisionTx) Delete(ctx context.Context, id string, expected decision.Status) error {
	return t.store.delete(ctx, t.tx, id, expected)
}

// Ensure DecisionStore implements decision.Store
var _ decision.Store = (*DecisionStore)(nil)
