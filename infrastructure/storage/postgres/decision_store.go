package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
)

// DecisionStore is a PostgreSQL-backed implementation of decision.Store.
type DecisionStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewDecisionStore creates a new PostgreSQL decision store.
func NewDecisionStore(pool *pgxpool.Pool, schema string) *DecisionStore {
	if schema == "" {
		schema = "public"
	}
	return &DecisionStore{pool: pool, schema: schema}
}

// tableName returns the fully qualified table name.
func (s *DecisionStore) tableName() string {
	return quoteSchema(s.schema) + ".decisions"
}

const decisionColumns = "id, session_id, statement, assumptions, refs, owner_id, status, supersedes_id, created_at"

// Get retrieves a decision by ID.
func (s *DecisionStore) Get(ctx context.Context, id string) (*decision.Decision, error) {
	return s.get(ctx, s.pool, id)
}

// Insert persists a new decision.
func (s *DecisionStore) Insert(ctx context.Context, d *decision.Decision) error {
	return s.insert(ctx, s.pool, d)
}

// UpdateStatus moves id from expected to next.
func (s *DecisionStore) UpdateStatus(ctx context.Context, id string, expected, next decision.Status) error {
	return s.updateStatus(ctx, s.pool, id, expected, next)
}

// Delete removes id while its status equals expected.
func (s *DecisionStore) Delete(ctx context.Context, id string, expected decision.Status) error {
	return s.delete(ctx, s.pool, id, expected)
}

// WithTx runs fn inside a pgx transaction.
func (s *DecisionStore) WithTx(ctx context.Context, fn func(tx decision.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&decisionTx{store: s, tx: tx})
	})
}

// List returns decisions matching the filter.
func (s *DecisionStore) List(ctx context.Context, filter decision.ListFilter) ([]*decision.Decision, error) {
	query, args := s.buildListQuery(filter)
	return s.query(ctx, query, args...)
}

// Successors returns decisions superseding id, oldest first.
func (s *DecisionStore) Successors(ctx context.Context, id string) ([]*decision.Decision, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE supersedes_id = $1 ORDER BY created_at ASC, seq ASC",
		decisionColumns, s.tableName())
	return s.query(ctx, query, id)
}

// buildListQuery constructs the SELECT query for listing decisions.
func (s *DecisionStore) buildListQuery(filter decision.ListFilter) (string, []any) {
	var w whereBuilder
	if filter.SessionID != "" {
		w.add("session_id = $%d", filter.SessionID)
	}
	if filter.OwnerID != "" {
		w.add("owner_id = $%d", filter.OwnerID)
	}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}

	order := "ASC"
	if filter.Descending {
		order = "DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at %s, seq %s",
		decisionColumns, s.tableName(), w.clause(), order, order)
	if filter.Limit > 0 {
		w.args = append(w.args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(w.args))
	}
	return query, w.args
}

func (s *DecisionStore) query(ctx context.Context, query string, args ...any) ([]*decision.Decision, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var result []*decision.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, wrapError(rows.Err())
}

func (s *DecisionStore) get(ctx context.Context, q querier, id string) (*decision.Decision, error) {
	row := q.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", decisionColumns, s.tableName()), id)
	d, err := scanDecision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, decision.ErrDecisionNotFound
	}
	if err != nil {
		return nil, wrapError(err)
	}
	return d, nil
}

func (s *DecisionStore) insert(ctx context.Context, q querier, d *decision.Decision) error {
	if d.ID == "" {
		return decision.ErrInvalidDecision
	}

	var supersedes *string
	if d.SupersedesID != "" {
		supersedes = &d.SupersedesID
	}

	_, err := q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, session_id, statement, assumptions, refs, owner_id, status, supersedes_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.tableName()),
		d.ID, d.SessionID, d.Statement, d.Assumptions, d.References, d.OwnerID,
		string(d.Status), supersedes, d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return decision.ErrDecisionExists
	}
	return wrapError(err)
}

func (s *DecisionStore) updateStatus(ctx context.Context, q querier, id string, expected, next decision.Status) error {
	tag, err := q.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET status = $1 WHERE id = $2 AND status = $3", s.tableName()),
		string(next), id, string(expected),
	)
	if err != nil {
		return wrapError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return s.missingOrConflict(ctx, q, id)
}

func (s *DecisionStore) delete(ctx context.Context, q querier, id string, expected decision.Status) error {
	tag, err := q.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND status = $2", s.tableName()),
		id, string(expected),
	)
	if err != nil {
		return wrapError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return s.missingOrConflict(ctx, q, id)
}

func (s *DecisionStore) missingOrConflict(ctx context.Context, q querier, id string) error {
	if _, err := s.get(ctx, q, id); err != nil {
		return err
	}
	return decision.ErrStatusConflict
}

func scanDecision(row pgx.Row) (*decision.Decision, error) {
	var d decision.Decision
	var status string
	var supersedes *string
	var createdAt time.Time

	err := row.Scan(&d.ID, &d.SessionID, &d.Statement, &d.Assumptions, &d.References,
		&d.OwnerID, &status, &supersedes, &createdAt)
	if err != nil {
		return nil, err
	}
	d.Status = decision.Status(status)
	if supersedes != nil {
		d.SupersedesID = *supersedes
	}
	d.CreatedAt = createdAt.UTC()
	return &d, nil
}

// decisionTx binds the store's statements to one pgx.Tx.
type decisionTx struct {
	store *DecisionStore
	tx    pgx.Tx
}

func (t *decisionTx) Get(ctx context.Context, id string) (*decision.Decision, error) {
	return t.store.get(ctx, t.tx, id)
}

// Append writes an audit entry in the same transaction as the decision writes.
func (t *decisionTx) Append(ctx context.Context, entry audit.Entry) error {
	return appendAudit(ctx, t.tx, quoteSchema(t.store.schema)+".audit_log", entry)
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
