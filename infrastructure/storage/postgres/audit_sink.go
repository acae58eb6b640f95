package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
)

// AuditSink is a PostgreSQL-backed implementation of audit.Sink and audit.Reader.
type AuditSink struct {
	pool   *pgxpool.Pool
	schema string
}

// NewAuditSink creates a new PostgreSQL audit sink.
func NewAuditSink(pool *pgxpool.Pool, schema string) *AuditSink {
	return &AuditSink{pool: pool, schema: schema}
}

func (s *AuditSink) tableName() string {
	return quoteSchema(s.schema) + ".audit_log"
}

// Append inserts the entry; the sequence is assigned by BIGSERIAL.
func (s *AuditSink) Append(ctx context.Context, entry audit.Entry) error {
	return appendAudit(ctx, s.pool, s.tableName(), entry)
}

func appendAudit(ctx context.Context, q querier, table string, entry audit.Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	changes, err := marshalJSON(entry.Changes)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (timestamp, user_id, action, resource_type, resource_id, changes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, table),
		entry.Timestamp, entry.UserID, string(entry.Action), entry.ResourceType, entry.ResourceID, changes,
	)
	return wrapError(err)
}

// Query returns entries matching the filter in sequence order.
func (s *AuditSink) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	query, args := s.buildQuerySQL(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var seq int64
		var action string
		var changes []byte
		if err := rows.Scan(&seq, &e.Timestamp, &e.UserID, &action, &e.ResourceType, &e.ResourceID, &changes); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Timestamp = e.Timestamp.UTC()
		e.Action = audit.Action(action)
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal changes: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, wrapError(rows.Err())
}

func (s *AuditSink) buildQuerySQL(filter audit.Filter) (string, []any) {
	var w whereBuilder
	if !filter.StartTime.IsZero() {
		w.add("timestamp >= $%d", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		w.add("timestamp <= $%d", filter.EndTime)
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		w.in("action", actions)
	}
	if filter.UserID != "" {
		w.add("user_id = $%d", filter.UserID)
	}
	if filter.ResourceType != "" {
		w.add("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		w.add("resource_id = $%d", filter.ResourceID)
	}

	query := fmt.Sprintf("SELECT seq, timestamp, user_id, action, resource_type, resource_id, changes FROM %s%s ORDER BY seq ASC",
		s.tableName(), w.clause())
	if filter.Limit > 0 {
		w.args = append(w.args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(w.args))
	}
	return query, w.args
}

var (
	_ audit.Sink   = (*AuditSink)(nil)
	_ audit.Reader = (*AuditSink)(nil)
)
