package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
)

// AuditSink is a SQLite-backed implementation of audit.Sink and audit.Reader.
type AuditSink struct {
	db    *sql.DB
	table string
}

// NewAuditSink creates an audit sink on an open, migrated database.
func NewAuditSink(db *sql.DB, prefix string) *AuditSink {
	return &AuditSink{db: db, table: prefix + "audit_log"}
}

// Append inserts the entry; the database assigns the sequence.
func (s *AuditSink) Append(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return appendAudit(ctx, s.db, s.table, entry)
}

func appendAudit(ctx context.Context, q querier, table string, entry audit.Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var changes sql.NullString
	if len(entry.Changes) > 0 {
		data, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		changes = sql.NullString{String: string(data), Valid: true}
	}

	_, err := q.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (timestamp, user_id, action, resource_type, resource_id, changes)
		 VALUES (?, ?, ?, ?, ?, ?)`, table),
		entry.Timestamp.UTC().UnixNano(), entry.UserID, string(entry.Action),
		entry.ResourceType, entry.ResourceID, changes,
	)
	return err
}

// Query returns entries matching the filter in sequence order.
func (s *AuditSink) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any
	if !filter.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime.UTC().UnixNano())
	}
	if !filter.EndTime.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.EndTime.UTC().UnixNano())
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		conditions = append(conditions, "action IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ResourceType != "" {
		conditions = append(conditions, "resource_type = ?")
		args = append(args, filter.ResourceType)
	}
	if filter.ResourceID != "" {
		conditions = append(conditions, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}

	query := fmt.Sprintf("SELECT seq, timestamp, user_id, action, resource_type, resource_id, changes FROM %s", s.table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var ts int64
		var action string
		var changes sql.NullString
		if err := rows.Scan(&e.Seq, &ts, &e.UserID, &action, &e.ResourceType, &e.ResourceID, &changes); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Action = audit.Action(action)
		if changes.Valid {
			if err := json.Unmarshal([]byte(changes.String), &e.Changes); err != nil {
				return nil, fmt.Errorf("decode changes for seq %d: %w", e.Seq, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var (
	_ audit.Sink   = (*AuditSink)(nil)
	_ audit.Reader = (*AuditSink)(nil)
)
