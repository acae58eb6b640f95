package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
)

// ApprovalStore is a SQLite-backed implementation of approval.Store.
type ApprovalStore struct {
	db    *sql.DB
	table string
}

// NewApprovalStore creates an approval store on an open, migrated database.
func NewApprovalStore(db *sql.DB, prefix string) *ApprovalStore {
	return &ApprovalStore{db: db, table: prefix + "approval_requests"}
}

const approvalColumns = `id, category, resource_type, resource_id, requester_id, requester_name,
	approver_id, approver_name, status, reason, approver_comments, requested_at, responded_at,
	expires_at, metadata`

// Save persists a new request.
func (s *ApprovalStore) Save(ctx context.Context, r *approval.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		return approval.ErrInvalidRequest
	}

	metadata, err := marshalMetadata(r.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table, approvalColumns),
		r.ID, string(r.Category), r.ResourceType, r.ResourceID, r.RequesterID, r.RequesterName,
		r.ApproverID, r.ApproverName, string(r.Status), r.Reason, r.ApproverComments,
		r.RequestedAt.UTC().UnixNano(), nullableTime(r.RespondedAt), r.ExpiresAt.UTC().UnixNano(), metadata,
	)
	if isUniqueViolation(err) {
		return approval.ErrRequestExists
	}
	return err
}

// Get retrieves a request by ID.
func (s *ApprovalStore) Get(ctx context.Context, id string) (*approval.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", approvalColumns, s.table), id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, approval.ErrRequestNotFound
	}
	return r, err
}

// List returns requests matching the filter ordered by requested_at.
func (s *ApprovalStore) List(ctx context.Context, filter approval.ListFilter) ([]*approval.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	where, args := buildApprovalWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s", approvalColumns, s.table, where)
	if filter.Descending {
		query += " ORDER BY requested_at DESC, id DESC"
	} else {
		query += " ORDER BY requested_at ASC, id ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*approval.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// CompareAndSwap writes r only while the stored status equals expected.
func (s *ApprovalStore) CompareAndSwap(ctx context.Context, r *approval.Request, expected approval.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	metadata, err := marshalMetadata(r.Metadata)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET status = ?, approver_id = ?, approver_name = ?, approver_comments = ?,
			responded_at = ?, metadata = ?
		 WHERE id = ? AND status = ?`, s.table),
		string(r.Status), r.ApproverID, r.ApproverName, r.ApproverComments,
		nullableTime(r.RespondedAt), metadata, r.ID, string(expected),
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.Get(ctx, r.ID); err != nil {
		return err
	}
	return approval.ErrStatusConflict
}

// Delete removes a request.
func (s *ApprovalStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return approval.ErrRequestNotFound
	}
	return nil
}

func buildApprovalWhere(filter approval.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.ExcludeRequesterID != "" {
		conditions = append(conditions, "requester_id <> ?")
		args = append(args, filter.ExcludeRequesterID)
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.ResourceType != "" {
		conditions = append(conditions, "resource_type = ?")
		args = append(args, filter.ResourceType)
	}
	if filter.ResourceID != "" {
		conditions = append(conditions, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}
	if !filter.ExpiresBefore.IsZero() {
		conditions = append(conditions, "expires_at <= ?")
		args = append(args, filter.ExpiresBefore.UTC().UnixNano())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRequest(row rowScanner) (*approval.Request, error) {
	var r approval.Request
	var category, status string
	var requestedAt, expiresAt int64
	var respondedAt sql.NullInt64
	var metadata sql.NullString

	err := row.Scan(&r.ID, &category, &r.ResourceType, &r.ResourceID, &r.RequesterID, &r.RequesterName,
		&r.ApproverID, &r.ApproverName, &status, &r.Reason, &r.ApproverComments,
		&requestedAt, &respondedAt, &expiresAt, &metadata)
	if err != nil {
		return nil, err
	}

	r.Category = approval.Category(category)
	r.Status = approval.Status(status)
	r.RequestedAt = time.Unix(0, requestedAt).UTC()
	r.ExpiresAt = time.Unix(0, expiresAt).UTC()
	if respondedAt.Valid {
		at := time.Unix(0, respondedAt.Int64).UTC()
		r.RespondedAt = &at
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func marshalMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}

// Ensure ApprovalStore implements approval.Store
var _ approval.Store = (*ApprovalStore)(nil)
