package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
)

// ApprovalStore is a PostgreSQL-backed implementation of approval.Store.
type ApprovalStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewApprovalStore creates a new PostgreSQL approval store.
func NewApprovalStore(pool *pgxpool.Pool, schema string) *ApprovalStore {
	if schema == "" {
		schema = "public"
	}
	return &ApprovalStore{pool: pool, schema: schema}
}

func (s *ApprovalStore) tableName() string {
	return quoteSchema(s.schema) + ".approval_requests"
}

const approvalColumns = `id, category, resource_type, resource_id, requester_id, requester_name,
	approver_id, approver_name, status, reason, approver_comments, requested_at, responded_at,
	expires_at, metadata`

// Save persists a new request.
func (s *ApprovalStore) Save(ctx context.Context, r *approval.Request) error {
	if r.ID == "" {
		return approval.ErrInvalidRequest
	}

	metadata, err := marshalJSON(r.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, s.tableName(), approvalColumns),
		r.ID, string(r.Category), r.ResourceType, r.ResourceID, r.RequesterID, r.RequesterName,
		r.ApproverID, r.ApproverName, string(r.Status), r.Reason, r.ApproverComments,
		r.RequestedAt, r.RespondedAt, r.ExpiresAt, metadata,
	)
	if isUniqueViolation(err) {
		return approval.ErrRequestExists
	}
	return wrapError(err)
}

// Get retrieves a request by ID.
func (s *ApprovalStore) Get(ctx context.Context, id string) (*approval.Request, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", approvalColumns, s.tableName()), id)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.ErrRequestNotFound
	}
	if err != nil {
		return nil, wrapError(err)
	}
	return r, nil
}

// List returns requests matching the filter ordered by requested_at.
func (s *ApprovalStore) List(ctx context.Context, filter approval.ListFilter) ([]*approval.Request, error) {
	query, args := s.buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var result []*approval.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, wrapError(rows.Err())
}

func (s *ApprovalStore) buildListQuery(filter approval.ListFilter) (string, []any) {
	var w whereBuilder
	if filter.RequesterID != "" {
		w.add("requester_id = $%d", filter.RequesterID)
	}
	if filter.ExcludeRequesterID != "" {
		w.add("requester_id <> $%d", filter.ExcludeRequesterID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = string(st)
		}
		w.in("status", statuses)
	}
	if filter.ResourceType != "" {
		w.add("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		w.add("resource_id = $%d", filter.ResourceID)
	}
	if filter.Category != "" {
		w.add("category = $%d", string(filter.Category))
	}
	if !filter.ExpiresBefore.IsZero() {
		w.add("expires_at <= $%d", filter.ExpiresBefore)
	}

	order := "ASC"
	if filter.Descending {
		order = "DESC"
	}
	return fmt.Sprintf("SELECT %s FROM %s%s ORDER BY requested_at %s, id %s",
		approvalColumns, s.tableName(), w.clause(), order, order), w.args
}

// CompareAndSwap writes r only while the stored status equals expected.
func (s *ApprovalStore) CompareAndSwap(ctx context.Context, r *approval.Request, expected approval.Status) error {
	metadata, err := marshalJSON(r.Metadata)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $3, approver_id = $4, approver_name = $5, approver_comments = $6,
			responded_at = $7, metadata = $8
		WHERE id = $1 AND status = $2
	`, s.tableName()),
		r.ID, string(expected), string(r.Status), r.ApproverID, r.ApproverName, r.ApproverComments,
		r.RespondedAt, metadata,
	)
	if err != nil {
		return wrapError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.Get(ctx, r.ID); err != nil {
		return err
	}
	return approval.ErrStatusConflict
}

// Delete removes a request.
func (s *ApprovalStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName()), id)
	if err != nil {
		return wrapError(err)
	}
	if tag.RowsAffected() == 0 {
		return approval.ErrRequestNotFound
	}
	return nil
}

func scanRequest(row pgx.Row) (*approval.Request, error) {
	var r approval.Request
	var category, status string
	var respondedAt *time.Time
	var metadata []byte

	err := row.Scan(&r.ID, &category, &r.ResourceType, &r.ResourceID, &r.RequesterID, &r.RequesterName,
		&r.ApproverID, &r.ApproverName, &status, &r.Reason, &r.ApproverComments,
		&r.RequestedAt, &respondedAt, &r.ExpiresAt, &metadata)
	if err != nil {
		return nil, err
	}

	r.Category = approval.Category(category)
	r.Status = approval.Status(status)
	r.RequestedAt = r.RequestedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	if respondedAt != nil {
		at := respondedAt.UTC()
		r.RespondedAt = &at
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &r, nil
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return data, nil
}

// Ensure ApprovalStore implements approval.Store
var _ approval.Store = (*ApprovalStore)(nil)
