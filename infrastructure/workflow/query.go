package workflow

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
)

// Get returns a request, expiring it first when it is overdue.
func (s *Service) Get(ctx context.Context, id string) (*approval.Request, error) {
	req, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IsOverdue(s.now()) {
		return s.expire(ctx, req)
	}
	return req, nil
}

// ListPending returns the PENDING requests userID may act on (everything
// not authored by them), oldest first. Overdue requests are expired and left out.
func (s *Service) ListPending(ctx context.Context, userID string) ([]*approval.Request, error) {
	reqs, err := s.store.List(ctx, approval.ListFilter{
		Status:             []approval.Status{approval.StatusPending},
		ExcludeRequesterID: userID,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	pending := reqs[:0]
	for _, r := range reqs {
		if r.IsOverdue(now) {
			if _, err := s.expire(ctx, r); err != nil {
				return nil, err
			}
			continue
		}
		pending = append(pending, r)
	}
	return pending, nil
}

// ListMine returns every request authored by userID, newest first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]*approval.Request, error) {
	return s.store.List(ctx, approval.ListFilter{RequesterID: userID, Descending: true})
}

// Summary reports which requests exist for a resource.
type Summary struct {
	HasPending  bool `json:"has_pending"`
	HasApproved bool `json:"has_approved"`
}

// HasApproval summarises the requests for a resource. An empty category
// matches every category. Overdue requests are expired rather than counted
// as pending.
func (s *Service) HasApproval(ctx context.Context, resourceType, resourceID string, category approval.Category) (Summary, error) {
	reqs, err := s.store.List(ctx, approval.ListFilter{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Category:     category,
		Status:       []approval.Status{approval.StatusPending, approval.StatusApproved},
	})
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	now := s.now()
	for _, r := range reqs {
		switch {
		case r.Status == approval.StatusApproved:
			sum.HasApproved = true
		case r.IsOverdue(now):
			if _, err := s.expire(ctx, r); err != nil {
				return Summary{}, err
			}
		default:
			sum.HasPending = true
		}
	}
	return sum, nil
}

// expire moves an overdue PENDING request to EXPIRED with the same
// compare-and-swap discipline as Respond. If another writer got there first
// the stored request is returned unchanged.
func (s *Service) expire(ctx context.Context, req *approval.Request) (*approval.Request, error) {
	expired := req.Expired()
	if _, err := s.lifecycle.Transition(string(req.Status), string(expired.Status), "deadline passed"); err != nil {
		return nil, err
	}

	err := s.store.CompareAndSwap(ctx, expired, approval.StatusPending)
	if errors.Is(err, approval.ErrStatusConflict) {
		return s.getRequest(ctx, req.ID)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordApprovalResolved(ctx, string(req.Category), string(approval.StatusExpired))
	s.recorder.RecordBestEffort(ctx, audit.Entry{
		UserID:       req.RequesterID,
		Action:       audit.ActionApprovalExpired,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Changes:      map[string]any{"approval_id": req.ID, "expires_at": req.ExpiresAt},
	})
	logging.NewEvent(s.logger.Info()).
		Add(logging.ApprovalID(req.ID)).
		Add(logging.ToStatus(string(approval.StatusExpired))).
		Msg("approval request expired")
	return expired, nil
}
