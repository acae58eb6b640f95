package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
)

// RespondInput is an approver's answer to a request.
type RespondInput struct {
	ApprovalID string
	ApproverID string
	Approved   bool
	Comments   string
}

// Respond resolves a PENDING request. The checks run in a fixed order:
// existence, pending status, expiry, two-person rule, approver lookup and
// approver role. Resolution is a compare-and-swap on PENDING, so of two
// racing approvers exactly one wins and the other gets InvalidState.
func (s *Service) Respond(ctx context.Context, in RespondInput) (resolved *approval.Request, err error) {
	ctx, span := s.tracer.Start(ctx, "approval.Respond",
		telemetry.ApprovalID(in.ApprovalID), telemetry.ActorID(in.ApproverID))
	defer func() { telemetry.End(span, err) }()
	defer s.observe(ctx, "respond", time.Now(), &err)

	req, err := s.getRequest(ctx, in.ApprovalID)
	if err != nil {
		return nil, err
	}
	if req.Status != approval.StatusPending {
		return nil, alreadyResolved(req.Status)
	}
	if req.IsOverdue(s.now()) {
		current, err := s.expire(ctx, req)
		if err != nil {
			return nil, err
		}
		if current.Status != approval.StatusExpired {
			return nil, alreadyResolved(current.Status)
		}
		return nil, fault.Expired("Approval request has expired")
	}

	if in.ApproverID == req.RequesterID {
		return nil, fault.Forbidden("Two-person rule violation: You cannot approve your own request")
	}

	approver, err := s.resolveActor(ctx, in.ApproverID, "Approver not found: %s")
	if err != nil {
		return nil, err
	}

	roles, ok := s.rules.AllowedRoles(req.Category)
	if !ok || !slices.Contains(roles, approver.Role) {
		return nil, fault.Forbidden("Insufficient permissions to approve %s. Required roles: %s",
			req.Category, approval.FormatRoles(roles))
	}

	resolved = req.Resolved(approval.Resolution{
		ApproverID:   approver.ID,
		ApproverName: approver.DisplayName(),
		Approved:     in.Approved,
		Comments:     in.Comments,
		At:           s.now(),
	})
	if _, err := s.lifecycle.Transition(string(req.Status), string(resolved.Status), "respond"); err != nil {
		return nil, fault.InvalidTransition("%v", err)
	}

	if err := s.store.CompareAndSwap(ctx, resolved, approval.StatusPending); err != nil {
		return nil, s.lostRace(ctx, req.ID, err)
	}

	action := audit.ActionApprovalRejected
	if in.Approved {
		action = audit.ActionApprovalGranted
	}
	if err := s.recorder.Record(ctx, audit.Entry{
		UserID:       approver.ID,
		Action:       action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Changes: map[string]any{
			"approval_id": req.ID,
			"category":    string(req.Category),
			"comments":    in.Comments,
		},
	}); err != nil {
		s.reopen(ctx, req, resolved.Status)
		return nil, err
	}

	s.metrics.RecordApprovalResolved(ctx, string(req.Category), string(resolved.Status))
	logging.NewEvent(s.logger.Info()).
		Add(logging.ApprovalID(req.ID)).
		Add(logging.Category(string(req.Category))).
		Add(logging.ActorID(approver.ID)).
		Add(logging.Approved(in.Approved)).
		Msg("approval request resolved")

	if in.Approved {
		if act, ok := s.actions[req.Category]; ok {
			if err := act(ctx, resolved.Clone(), approver.ID); err != nil {
				logging.NewEvent(s.logger.Error()).
					Add(logging.ApprovalID(req.ID)).
					Add(logging.Resource(req.ResourceType, req.ResourceID)).
					Add(logging.ErrorField(err)).
					Msg("gated action failed after approval")
				s.notifyRequester(ctx, resolved)
				return nil, fmt.Errorf("approval %s granted but gated action failed: %w", req.ID, err)
			}
		}
	}

	s.notifyRequester(ctx, resolved)
	return resolved, nil
}

// reopen undoes a resolution whose audit entry could not be written.
func (s *Service) reopen(ctx context.Context, pending *approval.Request, from approval.Status) {
	if err := s.store.CompareAndSwap(ctx, pending, from); err != nil {
		logging.NewEvent(s.logger.Error()).
			Add(logging.ApprovalID(pending.ID)).
			Add(logging.ErrorField(err)).
			Msg("failed to reopen unaudited resolution")
	}
}

// lostRace reports the status that beat a failed compare-and-swap.
func (s *Service) lostRace(ctx context.Context, id string, err error) error {
	if !errors.Is(err, approval.ErrStatusConflict) {
		return err
	}
	current, gerr := s.getRequest(ctx, id)
	if gerr != nil {
		return gerr
	}
	return alreadyResolved(current.Status)
}

func alreadyResolved(status approval.Status) error {
	return fault.InvalidState("Approval request already %s", strings.ToLower(string(status)))
}
