package workflow

import (
	"context"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/domain/notification"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
)

// NotifyExpiringSoon warns the requester of every PENDING request that
// expires within window and returns how many were warned. Status is not
// changed. A zero window uses DefaultExpiryWarningWindow.
func (s *Service) NotifyExpiringSoon(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		window = DefaultExpiryWarningWindow
	}
	now := s.now()

	reqs, err := s.store.List(ctx, approval.ListFilter{
		Status:        []approval.Status{approval.StatusPending},
		ExpiresBefore: now.Add(window),
	})
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, r := range reqs {
		if !r.ExpiresAt.After(now) {
			continue
		}
		if err := s.notifier.Notify(ctx, r.RequesterID, notification.TypeApprovalExpiring, notification.ExpiringPayload{
			ApprovalID: r.ID,
			Category:   string(r.Category),
			ExpiresAt:  r.ExpiresAt,
			Remaining:  r.ExpiresAt.Sub(now),
		}); err != nil {
			s.notifyFailed(r, r.RequesterID, err)
			continue
		}
		s.recorder.RecordBestEffort(ctx, audit.Entry{
			UserID:       r.RequesterID,
			Action:       audit.ActionApprovalExpiryWarningSent,
			ResourceType: r.ResourceType,
			ResourceID:   r.ResourceID,
			Changes:      map[string]any{"approval_id": r.ID, "expires_at": r.ExpiresAt},
		})
		logging.NewEvent(s.logger.Warn()).
			Add(logging.ApprovalID(r.ID)).
			Add(logging.Str("expires_at", r.ExpiresAt.Format(time.RFC3339))).
			Msg("approval request expiring soon")
		notified++
	}
	return notified, nil
}

// notifyApprovers tells every eligible approver except the requester about
// a new request. It needs a directory that can list actors by role.
func (s *Service) notifyApprovers(ctx context.Context, req *approval.Request) {
	lister, ok := s.directory.(actor.Lister)
	if !ok {
		return
	}
	roles, ok := s.rules.AllowedRoles(req.Category)
	if !ok {
		return
	}
	approvers, err := lister.ListByRoles(ctx, roles)
	if err != nil {
		s.notifyFailed(req, "", err)
		return
	}

	payload := notification.RequestedPayload{
		ApprovalID:    req.ID,
		Category:      string(req.Category),
		ResourceType:  req.ResourceType,
		ResourceID:    req.ResourceID,
		RequesterName: req.RequesterName,
		Reason:        req.Reason,
		ExpiresAt:     req.ExpiresAt,
	}
	sent := 0
	for _, a := range approvers {
		if a.ID == req.RequesterID {
			continue
		}
		if err := s.notifier.Notify(ctx, a.ID, notification.TypeApprovalRequested, payload); err != nil {
			s.notifyFailed(req, a.ID, err)
			continue
		}
		s.recorder.RecordBestEffort(ctx, audit.Entry{
			UserID:       a.ID,
			Action:       audit.ActionApprovalNotificationSent,
			ResourceType: req.ResourceType,
			ResourceID:   req.ResourceID,
			Changes:      map[string]any{"approval_id": req.ID, "notification_type": "NEW_REQUEST", "recipient": a.Email},
		})
		sent++
	}

	logging.NewEvent(s.logger.Debug()).
		Add(logging.ApprovalID(req.ID)).
		Add(logging.Count("approvers", sent)).
		Msg("eligible approvers notified")
}

// notifyRequester tells the requester how their request was resolved.
func (s *Service) notifyRequester(ctx context.Context, req *approval.Request) {
	payload := notification.ResolvedPayload{
		ApprovalID:   req.ID,
		Category:     string(req.Category),
		Approved:     req.Status == approval.StatusApproved,
		ApproverName: req.ApproverName,
		Comments:     req.ApproverComments,
	}
	if err := s.notifier.Notify(ctx, req.RequesterID, notification.TypeApprovalResolved, payload); err != nil {
		s.notifyFailed(req, req.RequesterID, err)
		return
	}
	s.recorder.RecordBestEffort(ctx, audit.Entry{
		UserID:       req.RequesterID,
		Action:       audit.ActionApprovalResponseNotificationSent,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Changes: map[string]any{
			"approval_id":       req.ID,
			"notification_type": string(req.Status),
			"responded_by":      req.ApproverID,
		},
	})
}

func (s *Service) notifyFailed(req *approval.Request, recipientID string, err error) {
	logging.NewEvent(s.logger.Warn()).
		Add(logging.Component("workflow")).
		Add(logging.ApprovalID(req.ID)).
		Add(logging.ActorID(recipientID)).
		Add(logging.ErrorField(err)).
		Msg("notification not delivered")
}
