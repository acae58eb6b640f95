package workflow

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/domain/resource"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
)

// CreateRequestInput describes a new approval request.
type CreateRequestInput struct {
	Category     approval.Category
	ResourceType string
	ResourceID   string
	Reason       string
	RequesterID  string

	// ExpirationHours overrides the default lifetime. An explicit zero
	// creates a request that is already due.
	ExpirationHours *int

	Metadata map[string]any
}

// CreateRequest records a PENDING request and notifies eligible approvers.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (req *approval.Request, err error) {
	ctx, span := s.tracer.Start(ctx, "approval.CreateRequest",
		telemetry.Category(string(in.Category)), telemetry.ActorID(in.RequesterID))
	defer func() { telemetry.End(span, err) }()
	defer s.observe(ctx, "create", time.Now(), &err)

	if !in.Category.Valid() {
		return nil, fault.InvalidInput("unknown approval category: %s", in.Category)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fault.InvalidInput("reason is required")
	}

	ttl := s.defaultTTL
	if in.ExpirationHours != nil {
		if *in.ExpirationHours < 0 {
			return nil, fault.InvalidInput("expiration hours must not be negative")
		}
		ttl = time.Duration(*in.ExpirationHours) * time.Hour
	}

	if err := s.resources.Check(ctx, in.ResourceType, in.ResourceID); err != nil {
		return nil, err
	}

	requester, err := s.resolveActor(ctx, in.RequesterID, "User not found: %s")
	if err != nil {
		return nil, err
	}

	req = approval.NewRequest(in.Category, in.ResourceType, in.ResourceID, in.RequesterID, in.Reason, ttl, s.now())
	req.RequesterName = requester.DisplayName()
	if len(in.Metadata) > 0 {
		req.Metadata = maps.Clone(in.Metadata)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, req); err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, audit.Entry{
		UserID:       req.RequesterID,
		Action:       audit.ActionApprovalRequested,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Changes:      map[string]any{"approval_id": req.ID, "category": string(req.Category), "reason": req.Reason},
	}); err != nil {
		if derr := s.store.Delete(ctx, req.ID); derr != nil {
			logging.NewEvent(s.logger.Error()).
				Add(logging.ApprovalID(req.ID)).
				Add(logging.ErrorField(derr)).
				Msg("failed to withdraw unaudited approval request")
		}
		return nil, err
	}

	s.metrics.RecordApprovalRequested(ctx, string(req.Category))
	logging.NewEvent(s.logger.Info()).
		Add(logging.ApprovalID(req.ID)).
		Add(logging.Category(string(req.Category))).
		Add(logging.Resource(req.ResourceType, req.ResourceID)).
		Add(logging.ActorID(req.RequesterID)).
		Msg("approval request created")

	s.notifyApprovers(ctx, req)
	return req.Clone(), nil
}

// RequestDecisionLock asks for a HIGH_RISK_DECISION approval to lock a DRAFT decision.
func (s *Service) RequestDecisionLock(ctx context.Context, decisionID, requesterID, reason string) (*approval.Request, error) {
	if s.ledger == nil {
		return nil, fault.InvalidState("decision ledger is not configured")
	}
	d, err := s.ledger.Get(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.Status != decision.StatusDraft {
		return nil, fault.InvalidState("Decision is not in %s status: %s", decision.StatusDraft, d.Status)
	}
	return s.CreateRequest(ctx, CreateRequestInput{
		Category:     approval.CategoryHighRiskDecision,
		ResourceType: decision.ResourceType,
		ResourceID:   decisionID,
		Reason:       reason,
		RequesterID:  requesterID,
		Metadata:     map[string]any{"statement": d.Statement},
	})
}

// RequestPolicyLock asks for a POLICY_LOCK approval.
func (s *Service) RequestPolicyLock(ctx context.Context, policyID, requesterID, reason string) (*approval.Request, error) {
	return s.CreateRequest(ctx, CreateRequestInput{
		Category:     approval.CategoryPolicyLock,
		ResourceType: resource.TypePolicy,
		ResourceID:   policyID,
		Reason:       reason,
		RequesterID:  requesterID,
	})
}

// RequestADRApproval asks for an ADR_APPROVAL approval.
func (s *Service) RequestADRApproval(ctx context.Context, adrID, requesterID, reason string, metadata map[string]any) (*approval.Request, error) {
	return s.CreateRequest(ctx, CreateRequestInput{
		Category:     approval.CategoryADRApproval,
		ResourceType: resource.TypeADR,
		ResourceID:   adrID,
		Reason:       reason,
		RequesterID:  requesterID,
		Metadata:     metadata,
	})
}
