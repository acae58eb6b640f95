package mcp

import (
	"context"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/gate"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/ledger"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/workflow"
)

type sessionInput struct {
	SessionID string `json:"session_id"`
}

type decisionInput struct {
	DecisionID string `json:"decision_id"`
	ActorID    string `json:"actor_id,omitempty"`
}

type createInput struct {
	SessionID   string `json:"session_id"`
	Statement   string `json:"statement"`
	Assumptions string `json:"assumptions,omitempty"`
	References  string `json:"references,omitempty"`
	OwnerID     string `json:"owner_id"`
}

type supersedeInput struct {
	OriginalID  string `json:"original_id"`
	Statement   string `json:"statement"`
	Assumptions string `json:"assumptions,omitempty"`
	References  string `json:"references,omitempty"`
	OwnerID     string `json:"owner_id"`
}

type requestInput struct {
	Category        approval.Category `json:"category"`
	ResourceType    string            `json:"resource_type"`
	ResourceID      string            `json:"resource_id"`
	Reason          string            `json:"reason"`
	RequesterID     string            `json:"requester_id"`
	ExpirationHours *int              `json:"expiration_hours,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
}

type respondInput struct {
	ApprovalID string `json:"approval_id"`
	ApproverID string `json:"approver_id"`
	Approved   bool   `json:"approved"`
	Comments   string `json:"comments,omitempty"`
}

type userInput struct {
	UserID string `json:"user_id"`
}

type checkInput struct {
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Category     approval.Category `json:"category,omitempty"`
}

type gatedInput struct {
	ActorID  string `json:"actor_id"`
	PolicyID string `json:"policyId,omitempty"`
	ADRID    string `json:"adrId,omitempty"`
}

type released struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	ReleasedBy   string `json:"released_by"`
}

func (s *Server) registerLedgerTools() {
	s.register("session_register", "Register a session decisions can be filed under",
		typed(func(ctx context.Context, in sessionInput) (map[string]string, error) {
			if err := s.sys.RegisterSession(ctx, in.SessionID); err != nil {
				return nil, err
			}
			return map[string]string{"session_id": in.SessionID}, nil
		}))

	s.register("decision_create", "Record a DRAFT decision",
		typed(func(ctx context.Context, in createInput) (*decision.Decision, error) {
			return s.sys.Ledger.Create(ctx, ledger.CreateInput{
				SessionID:   in.SessionID,
				Statement:   in.Statement,
				Assumptions: in.Assumptions,
				References:  in.References,
				OwnerID:     in.OwnerID,
			})
		}))

	s.register("decision_lock", "Lock a DRAFT decision, making it immutable",
		typed(func(ctx context.Context, in decisionInput) (*decision.Decision, error) {
			return s.sys.Ledger.Lock(ctx, in.DecisionID, in.ActorID)
		}))

	s.register("decision_supersede", "Replace a LOCKED decision with a new LOCKED one",
		typed(func(ctx context.Context, in supersedeInput) (*decision.Decision, error) {
			return s.sys.Ledger.Supersede(ctx, ledger.SupersedeInput{
				OriginalID:  in.OriginalID,
				Statement:   in.Statement,
				Assumptions: in.Assumptions,
				References:  in.References,
				OwnerID:     in.OwnerID,
			})
		}))

	s.register("decision_get", "Fetch a decision",
		typed(func(ctx context.Context, in decisionInput) (*decision.Decision, error) {
			return s.sys.Ledger.Get(ctx, in.DecisionID)
		}))

	s.register("decision_chain", "Return the supersession chain through a decision, oldest first",
		typed(func(ctx context.Context, in decisionInput) ([]*decision.Decision, error) {
			return s.sys.Ledger.Chain(ctx, in.DecisionID)
		}))

	s.register("decision_export", "Export a session's decisions for audit",
		typed(func(ctx context.Context, in sessionInput) (*decision.AuditExport, error) {
			return s.sys.Ledger.ExportForAudit(ctx, in.SessionID)
		}))
}

func (s *Server) registerApprovalTools() {
	s.register("approval_request", "Open a two-person approval request",
		typed(func(ctx context.Context, in requestInput) (*approval.Request, error) {
			return s.sys.Workflow.CreateRequest(ctx, workflow.CreateRequestInput{
				Category:        in.Category,
				ResourceType:    in.ResourceType,
				ResourceID:      in.ResourceID,
				Reason:          in.Reason,
				RequesterID:     in.RequesterID,
				ExpirationHours: in.ExpirationHours,
				Metadata:        in.Metadata,
			})
		}))

	s.register("approval_respond", "Approve or reject a pending request",
		typed(func(ctx context.Context, in respondInput) (*approval.Request, error) {
			return s.sys.Workflow.Respond(ctx, workflow.RespondInput{
				ApprovalID: in.ApprovalID,
				ApproverID: in.ApproverID,
				Approved:   in.Approved,
				Comments:   in.Comments,
			})
		}))

	s.register("approval_pending", "List pending requests a user may act on",
		typed(func(ctx context.Context, in userInput) ([]*approval.Request, error) {
			return s.sys.Workflow.ListPending(ctx, in.UserID)
		}))

	s.register("approval_check", "Report pending and approved requests for a resource",
		typed(func(ctx context.Context, in checkInput) (workflow.Summary, error) {
			return s.sys.Workflow.HasApproval(ctx, in.ResourceType, in.ResourceID, in.Category)
		}))
}

func (s *Server) registerGatedTools() {
	s.register("policy_lock", "Lock a policy; requires an approved POLICY_LOCK request",
		s.gated(gate.PolicyLock(""), func(in gatedInput) (string, string) { return "Policy", in.PolicyID }))

	s.register("adr_finalize", "Finalize an ADR; requires an approved ADR_APPROVAL request",
		s.gated(gate.ADRApproval(""), func(in gatedInput) (string, string) { return "ADR", in.ADRID }))
}

// gated runs the approval gate for need and reports the released resource.
func (s *Server) gated(need gate.Requirement, target func(gatedInput) (string, string)) Handler {
	return typed(func(ctx context.Context, in gatedInput) (released, error) {
		if in.ActorID == "" {
			return released{}, fault.Forbidden("Authentication required")
		}
		caller, err := s.sys.Directory.Resolve(ctx, in.ActorID)
		if err != nil {
			return released{}, fault.Forbidden("Authentication required")
		}

		resourceType, id := target(in)
		req := gate.Request{Body: map[string]any{need.ResourceIDParam: id}}
		if err := s.sys.Gate.Check(ctx, caller, need, req); err != nil {
			return released{}, err
		}
		return released{ResourceType: resourceType, ResourceID: id, ReleasedBy: caller.ID}, nil
	})
}
