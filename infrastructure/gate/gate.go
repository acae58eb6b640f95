// Package gate guards mutations that need a prior two-person approval.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/domain/resource"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/workflow"
)

// DefaultResourceIDParam is used when a Requirement names no parameter.
const DefaultResourceIDParam = "id"

// Requirement describes the approval a gated operation needs.
type Requirement struct {
	// Category is the approval category that must be APPROVED.
	Category approval.Category

	// ResourceType is the type the approval targets.
	ResourceType string

	// ResourceIDParam names the request parameter holding the resource id.
	ResourceIDParam string

	// AllowAdminBypass lets the top privilege tier skip the check.
	// It never applies to SECURITY_EXCEPTION.
	AllowAdminBypass bool

	// Message replaces the default denial message.
	Message string
}

func (r Requirement) param() string {
	if r.ResourceIDParam == "" {
		return DefaultResourceIDParam
	}
	return r.ResourceIDParam
}

// PolicyLock requires a POLICY_LOCK approval on a Policy.
func PolicyLock(param string) Requirement {
	return Requirement{
		Category:        approval.CategoryPolicyLock,
		ResourceType:    resource.TypePolicy,
		ResourceIDParam: orDefault(param, "policyId"),
		Message:         "Policy lock requires two-person approval",
	}
}

// ADRApproval requires an ADR_APPROVAL approval on an ADR.
func ADRApproval(param string) Requirement {
	return Requirement{
		Category:        approval.CategoryADRApproval,
		ResourceType:    resource.TypeADR,
		ResourceIDParam: orDefault(param, "adrId"),
		Message:         "ADR requires peer approval before finalization",
	}
}

// DecisionApproval requires a HIGH_RISK_DECISION approval on a decision.
func DecisionApproval(param string) Requirement {
	return Requirement{
		Category:        approval.CategoryHighRiskDecision,
		ResourceType:    resource.TypeDecision,
		ResourceIDParam: orDefault(param, "decisionId"),
		Message:         "High-risk decision requires two-person approval",
	}
}

// SecurityException requires a SECURITY_EXCEPTION approval. It cannot be bypassed.
func SecurityException(param string) Requirement {
	return Requirement{
		Category:        approval.CategorySecurityException,
		ResourceType:    resource.TypeSecurityException,
		ResourceIDParam: orDefault(param, "exceptionId"),
		Message:         "Security exception requires explicit approval",
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Request carries the inputs a resource id can be read from.
// Lookup order is Params, Body, Query.
type Request struct {
	Params map[string]string
	Body   map[string]any
	Query  map[string][]string
}

// ResourceID returns the first non-empty value of name.
func (r Request) ResourceID(name string) (string, bool) {
	if v := r.Params[name]; v != "" {
		return v, true
	}
	if v, ok := r.Body[name]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s, true
		}
	}
	for _, v := range r.Query[name] {
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// ApprovalChecker summarises the approvals recorded for a resource.
// *workflow.Service implements it.
type ApprovalChecker interface {
	HasApproval(ctx context.Context, resourceType, resourceID string, category approval.Category) (workflow.Summary, error)
}

// Gate checks requirements against recorded approvals. It reads approval
// state and never resolves requests.
type Gate struct {
	checker ApprovalChecker
	logger  *bolt.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(l *bolt.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithTracer sets the span tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(g *Gate) { g.tracer = t }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// New creates a Gate.
func New(checker ApprovalChecker, opts ...Option) *Gate {
	g := &Gate{checker: checker}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrDefault(g.logger)
	return g
}

// Check returns nil when caller may perform the operation guarded by req.
// Denials are Forbidden faults.
func (g *Gate) Check(ctx context.Context, caller actor.Actor, need Requirement, req Request) (err error) {
	ctx, span := g.tracer.Start(ctx, "gate.Check",
		telemetry.Category(string(need.Category)), telemetry.ActorID(caller.ID))
	defer func() { telemetry.End(span, err) }()

	start := time.Now()
	defer func() {
		g.metrics.RecordGateCheck(ctx, string(need.Category), err == nil)
		g.metrics.RecordOperation(ctx, "gate.check", err == nil || fault.KindOf(err) == fault.ErrForbidden, time.Since(start))
	}()

	if caller.ID == "" {
		return fault.Forbidden("Authentication required")
	}

	if need.AllowAdminBypass && need.Category.Bypassable() && caller.Role == actor.TopTier {
		logging.NewEvent(g.logger.Warn()).
			Add(logging.ActorID(caller.ID)).
			Add(logging.Category(string(need.Category))).
			Msg("approval gate bypassed by top-tier actor")
		return nil
	}

	id, ok := req.ResourceID(need.param())
	if !ok {
		return fault.Forbidden("resource id not found")
	}

	sum, err := g.checker.HasApproval(ctx, need.ResourceType, id, need.Category)
	if err != nil {
		return err
	}
	if sum.HasApproved {
		return nil
	}

	logging.NewEvent(g.logger.Info()).
		Add(logging.ActorID(caller.ID)).
		Add(logging.Category(string(need.Category))).
		Add(logging.Resource(need.ResourceType, id)).
		Add(logging.Str("pending", fmt.Sprint(sum.HasPending))).
		Msg("approval gate denied")

	if need.Message != "" {
		return fault.Forbidden("%s", need.Message)
	}
	if sum.HasPending {
		return fault.Forbidden("This action requires approval. A request is pending review.")
	}
	return fault.Forbidden("This action requires two-person approval. Please request approval first.")
}
