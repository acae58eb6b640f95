// Package workflow runs two-person approval requests: creation, resolution
// by a distinct permitted approver, lazy expiry and the gated action that
// follows an approval.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/domain/notification"
	"github.com/felixgeelhaar/decision-ledger/domain/resource"
	infraaudit "github.com/felixgeelhaar/decision-ledger/infrastructure/audit"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/resilience"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/statemachine"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
)

// DefaultExpiryWarningWindow is the look-ahead used by NotifyExpiringSoon
// when the caller passes zero.
const DefaultExpiryWarningWindow = 24 * time.Hour

// Ledger is the part of the decision ledger the workflow drives.
type Ledger interface {
	Get(ctx context.Context, id string) (*decision.Decision, error)
	Lock(ctx context.Context, id, actorID string) (*decision.Decision, error)
}

// Action runs after a request is approved. approverID is the actor the
// action is attributed to.
type Action func(ctx context.Context, req *approval.Request, approverID string) error

// Service orchestrates approval requests.
type Service struct {
	store     approval.Store
	directory actor.Directory
	rules     approval.RuleTable
	resources *resource.Registry
	recorder  *infraaudit.Recorder
	notifier  notification.Dispatcher
	ledger    Ledger
	actions   map[approval.Category]Action
	lifecycle *statemachine.Lifecycle

	directoryBoundary *resilience.Boundary
	defaultTTL        time.Duration

	logger  *bolt.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithRules replaces the default rule table.
func WithRules(rules approval.RuleTable) Option {
	return func(s *Service) {
		if rules != nil {
			s.rules = rules
		}
	}
}

// WithResources sets the resource existence registry.
func WithResources(r *resource.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.resources = r
		}
	}
}

// WithNotifier sets the notification dispatcher.
func WithNotifier(n notification.Dispatcher) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLedger enables the HIGH_RISK_DECISION lock action and decision lock requests.
func WithLedger(l Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

// WithAction registers the action run when a request of category is approved.
func WithAction(category approval.Category, a Action) Option {
	return func(s *Service) {
		s.actions[category] = a
	}
}

// WithDirectoryBoundary bounds directory lookups.
func WithDirectoryBoundary(b *resilience.Boundary) Option {
	return func(s *Service) {
		s.directoryBoundary = b
	}
}

// WithDefaultExpiration sets the lifetime of requests created without one.
func WithDefaultExpiration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultTTL = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *bolt.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTracer sets the span tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a workflow service.
func New(store approval.Store, directory actor.Directory, recorder *infraaudit.Recorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("workflow: store is required")
	}
	if directory == nil {
		return nil, errors.New("workflow: actor directory is required")
	}
	if recorder == nil {
		return nil, errors.New("workflow: audit recorder is required")
	}

	lifecycle, err := statemachine.ApprovalLifecycle()
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:      store,
		directory:  directory,
		rules:      approval.DefaultRules(),
		resources:  resource.NewRegistry(),
		recorder:   recorder,
		notifier:   notification.Nop,
		actions:    make(map[approval.Category]Action),
		lifecycle:  lifecycle,
		defaultTTL: approval.DefaultExpiration,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)

	if _, ok := s.actions[approval.CategoryHighRiskDecision]; !ok && s.ledger != nil {
		s.actions[approval.CategoryHighRiskDecision] = s.lockDecision
	}
	for _, c := range []approval.Category{approval.CategoryPolicyLock, approval.CategoryADRApproval} {
		if _, ok := s.actions[c]; !ok {
			s.actions[c] = s.logApproved
		}
	}
	return s, nil
}

// lockDecision is the HIGH_RISK_DECISION action: approving a DecisionLog
// request locks the decision on behalf of the approver.
func (s *Service) lockDecision(ctx context.Context, req *approval.Request, approverID string) error {
	if req.ResourceType != decision.ResourceType {
		return nil
	}
	if _, err := s.ledger.Lock(ctx, req.ResourceID, approverID); err != nil {
		return err
	}
	logging.NewEvent(s.logger.Info()).
		Add(logging.DecisionID(req.ResourceID)).
		Add(logging.ApprovalID(req.ID)).
		Msg("decision locked after two-person approval")
	return nil
}

func (s *Service) logApproved(_ context.Context, req *approval.Request, approverID string) error {
	logging.NewEvent(s.logger.Info()).
		Add(logging.Resource(req.ResourceType, req.ResourceID)).
		Add(logging.Category(string(req.Category))).
		Add(logging.ActorID(approverID)).
		Msg("approved resource released")
	return nil
}

// resolveActor looks id up in the directory. notFound formats the NotFound message.
func (s *Service) resolveActor(ctx context.Context, id, notFound string) (actor.Actor, error) {
	a, err := resilience.Call(ctx, s.directoryBoundary, func(ctx context.Context) (actor.Actor, error) {
		return s.directory.Resolve(ctx, id)
	})
	if errors.Is(err, actor.ErrActorNotFound) {
		return actor.Actor{}, fault.NotFound(notFound, id)
	}
	if err != nil {
		return actor.Actor{}, err
	}
	return a, nil
}

func (s *Service) getRequest(ctx context.Context, id string) (*approval.Request, error) {
	req, err := s.store.Get(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return nil, fault.NotFound("Approval request not found: %s", id)
	}
	return req, err
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, errp *error) {
	s.metrics.RecordOperation(ctx, "approval."+op, *errp == nil, time.Since(start))
}
