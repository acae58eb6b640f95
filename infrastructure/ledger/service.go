// Package ledger implements the append-only decision ledger: drafts are
// locked once and afterwards only replaced through supersession.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/domain/resource"
	infraaudit "github.com/felixgeelhaar/decision-ledger/infrastructure/audit"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/statemachine"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
)

// Service owns every Decision mutation.
type Service struct {
	store         decision.Store
	resources     *resource.Registry
	recorder      *infraaudit.Recorder
	lifecycle     *statemachine.Lifecycle
	logger        *bolt.Logger
	tracer        *telemetry.Tracer
	metrics       *telemetry.Metrics
	maxChainDepth int
	txAudit       bool
	mirror        *infraaudit.Recorder
	now           func() time.Time
}

// New creates a ledger service.
func New(store decision.Store, resources *resource.Registry, recorder *infraaudit.Recorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger: store is required")
	}
	if recorder == nil {
		return nil, errors.New("ledger: audit recorder is required")
	}
	if resources == nil {
		resources = resource.NewRegistry()
	}

	lifecycle, err := statemachine.DecisionLifecycle()
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:         store,
		resources:     resources,
		recorder:      recorder,
		lifecycle:     lifecycle,
		maxChainDepth: DefaultMaxChainDepth,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	return s, nil
}

// CreateInput holds the fields of a new decision.
type CreateInput struct {
	SessionID   string
	Statement   string
	Assumptions string
	References  string
	OwnerID     string
}

// Create records a DRAFT decision in an existing session.
func (s *Service) Create(ctx context.Context, in CreateInput) (d *decision.Decision, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Create")
	defer func() { telemetry.End(span, err) }()
	defer s.observe(ctx, "create", time.Now(), &err)

	if err := s.resources.Check(ctx, resource.TypeSession, in.SessionID); err != nil {
		return nil, err
	}

	d = decision.NewDraft(in.SessionID, in.OwnerID, decision.Content{
		Statement:   in.Statement,
		Assumptions: in.Assumptions,
		References:  in.References,
	})
	if err := d.ValidateNew(); err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx decision.Tx, record recordFunc) error {
		if err := tx.Insert(ctx, d); err != nil {
			return err
		}
		return record(audit.Entry{
			UserID:       in.OwnerID,
			Action:       audit.ActionDecisionCreated,
			ResourceType: decision.ResourceType,
			ResourceID:   d.ID,
			Changes:      map[string]any{"session_id": d.SessionID, "status": string(d.Status)},
		})
	})
	if err != nil {
		return nil, err
	}

	logging.NewEvent(s.logger.Info()).
		Add(logging.DecisionID(d.ID)).
		Add(logging.SessionID(d.SessionID)).
		Add(logging.ActorID(in.OwnerID)).
		Msg("decision created")
	return d, nil
}

// Lock moves a DRAFT decision to LOCKED.
func (s *Service) Lock(ctx context.Context, id, actorID string) (*decision.Decision, error) {
	return s.UpdateStatus(ctx, id, decision.StatusLocked, actorID)
}

// UpdateStatus applies an explicit status change. DRAFT to LOCKED is the
// only change a caller may request; supersession has its own operation.
func (s *Service) UpdateStatus(ctx context.Context, id string, target decision.Status, actorID string) (d *decision.Decision, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.UpdateStatus", telemetry.DecisionID(id), telemetry.ActorID(actorID))
	defer func() { telemetry.End(span, err) }()
	defer s.observe(ctx, "lock", time.Now(), &err)

	err = s.withTx(ctx, func(tx decision.Tx, record recordFunc) error {
		current, err := getDecision(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := current.CheckLock(); err != nil {
			return err
		}
		if target != decision.StatusLocked {
			return fault.InvalidTransition("Invalid status transition. Only %s -> %s is allowed.", decision.StatusDraft, decision.StatusLocked)
		}
		if _, err := s.lifecycle.Transition(string(current.Status), string(target), "lock"); err != nil {
			return fault.InvalidTransition("%v", err)
		}

		if err := tx.UpdateStatus(ctx, id, decision.StatusDraft, decision.StatusLocked); err != nil {
			return lostRace(err, id)
		}
		if err := record(audit.Entry{
			UserID:       actorID,
			Action:       audit.ActionDecisionLocked,
			ResourceType: decision.ResourceType,
			ResourceID:   id,
			Changes:      map[string]any{"from": string(decision.StatusDraft), "to": string(decision.StatusLocked)},
		}); err != nil {
			return err
		}

		d = current.Clone()
		d.Status = decision.StatusLocked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDecisionTransition(ctx, string(decision.StatusDraft), string(decision.StatusLocked))
	logging.NewEvent(s.logger.Info()).
		Add(logging.DecisionID(id)).
		Add(logging.ActorID(actorID)).
		Add(logging.ToStatus(string(decision.StatusLocked))).
		Msg("decision locked")
	return d, nil
}

// SupersedeInput holds the replacement content for a locked decision.
type SupersedeInput struct {
	OriginalID  string
	Statement   string
	Assumptions string
	References  string
	OwnerID     string
}

// Supersede replaces a LOCKED decision. The successor is inserted LOCKED and
// the original flipped to SUPERSEDED in one transaction.
func (s *Service) Supersede(ctx context.Context, in SupersedeInput) (next *decision.Decision, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Supersede", telemetry.DecisionID(in.OriginalID), telemetry.ActorID(in.OwnerID))
	defer func() { telemetry.End(span, err) }()
	defer s.observe(ctx, "supersede", time.Now(), &err)

	err = s.withTx(ctx, func(tx decision.Tx, record recordFunc) error {
		original, err := getDecision(ctx, tx, in.OriginalID)
		if err != nil {
			return err
		}
		if err := original.CheckSupersede(); err != nil {
			return err
		}
		if _, err := s.lifecycle.Transition(string(original.Status), string(decision.StatusSuperseded), "supersede"); err != nil {
			return fault.InvalidTransition("%v", err)
		}

		next = decision.NewSupersession(original, in.OwnerID, decision.Content{
			Statement:   in.Statement,
			Assumptions: in.Assumptions,
			References:  in.References,
		})
		if err := next.ValidateNew(); err != nil {
			return err
		}

		if err := tx.Insert(ctx, next); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, original.ID, decision.StatusLocked, decision.StatusSuperseded); err != nil {
			return lostRace(err, original.ID)
		}

		if err := record(audit.Entry{
			UserID:       in.OwnerID,
			Action:       audit.ActionDecisionSuperseded,
			ResourceType: decision.ResourceType,
			ResourceID:   original.ID,
			Changes:      map[string]any{"superseded_by": next.ID},
		}); err != nil {
			return err
		}
		return record(audit.Entry{
			UserID:       in.OwnerID,
			Action:       audit.ActionDecisionCreatedAsSupersession,
			ResourceType: decision.ResourceType,
			ResourceID:   next.ID,
			Changes:      map[string]any{"supersedes": original.ID},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDecisionTransition(ctx, string(decision.StatusLocked), string(decision.StatusSuperseded))
	logging.NewEvent(s.logger.Info()).
		Add(logging.DecisionID(next.ID)).
		Add(logging.Str("supersedes_id", in.OriginalID)).
		Add(logging.ActorID(in.OwnerID)).
		Msg("decision superseded")
	return next, nil
}

// Get returns a decision by ID.
func (s *Service) Get(ctx context.Context, id string) (*decision.Decision, error) {
	return getDecision(ctx, s.store, id)
}

// List returns decisions matching filter, newest first.
func (s *Service) List(ctx context.Context, filter decision.ListFilter) ([]*decision.Decision, error) {
	filter.Descending = true
	return s.store.List(ctx, filter)
}

// DeleteDraft removes a decision that has never been locked.
func (s *Service) DeleteDraft(ctx context.Context, id, actorID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.DeleteDraft", telemetry.DecisionID(id), telemetry.ActorID(actorID))
	defer func() { telemetry.End(span, err) }()
	defer s.observe(ctx, "delete", time.Now(), &err)

	err = s.withTx(ctx, func(tx decision.Tx, record recordFunc) error {
		d, err := getDecision(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := d.CheckDelete(); err != nil {
			return err
		}
		if err := tx.Delete(ctx, id, decision.StatusDraft); err != nil {
			return lostRace(err, id)
		}
		return record(audit.Entry{
			UserID:       actorID,
			Action:       audit.ActionDecisionDeleted,
			ResourceType: decision.ResourceType,
			ResourceID:   id,
			Changes:      map[string]any{"session_id": d.SessionID},
		})
	})
	if err != nil {
		return err
	}

	logging.NewEvent(s.logger.Info()).
		Add(logging.DecisionID(id)).
		Add(logging.ActorID(actorID)).
		Msg("draft decision deleted")
	return nil
}

type recordFunc func(audit.Entry) error

// withTx runs fn in a store transaction. When the store keeps the audit log
// itself, entries are written through the transaction so they commit or roll
// back with the decision writes, and are copied to the mirror sinks once the
// transaction has committed.
func (s *Service) withTx(ctx context.Context, fn func(tx decision.Tx, record recordFunc) error) error {
	var committed []audit.Entry
	err := s.store.WithTx(ctx, func(tx decision.Tx) error {
		committed = committed[:0]
		sink, ok := tx.(audit.Sink)
		if !ok || !s.txAudit {
			return fn(tx, func(entry audit.Entry) error {
				return s.recorder.Record(ctx, entry)
			})
		}
		return fn(tx, func(entry audit.Entry) error {
			if entry.Timestamp.IsZero() {
				entry.Timestamp = time.Now().UTC()
			}
			if err := s.recorder.RecordTo(ctx, sink, entry); err != nil {
				return err
			}
			committed = append(committed, entry)
			return nil
		})
	})
	if err != nil || s.mirror == nil {
		return err
	}

	var errs []error
	for _, entry := range committed {
		if err := s.mirror.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, errp *error) {
	s.metrics.RecordOperation(ctx, "ledger."+op, *errp == nil, time.Since(start))
}

type getter interface {
	Get(ctx context.Context, id string) (*decision.Decision, error)
}

func getDecision(ctx context.Context, g getter, id string) (*decision.Decision, error) {
	d, err := g.Get(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return nil, fault.NotFound("Decision not found: %s", id)
	}
	return d, err
}

// lostRace turns a failed conditional write into the caller-facing error.
func lostRace(err error, id string) error {
	if errors.Is(err, decision.ErrStatusConflict) {
		return fault.InvalidState("Decision %s was modified concurrently", id)
	}
	return err
}
