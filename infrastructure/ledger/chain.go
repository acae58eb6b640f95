package ledger

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/domain/resource"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
)

// Chain returns the supersession history containing id, oldest first.
// It walks SupersedesID back to the root and then follows successors
// forward. A revisited decision, a branch, or a chain longer than the
// configured depth fails with an integrity error.
func (s *Service) Chain(ctx context.Context, id string) (chain []*decision.Decision, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Chain", telemetry.DecisionID(id))
	defer func() { telemetry.End(span, err) }()

	start, err := getDecision(ctx, s.store, id)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{start.ID: true}
	visit := func(d *decision.Decision) error {
		if seen[d.ID] {
			return fault.Integrity("Supersession cycle detected at decision %s", d.ID)
		}
		seen[d.ID] = true
		if len(seen) > s.maxChainDepth {
			return fault.Integrity("Supersession chain of %s exceeds %d decisions", id, s.maxChainDepth)
		}
		return nil
	}

	var back []*decision.Decision
	for cur := start; cur.SupersedesID != ""; {
		prev, err := s.store.Get(ctx, cur.SupersedesID)
		if errors.Is(err, fault.ErrNotFound) {
			// A removed predecessor ends the walk.
			break
		}
		if err != nil {
			return nil, err
		}
		if err := visit(prev); err != nil {
			return nil, s.integrity(id, err)
		}
		back = append(back, prev)
		cur = prev
	}

	chain = make([]*decision.Decision, 0, len(back)+1)
	for i := len(back) - 1; i >= 0; i-- {
		chain = append(chain, back[i])
	}
	chain = append(chain, start)

	for cur := start; ; {
		next, err := s.store.Successors(ctx, cur.ID)
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			break
		}
		if len(next) > 1 {
			return nil, s.integrity(id, fault.Integrity("Decision %s has %d successors", cur.ID, len(next)))
		}
		if err := visit(next[0]); err != nil {
			return nil, s.integrity(id, err)
		}
		chain = append(chain, next[0])
		cur = next[0]
	}

	return chain, nil
}

func (s *Service) integrity(id string, err error) error {
	logging.NewEvent(s.logger.Error()).
		Add(logging.Component("ledger")).
		Add(logging.DecisionID(id)).
		Add(logging.ErrorField(err)).
		Msg("supersession chain is corrupt")
	return err
}

// ExportForAudit returns every decision of a session, oldest first, with the
// map from superseded ID to its successors.
func (s *Service) ExportForAudit(ctx context.Context, sessionID string) (export *decision.AuditExport, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ExportForAudit")
	defer func() { telemetry.End(span, err) }()

	if err := s.resources.Check(ctx, resource.TypeSession, sessionID); err != nil {
		return nil, err
	}

	decisions, err := s.store.List(ctx, decision.ListFilter{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	return &decision.AuditExport{
		ExportedAt:        s.now(),
		SessionID:         sessionID,
		TotalDecisions:    len(decisions),
		Decisions:         decisions,
		SupersessionChain: decision.BuildSupersessionChain(decisions),
	}, nil
}
