package statemachine

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
)

// ErrTransitionRejected indicates the machine refused the transition.
var ErrTransitionRejected = errors.New("transition rejected by state machine")

// Lifecycle computes transitions for one machine. It is safe for
// concurrent use; every call runs on a fresh interpreter.
type Lifecycle struct {
	id      string
	initial string
	machine *statekit.MachineConfig[*Context]
	allowed func(from, to string) bool
	event   func(to string) (statekit.EventType, bool)
}

// DecisionLifecycle returns the decision lifecycle.
func DecisionLifecycle() (*Lifecycle, error) {
	machine, err := NewDecisionMachine()
	if err != nil {
		return nil, fmt.Errorf("build decision machine: %w", err)
	}
	return &Lifecycle{
		id:      DecisionMachineID,
		initial: string(decision.StatusDraft),
		machine: machine,
		allowed: func(from, to string) bool {
			return decision.Status(from).CanTransitionTo(decision.Status(to))
		},
		event: func(to string) (statekit.EventType, bool) {
			return DecisionEvent(decision.Status(to))
		},
	}, nil
}

// ApprovalLifecycle returns the approval request lifecycle.
func ApprovalLifecycle() (*Lifecycle, error) {
	machine, err := NewApprovalMachine()
	if err != nil {
		return nil, fmt.Errorf("build approval machine: %w", err)
	}
	return &Lifecycle{
		id:      ApprovalMachineID,
		initial: string(approval.StatusPending),
		machine: machine,
		allowed: func(from, to string) bool {
			return approval.Status(from).CanTransitionTo(approval.Status(to))
		},
		event: func(to string) (statekit.EventType, bool) {
			return ApprovalEvent(approval.Status(to))
		},
	}, nil
}

// ID returns the machine ID.
func (l *Lifecycle) ID() string {
	return l.id
}

// CanTransition reports whether from → to is a declared transition.
func (l *Lifecycle) CanTransition(from, to string) bool {
	return l.allowed(from, to)
}

// Transition drives a fresh interpreter from from to to and returns the
// resulting step. It fails with ErrTransitionRejected when the machine does
// not end in to.
func (l *Lifecycle) Transition(from, to, reason string) (step Step, err error) {
	if !l.allowed(from, to) {
		return Step{}, fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, from, to)
	}
	eventType, ok := l.event(to)
	if !ok {
		return Step{}, fmt.Errorf("%w: no event leads to %s", ErrTransitionRejected, to)
	}

	// Send panics on events the current state does not declare.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTransitionRejected, r)
		}
	}()

	ctx := &Context{Current: from, Allowed: l.allowed}
	interp := statekit.NewInterpreter(l.machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})

	if from == l.initial {
		interp.Start()
	} else {
		snapshot := statekit.Snapshot[*Context]{
			MachineID:    l.id,
			CurrentState: statekit.StateID(from),
			Context:      ctx,
			CreatedAt:    time.Now(),
		}
		if err := interp.Restore(snapshot); err != nil {
			return Step{}, fmt.Errorf("failed to restore state: %w", err)
		}
	}

	interp.Send(statekit.Event{
		Type:    eventType,
		Payload: TransitionPayload{ToState: to, Reason: reason},
	})

	if got := string(interp.State().Value); got != to {
		return Step{}, fmt.Errorf("%w: %s -> %s ended in %s", ErrTransitionRejected, from, to, got)
	}
	if len(ctx.History) == 0 {
		return Step{From: from, To: to, Reason: reason, At: time.Now().UTC()}, nil
	}
	return ctx.History[len(ctx.History)-1], nil
}
