// Package statemachine declares the decision and approval lifecycles as
// statekit statecharts.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
)

// Context carries one transition attempt through a machine.
type Context struct {
	// Current mirrors the interpreter state.
	Current string
	// Allowed is the domain transition table.
	Allowed func(from, to string) bool
	// History records every transition taken.
	History []Step
}

// Machine IDs.
const (
	DecisionMachineID = "decision"
	ApprovalMachineID = "approval"
)

// Decision lifecycle states and events.
const (
	stateDraft      statekit.StateID = statekit.StateID(decision.StatusDraft)
	stateLocked     statekit.StateID = statekit.StateID(decision.StatusLocked)
	stateSuperseded statekit.StateID = statekit.StateID(decision.StatusSuperseded)
	stateAmended    statekit.StateID = statekit.StateID(decision.StatusAmended)

	EventLock      statekit.EventType = "LOCK"
	EventSupersede statekit.EventType = "SUPERSEDE"
)

// Approval lifecycle states and events.
const (
	statePending  statekit.StateID = statekit.StateID(approval.StatusPending)
	stateApproved statekit.StateID = statekit.StateID(approval.StatusApproved)
	stateRejected statekit.StateID = statekit.StateID(approval.StatusRejected)
	stateExpired  statekit.StateID = statekit.StateID(approval.StatusExpired)

	EventApprove statekit.EventType = "APPROVE"
	EventReject  statekit.EventType = "REJECT"
	EventExpire  statekit.EventType = "EXPIRE"
)

// NewDecisionMachine creates the decision statechart.
// AMENDED is declared final with no incoming transition.
func NewDecisionMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context](DecisionMachineID).
		WithInitial(stateDraft).
		WithContext(&Context{}).
		WithAction("recordTransition", recordTransition).
		WithGuard("canTransition", guardCanTransition).
		State(stateDraft).
			On(EventLock).Target(stateLocked).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateLocked).
			On(EventSupersede).Target(stateSuperseded).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateSuperseded).
			Final().
			Done().
		State(stateAmended).
			Final().
			Done().
		Build()
}

// NewApprovalMachine creates the approval request statechart.
func NewApprovalMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context](ApprovalMachineID).
		WithInitial(statePending).
		WithContext(&Context{}).
		WithAction("recordTransition", recordTransition).
		WithGuard("canTransition", guardCanTransition).
		State(statePending).
			On(EventApprove).Target(stateApproved).Guard("canTransition").Do("recordTransition").
			On(EventReject).Target(stateRejected).Guard("canTransition").Do("recordTransition").
			On(EventExpire).Target(stateExpired).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateApproved).
			Final().
			Done().
		State(stateRejected).
			Final().
			Done().
		State(stateExpired).
			Final().
			Done().
		Build()
}

// DecisionEvent returns the event that moves a decision into to.
func DecisionEvent(to decision.Status) (statekit.EventType, bool) {
	switch to {
	case decision.StatusLocked:
		return EventLock, true
	case decision.StatusSuperseded:
		return EventSupersede, true
	default:
		return "", false
	}
}

// ApprovalEvent returns the event that moves a request into to.
func ApprovalEvent(to approval.Status) (statekit.EventType, bool) {
	switch to {
	case approval.StatusApproved:
		return EventApprove, true
	case approval.StatusRejected:
		return EventReject, true
	case approval.StatusExpired:
		return EventExpire, true
	default:
		return "", false
	}
}
