// Package decision provides the append-only decision record.
package decision

// Status is the lifecycle state of a decision.
type Status string

const (
	// StatusDraft is the only mutable state; drafts may be locked or deleted.
	StatusDraft Status = "DRAFT"

	// StatusLocked is final unless superseded.
	StatusLocked Status = "LOCKED"

	// StatusSuperseded marks a decision replaced by a newer one.
	StatusSuperseded Status = "SUPERSEDED"

	// StatusAmended is reserved. No operation produces it.
	StatusAmended Status = "AMENDED"
)

// StatusTransitions defines valid status transitions.
var StatusTransitions = map[Status][]Status{
	StatusDraft:      {StatusLocked},
	StatusLocked:     {StatusSuperseded},
	StatusSuperseded: {},
	StatusAmended:    {},
}

// CanTransitionTo returns true if the transition from current status to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, valid := range StatusTransitions[s] {
		if valid == target {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := StatusTransitions[s]
	return ok
}

// IsImmutable returns true once the decision has left DRAFT.
func (s Status) IsImmutable() bool {
	return s != StatusDraft
}

// IsTerminal returns true if no further transition exists.
func (s Status) IsTerminal() bool {
	return len(StatusTransitions[s]) == 0
}
