package approval

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// StatusTransitions defines valid status transitions.
var StatusTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved: {},
	StatusRejected: {},
	StatusExpired:  {},
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

// IsTerminal returns true if the request can no longer change.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}
