package decision

import "github.com/felixgeelhaar/decision-ledger/domain/fault"

var (
	// ErrDecisionNotFound indicates the decision was not found.
	ErrDecisionNotFound = &fault.Error{Kind: fault.ErrNotFound, Msg: "decision not found"}

	// ErrDecisionExists indicates a decision with this ID already exists.
	ErrDecisionExists = &fault.Error{Kind: fault.ErrInvalidInput, Msg: "decision already exists"}

	// ErrInvalidDecision indicates the decision is missing required fields.
	ErrInvalidDecision = &fault.Error{Kind: fault.ErrInvalidInput, Msg: "invalid decision"}

	// ErrStatusConflict indicates a conditional status write lost to a concurrent change.
	ErrStatusConflict = &fault.Error{Kind: fault.ErrInvalidState, Msg: "decision status changed concurrently"}
)
