package approval

import "github.com/felixgeelhaar/decision-ledger/domain/fault"

var (
	// ErrRequestNotFound indicates the approval request was not found.
	ErrRequestNotFound = &fault.Error{Kind: fault.ErrNotFound, Msg: "approval request not found"}

	// ErrRequestExists indicates a request with this ID already exists.
	ErrRequestExists = &fault.Error{Kind: fault.ErrInvalidInput, Msg: "approval request already exists"}

	// ErrInvalidRequest indicates the request is missing required fields.
	ErrInvalidRequest = &fault.Error{Kind: fault.ErrInvalidInput, Msg: "invalid approval request"}

	// ErrStatusConflict indicates a conditional write observed a different status.
	ErrStatusConflict = &fault.Error{Kind: fault.ErrInvalidState, Msg: "approval request status changed concurrently"}

	// ErrUnknownCategory indicates the rule table has no entry for the category.
	ErrUnknownCategory = &fault.Error{Kind: fault.ErrInvalidInput, Msg: "unknown approval category"}
)
