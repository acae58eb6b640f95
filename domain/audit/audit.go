// Package audit defines the append-only audit trail consumed by the ledger
// and the approval workflow.
package audit

import (
	"context"
	"errors"
	"time"
)

// Action names a recorded state change.
type Action string

// Actions written by the ledger.
const (
	ActionDecisionCreated               Action = "DECISION_CREATED"
	ActionDecisionLocked                Action = "DECISION_LOCKED"
	ActionDecisionSuperseded            Action = "DECISION_SUPERSEDED"
	ActionDecisionCreatedAsSupersession Action = "DECISION_CREATED_AS_SUPERSESSION"
	ActionDecisionDeleted               Action = "DECISION_DELETED"
)

// Actions written by the approval workflow.
const (
	ActionApprovalRequested                Action = "APPROVAL_REQUESTED"
	ActionApprovalGranted                  Action = "APPROVAL_GRANTED"
	ActionApprovalRejected                 Action = "APPROVAL_REJECTED"
	ActionApprovalExpired                  Action = "APPROVAL_EXPIRED"
	ActionApprovalNotificationSent         Action = "APPROVAL_NOTIFICATION_SENT"
	ActionApprovalResponseNotificationSent Action = "APPROVAL_RESPONSE_NOTIFICATION_SENT"
	ActionApprovalExpiryWarningSent        Action = "APPROVAL_EXPIRY_WARNING_SENT"
)

// Entry is one audit record.
type Entry struct {
	// Seq is assigned by sinks that order entries; zero before append.
	Seq          uint64         `json:"seq,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       string         `json:"user_id"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Changes      map[string]any `json:"changes,omitempty"`
}

// Sink receives audit entries.
type Sink interface {
	// Append records an entry. Entries are never modified after append.
	Append(ctx context.Context, entry Entry) error
}

// Reader is implemented by sinks that can be queried.
type Reader interface {
	// Query returns entries matching the filter in append order.
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}

// Filter specifies criteria for querying entries.
type Filter struct {
	StartTime    time.Time
	EndTime      time.Time
	Actions      []Action
	UserID       string
	ResourceType string
	ResourceID   string
	Limit        int
}

// Matches reports whether e satisfies the filter.
func (f Filter) Matches(e Entry) bool {
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	return true
}

// ErrSinkClosed indicates an append after Close.
var ErrSinkClosed = errors.New("audit sink is closed")
