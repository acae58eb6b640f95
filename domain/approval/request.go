package approval

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/decision-ledger/domain/fault"
)

// DefaultExpiration is how long a request stays open when no deadline is given.
const DefaultExpiration = 72 * time.Hour

// Request is a two-person approval request.
type Request struct {
	ID               string         `json:"id"`
	Category         Category       `json:"category"`
	ResourceType     string         `json:"resource_type"`
	ResourceID       string         `json:"resource_id"`
	RequesterID      string         `json:"requester_id"`
	RequesterName    string         `json:"requester_name,omitempty"`
	ApproverID       string         `json:"approver_id,omitempty"`
	ApproverName     string         `json:"approver_name,omitempty"`
	Status           Status         `json:"status"`
	Reason           string         `json:"reason"`
	ApproverComments string         `json:"approver_comments,omitempty"`
	RequestedAt      time.Time      `json:"requested_at"`
	RespondedAt      *time.Time     `json:"responded_at,omitempty"`
	ExpiresAt        time.Time      `json:"expires_at"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewRequest creates a PENDING request that expires after ttl.
func NewRequest(category Category, resourceType, resourceID, requesterID, reason string, ttl time.Duration, now time.Time) *Request {
	now = now.UTC()
	return &Request{
		ID:           uuid.New().String(),
		Category:     category,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequesterID:  requesterID,
		Status:       StatusPending,
		Reason:       reason,
		RequestedAt:  now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Validate checks required fields.
func (r *Request) Validate() error {
	switch {
	case r.ID == "":
		return fault.InvalidInput("approval request id is required")
	case !r.Category.Valid():
		return fault.InvalidInput("unknown approval category: %s", r.Category)
	case r.ResourceType == "":
		return fault.InvalidInput("resource type is required")
	case r.ResourceID == "":
		return fault.InvalidInput("resource id is required")
	case r.RequesterID == "":
		return fault.InvalidInput("requester id is required")
	case strings.TrimSpace(r.Reason) == "":
		return fault.InvalidInput("reason is required")
	case !r.Status.Valid():
		return fault.InvalidInput("unknown approval status: %s", r.Status)
	}
	return nil
}

// IsOverdue reports whether a pending request is past its deadline at now.
func (r *Request) IsOverdue(now time.Time) bool {
	return r.Status == StatusPending && now.After(r.ExpiresAt)
}

// Expired returns a copy of r marked EXPIRED.
func (r *Request) Expired() *Request {
	c := r.Clone()
	c.Status = StatusExpired
	return c
}

// Resolution describes an approver's answer.
type Resolution struct {
	ApproverID   string
	ApproverName string
	Approved     bool
	Comments     string
	At           time.Time
}

// Resolved returns a copy of r with the resolution applied.
func (r *Request) Resolved(res Resolution) *Request {
	c := r.Clone()
	at := res.At.UTC()
	c.ApproverID = res.ApproverID
	c.ApproverName = res.ApproverName
	c.ApproverComments = res.Comments
	c.RespondedAt = &at
	if res.Approved {
		c.Status = StatusApproved
	} else {
		c.Status = StatusRejected
	}
	return c
}

// Matches reports whether r targets the given resource and, if set, category.
func (r *Request) Matches(resourceType, resourceID string, category Category) bool {
	if r.ResourceType != resourceType || r.ResourceID != resourceID {
		return false
	}
	return category == "" || r.Category == category
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	if r.RespondedAt != nil {
		at := *r.RespondedAt
		c.RespondedAt = &at
	}
	if r.Metadata != nil {
		c.Metadata = maps.Clone(r.Metadata)
	}
	return &c
}
