// Package notification provides domain models for approval notifications.
package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type represents the kind of notification.
type Type string

// Notification types emitted by the approval workflow.
const (
	TypeApprovalRequested Type = "APPROVAL_REQUESTED"
	TypeApprovalResolved  Type = "APPROVAL_RESOLVED"
	TypeApprovalExpiring  Type = "APPROVAL_EXPIRING"
)

// Event is a single notification addressed to one recipient.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`
	// Type is the notification type.
	Type Type `json:"type"`
	// RecipientID is the user the notification is addressed to.
	RecipientID string `json:"recipient_id"`
	// Timestamp is when the event was produced.
	Timestamp time.Time `json:"timestamp"`
	// Payload contains the type-specific data.
	Payload json.RawMessage `json:"payload"`
}

// RequestedPayload contains data for APPROVAL_REQUESTED notifications.
type RequestedPayload struct {
	ApprovalID    string    `json:"approval_id"`
	Category      string    `json:"category"`
	ResourceType  string    `json:"resource_type"`
	ResourceID    string    `json:"resource_id"`
	RequesterName string    `json:"requester_name,omitempty"`
	Reason        string    `json:"reason"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ResolvedPayload contains data for APPROVAL_RESOLVED notifications.
type ResolvedPayload struct {
	ApprovalID   string `json:"approval_id"`
	Category     string `json:"category"`
	Approved     bool   `json:"approved"`
	ApproverName string `json:"approver_name,omitempty"`
	Comments     string `json:"comments,omitempty"`
}

// ExpiringPayload contains data for APPROVAL_EXPIRING notifications.
type ExpiringPayload struct {
	ApprovalID string        `json:"approval_id"`
	Category   string        `json:"category"`
	ExpiresAt  time.Time     `json:"expires_at"`
	Remaining  time.Duration `json:"remaining_ns"`
}

// NewEvent creates a notification event with the payload encoded as JSON.
func NewEvent(recipientID string, eventType Type, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		RecipientID: recipientID,
		Timestamp:   time.Now().UTC(),
		Payload:     payloadBytes,
	}, nil
}

// DecodePayload unmarshals the event payload into the given struct.
func (e *Event) DecodePayload(v any) error {
	if e.Payload == nil {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}
