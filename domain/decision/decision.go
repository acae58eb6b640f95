package decision

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/decision-ledger/domain/fault"
)

// ResourceType is the audit and approval tag for decisions.
const ResourceType = "DecisionLog"

// Decision is a single entry in the ledger.
type Decision struct {
	// ID is the unique identifier.
	ID string `json:"id"`

	// SessionID references the session the decision belongs to.
	SessionID string `json:"session_id"`

	// Statement is the decision text.
	Statement string `json:"statement"`

	// Assumptions records what the decision relies on.
	Assumptions string `json:"assumptions,omitempty"`

	// References points at supporting material.
	References string `json:"references,omitempty"`

	// OwnerID identifies the author.
	OwnerID string `json:"owner_id"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// SupersedesID is the decision this one replaces.
	SupersedesID string `json:"supersedes_id,omitempty"`

	// CreatedAt is when the decision was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Content is the author-supplied part of a decision.
type Content struct {
	Statement   string
	Assumptions string
	References  string
}

// NewDraft creates a DRAFT decision with a generated ID.
func NewDraft(sessionID, ownerID string, c Content) *Decision {
	return &Decision{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Statement:   c.Statement,
		Assumptions: c.Assumptions,
		References:  c.References,
		OwnerID:     ownerID,
		Status:      StatusDraft,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewSupersession creates the LOCKED successor of original.
// Successors never pass through DRAFT.
func NewSupersession(original *Decision, ownerID string, c Content) *Decision {
	d := NewDraft(original.SessionID, ownerID, c)
	d.Status = StatusLocked
	d.SupersedesID = original.ID
	return d
}

// Validate checks required fields.
func (d *Decision) Validate() error {
	switch {
	case d.ID == "":
		return fault.InvalidInput("decision id is required")
	case d.SessionID == "":
		return fault.InvalidInput("session id is required")
	case strings.TrimSpace(d.Statement) == "":
		return fault.InvalidInput("statement is required")
	case d.OwnerID == "":
		return fault.InvalidInput("owner id is required")
	case !d.Status.Valid():
		return fault.InvalidInput("unknown decision status: %s", d.Status)
	}
	return nil
}

// ValidateNew checks the creation invariants on top of Validate: plain
// decisions start as DRAFT and supersessions start as LOCKED.
func (d *Decision) ValidateNew() error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.SupersedesID == "" && d.Status != StatusDraft {
		return fault.InvalidInput("new decisions must be created as %s", StatusDraft)
	}
	if d.SupersedesID != "" && d.Status != StatusLocked {
		return fault.InvalidInput("superseding decisions must be created as %s", StatusLocked)
	}
	if d.SupersedesID == d.ID {
		return fault.InvalidInput("decision cannot supersede itself")
	}
	return nil
}

// CheckLock returns nil if the decision may move to LOCKED.
func (d *Decision) CheckLock() error {
	if d.Status != StatusDraft {
		return fault.Forbidden(
			"Cannot modify decision with status: %s. Decision is already immutable; use supersession to amend locked decisions.",
			d.Status)
	}
	return nil
}

// CheckSupersede returns nil if the decision may be superseded.
func (d *Decision) CheckSupersede() error {
	if d.Status != StatusLocked {
		return fault.InvalidState("Can only supersede LOCKED decisions. Current status: %s", d.Status)
	}
	return nil
}

// CheckDelete returns nil if the decision may be removed.
func (d *Decision) CheckDelete() error {
	if d.Status != StatusDraft {
		return fault.Forbidden("Cannot delete decision with status: %s. Only DRAFT decisions can be deleted.", d.Status)
	}
	return nil
}

// Clone returns a copy of the decision.
func (d *Decision) Clone() *Decision {
	c := *d
	return &c
}
