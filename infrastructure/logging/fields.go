package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for ledger and workflow logging.

// DecisionID adds a decision ID field.
func DecisionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("decision_id", id)
	}
}

// ApprovalID adds an approval request ID field.
func ApprovalID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("approval_id", id)
	}
}

// SessionID adds a session ID field.
func SessionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("session_id", id)
	}
}

// ActorID adds the acting user's ID.
func ActorID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("actor_id", id)
	}
}

// Category adds an approval category field.
func Category(c string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("category", c)
	}
}

// Status adds a status field.
func Status(s string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", s)
	}
}

// FromStatus adds a from_status field for transitions.
func FromStatus(s string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_status", s)
	}
}

// ToStatus adds a to_status field for transitions.
func ToStatus(s string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_status", s)
	}
}

// Resource adds resource type and ID fields.
func Resource(resourceType, id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("resource_type", resourceType).Str("resource_id", id)
	}
}

// Action adds an audit action field.
func Action(a string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("action", a)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Approved adds an approval outcome field.
func Approved(approved bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("approved", approved)
	}
}

// Count adds an integer count under key.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Operation adds an operation field.
func Operation(op string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("operation", op)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
