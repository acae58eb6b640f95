package notification

import (
	"context"
)

// Dispatcher delivers notifications. Delivery mechanics are up to the
// implementation; callers treat failures as non-fatal.
type Dispatcher interface {
	// Notify sends a notification of the given type to recipientID.
	Notify(ctx context.Context, recipientID string, eventType Type, payload any) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, recipientID string, eventType Type, payload any) error

// Notify calls f.
func (f DispatcherFunc) Notify(ctx context.Context, recipientID string, eventType Type, payload any) error {
	return f(ctx, recipientID, eventType, payload)
}

// Nop is a Dispatcher that discards every notification.
var Nop Dispatcher = DispatcherFunc(func(context.Context, string, Type, any) error { return nil })

// EventFilter defines a function that filters events.
// Returns true if the event should be sent, false to skip it.
type EventFilter func(event *Event) bool

// FilterByType returns a filter that only allows specified event types.
func FilterByType(types ...Type) EventFilter {
	typeSet := make(map[Type]bool)
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event *Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRecipient returns a filter that only allows events for the given users.
func FilterByRecipient(ids ...string) EventFilter {
	idSet := make(map[string]bool)
	for _, id := range ids {
		idSet[id] = true
	}
	return func(event *Event) bool {
		return idSet[event.RecipientID]
	}
}

// CombineFilters returns a filter that requires all provided filters to pass.
func CombineFilters(filters ...EventFilter) EventFilter {
	return func(event *Event) bool {
		for _, f := range filters {
			if !f(event) {
				return false
			}
		}
		return true
	}
}

// Endpoint represents a webhook endpoint configuration.
type Endpoint struct {
	// URL is the webhook endpoint URL.
	URL string `json:"url" yaml:"url"`
	// Secret is the shared secret for HMAC signing.
	Secret string `json:"secret,omitempty" yaml:"secret"`
	// Headers are additional HTTP headers to include.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`
	// Filter is an optional event filter for this endpoint.
	Filter EventFilter `json:"-" yaml:"-"`
	// Enabled indicates if this endpoint is active.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Name is an optional friendly name for the endpoint.
	Name string `json:"name,omitempty" yaml:"name"`
}
