package notification

import "errors"

// Delivery errors. Rejections are final; unavailability may be retried by
// the sender but never by the workflow.
var (
	// ErrEndpointUnavailable indicates a transport failure or 5xx answer.
	ErrEndpointUnavailable = errors.New("notification endpoint unavailable")

	// ErrEndpointRejected indicates a 4xx answer.
	ErrEndpointRejected = errors.New("notification endpoint rejected delivery")

	// ErrInvalidEndpoint indicates a missing or malformed endpoint URL.
	ErrInvalidEndpoint = errors.New("notification endpoint invalid")

	// ErrDispatcherClosed indicates the dispatcher no longer accepts notifications.
	ErrDispatcherClosed = errors.New("notification dispatcher closed")
)
