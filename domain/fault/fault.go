// Package fault defines the error taxonomy shared by the ledger and the
// approval workflow.
//
// Every business-rule failure carries one of the kinds below. Callers branch
// with errors.Is against the kind; the message is meant for humans and is
// surfaced verbatim.
package fault

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrNotFound indicates an unknown identifier or reference.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is not legal from the current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition indicates the requested target status is not reachable.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden indicates a two-person-rule, role, or immutability violation.
	ErrForbidden = errors.New("forbidden")

	// ErrExpired indicates the request passed its deadline.
	ErrExpired = errors.New("expired")

	// ErrIntegrity indicates corrupt stored data, such as a supersession cycle.
	ErrIntegrity = errors.New("integrity error")

	// ErrInvalidInput indicates a malformed argument.
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a classified business-rule failure.
type Error struct {
	// Kind is one of the sentinel kinds in this package.
	Kind error

	// Msg is the human-readable reason.
	Msg string
}

// Error implements error.
func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

// New creates a classified error.
func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound creates an ErrNotFound error.
func NotFound(format string, args ...any) *Error {
	return New(ErrNotFound, format, args...)
}

// InvalidState creates an ErrInvalidState error.
func InvalidState(format string, args ...any) *Error {
	return New(ErrInvalidState, format, args...)
}

// InvalidTransition creates an ErrInvalidTransition error.
func InvalidTransition(format string, args ...any) *Error {
	return New(ErrInvalidTransition, format, args...)
}

// Forbidden creates an ErrForbidden error.
func Forbidden(format string, args ...any) *Error {
	return New(ErrForbidden, format, args...)
}

// Expired creates an ErrExpired error.
func Expired(format string, args ...any) *Error {
	return New(ErrExpired, format, args...)
}

// Integrity creates an ErrIntegrity error.
func Integrity(format string, args ...any) *Error {
	return New(ErrIntegrity, format, args...)
}

// InvalidInput creates an ErrInvalidInput error.
func InvalidInput(format string, args ...any) *Error {
	return New(ErrInvalidInput, format, args...)
}

// KindOf returns the kind of err, or nil when err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound, ErrInvalidState, ErrInvalidTransition, ErrForbidden,
		ErrExpired, ErrIntegrity, ErrInvalidInput,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
