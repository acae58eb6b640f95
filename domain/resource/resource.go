// Package resource checks that the target of a decision or approval exists.
package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/decision-ledger/domain/fault"
)

// Resource types known to the ledger and the approval workflow.
const (
	TypeDecision          = "DecisionLog"
	TypeSession           = "Session"
	TypePolicy            = "Policy"
	TypeADR               = "ADR"
	TypeSecurityException = "SecurityException"
)

// Checker reports whether a resource of one type exists.
type Checker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, id string) (bool, error)

// Exists calls f.
func (f CheckerFunc) Exists(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

// Accept is a Checker that treats every id as existing.
var Accept Checker = CheckerFunc(func(context.Context, string) (bool, error) { return true, nil })

// Registry dispatches existence checks by resource type.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	strict   bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStrict makes unregistered resource types fail the check.
func WithStrict(strict bool) RegistryOption {
	return func(r *Registry) {
		r.strict = strict
	}
}

// NewRegistry creates a registry. Policy and ADR targets are accepted
// without lookup until a checker is registered for them.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		checkers: map[string]Checker{
			TypePolicy: Accept,
			TypeADR:    Accept,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a checker to a resource type, replacing any previous one.
func (r *Registry) Register(resourceType string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[resourceType] = c
}

// Strict reports whether unknown types are rejected.
func (r *Registry) Strict() bool {
	return r.strict
}

// Types returns the registered resource types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.checkers))
	for t := range r.checkers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Check returns a NotFound fault when the resource does not exist.
func (r *Registry) Check(ctx context.Context, resourceType, id string) error {
	r.mu.RLock()
	c, ok := r.checkers[resourceType]
	r.mu.RUnlock()

	if !ok {
		if r.strict {
			return fault.NotFound("Unknown resource type: %s", resourceType)
		}
		return nil
	}

	exists, err := c.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check %s %s: %w", resourceType, id, err)
	}
	if !exists {
		return fault.NotFound("Resource not found: %s with ID %s", resourceType, id)
	}
	return nil
}

// SessionStore records the sessions decisions are filed under.
type SessionStore interface {
	Checker

	// Register records id. Registering a known session is a no-op.
	Register(ctx context.Context, id string) error
}
