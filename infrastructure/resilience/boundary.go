// Package resilience bounds calls to external collaborators using fortify.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
)

// Boundary wraps calls to one collaborator (directory, audit sink, notifier)
// with a concurrency cap, a timeout and a circuit breaker. It never retries:
// callers decide whether an operation may be repeated.
type Boundary struct {
	name     string
	bulkhead bulkhead.Bulkhead[any]
	breaker  circuitbreaker.CircuitBreaker[any]
	timeout  time.Duration
	business func(error) bool
}

// Config configures a Boundary.
type Config struct {
	// Name identifies the collaborator in logs and metrics.
	Name string

	// MaxConcurrent limits concurrent calls.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// Timeout caps each call. Zero disables the timeout.
	Timeout time.Duration

	// IsBusinessError reports errors that are answers rather than outages.
	// They are returned to the caller but do not count against the breaker.
	IsBusinessError func(error) bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                    name,
		MaxConcurrent:           32,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		Timeout:                 5 * time.Second,
		IsBusinessError:         IsBusinessError,
	}
}

// IsBusinessError treats classified faults and unknown actors as answers.
func IsBusinessError(err error) bool {
	return fault.KindOf(err) != nil || errors.Is(err, actor.ErrActorNotFound)
}

// New creates a Boundary.
func New(config Config) *Boundary {
	// Ensure non-negative values for uint32 conversion
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}
	threshold := config.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	openFor := config.CircuitBreakerTimeout
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	business := config.IsBusinessError
	if business == nil {
		business = IsBusinessError
	}

	return &Boundary{
		name: config.Name,
		bulkhead: bulkhead.New[any](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[any](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    openFor,
			Timeout:     openFor,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		timeout:  config.Timeout,
		business: business,
	}
}

// Name returns the collaborator name.
func (b *Boundary) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker.
func (b *Boundary) State() circuitbreaker.State {
	return b.breaker.State()
}

// Do runs fn inside the boundary.
func (b *Boundary) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// outcome carries a business error through the breaker as a success.
type outcome struct {
	value any
	err   error
}

// Call runs fn inside b and returns its typed result.
// Composition order: Bulkhead → Timeout → Circuit Breaker.
func Call[T any](ctx context.Context, b *Boundary, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn(ctx)
	}

	raw, err := b.bulkhead.Execute(ctx, func(ctx context.Context) (any, error) {
		if b.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}

		return b.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			v, err := fn(ctx)
			if err != nil && b.business(err) {
				return outcome{value: v, err: err}, nil
			}
			if err != nil {
				return nil, err
			}
			return outcome{value: v}, nil
		})
	})
	if err != nil {
		return zero, err
	}

	out, ok := raw.(outcome)
	if !ok {
		return zero, nil
	}
	if v, ok := out.value.(T); ok {
		return v, out.err
	}
	return zero, out.err
}
