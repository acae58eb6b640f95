package resilience

import "time"

// Option configures a Boundary.
type Option func(*Config)

// WithMaxConcurrent sets the maximum concurrent calls.
func WithMaxConcurrent(n int) Option {
	return func(c *Config) {
		c.MaxConcurrent = n
	}
}

// WithCircuitBreakerThreshold sets the failure threshold for circuit breaker.
func WithCircuitBreakerThreshold(n int) Option {
	return func(c *Config) {
		c.CircuitBreakerThreshold = n
	}
}

// WithCircuitBreakerTimeout sets the circuit breaker open duration.
func WithCircuitBreakerTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CircuitBreakerTimeout = d
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithBusinessErrors replaces the business error classifier.
func WithBusinessErrors(fn func(error) bool) Option {
	return func(c *Config) {
		c.IsBusinessError = fn
	}
}

// NewWithOptions creates a boundary with the given options.
func NewWithOptions(name string, opts ...Option) *Boundary {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return New(config)
}
