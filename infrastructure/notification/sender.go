// Package notification delivers approval notifications over webhooks,
// the process log, or an in-memory outbox.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/decision-ledger/domain/notification"
)

// SenderConfig configures the HTTP sender.
type SenderConfig struct {
	// Timeout is the per-attempt HTTP timeout.
	Timeout time.Duration
	// MaxAttempts is the maximum number of delivery attempts.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// Multiplier grows the delay between retries.
	Multiplier float64
	// CircuitBreakerThreshold is consecutive failures before an endpoint's circuit opens.
	CircuitBreakerThreshold int
	// CircuitBreakerTimeout is how long an open circuit stays open.
	CircuitBreakerTimeout time.Duration
	// UserAgent is the User-Agent header value.
	UserAgent string
}

// DefaultSenderConfig returns sensible default configuration.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		Timeout:                 10 * time.Second,
		MaxAttempts:             3,
		InitialDelay:            200 * time.Millisecond,
		Multiplier:              2.0,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		UserAgent:               "decision-ledger-webhook/1.0",
	}
}

// Sender posts events to webhook endpoints. Server errors are retried with
// exponential backoff; client errors are not. Each endpoint has its own breaker.
type Sender struct {
	config   SenderConfig
	client   *http.Client
	signer   *Signer
	retrier  retry.Retry[struct{}]
	mu       sync.RWMutex
	breakers map[string]circuitbreaker.CircuitBreaker[struct{}]
}

// NewSender creates an HTTP sender.
func NewSender(config SenderConfig) *Sender {
	defaults := DefaultSenderConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	if config.Multiplier < 1 {
		config.Multiplier = defaults.Multiplier
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = defaults.CircuitBreakerThreshold
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = defaults.CircuitBreakerTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	return &Sender{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		signer:   NewSigner(),
		breakers: make(map[string]circuitbreaker.CircuitBreaker[struct{}]),
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:        config.MaxAttempts,
			InitialDelay:       config.InitialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         config.Multiplier,
			NonRetryableErrors: []error{notification.ErrEndpointRejected, notification.ErrInvalidEndpoint},
		}),
	}
}

// Send delivers event to endpoint.
func (s *Sender) Send(ctx context.Context, endpoint notification.Endpoint, event *notification.Event) error {
	if endpoint.URL == "" {
		return notification.ErrInvalidEndpoint
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	breaker := s.breaker(endpoint.URL)
	_, err = breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return s.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.post(ctx, endpoint, body)
		})
	})
	return err
}

// post performs one attempt. The request is rebuilt each time so the body
// can be re-read.
func (s *Sender) post(ctx context.Context, endpoint notification.Endpoint, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", notification.ErrInvalidEndpoint, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.config.UserAgent)
	for key, value := range endpoint.Headers {
		req.Header.Set(key, value)
	}
	if endpoint.Secret != "" {
		for key, value := range s.signer.Headers(body, endpoint.Secret, time.Now()) {
			req.Header.Set(key, value)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", notification.ErrEndpointUnavailable, err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", notification.ErrEndpointUnavailable, resp.StatusCode, snippet)
	default:
		return fmt.Errorf("%w: status %d: %s", notification.ErrEndpointRejected, resp.StatusCode, snippet)
	}
}

func (s *Sender) breaker(url string) circuitbreaker.CircuitBreaker[struct{}] {
	s.mu.RLock()
	b, ok := s.breakers[url]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[url]; ok {
		return b
	}

	threshold := s.config.CircuitBreakerThreshold
	b = circuitbreaker.New[struct{}](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    s.config.CircuitBreakerTimeout,
		Timeout:     s.config.CircuitBreakerTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is positive
		},
	})
	s.breakers[url] = b
	return b
}

// BreakerState returns the circuit state for url, or "unknown" if it was never used.
func (s *Sender) BreakerState(url string) string {
	s.mu.RLock()
	b, ok := s.breakers[url]
	s.mu.RUnlock()
	if !ok {
		return "unknown"
	}
	return b.State().String()
}
