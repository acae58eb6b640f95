package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig("notifier")

	if config.Name != "notifier" {
		t.Errorf("Name = %s, want notifier", config.Name)
	}
	if config.CircuitBreakerThreshold != 5 {
		t.Errorf("CircuitBreakerThreshold = %d, want 5", config.CircuitBreakerThreshold)
	}
	if config.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", config.Timeout)
	}
}

func TestCall_ReturnsValue(t *testing.T) {
	t.Parallel()

	b := New(DefaultConfig("directory"))
	got, err := Call(context.Background(), b, func(context.Context) (actor.Actor, error) {
		return actor.Actor{ID: "alice", Role: actor.RoleAdmin}, nil
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got.ID != "alice" {
		t.Errorf("Call() = %+v", got)
	}
	if b.State().String() != "closed" {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestCall_NilBoundary(t *testing.T) {
	t.Parallel()

	got, err := Call(context.Background(), nil, func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("Call(nil) = (%d, %v), want (7, nil)", got, err)
	}
}

func TestCall_BusinessErrorsPassThrough(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "directory", CircuitBreakerThreshold: 1, CircuitBreakerTimeout: time.Minute})

	for range 3 {
		_, err := Call(context.Background(), b, func(context.Context) (actor.Actor, error) {
			return actor.Actor{}, actor.ErrActorNotFound
		})
		if !errors.Is(err, actor.ErrActorNotFound) {
			t.Fatalf("Call() error = %v, want ErrActorNotFound", err)
		}
	}

	err := b.Do(context.Background(), func(context.Context) error {
		return fault.Forbidden("nope")
	})
	if !errors.Is(err, fault.ErrForbidden) {
		t.Fatalf("Do() error = %v, want ErrForbidden", err)
	}
	if b.State().String() != "closed" {
		t.Errorf("business errors must not open the breaker, state = %v", b.State())
	}
}

func TestCall_OpensAfterOutages(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "audit", CircuitBreakerThreshold: 2, CircuitBreakerTimeout: time.Minute})
	outage := errors.New("connection refused")
	var calls atomic.Int32

	fail := func(context.Context) error {
		calls.Add(1)
		return outage
	}

	for range 2 {
		if err := b.Do(context.Background(), fail); !errors.Is(err, outage) {
			t.Fatalf("Do() error = %v, want outage", err)
		}
	}

	if err := b.Do(context.Background(), fail); err == nil {
		t.Fatal("expected open breaker to reject the call")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (open breaker must not invoke fn)", calls.Load())
	}
}

func TestCall_Timeout(t *testing.T) {
	t.Parallel()

	b := New(Config{Name: "webhook", Timeout: 10 * time.Millisecond})
	err := b.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want DeadlineExceeded", err)
	}
}

func TestIsBusinessError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{fault.NotFound("x"), true},
		{actor.ErrActorNotFound, true},
		{errors.New("io"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsBusinessError(tt.err); got != tt.want {
			t.Errorf("IsBusinessError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
