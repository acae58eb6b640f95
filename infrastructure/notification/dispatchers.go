package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/decision-ledger/domain/notification"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/resilience"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
)

// LogDispatcher writes each notification to the logger. It is the default
// when no webhook is configured.
type LogDispatcher struct {
	logger *bolt.Logger
}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher(logger *bolt.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logging.OrDefault(logger)}
}

// Notify logs the notification.
func (d *LogDispatcher) Notify(_ context.Context, recipientID string, eventType notification.Type, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	logging.NewEvent(d.logger.Info()).
		Add(logging.Component("notification")).
		Add(logging.ActorID(recipientID)).
		Add(logging.Str("type", string(eventType))).
		Add(logging.Str("payload", string(body))).
		Msg("notification")
	return nil
}

// MemoryDispatcher keeps every notification in memory.
type MemoryDispatcher struct {
	mu     sync.Mutex
	events []*notification.Event
	fail   error
}

// NewMemoryDispatcher creates an empty MemoryDispatcher.
func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

// Notify records the notification, or returns the configured failure.
func (d *MemoryDispatcher) Notify(_ context.Context, recipientID string, eventType notification.Type, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fail != nil {
		return d.fail
	}
	event, err := notification.NewEvent(recipientID, eventType, payload)
	if err != nil {
		return err
	}
	d.events = append(d.events, event)
	return nil
}

// FailWith makes subsequent Notify calls return err. Nil restores delivery.
func (d *MemoryDispatcher) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// Events returns the recorded events in delivery order.
func (d *MemoryDispatcher) Events() []*notification.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*notification.Event(nil), d.events...)
}

// For returns the recorded events addressed to recipientID.
func (d *MemoryDispatcher) For(recipientID string) []*notification.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*notification.Event
	for _, e := range d.events {
		if e.RecipientID == recipientID {
			out = append(out, e)
		}
	}
	return out
}

// Instrumented bounds another dispatcher and counts outcomes.
type Instrumented struct {
	next     notification.Dispatcher
	boundary *resilience.Boundary
	metrics  *telemetry.Metrics
}

// NewInstrumented wraps next. boundary and metrics may be nil.
func NewInstrumented(next notification.Dispatcher, boundary *resilience.Boundary, metrics *telemetry.Metrics) *Instrumented {
	return &Instrumented{next: next, boundary: boundary, metrics: metrics}
}

// Notify forwards to the wrapped dispatcher.
func (d *Instrumented) Notify(ctx context.Context, recipientID string, eventType notification.Type, payload any) error {
	start := time.Now()
	err := d.boundary.Do(ctx, func(ctx context.Context) error {
		return d.next.Notify(ctx, recipientID, eventType, payload)
	})
	d.metrics.RecordNotification(ctx, string(eventType), err == nil)
	d.metrics.RecordOperation(ctx, "notify", err == nil, time.Since(start))
	return err
}

var (
	_ notification.Dispatcher = (*LogDispatcher)(nil)
	_ notification.Dispatcher = (*MemoryDispatcher)(nil)
	_ notification.Dispatcher = (*Instrumented)(nil)
)
