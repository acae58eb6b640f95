package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/resilience"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
)

// Policy decides what happens when an entry cannot be written.
type Policy string

const (
	// PolicyRollback fails the audited operation.
	PolicyRollback Policy = "rollback"

	// PolicyLogAndContinue logs and counts the failure; the operation succeeds.
	PolicyLogAndContinue Policy = "log_and_continue"
)

// Recorder writes audit entries through a sink and applies the failure policy.
type Recorder struct {
	sink     audit.Sink
	policy   Policy
	boundary *resilience.Boundary
	logger   *bolt.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithPolicy sets the failure policy.
func WithPolicy(p Policy) RecorderOption {
	return func(r *Recorder) {
		if p != "" {
			r.policy = p
		}
	}
}

// WithBoundary bounds sink calls with a timeout and circuit breaker.
func WithBoundary(b *resilience.Boundary) RecorderOption {
	return func(r *Recorder) {
		r.boundary = b
	}
}

// WithLogger sets the logger for failures.
func WithLogger(l *bolt.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithMetrics sets the metrics used to count failures.
func WithMetrics(m *telemetry.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder. The default policy is rollback.
func NewRecorder(sink audit.Sink, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sink:   sink,
		policy: PolicyRollback,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDefault(r.logger)
	return r
}

// Policy returns the configured failure policy.
func (r *Recorder) Policy() Policy {
	return r.policy
}

// Record appends entry. Under PolicyRollback a sink failure is returned;
// under PolicyLogAndContinue it is logged and counted and nil is returned.
func (r *Recorder) Record(ctx context.Context, entry audit.Entry) error {
	return r.settle(ctx, entry, r.append(ctx, entry))
}

// RecordTo is Record against another sink, typically a store transaction
// that also holds the audit table. The boundary is skipped: the write shares
// the transaction's fate and deadline.
func (r *Recorder) RecordTo(ctx context.Context, sink audit.Sink, entry audit.Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	return r.settle(ctx, entry, sink.Append(ctx, entry))
}

func (r *Recorder) settle(ctx context.Context, entry audit.Entry, err error) error {
	if err == nil {
		return nil
	}
	if r.policy == PolicyRollback {
		return fmt.Errorf("audit %s: %w", entry.Action, err)
	}
	r.fail(ctx, entry, err)
	return nil
}

// RecordBestEffort appends entry and never fails. It is used for entries
// that describe side effects rather than state changes.
func (r *Recorder) RecordBestEffort(ctx context.Context, entry audit.Entry) {
	if err := r.append(ctx, entry); err != nil {
		r.fail(ctx, entry, err)
	}
}

func (r *Recorder) append(ctx context.Context, entry audit.Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	return r.boundary.Do(ctx, func(ctx context.Context) error {
		return r.sink.Append(ctx, entry)
	})
}

func (r *Recorder) fail(ctx context.Context, entry audit.Entry, err error) {
	r.metrics.RecordAuditFailure(ctx, string(entry.Action))
	logging.NewEvent(r.logger.Error()).
		Add(logging.Component("audit")).
		Add(logging.Action(string(entry.Action))).
		Add(logging.Resource(entry.ResourceType, entry.ResourceID)).
		Add(logging.ActorID(entry.UserID)).
		Add(logging.ErrorField(err)).
		Msg("audit entry dropped")
}
