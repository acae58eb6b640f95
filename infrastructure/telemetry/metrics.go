// Package telemetry provides OpenTelemetry tracing and metrics for the
// ledger and the approval workflow.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName identifies this module's meters and tracers.
const InstrumentationName = "github.com/felixgeelhaar/decision-ledger"

// Metrics holds the metric instruments.
type Metrics struct {
	meter metric.Meter

	decisionTransitions metric.Int64Counter
	approvalsRequested  metric.Int64Counter
	approvalsResolved   metric.Int64Counter
	auditFailures       metric.Int64Counter
	gateDecisions       metric.Int64Counter
	notifications       metric.Int64Counter
	operationDuration   metric.Float64Histogram

	initErr error
}

// NewMetrics creates the instruments on provider, or on the global meter
// provider when provider is nil.
func NewMetrics(provider metric.MeterProvider) *Metrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m := &Metrics{
		meter: provider.Meter(InstrumentationName, metric.WithInstrumentationVersion("1.0.0")),
	}
	m.initErr = m.initInstruments()
	return m
}

func (m *Metrics) initInstruments() error {
	var err error

	m.decisionTransitions, err = m.meter.Int64Counter(
		"ledger.decisions.transitions",
		metric.WithDescription("Decision status changes"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	m.approvalsRequested, err = m.meter.Int64Counter(
		"approval.requests.created",
		metric.WithDescription("Approval requests created"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.approvalsResolved, err = m.meter.Int64Counter(
		"approval.requests.resolved",
		metric.WithDescription("Approval requests that left PENDING"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.auditFailures, err = m.meter.Int64Counter(
		"audit.failures",
		metric.WithDescription("Audit entries that could not be written"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	m.gateDecisions, err = m.meter.Int64Counter(
		"gate.checks",
		metric.WithDescription("Approval gate checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return err
	}

	m.notifications, err = m.meter.Int64Counter(
		"notification.sent",
		metric.WithDescription("Notifications dispatched"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return err
	}

	m.operationDuration, err = m.meter.Float64Histogram(
		"ledger.operation.duration",
		metric.WithDescription("Duration of ledger and workflow operations"),
		metric.WithUnit("ms"),
	)
	return err
}

// Error returns any initialization error.
func (m *Metrics) Error() error {
	return m.initErr
}

// RecordDecisionTransition records a decision status change.
func (m *Metrics) RecordDecisionTransition(ctx context.Context, from, to string) {
	if m == nil || m.decisionTransitions == nil {
		return
	}
	m.decisionTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status.from", from),
		attribute.String("status.to", to),
	))
}

// RecordApprovalRequested records a new approval request.
func (m *Metrics) RecordApprovalRequested(ctx context.Context, category string) {
	if m == nil || m.approvalsRequested == nil {
		return
	}
	m.approvalsRequested.Add(ctx, 1, metric.WithAttributes(attribute.String("approval.category", category)))
}

// RecordApprovalResolved records a request leaving PENDING.
func (m *Metrics) RecordApprovalResolved(ctx context.Context, category, status string) {
	if m == nil || m.approvalsResolved == nil {
		return
	}
	m.approvalsResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("approval.category", category),
		attribute.String("approval.status", status),
	))
}

// RecordAuditFailure records an audit entry that could not be written.
func (m *Metrics) RecordAuditFailure(ctx context.Context, action string) {
	if m == nil || m.auditFailures == nil {
		return
	}
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("audit.action", action)))
}

// RecordGateCheck records a gate outcome.
func (m *Metrics) RecordGateCheck(ctx context.Context, category string, allowed bool) {
	if m == nil || m.gateDecisions == nil {
		return
	}
	m.gateDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("approval.category", category),
		attribute.Bool("allowed", allowed),
	))
}

// RecordNotification records a dispatched notification.
func (m *Metrics) RecordNotification(ctx context.Context, notificationType string, success bool) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("notification.type", notificationType),
		attribute.Bool("success", success),
	))
}

// RecordOperation records an operation duration.
func (m *Metrics) RecordOperation(ctx context.Context, operation string, success bool, duration time.Duration) {
	if m == nil || m.operationDuration == nil {
		return
	}
	m.operationDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	))
}
