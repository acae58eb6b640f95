package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans for ledger operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer on provider, or on the global tracer provider
// when provider is nil.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		return &Tracer{tracer: otel.Tracer(InstrumentationName)}
	}
	return &Tracer{tracer: provider.Tracer(InstrumentationName)}
}

// Start opens a span named name.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End closes span, recording err when set.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Attribute helpers shared by the services.

// DecisionID returns the decision.id attribute.
func DecisionID(id string) attribute.KeyValue {
	return attribute.String("decision.id", id)
}

// ApprovalID returns the approval.id attribute.
func ApprovalID(id string) attribute.KeyValue {
	return attribute.String("approval.id", id)
}

// ActorID returns the actor.id attribute.
func ActorID(id string) attribute.KeyValue {
	return attribute.String("actor.id", id)
}

// Category returns the approval.category attribute.
func Category(c string) attribute.KeyValue {
	return attribute.String("approval.category", c)
}
