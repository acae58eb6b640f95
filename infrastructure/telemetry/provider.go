package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ExporterType specifies the trace exporter.
type ExporterType string

const (
	// ExporterStdout writes spans as JSON to Config.Writer.
	ExporterStdout ExporterType = "stdout"
	// ExporterOTLP exports to an OTLP gRPC endpoint.
	ExporterOTLP ExporterType = "otlp"
	// ExporterNoop disables export.
	ExporterNoop ExporterType = "noop"
)

// Config configures the provider.
type Config struct {
	// Enabled turns tracing on.
	Enabled bool
	// ServiceName is reported on every span.
	ServiceName string
	// ServiceVersion is reported on every span.
	ServiceVersion string
	// Exporter selects the exporter.
	Exporter ExporterType
	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string
	// Insecure disables TLS for the OTLP connection.
	Insecure bool
	// Writer receives stdout spans; os.Stderr when nil.
	Writer io.Writer
	// Synchronous exports each span on End instead of batching.
	Synchronous bool
}

// Provider owns the tracer provider and the instruments built on it.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         *Tracer
	metrics        *Metrics
}

// New creates a provider. A disabled config yields global no-op tracing.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{metrics: NewMetrics(nil)}
	if !cfg.Enabled || cfg.Exporter == ExporterNoop {
		p.tracer = NewTracer(nil)
		return p, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// We don't merge with Default() to avoid schema URL conflicts
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	var processor sdktrace.TracerProviderOption
	if cfg.Synchronous {
		processor = sdktrace.WithSyncer(exporter)
	} else {
		processor = sdktrace.WithBatcher(exporter)
	}

	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracerProvider = tp
	p.tracer = NewTracer(tp)
	return p, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		if cfg.Endpoint == "" {
			return nil, errors.New("otlp exporter requires an endpoint")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts,
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
				otlptracegrpc.WithInsecure(),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter type: %s", cfg.Exporter)
	}
}

// NewNoop returns a provider backed by the global no-op implementations.
func NewNoop() *Provider {
	return &Provider{tracer: NewTracer(nil), metrics: NewMetrics(nil)}
}

// Tracer returns the tracer.
func (p *Provider) Tracer() *Tracer {
	return p.tracer
}

// Metrics returns the metric instruments.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}
