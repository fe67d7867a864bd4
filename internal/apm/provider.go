// Package apm configures OpenTelemetry tracing and wraps the tracer API so
// business code does not import the SDK directly.
package apm

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"basisarb/internal/logger"
)

// Provider identifies a span exporter backend.
type Provider string

const (
	ZipkinProvider    Provider = "ZIPKIN_PROVIDER"
	CollectorProvider Provider = "COLLECTOR_PROVIDER"
	ConsoleProvider   Provider = "CONSOLE_PROVIDER"
	EmptyProvider     Provider = "EMPTY_PROVIDER"
)

// TraceProvider is the handle the application keeps for shutdown.
type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type tracerOptions struct {
	exporter     sdktrace.SpanExporter
	providerName string
	useEmpty     bool
}

// TracerOption configures the trace provider.
type TracerOption func(*tracerOptions)

// WithProvider selects the exporter backend. Endpoint and headers come from
// the standard OTEL_EXPORTER_OTLP_* environment variables.
func WithProvider(provider Provider, log logger.LoggerInterface) TracerOption {
	switch provider {
	case ZipkinProvider:
		return useZipkin()
	case CollectorProvider:
		return useCollector()
	case ConsoleProvider:
		return useConsole()
	default:
		log.Warn(context.Background(), "unknown trace provider, tracing disabled", "provider", string(provider))
		return useEmpty()
	}
}

func useEmpty() TracerOption {
	return func(o *tracerOptions) {
		o.useEmpty = true
		o.providerName = string(EmptyProvider)
	}
}

func useConsole() TracerOption {
	return func(o *tracerOptions) {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			panic(err)
		}
		o.exporter = exp
		o.providerName = string(ConsoleProvider)
	}
}

func useZipkin() TracerOption {
	return func(o *tracerOptions) {
		url := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		exp, err := zipkin.New(url)
		if err != nil {
			panic(err)
		}
		o.exporter = exp
		o.providerName = string(ZipkinProvider)
	}
}

func useCollector() TracerOption {
	return func(o *tracerOptions) {
		url := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		protocol := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")

		var exp sdktrace.SpanExporter
		var err error
		if protocol == "http/protobuf" {
			exp, err = otlptracehttp.New(context.Background(), otlptracehttp.WithEndpointURL(url))
		} else {
			exp, err = otlptracegrpc.New(context.Background(), otlptracegrpc.WithEndpointURL(url))
		}
		if err != nil {
			panic(err)
		}
		o.exporter = exp
		o.providerName = string(CollectorProvider)
	}
}

// NewTraceProvider builds a provider, installs it globally, and returns the
// shutdown handle.
func NewTraceProvider(log logger.LoggerInterface, options ...TracerOption) TraceProvider {
	serviceName := os.Getenv("OTEL_SERVICE_NAME")

	if len(options) == 0 {
		options = []TracerOption{useEmpty()}
	}

	opts := &tracerOptions{}
	for _, opt := range options {
		opt(opts)
	}

	if opts.useEmpty {
		return noopTraceProvider{}
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("otel.provider", opts.providerName),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(opts.exporter),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	return &traceProvider{tp}
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return o.tp.Shutdown(ctx)
}

type noopTraceProvider struct{}

func (noopTraceProvider) Stop() error { return nil }
