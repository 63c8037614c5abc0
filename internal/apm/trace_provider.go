package apm

import (
	"context"
	"fmt"
	"strings"
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

	"github.com/fd1az/autosave-engine/internal/logger"
)

type Provider string

const (
	OTLPProvider    Provider = "otlp"
	ZipkinProvider  Provider = "zipkin"
	ConsoleProvider Provider = "console"
	EmptyProvider   Provider = "none"
)

// ParseProvider maps a config value to a Provider. Unknown values map to
// EmptyProvider.
func ParseProvider(s string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case OTLPProvider, ZipkinProvider, ConsoleProvider:
		return p
	default:
		return EmptyProvider
	}
}

type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type emptyTraceProvider struct{}

func (emptyTraceProvider) Stop() error { return nil }

// TracerOptions configures NewTraceProvider.
type TracerOptions struct {
	Provider    Provider
	ServiceName string
	Endpoint    string
	Headers     map[string]string
	Protocol    string // grpc | http/protobuf
	Insecure    bool
}

func newExporter(ctx context.Context, opts TracerOptions) (sdktrace.SpanExporter, error) {
	switch opts.Provider {
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ZipkinProvider:
		return zipkin.New(opts.Endpoint)
	case OTLPProvider:
		if opts.Protocol == "http/protobuf" {
			httpOpts := []otlptracehttp.Option{
				otlptracehttp.WithEndpointURL(opts.Endpoint),
				otlptracehttp.WithHeaders(opts.Headers),
			}
			if opts.Insecure {
				httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
			}
			return otlptracehttp.New(ctx, httpOpts...)
		}
		grpcOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpointURL(opts.Endpoint),
			otlptracegrpc.WithHeaders(opts.Headers),
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, grpcOpts...)
	default:
		return nil, fmt.Errorf("unknown trace provider %q", opts.Provider)
	}
}

// NewTraceProvider installs a global tracer provider exporting to the chosen
// backend. EmptyProvider leaves the global no-op provider in place.
func NewTraceProvider(ctx context.Context, log logger.LoggerInterface, opts TracerOptions) (TraceProvider, error) {
	if opts.Provider == "" || opts.Provider == EmptyProvider {
		return emptyTraceProvider{}, nil
	}

	exp, err := newExporter(ctx, opts)
	if err != nil {
		return nil, err
	}

	rsrc, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.ServiceName),
			attribute.String("otel.provider", string(opts.Provider)),
		))
	if err != nil {
		// schema URL conflicts with the default resource; keep ours
		rsrc = resource.NewSchemaless(semconv.ServiceNameKey.String(opts.ServiceName))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(ctx, "tracing enabled", "provider", string(opts.Provider), "endpoint", opts.Endpoint)
	return &traceProvider{tp}, nil
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}
