package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"

	"github.com/zero-day-ai/graphsync/internal/types"
	"github.com/zero-day-ai/graphsync/pkg/version"
)

const (
	defaultBatchTimeout = 5 * time.Second
	defaultServiceName  = "graphsync"

	// TracerName is the instrumentation scope of graphsync spans.
	TracerName = "github.com/zero-day-ai/graphsync"
)

// TracingOption is a functional option for configuring tracing initialization.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	sampler      sdktrace.Sampler
	resource     *resource.Resource
	batchTimeout time.Duration
	exporter     sdktrace.SpanExporter
}

// WithSampler sets a custom sampler for the tracer provider.
func WithSampler(sampler sdktrace.Sampler) TracingOption {
	return func(o *tracingOptions) {
		o.sampler = sampler
	}
}

// WithResource sets a custom resource for the tracer provider.
func WithResource(res *resource.Resource) TracingOption {
	return func(o *tracingOptions) {
		o.resource = res
	}
}

// WithBatchTimeout sets the maximum time between batch exports.
func WithBatchTimeout(timeout time.Duration) TracingOption {
	return func(o *tracingOptions) {
		o.batchTimeout = timeout
	}
}

// WithSpanExporter replaces the exporter selected by the provider, mostly
// for tests using an in-memory exporter.
func WithSpanExporter(exporter sdktrace.SpanExporter) TracingOption {
	return func(o *tracingOptions) {
		o.exporter = exporter
	}
}

// InitTracing initializes distributed tracing with the specified configuration.
//
// When cfg.Enabled is false, or the provider is "noop", it returns a tracer
// provider that records nothing. Otherwise spans are batched to an OTLP gRPC
// exporter and the provider is installed as the global one.
func InitTracing(ctx context.Context, cfg TracingConfig, opts ...TracingOption) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, types.WrapError(ErrExporterConnection, "invalid tracing configuration", err)
	}

	options := &tracingOptions{
		batchTimeout: defaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.sampler == nil {
		options.sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}

	if options.resource == nil {
		serviceName := cfg.ServiceName
		if serviceName == "" {
			serviceName = defaultServiceName
		}

		res, err := resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version.Version),
			),
			resource.WithFromEnv(),
			resource.WithTelemetrySDK(),
		)
		if err != nil {
			return nil, types.WrapError(ErrExporterConnection, "failed to create resource", err)
		}
		options.resource = res
	}

	exporter := options.exporter
	if exporter == nil {
		switch strings.ToLower(cfg.Provider) {
		case "noop":
			return sdktrace.NewTracerProvider(), nil

		case "otlp":
			otlpOpts := []otlptracegrpc.Option{
				otlptracegrpc.WithEndpoint(cfg.Endpoint),
			}

			if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
				creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertFile, "")
				if err != nil {
					return nil, types.WrapError(ErrExporterConnection,
						"failed to load TLS credentials", err)
				}
				otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(creds))
			} else if cfg.InsecureMode {
				otlpOpts = append(otlpOpts, otlptracegrpc.WithInsecure())
			} else {
				otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(nil)))
			}

			var err error
			exporter, err = otlptracegrpc.New(ctx, otlpOpts...)
			if err != nil {
				return nil, NewExporterConnectionError(cfg.Endpoint, err)
			}

		default:
			return nil, types.NewError(ErrExporterConnection,
				fmt.Sprintf("unsupported tracing provider: %s", cfg.Provider))
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(options.batchTimeout),
		),
		sdktrace.WithSampler(options.sampler),
		sdktrace.WithResource(options.resource),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// ShutdownTracing gracefully shuts down the tracer provider, flushing any pending spans.
// The context timeout determines how long to wait for pending spans to be exported.
func ShutdownTracing(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return types.WrapError(ErrShutdownTimeout, "failed to shutdown tracer provider", err)
	}

	return nil
}
