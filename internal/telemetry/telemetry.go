// Package telemetry sets up OpenTelemetry tracing for the regpack command
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ShutdownFunc flushes and stops the trace provider
type ShutdownFunc func(context.Context) error

// Init installs a global trace provider exporting over OTLP/gRPC. The
// exporter is configured from the standard environment variables:
// - OTEL_EXPORTER_OTLP_ENDPOINT
// - OTEL_EXPORTER_OTLP_HEADERS
// - OTEL_RESOURCE_ATTRIBUTES
//
// If the exporter cannot be created tracing stays disabled and a no-op
// shutdown is returned.
func Init(ctx context.Context, logger zerolog.Logger, serviceName, version string) (ShutdownFunc, error) {
	res, err := newResource(ctx, serviceName, version)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize trace exporter, continuing without tracing")
		return func(context.Context) error { return nil }, nil
	}

	tp := NewProvider(res, sdktrace.WithBatcher(exporter,
		sdktrace.WithBatchTimeout(5*time.Second),
		sdktrace.WithMaxExportBatchSize(512),
	))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().
		Str("service", serviceName).
		Str("version", version).
		Msg("OpenTelemetry initialized")

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("trace shutdown: %w", err)
		}
		return nil
	}, nil
}

// NewProvider builds an always-sampling trace provider for res with the
// given span processing options.
func NewProvider(res *resource.Resource, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}, opts...)
	return sdktrace.NewTracerProvider(opts...)
}

func newResource(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
