package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/abnerjacobsen/das-sankhya/internal/config"
	"github.com/abnerjacobsen/das-sankhya/internal/logger"
)

const (
	// TracerName is the name of the tracer used throughout the application
	TracerName = "github.com/abnerjacobsen/das-sankhya"
)

var (
	// tracerProvider is the global tracer provider
	tracerProvider *sdktrace.TracerProvider
	// propagator carries W3C trace context and baggage across hops
	propagator = propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
)

// Config contains tracing configuration
type Config struct {
	// Enabled determines if tracing is enabled
	Enabled bool
	// Endpoint is the OTLP collector host and port (e.g., localhost:4318)
	Endpoint string
	// ServiceName is the name of the service
	ServiceName string
	// ServiceVersion is the version of the service
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// FromConfig builds the tracing configuration from the application config
func FromConfig(cfg *config.Config) *Config {
	env := "production"
	if cfg.Server.Debug {
		env = "development"
	}
	return &Config{
		Enabled:        cfg.Observability.TracingEnabled,
		Endpoint:       cfg.Observability.TracingEndpoint,
		ServiceName:    cfg.Server.ProjectName,
		ServiceVersion: cfg.Server.Version,
		Environment:    env,
		SampleRate:     cfg.Observability.TracingSampleRate,
	}
}

// Init initializes the distributed tracing system
func Init(cfg *Config) error {
	log := logger.Get().WithComponent("tracing")

	otel.SetTextMapPropagator(propagator)

	if !cfg.Enabled {
		log.Info("distributed tracing is disabled")
		// Set up a no-op tracer provider
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil
	}

	// Create OTLP HTTP exporter
	client := otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)

	exporter, err := otlptrace.New(context.Background(), client)
	if err != nil {
		return fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	if err := InitWithProcessor(cfg, sdktrace.NewBatchSpanProcessor(exporter)); err != nil {
		return err
	}

	log.Info("distributed tracing initialized", logger.Fields{
		"endpoint":     cfg.Endpoint,
		"service_name": cfg.ServiceName,
		"environment":  cfg.Environment,
		"sample_rate":  cfg.SampleRate,
	})

	return nil
}

// InitWithProcessor installs a tracer provider that hands finished spans to sp
func InitWithProcessor(cfg *Config, sp sdktrace.SpanProcessor) error {
	// Create resource with service information
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.ParentBased(
		sdktrace.TraceIDRatioBased(cfg.SampleRate),
	)

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sp),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagator)
	return nil
}

// Shutdown flushes pending spans and stops the tracer provider
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}

	log := logger.Get().WithComponent("tracing")
	log.Info("shutting down tracing")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := tracerProvider.Shutdown(shutdownCtx)
	tracerProvider = nil
	if err != nil {
		log.Error("failed to shutdown tracer provider", logger.Fields{
			"error": err.Error(),
		})
		return err
	}

	log.Info("tracing shutdown complete")
	return nil
}

// Tracer returns a tracer instance
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// SpanFromContext returns the current span from the context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// StartSpan starts a new span with the given name and options
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	SpanFromContext(ctx).RecordError(err)
}
