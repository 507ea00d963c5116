package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName scopes tracers and meters created by this package.
const InstrumentationName = "github.com/felixgeelhaar/supportflow"

// Provider owns the tracer and meter providers.
type Provider struct {
	config Config

	tracer trace.Tracer
	meter  metric.Meter

	shutdownFuncs []func(context.Context) error
}

// ProviderOption attaches extra SDK components, mostly for tests.
type ProviderOption func(*providerExtras)

type providerExtras struct {
	spanProcessors []sdktrace.SpanProcessor
	readers        []sdkmetric.Reader
}

// WithSpanProcessor registers an additional span processor.
func WithSpanProcessor(sp sdktrace.SpanProcessor) ProviderOption {
	return func(e *providerExtras) {
		e.spanProcessors = append(e.spanProcessors, sp)
	}
}

// WithMetricReader registers a metric reader.
func WithMetricReader(r sdkmetric.Reader) ProviderOption {
	return func(e *providerExtras) {
		e.readers = append(e.readers, r)
	}
}

// NewProvider builds tracing and metrics from cfg. With ExporterNone and no
// extras it returns noop implementations.
func NewProvider(ctx context.Context, cfg Config, extras ...ProviderOption) (*Provider, error) {
	var ex providerExtras
	for _, opt := range extras {
		opt(&ex)
	}

	p := &Provider{config: cfg}

	if cfg.Exporter == "" {
		cfg.Exporter = ExporterNone
	}
	if cfg.Exporter == ExporterNone && len(ex.spanProcessors) == 0 && len(ex.readers) == 0 {
		p.tracer = tracenoop.NewTracerProvider().Tracer(InstrumentationName)
		p.meter = metricnoop.NewMeterProvider().Meter(InstrumentationName)
		return p, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}

	switch cfg.Exporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(cfg.BatchTimeout)))
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(cfg.BatchTimeout)))
	case ExporterNone:
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
	for _, sp := range ex.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range ex.readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	if cfg.Global {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	p.tracer = tp.Tracer(InstrumentationName)
	p.meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown, mp.Shutdown)
	return p, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the workflow tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the workflow meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
