// Package observability wires OpenTelemetry tracing and metrics for the
// workflow engine.
package observability

import "time"

// ExporterType selects the span exporter.
type ExporterType string

const (
	// ExporterOTLP exports to an OTLP gRPC endpoint.
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout pretty-prints spans to stdout.
	ExporterStdout ExporterType = "stdout"

	// ExporterNone records nothing.
	ExporterNone ExporterType = "none"
)

// Config configures the provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Exporter   ExporterType
	Endpoint   string
	Insecure   bool
	SampleRate float64

	BatchTimeout time.Duration

	// Global installs the providers as the otel globals.
	Global bool
}

// DefaultConfig returns a disabled configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "supportflow",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Exporter:       ExporterNone,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Global:         true,
	}
}

// Option configures the provider.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithEnvironment sets the deployment environment.
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithStdout exports spans to stdout.
func WithStdout() Option {
	return func(c *Config) {
		c.Exporter = ExporterStdout
	}
}

// WithOTLP exports spans to endpoint.
func WithOTLP(endpoint string, insecure bool) Option {
	return func(c *Config) {
		c.Exporter = ExporterOTLP
		c.Endpoint = endpoint
		c.Insecure = insecure
	}
}

// WithSampleRate sets the trace sampling ratio.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithoutGlobal keeps the providers local to the Provider.
func WithoutGlobal() Option {
	return func(c *Config) {
		c.Global = false
	}
}
