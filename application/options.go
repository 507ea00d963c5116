package application

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/observability"
)

// Option configures the engine.
type Option func(*EngineConfig)

// WithTable sets the stage table.
func WithTable(t *workflow.Table) Option {
	return func(c *EngineConfig) {
		c.Table = t
	}
}

// WithClients sets the backend clients. The engine owns them for its
// lifetime; every stage opens and releases its own session.
func WithClients(clients ...ability.Client) Option {
	return func(c *EngineConfig) {
		c.Clients = clients
	}
}

// WithCheckpointStore sets where progress is persisted after each stage.
func WithCheckpointStore(s checkpoint.Store) Option {
	return func(c *EngineConfig) {
		c.Checkpoints = s
	}
}

// WithRequestTimeout bounds a whole request. Zero disables the deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *EngineConfig) {
		c.RequestTimeout = d
	}
}

// WithMaxConcurrent bounds how many requests ProcessBatch runs at once.
func WithMaxConcurrent(n int) Option {
	return func(c *EngineConfig) {
		c.MaxConcurrent = n
	}
}

// WithClock sets the time source for state timestamps and checkpoints.
func WithClock(now func() time.Time) Option {
	return func(c *EngineConfig) {
		c.Clock = now
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *EngineConfig) {
		c.Tracer = t
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *EngineConfig) {
		c.Metrics = m
	}
}

// WithAgent overrides the name and version reported by Info.
func WithAgent(name, version string) Option {
	return func(c *EngineConfig) {
		c.Name = name
		c.Version = version
	}
}
