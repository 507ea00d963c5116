package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// Metric names.
const (
	MetricRequests        = "supportflow.requests"
	MetricStageRuns       = "supportflow.stage.runs"
	MetricStageDuration   = "supportflow.stage.duration"
	MetricAbilityCalls    = "supportflow.ability.calls"
	MetricAbilityFailures = "supportflow.ability.failures"
	MetricEscalations     = "supportflow.escalations"
)

// Metrics records workflow measurements.
type Metrics struct {
	requests        metric.Int64Counter
	stageRuns       metric.Int64Counter
	stageDuration   metric.Float64Histogram
	abilityCalls    metric.Int64Counter
	abilityFailures metric.Int64Counter
	escalations     metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.requests, err = meter.Int64Counter(MetricRequests,
		metric.WithDescription("Requests processed, by final status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.stageRuns, err = meter.Int64Counter(MetricStageRuns,
		metric.WithDescription("Stages executed"),
		metric.WithUnit("{stage}"),
	); err != nil {
		return nil, err
	}
	if m.stageDuration, err = meter.Float64Histogram(MetricStageDuration,
		metric.WithDescription("Stage execution time"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.abilityCalls, err = meter.Int64Counter(MetricAbilityCalls,
		metric.WithDescription("Ability invocations"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.abilityFailures, err = meter.Int64Counter(MetricAbilityFailures,
		metric.WithDescription("Ability invocations that produced an error result"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.escalations, err = meter.Int64Counter(MetricEscalations,
		metric.WithDescription("Requests routed to a specialist"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(metricnoop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(ctx context.Context, status, branch string) {
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("branch", branch),
	)
	m.requests.Add(ctx, 1, attrs)
	if branch == "escalate" {
		m.escalations.Add(ctx, 1)
	}
}

// RecordStage counts a stage run and its duration.
func (m *Metrics) RecordStage(ctx context.Context, stage, mode string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("mode", mode),
	)
	m.stageRuns.Add(ctx, 1, attrs)
	m.stageDuration.Record(ctx, float64(d.Microseconds())/1000.0, attrs)
}

// RecordAbility counts an ability call.
func (m *Metrics) RecordAbility(ctx context.Context, ability, backend string, failed bool) {
	attrs := metric.WithAttributes(
		attribute.String("ability", ability),
		attribute.String("backend", backend),
	)
	m.abilityCalls.Add(ctx, 1, attrs)
	if failed {
		m.abilityFailures.Add(ctx, 1, attrs)
	}
}
