package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrThreadID = attribute.Key("supportflow.thread_id")
	AttrStage    = attribute.Key("supportflow.stage")
	AttrMode     = attribute.Key("supportflow.mode")
	AttrAbility  = attribute.Key("supportflow.ability")
	AttrBackend  = attribute.Key("supportflow.backend")
	AttrStatus   = attribute.Key("supportflow.status")
	AttrBranch   = attribute.Key("supportflow.branch")
)

// StartSpan starts an internal span with attrs.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
