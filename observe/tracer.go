package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta describes an observed operation.
type OpMeta struct {
	Component string // Owning component, e.g. "pokedex" (optional)
	Name      string // Operation name, e.g. "list_creatures" (required)
	Attrs     []attribute.KeyValue
}

// ID returns "<component>.<name>" or just the name.
func (m OpMeta) ID() string {
	if m.Component != "" {
		return m.Component + "." + m.Name
	}
	return m.Name
}

// SpanName returns the deterministic span name: kantodex.<component>.<name>
func (m OpMeta) SpanName() string {
	return "kantodex." + m.ID()
}

// Tracer wraps OpenTelemetry tracing with operation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(meta.Attrs)+2)
	attrs = append(attrs, attribute.String("op.id", meta.ID()))
	if meta.Component != "" {
		attrs = append(attrs, attribute.String("op.component", meta.Component))
	}
	attrs = append(attrs, meta.Attrs...)

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
