package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Tracer starts the spans of graph runs. Each run gets one span; each node
// execution gets a child span named after its kind.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer on provider, or on the global tracer provider
// when provider is nil.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(Scope)}
}

// DiscardTracer returns a Tracer whose spans are not recorded.
func DiscardTracer() *Tracer {
	return NewTracer(tracenoop.NewTracerProvider())
}

// StartRun starts the span of a graph run.
func (t *Tracer) StartRun(ctx context.Context, workflowID, runID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "graphrun.run",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("run.id", runID),
		),
	)
}

// StartNode starts the span of a node execution as a child of the span
// in ctx.
func (t *Tracer) StartNode(ctx context.Context, nodeID, kind string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "graphrun.node."+kind,
		trace.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("node.kind", kind),
		),
	)
}

// End sets the span status from err and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
