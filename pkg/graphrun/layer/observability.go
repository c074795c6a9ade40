package layer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/observability"
)

// Run statuses reported to metrics and logs.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusPaused    = "paused"
	StatusAborted   = "aborted"
)

var errNodeUnfinished = errors.New("run ended before node finished")

// Observability turns run events into run logs, metrics and spans. Node
// log lines come from the engine itself.
type Observability struct {
	Base

	workflowID string
	logger     *slog.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer

	mu      sync.Mutex
	log     observability.RunLog
	started time.Time
	runCtx  context.Context
	runSpan trace.Span
	open    map[string]openNode // by node execution id
	status  string
	failure error
}

type openNode struct {
	ctx  context.Context
	span trace.Span
}

// ObservabilityOption configures the Observability layer.
type ObservabilityOption func(*Observability)

// WithObservabilityLogger sets the logger.
func WithObservabilityLogger(logger *slog.Logger) ObservabilityOption {
	return func(o *Observability) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics instruments.
func WithMetrics(m *observability.Metrics) ObservabilityOption {
	return func(o *Observability) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) ObservabilityOption {
	return func(o *Observability) {
		if t != nil {
			o.tracer = t
		}
	}
}

// NewObservability returns a layer for workflowID. Metrics and spans are
// discarded unless configured.
func NewObservability(workflowID string, opts ...ObservabilityOption) *Observability {
	o := &Observability{
		workflowID: workflowID,
		logger:     slog.Default(),
		metrics:    observability.DiscardMetrics(),
		tracer:     observability.DiscardTracer(),
		open:       make(map[string]openNode),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(slog.String("workflow_id", workflowID))
	o.log = observability.ForRun(o.logger, "")
	return o
}

// OnGraphStart records the start time.
func (o *Observability) OnGraphStart(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = time.Now()
	o.runCtx = ctx
}

// OnEvent records the event.
func (o *Observability) OnEvent(ctx context.Context, e event.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch ev := e.(type) {
	case event.GraphRunStarted:
		o.log = observability.ForRun(o.logger, ev.ExecutionID())
		o.runCtx, o.runSpan = o.tracer.StartRun(o.parent(ctx), o.workflowID, ev.ExecutionID())
		o.log.Started(string(ev.Reason))

	case event.NodeRunStarted:
		nctx, span := o.tracer.StartNode(o.parent(ctx), ev.NodeID, string(ev.NodeKind))
		o.open[ev.NodeExecutionID] = openNode{ctx: nctx, span: span}

	case event.NodeRunRetry:
		if n, ok := o.open[ev.NodeExecutionID]; ok {
			n.span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", ev.Attempt),
				attribute.String("error", ev.Error),
			))
		}
		o.metrics.NodeRetried(ctx, string(ev.NodeKind))

	case event.NodeRunSucceeded:
		o.closeNode(ev.NodeInfo, e.Timestamp(), StatusSucceeded, nil)
	case event.NodeRunPauseRequested:
		o.closeNode(ev.NodeInfo, e.Timestamp(), StatusPaused, nil)
	case event.NodeRunFailed:
		o.closeNode(ev.NodeInfo, e.Timestamp(), StatusFailed, eventError(ev.Err, ev.Error))
	case event.NodeRunException:
		o.closeNode(ev.NodeInfo, e.Timestamp(), "exception", eventError(ev.Err, ev.Error))

	case event.GraphRunSucceeded:
		o.status = StatusSucceeded
	case event.GraphRunPaused:
		o.status = StatusPaused
	case event.GraphRunAborted:
		o.status = StatusAborted
	case event.GraphRunFailed:
		o.status = StatusFailed
		o.failure = eventError(ev.Err, ev.Error)
	}
}

// parent returns the context node spans hang off.
func (o *Observability) parent(ctx context.Context) context.Context {
	if o.runCtx != nil {
		return o.runCtx
	}
	return ctx
}

func (o *Observability) closeNode(info event.NodeInfo, at time.Time, outcome string, err error) {
	n, ok := o.open[info.NodeExecutionID]
	if !ok {
		return
	}
	delete(o.open, info.NodeExecutionID)
	observability.End(n.span, err)
	o.metrics.NodeFinished(n.ctx, string(info.NodeKind), outcome, at.Sub(info.StartAt))
}

// OnGraphEnd closes the run span and records the run.
func (o *Observability) OnGraphEnd(ctx context.Context, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, n := range o.open {
		observability.End(n.span, errNodeUnfinished)
		delete(o.open, id)
	}

	if err == nil {
		err = o.failure
	}
	status := o.status
	if status == "" {
		status = StatusFailed
	}
	elapsed := time.Since(o.started)
	steps := 0
	if state := o.RuntimeState(); state != nil {
		steps = state.NodeRunSteps()
	}

	o.metrics.RunFinished(ctx, status, elapsed, steps)
	if o.runSpan != nil {
		o.runSpan.SetAttributes(attribute.String("run.status", status))
		observability.End(o.runSpan, err)
	}

	if err != nil {
		o.log.Failed(err, elapsed)
		return
	}
	o.log.Finished(status, elapsed, steps)
}

// eventError returns err, or an error carrying msg when err was lost in
// serialization.
func eventError(err error, msg string) error {
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "unknown error"
	}
	return errors.New(msg)
}
