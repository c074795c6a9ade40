package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// Scope names the meter and tracer.
const Scope = "github.com/randalmurphal/graphrun"

// Metrics records graph run measurements.
type Metrics struct {
	runs         metric.Int64Counter
	runDuration  metric.Float64Histogram
	runSteps     metric.Int64Histogram
	nodeRuns     metric.Int64Counter
	nodeDuration metric.Float64Histogram
	nodeRetries  metric.Int64Counter
	snapshotSize metric.Int64Histogram
}

// NewMetrics creates the instruments on provider, or on the global meter
// provider when provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(Scope)

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		errs = append(errs, err)
		return h
	}
	sizes := func(name, desc, unit string) metric.Int64Histogram {
		h, err := meter.Int64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return h
	}

	m := &Metrics{
		runs:         counter("graphrun.runs", "Graph runs by terminal status"),
		runDuration:  seconds("graphrun.run.duration", "Wall time of graph runs"),
		runSteps:     sizes("graphrun.run.steps", "Node executions per graph run", "{step}"),
		nodeRuns:     counter("graphrun.node.runs", "Node executions by kind and outcome"),
		nodeDuration: seconds("graphrun.node.duration", "Wall time of node executions, retries included"),
		nodeRetries:  counter("graphrun.node.retries", "Repeated node attempts"),
		snapshotSize: sizes("graphrun.pause.snapshot.size", "Size of persisted pause snapshots", "By"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// DiscardMetrics returns Metrics that record nothing.
func DiscardMetrics() *Metrics {
	m, _ := NewMetrics(metricnoop.NewMeterProvider())
	return m
}

// RunFinished records a run that reached status.
func (m *Metrics) RunFinished(ctx context.Context, status string, elapsed time.Duration, steps int) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.runSteps.Record(ctx, int64(steps), attrs)
}

// NodeFinished records a node execution of kind that ended with outcome:
// succeeded, failed, exception or paused.
func (m *Metrics) NodeFinished(ctx context.Context, kind, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("node_kind", kind),
		attribute.String("outcome", outcome),
	)
	m.nodeRuns.Add(ctx, 1, attrs)
	m.nodeDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// NodeRetried records one repeated attempt of a node of kind.
func (m *Metrics) NodeRetried(ctx context.Context, kind string) {
	m.nodeRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("node_kind", kind)))
}

// PauseSaved records the size of a persisted pause snapshot.
func (m *Metrics) PauseSaved(ctx context.Context, size int64) {
	m.snapshotSize.Record(ctx, size)
}
