package graphrun

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/randalmurphal/graphrun/pkg/graphrun/engine"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/graph"
	"github.com/randalmurphal/graphrun/pkg/graphrun/layer"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// Params identifies a run.
type Params struct {
	// WorkflowID names the workflow the graph was built from.
	WorkflowID string

	// RunID is stamped on every event and keys saved pause records.
	// Default: a new UUID.
	RunID string

	// GenerateEntity is the caller's original request. It is saved with
	// every pause so a resumed run can answer the same caller.
	GenerateEntity json.RawMessage
}

// Entry wires a graph, its runtime state, a command channel and the layers
// into one runnable engine.
type Entry struct {
	params      Params
	engine      *engine.Engine
	limits      *layer.ExecutionLimits
	persistence *layer.PauseStatePersistence
}

// NewEntry creates an entry. The layers run in this order: execution
// limits, observability (when metrics or tracing is set), pause
// persistence (when a repository is set), then any WithLayers additions.
func NewEntry(params Params, g *graph.Graph, state *runtime.State, opts ...EntryOption) (*Entry, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if state == nil {
		return nil, ErrNilState
	}
	return newEntry(params, g, state, newEntryConfig(opts))
}

func newEntry(params Params, g *graph.Graph, state *runtime.State, cfg entryConfig) (*Entry, error) {
	if err := cfg.settings.Validate(); err != nil {
		return nil, fmt.Errorf("engine settings: %w", err)
	}
	if params.RunID == "" {
		params.RunID = uuid.NewString()
	}

	e := &Entry{
		params: params,
		limits: layer.NewExecutionLimits(
			cfg.settings.MaxExecutionSteps,
			cfg.settings.MaxExecutionTime,
			layer.WithLimitLogger(cfg.logger),
		),
	}

	layers := []layer.Layer{e.limits}
	if cfg.metrics != nil || cfg.tracer != nil {
		layers = append(layers, layer.NewObservability(params.WorkflowID,
			layer.WithObservabilityLogger(cfg.logger),
			layer.WithMetrics(cfg.metrics),
			layer.WithTracer(cfg.tracer),
		))
	}
	if cfg.repo != nil {
		e.persistence = layer.NewPauseStatePersistence(cfg.repo,
			layer.ResumptionContext{
				RunID:          params.RunID,
				WorkflowID:     params.WorkflowID,
				GenerateEntity: params.GenerateEntity,
			},
			layer.WithPersistenceLogger(cfg.logger),
			layer.WithSnapshotOptions(cfg.codecOpts...),
			layer.WithPersistenceMetrics(cfg.metrics),
		)
		layers = append(layers, e.persistence)
	}
	layers = append(layers, cfg.layers...)

	e.engine = engine.New(g, state,
		engine.WithExecutionID(params.RunID),
		engine.WithCommandChannel(cfg.channel),
		engine.WithLogger(cfg.logger),
		engine.WithSettings(cfg.settings),
		engine.WithStartReason(cfg.reason),
		engine.WithLayers(layers...),
	)
	return e, nil
}

// Run starts the run and streams its events. See engine.Engine.Run.
func (e *Entry) Run(ctx context.Context) iter.Seq2[event.Event, error] {
	return e.engine.Run(ctx)
}

// Abort asks the run to stop.
func (e *Entry) Abort(ctx context.Context, reason string) error {
	return e.engine.Abort(ctx, reason)
}

// RunID returns the id of the run.
func (e *Entry) RunID() string { return e.params.RunID }

// Params returns the parameters the entry was created with.
func (e *Entry) Params() Params { return e.params }

// State returns the runtime state of the run.
func (e *Entry) State() *runtime.State { return e.engine.State() }

// Steps returns the number of nodes started during this run, as counted
// by the execution limits.
func (e *Entry) Steps() int { return e.limits.Steps() }

// Persistence returns the pause persistence layer, or nil when no
// repository was configured.
func (e *Entry) Persistence() *layer.PauseStatePersistence { return e.persistence }

// Collect drains a stream into a slice. It stops at the first error.
func Collect(seq iter.Seq2[event.Event, error]) ([]event.Event, error) {
	var events []event.Event
	for ev, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
