// Package engine executes a workflow graph.
//
// An Engine owns one run. A single dispatcher goroutine keeps the ready
// queue, applies node results and emits events; an elastic pool of workers
// executes nodes. Because every state transition happens on the dispatcher,
// events reach the caller and the layers in causal order.
//
// Basic usage:
//
//	eng := engine.New(g, state, engine.WithLayers(limits))
//	for ev, err := range eng.Run(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    handle(ev)
//	}
//
// A run ends with exactly one terminal event. The precedence when several
// outcomes apply is failed, then aborted, then paused, then succeeded.
package engine

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/randalmurphal/graphrun/pkg/graphrun/command"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/graph"
	"github.com/randalmurphal/graphrun/pkg/graphrun/layer"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// Engine runs one graph against one runtime state.
type Engine struct {
	graph   *graph.Graph
	state   *runtime.State
	cfg     engineConfig
	layers  *layer.Stack
	started atomic.Bool
}

// New creates an engine. The state may be fresh or restored from a
// snapshot; in the latter case nodes that were paused and whose pause has
// been cleared are scheduled first.
func New(g *graph.Graph, state *runtime.State, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.channel == nil {
		cfg.channel = command.NewInMemoryChannel()
	}
	if cfg.executionID == "" {
		cfg.executionID = uuid.NewString()
	}
	return &Engine{
		graph:  g,
		state:  state,
		cfg:    cfg,
		layers: layer.NewStack(cfg.logger, cfg.layers...),
	}
}

// ExecutionID returns the id stamped on every event of the run.
func (e *Engine) ExecutionID() string { return e.cfg.executionID }

// CommandChannel returns the channel the engine polls.
func (e *Engine) CommandChannel() command.Channel { return e.cfg.channel }

// State returns the runtime state the engine mutates.
func (e *Engine) State() *runtime.State { return e.state }

// Graph returns the graph being run.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Abort asks the run to stop. Nodes already running finish; no new node is
// dispatched. Aborting twice has no further effect.
func (e *Engine) Abort(ctx context.Context, reason string) error {
	return e.cfg.channel.SendCommand(ctx, command.Abort(reason))
}

// Run starts the run and returns its event stream. The stream yields a
// non-nil error only for a broken scheduling invariant; node failures are
// reported as events. Breaking out of the loop cancels running nodes and
// ends the run as aborted.
//
// Run may be called once per engine; later calls yield ErrAlreadyRunning.
func (e *Engine) Run(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		if !e.started.CompareAndSwap(false, true) {
			yield(nil, ErrAlreadyRunning)
			return
		}

		runCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		d := newDispatcher(e, ctx, runCtx, cancel, yield)
		d.run()
	}
}
