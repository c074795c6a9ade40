package graphrun_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/randalmurphal/graphrun/pkg/graphrun"
	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/graph"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node/builtin"
	"github.com/randalmurphal/graphrun/pkg/graphrun/observability"
	"github.com/randalmurphal/graphrun/pkg/graphrun/pausestore"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

func build(t *testing.T, cfg graph.Config) *graph.Graph {
	t.Helper()
	g, err := graph.Init(cfg, node.NewFactory(builtin.NewRegistry(), node.InitParams{}))
	require.NoError(t, err)
	return g
}

func newState(t *testing.T, inputs map[string]any) *runtime.State {
	t.Helper()
	pool, err := variable.NewPool(variable.WithUserInputs(inputs))
	require.NoError(t, err)
	return runtime.New(pool, time.Now())
}

func greeter() graph.Config {
	return graph.Config{
		Nodes: []graph.NodeConfig{
			{ID: "start", Data: map[string]any{"type": "start"}},
			{ID: "end", Data: map[string]any{
				"type": "end",
				"outputs": []any{
					map[string]any{"variable": "name", "value_selector": []any{"start", "name"}},
				},
			}},
		},
		Edges: []graph.Edge{{Source: "start", Target: "end"}},
	}
}

// twoReviews has two human-input branches that join at the end node.
func twoReviews() graph.Config {
	review := func(title string) map[string]any {
		return map[string]any{
			"type":         "human-input",
			"form_content": title,
			"actions": []any{
				map[string]any{"id": "approve", "title": "Approve"},
				map[string]any{"id": "reject", "title": "Reject"},
			},
		}
	}
	return graph.Config{
		Nodes: []graph.NodeConfig{
			{ID: "start", Data: map[string]any{"type": "start"}},
			{ID: "legal", Data: review("Legal review")},
			{ID: "finance", Data: review("Finance review")},
			{ID: "end", Data: map[string]any{
				"type": "end",
				"outputs": []any{
					map[string]any{"variable": "legal", "value_selector": []any{"legal", "action_id"}},
					map[string]any{"variable": "finance", "value_selector": []any{"finance", "action_id"}},
					map[string]any{"variable": "note", "value_selector": []any{"finance", "note"}},
				},
			}},
		},
		Edges: []graph.Edge{
			{Source: "start", Target: "legal"},
			{Source: "start", Target: "finance"},
			{Source: "legal", Target: "end", SourceHandle: "approve"},
			{Source: "finance", Target: "end", SourceHandle: "approve"},
		},
	}
}

func lastEvent(t *testing.T, events []event.Event) event.Event {
	t.Helper()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func TestNewEntry_Errors(t *testing.T) {
	g := build(t, greeter())
	state := newState(t, nil)

	_, err := graphrun.NewEntry(graphrun.Params{}, nil, state)
	assert.ErrorIs(t, err, graphrun.ErrNilGraph)

	_, err = graphrun.NewEntry(graphrun.Params{}, g, nil)
	assert.ErrorIs(t, err, graphrun.ErrNilState)

	bad := config.DefaultEngineSettings()
	bad.MaxWorkers = 0
	_, err = graphrun.NewEntry(graphrun.Params{}, g, state, graphrun.WithSettings(bad))
	assert.ErrorContains(t, err, "GRAPH_ENGINE_MAX_WORKERS")
}

func TestEntry_Run(t *testing.T) {
	entry, err := graphrun.NewEntry(graphrun.Params{WorkflowID: "greeter"},
		build(t, greeter()), newState(t, map[string]any{"name": "Ada"}))
	require.NoError(t, err)
	require.NotEmpty(t, entry.RunID())

	events, err := graphrun.Collect(entry.Run(context.Background()))
	require.NoError(t, err)

	done, ok := lastEvent(t, events).(event.GraphRunSucceeded)
	require.True(t, ok, "got %T", lastEvent(t, events))
	assert.Equal(t, map[string]any{"name": "Ada"}, done.Outputs)
	assert.Equal(t, 2, entry.Steps())
	for _, ev := range events {
		assert.Equal(t, entry.RunID(), ev.ExecutionID())
	}
	assert.Nil(t, entry.Persistence())
}

func TestEntry_StepLimitFromSettings(t *testing.T) {
	cfg := graph.Config{Nodes: []graph.NodeConfig{{ID: "start", Data: map[string]any{"type": "start"}}}}
	prev := "start"
	for _, id := range []string{"a", "b", "c", "d"} {
		cfg.Nodes = append(cfg.Nodes, graph.NodeConfig{ID: id, Data: map[string]any{
			"type": "template-transform", "template": id,
		}})
		cfg.Edges = append(cfg.Edges, graph.Edge{Source: prev, Target: id})
		prev = id
	}

	settings := config.DefaultEngineSettings()
	settings.MaxExecutionSteps = 2
	entry, err := graphrun.NewEntry(graphrun.Params{}, build(t, cfg), newState(t, nil),
		graphrun.WithSettings(settings))
	require.NoError(t, err)

	events, err := graphrun.Collect(entry.Run(context.Background()))
	require.NoError(t, err)

	aborted, ok := lastEvent(t, events).(event.GraphRunAborted)
	require.True(t, ok, "got %T", lastEvent(t, events))
	assert.Contains(t, aborted.Reason, "max execution steps 2 exceeded")
	assert.Equal(t, 3, entry.Steps())
}

func TestEntry_Abort(t *testing.T) {
	entry, err := graphrun.NewEntry(graphrun.Params{}, build(t, greeter()), newState(t, nil))
	require.NoError(t, err)

	ctx := context.Background()
	var events []event.Event
	for ev, err := range entry.Run(ctx) {
		require.NoError(t, err)
		events = append(events, ev)
		if _, ok := ev.(event.GraphRunStarted); ok {
			require.NoError(t, entry.Abort(ctx, "stop"))
		}
	}

	aborted, ok := lastEvent(t, events).(event.GraphRunAborted)
	require.True(t, ok, "got %T", lastEvent(t, events))
	assert.Equal(t, "stop", aborted.Reason)
}

func TestEntry_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	entry, err := graphrun.NewEntry(graphrun.Params{WorkflowID: "greeter"},
		build(t, greeter()), newState(t, nil),
		graphrun.WithTracing(observability.NewTracer(tp)))
	require.NoError(t, err)

	_, err = graphrun.Collect(entry.Run(context.Background()))
	require.NoError(t, err)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "graphrun.run")
	assert.Len(t, names, 3, "one run span and one span per node")
}

func stores(t *testing.T) map[string]pausestore.Repository {
	t.Helper()
	sqlite, err := pausestore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]pausestore.Repository{
		"memory": pausestore.NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestResume_MultiBranch(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cfg := twoReviews()
			var builds atomic.Int32
			deps := graphrun.ResumeDeps{
				Repository: store,
				Graphs:     graph.NewCache(),
				BuildGraph: func(_ context.Context, workflowID string) (*graph.Graph, error) {
					builds.Add(1)
					assert.Equal(t, "approvals", workflowID)
					return graph.Init(cfg, node.NewFactory(builtin.NewRegistry(), node.InitParams{}))
				},
			}

			params := graphrun.Params{
				WorkflowID:     "approvals",
				RunID:          "run-" + name,
				GenerateEntity: json.RawMessage(`{"invoice":"INV-7"}`),
			}
			entry, err := graphrun.NewEntry(params, build(t, cfg), newState(t, nil),
				graphrun.WithPauseRepository(store))
			require.NoError(t, err)

			events, err := graphrun.Collect(entry.Run(ctx))
			require.NoError(t, err)
			paused, ok := lastEvent(t, events).(event.GraphRunPaused)
			require.True(t, ok, "got %T", lastEvent(t, events))
			assert.ElementsMatch(t, []string{"legal", "finance"}, pausedIDs(paused))
			require.Len(t, entry.Persistence().Saved(), 1)

			rec, err := store.Load(ctx, params.RunID)
			require.NoError(t, err)
			assert.JSONEq(t, `{"invoice":"INV-7"}`, string(rec.Context.GenerateEntity))
			assert.Equal(t, "approvals", rec.WorkflowID)

			// First resume unblocks one branch; the other keeps the run paused.
			entry, err = graphrun.Resume(ctx, graphrun.ResumeRequest{
				RunID:       params.RunID,
				Submissions: []graphrun.Submission{{NodeID: "legal", ActionID: "approve"}},
			}, deps)
			require.NoError(t, err)
			assert.Equal(t, params.RunID, entry.RunID())

			events, err = graphrun.Collect(entry.Run(ctx))
			require.NoError(t, err)
			started, ok := events[0].(event.GraphRunStarted)
			require.True(t, ok)
			assert.Equal(t, event.ReasonResumption, started.Reason)
			assert.Equal(t, []string{"legal"}, nodeStarts(events))

			paused, ok = lastEvent(t, events).(event.GraphRunPaused)
			require.True(t, ok, "got %T", lastEvent(t, events))
			assert.Equal(t, []string{"finance"}, pausedIDs(paused))

			infos, err := store.List(ctx, params.RunID)
			require.NoError(t, err)
			require.Len(t, infos, 2)
			assert.Equal(t, 2, infos[1].Sequence)

			// Second resume completes the join.
			entry, err = graphrun.Resume(ctx, graphrun.ResumeRequest{
				RunID: params.RunID,
				Submissions: []graphrun.Submission{{
					NodeID:   "finance",
					ActionID: "approve",
					Inputs:   map[string]any{"note": "within budget"},
				}},
			}, deps)
			require.NoError(t, err)

			events, err = graphrun.Collect(entry.Run(ctx))
			require.NoError(t, err)
			done, ok := lastEvent(t, events).(event.GraphRunSucceeded)
			require.True(t, ok, "got %T", lastEvent(t, events))
			assert.Equal(t, map[string]any{
				"legal":   "approve",
				"finance": "approve",
				"note":    "within budget",
			}, done.Outputs)
			assert.Equal(t, []string{"finance", "end"}, nodeStarts(events))
			assert.Equal(t, int32(1), builds.Load(), "graph is built once and cached")
		})
	}
}

func pausedIDs(e event.GraphRunPaused) []string {
	ids := make([]string, 0, len(e.PausedNodes))
	for _, p := range e.PausedNodes {
		ids = append(ids, p.NodeID)
	}
	return ids
}

func nodeStarts(events []event.Event) []string {
	var ids []string
	for _, ev := range events {
		if s, ok := ev.(event.NodeRunStarted); ok {
			ids = append(ids, s.NodeID)
		}
	}
	return ids
}

func TestResume_Errors(t *testing.T) {
	ctx := context.Background()
	store := pausestore.NewMemoryStore()
	cfg := twoReviews()
	builder := func(context.Context, string) (*graph.Graph, error) {
		return graph.Init(cfg, node.NewFactory(builtin.NewRegistry(), node.InitParams{}))
	}

	entry, err := graphrun.NewEntry(graphrun.Params{WorkflowID: "approvals", RunID: "run-1"},
		build(t, cfg), newState(t, nil), graphrun.WithPauseRepository(store))
	require.NoError(t, err)
	_, err = graphrun.Collect(entry.Run(ctx))
	require.NoError(t, err)

	deps := graphrun.ResumeDeps{Repository: store, BuildGraph: builder}
	tests := []struct {
		name string
		req  graphrun.ResumeRequest
		deps graphrun.ResumeDeps
		want error
	}{
		{"missing run id", graphrun.ResumeRequest{}, deps, graphrun.ErrRunIDRequired},
		{"missing repository", graphrun.ResumeRequest{RunID: "run-1"}, graphrun.ResumeDeps{BuildGraph: builder}, graphrun.ErrRepositoryRequired},
		{"missing builder", graphrun.ResumeRequest{RunID: "run-1"}, graphrun.ResumeDeps{Repository: store}, graphrun.ErrGraphBuilderRequired},
		{"unknown run", graphrun.ResumeRequest{RunID: "run-2"}, deps, pausestore.ErrNotFound},
		{
			"node not paused",
			graphrun.ResumeRequest{RunID: "run-1", Submissions: []graphrun.Submission{{NodeID: "start", ActionID: "approve"}}},
			deps, graphrun.ErrNodeNotPaused,
		},
		{
			"duplicate submission",
			graphrun.ResumeRequest{RunID: "run-1", Submissions: []graphrun.Submission{
				{NodeID: "legal", ActionID: "approve"},
				{NodeID: "legal", ActionID: "reject"},
			}},
			deps, graphrun.ErrNodeNotPaused,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graphrun.Resume(ctx, tt.req, tt.deps)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResume_WithoutSubmissionsPausesAgain(t *testing.T) {
	ctx := context.Background()
	store := pausestore.NewMemoryStore()
	cfg := twoReviews()

	entry, err := graphrun.NewEntry(graphrun.Params{WorkflowID: "approvals", RunID: "run-1"},
		build(t, cfg), newState(t, nil), graphrun.WithPauseRepository(store))
	require.NoError(t, err)
	_, err = graphrun.Collect(entry.Run(ctx))
	require.NoError(t, err)

	entry, err = graphrun.Resume(ctx, graphrun.ResumeRequest{RunID: "run-1"}, graphrun.ResumeDeps{
		Repository: store,
		BuildGraph: func(context.Context, string) (*graph.Graph, error) {
			return graph.Init(cfg, node.NewFactory(builtin.NewRegistry(), node.InitParams{}))
		},
	})
	require.NoError(t, err)

	events, err := graphrun.Collect(entry.Run(ctx))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.IsType(t, event.GraphRunStarted{}, events[0])
	assert.IsType(t, event.GraphRunPaused{}, events[1])
	assert.Equal(t, 2, store.Len())
}
