package layer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/layer"
	"github.com/randalmurphal/graphrun/pkg/graphrun/pausestore"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

func pausedEvent(runID string, nodes ...runtime.PausedNode) event.GraphRunPaused {
	return event.GraphRunPaused{Meta: event.NewMeta(runID), PausedNodes: nodes}
}

func TestPauseStatePersistence_SavesEveryPause(t *testing.T) {
	ctx := context.Background()
	repo := pausestore.NewMemoryStore()
	state := newState(t)
	require.NoError(t, state.Pool().Add(variable.Selector{"start", "query"}, "hello"))
	require.True(t, state.RegisterPausedNode("h1", "approve?"))

	p := layer.NewPauseStatePersistence(repo, layer.ResumptionContext{
		WorkflowID:     "wf-1",
		GenerateEntity: json.RawMessage(`{"inputs":{"query":"hello"}}`),
	})
	p.Initialize(state, nil)

	p.OnEvent(ctx, event.GraphRunStarted{Meta: event.NewMeta("run-1")})
	assert.Empty(t, p.Saved(), "only pauses are persisted")

	p.OnEvent(ctx, pausedEvent("run-1", runtime.PausedNode{NodeID: "h1", Reason: "approve?"}))
	p.OnEvent(ctx, pausedEvent("run-1",
		runtime.PausedNode{NodeID: "h2", Reason: "review"},
		runtime.PausedNode{NodeID: "h3", Reason: "sign"}))
	require.NoError(t, p.Err())

	saved := p.Saved()
	require.Len(t, saved, 2)
	assert.Equal(t, 1, saved[0].Sequence)
	assert.Equal(t, 2, saved[1].Sequence)

	rec, err := repo.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", rec.WorkflowID)
	assert.Equal(t, "review; sign", rec.Context.Reason)
	assert.Len(t, rec.Context.PausedNodes, 2)
	assert.JSONEq(t, `{"inputs":{"query":"hello"}}`, string(rec.Context.GenerateEntity))

	restored, err := runtime.FromSnapshot(rec.State)
	require.NoError(t, err)
	seg, ok := restored.Pool().GetOK(variable.Selector{"start", "query"})
	require.True(t, ok)
	assert.Equal(t, "hello", seg.Value())
	assert.True(t, restored.IsPaused("h1"))
}

func TestPauseStatePersistence_ExplicitRunID(t *testing.T) {
	ctx := context.Background()
	repo := pausestore.NewMemoryStore()
	p := layer.NewPauseStatePersistence(repo, layer.ResumptionContext{RunID: "caller-run"})
	p.Initialize(newState(t), nil)

	p.OnEvent(ctx, pausedEvent("engine-exec-id"))
	_, err := repo.Load(ctx, "caller-run")
	assert.NoError(t, err)
}

type brokenRepo struct{ pausestore.Repository }

func (brokenRepo) Save(context.Context, pausestore.Record) (pausestore.Info, error) {
	return pausestore.Info{}, errors.New("disk full")
}

func TestPauseStatePersistence_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("save fails", func(t *testing.T) {
		logger, logs := bufferLogger()
		p := layer.NewPauseStatePersistence(brokenRepo{}, layer.ResumptionContext{},
			layer.WithPersistenceLogger(logger))
		p.Initialize(newState(t), nil)

		assert.NotPanics(t, func() { p.OnEvent(ctx, pausedEvent("run-1")) })
		assert.ErrorContains(t, p.Err(), "disk full")
		assert.Empty(t, p.Saved())
		assert.Contains(t, logs.String(), "pause state not saved")
	})

	t.Run("not initialized", func(t *testing.T) {
		p := layer.NewPauseStatePersistence(pausestore.NewMemoryStore(), layer.ResumptionContext{},
			layer.WithPersistenceLogger(slogDiscard()))
		p.OnEvent(ctx, pausedEvent("run-1"))
		assert.Error(t, p.Err())
	})
}
