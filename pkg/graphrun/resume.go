package graphrun

import (
	"context"
	"fmt"

	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/graph"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/pausestore"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// Submission is the input a person gave to a paused node.
type Submission struct {
	NodeID   string
	ActionID string
	Inputs   map[string]any
}

// ResumeRequest names the paused run and the inputs that unblock it.
// Paused nodes without a submission stay paused.
type ResumeRequest struct {
	RunID       string
	Submissions []Submission
}

// GraphBuilder rebuilds the graph of a workflow.
type GraphBuilder func(ctx context.Context, workflowID string) (*graph.Graph, error)

// ResumeDeps are the services Resume needs.
type ResumeDeps struct {
	// Repository holds the saved pause records. Required.
	Repository pausestore.Repository

	// BuildGraph rebuilds the workflow graph. Required.
	BuildGraph GraphBuilder

	// Graphs caches built graphs across resumes. Optional.
	Graphs *graph.Cache

	// GraphVersion is part of the cache key.
	GraphVersion string

	// Options configure the resumed entry. Pause persistence to
	// Repository is enabled unless an option sets another repository.
	Options []EntryOption
}

// Resume restores a paused run from its latest pause record and applies
// the submissions. The returned entry's first event is GraphRunStarted
// with reason resumption.
//
// Example:
//
//	entry, err := graphrun.Resume(ctx, graphrun.ResumeRequest{
//	    RunID:       "run-123",
//	    Submissions: []graphrun.Submission{{NodeID: "review", ActionID: "approve"}},
//	}, deps)
//	if err != nil {
//	    return err
//	}
//	events, err := graphrun.Collect(entry.Run(ctx))
func Resume(ctx context.Context, req ResumeRequest, deps ResumeDeps) (*Entry, error) {
	switch {
	case req.RunID == "":
		return nil, ErrRunIDRequired
	case deps.Repository == nil:
		return nil, ErrRepositoryRequired
	case deps.BuildGraph == nil:
		return nil, ErrGraphBuilderRequired
	}

	opts := append([]EntryOption{WithPauseRepository(deps.Repository)}, deps.Options...)
	cfg := newEntryConfig(append(opts, withStartReason(event.ReasonResumption)))

	rec, err := deps.Repository.Load(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("load pause record: %w", err)
	}
	state, err := runtime.FromSnapshot(rec.State, cfg.codecOpts...)
	if err != nil {
		return nil, fmt.Errorf("restore run %s: %w", req.RunID, err)
	}

	build := func() (*graph.Graph, error) { return deps.BuildGraph(ctx, rec.WorkflowID) }
	var g *graph.Graph
	if deps.Graphs != nil {
		g, err = deps.Graphs.GetOrBuild(graph.CacheKey{WorkflowID: rec.WorkflowID, Version: deps.GraphVersion}, build)
	} else {
		g, err = build()
	}
	if err != nil {
		return nil, fmt.Errorf("build graph for %s: %w", rec.WorkflowID, err)
	}

	if err := applySubmissions(state, req.Submissions); err != nil {
		return nil, err
	}

	cfg.logger.Info("resuming graph run",
		"run_id", rec.RunID,
		"sequence", rec.Sequence,
		"submissions", len(req.Submissions),
	)
	return newEntry(Params{
		WorkflowID:     rec.WorkflowID,
		RunID:          rec.RunID,
		GenerateEntity: rec.Context.GenerateEntity,
	}, g, state, cfg)
}

// applySubmissions checks every submission before changing state, so a
// bad request leaves the restored state untouched.
func applySubmissions(state *runtime.State, subs []Submission) error {
	seen := make(map[string]bool, len(subs))
	for _, s := range subs {
		if !state.IsPaused(s.NodeID) || seen[s.NodeID] {
			return fmt.Errorf("%w: %s", ErrNodeNotPaused, s.NodeID)
		}
		seen[s.NodeID] = true
	}
	for _, s := range subs {
		sub := node.Submission{ActionID: s.ActionID, Inputs: s.Inputs}
		if err := state.Pool().Add(node.SubmissionSelector(s.NodeID), sub.Value()); err != nil {
			return fmt.Errorf("submission for %s: %w", s.NodeID, err)
		}
		state.ClearPausedNode(s.NodeID)
	}
	return nil
}
