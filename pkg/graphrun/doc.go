/*
Package graphrun runs workflow graphs.

# Overview

A workflow is a directed acyclic graph of nodes. Nodes read their inputs
from a shared variable pool and commit their outputs back to it; edges
carry a source handle so that branching nodes choose which downstream
nodes run. The engine schedules ready nodes on a worker pool, streams
events describing every transition, and stops on a terminal event:
succeeded, failed, paused or aborted.

# Basic Usage

Load a graph document, build the graph and run it:

	cfg, err := graph.LoadConfigFile("workflow.yaml")
	if err != nil {
	    return err
	}
	g, err := graph.Init(cfg, node.NewFactory(builtin.NewRegistry(), node.InitParams{}))
	if err != nil {
	    return err
	}

	pool, err := variable.NewPool(variable.WithUserInputs(map[string]any{"name": "Ada"}))
	if err != nil {
	    return err
	}
	state := runtime.New(pool, time.Now())

	entry, err := graphrun.NewEntry(graphrun.Params{WorkflowID: "greeter"}, g, state)
	if err != nil {
	    return err
	}
	for ev, err := range entry.Run(ctx) {
	    if err != nil {
	        return err
	    }
	    fmt.Println(ev.Type())
	}

# Pausing and Resuming

A human-input node pauses the run until someone submits one of its
actions. With a pause repository configured, every pause is saved:

	store := pausestore.NewMemoryStore()
	entry, err := graphrun.NewEntry(params, g, state, graphrun.WithPauseRepository(store))

Another process can later resume the run from the saved record:

	entry, err := graphrun.Resume(ctx, graphrun.ResumeRequest{
	    RunID:       params.RunID,
	    Submissions: []graphrun.Submission{{NodeID: "review", ActionID: "approve"}},
	}, graphrun.ResumeDeps{Repository: store, BuildGraph: build})

Parallel branches may pause independently. Nodes without a submission stay
paused and the resumed run pauses again once the other branches settle.

# Limits and Abort

Every entry carries an execution limits layer. A run that starts more
nodes than config.EngineSettings.MaxExecutionSteps, or runs longer than
MaxExecutionTime, is aborted. Callers abort a run with Entry.Abort or, from
another process, by sending command.Abort through a
command.DistributedChannel keyed by the run id. Aborts stop dispatching;
nodes already running finish.

# Observability

WithMetrics and WithTracing add a layer recording OpenTelemetry metrics
and spans per run and node. Logging uses log/slog throughout; pass a
logger with WithLogger.
*/
package graphrun
