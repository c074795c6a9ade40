package graphrun

import "errors"

// Sentinel errors for building an entry.
var (
	// ErrNilGraph indicates NewEntry was called without a graph.
	ErrNilGraph = errors.New("graph cannot be nil")

	// ErrNilState indicates NewEntry was called without a runtime state.
	ErrNilState = errors.New("runtime state cannot be nil")
)

// Sentinel errors for resume.
var (
	// ErrRunIDRequired indicates a resume request without a run id.
	ErrRunIDRequired = errors.New("run ID required for resume")

	// ErrRepositoryRequired indicates resume was called without a pause
	// repository.
	ErrRepositoryRequired = errors.New("pause repository required for resume")

	// ErrGraphBuilderRequired indicates resume cannot rebuild the graph.
	ErrGraphBuilderRequired = errors.New("graph builder required for resume")

	// ErrNodeNotPaused indicates a submission targets a node that is not
	// waiting for input.
	ErrNodeNotPaused = errors.New("node is not paused")
)
