// Package node defines the contract between the engine and the units of work
// it schedules.
//
// A node runs against the shared runtime state and reports one of three
// outcomes: Succeeded with its outputs and the handle to follow, Failed
// with an error, or Paused when it needs input from outside the run.
// Nodes never write to the variable pool themselves; the engine commits a
// node's outputs in one batch after it succeeds.
package node

import (
	"context"
	"errors"

	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// Handles shared by all node kinds.
const (
	// SourceHandle is the default output handle.
	SourceHandle = "source"

	// FailBranchHandle is taken when a node with the fail-branch strategy fails.
	FailBranchHandle = "fail-branch"
)

// Sentinel errors for node construction.
var (
	// ErrUnknownKind indicates a type tag that is not a known Kind.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrNoConstructor indicates a known kind with no registered constructor.
	ErrNoConstructor = errors.New("no constructor registered for node kind")

	// ErrInvalidConfig indicates node data that cannot be used.
	ErrInvalidConfig = errors.New("invalid node config")
)

// Node is a unit of work in a graph.
type Node interface {
	ID() string
	Kind() Kind
	Title() string
	ErrorStrategy() ErrorStrategy
	RetryConfig() RetryConfig

	// DefaultValues are committed in place of outputs when the node fails
	// under the default-value strategy.
	DefaultValues() map[string]any

	// Run executes the node. It must not block waiting for external input;
	// it returns Paused instead.
	Run(ctx context.Context, state *runtime.State) Result
}

// Result is the outcome of Node.Run: Succeeded, Failed or Paused.
type Result interface {
	isResult()
}

// Usage reports resources consumed by a node.
type Usage struct {
	TotalTokens int64 `json:"total_tokens"`
}

// Succeeded carries the outputs of a node that completed.
type Succeeded struct {
	Inputs  map[string]any
	Outputs map[string]any

	// Handle selects the outgoing edges to activate. Empty means SourceHandle.
	Handle string
	Usage  Usage
}

// Failed carries the error of a node that could not complete.
type Failed struct {
	Err    error
	Inputs map[string]any
}

// Paused reports that the node needs external input before it can run.
type Paused struct {
	Reason string
}

func (Succeeded) isResult() {}
func (Failed) isResult()    {}
func (Paused) isResult()    {}

// ChosenHandle returns the handle to follow, defaulting to SourceHandle.
func (s Succeeded) ChosenHandle() string {
	if s.Handle == "" {
		return SourceHandle
	}
	return s.Handle
}

// Cause returns the failure, or a generic error when none was set.
func (f Failed) Cause() error {
	if f.Err == nil {
		return errors.New("node failed")
	}
	return f.Err
}
