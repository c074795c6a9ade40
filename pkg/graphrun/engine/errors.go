package engine

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
)

var (
	// ErrAlreadyRunning is yielded when Run is called a second time.
	ErrAlreadyRunning = errors.New("engine already running")

	// ErrUnknownReadyNode means a node id reached the ready queue that the
	// graph lacks. Restoring a paused run against an edited graph does this.
	ErrUnknownReadyNode = errors.New("ready node not in graph")
)

// NodeError is the failure of a node whose error strategy fails the run.
// It is carried by GraphRunFailed.
type NodeError struct {
	NodeID   string
	Kind     node.Kind
	Attempts int
	Err      error
}

func (e *NodeError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("node %s (%s) failed after %d attempts: %v", e.NodeID, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("node %s (%s) failed: %v", e.NodeID, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// PanicError is a panic recovered from Node.Run. Stack is the goroutine
// stack at the panic.
type PanicError struct {
	NodeID string
	Value  any
	Stack  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// ErrorType names the error in fail-branch outputs.
func (e *PanicError) ErrorType() string { return "PanicError" }

// SchedulerError is a broken scheduling invariant, as opposed to a node
// failure. It is the only error Run yields besides ErrAlreadyRunning.
type SchedulerError struct {
	NodeID string
	Err    error
}

func (e *SchedulerError) Error() string {
	return "scheduler: node " + e.NodeID + ": " + e.Err.Error()
}

func (e *SchedulerError) Unwrap() error { return e.Err }
