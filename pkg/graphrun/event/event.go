// Package event defines the records a run emits.
//
// Every record embeds Meta and is immutable once emitted. A run yields a
// GraphRunStarted first and exactly one terminal event last
// (GraphRunSucceeded, GraphRunFailed, GraphRunPaused or GraphRunAborted);
// node events fall in between. Events of one node appear in causal order:
// started, then retries, then one of succeeded, failed, exception or
// pause-requested.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// Event types.
const (
	TypeGraphRunStarted       = "graph_run.started"
	TypeGraphRunSucceeded     = "graph_run.succeeded"
	TypeGraphRunFailed        = "graph_run.failed"
	TypeGraphRunPaused        = "graph_run.paused"
	TypeGraphRunAborted       = "graph_run.aborted"
	TypeNodeRunStarted        = "node_run.started"
	TypeNodeRunSucceeded      = "node_run.succeeded"
	TypeNodeRunFailed         = "node_run.failed"
	TypeNodeRunException      = "node_run.exception"
	TypeNodeRunRetry          = "node_run.retry"
	TypeNodeRunPauseRequested = "node_run.pause_requested"
)

// Event is a record emitted by a run.
type Event interface {
	ID() string
	Type() string
	ExecutionID() string
	Timestamp() time.Time
}

// Meta holds the fields common to every event.
type Meta struct {
	EventID   string    `json:"id"`
	ExecID    string    `json:"execution_id"`
	EmittedAt time.Time `json:"timestamp"`
}

// NewMeta returns metadata with a fresh id and the current time.
func NewMeta(executionID string) Meta {
	return Meta{EventID: uuid.NewString(), ExecID: executionID, EmittedAt: time.Now().UTC()}
}

// ID returns the event id.
func (m Meta) ID() string { return m.EventID }

// ExecutionID returns the id of the run that emitted the event.
func (m Meta) ExecutionID() string { return m.ExecID }

// Timestamp returns when the event was emitted.
func (m Meta) Timestamp() time.Time { return m.EmittedAt }

// StartReason says why a run started.
type StartReason string

// Start reasons.
const (
	ReasonInitial    StartReason = "initial"
	ReasonResumption StartReason = "resumption"
)

// GraphRunStarted is the first event of a run.
type GraphRunStarted struct {
	Meta
	Reason StartReason `json:"reason"`
}

// GraphRunSucceeded ends a run whose reachable nodes all finished.
type GraphRunSucceeded struct {
	Meta
	Outputs map[string]any `json:"outputs"`
}

// GraphRunFailed ends a run stopped by a node error.
type GraphRunFailed struct {
	Meta
	Err             error  `json:"-"`
	Error           string `json:"error"`
	ExceptionsCount int    `json:"exceptions_count"`
}

// GraphRunPaused ends a run that waits for external input.
type GraphRunPaused struct {
	Meta
	PausedNodes []runtime.PausedNode `json:"paused_nodes"`
	Outputs     map[string]any       `json:"outputs"`
}

// GraphRunAborted ends a run stopped by an abort command.
type GraphRunAborted struct {
	Meta
	Reason  string         `json:"reason,omitempty"`
	Outputs map[string]any `json:"outputs"`
}

// NodeInfo identifies one execution of a node.
type NodeInfo struct {
	NodeID          string    `json:"node_id"`
	NodeExecutionID string    `json:"node_execution_id"`
	NodeKind        node.Kind `json:"node_type"`
	NodeTitle       string    `json:"node_title"`
	StartAt         time.Time `json:"start_at"`
}

// NodeRunStarted is emitted when a node is dispatched.
type NodeRunStarted struct {
	Meta
	NodeInfo
}

// NodeRunSucceeded is emitted after a node's outputs are committed.
type NodeRunSucceeded struct {
	Meta
	NodeInfo
	Inputs  map[string]any `json:"inputs,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
	Handle  string         `json:"handle"`
	Usage   node.Usage     `json:"usage"`
}

// NodeRunFailed is emitted when a node fails and no error strategy
// handles it.
type NodeRunFailed struct {
	Meta
	NodeInfo
	Err    error          `json:"-"`
	Error  string         `json:"error"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

// NodeRunException is emitted when a node fails and its error strategy
// lets the run continue.
type NodeRunException struct {
	Meta
	NodeInfo
	Err      error              `json:"-"`
	Error    string             `json:"error"`
	Strategy node.ErrorStrategy `json:"strategy"`
	Outputs  map[string]any     `json:"outputs,omitempty"`
	Handle   string             `json:"handle"`
}

// NodeRunRetry is emitted between attempts of a failing node.
type NodeRunRetry struct {
	Meta
	NodeInfo
	Err     error         `json:"-"`
	Error   string        `json:"error"`
	Attempt int           `json:"attempt"`
	Backoff time.Duration `json:"backoff"`
}

// NodeRunPauseRequested is emitted when a node needs external input.
type NodeRunPauseRequested struct {
	Meta
	NodeInfo
	Reason string `json:"reason,omitempty"`
}

// Type implementations.
func (GraphRunStarted) Type() string       { return TypeGraphRunStarted }
func (GraphRunSucceeded) Type() string     { return TypeGraphRunSucceeded }
func (GraphRunFailed) Type() string        { return TypeGraphRunFailed }
func (GraphRunPaused) Type() string        { return TypeGraphRunPaused }
func (GraphRunAborted) Type() string       { return TypeGraphRunAborted }
func (NodeRunStarted) Type() string        { return TypeNodeRunStarted }
func (NodeRunSucceeded) Type() string      { return TypeNodeRunSucceeded }
func (NodeRunFailed) Type() string         { return TypeNodeRunFailed }
func (NodeRunException) Type() string      { return TypeNodeRunException }
func (NodeRunRetry) Type() string          { return TypeNodeRunRetry }
func (NodeRunPauseRequested) Type() string { return TypeNodeRunPauseRequested }

// IsTerminal reports whether e ends a run.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case GraphRunSucceeded, GraphRunFailed, GraphRunPaused, GraphRunAborted:
		return true
	}
	return false
}

// Node returns the node information of a node event.
func Node(e Event) (NodeInfo, bool) {
	switch ev := e.(type) {
	case NodeRunStarted:
		return ev.NodeInfo, true
	case NodeRunSucceeded:
		return ev.NodeInfo, true
	case NodeRunFailed:
		return ev.NodeInfo, true
	case NodeRunException:
		return ev.NodeInfo, true
	case NodeRunRetry:
		return ev.NodeInfo, true
	case NodeRunPauseRequested:
		return ev.NodeInfo, true
	}
	return NodeInfo{}, false
}

// ErrorMessage returns err's text, or "" for nil.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Marshal encodes e as an Envelope.
func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.Type(), err)
	}
	return json.Marshal(Envelope{Type: e.Type(), Data: data})
}
