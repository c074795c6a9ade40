// Package runtime holds the mutable state of a single workflow run: the
// variable pool, counters, graph outputs, the paused-node set and the
// per-node and per-edge bookkeeping needed to continue a run after it
// pauses.
package runtime

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// NodeState is the scheduling state of a node within a run.
type NodeState string

// Node states. The zero value means the node has not been reached.
const (
	NodeUnknown   NodeState = ""
	NodeReady     NodeState = "ready"
	NodeRunning   NodeState = "running"
	NodeSucceeded NodeState = "succeeded"
	NodeFailed    NodeState = "failed"
	NodeException NodeState = "exception"
	NodeSkipped   NodeState = "skipped"
	NodePaused    NodeState = "paused"
)

// Done reports whether the node has finished and will not run again.
func (s NodeState) Done() bool {
	switch s {
	case NodeSucceeded, NodeFailed, NodeException, NodeSkipped:
		return true
	}
	return false
}

// EdgeState records whether an edge was activated.
type EdgeState string

// Edge states.
const (
	EdgeUnknown EdgeState = ""
	EdgeTaken   EdgeState = "taken"
	EdgeSkipped EdgeState = "skipped"
)

// PausedNode is an entry of the paused set.
type PausedNode struct {
	NodeID string `json:"node_id"`
	Reason string `json:"reason,omitempty"`
}

// State is the unit of state that survives a pause/resume boundary.
// It is safe for concurrent use.
type State struct {
	mu              sync.RWMutex
	pool            *variable.Pool
	startAt         time.Time
	totalTokens     int64
	nodeRunSteps    int
	exceptionsCount int
	outputs         map[string]variable.Segment
	paused          []PausedNode
	nodeStates      map[string]NodeState
	edgeStates      map[string]EdgeState
}

// New creates run state around pool. A nil pool is replaced by an empty one.
func New(pool *variable.Pool, startAt time.Time) *State {
	if pool == nil {
		pool = variable.MustNewPool()
	}
	return &State{
		pool:       pool,
		startAt:    startAt.UTC(),
		outputs:    make(map[string]variable.Segment),
		nodeStates: make(map[string]NodeState),
		edgeStates: make(map[string]EdgeState),
	}
}

// Pool returns the variable pool owned by the state.
func (s *State) Pool() *variable.Pool {
	return s.pool
}

// StartAt returns the wall-clock start of the run.
func (s *State) StartAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startAt
}

// Elapsed returns the time since StartAt.
func (s *State) Elapsed() time.Duration {
	return time.Since(s.StartAt())
}

// NodeRunSteps returns the number of node executions started.
func (s *State) NodeRunSteps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeRunSteps
}

// IncrementNodeRunSteps increments the step counter and returns the new value.
func (s *State) IncrementNodeRunSteps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeRunSteps++
	return s.nodeRunSteps
}

// TotalTokens returns the accumulated token usage.
func (s *State) TotalTokens() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalTokens
}

// AddTokens adds n to the token counter. Negative values are ignored.
func (s *State) AddTokens(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalTokens += n
}

// ExceptionsCount returns how many node failures were handled by an
// error strategy instead of failing the run.
func (s *State) ExceptionsCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exceptionsCount
}

// IncrementExceptions records a handled node failure.
func (s *State) IncrementExceptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptionsCount++
}

// SetOutput sets a graph output value.
func (s *State) SetOutput(key string, value any) error {
	seg, err := variable.Build(value)
	if err != nil {
		return fmt.Errorf("output %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[key] = seg
	return nil
}

// AppendOutput appends text to a string graph output.
func (s *State) AppendOutput(key, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[key] = variable.NewString(s.outputs[key].Text() + text)
}

// Output returns a single graph output.
func (s *State) Output(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.outputs[key]
	if !ok {
		return nil, false
	}
	return seg.Value(), true
}

// Outputs returns a copy of the graph outputs.
func (s *State) Outputs() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.outputs))
	for k, seg := range s.outputs {
		out[k] = seg.Value()
	}
	return out
}

// RegisterPausedNode adds id to the paused set. It reports false when the
// node was already paused, in which case the set is unchanged.
func (s *State) RegisterPausedNode(id, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pausedIndex(id) >= 0 {
		return false
	}
	s.paused = append(s.paused, PausedNode{NodeID: id, Reason: reason})
	return true
}

// ClearPausedNode removes id from the paused set and reports whether it
// was present.
func (s *State) ClearPausedNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pausedIndex(id)
	if i < 0 {
		return false
	}
	s.paused = slices.Delete(s.paused, i, i+1)
	return true
}

// IsPaused reports whether id is in the paused set.
func (s *State) IsPaused(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pausedIndex(id) >= 0
}

// PausedNodes returns the paused set in registration order.
func (s *State) PausedNodes() []PausedNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.paused)
}

// PausedNodeIDs returns the ids of the paused set in registration order.
func (s *State) PausedNodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.paused))
	for i, p := range s.paused {
		ids[i] = p.NodeID
	}
	return ids
}

func (s *State) pausedIndex(id string) int {
	return slices.IndexFunc(s.paused, func(p PausedNode) bool { return p.NodeID == id })
}

// NodeState returns the scheduling state of a node.
func (s *State) NodeState(id string) NodeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeStates[id]
}

// SetNodeState records the scheduling state of a node.
func (s *State) SetNodeState(id string, st NodeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == NodeUnknown {
		delete(s.nodeStates, id)
		return
	}
	s.nodeStates[id] = st
}

// NodeStates returns a copy of every recorded node state.
func (s *State) NodeStates() map[string]NodeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.nodeStates)
}

// EdgeState returns the activation state of an edge.
func (s *State) EdgeState(id string) EdgeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeStates[id]
}

// SetEdgeState records the activation state of an edge.
func (s *State) SetEdgeState(id string, st EdgeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == EdgeUnknown {
		delete(s.edgeStates, id)
		return
	}
	s.edgeStates[id] = st
}

// EdgeStates returns a copy of every recorded edge state.
func (s *State) EdgeStates() map[string]EdgeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.edgeStates)
}
