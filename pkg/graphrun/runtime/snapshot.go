package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// SnapshotVersion is the current state snapshot format version.
// Increment when making breaking changes to the snapshot structure.
const SnapshotVersion = 1

// Sentinel errors for snapshot decoding.
var (
	// ErrSnapshotVersion indicates the snapshot was written by an incompatible version.
	ErrSnapshotVersion = errors.New("state snapshot version mismatch")

	// ErrInvalidSnapshot indicates the snapshot could not be decoded.
	ErrInvalidSnapshot = errors.New("invalid state snapshot")
)

type snapshot struct {
	Version         int                                `json:"version"`
	StartAt         time.Time                          `json:"start_at"`
	TotalTokens     int64                              `json:"total_tokens"`
	NodeRunSteps    int                                `json:"node_run_steps"`
	ExceptionsCount int                                `json:"exceptions_count"`
	Outputs         map[string]variable.EncodedSegment `json:"outputs"`
	PausedNodes     []PausedNode                       `json:"paused_nodes"`
	NodeStates      map[string]NodeState               `json:"node_states"`
	EdgeStates      map[string]EdgeState               `json:"edge_states"`
	VariablePool    variable.PoolSnapshot              `json:"variable_pool"`
}

// Dumps serializes the state. Equal states produce identical bytes.
func (s *State) Dumps(opts ...variable.CodecOption) ([]byte, error) {
	pool, err := s.pool.Snapshot(opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot variable pool: %w", err)
	}

	s.mu.RLock()
	snap := snapshot{
		Version:         SnapshotVersion,
		StartAt:         s.startAt,
		TotalTokens:     s.totalTokens,
		NodeRunSteps:    s.nodeRunSteps,
		ExceptionsCount: s.exceptionsCount,
		Outputs:         make(map[string]variable.EncodedSegment, len(s.outputs)),
		PausedNodes:     append([]PausedNode{}, s.paused...),
		NodeStates:      s.nodeStates,
		EdgeStates:      s.edgeStates,
		VariablePool:    pool,
	}
	for k, seg := range s.outputs {
		enc, err := variable.EncodeSegment(seg, opts...)
		if err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("output %s: %w", k, err)
		}
		snap.Outputs[k] = enc
	}
	data, err := json.Marshal(snap)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// FromSnapshot restores state written by Dumps. Codec options must match
// those used when dumping.
func FromSnapshot(data []byte, opts ...variable.CodecOption) (*State, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, snap.Version, SnapshotVersion)
	}

	pool, err := variable.RestorePool(snap.VariablePool, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore variable pool: %w", err)
	}

	s := New(pool, snap.StartAt)
	s.totalTokens = snap.TotalTokens
	s.nodeRunSteps = snap.NodeRunSteps
	s.exceptionsCount = snap.ExceptionsCount
	s.paused = append(s.paused, snap.PausedNodes...)
	for k, enc := range snap.Outputs {
		seg, err := variable.DecodeSegment(enc, opts...)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", k, err)
		}
		s.outputs[k] = seg
	}
	for id, st := range snap.NodeStates {
		s.nodeStates[id] = st
	}
	for id, st := range snap.EdgeStates {
		s.edgeStates[id] = st
	}
	return s, nil
}
