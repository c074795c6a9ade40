package node

import (
	"fmt"

	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// SubmissionVariable is the pool variable under a human-input node's id
// that holds the submitted form.
const SubmissionVariable = "__submission"

// SubmissionSelector is where the resume path stores the external answer
// for a paused node.
func SubmissionSelector(nodeID string) variable.Selector {
	return variable.Selector{nodeID, SubmissionVariable}
}

// Submission is the external answer to a paused node.
type Submission struct {
	ActionID string
	Inputs   map[string]any
}

// Value returns the object stored in the pool.
func (s Submission) Value() map[string]any {
	inputs := s.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	return map[string]any{"action_id": s.ActionID, "inputs": inputs}
}

// LookupSubmission reads the submission for nodeID from the pool.
func LookupSubmission(pool *variable.Pool, nodeID string) (Submission, bool, error) {
	seg, ok := pool.GetOK(SubmissionSelector(nodeID))
	if !ok {
		return Submission{}, false, nil
	}
	obj, ok := seg.Value().(map[string]any)
	if !ok {
		return Submission{}, false, fmt.Errorf("%w: submission for %s is %s, want object", ErrInvalidConfig, nodeID, seg.Type())
	}
	cfg := config.New(obj)
	return Submission{
		ActionID: cfg.String("action_id", ""),
		Inputs:   cfg.Sub("inputs").Raw(),
	}, true, nil
}
