package builtin

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/template"
)

// ErrUnknownAction is returned when a submission names an action the node
// does not declare.
var ErrUnknownAction = errors.New("unknown human-input action")

// Action is a button offered to the person answering the form.
type Action struct {
	ID    string
	Title string
}

// HumanInput pauses the run until a submission is stored for it, then
// routes along the handle named by the chosen action.
type HumanInput struct {
	node.Base
	actions     []Action
	formContent string
	reasons     *template.Renderer
}

const defaultPauseReason = "waiting for human input"

// NewHumanInput builds a human-input node from `actions: [{id, title}]`
// and an optional `form_content`.
func NewHumanInput(cfg node.Config) (node.Node, error) {
	base, err := node.NewBase(cfg.ID, node.KindHumanInput, cfg.Data)
	if err != nil {
		return nil, err
	}
	n := &HumanInput{
		Base:        base,
		formContent: cfg.Data.String("form_content", ""),
		reasons:     answerRenderer,
	}
	seen := make(map[string]bool)
	for i, a := range cfg.Data.List("actions") {
		id := a.String("id", "")
		if id == "" || seen[id] {
			return nil, fmt.Errorf("%w: node %s: actions[%d] needs a unique id", node.ErrInvalidConfig, cfg.ID, i)
		}
		if id == node.FailBranchHandle {
			return nil, fmt.Errorf("%w: node %s: action id %q is reserved", node.ErrInvalidConfig, cfg.ID, id)
		}
		seen[id] = true
		n.actions = append(n.actions, Action{ID: id, Title: a.String("title", id)})
	}
	if len(n.actions) == 0 {
		return nil, fmt.Errorf("%w: node %s: at least one action is required", node.ErrInvalidConfig, cfg.ID)
	}
	return n, nil
}

// pauseReason renders the form content, falling back to the default reason
// when there is none or it cannot be rendered.
func (n *HumanInput) pauseReason(state *runtime.State) string {
	if n.formContent == "" {
		return defaultPauseReason
	}
	reason, err := n.reasons.Render(n.formContent, template.PoolLookup(state.Pool()))
	if err != nil || reason == "" {
		return defaultPauseReason
	}
	return reason
}

// Actions returns the declared actions.
func (n *HumanInput) Actions() []Action {
	return append([]Action(nil), n.actions...)
}

// Run implements node.Node.
func (n *HumanInput) Run(_ context.Context, state *runtime.State) node.Result {
	sub, ok, err := node.LookupSubmission(state.Pool(), n.ID())
	if err != nil {
		return node.Failed{Err: err}
	}
	if !ok {
		return node.Paused{Reason: n.pauseReason(state)}
	}

	inputs := map[string]any{"action_id": sub.ActionID}
	for _, a := range n.actions {
		if a.ID != sub.ActionID {
			continue
		}
		outputs := maps.Clone(sub.Inputs)
		if outputs == nil {
			outputs = make(map[string]any, 2)
		}
		outputs["action_id"] = a.ID
		outputs["action_text"] = a.Title
		return node.Succeeded{Inputs: inputs, Outputs: outputs, Handle: a.ID}
	}
	return node.Failed{Err: fmt.Errorf("%w: %q", ErrUnknownAction, sub.ActionID), Inputs: inputs}
}
