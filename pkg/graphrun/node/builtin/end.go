package builtin

import (
	"context"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// End collects the graph outputs from the pool. The engine merges its
// outputs into the run outputs.
type End struct {
	node.Base
	outputs []binding
}

// NewEnd builds an end node from `outputs: [{variable, value_selector}]`.
func NewEnd(cfg node.Config) (node.Node, error) {
	base, err := node.NewBase(cfg.ID, node.KindEnd, cfg.Data)
	if err != nil {
		return nil, err
	}
	outputs, err := parseBindings(cfg.ID, cfg.Data, "outputs")
	if err != nil {
		return nil, err
	}
	return &End{Base: base, outputs: outputs}, nil
}

// Run implements node.Node.
func (n *End) Run(_ context.Context, state *runtime.State) node.Result {
	pool := state.Pool()
	outputs := make(map[string]any, len(n.outputs))
	for _, b := range n.outputs {
		outputs[b.name] = pool.Get(b.selector).Value()
	}
	return node.Succeeded{Inputs: outputs, Outputs: outputs}
}
