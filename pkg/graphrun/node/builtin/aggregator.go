package builtin

import (
	"context"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// VariableAggregator publishes the first set value among `variables` as
// "output". It joins branches that produce the same logical value.
type VariableAggregator struct {
	node.Base
	variables []variable.Selector
}

// NewVariableAggregator builds a variable-aggregator node.
func NewVariableAggregator(cfg node.Config) (node.Node, error) {
	base, err := node.NewBase(cfg.ID, node.KindVariableAggregator, cfg.Data)
	if err != nil {
		return nil, err
	}
	sels, err := parseSelectors(cfg.ID, cfg.Data, "variables")
	if err != nil {
		return nil, err
	}
	return &VariableAggregator{Base: base, variables: sels}, nil
}

// Run implements node.Node.
func (n *VariableAggregator) Run(_ context.Context, state *runtime.State) node.Result {
	pool := state.Pool()
	for _, sel := range n.variables {
		seg := pool.Get(sel)
		if seg.IsNone() {
			continue
		}
		return node.Succeeded{
			Inputs:  map[string]any{"selector": []string(sel)},
			Outputs: map[string]any{"output": seg.Value()},
		}
	}
	return node.Succeeded{Outputs: map[string]any{"output": nil}}
}
