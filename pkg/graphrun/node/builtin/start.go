package builtin

import (
	"context"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// Start publishes the run's user inputs and system variables as its
// outputs. System variables are prefixed with "sys.".
type Start struct {
	node.Base
}

// NewStart builds a start node.
func NewStart(cfg node.Config) (node.Node, error) {
	base, err := node.NewBase(cfg.ID, node.KindStart, cfg.Data)
	if err != nil {
		return nil, err
	}
	return &Start{Base: base}, nil
}

// Run implements node.Node.
func (n *Start) Run(_ context.Context, state *runtime.State) node.Result {
	pool := state.Pool()
	outputs := pool.UserInputs()
	for name, seg := range pool.NodeVariables(variable.SystemNamespace) {
		outputs[variable.SystemNamespace+"."+name] = seg.Value()
	}
	return node.Succeeded{Inputs: outputs, Outputs: outputs}
}
