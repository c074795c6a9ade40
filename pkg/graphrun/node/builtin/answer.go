package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/template"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

var answerRenderer = template.New(template.Selector, template.DropMissing)

// Answer renders a text template with {{#node.var#}} placeholders. The
// engine appends the rendered text to the run's "answer" output.
type Answer struct {
	node.Base
	template string
}

// NewAnswer builds an answer node.
func NewAnswer(cfg node.Config) (node.Node, error) {
	base, err := node.NewBase(cfg.ID, node.KindAnswer, cfg.Data)
	if err != nil {
		return nil, err
	}
	tmpl := cfg.Data.String("answer", "")
	if tmpl == "" {
		return nil, fmt.Errorf("%w: node %s: answer template is required", node.ErrInvalidConfig, cfg.ID)
	}
	return &Answer{Base: base, template: tmpl}, nil
}

// Run implements node.Node.
func (n *Answer) Run(_ context.Context, state *runtime.State) node.Result {
	pool := state.Pool()
	inputs := make(map[string]any)
	for _, path := range template.Selectors(n.template) {
		inputs[path] = pool.Get(variable.Selector(strings.Split(path, "."))).Value()
	}
	text, err := answerRenderer.Render(n.template, template.PoolLookup(pool))
	if err != nil {
		return node.Failed{Err: err, Inputs: inputs}
	}
	return node.Succeeded{Inputs: inputs, Outputs: map[string]any{"answer": text}}
}
