package builtin

import (
	"context"
	"fmt"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/template"
)

var transformRenderer = template.New(template.Brace, template.FailMissing)

// TemplateTransform renders `template` with ${name} placeholders bound by
// `variables` and publishes the text as "output".
type TemplateTransform struct {
	node.Base
	template  string
	variables []binding
}

// NewTemplateTransform builds a template-transform node.
func NewTemplateTransform(cfg node.Config) (node.Node, error) {
	base, err := node.NewBase(cfg.ID, node.KindTemplateTransform, cfg.Data)
	if err != nil {
		return nil, err
	}
	if !cfg.Data.Has("template") {
		return nil, fmt.Errorf("%w: node %s: template is required", node.ErrInvalidConfig, cfg.ID)
	}
	vars, err := parseBindings(cfg.ID, cfg.Data, "variables")
	if err != nil {
		return nil, err
	}
	return &TemplateTransform{
		Base:      base,
		template:  cfg.Data.String("template", ""),
		variables: vars,
	}, nil
}

// Run implements node.Node.
func (n *TemplateTransform) Run(_ context.Context, state *runtime.State) node.Result {
	pool := state.Pool()
	inputs := make(map[string]any, len(n.variables))
	text := make(map[string]string, len(n.variables))
	for _, b := range n.variables {
		seg := pool.Get(b.selector)
		inputs[b.name] = seg.Value()
		text[b.name] = seg.Text()
	}

	out, err := transformRenderer.Render(n.template, func(name string) (string, bool) {
		s, ok := text[name]
		return s, ok
	})
	if err != nil {
		return node.Failed{Err: err, Inputs: inputs}
	}
	return node.Succeeded{Inputs: inputs, Outputs: map[string]any{"output": out}}
}
