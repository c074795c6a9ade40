// Package builtin provides constructors for the node kinds that need no
// external services: start, end, answer, if-else, template-transform,
// variable-aggregator and human-input.
//
// Register them on a node.Registry:
//
//	reg := node.NewRegistry()
//	builtin.Register(reg)
//	factory := node.NewFactory(reg, params)
package builtin

import (
	"fmt"

	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// Register adds every built-in constructor to reg.
func Register(reg *node.Registry) {
	reg.Register(node.KindStart, NewStart)
	reg.Register(node.KindEnd, NewEnd)
	reg.Register(node.KindAnswer, NewAnswer)
	reg.Register(node.KindIfElse, NewIfElse)
	reg.Register(node.KindTemplateTransform, NewTemplateTransform)
	reg.Register(node.KindVariableAggregator, NewVariableAggregator)
	reg.Register(node.KindHumanInput, NewHumanInput)
}

// NewRegistry returns a registry holding the built-in constructors.
func NewRegistry() *node.Registry {
	reg := node.NewRegistry()
	Register(reg)
	return reg
}

// binding maps a local variable name to a pool selector.
type binding struct {
	name     string
	selector variable.Selector
}

// parseBindings reads a [{variable, value_selector}] list.
func parseBindings(id string, data config.Config, key string) ([]binding, error) {
	entries := data.List(key)
	out := make([]binding, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		name := e.String("variable", "")
		if name == "" {
			return nil, fmt.Errorf("%w: node %s: %s[%d] has no variable name", node.ErrInvalidConfig, id, key, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: node %s: duplicate variable %q", node.ErrInvalidConfig, id, name)
		}
		seen[name] = true
		sel := variable.Selector(e.StringSlice("value_selector", nil))
		if !sel.Valid() {
			return nil, fmt.Errorf("%w: node %s: variable %q has invalid value_selector", node.ErrInvalidConfig, id, name)
		}
		out = append(out, binding{name: name, selector: sel})
	}
	return out, nil
}

// parseSelectors reads a list of selectors, each a list of strings.
func parseSelectors(id string, data config.Config, key string) ([]variable.Selector, error) {
	raw, ok := data.Any(key, nil).([]any)
	if !ok {
		return nil, fmt.Errorf("%w: node %s: %s must be a list of selectors", node.ErrInvalidConfig, id, key)
	}
	out := make([]variable.Selector, 0, len(raw))
	for i, item := range raw {
		sel := variable.Selector(config.New(map[string]any{"s": item}).StringSlice("s", nil))
		if !sel.Valid() {
			return nil, fmt.Errorf("%w: node %s: %s[%d] is not a selector", node.ErrInvalidConfig, id, key, i)
		}
		out = append(out, sel)
	}
	return out, nil
}
