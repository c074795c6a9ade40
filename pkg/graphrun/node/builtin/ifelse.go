package builtin

import (
	"context"
	"fmt"

	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	"github.com/randalmurphal/graphrun/pkg/graphrun/expr"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// Handles of an if-else node when no case ids are configured.
const (
	TrueHandle  = "true"
	FalseHandle = "false"
)

// IfElse routes to the first case whose conditions hold, or to
// FalseHandle when none does.
//
// Cases come from `cases`, or from a top-level `conditions` list that
// forms a single case with id "true". Alternatively `expression` holds a
// boolean expression over "node.var" names.
type IfElse struct {
	node.Base
	cases      []expr.Case
	expression *expr.Expr
}

// NewIfElse builds an if-else node.
func NewIfElse(cfg node.Config) (node.Node, error) {
	base, err := node.NewBase(cfg.ID, node.KindIfElse, cfg.Data)
	if err != nil {
		return nil, err
	}
	n := &IfElse{Base: base}
	if src := cfg.Data.String("expression", ""); src != "" {
		if n.expression, err = expr.Compile(src); err != nil {
			return nil, fmt.Errorf("%w: node %s: expression: %w", node.ErrInvalidConfig, cfg.ID, err)
		}
	}

	switch {
	case cfg.Data.Has("cases"):
		for i, c := range cfg.Data.List("cases") {
			ec, err := parseCase(c.String("case_id", ""), c)
			if err != nil {
				return nil, fmt.Errorf("%w: node %s: cases[%d]: %w", node.ErrInvalidConfig, cfg.ID, i, err)
			}
			n.cases = append(n.cases, ec)
		}
	case cfg.Data.Has("conditions"):
		ec, err := parseCase(TrueHandle, cfg.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: %w", node.ErrInvalidConfig, cfg.ID, err)
		}
		n.cases = []expr.Case{ec}
	}

	if len(n.cases) == 0 && n.expression == nil {
		return nil, fmt.Errorf("%w: node %s: cases, conditions or expression required", node.ErrInvalidConfig, cfg.ID)
	}
	return n, nil
}

func parseCase(id string, c config.Config) (expr.Case, error) {
	if id == "" {
		return expr.Case{}, fmt.Errorf("case_id is required")
	}
	if id == node.FailBranchHandle {
		return expr.Case{}, fmt.Errorf("case_id %q is reserved", id)
	}
	ec := expr.Case{ID: id, LogicalOperator: c.String("logical_operator", expr.LogicalAnd)}
	for j, cond := range c.List("conditions") {
		sel := cond.StringSlice("variable_selector", nil)
		if !variable.Selector(sel).Valid() {
			return expr.Case{}, fmt.Errorf("conditions[%d]: invalid variable_selector", j)
		}
		op := expr.Operator(cond.String("comparison_operator", ""))
		if op == "" {
			return expr.Case{}, fmt.Errorf("conditions[%d]: comparison_operator is required", j)
		}
		ec.Conditions = append(ec.Conditions, expr.Condition{
			VariableSelector: sel,
			Operator:         op,
			Value:            cond.Any("value", nil),
		})
	}
	return ec, nil
}

// Run implements node.Node.
func (n *IfElse) Run(_ context.Context, state *runtime.State) node.Result {
	pool := state.Pool()

	if len(n.cases) == 0 {
		inputs := map[string]any{"expression": n.expression.String()}
		ok, err := n.expression.Eval(pool.Flatten())
		if err != nil {
			return node.Failed{Err: err, Inputs: inputs}
		}
		handle := FalseHandle
		if ok {
			handle = TrueHandle
		}
		return node.Succeeded{
			Inputs:  inputs,
			Outputs: map[string]any{"result": ok, "selected_case_id": handle},
			Handle:  handle,
		}
	}

	lookup := func(sel []string) (any, bool) {
		seg, ok := pool.GetOK(variable.Selector(sel))
		if !ok {
			return nil, false
		}
		return seg.Value(), true
	}
	id, ok, err := expr.FirstMatch(n.cases, lookup)
	if err != nil {
		return node.Failed{Err: err}
	}
	handle := FalseHandle
	if ok {
		handle = id
	}
	return node.Succeeded{
		Outputs: map[string]any{"result": ok, "selected_case_id": handle},
		Handle:  handle,
	}
}
