package expr

import (
	"errors"
	"fmt"
)

// Logical operators joining the conditions of a case.
const (
	LogicalAnd = "and"
	LogicalOr  = "or"
)

// ErrInvalidCondition is returned for conditions that cannot be evaluated.
var ErrInvalidCondition = errors.New("invalid condition")

// Condition compares the value at a variable selector with an expected value.
type Condition struct {
	VariableSelector []string
	Operator         Operator
	Value            any
}

// Case is a named group of conditions.
type Case struct {
	ID              string
	LogicalOperator string
	Conditions      []Condition
}

// LookupFunc returns the value stored at selector and whether it is set.
type LookupFunc func(selector []string) (any, bool)

// ConditionResult records how a single condition evaluated.
type ConditionResult struct {
	Selector []string `json:"selector"`
	Operator Operator `json:"operator"`
	Actual   any      `json:"actual"`
	Expected any      `json:"expected"`
	Result   bool     `json:"result"`
}

// EvaluateConditions evaluates conditions joined by the logical operator.
// "and" stops at the first false condition, "or" at the first true one.
// An empty list is false.
func EvaluateConditions(conds []Condition, logical string, lookup LookupFunc) (bool, []ConditionResult, error) {
	if logical == "" {
		logical = LogicalAnd
	}
	if logical != LogicalAnd && logical != LogicalOr {
		return false, nil, fmt.Errorf("%w: logical operator %q", ErrInvalidCondition, logical)
	}
	if len(conds) == 0 {
		return false, nil, nil
	}

	results := make([]ConditionResult, 0, len(conds))
	for _, c := range conds {
		if len(c.VariableSelector) < 2 {
			return false, results, fmt.Errorf("%w: selector %v", ErrInvalidCondition, c.VariableSelector)
		}
		actual, ok := lookup(c.VariableSelector)
		if !ok {
			actual = nil
		}
		ok, err := Compare(actual, c.Value, c.Operator)
		if err != nil {
			return false, results, fmt.Errorf("%w: %v: %w", ErrInvalidCondition, c.VariableSelector, err)
		}
		results = append(results, ConditionResult{
			Selector: c.VariableSelector,
			Operator: c.Operator,
			Actual:   actual,
			Expected: c.Value,
			Result:   ok,
		})
		if logical == LogicalAnd && !ok {
			return false, results, nil
		}
		if logical == LogicalOr && ok {
			return true, results, nil
		}
	}
	return logical == LogicalAnd, results, nil
}

// FirstMatch returns the id of the first case whose conditions hold.
func FirstMatch(cases []Case, lookup LookupFunc) (string, bool, error) {
	for _, c := range cases {
		ok, _, err := EvaluateConditions(c.Conditions, c.LogicalOperator, lookup)
		if err != nil {
			return "", false, fmt.Errorf("case %s: %w", c.ID, err)
		}
		if ok {
			return c.ID, true, nil
		}
	}
	return "", false, nil
}
