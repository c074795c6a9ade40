package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// Operator names a comparison used by if-else conditions.
type Operator string

// Comparison operators. Unicode and ASCII spellings of the numeric
// operators are both accepted.
const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "not contains"
	OpStartWith   Operator = "start with"
	OpEndWith     Operator = "end with"
	OpIs          Operator = "is"
	OpIsNot       Operator = "is not"
	OpEmpty       Operator = "empty"
	OpNotEmpty    Operator = "not empty"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not in"
	OpAllOf       Operator = "all of"
	OpEqual       Operator = "="
	OpNotEqual    Operator = "≠"
	OpGreater     Operator = ">"
	OpLess        Operator = "<"
	OpGreaterEq   Operator = "≥"
	OpLessEq      Operator = "≤"
	OpNull        Operator = "null"
	OpNotNull     Operator = "not null"
)

var aliases = map[Operator]Operator{
	"==": OpEqual,
	"!=": OpNotEqual,
	">=": OpGreaterEq,
	"<=": OpLessEq,
}

// Unary reports whether the operator ignores its right-hand value.
func (o Operator) Unary() bool {
	switch o {
	case OpEmpty, OpNotEmpty, OpNull, OpNotNull:
		return true
	}
	return false
}

// Compare compares two values using the specified operator.
// Returns an error for unknown operators.
func Compare(left, right any, op Operator) (bool, error) {
	if canonical, ok := aliases[op]; ok {
		op = canonical
	}
	switch op {
	case OpContains:
		return left != nil && contains(left, right), nil
	case OpNotContains:
		return left == nil || !contains(left, right), nil
	case OpStartWith:
		s, ok := left.(string)
		return ok && strings.HasPrefix(s, text(right)), nil
	case OpEndWith:
		s, ok := left.(string)
		return ok && strings.HasSuffix(s, text(right)), nil
	case OpIs:
		return left != nil && text(left) == text(right), nil
	case OpIsNot:
		return left == nil || text(left) != text(right), nil
	case OpEmpty:
		return isEmpty(left), nil
	case OpNotEmpty:
		return !isEmpty(left), nil
	case OpIn:
		return left != nil && contains(right, left), nil
	case OpNotIn:
		return left == nil || !contains(right, left), nil
	case OpAllOf:
		want, ok := toSlice(right)
		if !ok || left == nil {
			return false, nil
		}
		for _, w := range want {
			if !contains(left, w) {
				return false, nil
			}
		}
		return true, nil
	case OpNull:
		return left == nil, nil
	case OpNotNull:
		return left != nil, nil
	case OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEq, OpLessEq:
		return compareNumeric(left, right, op)
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

func compareNumeric(left, right any, op Operator) (bool, error) {
	if left == nil {
		return false, nil
	}
	if b, ok := left.(bool); ok {
		eq := b == boolOf(right)
		switch op {
		case OpEqual:
			return eq, nil
		case OpNotEqual:
			return !eq, nil
		}
		return false, fmt.Errorf("operator %s does not apply to booleans", op)
	}
	l, ok := number(left)
	if !ok {
		return false, fmt.Errorf("left operand %v is not a number", left)
	}
	r, ok := number(right)
	if !ok {
		return false, fmt.Errorf("right operand %v is not a number", right)
	}
	switch op {
	case OpEqual:
		return l == r, nil
	case OpNotEqual:
		return l != r, nil
	case OpGreater:
		return l > r, nil
	case OpLess:
		return l < r, nil
	case OpGreaterEq:
		return l >= r, nil
	default:
		return l <= r, nil
	}
}

// contains reports whether haystack (a string or a list) contains needle.
func contains(haystack, needle any) bool {
	if s, ok := haystack.(string); ok {
		return strings.Contains(s, text(needle))
	}
	items, ok := toSlice(haystack)
	if !ok {
		return false
	}
	for _, item := range items {
		if equalValues(item, needle) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if an, ok := number(a); ok {
		if bn, ok := number(b); ok {
			return an == bn
		}
	}
	if _, ok := a.(string); ok {
		return a == text(b)
	}
	return reflect.DeepEqual(a, b)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	}
	if items, ok := toSlice(v); ok {
		return len(items) == 0
	}
	return false
}

// toSlice converts any slice value to []any.
func toSlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
