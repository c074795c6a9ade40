package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// truthy reports whether v counts as true when used as a bare condition.
// nil, false, "", zero numbers and empty collections are false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case map[string]any:
		return len(val) > 0
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	if items, ok := toSlice(v); ok {
		return len(items) > 0
	}
	return true
}

// boolOf interprets v as a boolean, parsing strings such as "true" or "0".
func boolOf(v any) bool {
	if s, ok := v.(string); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
	}
	return truthy(v)
}

// number converts numeric values and numeric strings to float64.
func number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	}
	return fmt.Sprint(v)
}

// looseEqual compares numerically when both sides are numbers and as text
// otherwise.
func looseEqual(a, b any) bool {
	if an, ok := number(a); ok {
		if bn, ok := number(b); ok {
			return an == bn
		}
	}
	return text(a) == text(b)
}
