package config

import (
	"encoding/json"
	"math"
	"time"
)

// Config is a read-only view of a decoded object, such as a node's data
// block. Accessors return the supplied default when a key is absent or its
// value has the wrong shape.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = map[string]any{}
	}
	return Config{data: data}
}

// lookup converts the value at key with conv, falling back to def.
func lookup[T any](c Config, key string, def T, conv func(any) (T, bool)) T {
	v, ok := c.data[key]
	if !ok {
		return def
	}
	if out, ok := conv(v); ok {
		return out
	}
	return def
}

// String returns the string at key.
func (c Config) String(key, def string) string { return lookup(c, key, def, asString) }

// Bool returns the boolean at key.
func (c Config) Bool(key string, def bool) bool { return lookup(c, key, def, asBool) }

// Int returns the integer at key. Floats qualify only when integral.
func (c Config) Int(key string, def int) int { return lookup(c, key, def, asInt) }

// Float returns the number at key as a float64.
func (c Config) Float(key string, def float64) float64 { return lookup(c, key, def, asFloat) }

// Duration returns the duration at key. Strings use time.ParseDuration
// syntax; bare numbers count seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	return lookup(c, key, def, asDuration)
}

// StringSlice returns the list of strings at key. A list holding anything
// but strings yields def.
func (c Config) StringSlice(key string, def []string) []string {
	return lookup(c, key, def, asStrings)
}

// Sub returns the object at key, or an empty Config.
func (c Config) Sub(key string) Config {
	m, _ := c.data[key].(map[string]any)
	return New(m)
}

// List returns the objects listed at key, skipping non-object elements. A
// lone object counts as a list of one.
func (c Config) List(key string) []Config {
	var objects []map[string]any
	switch val := c.data[key].(type) {
	case map[string]any:
		objects = []map[string]any{val}
	case []map[string]any:
		objects = val
	case []any:
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				objects = append(objects, m)
			}
		}
	default:
		return nil
	}
	out := make([]Config, len(objects))
	for i, m := range objects {
		out[i] = New(m)
	}
	return out
}

// Any returns the raw value at key.
func (c Config) Any(key string, def any) any {
	return lookup(c, key, def, func(v any) (any, bool) { return v, true })
}

// Has reports whether key is present, even with a nil value.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Raw returns the wrapped map. Callers must not modify it.
func (c Config) Raw() map[string]any {
	return c.data
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int32:
		return int(val), true
	case int64:
		return int(val), true
	case uint64:
		return int(val), val <= math.MaxInt64
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
	}
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

func asDuration(v any) (time.Duration, bool) {
	switch val := v.(type) {
	case time.Duration:
		return val, true
	case string:
		d, err := time.ParseDuration(val)
		return d, err == nil
	}
	secs, ok := asFloat(v)
	return time.Duration(secs * float64(time.Second)), ok
}

func asStrings(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
