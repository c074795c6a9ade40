package variable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Type identifies the kind of value held by a Segment.
type Type string

// Segment types.
const (
	TypeNone         Type = "none"
	TypeString       Type = "string"
	TypeInteger      Type = "integer"
	TypeFloat        Type = "float"
	TypeBoolean      Type = "boolean"
	TypeObject       Type = "object"
	TypeSecret       Type = "secret"
	TypeFile         Type = "file"
	TypeArrayAny     Type = "array[any]"
	TypeArrayString  Type = "array[string]"
	TypeArrayInteger Type = "array[integer]"
	TypeArrayFloat   Type = "array[float]"
	TypeArrayObject  Type = "array[object]"
	TypeArrayFile    Type = "array[file]"
)

// Valid reports whether t is a known segment type.
func (t Type) Valid() bool {
	switch t {
	case TypeNone, TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeObject,
		TypeSecret, TypeFile, TypeArrayAny, TypeArrayString, TypeArrayInteger,
		TypeArrayFloat, TypeArrayObject, TypeArrayFile:
		return true
	}
	return false
}

// IsArray reports whether t is one of the array types.
func (t Type) IsArray() bool {
	return strings.HasPrefix(string(t), "array[")
}

// Sentinel errors for segment construction.
var (
	// ErrTypeMismatch indicates a value does not conform to the requested type.
	ErrTypeMismatch = errors.New("value does not match segment type")

	// ErrUnsupportedValue indicates a Go value has no segment representation.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrUnknownType indicates a segment type tag is not recognised.
	ErrUnknownType = errors.New("unknown segment type")
)

// Segment is an immutable typed value.
//
// The zero Segment is the none segment.
type Segment struct {
	typ   Type
	value any
}

// None is the segment returned for absent values.
var None = Segment{typ: TypeNone}

// Type returns the segment type. The zero Segment reports TypeNone.
func (s Segment) Type() Type {
	if s.typ == "" {
		return TypeNone
	}
	return s.typ
}

// IsNone reports whether s holds no value.
func (s Segment) IsNone() bool {
	return s.Type() == TypeNone
}

// Value returns the Go value held by s. Objects and arrays are returned
// as copies so callers cannot mutate the segment.
func (s Segment) Value() any {
	switch s.Type() {
	case TypeObject:
		return copyValue(s.value)
	case TypeArrayAny, TypeArrayObject:
		return copyValue(s.value)
	case TypeArrayString:
		return append([]string(nil), s.value.([]string)...)
	case TypeArrayInteger:
		return append([]int64(nil), s.value.([]int64)...)
	case TypeArrayFloat:
		return append([]float64(nil), s.value.([]float64)...)
	case TypeArrayFile:
		return append([]File(nil), s.value.([]File)...)
	}
	return s.value
}

// Text returns the plain text form of the value.
func (s Segment) Text() string {
	switch s.Type() {
	case TypeNone:
		return ""
	case TypeString, TypeSecret:
		return s.value.(string)
	case TypeInteger:
		return strconv.FormatInt(s.value.(int64), 10)
	case TypeFloat:
		return strconv.FormatFloat(s.value.(float64), 'f', -1, 64)
	case TypeBoolean:
		return strconv.FormatBool(s.value.(bool))
	case TypeFile:
		return s.value.(File).Text()
	}
	return marshalText(s.value, "")
}

// Log returns the form suitable for logs. Secrets are obfuscated.
func (s Segment) Log() string {
	if s.Type() == TypeSecret {
		return Obfuscate(s.value.(string))
	}
	return s.Text()
}

// Markdown returns a markdown rendering of the value.
func (s Segment) Markdown() string {
	switch s.Type() {
	case TypeSecret:
		return Obfuscate(s.value.(string))
	case TypeObject, TypeArrayObject, TypeArrayAny:
		return "```json\n" + marshalText(s.value, "  ") + "\n```"
	case TypeArrayString, TypeArrayInteger, TypeArrayFloat:
		items := reflect.ValueOf(s.value)
		lines := make([]string, 0, items.Len())
		for i := 0; i < items.Len(); i++ {
			lines = append(lines, fmt.Sprintf("- %v", items.Index(i).Interface()))
		}
		return strings.Join(lines, "\n")
	case TypeFile:
		return s.value.(File).Markdown()
	case TypeArrayFile:
		files := s.value.([]File)
		lines := make([]string, 0, len(files))
		for _, f := range files {
			lines = append(lines, f.Markdown())
		}
		return strings.Join(lines, "\n")
	}
	return s.Text()
}

// String implements fmt.Stringer using the log form.
func (s Segment) String() string {
	return s.Log()
}

// Obfuscate masks a secret for display. Short secrets are fully masked.
func Obfuscate(secret string) string {
	if secret == "" {
		return ""
	}
	runes := []rune(secret)
	if len(runes) <= 8 {
		return strings.Repeat("*", 20)
	}
	return string(runes[:6]) + strings.Repeat("*", 12) + string(runes[len(runes)-2:])
}

// NewString returns a string segment.
func NewString(v string) Segment { return Segment{typ: TypeString, value: v} }

// NewInteger returns an integer segment.
func NewInteger(v int64) Segment { return Segment{typ: TypeInteger, value: v} }

// NewFloat returns a float segment.
func NewFloat(v float64) Segment { return Segment{typ: TypeFloat, value: v} }

// NewBoolean returns a boolean segment.
func NewBoolean(v bool) Segment { return Segment{typ: TypeBoolean, value: v} }

// NewSecret returns a secret segment.
func NewSecret(v string) Segment { return Segment{typ: TypeSecret, value: v} }

// NewFile returns a file segment.
func NewFile(f File) Segment { return Segment{typ: TypeFile, value: f} }

// Build infers a segment type from a Go value.
func Build(v any) (Segment, error) {
	switch val := v.(type) {
	case nil:
		return None, nil
	case Segment:
		return val, nil
	case string:
		return NewString(val), nil
	case bool:
		return NewBoolean(val), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return NewInteger(reflect.ValueOf(val).Convert(reflect.TypeOf(int64(0))).Int()), nil
	case uint64:
		if val > math.MaxInt64 {
			return None, fmt.Errorf("%w: integer overflow %d", ErrUnsupportedValue, val)
		}
		return NewInteger(int64(val)), nil
	case float32:
		return NewFloat(float64(val)), nil
	case float64:
		return NewFloat(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return NewInteger(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return None, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return NewFloat(f), nil
	case File:
		return NewFile(val), nil
	case *File:
		if val == nil {
			return None, nil
		}
		return NewFile(*val), nil
	case map[string]any:
		return NewSegmentOfType(TypeObject, val)
	case []string:
		return NewSegmentOfType(TypeArrayString, val)
	case []int:
		return NewSegmentOfType(TypeArrayInteger, val)
	case []int64:
		return NewSegmentOfType(TypeArrayInteger, val)
	case []float64:
		return NewSegmentOfType(TypeArrayFloat, val)
	case []map[string]any:
		return NewSegmentOfType(TypeArrayObject, val)
	case []File:
		return NewSegmentOfType(TypeArrayFile, val)
	case []any:
		return NewSegmentOfType(inferArrayType(val), val)
	}
	return None, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// MustBuild is like Build but panics on error.
func MustBuild(v any) Segment {
	s, err := Build(v)
	if err != nil {
		panic(fmt.Sprintf("variable: %v", err))
	}
	return s
}

// NewSegmentOfType converts v to a segment of type t, returning
// ErrTypeMismatch if v does not conform.
func NewSegmentOfType(t Type, v any) (Segment, error) {
	if !t.Valid() {
		return None, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if v == nil {
		if t == TypeNone {
			return None, nil
		}
		return None, fmt.Errorf("%w: nil for %s", ErrTypeMismatch, t)
	}
	if s, ok := v.(Segment); ok {
		if s.Type() != t {
			return None, fmt.Errorf("%w: %s segment for %s", ErrTypeMismatch, s.Type(), t)
		}
		return s, nil
	}

	mismatch := func() (Segment, error) {
		return None, fmt.Errorf("%w: %T for %s", ErrTypeMismatch, v, t)
	}

	switch t {
	case TypeNone:
		return mismatch()
	case TypeString, TypeSecret:
		s, ok := v.(string)
		if !ok {
			return mismatch()
		}
		return Segment{typ: t, value: s}, nil
	case TypeInteger:
		i, ok := toInt64(v)
		if !ok {
			return mismatch()
		}
		return NewInteger(i), nil
	case TypeFloat:
		f, ok := toFloat64(v)
		if !ok {
			return mismatch()
		}
		return NewFloat(f), nil
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		return NewBoolean(b), nil
	case TypeFile:
		switch f := v.(type) {
		case File:
			return NewFile(f), nil
		case *File:
			return NewFile(*f), nil
		case map[string]any:
			file, err := fileFromMap(f)
			if err != nil {
				return None, err
			}
			return NewFile(file), nil
		}
		return mismatch()
	case TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return mismatch()
		}
		norm, err := normalize(m)
		if err != nil {
			return None, err
		}
		return Segment{typ: TypeObject, value: norm}, nil
	}

	items, ok := toSlice(v)
	if !ok {
		return mismatch()
	}
	switch t {
	case TypeArrayString:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return mismatch()
			}
			out = append(out, s)
		}
		return Segment{typ: t, value: out}, nil
	case TypeArrayInteger:
		out := make([]int64, 0, len(items))
		for _, item := range items {
			i, ok := toInt64(item)
			if !ok {
				return mismatch()
			}
			out = append(out, i)
		}
		return Segment{typ: t, value: out}, nil
	case TypeArrayFloat:
		out := make([]float64, 0, len(items))
		for _, item := range items {
			f, ok := toFloat64(item)
			if !ok {
				return mismatch()
			}
			out = append(out, f)
		}
		return Segment{typ: t, value: out}, nil
	case TypeArrayObject:
		out := make([]any, 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return mismatch()
			}
			norm, err := normalize(m)
			if err != nil {
				return None, err
			}
			out = append(out, norm)
		}
		return Segment{typ: t, value: out}, nil
	case TypeArrayFile:
		out := make([]File, 0, len(items))
		for _, item := range items {
			switch f := item.(type) {
			case File:
				out = append(out, f)
			case map[string]any:
				file, err := fileFromMap(f)
				if err != nil {
					return None, err
				}
				out = append(out, file)
			default:
				return mismatch()
			}
		}
		return Segment{typ: t, value: out}, nil
	case TypeArrayAny:
		norm, err := normalize(items)
		if err != nil {
			return None, err
		}
		return Segment{typ: t, value: norm}, nil
	}
	return mismatch()
}

// inferArrayType picks the narrowest array type for a heterogeneous slice.
func inferArrayType(items []any) Type {
	if len(items) == 0 {
		return TypeArrayAny
	}
	var t Type
	for _, item := range items {
		var it Type
		switch v := item.(type) {
		case string:
			it = TypeArrayString
		case int, int32, int64:
			it = TypeArrayInteger
		case json.Number:
			if _, err := v.Int64(); err == nil {
				it = TypeArrayInteger
			} else {
				it = TypeArrayFloat
			}
		case float64:
			it = TypeArrayFloat
		case map[string]any:
			it = TypeArrayObject
		case File:
			it = TypeArrayFile
		default:
			return TypeArrayAny
		}
		if t == "" {
			t = it
		} else if t != it {
			return TypeArrayAny
		}
	}
	return t
}

// normalize converts nested JSON-like values to canonical Go types:
// map[string]any, []any, string, int64, float64, bool and nil.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int64, float64:
		return val, nil
	case int, int8, int16, int32, uint, uint8, uint16, uint32:
		return reflect.ValueOf(val).Convert(reflect.TypeOf(int64(0))).Int(), nil
	case float32:
		return float64(val), nil
	case json.Number:
		if !strings.ContainsAny(string(val), ".eE") {
			if i, err := val.Int64(); err == nil {
				return i, nil
			}
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return f, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(val))
		for i, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out = append(out, n)
		}
		return out, nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	case File:
		return val.toMap(), nil
	}
	if items, ok := toSlice(v); ok {
		return normalize(items)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// copyValue deep-copies a normalized value.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	}
	return v
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint32:
		return int64(val), true
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return int64(val), true
		}
	case json.Number:
		i, err := val.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func marshalText(v any, indent string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}
