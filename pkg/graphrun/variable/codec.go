package variable

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SnapshotVersion is the current pool snapshot format version.
const SnapshotVersion = 1

// Sentinel errors for snapshot decoding.
var (
	// ErrSnapshotVersion indicates an unsupported snapshot format version.
	ErrSnapshotVersion = errors.New("unsupported snapshot version")

	// ErrSealedSecret indicates a sealed secret was found but no Sealer was configured.
	ErrSealedSecret = errors.New("sealed secret requires a sealer")
)

// EncodedSegment is the tagged wire form of a Segment.
type EncodedSegment struct {
	Type   Type            `json:"value_type"`
	Value  json.RawMessage `json:"value"`
	Sealed bool            `json:"sealed,omitempty"`
}

// EncodedVariable is a pool entry in a snapshot.
type EncodedVariable struct {
	Selector Selector `json:"selector"`
	EncodedSegment
}

// PoolSnapshot is the self-describing document produced by Pool.Snapshot.
type PoolSnapshot struct {
	Version    int                       `json:"version"`
	System     SystemVariables           `json:"system"`
	UserInputs map[string]EncodedSegment `json:"user_inputs"`
	Variables  []EncodedVariable         `json:"variables"`
}

// CodecOption configures snapshot encoding and decoding.
type CodecOption func(*codec)

type codec struct {
	sealer Sealer
}

// WithSealer encrypts secret values at rest.
func WithSealer(s Sealer) CodecOption {
	return func(c *codec) {
		c.sealer = s
	}
}

func newCodec(opts []CodecOption) codec {
	var c codec
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// EncodeSegment converts a segment into its tagged wire form.
func EncodeSegment(seg Segment, opts ...CodecOption) (EncodedSegment, error) {
	c := newCodec(opts)
	return c.encode(seg)
}

// DecodeSegment rebuilds a segment from its tagged wire form.
func DecodeSegment(enc EncodedSegment, opts ...CodecOption) (Segment, error) {
	c := newCodec(opts)
	return c.decode(enc)
}

func (c codec) encode(seg Segment) (EncodedSegment, error) {
	t := seg.Type()
	if t == TypeSecret && c.sealer != nil {
		sealed, err := c.sealer.Seal([]byte(seg.value.(string)))
		if err != nil {
			return EncodedSegment{}, fmt.Errorf("seal secret: %w", err)
		}
		raw, err := json.Marshal(base64.StdEncoding.EncodeToString(sealed))
		if err != nil {
			return EncodedSegment{}, err
		}
		return EncodedSegment{Type: t, Value: raw, Sealed: true}, nil
	}

	raw, err := json.Marshal(wireValue(seg.value))
	if err != nil {
		return EncodedSegment{}, fmt.Errorf("encode %s segment: %w", t, err)
	}
	return EncodedSegment{Type: t, Value: raw}, nil
}

// wireValue rewrites floats as numbers that always carry a fraction or an
// exponent, so a decoded 2.0 stays a float instead of becoming an integer.
func wireValue(v any) any {
	switch val := v.(type) {
	case float64:
		return floatNumber(val)
	case []float64:
		out := make([]json.Number, len(val))
		for i, f := range val {
			out[i] = floatNumber(f)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = wireValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = wireValue(item)
		}
		return out
	}
	return v
}

func floatNumber(f float64) json.Number {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

func (c codec) decode(enc EncodedSegment) (Segment, error) {
	if !enc.Type.Valid() {
		return None, fmt.Errorf("%w: %q", ErrUnknownType, enc.Type)
	}
	if enc.Type == TypeNone {
		return None, nil
	}

	if enc.Sealed {
		if enc.Type != TypeSecret {
			return None, fmt.Errorf("sealed value for %s segment", enc.Type)
		}
		if c.sealer == nil {
			return None, ErrSealedSecret
		}
		var b64 string
		if err := json.Unmarshal(enc.Value, &b64); err != nil {
			return None, fmt.Errorf("decode sealed secret: %w", err)
		}
		sealed, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return None, fmt.Errorf("decode sealed secret: %w", err)
		}
		plain, err := c.sealer.Open(sealed)
		if err != nil {
			return None, fmt.Errorf("open secret: %w", err)
		}
		return NewSecret(string(plain)), nil
	}

	switch enc.Type {
	case TypeFile:
		var f File
		if err := json.Unmarshal(enc.Value, &f); err != nil {
			return None, fmt.Errorf("decode file: %w", err)
		}
		return NewFile(f), nil
	case TypeArrayFile:
		var files []File
		if err := json.Unmarshal(enc.Value, &files); err != nil {
			return None, fmt.Errorf("decode files: %w", err)
		}
		return NewSegmentOfType(TypeArrayFile, files)
	}

	dec := json.NewDecoder(bytes.NewReader(enc.Value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return None, fmt.Errorf("decode %s segment: %w", enc.Type, err)
	}
	return NewSegmentOfType(enc.Type, v)
}

// Snapshot captures the pool as a versioned document. Variables are
// ordered by selector so equal pools produce equal snapshots.
func (p *Pool) Snapshot(opts ...CodecOption) (PoolSnapshot, error) {
	c := newCodec(opts)

	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := PoolSnapshot{
		Version:    SnapshotVersion,
		System:     p.system,
		UserInputs: make(map[string]EncodedSegment, len(p.userInputs)),
		Variables:  make([]EncodedVariable, 0),
	}
	for k, seg := range p.userInputs {
		enc, err := c.encode(seg)
		if err != nil {
			return PoolSnapshot{}, fmt.Errorf("user input %s: %w", k, err)
		}
		snap.UserInputs[k] = enc
	}
	for node, vars := range p.vars {
		for name, seg := range vars {
			enc, err := c.encode(seg)
			if err != nil {
				return PoolSnapshot{}, fmt.Errorf("variable %s.%s: %w", node, name, err)
			}
			snap.Variables = append(snap.Variables, EncodedVariable{
				Selector:       Selector{node, name},
				EncodedSegment: enc,
			})
		}
	}
	sort.Slice(snap.Variables, func(i, j int) bool {
		a, b := snap.Variables[i].Selector, snap.Variables[j].Selector
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[1] < b[1]
	})
	return snap, nil
}

// RestorePool rebuilds a pool from a snapshot.
func RestorePool(snap PoolSnapshot, opts ...CodecOption) (*Pool, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, snap.Version)
	}
	c := newCodec(opts)

	p := &Pool{
		vars:       make(map[string]map[string]Segment),
		system:     snap.System,
		userInputs: make(map[string]Segment, len(snap.UserInputs)),
	}
	for k, enc := range snap.UserInputs {
		seg, err := c.decode(enc)
		if err != nil {
			return nil, fmt.Errorf("user input %s: %w", k, err)
		}
		p.userInputs[k] = seg
	}
	for _, v := range snap.Variables {
		if !v.Selector.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelector, []string(v.Selector))
		}
		seg, err := c.decode(v.EncodedSegment)
		if err != nil {
			return nil, fmt.Errorf("variable %s.%s: %w", v.Selector[0], v.Selector[1], err)
		}
		p.set(v.Selector[0], v.Selector[1], seg)
	}
	return p, nil
}

// MarshalJSON encodes the pool snapshot without sealing.
func (p *Pool) MarshalJSON() ([]byte, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}
