package variable

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrInvalidSelector indicates a selector is too short or empty.
var ErrInvalidSelector = errors.New("invalid selector")

// SystemVariables are platform-provided values seeded into the sys namespace.
type SystemVariables struct {
	UserID              string `json:"user_id,omitempty"`
	AppID               string `json:"app_id,omitempty"`
	WorkflowID          string `json:"workflow_id,omitempty"`
	WorkflowExecutionID string `json:"workflow_execution_id,omitempty"`
	Query               string `json:"query,omitempty"`
	ConversationID      string `json:"conversation_id,omitempty"`
	DialogueCount       int64  `json:"dialogue_count,omitempty"`
	InvokeFrom          string `json:"invoke_from,omitempty"`
	Files               []File `json:"files,omitempty"`
}

func (s SystemVariables) segments() map[string]Segment {
	out := make(map[string]Segment)
	str := func(k, v string) {
		if v != "" {
			out[k] = NewString(v)
		}
	}
	str("user_id", s.UserID)
	str("app_id", s.AppID)
	str("workflow_id", s.WorkflowID)
	str("workflow_execution_id", s.WorkflowExecutionID)
	str("query", s.Query)
	str("conversation_id", s.ConversationID)
	str("invoke_from", s.InvokeFrom)
	if s.DialogueCount > 0 {
		out["dialogue_count"] = NewInteger(s.DialogueCount)
	}
	if len(s.Files) > 0 {
		out["files"] = Segment{typ: TypeArrayFile, value: slices.Clone(s.Files)}
	}
	return out
}

// Pool maps selectors to segments. It is safe for concurrent use.
//
// Reads of absent selectors return None. Writes are last-wins.
type Pool struct {
	mu         sync.RWMutex
	vars       map[string]map[string]Segment
	system     SystemVariables
	userInputs map[string]Segment
}

// PoolOption configures a Pool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	system       SystemVariables
	userInputs   map[string]any
	environment  []Variable
	conversation []Variable
}

// WithSystemVariables seeds the sys namespace.
func WithSystemVariables(sys SystemVariables) PoolOption {
	return func(c *poolConfig) {
		c.system = sys
	}
}

// WithUserInputs sets the end-user inputs for the run.
func WithUserInputs(inputs map[string]any) PoolOption {
	return func(c *poolConfig) {
		c.userInputs = inputs
	}
}

// WithEnvironmentVariables seeds the env namespace.
func WithEnvironmentVariables(vars ...Variable) PoolOption {
	return func(c *poolConfig) {
		c.environment = append(c.environment, vars...)
	}
}

// WithConversationVariables seeds the conversation namespace.
func WithConversationVariables(vars ...Variable) PoolOption {
	return func(c *poolConfig) {
		c.conversation = append(c.conversation, vars...)
	}
}

// NewPool creates a pool seeded from the given options.
func NewPool(opts ...PoolOption) (*Pool, error) {
	var cfg poolConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool{
		vars:       make(map[string]map[string]Segment),
		system:     cfg.system,
		userInputs: make(map[string]Segment, len(cfg.userInputs)),
	}
	for k, v := range cfg.userInputs {
		seg, err := Build(v)
		if err != nil {
			return nil, fmt.Errorf("user input %s: %w", k, err)
		}
		p.userInputs[k] = seg
	}
	for k, seg := range cfg.system.segments() {
		p.set(SystemNamespace, k, seg)
	}
	for _, v := range cfg.environment {
		p.set(EnvironmentNamespace, v.Name, v.Segment)
	}
	for _, v := range cfg.conversation {
		p.set(ConversationNamespace, v.Name, v.Segment)
	}
	return p, nil
}

// MustNewPool is like NewPool but panics on error.
func MustNewPool(opts ...PoolOption) *Pool {
	p, err := NewPool(opts...)
	if err != nil {
		panic(fmt.Sprintf("variable: %v", err))
	}
	return p
}

// set writes without locking. Callers hold mu or own p exclusively.
func (p *Pool) set(node, name string, seg Segment) {
	m, ok := p.vars[node]
	if !ok {
		m = make(map[string]Segment)
		p.vars[node] = m
	}
	m[name] = seg
}

// Get returns the segment at sel, or None if absent.
func (p *Pool) Get(sel Selector) Segment {
	seg, _ := p.GetOK(sel)
	return seg
}

// GetOK returns the segment at sel and whether it was present.
func (p *Pool) GetOK(sel Selector) (Segment, bool) {
	if !sel.Valid() {
		return None, false
	}
	p.mu.RLock()
	seg, ok := p.vars[sel[0]][sel[1]]
	p.mu.RUnlock()
	if !ok {
		return None, false
	}
	for _, key := range sel[MinSelectorLength:] {
		seg, ok = descend(seg, key)
		if !ok {
			return None, false
		}
	}
	return seg, true
}

// descend resolves one nested selector element.
func descend(seg Segment, key string) (Segment, bool) {
	switch seg.Type() {
	case TypeObject:
		v, ok := seg.value.(map[string]any)[key]
		if !ok {
			return None, false
		}
		s, err := Build(copyValue(v))
		return s, err == nil
	case TypeFile:
		v, ok := seg.value.(File).Attribute(key)
		if !ok {
			return None, false
		}
		s, err := Build(v)
		return s, err == nil
	}
	return None, false
}

// Add builds a segment from value and stores it at sel[:2].
func (p *Pool) Add(sel Selector, value any) error {
	if !sel.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidSelector, []string(sel))
	}
	seg, err := Build(value)
	if err != nil {
		return fmt.Errorf("add %v: %w", []string(sel), err)
	}
	p.mu.Lock()
	p.set(sel[0], sel[1], seg)
	p.mu.Unlock()
	return nil
}

// Commit writes a node's complete output set as one batch. Every value is
// converted before the write lock is taken; if any conversion fails the
// pool is left unchanged.
func (p *Pool) Commit(nodeID string, outputs map[string]any) error {
	if nodeID == "" {
		return fmt.Errorf("%w: empty node id", ErrInvalidSelector)
	}
	segs := make(map[string]Segment, len(outputs))
	for name, v := range outputs {
		if name == "" {
			return fmt.Errorf("%w: empty output name for node %s", ErrInvalidSelector, nodeID)
		}
		seg, err := Build(v)
		if err != nil {
			return fmt.Errorf("output %s.%s: %w", nodeID, name, err)
		}
		segs[name] = seg
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for name, seg := range segs {
		p.set(nodeID, name, seg)
	}
	return nil
}

// Remove deletes a single variable, or every variable of a node when sel
// has one element.
func (p *Pool) Remove(sel Selector) {
	if len(sel) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(sel) == 1 {
		delete(p.vars, sel[0])
		return
	}
	delete(p.vars[sel[0]], sel[1])
}

// NodeVariables returns a copy of every segment stored under nodeID.
func (p *Pool) NodeVariables(nodeID string) map[string]Segment {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.vars[nodeID])
}

// Flatten returns every value keyed by "node.name".
func (p *Pool) Flatten() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any)
	for node, vars := range p.vars {
		for name, seg := range vars {
			out[node+"."+name] = seg.Value()
		}
	}
	return out
}

// SystemVariables returns the system variables the pool was seeded with.
func (p *Pool) SystemVariables() SystemVariables {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sys := p.system
	sys.Files = slices.Clone(sys.Files)
	return sys
}

// UserInputs returns a copy of the end-user inputs.
func (p *Pool) UserInputs() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.userInputs))
	for k, seg := range p.userInputs {
		out[k] = seg.Value()
	}
	return out
}

// Len returns the number of stored variables.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, vars := range p.vars {
		n += len(vars)
	}
	return n
}
