package node

import (
	"fmt"
	"slices"

	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
	"github.com/randalmurphal/graphrun/pkg/graphrun/registry"
)

// InitParams is the run context every node is constructed with.
type InitParams struct {
	TenantID   string
	AppID      string
	WorkflowID string
	UserID     string
	InvokeFrom string
	CallDepth  int
}

// Config is the input of a Constructor.
type Config struct {
	ID     string
	Data   config.Config
	Params InitParams
}

// Constructor builds a node of one kind.
type Constructor func(cfg Config) (Node, error)

// Registry maps node kinds to constructors. It is safe for concurrent use.
type Registry struct {
	ctors *registry.Map[Kind, Constructor]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: registry.New[Kind, Constructor]()}
}

// Register sets the constructor for kind, replacing any previous one.
// It panics on an unknown kind or a nil constructor.
func (r *Registry) Register(kind Kind, ctor Constructor) {
	if !kind.Valid() {
		panic(fmt.Sprintf("node: register unknown kind %q", kind))
	}
	if ctor == nil {
		panic(fmt.Sprintf("node: nil constructor for kind %q", kind))
	}
	r.ctors.Store(kind, ctor)
}

// Lookup returns the constructor registered for kind.
func (r *Registry) Lookup(kind Kind) (Constructor, bool) {
	return r.ctors.Load(kind)
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	return slices.Sorted(r.ctors.Keys())
}

// Factory instantiates nodes from graph document entries. It closes over
// the run context shared by every node of a graph.
type Factory struct {
	registry *Registry
	params   InitParams
}

// NewFactory creates a factory backed by reg.
func NewFactory(reg *Registry, params InitParams) *Factory {
	return &Factory{registry: reg, params: params}
}

// Params returns the run context passed to constructors.
func (f *Factory) Params() InitParams {
	return f.params
}

// Create builds the node with the given id. The kind is read from
// data["type"].
func (f *Factory) Create(id string, data map[string]any) (Node, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: node id is required", ErrInvalidConfig)
	}
	cfg := config.New(data)
	kind, err := ParseKind(cfg.String("type", ""))
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	ctor, ok := f.registry.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("node %s: %w: %s", id, ErrNoConstructor, kind)
	}
	n, err := ctor(Config{ID: id, Data: cfg, Params: f.params})
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	return n, nil
}
