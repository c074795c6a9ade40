package graph

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
)

// Builder assembles a graph in code. It is not safe for concurrent use.
//
// AddNode connects the new node to the previously added node unless
// FromNode says otherwise. Builder panics on nil or duplicate nodes;
// structural problems are reported by Build.
type Builder struct {
	nodes  []node.Node
	ids    map[string]bool
	edges  []Edge
	rootID string
	logger *slog.Logger
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{ids: make(map[string]bool), logger: slog.Default()}
}

// WithLogger sets the logger used for construction warnings.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// AddRoot adds the root node. It must be called first.
func (b *Builder) AddRoot(n node.Node) *Builder {
	if b.rootID != "" {
		panic("graph: root already set")
	}
	b.add(n)
	b.rootID = n.ID()
	return b
}

// AddOption configures how AddNode connects a node.
type AddOption func(*addConfig)

type addConfig struct {
	from   string
	handle string
}

// FromNode connects the new node from the given node instead of the
// previously added one.
func FromNode(id string) AddOption {
	return func(c *addConfig) {
		c.from = id
	}
}

// WithHandle sets the source handle of the connecting edge.
func WithHandle(handle string) AddOption {
	return func(c *addConfig) {
		c.handle = handle
	}
}

// AddNode adds n and an edge to it.
func (b *Builder) AddNode(n node.Node, opts ...AddOption) *Builder {
	if b.rootID == "" {
		panic("graph: AddRoot must be called before AddNode")
	}
	ac := addConfig{handle: node.SourceHandle}
	if len(b.nodes) > 0 {
		ac.from = b.nodes[len(b.nodes)-1].ID()
	}
	for _, opt := range opts {
		opt(&ac)
	}
	b.add(n)
	return b.Connect(ac.from, n.ID(), ac.handle)
}

// Connect adds an edge from tail to head on the given handle.
func (b *Builder) Connect(tail, head, handle string) *Builder {
	if handle == "" {
		handle = node.SourceHandle
	}
	b.edges = append(b.edges, Edge{
		ID:           fmt.Sprintf("edge-%d", len(b.edges)+1),
		Source:       tail,
		Target:       head,
		SourceHandle: handle,
	})
	return b
}

// Build validates the graph. The builder can be reused afterwards.
func (b *Builder) Build() (*Graph, error) {
	if b.rootID == "" {
		return nil, ErrNoRoot
	}
	return assemble(b.nodes, b.edges, b.rootID, b.logger)
}

func (b *Builder) add(n node.Node) {
	if n == nil {
		panic("graph: node cannot be nil")
	}
	if b.ids[n.ID()] {
		panic(fmt.Sprintf("graph: duplicate node ID: %s", n.ID()))
	}
	b.ids[n.ID()] = true
	b.nodes = append(b.nodes, n)
}
