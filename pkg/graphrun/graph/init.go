package graph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
)

// NodeFactory instantiates a node from its document entry.
// *node.Factory implements it.
type NodeFactory interface {
	Create(id string, data map[string]any) (node.Node, error)
}

// InitOption configures Init.
type InitOption func(*initConfig)

type initConfig struct {
	rootID string
	logger *slog.Logger
}

// WithRootNodeID selects the root explicitly instead of inferring it.
func WithRootNodeID(id string) InitOption {
	return func(c *initConfig) {
		c.rootID = id
	}
}

// WithLogger sets the logger used for construction warnings.
func WithLogger(logger *slog.Logger) InitOption {
	return func(c *initConfig) {
		c.logger = logger
	}
}

// Init instantiates every node of cfg through factory and validates the
// result. All problems found are returned together.
func Init(cfg Config, factory NodeFactory, opts ...InitOption) (*Graph, error) {
	ic := initConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&ic)
	}
	if factory == nil {
		return nil, fmt.Errorf("graph: nil node factory")
	}
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("%w: graph has no nodes", ErrNoRoot)
	}

	var errs []error
	nodes := make([]node.Node, 0, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		n, err := factory.Create(nc.ID, nc.Data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidNode, err))
			continue
		}
		nodes = append(nodes, n)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return assemble(nodes, cfg.Edges, ic.rootID, ic.logger)
}
