// Package graph holds the immutable node/edge structure a run executes.
//
// Graphs are built from a document with Init, or programmatically with a
// Builder. Both validate the same way: every edge endpoint must exist,
// there must be exactly one root, and the graph must be acyclic.
//
//	g, err := graph.New().
//	    AddRoot(start).
//	    AddNode(llm).
//	    AddNode(end).
//	    Build()
//
// A built Graph is never mutated and can be shared between runs.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
)

// Edge connects the source handle of one node to another node.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Handle returns the source handle, defaulting to node.SourceHandle.
func (e Edge) Handle() string {
	if e.SourceHandle == "" {
		return node.SourceHandle
	}
	return e.SourceHandle
}

// Graph is a validated, immutable workflow graph.
type Graph struct {
	nodes     map[string]node.Node
	nodeOrder []string
	edges     map[string]Edge
	edgeOrder []string
	in        map[string][]string
	out       map[string][]string
	rootID    string
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (node.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []node.Node {
	out := make([]node.Node, len(g.nodeOrder))
	for i, id := range g.nodeOrder {
		out[i] = g.nodes[id]
	}
	return out
}

// NodeIDs returns every node id in insertion order.
func (g *Graph) NodeIDs() []string {
	return slices.Clone(g.nodeOrder)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodeOrder)
}

// RootID returns the id of the root node.
func (g *Graph) RootID() string {
	return g.rootID
}

// Root returns the root node.
func (g *Graph) Root() node.Node {
	return g.nodes[g.rootID]
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id string) (Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edgeOrder))
	for i, id := range g.edgeOrder {
		out[i] = g.edges[id]
	}
	return out
}

// InEdges returns the edges ending at id.
func (g *Graph) InEdges(id string) []Edge {
	return g.collect(g.in[id])
}

// OutEdges returns the edges starting at id.
func (g *Graph) OutEdges(id string) []Edge {
	return g.collect(g.out[id])
}

// InDegree returns the number of edges ending at id.
func (g *Graph) InDegree(id string) int {
	return len(g.in[id])
}

func (g *Graph) collect(ids []string) []Edge {
	out := make([]Edge, len(ids))
	for i, id := range ids {
		out[i] = g.edges[id]
	}
	return out
}

// assemble validates nodes and edges and indexes them. rootID may be
// empty, in which case the root is inferred.
func assemble(nodes []node.Node, edges []Edge, rootID string, logger *slog.Logger) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]node.Node, len(nodes)),
		edges: make(map[string]Edge, len(edges)),
		in:    make(map[string][]string),
		out:   make(map[string][]string),
	}

	var errs []error
	for _, n := range nodes {
		if _, dup := g.nodes[n.ID()]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID()))
			continue
		}
		g.nodes[n.ID()] = n
		g.nodeOrder = append(g.nodeOrder, n.ID())
	}

	for _, e := range edges {
		if e.ID == "" {
			e.ID = fmt.Sprintf("%s-%s-%s", e.Source, e.Handle(), e.Target)
		}
		if _, dup := g.edges[e.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID))
			continue
		}
		missing := false
		if _, ok := g.nodes[e.Source]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge %s source %q", ErrNodeNotFound, e.ID, e.Source))
			missing = true
		}
		if _, ok := g.nodes[e.Target]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge %s target %q", ErrNodeNotFound, e.ID, e.Target))
			missing = true
		}
		if missing {
			continue
		}
		g.edges[e.ID] = e
		g.edgeOrder = append(g.edgeOrder, e.ID)
		g.out[e.Source] = append(g.out[e.Source], e.ID)
		g.in[e.Target] = append(g.in[e.Target], e.ID)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	root, err := g.findRoot(rootID)
	if err != nil {
		errs = append(errs, err)
	} else {
		g.rootID = root
	}
	if cyclic := g.cyclicNodes(); len(cyclic) > 0 {
		errs = append(errs, fmt.Errorf("%w: involving %v", ErrCycle, cyclic))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g.warnUnreachable(logger)
	return g, nil
}

// findRoot resolves the explicit root, else the single root-kind node,
// else the single node without incoming edges.
func (g *Graph) findRoot(explicit string) (string, error) {
	if explicit != "" {
		if _, ok := g.nodes[explicit]; !ok {
			return "", fmt.Errorf("%w: root %q", ErrNodeNotFound, explicit)
		}
		if len(g.in[explicit]) > 0 {
			return "", fmt.Errorf("%w: root %q has incoming edges", ErrNoRoot, explicit)
		}
		return explicit, nil
	}

	var byKind, byDegree []string
	for _, id := range g.nodeOrder {
		if len(g.in[id]) > 0 {
			continue
		}
		byDegree = append(byDegree, id)
		if g.nodes[id].Kind().IsRoot() {
			byKind = append(byKind, id)
		}
	}
	switch {
	case len(byKind) == 1:
		return byKind[0], nil
	case len(byKind) > 1:
		return "", fmt.Errorf("%w: several root nodes %v", ErrNoRoot, byKind)
	case len(byDegree) == 1:
		return byDegree[0], nil
	case len(byDegree) == 0:
		return "", ErrNoRoot
	}
	return "", fmt.Errorf("%w: ambiguous candidates %v", ErrNoRoot, byDegree)
}

// cyclicNodes runs Kahn's algorithm and returns the nodes left over.
func (g *Graph) cyclicNodes() []string {
	degree := make(map[string]int, len(g.nodes))
	queue := make([]string, 0, len(g.nodes))
	for _, id := range g.nodeOrder {
		degree[id] = len(g.in[id])
		if degree[id] == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, eid := range g.out[id] {
			t := g.edges[eid].Target
			degree[t]--
			if degree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}
	if visited == len(g.nodeOrder) {
		return nil
	}
	var left []string
	for _, id := range g.nodeOrder {
		if degree[id] > 0 {
			left = append(left, id)
		}
	}
	return left
}

func (g *Graph) warnUnreachable(logger *slog.Logger) {
	reachable := map[string]bool{g.rootID: true}
	queue := []string{g.rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, eid := range g.out[id] {
			t := g.edges[eid].Target
			if !reachable[t] {
				reachable[t] = true
				queue = append(queue, t)
			}
		}
	}
	for _, id := range g.nodeOrder {
		if !reachable[id] {
			logger.Warn("node is unreachable from root", "node_id", id, "root_id", g.rootID)
		}
	}
}
