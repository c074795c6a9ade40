package graph

import "errors"

// Sentinel errors for graph construction. Init and Build return them
// joined, so check with errors.Is.
var (
	// ErrNodeNotFound indicates an edge or root id that names no node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoRoot indicates no root node could be determined.
	ErrNoRoot = errors.New("no root node")

	// ErrCycle indicates the graph is not acyclic.
	ErrCycle = errors.New("graph contains a cycle")

	// ErrDuplicateNode indicates two nodes share an id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrDuplicateEdge indicates two edges share an id.
	ErrDuplicateEdge = errors.New("duplicate edge id")

	// ErrInvalidNode indicates the node factory rejected a node.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidDocument indicates a graph document that cannot be decoded.
	ErrInvalidDocument = errors.New("invalid graph document")
)
