package graph

import (
	"fmt"

	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
)

// NodeConfig is one node entry of a graph document.
type NodeConfig struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Config is a graph document: nodes with their data and the edges between
// them.
type Config struct {
	Nodes []NodeConfig `json:"nodes"`
	Edges []Edge       `json:"edges"`
}

// ConfigFromMap decodes a graph document.
//
// The JSON/YAML form is
//
//	{"nodes": [{"id": "start", "data": {"type": "start"}}],
//	 "edges": [{"id": "e1", "source": "start", "target": "end"}]}
//
// The HCL form uses labelled blocks whose bodies are the node data:
//
//	node "start" { type = "start" }
//	edge "e1" {
//	  source = "start"
//	  target = "end"
//	}
func ConfigFromMap(m map[string]any) (Config, error) {
	doc := config.New(m)
	var cfg Config

	nodes := doc.List("nodes")
	if !doc.Has("nodes") {
		nodes = doc.List("node")
	}
	for i, n := range nodes {
		id := n.String("id", "")
		if id == "" {
			return Config{}, fmt.Errorf("%w: nodes[%d] has no id", ErrInvalidDocument, i)
		}
		data := n.Sub("data").Raw()
		if !n.Has("data") {
			data = make(map[string]any, len(n.Raw()))
			for k, v := range n.Raw() {
				if k != "id" {
					data[k] = v
				}
			}
		}
		cfg.Nodes = append(cfg.Nodes, NodeConfig{ID: id, Data: data})
	}

	edges := doc.List("edges")
	if !doc.Has("edges") {
		edges = doc.List("edge")
	}
	for i, e := range edges {
		edge := Edge{
			ID:           e.String("id", ""),
			Source:       e.String("source", ""),
			Target:       e.String("target", ""),
			SourceHandle: e.String("sourceHandle", e.String("source_handle", "")),
		}
		if edge.Source == "" || edge.Target == "" {
			return Config{}, fmt.Errorf("%w: edges[%d] needs source and target", ErrInvalidDocument, i)
		}
		cfg.Edges = append(cfg.Edges, edge)
	}
	return cfg, nil
}

// LoadConfigFile reads a graph document from a .json, .yaml, .yml or .hcl
// file.
func LoadConfigFile(path string) (Config, error) {
	doc, err := config.FromFile(path)
	if err != nil {
		return Config{}, err
	}
	return ConfigFromMap(doc.Raw())
}
