package graph

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node/builtin"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

type testNode struct {
	node.Base
}

func (testNode) Run(context.Context, *runtime.State) node.Result { return node.Succeeded{} }

func newTestNode(t *testing.T, id string, kind node.Kind) node.Node {
	t.Helper()
	reg := node.NewRegistry()
	reg.Register(kind, func(cfg node.Config) (node.Node, error) {
		base, err := node.NewBase(cfg.ID, kind, cfg.Data)
		return testNode{Base: base}, err
	})
	n, err := node.NewFactory(reg, node.InitParams{}).Create(id, map[string]any{"type": string(kind)})
	require.NoError(t, err)
	return n
}

func factory() *node.Factory {
	return node.NewFactory(builtin.NewRegistry(), node.InitParams{WorkflowID: "wf"})
}

func linearConfig() Config {
	return Config{
		Nodes: []NodeConfig{
			{ID: "start", Data: map[string]any{"type": "start"}},
			{ID: "tt", Data: map[string]any{"type": "template-transform", "template": "hi"}},
			{ID: "end", Data: map[string]any{"type": "end"}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "start", Target: "tt"},
			{ID: "e2", Source: "tt", Target: "end", SourceHandle: "source"},
		},
	}
}

func TestInit(t *testing.T) {
	g, err := Init(linearConfig(), factory())
	require.NoError(t, err)

	assert.Equal(t, "start", g.RootID())
	assert.Equal(t, node.KindStart, g.Root().Kind())
	assert.Equal(t, []string{"start", "tt", "end"}, g.NodeIDs())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 0, g.InDegree("start"))
	assert.Equal(t, 1, g.InDegree("end"))

	out := g.OutEdges("start")
	require.Len(t, out, 1)
	assert.Equal(t, "tt", out[0].Target)
	assert.Equal(t, node.SourceHandle, out[0].Handle())

	e, ok := g.Edge("e2")
	require.True(t, ok)
	assert.Equal(t, "tt", e.Source)
	assert.Len(t, g.Edges(), 2)
	assert.Len(t, g.InEdges("end"), 1)

	_, ok = g.Node("ghost")
	assert.False(t, ok)
}

func TestInit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		opts   []InitOption
		want   error
	}{
		{
			name:   "dangling edge",
			mutate: func(c *Config) { c.Edges = append(c.Edges, Edge{Source: "tt", Target: "ghost"}) },
			want:   ErrNodeNotFound,
		},
		{
			name: "duplicate node",
			mutate: func(c *Config) {
				c.Nodes = append(c.Nodes, NodeConfig{ID: "tt", Data: map[string]any{"type": "end"}})
			},
			want: ErrDuplicateNode,
		},
		{
			name:   "duplicate edge",
			mutate: func(c *Config) { c.Edges = append(c.Edges, Edge{ID: "e1", Source: "tt", Target: "end"}) },
			want:   ErrDuplicateEdge,
		},
		{
			name:   "cycle",
			mutate: func(c *Config) { c.Edges = append(c.Edges, Edge{ID: "back", Source: "end", Target: "tt"}) },
			want:   ErrCycle,
		},
		{
			name: "invalid node",
			mutate: func(c *Config) {
				c.Nodes[1].Data = map[string]any{"type": "template-transform"}
			},
			want: ErrInvalidNode,
		},
		{
			name:   "unknown kind",
			mutate: func(c *Config) { c.Nodes[1].Data = map[string]any{"type": "llm"} },
			want:   node.ErrNoConstructor,
		},
		{
			name:   "explicit root missing",
			mutate: func(*Config) {},
			opts:   []InitOption{WithRootNodeID("ghost")},
			want:   ErrNodeNotFound,
		},
		{
			name:   "explicit root with incoming edges",
			mutate: func(*Config) {},
			opts:   []InitOption{WithRootNodeID("tt")},
			want:   ErrNoRoot,
		},
		{
			name:   "no nodes",
			mutate: func(c *Config) { c.Nodes, c.Edges = nil, nil },
			want:   ErrNoRoot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := linearConfig()
			tt.mutate(&cfg)
			_, err := Init(cfg, factory(), tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInit_JoinsErrors(t *testing.T) {
	cfg := linearConfig()
	cfg.Edges = append(cfg.Edges,
		Edge{ID: "x1", Source: "ghost1", Target: "end"},
		Edge{ID: "x2", Source: "start", Target: "ghost2"},
	)
	_, err := Init(cfg, factory())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost1")
	assert.Contains(t, err.Error(), "ghost2")
}

func TestInit_RootByInDegree(t *testing.T) {
	cfg := Config{
		Nodes: []NodeConfig{
			{ID: "a", Data: map[string]any{"type": "template-transform", "template": "x"}},
			{ID: "b", Data: map[string]any{"type": "end"}},
		},
		Edges: []Edge{{Source: "a", Target: "b"}},
	}
	g, err := Init(cfg, factory())
	require.NoError(t, err)
	assert.Equal(t, "a", g.RootID())

	e := g.OutEdges("a")[0]
	assert.Equal(t, "a-source-b", e.ID)
}

func TestInit_AmbiguousRoot(t *testing.T) {
	cfg := Config{Nodes: []NodeConfig{
		{ID: "a", Data: map[string]any{"type": "end"}},
		{ID: "b", Data: map[string]any{"type": "end"}},
	}}
	_, err := Init(cfg, factory())
	assert.ErrorIs(t, err, ErrNoRoot)

	g, err := Init(cfg, factory(), WithRootNodeID("b"))
	require.NoError(t, err)
	assert.Equal(t, "b", g.RootID())
}

func TestConfigFromMap_JSONShape(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]any{
		"nodes": []any{
			map[string]any{"id": "start", "data": map[string]any{"type": "start"}},
		},
		"edges": []any{
			map[string]any{"id": "e1", "source": "start", "target": "end", "sourceHandle": "true"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []NodeConfig{{ID: "start", Data: map[string]any{"type": "start"}}}, cfg.Nodes)
	assert.Equal(t, []Edge{{ID: "e1", Source: "start", Target: "end", SourceHandle: "true"}}, cfg.Edges)

	_, err = ConfigFromMap(map[string]any{"nodes": []any{map[string]any{"data": map[string]any{}}}})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = ConfigFromMap(map[string]any{"edges": []any{map[string]any{"source": "a"}}})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	yamlDoc := `
nodes:
  - id: start
    data: {type: start}
  - id: out
    data:
      type: end
      outputs:
        - variable: name
          value_selector: [start, name]
edges:
  - {id: e1, source: start, target: out}
`
	hclDoc := `
node "start" {
  type = "start"
}

node "out" {
  type = "end"
  outputs {
    variable       = "name"
    value_selector = ["start", "name"]
  }
}

edge "e1" {
  source = "start"
  target = "out"
}
`
	for name, content := range map[string]string{"graph.yaml": yamlDoc, "graph.hcl": hclDoc} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			cfg, err := LoadConfigFile(path)
			require.NoError(t, err)
			require.Len(t, cfg.Nodes, 2)
			require.Len(t, cfg.Edges, 1)

			g, err := Init(cfg, factory())
			require.NoError(t, err)
			assert.Equal(t, "start", g.RootID())
			assert.Equal(t, 1, g.InDegree("out"))
		})
	}

	_, err := LoadConfigFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestBuilder(t *testing.T) {
	start := newTestNode(t, "start", node.KindStart)
	branch := newTestNode(t, "if", node.KindIfElse)
	yes := newTestNode(t, "yes", node.KindTemplateTransform)
	no := newTestNode(t, "no", node.KindTemplateTransform)
	end := newTestNode(t, "end", node.KindEnd)

	g, err := New().
		AddRoot(start).
		AddNode(branch).
		AddNode(yes, WithHandle("true")).
		AddNode(no, FromNode("if"), WithHandle("false")).
		AddNode(end, FromNode("yes")).
		Connect("no", "end", "").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "start", g.RootID())
	handles := map[string]string{}
	for _, e := range g.OutEdges("if") {
		handles[e.Target] = e.Handle()
	}
	assert.Equal(t, map[string]string{"yes": "true", "no": "false"}, handles)
	assert.Equal(t, 2, g.InDegree("end"))
}

func TestBuilder_Panics(t *testing.T) {
	start := newTestNode(t, "start", node.KindStart)

	assert.Panics(t, func() { New().AddNode(start) })
	assert.Panics(t, func() { New().AddRoot(nil) })
	assert.Panics(t, func() { New().AddRoot(start).AddNode(start) })
	assert.Panics(t, func() { New().AddRoot(start).AddRoot(newTestNode(t, "s2", node.KindStart)) })
}

func TestBuilder_BuildValidates(t *testing.T) {
	_, err := New().Build()
	assert.ErrorIs(t, err, ErrNoRoot)

	_, err = New().
		AddRoot(newTestNode(t, "start", node.KindStart)).
		AddNode(newTestNode(t, "a", node.KindEnd)).
		Connect("a", "ghost", "").
		Build()
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCache(t *testing.T) {
	c := NewCache()
	key := CacheKey{WorkflowID: "wf", Version: "1"}

	var builds atomic.Int32
	build := func() (*Graph, error) {
		builds.Add(1)
		return Init(linearConfig(), factory())
	}

	g1, err := c.GetOrBuild(key, build)
	require.NoError(t, err)
	g2, err := c.GetOrBuild(key, build)
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, int32(1), builds.Load())

	_, err = c.GetOrBuild(CacheKey{WorkflowID: "wf", Version: "2"}, func() (*Graph, error) {
		return nil, ErrNoRoot
	})
	assert.ErrorIs(t, err, ErrNoRoot)
	assert.Equal(t, 1, c.Len())

	c.Invalidate(key)
	_, ok := c.Get(key)
	assert.False(t, ok)
}
