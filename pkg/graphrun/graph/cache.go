package graph

import (
	"github.com/randalmurphal/graphrun/pkg/graphrun/registry"
)

// CacheKey identifies one published version of a workflow.
type CacheKey struct {
	WorkflowID string
	Version    string
}

// Cache holds built graphs so resumed runs do not rebuild them. It is
// safe for concurrent use.
type Cache struct {
	graphs *registry.Map[CacheKey, *Graph]
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{graphs: registry.New[CacheKey, *Graph]()}
}

// Get returns the cached graph for key.
func (c *Cache) Get(key CacheKey) (*Graph, bool) {
	return c.graphs.Load(key)
}

// GetOrBuild returns the cached graph for key, calling build once to
// create it when absent. Build errors are not cached. Builds for different
// workflow versions do not wait on each other.
func (c *Cache) GetOrBuild(key CacheKey, build func() (*Graph, error)) (*Graph, error) {
	return c.graphs.LoadOrBuild(key, build)
}

// Invalidate drops the graph for key.
func (c *Cache) Invalidate(key CacheKey) {
	c.graphs.Forget(key)
}

// Len returns the number of cached graphs.
func (c *Cache) Len() int {
	return c.graphs.Len()
}
