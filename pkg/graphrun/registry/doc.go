// Package registry holds the concurrent maps behind the node constructor
// table and the compiled graph cache.
//
//	graphs := registry.New[graph.CacheKey, *graph.Graph]()
//	g, err := graphs.LoadOrBuild(key, func() (*graph.Graph, error) {
//	    return graph.Init(doc, factory)
//	})
package registry
