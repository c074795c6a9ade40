package benchmarks

import (
	"context"
	"testing"
	"time"

	"github.com/randalmurphal/graphrun/pkg/graphrun/engine"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/graph"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node/builtin"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

func run(b *testing.B, g *graph.Graph, state *runtime.State, opts ...engine.Option) {
	b.Helper()
	for ev, err := range engine.New(g, state, opts...).Run(context.Background()) {
		if err != nil {
			b.Fatal(err)
		}
		if _, ok := ev.(event.GraphRunFailed); ok {
			b.Fatalf("run failed: %v", ev.(event.GraphRunFailed).Err)
		}
	}
}

func freshState() *runtime.State {
	return runtime.New(variable.MustNewPool(), time.Now())
}

func benchmarkLinear(b *testing.B, n int) {
	g := buildLinearGraph(n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		run(b, g, freshState())
	}
}

// BenchmarkRun_Linear_5 runs a 5-node linear graph.
func BenchmarkRun_Linear_5(b *testing.B) { benchmarkLinear(b, 5) }

// BenchmarkRun_Linear_10 runs a 10-node linear graph.
func BenchmarkRun_Linear_10(b *testing.B) { benchmarkLinear(b, 10) }

// BenchmarkRun_Linear_50 runs a 50-node linear graph.
func BenchmarkRun_Linear_50(b *testing.B) { benchmarkLinear(b, 50) }

// BenchmarkRun_Linear_100 runs a 100-node linear graph.
func BenchmarkRun_Linear_100(b *testing.B) { benchmarkLinear(b, 100) }

// BenchmarkRun_FanOut_20 runs 20 parallel nodes on up to 8 workers.
func BenchmarkRun_FanOut_20(b *testing.B) {
	g := buildFanOutGraph(20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		run(b, g, freshState(), engine.WithWorkers(2, 8), engine.WithScaleUpThreshold(1))
	}
}

// BenchmarkRun_Templates_10 runs built-in template nodes reading the pool.
func BenchmarkRun_Templates_10(b *testing.B) {
	g, err := graph.Init(linearDocument(10), node.NewFactory(builtin.NewRegistry(), node.InitParams{}))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool := variable.MustNewPool(variable.WithUserInputs(map[string]any{"name": "Ada"}))
		run(b, g, runtime.New(pool, time.Now()))
	}
}
