package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph"
	"github.com/randalmurphal/nodegraph/pkg/nodegraph/catalog"
)

// BenchmarkNewGraph measures graph creation overhead.
func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		nodegraph.NewGraph()
	}
}

// BenchmarkAddNode measures a single validated insertion.
func BenchmarkAddNode(b *testing.B) {
	cat := catalog.Builtin()
	cmd, _ := cat.Instantiate("n", "math.add", nodegraph.Point{}, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g := nodegraph.NewGraph()
		_ = g.Apply(cmd, cat)
	}
}

// BenchmarkBuildChain_100 builds a 100-node chain through commands.
func BenchmarkBuildChain_100(b *testing.B) {
	cat := catalog.Builtin()
	for i := 0; i < b.N; i++ {
		buildChain(b, cat, 100)
	}
}

// BenchmarkAddWire_CycleCheck measures wiring the head of a long chain,
// which walks the whole chain looking for a path back.
func BenchmarkAddWire_CycleCheck(b *testing.B) {
	cat := catalog.Builtin()
	g := buildChain(b, cat, 500)
	sink, _ := cat.Instantiate("sink", "math.sum", nodegraph.Point{}, nil)
	if err := g.Apply(sink, cat); err != nil {
		b.Fatal(err)
	}
	cmd := nodegraph.NewAddWire(
		nodegraph.NewSocketID(nodeID(499), nodegraph.Output, "result"),
		nodegraph.NewSocketID("sink", nodegraph.Input, "values"),
	)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := g.Apply(cmd, cat); err != nil {
			b.Fatal(err)
		}
		if err := g.Apply(cmd.Invert(), cat); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDownstreamClosure_500 measures the closure from a chain's root.
func BenchmarkDownstreamClosure_500(b *testing.B) {
	g := buildChain(b, catalog.Builtin(), 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		nodegraph.DownstreamClosure(g, "src")
	}
}

// BenchmarkUpstreamClosure_500 measures the closure from a chain's tail.
func BenchmarkUpstreamClosure_500(b *testing.B) {
	g := buildChain(b, catalog.Builtin(), 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		nodegraph.UpstreamClosure(g, nodeID(499))
	}
}

// Helper functions

func nodeID(n int) nodegraph.NodeID {
	return nodegraph.NodeID(fmt.Sprintf("n%04d", n))
}

// buildChain wires src into n math.add nodes, each feeding the next one's a.
func buildChain(tb testing.TB, cat *catalog.Catalog, n int) *nodegraph.Graph {
	tb.Helper()
	g := nodegraph.NewGraph()
	apply := func(cmd nodegraph.Command) {
		if err := g.Apply(cmd, cat); err != nil {
			tb.Fatal(err)
		}
	}

	src, err := cat.Instantiate("src", "input.float", nodegraph.Point{}, nodegraph.Params{"value": 1.0})
	if err != nil {
		tb.Fatal(err)
	}
	apply(src)

	prev := nodegraph.NewSocketID("src", nodegraph.Output, "value")
	for i := 0; i < n; i++ {
		id := nodeID(i)
		add, err := cat.Instantiate(id, "math.add", nodegraph.Point{X: float64(i)}, nodegraph.Params{"b": 1.0})
		if err != nil {
			tb.Fatal(err)
		}
		apply(add)
		apply(nodegraph.NewAddWire(prev, nodegraph.NewSocketID(id, nodegraph.Input, "a")))
		prev = nodegraph.NewSocketID(id, nodegraph.Output, "result")
	}
	return g
}
