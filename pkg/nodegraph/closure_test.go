package nodegraph

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

func TestClosures_Chain(t *testing.T) {
	reg := newTestRegistry()
	g := chainGraph(t, reg, 4)

	assert.Equal(t, []NodeID{"n01", "n02", "n03"}, DownstreamClosure(g, "n01").Sorted())
	assert.Equal(t, []NodeID{"n00", "n01", "src"}, UpstreamClosure(g, "n01").Sorted())
	assert.Equal(t, 5, DownstreamClosure(g, "src").Len())
	assert.Equal(t, 0, DownstreamClosure(g, "missing").Len())
	assert.Equal(t, []NodeID{"n03"}, DownstreamClosure(g, "n03", "n03", "missing").Sorted())
}

func TestClosures_Diamond(t *testing.T) {
	reg := newTestRegistry()
	g := NewGraph()
	mustApply(t, g, reg,
		constNode("top", 1),
		passNode("left"),
		passNode("right"),
		addNode("bottom"),
		wire("w1", "top", "out", "left", "in"),
		wire("w2", "top", "out", "right", "in"),
		wire("w3", "left", "out", "bottom", "a"),
		wire("w4", "right", "out", "bottom", "b"),
	)

	assert.Equal(t, []NodeID{"bottom", "left", "right", "top"}, DownstreamClosure(g, "top").Sorted())
	assert.Equal(t, []NodeID{"bottom", "left"}, DownstreamClosure(g, "left").Sorted())
	assert.Equal(t, []NodeID{"bottom", "left", "right", "top"}, UpstreamClosure(g, "bottom").Sorted())

	order, err := topoOrder(g, g.NodeIDs())
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"top", "left", "right", "bottom"}, order, "ready nodes are drawn in id order")
}

func TestNodeSet(t *testing.T) {
	s := NewNodeSet("b", "a")
	s.Add("c")
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("z"))
	assert.Equal(t, 3, s.Len())

	s.Union(NewNodeSet("c", "d"))
	assert.Equal(t, []NodeID{"a", "b", "c", "d"}, s.Sorted())
}

// TestClosures_RandomGraphs checks cycle rejection, closures and the
// topological order against gonum on random graphs.
func TestClosures_RandomGraphs(t *testing.T) {
	reg := newTestRegistry()

	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, 42))
			const size = 12

			g := NewGraph()
			oracle := simple.NewDirectedGraph()
			ids := make([]NodeID, size)
			for i := range size {
				ids[i] = NodeID(fmt.Sprintf("n%02d", i))
				mustApply(t, g, reg, sumNode(ids[i]))
				oracle.AddNode(simple.Node(i))
			}

			for attempt := range 60 {
				u, v := rng.IntN(size), rng.IntN(size)
				w := Wire{
					ID:   WireID(fmt.Sprintf("w%03d", attempt)),
					From: outSock(ids[u], "out"),
					To:   inSock(ids[v], "in"),
				}
				err := g.Apply(&AddWire{Wire: w}, reg)

				switch {
				case u == v:
					requireReason(t, err, ReasonSelfLoop)
				case topo.PathExistsIn(oracle, simple.Node(v), simple.Node(u)):
					requireReason(t, err, ReasonCycle)
				default:
					require.NoError(t, err)
					if !oracle.HasEdgeFromTo(int64(u), int64(v)) {
						oracle.SetEdge(oracle.NewEdge(simple.Node(u), simple.Node(v)))
					}
				}
			}

			require.NoError(t, g.CheckIntegrity(reg))
			_, err := topo.Sort(oracle)
			require.NoError(t, err)

			for i, start := range ids {
				down := DownstreamClosure(g, start)
				up := UpstreamClosure(g, start)
				for j, other := range ids {
					wantDown := i == j || topo.PathExistsIn(oracle, simple.Node(i), simple.Node(j))
					wantUp := i == j || topo.PathExistsIn(oracle, simple.Node(j), simple.Node(i))
					assert.Equal(t, wantDown, down.Has(other), "%s downstream of %s", other, start)
					assert.Equal(t, wantUp, up.Has(other), "%s upstream of %s", other, start)
				}
			}

			order, err := topoOrder(g, g.NodeIDs())
			require.NoError(t, err)
			require.Len(t, order, size)
			pos := make(map[NodeID]int, size)
			for i, id := range order {
				pos[id] = i
			}
			for _, w := range g.Wires() {
				from, to := g.wireNodes(&w)
				assert.Less(t, pos[from], pos[to], "wire %s", w.ID)
			}

			again, err := topoOrder(g.clone(), g.NodeIDs())
			require.NoError(t, err)
			assert.Equal(t, order, again)
		})
	}
}

func TestTopoOrder_Subset(t *testing.T) {
	reg := newTestRegistry()
	g := chainGraph(t, reg, 5)

	order, err := topoOrder(g, []NodeID{"n03", "n01", "n02"})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"n01", "n02", "n03"}, order)
}

func TestTopoOrder_DetectsCycle(t *testing.T) {
	reg := newTestRegistry()
	g := chainGraph(t, reg, 3)
	// Corrupt the adjacency directly; commands cannot produce this.
	link(g.outgoing, "n02", "n00")
	link(g.incoming, "n00", "n02")

	_, err := topoOrder(g, g.NodeIDs())
	assert.Error(t, err)
	assert.ErrorIs(t, g.CheckIntegrity(nil), ErrIntegrity)
}
