package nodegraph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/tidwall/btree"
)

// NodeSet is an unordered set of node ids.
type NodeSet map[NodeID]struct{}

// NewNodeSet creates a set holding ids.
func NewNodeSet(ids ...NodeID) NodeSet {
	s := make(NodeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s NodeSet) Has(id NodeID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s NodeSet) Add(id NodeID) {
	s[id] = struct{}{}
}

// Len returns the number of ids in the set.
func (s NodeSet) Len() int {
	return len(s)
}

// Union adds every id of other to s and returns s.
func (s NodeSet) Union(other NodeSet) NodeSet {
	for id := range other {
		s[id] = struct{}{}
	}
	return s
}

// Sorted returns the ids in ascending order.
func (s NodeSet) Sorted() []NodeID {
	return slices.Sorted(maps.Keys(s))
}

// DownstreamClosure returns every node reachable from starts by following
// wires forward, starts included. Ids that are not in the graph are ignored.
func DownstreamClosure(g *Graph, starts ...NodeID) NodeSet {
	return closure(g, g.outgoing, starts)
}

// UpstreamClosure returns every node that transitively feeds starts,
// starts included. Ids that are not in the graph are ignored.
func UpstreamClosure(g *Graph, starts ...NodeID) NodeSet {
	return closure(g, g.incoming, starts)
}

// closure is a BFS over adj. The visited set bounds the work to O(V+E).
func closure(g *Graph, adj map[NodeID]map[NodeID]int, starts []NodeID) NodeSet {
	visited := make(NodeSet, len(starts))
	queue := make([]NodeID, 0, len(starts))
	for _, id := range starts {
		if !g.HasNode(id) || visited.Has(id) {
			continue
		}
		visited.Add(id)
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for next := range adj[current] {
			if !visited.Has(next) {
				visited.Add(next)
				queue = append(queue, next)
			}
		}
	}

	return visited
}

// reachable reports whether target can be reached from start over outgoing.
func reachable(g *Graph, start, target NodeID) bool {
	if start == target {
		return true
	}
	visited := map[NodeID]bool{start: true}
	queue := []NodeID{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for next := range g.outgoing[current] {
			if next == target {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	return false
}

// topoOrder orders the subgraph induced by ids with Kahn's algorithm.
// Ready nodes are drawn in ascending id order, so the result is
// deterministic for a given graph.
func topoOrder(g *Graph, ids []NodeID) ([]NodeID, error) {
	set := NewNodeSet(ids...)
	indegree := make(map[NodeID]int, len(set))
	ready := btree.NewBTreeG(func(a, b NodeID) bool { return a < b })

	for id := range set {
		for pred := range g.incoming[id] {
			if set.Has(pred) {
				indegree[id]++
			}
		}
		if indegree[id] == 0 {
			ready.Set(id)
		}
	}

	order := make([]NodeID, 0, len(set))
	for ready.Len() > 0 {
		current, _ := ready.PopMin()
		order = append(order, current)

		for next := range g.outgoing[current] {
			if !set.Has(next) {
				continue
			}
			indegree[next]--
			if indegree[next] == 0 {
				ready.Set(next)
			}
		}
	}

	if len(order) != len(set) {
		return order, fmt.Errorf("cycle among %d nodes", len(set)-len(order))
	}
	return order, nil
}
