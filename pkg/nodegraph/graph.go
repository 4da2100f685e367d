package nodegraph

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Graph is the authoritative in-memory snapshot of a node graph.
//
// Graph exposes read accessors only. Every mutation goes through a Command
// passed to Apply (or through a Session), so the invariants are enforced in
// one place:
//
//  1. every wire joins an existing output socket to an existing input socket
//  2. no socket carries more wires than its resolved MaxConnections
//  3. the node adjacency is acyclic
//  4. every wire joins compatible data types
//  5. the adjacency index is exactly the relation implied by the wires
//
// Entities are stored copy-on-write: a mutation replaces the map entry
// rather than editing it in place, which keeps clone cheap.
//
// Graph is NOT safe for concurrent use. Serialize access externally.
type Graph struct {
	nodes   map[NodeID]*Node
	sockets map[SocketID]*Socket
	wires   map[WireID]*Wire
	frames  map[FrameID]*Frame

	// outgoing[a][b] counts the wires from a socket on a to a socket on b.
	outgoing map[NodeID]map[NodeID]int
	incoming map[NodeID]map[NodeID]int

	// socketWires indexes the wires incident to each socket.
	socketWires map[SocketID]map[WireID]struct{}

	revision      uint64
	frameRevision uint64
	frameMemo     *frameMemo
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:       make(map[NodeID]*Node),
		sockets:     make(map[SocketID]*Socket),
		wires:       make(map[WireID]*Wire),
		frames:      make(map[FrameID]*Frame),
		outgoing:    make(map[NodeID]map[NodeID]int),
		incoming:    make(map[NodeID]map[NodeID]int),
		socketWires: make(map[SocketID]map[WireID]struct{}),
	}
}

// Revision increases on every accepted mutation.
func (g *Graph) Revision() uint64 {
	return g.revision
}

// Stats summarizes the size of a graph.
type Stats struct {
	Nodes   int `json:"nodes"`
	Sockets int `json:"sockets"`
	Wires   int `json:"wires"`
	Frames  int `json:"frames"`
}

// Stats returns entity counts.
func (g *Graph) Stats() Stats {
	return Stats{
		Nodes:   len(g.nodes),
		Sockets: len(g.sockets),
		Wires:   len(g.wires),
		Frames:  len(g.frames),
	}
}

// HasNode checks if a node exists in the graph.
func (g *Graph) HasNode(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Socket returns a copy of the socket with the given id.
func (g *Graph) Socket(id SocketID) (Socket, bool) {
	s, ok := g.sockets[id]
	if !ok {
		return Socket{}, false
	}
	return s.clone(), true
}

// Wire returns the wire with the given id.
func (g *Graph) Wire(id WireID) (Wire, bool) {
	w, ok := g.wires[id]
	if !ok {
		return Wire{}, false
	}
	return *w, true
}

// Frame returns a copy of the frame with the given id.
func (g *Graph) Frame(id FrameID) (Frame, bool) {
	f, ok := g.frames[id]
	if !ok {
		return Frame{}, false
	}
	return f.clone(), true
}

// NodeIDs returns every node id in ascending order.
func (g *Graph) NodeIDs() []NodeID {
	return slices.Sorted(maps.Keys(g.nodes))
}

// Nodes returns copies of all nodes ordered by id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, id := range g.NodeIDs() {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Sockets returns copies of all sockets ordered by id.
func (g *Graph) Sockets() []Socket {
	out := make([]Socket, 0, len(g.sockets))
	for _, id := range slices.Sorted(maps.Keys(g.sockets)) {
		out = append(out, g.sockets[id].clone())
	}
	return out
}

// Wires returns all wires ordered by id.
func (g *Graph) Wires() []Wire {
	out := make([]Wire, 0, len(g.wires))
	for _, id := range slices.Sorted(maps.Keys(g.wires)) {
		out = append(out, *g.wires[id])
	}
	return out
}

// Frames returns copies of all frames ordered by id.
func (g *Graph) Frames() []Frame {
	out := make([]Frame, 0, len(g.frames))
	for _, id := range slices.Sorted(maps.Keys(g.frames)) {
		out = append(out, g.frames[id].clone())
	}
	return out
}

// Outgoing returns the nodes directly downstream of id, in ascending order.
func (g *Graph) Outgoing(id NodeID) []NodeID {
	return slices.Sorted(maps.Keys(g.outgoing[id]))
}

// Incoming returns the nodes directly upstream of id, in ascending order.
func (g *Graph) Incoming(id NodeID) []NodeID {
	return slices.Sorted(maps.Keys(g.incoming[id]))
}

// SocketWires returns the wires incident to a socket, ordered by id.
func (g *Graph) SocketWires(id SocketID) []Wire {
	set := g.socketWires[id]
	out := make([]Wire, 0, len(set))
	for wid := range set {
		out = append(out, *g.wires[wid])
	}
	slices.SortFunc(out, compareWires)
	return out
}

// NodeWires returns every wire incident to any socket of a node, ordered by id.
func (g *Graph) NodeWires(id NodeID) []Wire {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	seen := make(map[WireID]struct{})
	var out []Wire
	for _, sid := range slices.Concat(n.Inputs, n.Outputs) {
		for wid := range g.socketWires[sid] {
			if _, dup := seen[wid]; dup {
				continue
			}
			seen[wid] = struct{}{}
			out = append(out, *g.wires[wid])
		}
	}
	slices.SortFunc(out, compareWires)
	return out
}

// SocketByName finds the socket of node with the given direction and name.
func (g *Graph) SocketByName(node NodeID, dir Direction, name string) (Socket, bool) {
	n, ok := g.nodes[node]
	if !ok {
		return Socket{}, false
	}
	ids := n.Inputs
	if dir == Output {
		ids = n.Outputs
	}
	for _, sid := range ids {
		if s := g.sockets[sid]; s != nil && s.Name == name {
			return s.clone(), true
		}
	}
	return Socket{}, false
}

// connectionCount returns the number of wires incident to a socket.
func (g *Graph) connectionCount(id SocketID) int {
	return len(g.socketWires[id])
}

// wireNodes resolves the producer and consumer nodes of a wire.
func (g *Graph) wireNodes(w *Wire) (from, to NodeID) {
	return g.sockets[w.From].Node, g.sockets[w.To].Node
}

// Mutation primitives. They assume validation has already happened.

func (g *Graph) insertNode(n Node, sockets []Socket) {
	for _, s := range sockets {
		s := s.clone()
		g.sockets[s.ID] = &s
	}
	n = n.clone()
	g.nodes[n.ID] = &n
}

// deleteNode removes a node and its sockets. The node must have no wires.
func (g *Graph) deleteNode(id NodeID) {
	n := g.nodes[id]
	for _, sid := range slices.Concat(n.Inputs, n.Outputs) {
		delete(g.sockets, sid)
		delete(g.socketWires, sid)
	}
	delete(g.nodes, id)
	delete(g.outgoing, id)
	delete(g.incoming, id)
}

func (g *Graph) setNode(n Node) {
	n = n.clone()
	g.nodes[n.ID] = &n
}

// replaceSockets swaps a node's socket lists. Sockets of the old lists that
// are absent from the new ones are dropped; they must have no wires.
func (g *Graph) replaceSockets(id NodeID, inputs, outputs []Socket) {
	n := g.nodes[id].clone()
	keep := make(map[SocketID]struct{}, len(inputs)+len(outputs))
	n.Inputs = n.Inputs[:0]
	n.Outputs = n.Outputs[:0]
	for _, s := range inputs {
		s := s.clone()
		g.sockets[s.ID] = &s
		keep[s.ID] = struct{}{}
		n.Inputs = append(n.Inputs, s.ID)
	}
	for _, s := range outputs {
		s := s.clone()
		g.sockets[s.ID] = &s
		keep[s.ID] = struct{}{}
		n.Outputs = append(n.Outputs, s.ID)
	}
	old := g.nodes[id]
	for _, sid := range slices.Concat(old.Inputs, old.Outputs) {
		if _, ok := keep[sid]; !ok {
			delete(g.sockets, sid)
			delete(g.socketWires, sid)
		}
	}
	g.nodes[id] = &n
}

func (g *Graph) insertWire(w Wire) {
	g.wires[w.ID] = &w
	for _, sid := range []SocketID{w.From, w.To} {
		set := g.socketWires[sid]
		if set == nil {
			set = make(map[WireID]struct{})
			g.socketWires[sid] = set
		}
		set[w.ID] = struct{}{}
	}
	from, to := g.wireNodes(&w)
	link(g.outgoing, from, to)
	link(g.incoming, to, from)
}

func (g *Graph) deleteWire(id WireID) {
	w := g.wires[id]
	from, to := g.wireNodes(w)
	unlink(g.outgoing, from, to)
	unlink(g.incoming, to, from)
	for _, sid := range []SocketID{w.From, w.To} {
		if set := g.socketWires[sid]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(g.socketWires, sid)
			}
		}
	}
	delete(g.wires, id)
}

func (g *Graph) setFrame(f Frame) {
	f = f.clone()
	g.frames[f.ID] = &f
	g.frameRevision++
}

func (g *Graph) deleteFrame(id FrameID) {
	delete(g.frames, id)
	g.frameRevision++
}

func link(adj map[NodeID]map[NodeID]int, a, b NodeID) {
	m := adj[a]
	if m == nil {
		m = make(map[NodeID]int)
		adj[a] = m
	}
	m[b]++
}

func unlink(adj map[NodeID]map[NodeID]int, a, b NodeID) {
	m := adj[a]
	if m == nil {
		return
	}
	if m[b] <= 1 {
		delete(m, b)
	} else {
		m[b]--
	}
	if len(m) == 0 {
		delete(adj, a)
	}
}

// clone returns a scratch copy that can be mutated without affecting g.
// Entities are shared because they are never edited in place.
func (g *Graph) clone() *Graph {
	c := &Graph{
		nodes:         maps.Clone(g.nodes),
		sockets:       maps.Clone(g.sockets),
		wires:         maps.Clone(g.wires),
		frames:        maps.Clone(g.frames),
		outgoing:      make(map[NodeID]map[NodeID]int, len(g.outgoing)),
		incoming:      make(map[NodeID]map[NodeID]int, len(g.incoming)),
		socketWires:   make(map[SocketID]map[WireID]struct{}, len(g.socketWires)),
		revision:      g.revision,
		frameRevision: g.frameRevision,
	}
	for k, v := range g.outgoing {
		c.outgoing[k] = maps.Clone(v)
	}
	for k, v := range g.incoming {
		c.incoming[k] = maps.Clone(v)
	}
	for k, v := range g.socketWires {
		c.socketWires[k] = maps.Clone(v)
	}
	return c
}

// Equal reports whether two graphs hold the same nodes, sockets, wires and
// frames. Revisions and derived indexes are not compared.
func (g *Graph) Equal(other *Graph) bool {
	if other == nil {
		return false
	}
	return equalEntities(g.nodes, other.nodes, Node.equal) &&
		equalEntities(g.sockets, other.sockets, deepEqual[Socket]) &&
		equalEntities(g.wires, other.wires, deepEqual[Wire]) &&
		equalEntities(g.frames, other.frames, deepEqual[Frame])
}

func deepEqual[V any](a, b V) bool { return reflect.DeepEqual(a, b) }

func equalEntities[K comparable, V any](a, b map[K]*V, eq func(V, V) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			return false
		}
		if va != vb && !eq(*va, *vb) {
			return false
		}
	}
	return true
}

// CheckIntegrity verifies every store invariant from scratch. The type
// compatibility invariant is skipped when reg is nil. All violations are
// joined into the returned error.
func (g *Graph) CheckIntegrity(reg TypeRegistry) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, &IntegrityError{Detail: fmt.Sprintf(format, args...)})
	}

	for id, n := range g.nodes {
		for _, sid := range n.Inputs {
			s, ok := g.sockets[sid]
			if !ok || s.Node != id || s.Direction != Input {
				fail("node %s lists invalid input socket %s", id, sid)
			}
		}
		for _, sid := range n.Outputs {
			s, ok := g.sockets[sid]
			if !ok || s.Node != id || s.Direction != Output {
				fail("node %s lists invalid output socket %s", id, sid)
			}
		}
	}
	for sid, s := range g.sockets {
		if _, ok := g.nodes[s.Node]; !ok {
			fail("socket %s belongs to missing node %s", sid, s.Node)
		}
	}

	expected := make(map[NodeID]map[NodeID]int)
	for id, w := range g.wires {
		from, okFrom := g.sockets[w.From]
		to, okTo := g.sockets[w.To]
		if !okFrom || !okTo {
			fail("wire %s references a missing socket", id)
			continue
		}
		if from.Direction != Output || to.Direction != Input {
			fail("wire %s has wrong socket directions", id)
		}
		if reg != nil && !reg.IsCompatible(from.DataType, to.DataType) {
			fail("wire %s joins incompatible types %s -> %s", id, from.DataType, to.DataType)
		}
		link(expected, from.Node, to.Node)
	}
	for sid, s := range g.sockets {
		if limit := s.Limit(); limit != Unbounded && g.connectionCount(sid) > limit {
			fail("socket %s has %d wires, limit %d", sid, g.connectionCount(sid), limit)
		}
	}
	if !reflect.DeepEqual(normalizeAdjacency(expected), normalizeAdjacency(g.outgoing)) {
		fail("outgoing adjacency does not match wires")
	}
	if _, err := topoOrder(g, g.NodeIDs()); err != nil {
		fail("%v", err)
	}

	return errors.Join(errs...)
}

func normalizeAdjacency(adj map[NodeID]map[NodeID]int) map[NodeID]map[NodeID]int {
	out := make(map[NodeID]map[NodeID]int, len(adj))
	for k, v := range adj {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}

func compareWires(a, b Wire) int {
	return cmp.Compare(a.ID, b.ID)
}
