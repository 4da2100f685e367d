package nodegraph

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// AddNode inserts a node with its sockets. Wires are optional and are
// attached after the node; they let AddNode restore what RemoveNode took.
type AddNode struct {
	Node    Node     `json:"node"`
	Sockets []Socket `json:"sockets"`
	Wires   []Wire   `json:"wires,omitempty"`
}

// Kind implements Command.
func (c *AddNode) Kind() CommandKind { return KindAddNode }

// Invert implements Command.
func (c *AddNode) Invert() Command {
	return &RemoveNode{Node: c.Node, Sockets: c.Sockets, Wires: c.Wires}
}

func (c *AddNode) validate(g *Graph, reg TypeRegistry) error {
	if err := validateNewNode(g, reg, KindAddNode, c.Node, c.Sockets); err != nil {
		return err
	}
	if len(c.Wires) == 0 {
		return nil
	}

	scratch := g.clone()
	scratch.insertNode(c.Node, c.Sockets)
	own := socketSet(c.Node)
	for _, w := range c.Wires {
		if _, ok := own[w.From]; !ok {
			if _, ok := own[w.To]; !ok {
				return reject(KindAddNode, ReasonMissingEntity, "wire %s does not touch node %s", w.ID, c.Node.ID)
			}
		}
		if err := validateWire(scratch, reg, KindAddNode, w); err != nil {
			return err
		}
		scratch.insertWire(w)
	}
	return nil
}

func (c *AddNode) apply(g *Graph) {
	g.insertNode(c.Node, c.Sockets)
	for _, w := range c.Wires {
		g.insertWire(w)
	}
}

func (c *AddNode) touched(*Graph) []NodeID {
	return []NodeID{c.Node.ID}
}

// RemoveNode deletes a node, its sockets and every incident wire. It
// carries all three so its inverse restores the node exactly.
// Build it with Graph.RemoveNodeCommand.
type RemoveNode struct {
	Node    Node     `json:"node"`
	Sockets []Socket `json:"sockets"`
	Wires   []Wire   `json:"wires,omitempty"`
}

// Kind implements Command.
func (c *RemoveNode) Kind() CommandKind { return KindRemoveNode }

// Invert implements Command.
func (c *RemoveNode) Invert() Command {
	return &AddNode{Node: c.Node, Sockets: c.Sockets, Wires: c.Wires}
}

func (c *RemoveNode) validate(g *Graph, _ TypeRegistry) error {
	cur, ok := g.nodes[c.Node.ID]
	if !ok {
		return reject(KindRemoveNode, ReasonMissingEntity, "node %s", c.Node.ID)
	}
	if !slices.Equal(cur.Inputs, c.Node.Inputs) || !slices.Equal(cur.Outputs, c.Node.Outputs) {
		return integrity(KindRemoveNode, "captured sockets of %s are stale", c.Node.ID)
	}
	if len(c.Sockets) != len(cur.Inputs)+len(cur.Outputs) {
		return integrity(KindRemoveNode, "captured sockets of %s are stale", c.Node.ID)
	}
	for _, s := range c.Sockets {
		if cs, ok := g.sockets[s.ID]; !ok || !reflect.DeepEqual(*cs, s) {
			return integrity(KindRemoveNode, "captured socket %s is stale", s.ID)
		}
	}
	if !sameWireSet(g.NodeWires(c.Node.ID), c.Wires) {
		return integrity(KindRemoveNode, "captured wires of %s are stale", c.Node.ID)
	}
	return nil
}

func (c *RemoveNode) apply(g *Graph) {
	for _, w := range c.Wires {
		g.deleteWire(w.ID)
	}
	g.deleteNode(c.Node.ID)
}

func (c *RemoveNode) touched(*Graph) []NodeID {
	return []NodeID{c.Node.ID}
}

// RemoveNodeCommand captures everything needed to remove node id and undo it.
func (g *Graph) RemoveNodeCommand(id NodeID) (*RemoveNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	cmd := &RemoveNode{Node: n.clone(), Wires: g.NodeWires(id)}
	for _, sid := range slices.Concat(n.Inputs, n.Outputs) {
		cmd.Sockets = append(cmd.Sockets, g.sockets[sid].clone())
	}
	return cmd, nil
}

// NodeMove is one node's position change.
type NodeMove struct {
	Node NodeID `json:"node"`
	From Point  `json:"from"`
	To   Point  `json:"to"`
}

// MoveNodes repositions nodes. Inverting swaps From and To.
type MoveNodes struct {
	Moves []NodeMove `json:"moves"`
}

// Kind implements Command.
func (c *MoveNodes) Kind() CommandKind { return KindMoveNodes }

// Invert implements Command.
func (c *MoveNodes) Invert() Command {
	inv := &MoveNodes{Moves: make([]NodeMove, len(c.Moves))}
	for i, m := range c.Moves {
		inv.Moves[i] = NodeMove{Node: m.Node, From: m.To, To: m.From}
	}
	return inv
}

func (c *MoveNodes) validate(g *Graph, _ TypeRegistry) error {
	for _, m := range c.Moves {
		if !g.HasNode(m.Node) {
			return reject(KindMoveNodes, ReasonMissingEntity, "node %s", m.Node)
		}
	}
	return nil
}

func (c *MoveNodes) apply(g *Graph) {
	for _, m := range c.Moves {
		n := *g.nodes[m.Node]
		n.Position = m.To
		g.nodes[m.Node] = &n
	}
}

func (c *MoveNodes) touched(*Graph) []NodeID { return nil }

func (c *MoveNodes) noop() bool {
	for _, m := range c.Moves {
		if m.From != m.To {
			return false
		}
	}
	return true
}

// merge folds a follow-up move of the same nodes, keeping the first origin.
func (c *MoveNodes) merge(next Command) (Command, bool) {
	n, ok := next.(*MoveNodes)
	if !ok || len(n.Moves) != len(c.Moves) {
		return nil, false
	}
	merged := &MoveNodes{Moves: make([]NodeMove, len(c.Moves))}
	for i, m := range c.Moves {
		if n.Moves[i].Node != m.Node {
			return nil, false
		}
		merged.Moves[i] = NodeMove{Node: m.Node, From: m.From, To: n.Moves[i].To}
	}
	return merged, true
}

// MoveNodesCommand builds a move of each node to its target position.
// Moves are ordered by node id.
func (g *Graph) MoveNodesCommand(targets map[NodeID]Point) (*MoveNodes, error) {
	cmd := &MoveNodes{}
	for _, id := range slices.Sorted(maps.Keys(targets)) {
		n, ok := g.nodes[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		cmd.Moves = append(cmd.Moves, NodeMove{Node: id, From: n.Position, To: targets[id]})
	}
	return cmd, nil
}

// UpdateParams replaces a node's parameter bag.
type UpdateParams struct {
	Node   NodeID `json:"node"`
	Before Params `json:"before"`
	After  Params `json:"after"`
}

// Kind implements Command.
func (c *UpdateParams) Kind() CommandKind { return KindUpdateParams }

// Invert implements Command.
func (c *UpdateParams) Invert() Command {
	return &UpdateParams{Node: c.Node, Before: c.After, After: c.Before}
}

func (c *UpdateParams) validate(g *Graph, reg TypeRegistry) error {
	n, ok := g.nodes[c.Node]
	if !ok {
		return reject(KindUpdateParams, ReasonMissingEntity, "node %s", c.Node)
	}
	return validateParams(reg, KindUpdateParams, n.Type, c.After)
}

func (c *UpdateParams) apply(g *Graph) {
	n := *g.nodes[c.Node]
	n.Params = c.After.Clone()
	g.nodes[c.Node] = &n
}

func (c *UpdateParams) touched(*Graph) []NodeID {
	return []NodeID{c.Node}
}

func (c *UpdateParams) noop() bool {
	return c.Before.Equal(c.After)
}

func (c *UpdateParams) merge(next Command) (Command, bool) {
	n, ok := next.(*UpdateParams)
	if !ok || n.Node != c.Node {
		return nil, false
	}
	return &UpdateParams{Node: c.Node, Before: c.Before, After: n.After}, true
}

// UpdateParamsCommand merges changes into the node's current parameters.
// A nil value deletes the key; a bag left empty becomes nil.
func (g *Graph) UpdateParamsCommand(id NodeID, changes Params) (*UpdateParams, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	after := n.Params.Clone()
	if after == nil {
		after = make(Params, len(changes))
	}
	for k, v := range changes {
		if v == nil {
			delete(after, k)
		} else {
			after[k] = v
		}
	}
	if len(after) == 0 {
		after = nil
	}
	return &UpdateParams{Node: id, Before: n.Params.Clone(), After: after}, nil
}

// NodeIO is the full socket layout of a node.
type NodeIO struct {
	Inputs  []Socket `json:"inputs"`
	Outputs []Socket `json:"outputs"`
}

func (io NodeIO) ids() (inputs, outputs []SocketID) {
	for _, s := range io.Inputs {
		inputs = append(inputs, s.ID)
	}
	for _, s := range io.Outputs {
		outputs = append(outputs, s.ID)
	}
	return inputs, outputs
}

// UpdateNodeIO rebuilds a node's sockets. Removed wires are detached before
// the new layout takes effect and Added wires are attached after it, so a
// node can change shape without leaving dangling wires.
type UpdateNodeIO struct {
	Node    NodeID `json:"node"`
	Before  NodeIO `json:"before"`
	After   NodeIO `json:"after"`
	Removed []Wire `json:"removed,omitempty"`
	Added   []Wire `json:"added,omitempty"`
}

// Kind implements Command.
func (c *UpdateNodeIO) Kind() CommandKind { return KindUpdateNodeIO }

// Invert implements Command.
func (c *UpdateNodeIO) Invert() Command {
	return &UpdateNodeIO{
		Node:    c.Node,
		Before:  c.After,
		After:   c.Before,
		Removed: c.Added,
		Added:   c.Removed,
	}
}

func (c *UpdateNodeIO) validate(g *Graph, reg TypeRegistry) error {
	n, ok := g.nodes[c.Node]
	if !ok {
		return reject(KindUpdateNodeIO, ReasonMissingEntity, "node %s", c.Node)
	}
	beforeIn, beforeOut := c.Before.ids()
	if !slices.Equal(n.Inputs, beforeIn) || !slices.Equal(n.Outputs, beforeOut) {
		return integrity(KindUpdateNodeIO, "captured sockets of %s are stale", c.Node)
	}

	afterIn, afterOut := c.After.ids()
	current := socketSet(*n)
	if err := validateSockets(g, KindUpdateNodeIO, c.Node, afterIn, afterOut,
		slices.Concat(c.After.Inputs, c.After.Outputs), current); err != nil {
		return err
	}

	removed := make(map[WireID]struct{}, len(c.Removed))
	for _, w := range c.Removed {
		cur, ok := g.wires[w.ID]
		if !ok || *cur != w {
			return integrity(KindUpdateNodeIO, "removed wire %s is stale", w.ID)
		}
		removed[w.ID] = struct{}{}
	}
	kept := c.After.socketIDs()
	for _, w := range g.NodeWires(c.Node) {
		if _, ok := removed[w.ID]; ok {
			continue
		}
		if (current.has(w.From) && !kept.has(w.From)) || (current.has(w.To) && !kept.has(w.To)) {
			return integrity(KindUpdateNodeIO, "wire %s would dangle", w.ID)
		}
	}

	scratch := g.clone()
	for _, w := range c.Removed {
		scratch.deleteWire(w.ID)
	}
	scratch.replaceSockets(c.Node, c.After.Inputs, c.After.Outputs)
	if err := checkNodeWires(scratch, reg, c.Node); err != nil {
		return err
	}
	for _, w := range c.Added {
		if err := validateWire(scratch, reg, KindUpdateNodeIO, w); err != nil {
			return err
		}
		scratch.insertWire(w)
	}
	return validateParams(reg, KindUpdateNodeIO, n.Type, n.Params)
}

func (c *UpdateNodeIO) apply(g *Graph) {
	for _, w := range c.Removed {
		g.deleteWire(w.ID)
	}
	g.replaceSockets(c.Node, c.After.Inputs, c.After.Outputs)
	for _, w := range c.Added {
		g.insertWire(w)
	}
}

func (c *UpdateNodeIO) touched(*Graph) []NodeID {
	return []NodeID{c.Node}
}

func (io NodeIO) socketIDs() socketIDSet {
	set := make(socketIDSet, len(io.Inputs)+len(io.Outputs))
	for _, s := range slices.Concat(io.Inputs, io.Outputs) {
		set[s.ID] = struct{}{}
	}
	return set
}

// UpdateNodeIOCommand builds a layout change for node id. Wires attached to
// sockets that disappear from the layout are detached.
func (g *Graph) UpdateNodeIOCommand(id NodeID, inputs, outputs []Socket) (*UpdateNodeIO, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	cmd := &UpdateNodeIO{
		Node:  id,
		After: NodeIO{Inputs: cloneSockets(inputs), Outputs: cloneSockets(outputs)},
	}
	for _, sid := range n.Inputs {
		cmd.Before.Inputs = append(cmd.Before.Inputs, g.sockets[sid].clone())
	}
	for _, sid := range n.Outputs {
		cmd.Before.Outputs = append(cmd.Before.Outputs, g.sockets[sid].clone())
	}
	kept := cmd.After.socketIDs()
	own := socketSet(*n)
	for _, w := range g.NodeWires(id) {
		if (own.has(w.From) && !kept.has(w.From)) || (own.has(w.To) && !kept.has(w.To)) {
			cmd.Removed = append(cmd.Removed, w)
		}
	}
	return cmd, nil
}

// checkNodeWires re-checks type and limit invariants for the wires that
// remain on a node after its sockets changed.
func checkNodeWires(g *Graph, reg TypeRegistry, id NodeID) error {
	for _, w := range g.NodeWires(id) {
		from, to := g.sockets[w.From], g.sockets[w.To]
		if from.Direction != Output || to.Direction != Input {
			return reject(KindUpdateNodeIO, ReasonDirection, "wire %s", w.ID)
		}
		if reg != nil && !reg.IsCompatible(from.DataType, to.DataType) {
			return reject(KindUpdateNodeIO, ReasonTypeMismatch, "wire %s: %s -> %s", w.ID, from.DataType, to.DataType)
		}
		for _, s := range []*Socket{from, to} {
			if limit := s.Limit(); limit != Unbounded && g.connectionCount(s.ID) > limit {
				return reject(KindUpdateNodeIO, ReasonConnectionLimit, "socket %s allows %d", s.ID, limit)
			}
		}
	}
	return nil
}

type socketIDSet map[SocketID]struct{}

func (s socketIDSet) has(id SocketID) bool {
	_, ok := s[id]
	return ok
}

func socketSet(n Node) socketIDSet {
	set := make(socketIDSet, len(n.Inputs)+len(n.Outputs))
	for _, sid := range slices.Concat(n.Inputs, n.Outputs) {
		set[sid] = struct{}{}
	}
	return set
}

func sameWireSet(a, b []Wire) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[WireID]Wire, len(a))
	for _, w := range a {
		set[w.ID] = w
	}
	for _, w := range b {
		if cur, ok := set[w.ID]; !ok || cur != w {
			return false
		}
	}
	return true
}

func cloneSockets(in []Socket) []Socket {
	out := make([]Socket, len(in))
	for i, s := range in {
		out[i] = s.clone()
	}
	return out
}
