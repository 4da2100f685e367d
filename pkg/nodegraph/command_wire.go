package nodegraph

import "fmt"

// AddWire connects an output socket to an input socket.
type AddWire struct {
	Wire Wire `json:"wire"`
}

// NewAddWire builds an add-wire command with a fresh wire id.
func NewAddWire(from, to SocketID) *AddWire {
	return &AddWire{Wire: Wire{ID: NewWireID(), From: from, To: to}}
}

// Kind implements Command.
func (c *AddWire) Kind() CommandKind { return KindAddWire }

// Invert implements Command.
func (c *AddWire) Invert() Command { return &RemoveWire{Wire: c.Wire} }

func (c *AddWire) validate(g *Graph, reg TypeRegistry) error {
	return validateWire(g, reg, KindAddWire, c.Wire)
}

func (c *AddWire) apply(g *Graph) { g.insertWire(c.Wire) }

// touched returns the consumer node. The producer's outputs are unaffected.
func (c *AddWire) touched(g *Graph) []NodeID {
	if s, ok := g.sockets[c.Wire.To]; ok {
		return []NodeID{s.Node}
	}
	return nil
}

// RemoveWire disconnects a wire. Build it with Graph.RemoveWireCommand.
type RemoveWire struct {
	Wire Wire `json:"wire"`
}

// Kind implements Command.
func (c *RemoveWire) Kind() CommandKind { return KindRemoveWire }

// Invert implements Command.
func (c *RemoveWire) Invert() Command { return &AddWire{Wire: c.Wire} }

func (c *RemoveWire) validate(g *Graph, _ TypeRegistry) error {
	cur, ok := g.wires[c.Wire.ID]
	if !ok {
		return reject(KindRemoveWire, ReasonMissingEntity, "wire %s", c.Wire.ID)
	}
	if *cur != c.Wire {
		return integrity(KindRemoveWire, "wire %s endpoints are stale", c.Wire.ID)
	}
	return nil
}

func (c *RemoveWire) apply(g *Graph) { g.deleteWire(c.Wire.ID) }

func (c *RemoveWire) touched(g *Graph) []NodeID {
	if s, ok := g.sockets[c.Wire.To]; ok {
		return []NodeID{s.Node}
	}
	return nil
}

// RemoveWireCommand captures wire id for removal.
func (g *Graph) RemoveWireCommand(id WireID) (*RemoveWire, error) {
	w, ok := g.wires[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWireNotFound, id)
	}
	return &RemoveWire{Wire: *w}, nil
}

// DisconnectCommand removes every wire incident to a socket as one batch.
func (g *Graph) DisconnectCommand(id SocketID) (*Batch, error) {
	if _, ok := g.sockets[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSocketNotFound, id)
	}
	b := NewBatch("disconnect")
	for _, w := range g.SocketWires(id) {
		b.Commands = append(b.Commands, &RemoveWire{Wire: w})
	}
	return b, nil
}
