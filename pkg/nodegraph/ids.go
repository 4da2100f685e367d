package nodegraph

import (
	"strings"

	"github.com/google/uuid"
)

// NodeID identifies a node. Generated ids carry the "node:" prefix.
type NodeID string

// SocketID identifies a socket. Socket ids are derived from their owning
// node id, so they stay stable when a node's sockets are rebuilt.
type SocketID string

// WireID identifies a wire. Generated ids carry the "wire:" prefix.
type WireID string

// FrameID identifies a frame. Generated ids carry the "frame:" prefix.
type FrameID string

// ID namespace prefixes.
const (
	nodePrefix  = "node:"
	wirePrefix  = "wire:"
	framePrefix = "frame:"
)

// NewNodeID returns a fresh, globally unique node id.
func NewNodeID() NodeID {
	return NodeID(nodePrefix + uuid.NewString())
}

// NewWireID returns a fresh, globally unique wire id.
func NewWireID() WireID {
	return WireID(wirePrefix + uuid.NewString())
}

// NewFrameID returns a fresh, globally unique frame id.
func NewFrameID() FrameID {
	return FrameID(framePrefix + uuid.NewString())
}

// NewSocketID derives the id of the socket named name on node.
//
//	NewSocketID("node:1", Input, "a") == "node:1/in/a"
func NewSocketID(node NodeID, dir Direction, name string) SocketID {
	var b strings.Builder
	b.Grow(len(node) + len(name) + 5)
	b.WriteString(string(node))
	if dir == Output {
		b.WriteString("/out/")
	} else {
		b.WriteString("/in/")
	}
	b.WriteString(name)
	return SocketID(b.String())
}
