package nodegraph

import (
	"maps"
	"reflect"
	"slices"
)

// Direction is the side of a node a socket sits on.
type Direction string

// Socket directions.
const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Point is an opaque 2D position. The engine stores it but never
// interprets it, except for frame containment.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is the extent of a frame.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Params is a node's parameter bag. Opaque to the engine; the registry may
// validate it against a schema.
type Params map[string]any

// Clone returns a shallow copy of p. A nil bag stays nil.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Equal reports whether p and q hold the same entries. Nil and empty bags
// are equal.
func (p Params) Equal(q Params) bool {
	if len(p) == 0 && len(q) == 0 {
		return true
	}
	return reflect.DeepEqual(p, q)
}

// Values maps socket names to values. Evaluator inputs and outputs both use it.
type Values map[string]any

// Node is a single operation in the graph.
type Node struct {
	ID       NodeID     `json:"id" yaml:"id"`
	Type     string     `json:"type" yaml:"type"`
	Position Point      `json:"position" yaml:"position"`
	Params   Params     `json:"params,omitempty" yaml:"params,omitempty"`
	Inputs   []SocketID `json:"inputs" yaml:"inputs"`
	Outputs  []SocketID `json:"outputs" yaml:"outputs"`
}

func (n Node) equal(o Node) bool {
	return n.ID == o.ID && n.Type == o.Type && n.Position == o.Position &&
		n.Params.Equal(o.Params) &&
		slices.Equal(n.Inputs, o.Inputs) && slices.Equal(n.Outputs, o.Outputs)
}

func (n Node) clone() Node {
	n.Params = n.Params.Clone()
	n.Inputs = cloneSlice(n.Inputs)
	n.Outputs = cloneSlice(n.Outputs)
	return n
}

// SocketMeta carries display and validation hints. The evaluator ignores it.
type SocketMeta struct {
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step   *float64 `json:"step,omitempty" yaml:"step,omitempty"`
	Format string   `json:"format,omitempty" yaml:"format,omitempty"`
	Unit   string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Unbounded is a MaxConnections value that lifts the connection limit.
const Unbounded = -1

// Socket is a typed connection point owned by exactly one node.
type Socket struct {
	ID        SocketID  `json:"id" yaml:"id"`
	Node      NodeID    `json:"node" yaml:"node"`
	Name      string    `json:"name" yaml:"name"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	Direction Direction `json:"direction" yaml:"direction"`
	DataType  string    `json:"dataType" yaml:"dataType"`
	Required  bool      `json:"required,omitempty" yaml:"required,omitempty"`

	// MinConnections is a hint for editors; it is not enforced.
	MinConnections int `json:"minConnections,omitempty" yaml:"minConnections,omitempty"`

	// MaxConnections bounds incident wires. Zero selects the default
	// (1 for inputs, unbounded for outputs); negative means unbounded.
	MaxConnections int `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`

	Meta *SocketMeta `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Limit resolves MaxConnections. It returns -1 when the socket is unbounded.
func (s Socket) Limit() int {
	switch {
	case s.MaxConnections > 0:
		return s.MaxConnections
	case s.MaxConnections < 0:
		return Unbounded
	case s.Direction == Input:
		return 1
	default:
		return Unbounded
	}
}

func (s Socket) clone() Socket {
	if s.Meta != nil {
		m := *s.Meta
		s.Meta = &m
	}
	return s
}

// Wire is a directed edge from an output socket to an input socket.
type Wire struct {
	ID   WireID   `json:"id" yaml:"id"`
	From SocketID `json:"from" yaml:"from"`
	To   SocketID `json:"to" yaml:"to"`
}

// Frame is a visual grouping. Frames are flat in the store; nesting is
// derived from geometry by FrameParents.
type Frame struct {
	ID             FrameID    `json:"id" yaml:"id"`
	Title          string     `json:"title" yaml:"title"`
	Position       Point      `json:"position" yaml:"position"`
	Size           Size       `json:"size" yaml:"size"`
	Collapsed      bool       `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
	ExposedInputs  []SocketID `json:"exposedInputs,omitempty" yaml:"exposedInputs,omitempty"`
	ExposedOutputs []SocketID `json:"exposedOutputs,omitempty" yaml:"exposedOutputs,omitempty"`
}

func (f Frame) clone() Frame {
	f.ExposedInputs = cloneSlice(f.ExposedInputs)
	f.ExposedOutputs = cloneSlice(f.ExposedOutputs)
	return f
}

// Contains reports whether p lies inside the frame's rectangle.
func (f Frame) Contains(p Point) bool {
	return p.X >= f.Position.X && p.X <= f.Position.X+f.Size.Width &&
		p.Y >= f.Position.Y && p.Y <= f.Position.Y+f.Size.Height
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
