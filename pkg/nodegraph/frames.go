package nodegraph

import (
	"maps"
	"slices"
)

// frameMemo caches FrameParents for one frame revision.
type frameMemo struct {
	revision uint64
	parents  map[FrameID]FrameID
}

// FrameParents derives frame nesting from geometry. A frame's parent is the
// smallest other frame that contains its whole rectangle; frames with no
// container are absent from the result. Identical rectangles never nest.
//
// The result is memoized until the next frame mutation and must be treated
// as read-only.
func FrameParents(g *Graph) map[FrameID]FrameID {
	if m := g.frameMemo; m != nil && m.revision == g.frameRevision {
		return m.parents
	}

	ids := slices.Sorted(maps.Keys(g.frames))
	parents := make(map[FrameID]FrameID)
	for _, child := range ids {
		c := g.frames[child]
		var best *Frame
		for _, candidate := range ids {
			if candidate == child {
				continue
			}
			p := g.frames[candidate]
			if !strictlyContains(*p, *c) {
				continue
			}
			if best == nil || area(*p) < area(*best) {
				best = p
			}
		}
		if best != nil {
			parents[child] = best.ID
		}
	}

	g.frameMemo = &frameMemo{revision: g.frameRevision, parents: parents}
	return parents
}

// NodesInFrame returns the nodes whose position lies inside the frame,
// ordered by id.
func NodesInFrame(g *Graph, id FrameID) []NodeID {
	f, ok := g.frames[id]
	if !ok {
		return nil
	}
	var out []NodeID
	for _, nid := range g.NodeIDs() {
		if f.Contains(g.nodes[nid].Position) {
			out = append(out, nid)
		}
	}
	return out
}

// ExposedSockets returns the frame's exposed sockets that still resolve.
func ExposedSockets(g *Graph, id FrameID) (inputs, outputs []Socket) {
	f, ok := g.frames[id]
	if !ok {
		return nil, nil
	}
	for _, sid := range f.ExposedInputs {
		if s, ok := g.sockets[sid]; ok {
			inputs = append(inputs, s.clone())
		}
	}
	for _, sid := range f.ExposedOutputs {
		if s, ok := g.sockets[sid]; ok {
			outputs = append(outputs, s.clone())
		}
	}
	return inputs, outputs
}

func strictlyContains(outer, inner Frame) bool {
	if outer.Position == inner.Position && outer.Size == inner.Size {
		return false
	}
	return outer.Contains(inner.Position) &&
		outer.Contains(Point{X: inner.Position.X + inner.Size.Width, Y: inner.Position.Y + inner.Size.Height})
}

func area(f Frame) float64 {
	return f.Size.Width * f.Size.Height
}
