package nodegraph

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Frame commands never touch nodes, so none of them invalidates the cache.

// AddFrame inserts a frame.
type AddFrame struct {
	Frame Frame `json:"frame"`
}

// Kind implements Command.
func (c *AddFrame) Kind() CommandKind { return KindAddFrame }

// Invert implements Command.
func (c *AddFrame) Invert() Command { return &RemoveFrame{Frame: c.Frame} }

func (c *AddFrame) validate(g *Graph, _ TypeRegistry) error {
	if c.Frame.ID == "" {
		return reject(KindAddFrame, ReasonMissingEntity, "frame id is empty")
	}
	if _, dup := g.frames[c.Frame.ID]; dup {
		return reject(KindAddFrame, ReasonDuplicateID, "frame %s already exists", c.Frame.ID)
	}
	return validateExposed(g, KindAddFrame, c.Frame)
}

func (c *AddFrame) apply(g *Graph) { g.setFrame(c.Frame) }

func (c *AddFrame) touched(*Graph) []NodeID { return nil }

// RemoveFrame deletes a frame. The nodes inside it are not affected.
type RemoveFrame struct {
	Frame Frame `json:"frame"`
}

// Kind implements Command.
func (c *RemoveFrame) Kind() CommandKind { return KindRemoveFrame }

// Invert implements Command.
func (c *RemoveFrame) Invert() Command { return &AddFrame{Frame: c.Frame} }

func (c *RemoveFrame) validate(g *Graph, _ TypeRegistry) error {
	cur, ok := g.frames[c.Frame.ID]
	if !ok {
		return reject(KindRemoveFrame, ReasonMissingEntity, "frame %s", c.Frame.ID)
	}
	if !reflect.DeepEqual(*cur, c.Frame) {
		return integrity(KindRemoveFrame, "captured frame %s is stale", c.Frame.ID)
	}
	return nil
}

func (c *RemoveFrame) apply(g *Graph) { g.deleteFrame(c.Frame.ID) }

func (c *RemoveFrame) touched(*Graph) []NodeID { return nil }

// RemoveFrameCommand captures frame id for removal.
func (g *Graph) RemoveFrameCommand(id FrameID) (*RemoveFrame, error) {
	f, ok := g.frames[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, id)
	}
	return &RemoveFrame{Frame: f.clone()}, nil
}

// FrameMove is one frame's position change.
type FrameMove struct {
	Frame FrameID `json:"frame"`
	From  Point   `json:"from"`
	To    Point   `json:"to"`
}

// MoveFrames repositions frames.
type MoveFrames struct {
	Moves []FrameMove `json:"moves"`
}

// Kind implements Command.
func (c *MoveFrames) Kind() CommandKind { return KindMoveFrames }

// Invert implements Command.
func (c *MoveFrames) Invert() Command {
	inv := &MoveFrames{Moves: make([]FrameMove, len(c.Moves))}
	for i, m := range c.Moves {
		inv.Moves[i] = FrameMove{Frame: m.Frame, From: m.To, To: m.From}
	}
	return inv
}

func (c *MoveFrames) validate(g *Graph, _ TypeRegistry) error {
	for _, m := range c.Moves {
		if _, ok := g.frames[m.Frame]; !ok {
			return reject(KindMoveFrames, ReasonMissingEntity, "frame %s", m.Frame)
		}
	}
	return nil
}

func (c *MoveFrames) apply(g *Graph) {
	for _, m := range c.Moves {
		f := *g.frames[m.Frame]
		f.Position = m.To
		g.setFrame(f)
	}
}

func (c *MoveFrames) touched(*Graph) []NodeID { return nil }

func (c *MoveFrames) noop() bool {
	for _, m := range c.Moves {
		if m.From != m.To {
			return false
		}
	}
	return true
}

func (c *MoveFrames) merge(next Command) (Command, bool) {
	n, ok := next.(*MoveFrames)
	if !ok || len(n.Moves) != len(c.Moves) {
		return nil, false
	}
	merged := &MoveFrames{Moves: make([]FrameMove, len(c.Moves))}
	for i, m := range c.Moves {
		if n.Moves[i].Frame != m.Frame {
			return nil, false
		}
		merged.Moves[i] = FrameMove{Frame: m.Frame, From: m.From, To: n.Moves[i].To}
	}
	return merged, true
}

// MoveFramesCommand builds a move of each frame to its target position,
// ordered by frame id.
func (g *Graph) MoveFramesCommand(targets map[FrameID]Point) (*MoveFrames, error) {
	cmd := &MoveFrames{}
	for _, id := range slices.Sorted(maps.Keys(targets)) {
		f, ok := g.frames[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, id)
		}
		cmd.Moves = append(cmd.Moves, FrameMove{Frame: id, From: f.Position, To: targets[id]})
	}
	return cmd, nil
}

// UpdateFrame replaces a frame's fields. The id cannot change.
type UpdateFrame struct {
	Before Frame `json:"before"`
	After  Frame `json:"after"`
}

// Kind implements Command.
func (c *UpdateFrame) Kind() CommandKind { return KindUpdateFrame }

// Invert implements Command.
func (c *UpdateFrame) Invert() Command {
	return &UpdateFrame{Before: c.After, After: c.Before}
}

func (c *UpdateFrame) validate(g *Graph, _ TypeRegistry) error {
	cur, ok := g.frames[c.Before.ID]
	if !ok {
		return reject(KindUpdateFrame, ReasonMissingEntity, "frame %s", c.Before.ID)
	}
	if c.After.ID != c.Before.ID {
		return integrity(KindUpdateFrame, "frame id changed from %s to %s", c.Before.ID, c.After.ID)
	}
	if !reflect.DeepEqual(*cur, c.Before) {
		return integrity(KindUpdateFrame, "captured frame %s is stale", c.Before.ID)
	}
	return validateExposed(g, KindUpdateFrame, c.After)
}

func (c *UpdateFrame) apply(g *Graph) { g.setFrame(c.After) }

func (c *UpdateFrame) touched(*Graph) []NodeID { return nil }

func (c *UpdateFrame) noop() bool {
	return reflect.DeepEqual(c.Before, c.After)
}

func (c *UpdateFrame) merge(next Command) (Command, bool) {
	n, ok := next.(*UpdateFrame)
	if !ok || n.Before.ID != c.Before.ID {
		return nil, false
	}
	return &UpdateFrame{Before: c.Before, After: n.After}, true
}

// UpdateFrameCommand builds an update by applying edit to a copy of the
// frame. Resizes, renames, collapsing and exposure changes all go through it.
func (g *Graph) UpdateFrameCommand(id FrameID, edit func(*Frame)) (*UpdateFrame, error) {
	f, ok := g.frames[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, id)
	}
	after := f.clone()
	edit(&after)
	return &UpdateFrame{Before: f.clone(), After: after}, nil
}

// validateExposed checks the direction of exposed sockets. Exposure is a
// soft reference: a socket removed with its node stays listed and is
// skipped by ExposedSockets, so undoing a frame removal never fails on it.
func validateExposed(g *Graph, kind CommandKind, f Frame) error {
	check := func(ids []SocketID, dir Direction) error {
		for _, sid := range ids {
			if s, ok := g.sockets[sid]; ok && s.Direction != dir {
				return reject(kind, ReasonDirection, "exposed %s %s is an %s socket", dir, sid, s.Direction)
			}
		}
		return nil
	}
	if err := check(f.ExposedInputs, Input); err != nil {
		return err
	}
	return check(f.ExposedOutputs, Output)
}
