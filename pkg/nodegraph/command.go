package nodegraph

import "slices"

// CommandKind tags a command variant. The values are part of the
// serialized command format.
type CommandKind string

// Command kinds.
const (
	KindAddNode      CommandKind = "add-node"
	KindRemoveNode   CommandKind = "remove-node"
	KindAddWire      CommandKind = "add-wire"
	KindRemoveWire   CommandKind = "remove-wire"
	KindMoveNodes    CommandKind = "move-nodes"
	KindAddFrame     CommandKind = "add-frame"
	KindRemoveFrame  CommandKind = "remove-frame"
	KindMoveFrames   CommandKind = "move-frames"
	KindUpdateFrame  CommandKind = "update-frame"
	KindUpdateNodeIO CommandKind = "update-node-io"
	KindUpdateParams CommandKind = "update-params"
	KindBatch        CommandKind = "batch"
)

// Command is an invertible, serializable graph mutation.
//
// The set of variants is closed: *AddNode, *RemoveNode, *AddWire,
// *RemoveWire, *MoveNodes, *AddFrame, *RemoveFrame, *MoveFrames,
// *UpdateFrame, *UpdateNodeIO, *UpdateParams and *Batch. Each carries
// enough state to build its own inverse, so undo never snapshots the graph.
type Command interface {
	// Kind returns the variant tag.
	Kind() CommandKind

	// Invert returns the command that undoes this one.
	Invert() Command

	// validate checks the command against g without mutating it.
	validate(g *Graph, reg TypeRegistry) error

	// apply mutates g. It is only called after validate succeeded.
	apply(g *Graph)

	// touched returns the nodes whose outputs the command may change.
	// Their downstream closure is invalidated.
	touched(g *Graph) []NodeID
}

// merger is implemented by commands that can absorb a follow-up command of
// the same shape, so a gesture folds into a single history entry.
type merger interface {
	merge(next Command) (Command, bool)
}

// nooper is implemented by commands that can be identities.
type nooper interface {
	noop() bool
}

// Apply validates cmd against the graph and, if it passes, applies it.
// A rejected command leaves the graph untouched.
func (g *Graph) Apply(cmd Command, reg TypeRegistry) error {
	if cmd == nil {
		return ErrNilCommand
	}
	if err := cmd.validate(g, reg); err != nil {
		return err
	}
	cmd.apply(g)
	g.revision++
	return nil
}

// Batch applies a sequence of commands as one atomic unit. It is inverted
// by replaying the inverses in reverse order.
type Batch struct {
	Label    string
	Commands []Command
}

// NewBatch creates a batch of cmds.
func NewBatch(label string, cmds ...Command) *Batch {
	return &Batch{Label: label, Commands: cmds}
}

// Kind implements Command.
func (b *Batch) Kind() CommandKind { return KindBatch }

// Invert implements Command.
func (b *Batch) Invert() Command {
	inv := make([]Command, len(b.Commands))
	for i, c := range b.Commands {
		inv[len(b.Commands)-1-i] = c.Invert()
	}
	return &Batch{Label: b.Label, Commands: inv}
}

// validate runs every command against a scratch copy so later commands see
// the effects of earlier ones.
func (b *Batch) validate(g *Graph, reg TypeRegistry) error {
	if len(b.Commands) == 0 {
		return nil
	}
	scratch := g.clone()
	for _, c := range b.Commands {
		if c == nil {
			return ErrNilCommand
		}
		if err := c.validate(scratch, reg); err != nil {
			return err
		}
		c.apply(scratch)
	}
	return nil
}

func (b *Batch) apply(g *Graph) {
	for _, c := range b.Commands {
		c.apply(g)
	}
}

func (b *Batch) touched(g *Graph) []NodeID {
	var out []NodeID
	for _, c := range b.Commands {
		if c != nil {
			out = append(out, c.touched(g)...)
		}
	}
	return out
}

func (b *Batch) noop() bool {
	return len(b.Commands) == 0
}

// coalesce folds adjacent mergeable commands and drops identities.
func coalesce(cmds []Command) []Command {
	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		if n := len(out); n > 0 {
			if m, ok := out[n-1].(merger); ok {
				if merged, ok := m.merge(c); ok {
					out[n-1] = merged
					continue
				}
			}
		}
		out = append(out, c)
	}
	return slices.DeleteFunc(out, isNoop)
}

func isNoop(c Command) bool {
	n, ok := c.(nooper)
	return ok && n.noop()
}
