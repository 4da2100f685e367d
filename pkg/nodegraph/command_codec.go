package nodegraph

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire form of a command: its kind tag plus its payload.
type envelope struct {
	Kind    CommandKind     `json:"kind"`
	Command json.RawMessage `json:"command"`
}

// MarshalCommand encodes cmd as a {"kind": ..., "command": ...} document.
func MarshalCommand(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, ErrNilCommand
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", cmd.Kind(), err)
	}
	return json.Marshal(envelope{Kind: cmd.Kind(), Command: payload})
}

// UnmarshalCommand decodes a document produced by MarshalCommand.
func UnmarshalCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal command envelope: %w", err)
	}
	cmd, err := newCommand(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Command, cmd); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
	}
	return cmd, nil
}

// newCommand returns a zero command of the given kind.
func newCommand(kind CommandKind) (Command, error) {
	switch kind {
	case KindAddNode:
		return &AddNode{}, nil
	case KindRemoveNode:
		return &RemoveNode{}, nil
	case KindAddWire:
		return &AddWire{}, nil
	case KindRemoveWire:
		return &RemoveWire{}, nil
	case KindMoveNodes:
		return &MoveNodes{}, nil
	case KindAddFrame:
		return &AddFrame{}, nil
	case KindRemoveFrame:
		return &RemoveFrame{}, nil
	case KindMoveFrames:
		return &MoveFrames{}, nil
	case KindUpdateFrame:
		return &UpdateFrame{}, nil
	case KindUpdateNodeIO:
		return &UpdateNodeIO{}, nil
	case KindUpdateParams:
		return &UpdateParams{}, nil
	case KindBatch:
		return &Batch{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
}

type batchJSON struct {
	Label    string            `json:"label,omitempty"`
	Commands []json.RawMessage `json:"commands"`
}

// MarshalJSON encodes the nested commands as envelopes.
func (b *Batch) MarshalJSON() ([]byte, error) {
	out := batchJSON{Label: b.Label, Commands: make([]json.RawMessage, 0, len(b.Commands))}
	for _, c := range b.Commands {
		data, err := MarshalCommand(c)
		if err != nil {
			return nil, err
		}
		out.Commands = append(out.Commands, data)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the nested command envelopes.
func (b *Batch) UnmarshalJSON(data []byte) error {
	var in batchJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b.Label = in.Label
	b.Commands = make([]Command, 0, len(in.Commands))
	for _, raw := range in.Commands {
		c, err := UnmarshalCommand(raw)
		if err != nil {
			return err
		}
		b.Commands = append(b.Commands, c)
	}
	return nil
}
