package query

import (
	"context"
	"fmt"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph"
)

// Built-in query names.
const (
	QueryOutput     = "output"     // Cached outputs of one node
	QueryError      = "error"      // Recorded evaluation error of one node, or nil
	QueryUpstream   = "upstream"   // Upstream closure of one or more nodes
	QueryDownstream = "downstream" // Downstream closure of one or more nodes
	QueryDirty      = "dirty"      // Nodes awaiting evaluation
	QueryBypassed   = "bypassed"   // Bypassed nodes
	QueryStats      = "stats"      // Entity counts
	QueryHistory    = "history"    // Undo and redo availability
)

// HistoryState is the result of the history query.
type HistoryState struct {
	CanUndo   bool   `json:"can_undo"`
	CanRedo   bool   `json:"can_redo"`
	UndoLabel string `json:"undo_label,omitempty"`
	RedoLabel string `json:"redo_label,omitempty"`
}

// Builtins returns the standard queries.
func Builtins() []Query {
	return []Query{
		{
			Name:        QueryOutput,
			Description: "cached outputs of one node",
			Args:        OneNode,
			Run: func(_ context.Context, t Target, a Args) (any, error) {
				out, ok := t.OutputCache(a.Node())
				if !ok {
					return nil, fmt.Errorf("%w: %s", ErrNotEvaluated, a.Node())
				}
				return out, nil
			},
		},
		{
			Name:        QueryError,
			Description: "recorded evaluation error of one node, or null",
			Args:        OneNode,
			Run: func(_ context.Context, t Target, a Args) (any, error) {
				if err := t.NodeError(a.Node()); err != nil {
					return err.Error(), nil
				}
				return nil, nil
			},
		},
		{
			Name:        QueryUpstream,
			Description: "nodes the given nodes depend on, including themselves",
			Args:        NodeList,
			Run: func(_ context.Context, t Target, a Args) (any, error) {
				return t.UpstreamClosure(a.Nodes...).Sorted(), nil
			},
		},
		{
			Name:        QueryDownstream,
			Description: "nodes that depend on the given nodes, including themselves",
			Args:        NodeList,
			Run: func(_ context.Context, t Target, a Args) (any, error) {
				return t.DownstreamClosure(a.Nodes...).Sorted(), nil
			},
		},
		{
			Name:        QueryDirty,
			Description: "nodes awaiting evaluation",
			Run: func(_ context.Context, t Target, _ Args) (any, error) {
				return t.Dirty().Sorted(), nil
			},
		},
		{
			Name:        QueryBypassed,
			Description: "bypassed nodes",
			Run: func(_ context.Context, t Target, _ Args) (any, error) {
				return t.Bypassed(), nil
			},
		},
		{
			Name:        QueryStats,
			Description: "node, socket, wire and frame counts",
			Run: func(_ context.Context, t Target, _ Args) (any, error) {
				return t.Stats(), nil
			},
		},
		{
			Name:        QueryHistory,
			Description: "undo and redo availability",
			Run: func(_ context.Context, t Target, _ Args) (any, error) {
				h := HistoryState{CanUndo: t.CanUndo(), CanRedo: t.CanRedo()}
				h.UndoLabel, _ = t.UndoLabel()
				h.RedoLabel, _ = t.RedoLabel()
				return h, nil
			},
		},
	}
}

// RegisterBuiltins registers every query from Builtins.
func RegisterBuiltins(registry *Registry) error {
	for _, q := range Builtins() {
		if err := registry.Register(q); err != nil {
			return fmt.Errorf("register builtin query: %w", err)
		}
	}
	return nil
}

// nodeArg accepts a single node id as a string or nodegraph.NodeID.
func nodeArg(args any) (nodegraph.NodeID, error) {
	switch v := args.(type) {
	case string:
		if v != "" {
			return nodegraph.NodeID(v), nil
		}
	case nodegraph.NodeID:
		if v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: want a node id, got %T", ErrInvalidArgs, args)
}

// nodeArgs accepts one node id or a list of them.
func nodeArgs(args any) ([]nodegraph.NodeID, error) {
	switch v := args.(type) {
	case []nodegraph.NodeID:
		return v, nil
	case []string:
		ids := make([]nodegraph.NodeID, len(v))
		for i, s := range v {
			ids[i] = nodegraph.NodeID(s)
		}
		return ids, nil
	case []any:
		ids := make([]nodegraph.NodeID, 0, len(v))
		for _, item := range v {
			id, err := nodeArg(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		id, err := nodeArg(args)
		if err != nil {
			return nil, err
		}
		return []nodegraph.NodeID{id}, nil
	}
}
