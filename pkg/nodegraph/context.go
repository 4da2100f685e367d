package nodegraph

import (
	"context"
	"log/slog"
)

// EvalContext is handed to every evaluator call.
// It extends context.Context with engine metadata and an enriched logger.
//
// The engine imposes no deadline of its own; the context is the one passed
// to Evaluate.
type EvalContext interface {
	context.Context

	// Logger returns a logger enriched with session and node fields.
	// Never returns nil.
	Logger() *slog.Logger

	// SessionID returns the owning session's identifier.
	SessionID() string

	// NodeID returns the node being evaluated.
	NodeID() NodeID

	// NodeType returns the type tag of the node being evaluated.
	NodeType() string
}

// evalContext is the internal implementation of EvalContext.
type evalContext struct {
	context.Context

	logger    *slog.Logger
	sessionID string
	nodeID    NodeID
	nodeType  string
}

// Logger returns the enriched logger.
func (c *evalContext) Logger() *slog.Logger {
	return c.logger
}

// SessionID returns the session identifier.
func (c *evalContext) SessionID() string {
	return c.sessionID
}

// NodeID returns the current node identifier.
func (c *evalContext) NodeID() NodeID {
	return c.nodeID
}

// NodeType returns the current node type.
func (c *evalContext) NodeType() string {
	return c.nodeType
}

// newEvalContext wraps ctx for a single node evaluation.
func newEvalContext(ctx context.Context, logger *slog.Logger, sessionID string, n *Node) *evalContext {
	return &evalContext{
		Context:   ctx,
		logger:    logger.With("node_id", string(n.ID), "node_type", n.Type),
		sessionID: sessionID,
		nodeID:    n.ID,
		nodeType:  n.Type,
	}
}
