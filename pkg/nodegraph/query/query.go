// Package query provides named read-only queries over nodegraph sessions.
//
// Queries inspect a session's graph and derived state without modifying
// it. They are synchronous and return a result immediately. Editors and
// debugging tools use them to fetch node outputs, errors and closures by
// name, e.g. over an RPC boundary where the caller only has strings.
//
// A Session is not safe for concurrent use, so queries must run on the
// goroutine that owns the target session. The Registry itself is safe for
// concurrent use.
package query

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph"
)

// Target is the read-only view of a session that queries run against.
// *nodegraph.Session implements it.
type Target interface {
	ID() string
	OutputCache(id nodegraph.NodeID) (nodegraph.Values, bool)
	NodeError(id nodegraph.NodeID) error
	UpstreamClosure(starts ...nodegraph.NodeID) nodegraph.NodeSet
	DownstreamClosure(starts ...nodegraph.NodeID) nodegraph.NodeSet
	Dirty() nodegraph.NodeSet
	Bypassed() []nodegraph.NodeID
	Stats() nodegraph.Stats
	CanUndo() bool
	CanRedo() bool
	UndoLabel() (string, bool)
	RedoLabel() (string, bool)
}

var _ Target = (*nodegraph.Session)(nil)

// ArgKind says which arguments a query takes. The executor decodes raw
// arguments before the handler runs, so handlers never type-switch.
type ArgKind int

const (
	// NoArgs ignores whatever the caller passed.
	NoArgs ArgKind = iota
	// OneNode takes a single node id as a string or nodegraph.NodeID.
	OneNode
	// NodeList takes one node id or a list of them ([]string, []any or
	// []nodegraph.NodeID).
	NodeList
)

// Args are the decoded arguments of one query call.
type Args struct {
	Nodes []nodegraph.NodeID
}

// Node returns the first node argument, or "" when there is none.
func (a Args) Node() nodegraph.NodeID {
	if len(a.Nodes) == 0 {
		return ""
	}
	return a.Nodes[0]
}

// Handler computes a query result. Handlers must not modify the target.
type Handler func(ctx context.Context, target Target, args Args) (any, error)

// Query is a named, described read-only view of a session.
type Query struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Args        ArgKind `json:"args"`
	Run         Handler `json:"-"`
}

// Registry holds queries by name. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	queries map[string]Query
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{queries: make(map[string]Query)}
}

// Register adds q. Names are unique.
func (r *Registry) Register(q Query) error {
	if q.Name == "" {
		return errors.New("query name is required")
	}
	if q.Run == nil {
		return fmt.Errorf("query %q: handler is required", q.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.queries[q.Name]; dup {
		return fmt.Errorf("query %q already registered", q.Name)
	}
	r.queries[q.Name] = q
	return nil
}

// MustRegister is Register for init-time setup; it panics on error.
func (r *Registry) MustRegister(q Query) {
	if err := r.Register(q); err != nil {
		panic(err)
	}
}

// Get returns the query registered under name.
func (r *Registry) Get(name string) (Query, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queries[name]
	return q, ok
}

// List returns every registered query sorted by name, for discovery by
// editor front ends.
func (r *Registry) List() []Query {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Query, 0, len(r.queries))
	for _, name := range slices.Sorted(maps.Keys(r.queries)) {
		out = append(out, r.queries[name])
	}
	return out
}

// Unregister removes the query registered under name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queries, name)
}

// Sentinel errors for query execution.
var (
	ErrQueryNotFound  = errors.New("query not found")
	ErrTargetNotFound = errors.New("target not found")
	ErrInvalidArgs    = errors.New("invalid query arguments")

	// ErrNotEvaluated is returned by the output query for a node without
	// cached outputs.
	ErrNotEvaluated = errors.New("node has no cached outputs")
)

// TargetLoader resolves a target id to a session.
type TargetLoader func(ctx context.Context, targetID string) (Target, error)

// Sessions returns a TargetLoader over a fixed set of sessions, keyed by
// session id.
func Sessions(sessions ...*nodegraph.Session) TargetLoader {
	byID := make(map[string]Target, len(sessions))
	for _, s := range sessions {
		byID[s.ID()] = s
	}
	return func(_ context.Context, targetID string) (Target, error) {
		t, ok := byID[targetID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
		}
		return t, nil
	}
}

// Executor runs queries against targets.
type Executor struct {
	registry *Registry
	loader   TargetLoader
}

// NewExecutor creates a new query executor.
func NewExecutor(registry *Registry, loader TargetLoader) *Executor {
	return &Executor{
		registry: registry,
		loader:   loader,
	}
}

// Execute decodes args for the named query and runs it against the target.
func (e *Executor) Execute(ctx context.Context, targetID, queryName string, args any) (any, error) {
	if targetID == "" {
		return nil, errors.New("target ID is required")
	}
	if queryName == "" {
		return nil, errors.New("query name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, ok := e.registry.Get(queryName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, queryName)
	}
	decoded, err := decodeArgs(q.Args, args)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", queryName, err)
	}

	target, err := e.loader(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}
	return q.Run(ctx, target, decoded)
}

func decodeArgs(kind ArgKind, raw any) (Args, error) {
	switch kind {
	case OneNode:
		id, err := nodeArg(raw)
		if err != nil {
			return Args{}, err
		}
		return Args{Nodes: []nodegraph.NodeID{id}}, nil
	case NodeList:
		ids, err := nodeArgs(raw)
		if err != nil {
			return Args{}, err
		}
		return Args{Nodes: ids}, nil
	default:
		return Args{}, nil
	}
}

// Result wraps a query result with metadata.
type Result struct {
	// QueryName is the query that was executed.
	QueryName string `json:"query_name"`

	// TargetID is the target that was queried.
	TargetID string `json:"target_id"`

	// Value is the query result.
	Value any `json:"value"`

	// Error contains error details if the query failed.
	Error string `json:"error,omitempty"`
}

// ExecuteMultiple runs multiple queries against a target.
// Returns results for all queries, including any that failed, ordered by
// query name.
func (e *Executor) ExecuteMultiple(ctx context.Context, targetID string, queries map[string]any) []Result {
	results := make([]Result, 0, len(queries))

	for _, queryName := range slices.Sorted(maps.Keys(queries)) {
		result := Result{
			QueryName: queryName,
			TargetID:  targetID,
		}

		value, err := e.Execute(ctx, targetID, queryName, queries[queryName])
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Value = value
		}

		results = append(results, result)
	}

	return results
}
