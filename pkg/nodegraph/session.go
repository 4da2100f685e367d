package nodegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/nodegraph/pkg/nodegraph/observability"
)

// ChangeKind says what produced a Change.
type ChangeKind string

// Change kinds.
const (
	ChangeApply   ChangeKind = "apply"
	ChangeUndo    ChangeKind = "undo"
	ChangeRedo    ChangeKind = "redo"
	ChangeCancel  ChangeKind = "cancel"
	ChangeLoad    ChangeKind = "load"
	ChangeRefresh ChangeKind = "refresh"
	ChangeBypass  ChangeKind = "bypass"
)

// Change describes an accepted mutation, delivered to OnChange listeners.
type Change struct {
	Kind ChangeKind
	// Command is the applied command. Nil for load, refresh and bypass.
	Command Command
	// Dirtied is the set of nodes whose cached outputs were discarded.
	Dirtied NodeSet
}

// Session owns one editable graph: the store, its undo history, the output
// cache and the bypass set. Every mutation goes through it so the cache can
// never observe a graph it was not invalidated for.
//
// Session is NOT safe for concurrent use. Drive it from one goroutine,
// typically the editor's event loop.
type Session struct {
	id       string
	reg      TypeRegistry
	graph    *Graph
	cache    *Cache
	history  history
	bypassed NodeSet

	logger          *slog.Logger
	metrics         observability.MetricsRecorder
	spans           observability.SpanManager
	tracingEnabled  bool
	checkInvariants bool
	recoverPanics   bool
	cfg             sessionConfig

	listeners []func(Change)
}

// NewSession creates a session with an empty graph. reg resolves data type
// compatibility and node evaluators; it must not be nil.
//
// Example:
//
//	s := nodegraph.NewSession(catalog.Builtin(),
//	    nodegraph.WithLogger(logger),
//	    nodegraph.WithHistoryLimit(100),
//	)
func NewSession(reg TypeRegistry, opts ...SessionOption) *Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}

	return &Session{
		id:              cfg.id,
		reg:             reg,
		graph:           NewGraph(),
		cache:           NewCache(),
		history:         history{limit: cfg.historyLimit},
		bypassed:        make(NodeSet),
		logger:          observability.EnrichLogger(cfg.logger, cfg.id),
		metrics:         cfg.metrics,
		spans:           cfg.spans,
		tracingEnabled:  cfg.tracingEnabled,
		checkInvariants: cfg.checkInvariants,
		recoverPanics:   cfg.recoverPanics,
		cfg:             cfg,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Graph returns the session's graph for reading. Mutate it only through
// the session; applying commands to it directly desynchronizes the cache.
func (s *Session) Graph() *Graph { return s.graph }

// Registry returns the type registry the session validates against.
func (s *Session) Registry() TypeRegistry { return s.reg }

// OnChange registers fn to run after every accepted mutation, undo, redo,
// load, refresh and bypass toggle. It returns a function that removes fn.
// Listeners run synchronously and must not mutate the session.
func (s *Session) OnChange(fn func(Change)) (remove func()) {
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	return func() {
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

func (s *Session) notify(c Change) {
	for _, fn := range s.listeners {
		if fn != nil {
			fn(c)
		}
	}
}

// Apply validates and applies cmd and records it for undo, clearing the
// redo stack. Inside a batch the command joins the batch instead.
//
// The graph is untouched when an error is returned: a *RejectedError for a
// failed validation check, an *IntegrityError for a stale payload.
func (s *Session) Apply(cmd Command) error {
	if err := s.apply(cmd, ChangeApply, true); err != nil {
		return err
	}
	s.record(cmd)
	return nil
}

// ApplyTransient validates and applies cmd without recording it. Use it for
// the intermediate steps of a gesture. Inside a batch the command still
// joins the batch so CommitBatch can fold it.
func (s *Session) ApplyTransient(cmd Command) error {
	if err := s.apply(cmd, ChangeApply, false); err != nil {
		return err
	}
	if s.history.batch != nil {
		s.history.batch.cmds = append(s.history.batch.cmds, cmd)
	}
	return nil
}

// Record pushes an already applied command onto the undo stack without
// applying it again, e.g. a gesture's net effect applied transiently.
// It returns ErrBatchInProgress while a batch is open: transient steps
// already join the batch, and CommitBatch records their net effect.
func (s *Session) Record(cmd Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	if s.history.batch != nil {
		return ErrBatchInProgress
	}
	s.record(cmd)
	return nil
}

func (s *Session) record(cmd Command) {
	if s.history.batch != nil {
		s.history.batch.cmds = append(s.history.batch.cmds, cmd)
		return
	}
	s.history.push(entry{label: entryLabel("", cmd), cmd: cmd})
}

// BeginBatch opens a batch. Commands applied until CommitBatch fold into a
// single undo entry labelled label.
func (s *Session) BeginBatch(label string) error {
	if s.history.batch != nil {
		return ErrBatchInProgress
	}
	s.history.batch = &openBatch{label: label, baseline: s.graph.clone()}
	return nil
}

// InBatch reports whether a batch is open.
func (s *Session) InBatch() bool {
	return s.history.batch != nil
}

// CommitBatch closes the open batch. Adjacent moves and updates of the same
// targets are merged; if the graph ends where it started, nothing is
// recorded. It reports whether an undo entry was created.
func (s *Session) CommitBatch() (bool, error) {
	b := s.history.batch
	if b == nil {
		return false, ErrNoBatch
	}
	s.history.batch = nil

	cmds := coalesce(b.cmds)
	if len(cmds) == 0 || s.graph.Equal(b.baseline) {
		observability.LogBatchCommitted(s.logger, b.label, 0)
		return false, nil
	}

	var cmd Command = NewBatch(b.label, cmds...)
	if len(cmds) == 1 {
		cmd = cmds[0]
	}
	s.history.push(entry{label: entryLabel(b.label, cmd), cmd: cmd})
	observability.LogBatchCommitted(s.logger, b.label, len(cmds))
	return true, nil
}

// CancelBatch reverts every command applied since BeginBatch and closes the
// batch without recording anything.
func (s *Session) CancelBatch() error {
	b := s.history.batch
	if b == nil {
		return ErrNoBatch
	}
	s.history.batch = nil
	if len(b.cmds) == 0 {
		return nil
	}
	return s.apply(NewBatch(b.label, b.cmds...).Invert(), ChangeCancel, false)
}

// Undo reverts the newest undo entry and moves it to the redo stack.
func (s *Session) Undo() error {
	if s.history.batch != nil {
		return ErrBatchInProgress
	}
	e, ok := s.history.peekUndo()
	if !ok {
		return ErrNothingToUndo
	}
	if err := s.apply(e.cmd.Invert(), ChangeUndo, false); err != nil {
		return fmt.Errorf("undo %s: %w", e.label, err)
	}
	s.history.undone()
	s.metrics.RecordHistory(context.Background(), string(ChangeUndo))
	observability.LogHistory(s.logger, string(ChangeUndo), e.label)
	return nil
}

// Redo re-applies the newest redo entry and moves it back to the undo stack.
func (s *Session) Redo() error {
	if s.history.batch != nil {
		return ErrBatchInProgress
	}
	e, ok := s.history.peekRedo()
	if !ok {
		return ErrNothingToRedo
	}
	if err := s.apply(e.cmd, ChangeRedo, false); err != nil {
		return fmt.Errorf("redo %s: %w", e.label, err)
	}
	s.history.redone()
	s.metrics.RecordHistory(context.Background(), string(ChangeRedo))
	observability.LogHistory(s.logger, string(ChangeRedo), e.label)
	return nil
}

// CanUndo reports whether Undo has an entry to revert.
func (s *Session) CanUndo() bool {
	return s.history.batch == nil && len(s.history.undo) > 0
}

// CanRedo reports whether Redo has an entry to re-apply.
func (s *Session) CanRedo() bool {
	return s.history.batch == nil && len(s.history.redo) > 0
}

// UndoLabel returns the label of the entry Undo would revert.
func (s *Session) UndoLabel() (string, bool) {
	e, ok := s.history.peekUndo()
	return e.label, ok
}

// RedoLabel returns the label of the entry Redo would re-apply.
func (s *Session) RedoLabel() (string, bool) {
	e, ok := s.history.peekRedo()
	return e.label, ok
}

// UndoDepth returns the number of undo entries.
func (s *Session) UndoDepth() int {
	return len(s.history.undo)
}

// ClearHistory drops both stacks. An open batch is unaffected.
func (s *Session) ClearHistory() {
	s.history.reset()
}

// apply validates and applies cmd, then invalidates the downstream closure
// of every node the command touches, measured before and after the change.
func (s *Session) apply(cmd Command, kind ChangeKind, recorded bool) error {
	if cmd == nil {
		return ErrNilCommand
	}
	ctx := context.Background()

	affected := DownstreamClosure(s.graph, cmd.touched(s.graph)...)
	if err := s.graph.Apply(cmd, s.reg); err != nil {
		s.metrics.RecordCommand(ctx, string(cmd.Kind()), false)
		s.logFailure(cmd, err)
		return err
	}
	affected.Union(DownstreamClosure(s.graph, cmd.touched(s.graph)...))

	for id := range affected {
		if !s.graph.HasNode(id) {
			s.cache.Purge(id)
			delete(s.bypassed, id)
			delete(affected, id)
		}
	}
	s.cache.Invalidate(affected)

	s.metrics.RecordCommand(ctx, string(cmd.Kind()), true)
	s.metrics.RecordInvalidation(ctx, affected.Len())
	observability.LogCommandApplied(s.logger, string(cmd.Kind()), recorded, affected.Len())

	if s.checkInvariants {
		if err := s.graph.CheckIntegrity(s.reg); err != nil {
			observability.LogIntegrityViolation(s.logger, string(cmd.Kind()), err)
			panic(fmt.Sprintf("nodegraph: %s broke the store: %v", cmd.Kind(), err))
		}
	}

	s.notify(Change{Kind: kind, Command: cmd, Dirtied: affected})
	return nil
}

func (s *Session) logFailure(cmd Command, err error) {
	var rej *RejectedError
	switch {
	case errors.As(err, &rej):
		observability.LogCommandRejected(s.logger, string(cmd.Kind()), string(rej.Reason), err)
	case errors.Is(err, ErrIntegrity):
		observability.LogIntegrityViolation(s.logger, string(cmd.Kind()), err)
	default:
		observability.LogCommandRejected(s.logger, string(cmd.Kind()), "", err)
	}
}

// Evaluate recomputes the dirty region of the graph. See the package-level
// Evaluate for the algorithm.
func (s *Session) Evaluate(ctx context.Context) (*Report, error) {
	opts := []EvalOption{
		WithEvalLogger(s.logger),
		WithEvalMetrics(s.metrics),
		WithEvalSessionID(s.id),
		WithBypassed(s.bypassed),
		WithPanicRecovery(s.recoverPanics),
		WithSlowNodeThreshold(s.cfg.slowNode),
	}
	if s.tracingEnabled {
		opts = append(opts, WithEvalSpans(s.spans))
	}
	return Evaluate(ctx, s.graph, s.reg, s.cache, opts...)
}

// OutputCache returns the cached outputs of a node, keyed by socket name.
func (s *Session) OutputCache(id NodeID) (Values, bool) {
	return s.cache.Outputs(id)
}

// NodeError returns the error recorded by the node's last evaluation.
func (s *Session) NodeError(id NodeID) error {
	return s.cache.Err(id)
}

// IsDirty reports whether the node needs re-evaluation.
func (s *Session) IsDirty(id NodeID) bool {
	return s.cache.IsDirty(id)
}

// Dirty returns every node that needs re-evaluation.
func (s *Session) Dirty() NodeSet {
	return s.cache.Dirty(s.graph)
}

// UpstreamClosure returns starts and every node that feeds them.
func (s *Session) UpstreamClosure(starts ...NodeID) NodeSet {
	return UpstreamClosure(s.graph, starts...)
}

// DownstreamClosure returns starts and every node they feed.
func (s *Session) DownstreamClosure(starts ...NodeID) NodeSet {
	return DownstreamClosure(s.graph, starts...)
}

// SetBypassed toggles the pass-through override of a node. Changing it
// invalidates the node's downstream closure.
func (s *Session) SetBypassed(id NodeID, bypassed bool) error {
	if !s.graph.HasNode(id) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if s.bypassed.Has(id) == bypassed {
		return nil
	}
	if bypassed {
		s.bypassed.Add(id)
	} else {
		delete(s.bypassed, id)
	}
	s.invalidate(ChangeBypass, id)
	return nil
}

// IsBypassed reports whether a node is bypassed.
func (s *Session) IsBypassed(id NodeID) bool {
	return s.bypassed.Has(id)
}

// Bypassed returns the bypassed node ids in ascending order.
func (s *Session) Bypassed() []NodeID {
	return s.bypassed.Sorted()
}

// Refresh invalidates ids and everything downstream of them, or every node
// when no ids are given.
func (s *Session) Refresh(ids ...NodeID) {
	if len(ids) == 0 {
		ids = s.graph.NodeIDs()
	}
	s.invalidate(ChangeRefresh, ids...)
}

func (s *Session) invalidate(kind ChangeKind, ids ...NodeID) {
	affected := DownstreamClosure(s.graph, ids...)
	s.cache.Invalidate(affected)
	s.metrics.RecordInvalidation(context.Background(), affected.Len())
	s.notify(Change{Kind: kind, Dirtied: affected})
}

// Snapshot exports the graph as plain data.
func (s *Session) Snapshot() *Snapshot {
	return s.graph.Snapshot()
}

// Load replaces the graph with snap. The snapshot is fully validated first;
// on error the session is unchanged. History, cache and bypass state are
// reset and every node is dirty afterwards.
func (s *Session) Load(snap *Snapshot) error {
	if s.history.batch != nil {
		return ErrBatchInProgress
	}
	g, err := NewGraphFromSnapshot(snap, s.reg)
	if err != nil {
		return err
	}

	s.graph = g
	s.history.reset()
	s.cache.Reset()
	clear(s.bypassed)

	all := NewNodeSet(g.NodeIDs()...)
	s.cache.Invalidate(all)
	s.notify(Change{Kind: ChangeLoad, Dirtied: all})
	return nil
}

// Stats returns the graph's entity counts.
func (s *Session) Stats() Stats {
	return s.graph.Stats()
}
