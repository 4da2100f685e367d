package nodegraph

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Report summarizes one evaluation pass.
type Report struct {
	// Evaluated lists every node that ran, in evaluation order.
	Evaluated []NodeID
	// Failed lists the nodes whose evaluation recorded an error.
	Failed []NodeID
	// Duration is the wall time of the pass.
	Duration time.Duration
}

// evalConfig holds configuration for an evaluation pass.
type evalConfig struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	sessionID      string
	bypassed       NodeSet
	recoverPanics  bool
	slowNode       time.Duration
}

// defaultEvalConfig returns the default evaluation configuration.
func defaultEvalConfig() evalConfig {
	return evalConfig{
		logger:        slog.Default(),
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
		recoverPanics: true,
	}
}

// EvalOption configures an evaluation pass.
type EvalOption func(*evalConfig)

// WithEvalLogger sets the logger for the pass. A nil logger is ignored.
func WithEvalLogger(logger *slog.Logger) EvalOption {
	return func(c *evalConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEvalMetrics sets the metrics recorder for the pass.
func WithEvalMetrics(m observability.MetricsRecorder) EvalOption {
	return func(c *evalConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithEvalSpans enables tracing through sm.
func WithEvalSpans(sm observability.SpanManager) EvalOption {
	return func(c *evalConfig) {
		if sm != nil {
			c.spans = sm
			c.tracingEnabled = true
		}
	}
}

// WithEvalSessionID sets the session id reported to evaluators.
func WithEvalSessionID(id string) EvalOption {
	return func(c *evalConfig) {
		c.sessionID = id
	}
}

// WithBypassed sets the nodes whose evaluator is replaced by a pass-through.
func WithBypassed(ids NodeSet) EvalOption {
	return func(c *evalConfig) {
		c.bypassed = ids
	}
}

// WithPanicRecovery controls whether evaluator panics are recorded as node
// errors (the default) or propagate to the caller.
func WithPanicRecovery(enabled bool) EvalOption {
	return func(c *evalConfig) {
		c.recoverPanics = enabled
	}
}

// WithSlowNodeThreshold logs a warning for evaluator calls slower than d.
func WithSlowNodeThreshold(d time.Duration) EvalOption {
	return func(c *evalConfig) {
		c.slowNode = d
	}
}

// Evaluate recomputes every dirty node of g and everything downstream of it,
// in topological order, writing results into cache.
//
// Execution flow for each scheduled node:
//  1. Gather inputs from upstream cached outputs, params and defaults
//  2. Run the registered evaluator, or pass inputs through if bypassed
//  3. Store the outputs, or record the error and leave the outputs absent
//
// A failing node never stops the pass; its dependents see absent inputs.
// The only returned errors are a cancelled ctx, checked between nodes, and
// an integrity failure if g is cyclic. Nodes not reached stay dirty.
// reg and cache must not be nil.
//
// Example:
//
//	report, err := nodegraph.Evaluate(ctx, g, reg, cache)
//	if err != nil {
//	    return err
//	}
//	for _, id := range report.Failed {
//	    log.Println(id, cache.Err(id))
//	}
func Evaluate(ctx context.Context, g *Graph, reg TypeRegistry, cache *Cache, opts ...EvalOption) (report *Report, runErr error) {
	cfg := defaultEvalConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	report = &Report{}

	scheduled := DownstreamClosure(g, cache.Dirty(g).Sorted()...)
	order, err := topoOrder(g, scheduled.Sorted())
	if err != nil {
		return report, &IntegrityError{Detail: err.Error()}
	}

	observability.LogEvaluateStart(cfg.logger, len(order))

	execCtx := ctx
	if cfg.tracingEnabled {
		var span trace.Span
		execCtx, span = cfg.spans.StartEvaluateSpan(ctx, cfg.sessionID, len(order))
		defer func() {
			cfg.spans.EndSpanWithError(span, runErr)
		}()
	}

	for i, id := range order {
		if err := ctx.Err(); err != nil {
			// Later nodes may read outputs that were just replaced.
			cache.MarkDirty(order[i:]...)
			runErr = fmt.Errorf("evaluation cancelled before %s: %w", id, err)
			break
		}

		n := g.nodes[id]
		nodeErr := evaluateNode(execCtx, g, reg, cache, n, &cfg)
		report.Evaluated = append(report.Evaluated, id)
		if nodeErr != nil {
			report.Failed = append(report.Failed, id)
		}
	}

	report.Duration = time.Since(start)
	cfg.metrics.RecordEvaluation(ctx, len(report.Evaluated), len(report.Failed), report.Duration)
	observability.LogEvaluateComplete(cfg.logger, float64(report.Duration.Microseconds())/1000,
		len(report.Evaluated), len(report.Failed))

	return report, runErr
}

// evaluateNode runs one node and records the outcome in cache.
func evaluateNode(ctx context.Context, g *Graph, reg TypeRegistry, cache *Cache, n *Node, cfg *evalConfig) error {
	bypassed := cfg.bypassed.Has(n.ID)

	nodeCtx := ctx
	var span trace.Span
	if cfg.tracingEnabled {
		nodeCtx, span = cfg.spans.StartNodeSpan(ctx, string(n.ID), n.Type)
		if bypassed {
			cfg.spans.AddSpanEvent(nodeCtx, "bypassed", attribute.String("node.id", string(n.ID)))
		}
	}

	nodeStart := time.Now()
	out, err := computeNode(nodeCtx, g, reg, cache, n, bypassed, cfg)
	duration := time.Since(nodeStart)

	if err != nil {
		err = &EvaluationError{NodeID: n.ID, NodeType: n.Type, Err: err}
		cache.fail(n.ID, err)
		observability.LogNodeError(cfg.logger, string(n.ID), err)
	} else {
		cache.store(n.ID, out)
		observability.LogNodeEvaluated(cfg.logger, string(n.ID), float64(duration.Microseconds())/1000, bypassed)
	}

	cfg.metrics.RecordNodeEvaluation(nodeCtx, n.Type, duration, err)
	if cfg.tracingEnabled {
		cfg.spans.EndSpanWithError(span, err)
	}
	if cfg.slowNode > 0 && duration > cfg.slowNode {
		cfg.logger.Warn("slow node evaluation",
			slog.String("node_id", string(n.ID)),
			slog.String("node_type", n.Type),
			slog.Duration("duration", duration),
		)
	}
	return err
}

func computeNode(ctx context.Context, g *Graph, reg TypeRegistry, cache *Cache, n *Node, bypassed bool, cfg *evalConfig) (Values, error) {
	defaults := reg.DefaultParams(n.Type)
	inputs, err := gatherInputs(g, cache, n, defaults)
	if err != nil {
		return nil, err
	}
	if bypassed {
		return passThrough(g, n, inputs), nil
	}

	eval, ok := reg.ResolveEvaluator(n.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, n.Type)
	}

	params := maps.Clone(defaults)
	if params == nil {
		params = make(Params, len(n.Params))
	}
	maps.Copy(params, n.Params)

	ectx := newEvalContext(ctx, cfg.logger, cfg.sessionID, n)
	if !cfg.recoverPanics {
		return eval(ectx, inputs, params)
	}
	return callEvaluator(ectx, eval, inputs, params)
}

// callEvaluator runs fn, converting a panic into a *PanicError.
func callEvaluator(ctx EvalContext, fn EvaluatorFunc, inputs Values, params Params) (out Values, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn(ctx, inputs, params)
}

// gatherInputs resolves the value of every input socket of n.
//
// A connected socket reads the upstream socket's cached output and is absent
// when the upstream node has no value for it. A socket that admits more than
// one wire receives a []any of the present values in wire id order. An
// unconnected socket falls back to the node's param of the same name, then
// to the type's default; a required one fails with ErrRequiredInput.
func gatherInputs(g *Graph, cache *Cache, n *Node, defaults Params) (Values, error) {
	inputs := make(Values, len(n.Inputs))
	for _, sid := range n.Inputs {
		s := g.sockets[sid]
		wires := g.SocketWires(sid)

		if len(wires) == 0 {
			if s.Required {
				return nil, fmt.Errorf("%w: %s", ErrRequiredInput, s.Name)
			}
			if v, ok := n.Params[s.Name]; ok {
				inputs[s.Name] = v
			} else if v, ok := defaults[s.Name]; ok {
				inputs[s.Name] = v
			}
			continue
		}

		if s.Limit() == 1 {
			if v, ok := upstreamValue(g, cache, wires[0]); ok {
				inputs[s.Name] = v
			}
			continue
		}

		values := make([]any, 0, len(wires))
		for _, w := range wires {
			if v, ok := upstreamValue(g, cache, w); ok {
				values = append(values, v)
			}
		}
		inputs[s.Name] = values
	}
	return inputs, nil
}

func upstreamValue(g *Graph, cache *Cache, w Wire) (any, bool) {
	from := g.sockets[w.From]
	out, ok := cache.Outputs(from.Node)
	if !ok {
		return nil, false
	}
	v, ok := out[from.Name]
	return v, ok
}

// passThrough maps inputs to outputs for a bypassed node: each output takes
// the input with the same name, else the input at the same index.
func passThrough(g *Graph, n *Node, inputs Values) Values {
	out := make(Values, len(n.Outputs))
	for i, oid := range n.Outputs {
		name := g.sockets[oid].Name
		if v, ok := inputs[name]; ok {
			out[name] = v
			continue
		}
		if i < len(n.Inputs) {
			if v, ok := inputs[g.sockets[n.Inputs[i]].Name]; ok {
				out[name] = v
			}
		}
	}
	return out
}
