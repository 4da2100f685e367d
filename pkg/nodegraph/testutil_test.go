package nodegraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test registry

// testRegistry is a small TypeRegistry with call recording.
type testRegistry struct {
	evaluators  map[string]EvaluatorFunc
	defaults    map[string]Params
	conversions map[[2]string]bool

	// calls records every evaluator invocation in order.
	calls []NodeID
}

func newTestRegistry() *testRegistry {
	return &testRegistry{
		evaluators: map[string]EvaluatorFunc{
			"const": evalConst,
			"add":   evalAdd,
			"sum":   evalSum,
			"pass":  evalPass,
			"fail":  evalFail,
			"panic": evalPanic,
		},
		defaults: map[string]Params{
			"const": {"value": 0.0},
			"add":   {"b": 10.0},
		},
		conversions: map[[2]string]bool{
			{"float", "vec3"}: true,
		},
	}
}

func (r *testRegistry) IsCompatible(from, to string) bool {
	return from == to || to == "any" || r.conversions[[2]string{from, to}]
}

func (r *testRegistry) ResolveEvaluator(nodeType string) (EvaluatorFunc, bool) {
	fn, ok := r.evaluators[nodeType]
	if !ok {
		return nil, false
	}
	return func(ctx EvalContext, in Values, p Params) (Values, error) {
		r.calls = append(r.calls, ctx.NodeID())
		return fn(ctx, in, p)
	}, true
}

func (r *testRegistry) DefaultParams(nodeType string) Params {
	return r.defaults[nodeType]
}

// resetCalls clears the evaluator call log.
func (r *testRegistry) resetCalls() {
	r.calls = nil
}

// validatingRegistry adds a parameter check: "value" must be a float64.
type validatingRegistry struct {
	*testRegistry
}

var errBadParam = errors.New("value must be a number")

func (r validatingRegistry) ValidateParams(_ string, params Params) error {
	if v, ok := params["value"]; ok {
		if _, ok := v.(float64); !ok {
			return errBadParam
		}
	}
	return nil
}

// Evaluators

func evalConst(_ EvalContext, _ Values, p Params) (Values, error) {
	return Values{"out": p["value"]}, nil
}

func evalAdd(_ EvalContext, in Values, _ Params) (Values, error) {
	a, okA := in["a"].(float64)
	b, okB := in["b"].(float64)
	if !okA || !okB {
		return nil, fmt.Errorf("add: missing operand (a=%v, b=%v)", in["a"], in["b"])
	}
	return Values{"result": a + b}, nil
}

func evalSum(_ EvalContext, in Values, _ Params) (Values, error) {
	var total float64
	values, _ := in["in"].([]any)
	for _, v := range values {
		total += v.(float64)
	}
	return Values{"out": total}, nil
}

func evalPass(_ EvalContext, in Values, _ Params) (Values, error) {
	return Values{"out": in["in"]}, nil
}

var errNodeFailed = errors.New("node failed")

func evalFail(_ EvalContext, _ Values, _ Params) (Values, error) {
	return nil, errNodeFailed
}

func evalPanic(_ EvalContext, _ Values, _ Params) (Values, error) {
	panic("evaluator exploded")
}

// Node builders

// sock describes a socket for nodeCmd.
type sock struct {
	name     string
	dataType string
	required bool
	max      int
}

func inSock(n NodeID, name string) SocketID  { return NewSocketID(n, Input, name) }
func outSock(n NodeID, name string) SocketID { return NewSocketID(n, Output, name) }

// nodeCmd builds an AddNode with sockets derived from the node id.
func nodeCmd(id NodeID, nodeType string, params Params, inputs, outputs []sock) *AddNode {
	cmd := &AddNode{Node: Node{ID: id, Type: nodeType, Params: params}}
	for _, s := range inputs {
		sid := inSock(id, s.name)
		cmd.Node.Inputs = append(cmd.Node.Inputs, sid)
		cmd.Sockets = append(cmd.Sockets, Socket{
			ID: sid, Node: id, Name: s.name, Direction: Input,
			DataType: s.dataType, Required: s.required, MaxConnections: s.max,
		})
	}
	for _, s := range outputs {
		sid := outSock(id, s.name)
		cmd.Node.Outputs = append(cmd.Node.Outputs, sid)
		cmd.Sockets = append(cmd.Sockets, Socket{
			ID: sid, Node: id, Name: s.name, Direction: Output,
			DataType: s.dataType, MaxConnections: s.max,
		})
	}
	return cmd
}

// constNode has one float output "out" carrying params["value"].
func constNode(id NodeID, v float64) *AddNode {
	return nodeCmd(id, "const", Params{"value": v}, nil, []sock{{name: "out", dataType: "float"}})
}

// addNode has optional float inputs a and b and a float output "result".
func addNode(id NodeID) *AddNode {
	return nodeCmd(id, "add", nil,
		[]sock{{name: "a", dataType: "float"}, {name: "b", dataType: "float"}},
		[]sock{{name: "result", dataType: "float"}})
}

// requiredAddNode is addNode with both inputs required.
func requiredAddNode(id NodeID) *AddNode {
	return nodeCmd(id, "add", nil,
		[]sock{{name: "a", dataType: "float", required: true}, {name: "b", dataType: "float", required: true}},
		[]sock{{name: "result", dataType: "float"}})
}

// passNode forwards float input "in" to float output "out".
func passNode(id NodeID) *AddNode {
	return nodeCmd(id, "pass", nil,
		[]sock{{name: "in", dataType: "float"}},
		[]sock{{name: "out", dataType: "float"}})
}

// sumNode sums an unbounded float input "in".
func sumNode(id NodeID) *AddNode {
	return nodeCmd(id, "sum", nil,
		[]sock{{name: "in", dataType: "float", max: Unbounded}},
		[]sock{{name: "out", dataType: "float"}})
}

// wire builds an AddWire between named sockets.
func wire(id WireID, from NodeID, fromName string, to NodeID, toName string) *AddWire {
	return &AddWire{Wire: Wire{ID: id, From: outSock(from, fromName), To: inSock(to, toName)}}
}

// mustApply applies cmds to g, failing the test on the first error.
func mustApply(t *testing.T, g *Graph, reg TypeRegistry, cmds ...Command) {
	t.Helper()
	for _, cmd := range cmds {
		require.NoError(t, g.Apply(cmd, reg), "apply %s", cmd.Kind())
	}
}

// chainGraph builds n0 -> n1 -> ... -> n(k-1) of pass nodes, fed by a
// const node "src" with value 1.
func chainGraph(t *testing.T, reg TypeRegistry, k int) *Graph {
	t.Helper()
	g := NewGraph()
	mustApply(t, g, reg, constNode("src", 1))
	prev, prevOut := NodeID("src"), "out"
	for i := range k {
		id := NodeID(fmt.Sprintf("n%02d", i))
		mustApply(t, g, reg, passNode(id), wire(WireID(fmt.Sprintf("w%02d", i)), prev, prevOut, id, "in"))
		prev, prevOut = id, "out"
	}
	return g
}

// abcGraph builds A(2) and B(3) feeding C = add(a, b).
func abcGraph(t *testing.T, reg TypeRegistry) *Graph {
	t.Helper()
	g := NewGraph()
	mustApply(t, g, reg,
		constNode("A", 2),
		constNode("B", 3),
		addNode("C"),
		wire("w:ac", "A", "out", "C", "a"),
		wire("w:bc", "B", "out", "C", "b"),
	)
	return g
}
