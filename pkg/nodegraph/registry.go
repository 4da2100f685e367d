package nodegraph

// EvaluatorFunc computes a node's outputs from its resolved inputs and its
// parameter bag. It must be a pure function of its arguments and must not
// call back into the session.
//
// Example:
//
//	func add(ctx nodegraph.EvalContext, in nodegraph.Values, p nodegraph.Params) (nodegraph.Values, error) {
//	    a, _ := in["a"].(float64)
//	    b, _ := in["b"].(float64)
//	    return nodegraph.Values{"result": a + b}, nil
//	}
type EvaluatorFunc func(ctx EvalContext, inputs Values, params Params) (Values, error)

// TypeRegistry is the plugin catalog the engine consults. The engine calls
// it but never owns or persists it.
type TypeRegistry interface {
	// IsCompatible reports whether a value of fromType may flow into a
	// socket of toType. It is directional and need not be symmetric.
	IsCompatible(fromType, toType string) bool

	// ResolveEvaluator returns the evaluator for a node type.
	ResolveEvaluator(nodeType string) (EvaluatorFunc, bool)

	// DefaultParams returns the default parameter bag for a node type.
	// The engine does not modify the returned map.
	DefaultParams(nodeType string) Params
}

// ParamValidator is optionally implemented by a TypeRegistry that carries a
// schema for each node type's parameter bag. When present, add-node and
// update-params commands are rejected with ReasonInvalidParams if the bag
// does not validate.
type ParamValidator interface {
	ValidateParams(nodeType string, params Params) error
}
