// Package catalog provides the reference node type catalog for nodegraph.
//
// A Catalog declares data types, the directional conversions between them,
// and node types. A node type bundles socket templates, default parameters,
// an optional JSON Schema for its parameter bag and an evaluator.
//
// # Basic Usage
//
//	cat := catalog.Builtin()
//	cat.MustRegister(catalog.NodeType{
//	    Name:     "math.negate",
//	    Inputs:   []catalog.SocketTemplate{{Name: "value", DataType: catalog.Float, Required: true}},
//	    Outputs:  []catalog.SocketTemplate{{Name: "result", DataType: catalog.Float}},
//	    Evaluate: negate,
//	})
//
//	session := nodegraph.NewSession(cat)
//	cmd, _ := cat.Instantiate("", "math.negate", nodegraph.Point{}, nil)
//	_ = session.Apply(cmd)
//
// # Compatibility
//
// IsCompatible accepts identical types, any type flowing into an "any"
// socket, and conversions declared with AllowConversion. Conversions are
// not transitive: float->vec3 and vec3->color do not imply float->color.
//
// # Thread Safety
//
// All Catalog methods are safe for concurrent use.
package catalog
