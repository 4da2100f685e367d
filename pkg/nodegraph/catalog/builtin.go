package catalog

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/randalmurphal/nodegraph/pkg/nodegraph"
)

// Builtin data type names.
const (
	Float = "float"
	Vec3  = "vec3"
	Color = "color"
)

// Vector is the value carried by vec3 sockets.
type Vector [3]float64

// RGBA is the value carried by color sockets.
type RGBA [4]float64

// Builtin returns a catalog with the float, vec3 and color data types,
// the conversions float->vec3 and vec3->color, and a small set of math and
// I/O node types. Each call returns a fresh catalog that callers may extend.
func Builtin() *Catalog {
	c := New()
	for _, dt := range []DataType{
		{Name: Float, Description: "scalar"},
		{Name: Vec3, Description: "three component vector"},
		{Name: Color, Description: "linear RGBA"},
	} {
		mustNil(c.RegisterDataType(dt))
	}
	mustNil(c.AllowConversion(Float, Vec3))
	mustNil(c.AllowConversion(Vec3, Color))

	c.MustRegister(NodeType{
		Name:     "input.float",
		Category: "input",
		Outputs:  []SocketTemplate{{Name: "value", DataType: Float}},
		Defaults: nodegraph.Params{"value": 0.0},
		Schema:   objectSchema(map[string]*jsonschema.Schema{"value": {Type: "number"}}),
		Evaluate: evalInputFloat,
	})
	c.MustRegister(NodeType{
		Name:     "math.add",
		Category: "math",
		Inputs:   []SocketTemplate{{Name: "a", DataType: Float}, {Name: "b", DataType: Float}},
		Outputs:  []SocketTemplate{{Name: "result", DataType: Float}},
		Defaults: nodegraph.Params{"a": 0.0, "b": 0.0},
		Schema:   objectSchema(map[string]*jsonschema.Schema{"a": {Type: "number"}, "b": {Type: "number"}}),
		Evaluate: binary(func(a, b float64) float64 { return a + b }),
	})
	c.MustRegister(NodeType{
		Name:     "math.multiply",
		Category: "math",
		Inputs:   []SocketTemplate{{Name: "a", DataType: Float}, {Name: "b", DataType: Float}},
		Outputs:  []SocketTemplate{{Name: "result", DataType: Float}},
		Defaults: nodegraph.Params{"a": 1.0, "b": 1.0},
		Schema:   objectSchema(map[string]*jsonschema.Schema{"a": {Type: "number"}, "b": {Type: "number"}}),
		Evaluate: binary(func(a, b float64) float64 { return a * b }),
	})
	c.MustRegister(NodeType{
		Name:     "math.sum",
		Category: "math",
		Inputs: []SocketTemplate{{
			Name: "values", DataType: Float, MaxConnections: nodegraph.Unbounded,
		}},
		Outputs:  []SocketTemplate{{Name: "result", DataType: Float}},
		Evaluate: evalSum,
	})
	c.MustRegister(NodeType{
		Name:     "math.clamp",
		Category: "math",
		Inputs:   []SocketTemplate{{Name: "value", DataType: Float, Required: true}},
		Outputs:  []SocketTemplate{{Name: "result", DataType: Float}},
		Defaults: nodegraph.Params{"min": 0.0, "max": 1.0},
		Schema: objectSchema(map[string]*jsonschema.Schema{
			"min": {Type: "number"},
			"max": {Type: "number"},
		}),
		Evaluate: evalClamp,
	})
	c.MustRegister(NodeType{
		Name:     "vec3.compose",
		Category: "vector",
		Inputs: []SocketTemplate{
			{Name: "x", DataType: Float},
			{Name: "y", DataType: Float},
			{Name: "z", DataType: Float},
		},
		Outputs:  []SocketTemplate{{Name: "vector", DataType: Vec3}},
		Defaults: nodegraph.Params{"x": 0.0, "y": 0.0, "z": 0.0},
		Evaluate: evalCompose,
	})
	c.MustRegister(NodeType{
		Name:     "output.color",
		Category: "output",
		Inputs:   []SocketTemplate{{Name: "color", DataType: Color, Required: true}},
		Outputs:  []SocketTemplate{{Name: "color", DataType: Color}},
		Evaluate: evalOutputColor,
	})
	return c
}

func mustNil(err error) {
	if err != nil {
		panic(fmt.Sprintf("catalog: builtin: %v", err))
	}
}

func objectSchema(props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props}
}

func evalInputFloat(_ nodegraph.EvalContext, _ nodegraph.Values, p nodegraph.Params) (nodegraph.Values, error) {
	v, ok := AsFloat(p["value"])
	if !ok {
		return nil, fmt.Errorf("param value: want number, got %T", p["value"])
	}
	return nodegraph.Values{"value": v}, nil
}

func binary(op func(a, b float64) float64) nodegraph.EvaluatorFunc {
	return func(_ nodegraph.EvalContext, in nodegraph.Values, _ nodegraph.Params) (nodegraph.Values, error) {
		a, ok := AsFloat(in["a"])
		if !ok {
			return nil, fmt.Errorf("input a: want number, got %T", in["a"])
		}
		b, ok := AsFloat(in["b"])
		if !ok {
			return nil, fmt.Errorf("input b: want number, got %T", in["b"])
		}
		return nodegraph.Values{"result": op(a, b)}, nil
	}
}

func evalSum(_ nodegraph.EvalContext, in nodegraph.Values, _ nodegraph.Params) (nodegraph.Values, error) {
	var total float64
	values, _ := in["values"].([]any)
	for i, v := range values {
		f, ok := AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("input values[%d]: want number, got %T", i, v)
		}
		total += f
	}
	return nodegraph.Values{"result": total}, nil
}

func evalClamp(_ nodegraph.EvalContext, in nodegraph.Values, p nodegraph.Params) (nodegraph.Values, error) {
	v, ok := AsFloat(in["value"])
	if !ok {
		return nil, fmt.Errorf("input value: want number, got %T", in["value"])
	}
	lo, _ := AsFloat(p["min"])
	hi, _ := AsFloat(p["max"])
	if lo > hi {
		return nil, fmt.Errorf("min %g is greater than max %g", lo, hi)
	}
	return nodegraph.Values{"result": min(max(v, lo), hi)}, nil
}

func evalCompose(_ nodegraph.EvalContext, in nodegraph.Values, _ nodegraph.Params) (nodegraph.Values, error) {
	var out Vector
	for i, name := range []string{"x", "y", "z"} {
		f, ok := AsFloat(in[name])
		if !ok {
			return nil, fmt.Errorf("input %s: want number, got %T", name, in[name])
		}
		out[i] = f
	}
	return nodegraph.Values{"vector": out}, nil
}

func evalOutputColor(_ nodegraph.EvalContext, in nodegraph.Values, _ nodegraph.Params) (nodegraph.Values, error) {
	c, ok := AsColor(in["color"])
	if !ok {
		return nil, fmt.Errorf("input color: want color, got %T", in["color"])
	}
	return nodegraph.Values{"color": c}, nil
}

// AsFloat converts a numeric value to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// AsVector converts a vec3 value, or a float splatted to all components.
func AsVector(v any) (Vector, bool) {
	if x, ok := v.(Vector); ok {
		return x, true
	}
	if f, ok := AsFloat(v); ok {
		return Vector{f, f, f}, true
	}
	return Vector{}, false
}

// AsColor converts a color value, or a vec3 or float with alpha 1.
func AsColor(v any) (RGBA, bool) {
	if x, ok := v.(RGBA); ok {
		return x, true
	}
	if vec, ok := AsVector(v); ok {
		return RGBA{vec[0], vec[1], vec[2], 1}, true
	}
	return RGBA{}, false
}
