package catalog

import (
	"errors"
	"fmt"
	"maps"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/randalmurphal/nodegraph/pkg/nodegraph"
)

// AnyType is a sink data type: every type may flow into an "any" socket.
const AnyType = "any"

// Sentinel errors for catalog registration and lookup.
var (
	// ErrDuplicateType indicates a data type or node type registered twice.
	ErrDuplicateType = errors.New("type already registered")

	// ErrUnknownType indicates a node type the catalog does not know.
	ErrUnknownType = errors.New("unknown node type")

	// ErrUnknownDataType indicates a data type the catalog does not know.
	ErrUnknownDataType = errors.New("unknown data type")

	// ErrInvalidType indicates a malformed node type definition.
	ErrInvalidType = errors.New("invalid node type")
)

// DataType names a kind of value a socket carries.
type DataType struct {
	Name        string
	Description string
}

// SocketTemplate describes one socket of a node type. Instantiate turns it
// into a nodegraph.Socket with an id derived from the node id.
type SocketTemplate struct {
	Name           string
	Label          string
	DataType       string
	Required       bool
	MinConnections int
	MaxConnections int
	Meta           *nodegraph.SocketMeta
}

// NodeType is a catalog entry: a node's sockets, default parameters,
// parameter schema and evaluator.
type NodeType struct {
	Name        string
	Category    string
	Description string

	Inputs  []SocketTemplate
	Outputs []SocketTemplate

	// Defaults fill parameters the node does not set. An unconnected
	// optional input reads the default with its own name.
	Defaults nodegraph.Params

	// Schema validates the node's parameter bag. Nil accepts any bag.
	Schema *jsonschema.Schema

	Evaluate nodegraph.EvaluatorFunc

	resolved *jsonschema.Resolved
}

// Catalog is the reference nodegraph.TypeRegistry. It also implements
// nodegraph.ParamValidator. Registration and lookup are safe for concurrent
// use, so one catalog may back many sessions.
type Catalog struct {
	dataTypes   *table[string, DataType]
	nodeTypes   *table[string, *NodeType]
	conversions *table[string, struct{}]
}

var (
	_ nodegraph.TypeRegistry   = (*Catalog)(nil)
	_ nodegraph.ParamValidator = (*Catalog)(nil)
)

// New creates an empty catalog. Only AnyType is predeclared.
func New() *Catalog {
	c := &Catalog{
		dataTypes:   newTable[string, DataType](),
		nodeTypes:   newTable[string, *NodeType](),
		conversions: newTable[string, struct{}](),
	}
	c.dataTypes.insert(AnyType, DataType{Name: AnyType, Description: "accepts every type"})
	return c
}

// RegisterDataType adds a data type.
func (c *Catalog) RegisterDataType(dt DataType) error {
	if dt.Name == "" {
		return fmt.Errorf("%w: empty data type name", ErrInvalidType)
	}
	if !c.dataTypes.insert(dt.Name, dt) {
		return fmt.Errorf("%w: data type %s", ErrDuplicateType, dt.Name)
	}
	return nil
}

// DataTypes returns the registered data type names in ascending order.
func (c *Catalog) DataTypes() []string {
	return c.dataTypes.keys()
}

// AllowConversion lets values of type from flow into sockets of type to.
// Conversions are directional.
func (c *Catalog) AllowConversion(from, to string) error {
	for _, name := range []string{from, to} {
		if !c.dataTypes.has(name) {
			return fmt.Errorf("%w: %s", ErrUnknownDataType, name)
		}
	}
	c.conversions.insert(conversionKey(from, to), struct{}{})
	return nil
}

func conversionKey(from, to string) string {
	return from + "->" + to
}

// Register adds a node type. The definition must name an evaluator, use
// registered data types, keep socket names unique per side, carry a
// resolvable schema and have defaults that satisfy it.
func (c *Catalog) Register(nt NodeType) error {
	if nt.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidType)
	}
	if nt.Evaluate == nil {
		return fmt.Errorf("%w: %s has no evaluator", ErrInvalidType, nt.Name)
	}
	if err := c.checkSockets(nt.Name, nt.Inputs); err != nil {
		return err
	}
	if err := c.checkSockets(nt.Name, nt.Outputs); err != nil {
		return err
	}

	nt.Inputs = cloneTemplates(nt.Inputs)
	nt.Outputs = cloneTemplates(nt.Outputs)
	nt.Defaults = nt.Defaults.Clone()

	if nt.Schema != nil {
		resolved, err := nt.Schema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("%w: %s schema: %v", ErrInvalidType, nt.Name, err)
		}
		nt.resolved = resolved
		if err := validateBag(resolved, nt.Defaults); err != nil {
			return fmt.Errorf("%w: %s defaults: %v", ErrInvalidType, nt.Name, err)
		}
	}

	if !c.nodeTypes.insert(nt.Name, &nt) {
		return fmt.Errorf("%w: node type %s", ErrDuplicateType, nt.Name)
	}
	return nil
}

// MustRegister is like Register but panics on error. Meant for
// package-level catalogs built at init time.
func (c *Catalog) MustRegister(nt NodeType) {
	if err := c.Register(nt); err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
}

func (c *Catalog) checkSockets(typeName string, templates []SocketTemplate) error {
	seen := make(map[string]struct{}, len(templates))
	for _, st := range templates {
		if st.Name == "" {
			return fmt.Errorf("%w: %s has an unnamed socket", ErrInvalidType, typeName)
		}
		if _, dup := seen[st.Name]; dup {
			return fmt.Errorf("%w: %s declares socket %s twice", ErrInvalidType, typeName, st.Name)
		}
		seen[st.Name] = struct{}{}
		if !c.dataTypes.has(st.DataType) {
			return fmt.Errorf("%w: %s socket %s: %s", ErrUnknownDataType, typeName, st.Name, st.DataType)
		}
	}
	return nil
}

// Lookup returns a copy of a node type definition.
func (c *Catalog) Lookup(name string) (NodeType, bool) {
	nt, ok := c.nodeTypes.get(name)
	if !ok {
		return NodeType{}, false
	}
	out := *nt
	out.Inputs = cloneTemplates(nt.Inputs)
	out.Outputs = cloneTemplates(nt.Outputs)
	out.Defaults = nt.Defaults.Clone()
	return out, true
}

// Types returns the registered node type names in ascending order.
func (c *Catalog) Types() []string {
	return c.nodeTypes.keys()
}

// Len returns the number of registered node types.
func (c *Catalog) Len() int {
	return c.nodeTypes.len()
}

// IsCompatible implements nodegraph.TypeRegistry. A value may flow into a
// socket of the same type, into an AnyType socket, or along a declared
// conversion.
func (c *Catalog) IsCompatible(from, to string) bool {
	if from == to || to == AnyType {
		return true
	}
	return c.conversions.has(conversionKey(from, to))
}

// ResolveEvaluator implements nodegraph.TypeRegistry.
func (c *Catalog) ResolveEvaluator(nodeType string) (nodegraph.EvaluatorFunc, bool) {
	nt, ok := c.nodeTypes.get(nodeType)
	if !ok {
		return nil, false
	}
	return nt.Evaluate, true
}

// DefaultParams implements nodegraph.TypeRegistry. The returned map is
// shared and must not be modified.
func (c *Catalog) DefaultParams(nodeType string) nodegraph.Params {
	nt, ok := c.nodeTypes.get(nodeType)
	if !ok {
		return nil
	}
	return nt.Defaults
}

// ValidateParams implements nodegraph.ParamValidator. Types without a
// schema, and types the catalog does not know, accept every bag; unknown
// types fail later, at evaluation.
func (c *Catalog) ValidateParams(nodeType string, params nodegraph.Params) error {
	nt, ok := c.nodeTypes.get(nodeType)
	if !ok || nt.resolved == nil {
		return nil
	}
	return validateBag(nt.resolved, params)
}

func validateBag(resolved *jsonschema.Resolved, params nodegraph.Params) error {
	bag := map[string]any(params)
	if bag == nil {
		bag = map[string]any{}
	}
	return resolved.Validate(bag)
}

// Instantiate builds the command that adds a node of typeName at pos. An
// empty id is replaced by a fresh one. params override the type's defaults
// on the node; they are validated when the command is applied.
//
// Example:
//
//	cmd, err := cat.Instantiate("", "math.add", nodegraph.Point{X: 10}, nil)
//	if err != nil {
//	    return err
//	}
//	err = session.Apply(cmd)
func (c *Catalog) Instantiate(id nodegraph.NodeID, typeName string, pos nodegraph.Point, params nodegraph.Params) (*nodegraph.AddNode, error) {
	nt, ok := c.nodeTypes.get(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	if id == "" {
		id = nodegraph.NewNodeID()
	}

	node := nodegraph.Node{
		ID:       id,
		Type:     typeName,
		Position: pos,
		Params:   maps.Clone(params),
	}
	sockets := make([]nodegraph.Socket, 0, len(nt.Inputs)+len(nt.Outputs))
	for _, st := range nt.Inputs {
		s := st.socket(id, nodegraph.Input)
		node.Inputs = append(node.Inputs, s.ID)
		sockets = append(sockets, s)
	}
	for _, st := range nt.Outputs {
		s := st.socket(id, nodegraph.Output)
		node.Outputs = append(node.Outputs, s.ID)
		sockets = append(sockets, s)
	}
	return &nodegraph.AddNode{Node: node, Sockets: sockets}, nil
}

func (st SocketTemplate) socket(node nodegraph.NodeID, dir nodegraph.Direction) nodegraph.Socket {
	s := nodegraph.Socket{
		ID:             nodegraph.NewSocketID(node, dir, st.Name),
		Node:           node,
		Name:           st.Name,
		Label:          st.Label,
		Direction:      dir,
		DataType:       st.DataType,
		Required:       st.Required,
		MinConnections: st.MinConnections,
		MaxConnections: st.MaxConnections,
	}
	if st.Meta != nil {
		m := *st.Meta
		s.Meta = &m
	}
	return s
}

func cloneTemplates(ts []SocketTemplate) []SocketTemplate {
	if ts == nil {
		return nil
	}
	out := make([]SocketTemplate, len(ts))
	copy(out, ts)
	return out
}
