package nodegraph

import (
	"errors"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	reason, ok := RejectionReason(err)
	require.True(t, ok, "not a rejection: %v", err)
	assert.Equal(t, want, reason, "error: %v", err)
}

func TestValidateWire_Reasons(t *testing.T) {
	reg := newTestRegistry()

	base := func(t *testing.T) *Graph {
		g := NewGraph()
		mustApply(t, g, reg,
			constNode("A", 1),
			passNode("P"),
			passNode("Q"),
			nodeCmd("V", "vec", nil,
				[]sock{{name: "in", dataType: "vec3"}},
				[]sock{{name: "out", dataType: "vec3"}}),
			sumNode("S"),
			wire("w:ap", "A", "out", "P", "in"),
			wire("w:pq", "P", "out", "Q", "in"),
		)
		return g
	}

	tests := []struct {
		name string
		wire Wire
		want Reason
	}{
		{"missing source", Wire{ID: "x", From: "nope", To: inSock("Q", "in")}, ReasonMissingSocket},
		{"missing target", Wire{ID: "x", From: outSock("A", "out"), To: "nope"}, ReasonMissingSocket},
		{"source is input", Wire{ID: "x", From: inSock("P", "in"), To: inSock("S", "in")}, ReasonDirection},
		{"target is output", Wire{ID: "x", From: outSock("A", "out"), To: outSock("P", "out")}, ReasonDirection},
		{"self loop", Wire{ID: "x", From: outSock("S", "out"), To: inSock("S", "in")}, ReasonSelfLoop},
		{"type mismatch", Wire{ID: "x", From: outSock("V", "out"), To: inSock("S", "in")}, ReasonTypeMismatch},
		{"input already connected", Wire{ID: "x", From: outSock("A", "out"), To: inSock("P", "in")}, ReasonConnectionLimit},
		{"full input reported before cycle", Wire{ID: "x", From: outSock("Q", "out"), To: inSock("P", "in")}, ReasonConnectionLimit},
		{"duplicate id", Wire{ID: "w:ap", From: outSock("A", "out"), To: inSock("S", "in")}, ReasonDuplicateID},
		{"empty id", Wire{From: outSock("A", "out"), To: inSock("S", "in")}, ReasonMissingEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := base(t)
			requireReason(t, ValidateWire(g, reg, tt.wire), tt.want)
		})
	}

	t.Run("conversion accepted", func(t *testing.T) {
		g := base(t)
		assert.NoError(t, ValidateWire(g, reg, Wire{ID: "x", From: outSock("A", "out"), To: inSock("V", "in")}))
	})

	t.Run("nil registry accepts any pairing", func(t *testing.T) {
		g := base(t)
		assert.NoError(t, ValidateWire(g, nil, Wire{ID: "x", From: outSock("V", "out"), To: inSock("S", "in")}))
	})

	t.Run("unbounded input accepts many", func(t *testing.T) {
		g := base(t)
		mustApply(t, g, reg,
			wire("s1", "A", "out", "S", "in"),
			wire("s2", "P", "out", "S", "in"),
			wire("s3", "Q", "out", "S", "in"),
		)
		assert.Equal(t, 3, g.connectionCount(inSock("S", "in")))
	})
}

func TestValidateWire_CheckOrder(t *testing.T) {
	reg := newTestRegistry()
	g := NewGraph()
	mustApply(t, g, reg,
		nodeCmd("V", "vec", nil,
			[]sock{{name: "in", dataType: "vec3"}},
			[]sock{{name: "out", dataType: "vec3"}}),
	)

	// Wrong direction and a self loop: direction is reported first.
	requireReason(t, ValidateWire(g, reg, Wire{ID: "x", From: inSock("V", "in"), To: outSock("V", "out")}), ReasonDirection)

	// Self loop and same types: self-loop precedes cycle.
	requireReason(t, ValidateWire(g, reg, Wire{ID: "x", From: outSock("V", "out"), To: inSock("V", "in")}), ReasonSelfLoop)

	// Type mismatch beats a full input.
	mustApply(t, g, reg, constNode("A", 1), passNode("P"), wire("w", "A", "out", "P", "in"))
	requireReason(t, ValidateWire(g, reg, Wire{ID: "x", From: outSock("V", "out"), To: inSock("P", "in")}), ReasonTypeMismatch)
}

func TestValidateWire_OutputLimit(t *testing.T) {
	reg := newTestRegistry()
	g := NewGraph()
	mustApply(t, g, reg,
		nodeCmd("A", "const", Params{"value": 1.0}, nil, []sock{{name: "out", dataType: "float", max: 1}}),
		passNode("P"),
		passNode("Q"),
		wire("w1", "A", "out", "P", "in"),
	)
	requireReason(t, ValidateWire(g, reg, Wire{ID: "w2", From: outSock("A", "out"), To: inSock("Q", "in")}), ReasonConnectionLimit)
}

// TestCycleRejection_AdjacencyUnchanged adds a wire that would close a cycle
// and checks the store is byte-for-byte the same afterwards.
func TestCycleRejection_AdjacencyUnchanged(t *testing.T) {
	reg := newTestRegistry()
	g := NewGraph()
	mustApply(t, g, reg,
		nodeCmd("A", "pass", nil, []sock{{name: "in", dataType: "float"}}, []sock{{name: "out", dataType: "float"}}),
		addNode("C"),
		wire("w:ac", "A", "out", "C", "a"),
	)

	outgoing := cloneAdjacency(g.outgoing)
	incoming := cloneAdjacency(g.incoming)
	rev := g.Revision()
	before := g.clone()

	err := g.Apply(wire("w:ca", "C", "result", "A", "in"), reg)
	requireReason(t, err, ReasonCycle)

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, KindAddWire, rej.Command)

	assert.Equal(t, outgoing, g.outgoing)
	assert.Equal(t, incoming, g.incoming)
	assert.Equal(t, rev, g.Revision())
	assert.True(t, g.Equal(before))
	assert.NoError(t, g.CheckIntegrity(reg))
}

func cloneAdjacency(adj map[NodeID]map[NodeID]int) map[NodeID]map[NodeID]int {
	out := make(map[NodeID]map[NodeID]int, len(adj))
	for k, v := range adj {
		out[k] = maps.Clone(v)
	}
	return out
}

func TestValidateNewNode(t *testing.T) {
	reg := newTestRegistry()

	tests := []struct {
		name string
		cmd  func() *AddNode
		want Reason
	}{
		{"empty id", func() *AddNode { c := constNode("", 1); return c }, ReasonMissingEntity},
		{"duplicate node", func() *AddNode { return constNode("A", 1) }, ReasonDuplicateID},
		{"socket listed but missing", func() *AddNode {
			c := passNode("N")
			c.Sockets = c.Sockets[:1]
			return c
		}, ReasonMissingSocket},
		{"socket not listed", func() *AddNode {
			c := passNode("N")
			c.Node.Outputs = nil
			return c
		}, ReasonMissingSocket},
		{"socket owned by another node", func() *AddNode {
			c := passNode("N")
			c.Sockets[0].Node = "other"
			return c
		}, ReasonMissingEntity},
		{"socket direction mismatch", func() *AddNode {
			c := passNode("N")
			c.Sockets[0].Direction = Output
			return c
		}, ReasonDirection},
		{"socket id taken", func() *AddNode {
			c := passNode("N")
			c.Sockets[1].ID = outSock("A", "out")
			c.Node.Outputs[0] = outSock("A", "out")
			return c
		}, ReasonDuplicateID},
		{"wire not touching node", func() *AddNode {
			c := passNode("N")
			c.Wires = []Wire{{ID: "w", From: outSock("A", "out"), To: inSock("B", "in")}}
			return c
		}, ReasonMissingEntity},
		{"invalid wire", func() *AddNode {
			c := passNode("N")
			c.Wires = []Wire{{ID: "w", From: outSock("N", "out"), To: inSock("N", "in")}}
			return c
		}, ReasonSelfLoop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			mustApply(t, g, reg, constNode("A", 1), passNode("B"))
			before := g.clone()

			requireReason(t, g.Apply(tt.cmd(), reg), tt.want)
			assert.True(t, g.Equal(before))
		})
	}
}

func TestValidateParams(t *testing.T) {
	reg := validatingRegistry{newTestRegistry()}
	g := NewGraph()

	requireReason(t, g.Apply(nodeCmd("A", "const", Params{"value": "text"}, nil, nil), reg), ReasonInvalidParams)
	mustApply(t, g, reg, constNode("A", 1))

	cmd, err := g.UpdateParamsCommand("A", Params{"value": "text"})
	require.NoError(t, err)
	requireReason(t, g.Apply(cmd, reg), ReasonInvalidParams)

	// Without a ParamValidator any bag is accepted.
	assert.NoError(t, g.Apply(cmd, reg.testRegistry))
}
