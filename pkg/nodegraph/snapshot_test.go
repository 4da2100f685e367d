package nodegraph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	reg := newTestRegistry()
	g := framedGraph(t, reg)

	snap := g.Snapshot()
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Len(t, snap.Nodes, 3)
	assert.Len(t, snap.Sockets, 5)
	assert.Len(t, snap.Wires, 2)
	assert.Len(t, snap.Frames, 1)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := NewGraphFromSnapshot(&decoded, reg)
	require.NoError(t, err)
	assert.True(t, restored.Equal(g))
	assert.NoError(t, restored.CheckIntegrity(reg))
	assert.Equal(t, g.outgoing, restored.outgoing)

	again, err := json.Marshal(restored.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again), "equal graphs encode to equal documents")
}

func TestSnapshot_IsDetached(t *testing.T) {
	reg := newTestRegistry()
	g := abcGraph(t, reg)
	snap := g.Snapshot()
	snap.Nodes[0].Params["value"] = 100.0
	snap.Nodes[0].Outputs[0] = "x"

	n, _ := g.Node(snap.Nodes[0].ID)
	assert.NotEqual(t, 100.0, n.Params["value"])
}

func TestNewGraphFromSnapshot_Nil(t *testing.T) {
	g, err := NewGraphFromSnapshot(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, g.Stats())
}

func TestNewGraphFromSnapshot_Errors(t *testing.T) {
	reg := newTestRegistry()

	t.Run("version", func(t *testing.T) {
		snap := abcGraph(t, reg).Snapshot()
		snap.Version = 99
		_, err := NewGraphFromSnapshot(snap, reg)
		assert.ErrorIs(t, err, ErrSnapshotVersion)
	})

	t.Run("orphan socket", func(t *testing.T) {
		snap := abcGraph(t, reg).Snapshot()
		snap.Sockets = append(snap.Sockets, Socket{ID: "ghost/in/x", Node: "ghost", Name: "x", Direction: Input})
		_, err := NewGraphFromSnapshot(snap, reg)
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("cycle", func(t *testing.T) {
		g := NewGraph()
		mustApply(t, g, reg, passNode("P"), passNode("Q"), wire("w1", "P", "out", "Q", "in"))
		snap := g.Snapshot()
		snap.Wires = append(snap.Wires, Wire{ID: "w2", From: outSock("Q", "out"), To: inSock("P", "in")})
		_, err := NewGraphFromSnapshot(snap, reg)
		requireReason(t, err, ReasonCycle)
	})

	t.Run("every failure is reported", func(t *testing.T) {
		snap := abcGraph(t, reg).Snapshot()
		snap.Nodes = append(snap.Nodes, snap.Nodes[0])
		snap.Wires = append(snap.Wires, Wire{ID: "w:bad", From: "nope", To: inSock("C", "a")})
		snap.Frames = append(snap.Frames, Frame{ID: ""})

		_, err := NewGraphFromSnapshot(snap, reg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate-id")
		assert.Contains(t, err.Error(), "missing-socket")
		assert.Contains(t, err.Error(), "missing-entity")
	})

	t.Run("invalid params", func(t *testing.T) {
		snap := abcGraph(t, reg).Snapshot()
		snap.Nodes[0].Params = Params{"value": "text"}
		_, err := NewGraphFromSnapshot(snap, validatingRegistry{reg})
		requireReason(t, err, ReasonInvalidParams)
	})
}
