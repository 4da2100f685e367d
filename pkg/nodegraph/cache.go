package nodegraph

import "maps"

// Cache holds the derived evaluation state of a graph: per-node outputs,
// per-node errors and an explicit dirty set. It is never persisted.
//
// A node is dirty when it was explicitly invalidated, or when it has
// neither a cached output nor a recorded error. A failed node is therefore
// clean until something upstream of it changes.
type Cache struct {
	outputs map[NodeID]Values
	errors  map[NodeID]error
	dirty   NodeSet
}

// NewCache creates an empty cache. Every node starts implicitly dirty.
func NewCache() *Cache {
	return &Cache{
		outputs: make(map[NodeID]Values),
		errors:  make(map[NodeID]error),
		dirty:   make(NodeSet),
	}
}

// Outputs returns the cached outputs of a node. The map must not be modified.
func (c *Cache) Outputs(id NodeID) (Values, bool) {
	v, ok := c.outputs[id]
	return v, ok
}

// Err returns the error recorded for a node, or nil.
func (c *Cache) Err(id NodeID) error {
	return c.errors[id]
}

// IsDirty reports whether id needs re-evaluation.
func (c *Cache) IsDirty(id NodeID) bool {
	if c.dirty.Has(id) {
		return true
	}
	_, hasOutput := c.outputs[id]
	_, hasErr := c.errors[id]
	return !hasOutput && !hasErr
}

// Invalidate discards the outputs and errors of ids and marks them dirty.
func (c *Cache) Invalidate(ids NodeSet) {
	for id := range ids {
		delete(c.outputs, id)
		delete(c.errors, id)
		c.dirty.Add(id)
	}
}

// MarkDirty marks ids dirty without discarding their outputs.
func (c *Cache) MarkDirty(ids ...NodeID) {
	for _, id := range ids {
		c.dirty.Add(id)
	}
}

// Purge forgets everything about ids. Used for removed nodes.
func (c *Cache) Purge(ids ...NodeID) {
	for _, id := range ids {
		delete(c.outputs, id)
		delete(c.errors, id)
		delete(c.dirty, id)
	}
}

// Reset empties the cache.
func (c *Cache) Reset() {
	clear(c.outputs)
	clear(c.errors)
	clear(c.dirty)
}

// Dirty returns the dirty nodes of g.
func (c *Cache) Dirty(g *Graph) NodeSet {
	out := make(NodeSet)
	for id := range g.nodes {
		if c.IsDirty(id) {
			out.Add(id)
		}
	}
	return out
}

// Len returns the number of nodes with cached outputs.
func (c *Cache) Len() int {
	return len(c.outputs)
}

// store records a successful evaluation.
func (c *Cache) store(id NodeID, out Values) {
	if out == nil {
		out = Values{}
	}
	c.outputs[id] = maps.Clone(out)
	delete(c.errors, id)
	delete(c.dirty, id)
}

// fail records a failed evaluation. The node's outputs become absent.
func (c *Cache) fail(id NodeID, err error) {
	delete(c.outputs, id)
	c.errors[id] = err
	delete(c.dirty, id)
}
