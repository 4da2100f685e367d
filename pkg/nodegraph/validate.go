package nodegraph

// Validation functions are pure: they read the graph and the registry and
// never mutate either, so they can run speculatively.

// ValidateWire runs every wire check against g without mutating it and
// returns the first failure as a *RejectedError. Checks run in this order:
// missing-socket, direction, self-loop, type-mismatch, connection-limit,
// cycle. A nil registry accepts every type pairing.
func ValidateWire(g *Graph, reg TypeRegistry, w Wire) error {
	return validateWire(g, reg, KindAddWire, w)
}

func validateWire(g *Graph, reg TypeRegistry, kind CommandKind, w Wire) error {
	if w.ID == "" {
		return reject(kind, ReasonMissingEntity, "wire id is empty")
	}
	if _, dup := g.wires[w.ID]; dup {
		return reject(kind, ReasonDuplicateID, "wire %s already exists", w.ID)
	}

	from, ok := g.sockets[w.From]
	if !ok {
		return reject(kind, ReasonMissingSocket, "socket %s", w.From)
	}
	to, ok := g.sockets[w.To]
	if !ok {
		return reject(kind, ReasonMissingSocket, "socket %s", w.To)
	}

	if from.Direction != Output {
		return reject(kind, ReasonDirection, "source %s is an %s socket", from.ID, from.Direction)
	}
	if to.Direction != Input {
		return reject(kind, ReasonDirection, "target %s is an %s socket", to.ID, to.Direction)
	}

	if from.Node == to.Node {
		return reject(kind, ReasonSelfLoop, "node %s", from.Node)
	}

	if reg != nil && !reg.IsCompatible(from.DataType, to.DataType) {
		return reject(kind, ReasonTypeMismatch, "%s -> %s", from.DataType, to.DataType)
	}

	if limit := from.Limit(); limit != Unbounded && g.connectionCount(from.ID)+1 > limit {
		return reject(kind, ReasonConnectionLimit, "socket %s allows %d", from.ID, limit)
	}
	if limit := to.Limit(); limit != Unbounded && g.connectionCount(to.ID)+1 > limit {
		return reject(kind, ReasonConnectionLimit, "socket %s allows %d", to.ID, limit)
	}

	// Adding from -> to closes a cycle iff from is already reachable from to.
	if reachable(g, to.Node, from.Node) {
		return reject(kind, ReasonCycle, "%s is downstream of %s", from.Node, to.Node)
	}

	return nil
}

// validateNewNode checks a node and its sockets before insertion.
func validateNewNode(g *Graph, reg TypeRegistry, kind CommandKind, n Node, sockets []Socket) error {
	if n.ID == "" {
		return reject(kind, ReasonMissingEntity, "node id is empty")
	}
	if _, dup := g.nodes[n.ID]; dup {
		return reject(kind, ReasonDuplicateID, "node %s already exists", n.ID)
	}
	if err := validateSockets(g, kind, n.ID, n.Inputs, n.Outputs, sockets, nil); err != nil {
		return err
	}
	return validateParams(reg, kind, n.Type, n.Params)
}

// validateSockets checks that sockets exactly back the given id lists.
// Ids in reuse may already exist in g because they belong to the node.
func validateSockets(g *Graph, kind CommandKind, node NodeID, inputs, outputs []SocketID, sockets []Socket, reuse map[SocketID]struct{}) error {
	byID := make(map[SocketID]Socket, len(sockets))
	for _, s := range sockets {
		if s.ID == "" {
			return reject(kind, ReasonMissingEntity, "socket id is empty on node %s", node)
		}
		if _, dup := byID[s.ID]; dup {
			return reject(kind, ReasonDuplicateID, "socket %s listed twice", s.ID)
		}
		if _, exists := g.sockets[s.ID]; exists {
			if _, ok := reuse[s.ID]; !ok {
				return reject(kind, ReasonDuplicateID, "socket %s already exists", s.ID)
			}
		}
		if s.Node != node {
			return reject(kind, ReasonMissingEntity, "socket %s belongs to %s, not %s", s.ID, s.Node, node)
		}
		byID[s.ID] = s
	}

	check := func(ids []SocketID, dir Direction) error {
		for _, sid := range ids {
			s, ok := byID[sid]
			if !ok {
				return reject(kind, ReasonMissingSocket, "socket %s", sid)
			}
			if s.Direction != dir {
				return reject(kind, ReasonDirection, "socket %s is listed as %s but is %s", sid, dir, s.Direction)
			}
			delete(byID, sid)
		}
		return nil
	}
	if err := check(inputs, Input); err != nil {
		return err
	}
	if err := check(outputs, Output); err != nil {
		return err
	}
	for sid := range byID {
		return reject(kind, ReasonMissingSocket, "socket %s is not listed on node %s", sid, node)
	}
	return nil
}

func validateParams(reg TypeRegistry, kind CommandKind, nodeType string, params Params) error {
	pv, ok := reg.(ParamValidator)
	if !ok {
		return nil
	}
	if err := pv.ValidateParams(nodeType, params); err != nil {
		return reject(kind, ReasonInvalidParams, "%s: %v", nodeType, err)
	}
	return nil
}
