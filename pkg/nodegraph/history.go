package nodegraph

// entry is one undo or redo step.
type entry struct {
	label string
	cmd   Command
}

// openBatch collects the commands applied between BeginBatch and
// CommitBatch. baseline is a scratch clone of the graph at BeginBatch,
// used to detect batches with no net effect.
type openBatch struct {
	label    string
	cmds     []Command
	baseline *Graph
}

// history holds the undo and redo stacks. The newest entry is last.
type history struct {
	undo  []entry
	redo  []entry
	limit int
	batch *openBatch
}

// push records a new entry, clearing redo and dropping the oldest entries
// beyond the limit.
func (h *history) push(e entry) {
	h.undo = append(h.undo, e)
	clear(h.redo)
	h.redo = h.redo[:0]
	h.trim()
}

func (h *history) trim() {
	if h.limit <= 0 || len(h.undo) <= h.limit {
		return
	}
	drop := len(h.undo) - h.limit
	clear(h.undo[:drop])
	h.undo = append(h.undo[:0], h.undo[drop:]...)
}

func (h *history) peekUndo() (entry, bool) {
	if len(h.undo) == 0 {
		return entry{}, false
	}
	return h.undo[len(h.undo)-1], true
}

func (h *history) peekRedo() (entry, bool) {
	if len(h.redo) == 0 {
		return entry{}, false
	}
	return h.redo[len(h.redo)-1], true
}

// undone moves the top undo entry to the redo stack.
func (h *history) undone() {
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, e)
}

// redone moves the top redo entry back to the undo stack.
func (h *history) redone() {
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, e)
	h.trim()
}

func (h *history) reset() {
	h.undo = nil
	h.redo = nil
}

func entryLabel(label string, cmd Command) string {
	if label != "" {
		return label
	}
	return string(cmd.Kind())
}
