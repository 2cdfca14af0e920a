package history

import (
	"strings"

	"github.com/stencil3/editor/internal/component"
)

// Batch is one undo/redo step: a non-empty list of entries that are applied
// and reversed together, all component changes or all namespace changes.
type Batch []Entry

func (b Batch) String() string {
	parts := make([]string, len(b))
	for i, e := range b {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// LastSnapshot returns the snapshot of the last component entry in the batch.
func (b Batch) LastSnapshot() *component.Snapshot {
	for i := len(b) - 1; i >= 0; i-- {
		if c, ok := b[i].(*ComponentChange); ok {
			return c.Snapshot()
		}
	}
	return nil
}

// History is the undo/redo stack pair. The last element of each slice is the top.
type History struct {
	undo []Batch
	redo []Batch
}

func (h *History) UndoLen() int { return len(h.undo) }
func (h *History) RedoLen() int { return len(h.redo) }

// UndoTop returns the batch the next Undo will apply.
func (h *History) UndoTop() (Batch, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	return h.undo[len(h.undo)-1], true
}

// RedoTop returns the batch the next Redo will apply.
func (h *History) RedoTop() (Batch, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	return h.redo[len(h.redo)-1], true
}

// Lines renders the stacks the way the history viewer shows them: undo stack
// oldest first, a "Current State" marker, then the redo stack nearest first.
func (h *History) Lines() []string {
	lines := make([]string, 0, len(h.undo)+len(h.redo)+1)
	for _, b := range h.undo {
		lines = append(lines, b.String())
	}
	lines = append(lines, "Current State")
	for i := len(h.redo) - 1; i >= 0; i-- {
		lines = append(lines, h.redo[i].String())
	}
	return lines
}

// topComponent returns the undo top when it is a single component change.
func (h *History) topComponent() *ComponentChange {
	top, ok := h.UndoTop()
	if !ok || len(top) != 1 {
		return nil
	}
	c, _ := top[0].(*ComponentChange)
	return c
}

func (h *History) popUndo() {
	h.undo[len(h.undo)-1] = nil
	h.undo = h.undo[:len(h.undo)-1]
}

// pushUndo pushes a freshly recorded batch; the redo future is no longer reachable.
func (h *History) pushUndo(b Batch, maxUndo int) {
	h.clearRedo()
	h.undo = append(h.undo, b)
	if maxUndo > 0 && len(h.undo) > maxUndo {
		drop := len(h.undo) - maxUndo
		clear(h.undo[:drop])
		h.undo = h.undo[drop:]
	}
}

func (h *History) clearRedo() {
	clear(h.redo)
	h.redo = h.redo[:0]
}

func (h *History) clear() {
	h.undo = nil
	h.redo = nil
}
