package history

import (
	"testing"

	"github.com/stencil3/editor/internal/component"
	"github.com/stencil3/editor/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUndo_RoundTrip verifies n edits followed by n undos restore the initial world.
func TestUndo_RoundTrip(t *testing.T) {
	h := newHarness(t)
	existing := h.r.SpawnComponent(component.KindLine, snap("base"))
	initial := h.r.state()

	a := h.create(snap("a"))
	h.move(a, 5, 5)
	h.edit(existing, "layer", func(s *component.Snapshot) *component.Snapshot { return s.WithLayer(3) })
	b := h.create(snap("b"))
	h.remove(a)
	h.move(b, -1, 0)
	h.remove(existing)

	steps := h.eng.History().UndoLen()
	for i := 0; i < steps; i++ {
		require.NotNil(t, h.undo(), "undo %d", i)
	}
	assert.Equal(t, initial, h.r.state())
	assert.Nil(t, h.undo(), "stack should now be empty")
	assert.Equal(t, "Nothing to undo", h.st.status)
}

// TestRedo_RestoresStateBeforeUndo verifies undo;redo is lossless at every step.
func TestRedo_RestoresStateBeforeUndo(t *testing.T) {
	h := newHarness(t)
	a := h.create(snap("a"))
	h.move(a, 1, 2)
	h.edit(a, "display_name", func(s *component.Snapshot) *component.Snapshot { return s.WithDisplayName("A") })
	h.remove(a)

	for h.eng.History().UndoLen() > 0 {
		before := h.r.state()
		h.undo()
		h.redo()
		assert.Equal(t, before, h.r.state())
		h.undo()
	}
	assert.Empty(t, h.r.state())

	for h.eng.History().RedoLen() > 0 {
		h.redo()
	}
	assert.Empty(t, h.r.state(), "final redo deletes the component again")
}

// TestRecord_CoalescesConsecutiveMoves verifies a drag is one undo step.
func TestRecord_CoalescesConsecutiveMoves(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	original := h.r.live[id]

	assert.Equal(t, Pushed, h.move(id, 1, 0))
	assert.Equal(t, Coalesced, h.move(id, 1, 0))
	assert.Equal(t, Coalesced, h.move(id, 0, 3))

	require.Equal(t, 1, h.eng.History().UndoLen())
	top, _ := h.eng.History().UndoTop()
	change := top[0].(*ComponentChange)
	assert.True(t, change.Before.Equal(original))
	assert.True(t, change.After.Equal(original.Translate(2, 3)))

	h.undo()
	assert.True(t, h.r.live[id].Equal(original))
}

// TestRecord_MoveAndNodesCoalesce verifies gesture labels merge with each other.
func TestRecord_MoveAndNodesCoalesce(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	h.move(id, 1, 1)
	out := h.edit(id, LabelNodes, func(s *component.Snapshot) *component.Snapshot {
		return s.WithNodes([]component.Node{{X: 4, Y: 4}})
	})
	assert.Equal(t, Coalesced, out)
	assert.Equal(t, 1, h.eng.History().UndoLen())
}

// TestRecord_AttributeLabels verifies attribute edits merge only under the same label.
func TestRecord_AttributeLabels(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))

	layer := func(l float64) func(*component.Snapshot) *component.Snapshot {
		return func(s *component.Snapshot) *component.Snapshot { return s.WithLayer(l) }
	}
	assert.Equal(t, Pushed, h.edit(id, "layer", layer(1)))
	assert.Equal(t, Coalesced, h.edit(id, "layer", layer(2)))
	assert.Equal(t, Pushed, h.edit(id, "display_name", func(s *component.Snapshot) *component.Snapshot {
		return s.WithDisplayName("x")
	}))
	assert.Equal(t, Pushed, h.move(id, 1, 0), "move does not merge into an attribute edit")
	assert.Equal(t, Pushed, h.edit(id, "", layer(5)), "unlabelled edits never merge")
	assert.Equal(t, Pushed, h.edit(id, "", layer(6)))
	assert.Equal(t, 5, h.eng.History().UndoLen())
}

// TestRecord_DifferentComponentsDoNotCoalesce verifies merging is per cell.
func TestRecord_DifferentComponentsDoNotCoalesce(t *testing.T) {
	h := newHarness(t)
	a := h.r.SpawnComponent(component.KindLine, snap("a"))
	b := h.r.SpawnComponent(component.KindLine, snap("b"))
	h.move(a, 1, 0)
	h.move(b, 1, 0)
	h.move(a, 1, 0)
	assert.Equal(t, 3, h.eng.History().UndoLen())
}

// TestRecord_CollapsesGestureBackToStart verifies a drag returning home leaves no step.
func TestRecord_CollapsesGestureBackToStart(t *testing.T) {
	h := newHarness(t)
	other := h.r.SpawnComponent(component.KindLine, snap("o"))
	h.move(other, 9, 9)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	h.move(id, 2, 0)
	assert.Equal(t, Collapsed, h.move(id, -2, 0))
	assert.Equal(t, 1, h.eng.History().UndoLen(), "only the unrelated move remains")
}

// TestRecord_NoOpDiscarded verifies a no-op edit never touches either stack.
func TestRecord_NoOpDiscarded(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	h.move(id, 1, 0)
	h.undo()
	require.Equal(t, 1, h.eng.History().RedoLen())

	s := h.r.live[id]
	assert.Equal(t, Discarded, h.record(Edited(id, s, s.Clone(), LabelMove)))
	assert.Equal(t, 0, h.eng.History().UndoLen())
	assert.Equal(t, 1, h.eng.History().RedoLen(), "no-op must not clear redo")
}

// TestRecord_NewEditClearsRedo verifies history divergence drops the redo future.
func TestRecord_NewEditClearsRedo(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	h.move(id, 1, 0)
	h.undo()
	// same component and gesture label: must not merge while a redo future exists
	assert.Equal(t, Pushed, h.move(id, 0, 1))
	assert.Equal(t, 0, h.eng.History().RedoLen())
	assert.Nil(t, h.redo())
	assert.Equal(t, "Nothing to redo", h.st.status)
}

// TestIdentity_FollowsRespawns verifies entries keep targeting a component
// across create, delete, undo and redo cycles.
func TestIdentity_FollowsRespawns(t *testing.T) {
	h := newHarness(t)
	i1 := h.create(snap("c")) // batch A
	h.remove(i1)              // batch B

	h.undo() // undo B: respawn as I2
	i2, ok := h.r.find("ns-c")
	require.True(t, ok)
	assert.NotEqual(t, i1, i2)
	assert.Equal(t, "Undid deletion of ns-c", h.st.status)

	h.undo() // undo A: despawn I2
	_, ok = h.r.find("ns-c")
	assert.False(t, ok)
	assert.Equal(t, "Undid creation of ns-c", h.st.status)

	h.redo() // redo A: respawn as I3
	i3, ok := h.r.find("ns-c")
	require.True(t, ok)
	assert.NotEqual(t, i2, i3)
	assert.Equal(t, "Redid creation of ns-c", h.st.status)

	h.redo() // redo B must delete I3
	_, ok = h.r.find("ns-c")
	assert.False(t, ok)
	assert.Equal(t, "Redid deletion of ns-c", h.st.status)
	assert.Equal(t, 0, h.eng.Identities().Len(), "no live identity may stay mapped")
}

// TestIdentity_NewEditReusesCell verifies a fresh edit after a respawn shares
// the cell of the component's earlier entries.
func TestIdentity_NewEditReusesCell(t *testing.T) {
	h := newHarness(t)
	i1 := h.create(snap("c"))
	h.remove(i1)
	h.undo()
	i2, _ := h.r.find("ns-c")

	h.move(i2, 3, 3) // clears redo, pushes
	top, _ := h.eng.History().UndoTop()
	first := h.eng.History().undo[0][0].(*ComponentChange)
	assert.Same(t, first.Cell, top[0].(*ComponentChange).Cell)

	h.undo() // move
	h.undo() // creation: despawns the respawned object
	assert.Empty(t, h.r.state())
}

// TestUndo_RefreshesSelectionHighlight verifies edits re-render selected components.
func TestUndo_RefreshesSelectionHighlight(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	h.r.selected = id
	h.move(id, 1, 1)
	h.undo()
	assert.True(t, h.r.highlighted[id])
	assert.Equal(t, 1, h.r.refreshes)
	assert.Equal(t, "Undid edit of ns-a", h.st.status)
}

// TestRecord_MultiEntryBatchIsOneStep verifies batches apply atomically.
func TestRecord_MultiEntryBatchIsOneStep(t *testing.T) {
	h := newHarness(t)
	a := h.r.SpawnComponent(component.KindLine, snap("a"))
	b := h.r.SpawnComponent(component.KindLine, snap("b"))
	initial := h.r.state()

	changes := make([]Change, 0, 2)
	for _, id := range []ecs.EntityID{a, b} {
		before := h.r.live[id]
		after := before.Translate(10, 0)
		h.r.live[id] = after
		changes = append(changes, Edited(id, before, after, LabelMove))
	}
	assert.Equal(t, Pushed, h.record(changes...))
	h.move(a, 1, 0) // batch of two never coalesces
	assert.Equal(t, 2, h.eng.History().UndoLen())

	h.undo()
	batch := h.undo()
	assert.Len(t, batch, 2)
	assert.Equal(t, initial, h.r.state())
	assert.Equal(t, "Undid edit of ns-b; Undid edit of ns-a", h.st.status)

	h.redo()
	assert.Equal(t, "Redid edit of ns-a; Redid edit of ns-b", h.st.status)
}

// TestRecord_CreateThenEditInOneBatch verifies undo reverses entries last to first.
func TestRecord_CreateThenEditInOneBatch(t *testing.T) {
	h := newHarness(t)
	initial := h.r.state()

	s := snap("c")
	id := h.r.SpawnComponent(component.KindLine, s)
	moved := s.Translate(3, 3)
	h.r.live[id] = moved
	assert.Equal(t, Pushed, h.record(Created(id, s), Edited(id, s, moved, LabelMove)))
	done := h.r.state()

	h.undo()
	assert.Equal(t, initial, h.r.state())
	assert.Equal(t, "Undid edit of ns-c; Undid creation of ns-c", h.st.status)

	h.redo()
	assert.Equal(t, done, h.r.state())
	assert.Equal(t, 1, h.eng.Identities().Len())
}

// TestRecord_RejectsInvalidBatches verifies invariant checks at record time.
func TestRecord_RejectsInvalidBatches(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))

	_, err := h.eng.Record(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = h.eng.Record([]Change{ComponentEdit{Entity: id}})
	assert.ErrorIs(t, err, ErrEmptyChange)

	_, err = h.eng.Record([]Change{Created(0, snap("z"))})
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = h.eng.Record([]Change{
		Created(id, snap("a")),
		&NamespaceChange{Namespace: "ns", Action: NamespaceHide},
	})
	assert.ErrorIs(t, err, ErrMixedBatch)

	_, err = NewComponentEdit(id, nil, nil, "")
	assert.ErrorIs(t, err, ErrEmptyChange)

	assert.Equal(t, 0, h.eng.History().UndoLen())
}

// TestRecord_RejectsFreedEntity verifies edits and creations of freed entities never reach the stack.
func TestRecord_RejectsFreedEntity(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	before := h.r.live[id]
	require.NoError(t, h.r.Despawn(id))

	_, err := h.eng.Record([]Change{Edited(id, before, before.Translate(1, 0), LabelMove)})
	assert.ErrorIs(t, err, ErrDeadEntity)
	_, err = h.eng.Record([]Change{Created(id, before)})
	assert.ErrorIs(t, err, ErrDeadEntity)
	assert.Equal(t, 0, h.eng.History().UndoLen())
	assert.Equal(t, 0, h.eng.Identities().Len())

	out, err := h.eng.Record([]Change{Deleted(id, before)})
	require.NoError(t, err)
	assert.Equal(t, Pushed, out)
}

// TestUndo_StaleIdentityIsReported verifies a broken mapping surfaces as an error.
func TestUndo_StaleIdentityIsReported(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	h.move(id, 1, 0)
	require.NoError(t, h.r.Despawn(id)) // behind the engine's back

	_, err := h.eng.Undo()
	assert.ErrorIs(t, err, ErrStaleIdentity)
	assert.Equal(t, 0, h.eng.History().RedoLen())
}

// TestClear_DropsStacksAndIdentities verifies project switches reset everything.
func TestClear_DropsStacksAndIdentities(t *testing.T) {
	h := newHarness(t)
	a := h.create(snap("a"))
	h.move(a, 1, 0)
	h.create(snap("b"))
	h.undo()
	require.Equal(t, 1, h.eng.Identities().Len())

	h.eng.Clear()
	assert.Equal(t, 0, h.eng.History().UndoLen())
	assert.Equal(t, 0, h.eng.History().RedoLen())
	assert.Equal(t, 0, h.eng.Identities().Len())
	assert.Nil(t, h.undo())
}

// TestRecord_MaxUndoDropsOldest verifies the configured depth bound.
func TestRecord_MaxUndoDropsOldest(t *testing.T) {
	h := newHarness(t)
	h.eng.deps.MaxUndo = 2
	h.create(snap("a"))
	h.create(snap("b"))
	h.create(snap("c"))
	assert.Equal(t, 2, h.eng.History().UndoLen())
	h.undo()
	h.undo()
	assert.Nil(t, h.undo())
	_, ok := h.r.find("ns-a")
	assert.True(t, ok, "oldest creation fell off the stack and stays")
}

// TestHistory_Lines verifies the viewer rendering order.
func TestHistory_Lines(t *testing.T) {
	h := newHarness(t)
	a := h.create(snap("a"))
	h.move(a, 1, 0)
	h.create(snap("b"))
	h.undo()
	assert.Equal(t, []string{
		"Create ns-a",
		"Edit ns-a (move)",
		"Current State",
		"Create ns-b",
	}, h.eng.History().Lines())
}

// TestHandle_DispatchesRequests verifies the tagged request entry point.
func TestHandle_DispatchesRequests(t *testing.T) {
	h := newHarness(t)
	id := h.r.SpawnComponent(component.KindLine, snap("a"))
	before := h.r.live[id]
	after := before.Translate(1, 1)
	h.r.live[id] = after

	res, err := h.eng.Handle(Record(Edited(id, before, after, LabelMove)))
	require.NoError(t, err)
	assert.Equal(t, "record", res.Action)
	assert.Equal(t, Pushed, res.Outcome)
	assert.Equal(t, "pushed: Edit ns-a (move)", res.Description)
	assert.Equal(t, after.Digest(), res.Digest)

	res, err = h.eng.Handle(RequestUndo{})
	require.NoError(t, err)
	assert.Equal(t, "undo: Edit ns-a (move)", res.Description)
	assert.Len(t, res.Batch, 1)

	res, err = h.eng.Handle(RequestUndo{})
	require.NoError(t, err)
	assert.Equal(t, "nothing to undo", res.Description)
	assert.Nil(t, res.Batch)

	res, err = h.eng.Handle(RequestRedo{})
	require.NoError(t, err)
	assert.Equal(t, "redo", res.Action)

	res, err = h.eng.Handle(RequestClear{})
	require.NoError(t, err)
	assert.Equal(t, "clear", res.Action)
	assert.Equal(t, 0, h.eng.History().UndoLen())
}
