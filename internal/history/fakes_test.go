package history

import (
	"errors"
	"fmt"
	"path"
	"testing"

	"github.com/stencil3/editor/internal/component"
	"github.com/stencil3/editor/internal/core/ecs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRenderer struct {
	pool        *ecs.EntityPool
	live        map[ecs.EntityID]*component.Snapshot
	kinds       map[ecs.EntityID]component.Kind
	selected    ecs.EntityID
	highlighted map[ecs.EntityID]bool
	refreshes   int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		pool:        ecs.NewEntityPool(),
		live:        make(map[ecs.EntityID]*component.Snapshot),
		kinds:       make(map[ecs.EntityID]component.Kind),
		highlighted: make(map[ecs.EntityID]bool),
	}
}

var errNoEntity = errors.New("no such entity")

func (r *fakeRenderer) SpawnComponent(kind component.Kind, snap *component.Snapshot) ecs.EntityID {
	id := r.pool.Create()
	r.live[id] = snap.Clone()
	r.kinds[id] = kind
	return id
}

func (r *fakeRenderer) Despawn(id ecs.EntityID) error {
	if _, ok := r.live[id]; !ok {
		return errNoEntity
	}
	delete(r.live, id)
	delete(r.kinds, id)
	r.pool.Destroy(id)
	return nil
}

func (r *fakeRenderer) UpdateComponentData(id ecs.EntityID, snap *component.Snapshot) error {
	if _, ok := r.live[id]; !ok {
		return errNoEntity
	}
	r.live[id] = snap.Clone()
	return nil
}

func (r *fakeRenderer) RefreshVisual(id ecs.EntityID, _ *component.Snapshot, selected bool) error {
	if _, ok := r.live[id]; !ok {
		return errNoEntity
	}
	r.highlighted[id] = selected
	r.refreshes++
	return nil
}

func (r *fakeRenderer) Selected(id ecs.EntityID) bool { return id == r.selected }

func (r *fakeRenderer) Exists(id ecs.EntityID) bool {
	_, ok := r.live[id]
	return ok
}

// state maps full ids of live components to their digests.
func (r *fakeRenderer) state() map[string]string {
	out := make(map[string]string, len(r.live))
	for _, s := range r.live {
		out[s.FullID().String()] = s.Digest()
	}
	return out
}

func (r *fakeRenderer) find(fullID string) (ecs.EntityID, bool) {
	for id, s := range r.live {
		if s.FullID().String() == fullID {
			return id, true
		}
	}
	return 0, false
}

type fakeKinds struct{}

func (fakeKinds) KindOf(string) component.Kind { return component.KindLine }

type fakeNamespaces struct {
	visible map[string]bool // registered namespaces and their visibility
	calls   []string
}

func newFakeNamespaces() *fakeNamespaces {
	return &fakeNamespaces{visible: make(map[string]bool)}
}

func (n *fakeNamespaces) ShowNamespace(ns string, historyInvoked bool) {
	n.visible[ns] = true
	n.calls = append(n.calls, fmt.Sprintf("show %s %t", ns, historyInvoked))
}

func (n *fakeNamespaces) HideNamespace(ns string, historyInvoked bool) {
	n.visible[ns] = false
	n.calls = append(n.calls, fmt.Sprintf("hide %s %t", ns, historyInvoked))
}

func (n *fakeNamespaces) Register(ns string) {
	n.visible[ns] = false
	n.calls = append(n.calls, "register "+ns)
}

func (n *fakeNamespaces) Unregister(ns string) {
	delete(n.visible, ns)
	n.calls = append(n.calls, "unregister "+ns)
}

func (n *fakeNamespaces) FilePath(ns string) string { return "/project/" + ns + ".pla3" }

// fakeBackups is an in-memory file system of paths.
type fakeBackups struct {
	files       map[string]bool
	seq         int
	failRestore bool
}

func newFakeBackups(paths ...string) *fakeBackups {
	b := &fakeBackups{files: make(map[string]bool)}
	for _, p := range paths {
		b.files[p] = true
	}
	return b
}

func (b *fakeBackups) Restore(backup, dest string) error {
	if b.failRestore {
		return errors.New("disk full")
	}
	if !b.files[backup] {
		return fmt.Errorf("backup %s missing", backup)
	}
	delete(b.files, backup)
	b.files[dest] = true
	return nil
}

func (b *fakeBackups) SafeDelete(p string) (string, error) {
	if !b.files[p] {
		return "", nil
	}
	b.seq++
	backup := fmt.Sprintf("/trash/%d-%s", b.seq, path.Base(p))
	delete(b.files, p)
	b.files[backup] = true
	return backup, nil
}

type fakeStatus struct {
	status string
	warns  []string
}

func (s *fakeStatus) SetStatus(msg string)     { s.status = msg }
func (s *fakeStatus) Warn(msg string, _ error) { s.warns = append(s.warns, msg) }

type harness struct {
	t   *testing.T
	eng *Engine
	r   *fakeRenderer
	ns  *fakeNamespaces
	b   *fakeBackups
	st  *fakeStatus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:  t,
		r:  newFakeRenderer(),
		ns: newFakeNamespaces(),
		b:  newFakeBackups(),
		st: &fakeStatus{},
	}
	h.eng = NewEngine(Deps{
		Renderer:   h.r,
		Kinds:      fakeKinds{},
		Namespaces: h.ns,
		Backups:    h.b,
		Status:     h.st,
		Log:        zap.NewNop(),
	})
	return h
}

func snap(id string, nodes ...component.Node) *component.Snapshot {
	if len(nodes) == 0 {
		nodes = []component.Node{{X: 0, Y: 0}, {X: 10, Y: 10}}
	}
	return &component.Snapshot{Namespace: "ns", ID: id, Type: "simpleLine", Nodes: nodes}
}

func (h *harness) record(changes ...Change) Outcome {
	h.t.Helper()
	out, err := h.eng.Record(changes)
	require.NoError(h.t, err)
	return out
}

// create spawns a component the way the creation tool does and records it.
func (h *harness) create(s *component.Snapshot) ecs.EntityID {
	h.t.Helper()
	id := h.r.SpawnComponent(component.KindLine, s)
	h.record(Created(id, s))
	return id
}

func (h *harness) edit(id ecs.EntityID, label string, fn func(*component.Snapshot) *component.Snapshot) Outcome {
	h.t.Helper()
	before := h.r.live[id]
	require.NotNil(h.t, before, "edit of dead entity %s", id)
	after := fn(before)
	h.r.live[id] = after
	return h.record(Edited(id, before, after, label))
}

func (h *harness) move(id ecs.EntityID, dx, dy int32) Outcome {
	h.t.Helper()
	return h.edit(id, LabelMove, func(s *component.Snapshot) *component.Snapshot { return s.Translate(dx, dy) })
}

func (h *harness) remove(id ecs.EntityID) {
	h.t.Helper()
	before := h.r.live[id]
	require.NoError(h.t, h.r.Despawn(id))
	h.record(Deleted(id, before))
}

func (h *harness) undo() Batch {
	h.t.Helper()
	b, err := h.eng.Undo()
	require.NoError(h.t, err)
	return b
}

func (h *harness) redo() Batch {
	h.t.Helper()
	b, err := h.eng.Redo()
	require.NoError(h.t, err)
	return b
}
