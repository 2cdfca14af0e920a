package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/stencil3/editor/internal/component"
	"github.com/stencil3/editor/internal/core/ecs"
	"github.com/stencil3/editor/internal/history"
	"github.com/stencil3/editor/internal/render"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// LabelScript tags edits made by bulk-edit scripts. It never coalesces with
// gesture edits.
const LabelScript = "script"

var ErrNoChanges = errors.New("script made no changes")

// Recorder accepts history requests. Implemented by system.HistorySystem.
type Recorder interface {
	Submit(req history.Request)
}

// Engine runs bulk-edit Lua scripts against the scene. Every change one run
// makes becomes a single history batch, so one undo reverts the whole script.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm       *lua.LState
	scene    *render.Scene
	kinds    history.Kinds
	recorder Recorder
	log      *zap.Logger
	newID    func() string

	edits []*pendingEdit
	byID  map[ecs.EntityID]*pendingEdit
}

// pendingEdit folds every change a run makes to one entity into a single
// before/after pair. A nil after marks a deletion, which stays live in the
// scene until the run succeeds.
type pendingEdit struct {
	id            ecs.EntityID
	before, after *component.Snapshot
}

func NewEngine(scene *render.Scene, kinds history.Kinds, recorder Recorder, log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:       vm,
		scene:    scene,
		kinds:    kinds,
		recorder: recorder,
		log:      log,
		newID:    func() string { return uuid.NewString() },
	}
	e.register()
	return e
}

// LoadLibrary loads every .lua file of dir as shared helper code. A missing
// dir is skipped.
func (e *Engine) LoadLibrary(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua library", zap.String("file", path))
	}
	return nil
}

// RunFile executes a script file and submits its changes as one batch.
func (e *Engine) RunFile(path string) (int, error) {
	return e.run(path, func() error { return e.vm.DoFile(path) })
}

// RunString executes script source and submits its changes as one batch.
func (e *Engine) RunString(src string) (int, error) {
	return e.run("<string>", func() error { return e.vm.DoString(src) })
}

// run executes fn and returns how many component changes were submitted.
// A failing script has its partial changes reverted and records nothing.
func (e *Engine) run(name string, fn func() error) (int, error) {
	e.edits = e.edits[:0]
	e.byID = make(map[ecs.EntityID]*pendingEdit)

	if err := fn(); err != nil {
		e.revert()
		return 0, fmt.Errorf("script %s: %w", name, err)
	}
	e.commitDeletes()

	changes := e.changes()
	if len(changes) == 0 {
		e.log.Info("script made no changes", zap.String("script", name))
		return 0, ErrNoChanges
	}
	e.recorder.Submit(history.Record(changes...))
	e.log.Info("script applied", zap.String("script", name), zap.Int("changes", len(changes)))
	return len(changes), nil
}

func (e *Engine) changes() []history.Change {
	out := make([]history.Change, 0, len(e.edits))
	for _, p := range e.edits {
		if p.before == nil && p.after == nil {
			continue // spawned and deleted in the same run
		}
		if p.before != nil && p.before.Equal(p.after) {
			continue
		}
		out = append(out, history.ComponentEdit{Entity: p.id, Before: p.before, After: p.after, Label: LabelScript})
	}
	return out
}

// commitDeletes despawns the entities the run deleted.
func (e *Engine) commitDeletes() {
	for _, p := range e.edits {
		if p.after != nil {
			continue
		}
		if err := e.scene.Despawn(p.id); err != nil {
			e.log.Warn("script delete", zap.Stringer("entity", p.id), zap.Error(err))
		}
	}
}

// revert puts the scene back the way it was before the run, newest change
// first. Deleted entities were never despawned, so every tracked entity keeps
// its id.
func (e *Engine) revert() {
	for i := len(e.edits) - 1; i >= 0; i-- {
		p := e.edits[i]
		if p.before == nil {
			_ = e.scene.Despawn(p.id)
			continue
		}
		if err := e.scene.UpdateComponentData(p.id, p.before); err == nil {
			_ = e.scene.RefreshVisual(p.id, p.before, e.scene.Selected(p.id))
		}
	}
	e.edits = e.edits[:0]
}

// deleted reports whether the current run already deleted id.
func (e *Engine) deleted(id ecs.EntityID) bool {
	p, ok := e.byID[id]
	return ok && p.after == nil
}

func (e *Engine) track(id ecs.EntityID, before, after *component.Snapshot) {
	if p, ok := e.byID[id]; ok {
		p.after = after
		return
	}
	p := &pendingEdit{id: id, before: before, after: after}
	e.byID[id] = p
	e.edits = append(e.edits, p)
}

func (e *Engine) register() {
	for name, fn := range map[string]lua.LGFunction{
		"components": e.luaComponents,
		"get":        e.luaGet,
		"spawn":      e.luaSpawn,
		"translate":  e.luaTranslate,
		"set_layer":  e.luaSetLayer,
		"set_name":   e.luaSetName,
		"delete":     e.luaDelete,
	} {
		e.vm.SetGlobal(name, e.vm.NewFunction(fn))
	}
}

// components(ns) returns the ids of ns, sorted.
func (e *Engine) luaComponents(L *lua.LState) int {
	ns := L.CheckString(1)
	ids := e.scene.InNamespace(ns)
	t := L.NewTable()
	for _, id := range ids {
		if e.deleted(id) {
			continue
		}
		if s, ok := e.scene.Snapshot(id); ok {
			t.Append(lua.LString(s.ID))
		}
	}
	L.Push(t)
	return 1
}

// get(ns, id) returns the component as a table, or nil.
func (e *Engine) luaGet(L *lua.LState) int {
	_, snap, ok := e.lookup(L.CheckString(1), L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	t.RawSetString("ns", lua.LString(snap.Namespace))
	t.RawSetString("id", lua.LString(snap.ID))
	t.RawSetString("type", lua.LString(snap.Type))
	t.RawSetString("name", lua.LString(snap.DisplayName))
	t.RawSetString("layer", lua.LNumber(snap.Layer))
	nodes := L.NewTable()
	for _, n := range snap.Nodes {
		pt := L.NewTable()
		pt.Append(lua.LNumber(n.X))
		pt.Append(lua.LNumber(n.Y))
		nodes.Append(pt)
	}
	t.RawSetString("nodes", nodes)
	L.Push(t)
	return 1
}

// spawn{ns=, id=, type=, name=, layer=, nodes={{x,y},...}} creates a
// component and returns its id.
func (e *Engine) luaSpawn(L *lua.LState) int {
	t := L.CheckTable(1)
	snap := &component.Snapshot{
		Namespace:   lua.LVAsString(t.RawGetString("ns")),
		ID:          lua.LVAsString(t.RawGetString("id")),
		Type:        lua.LVAsString(t.RawGetString("type")),
		DisplayName: lua.LVAsString(t.RawGetString("name")),
		Layer:       float64(lua.LVAsNumber(t.RawGetString("layer"))),
	}
	if snap.Namespace == "" {
		L.ArgError(1, "ns is required")
		return 0
	}
	if snap.ID == "" {
		snap.ID = e.newID()
	}
	if snap.Type == "" {
		snap.Type = "simplePoint"
	}
	if nodes, ok := t.RawGetString("nodes").(*lua.LTable); ok {
		snap.Nodes = readNodes(L, nodes)
	}
	if len(snap.Nodes) == 0 {
		L.ArgError(1, "nodes are required")
		return 0
	}
	if id, exists := e.scene.Find(snap.FullID()); exists && !e.deleted(id) {
		L.RaiseError("component %s already exists", snap.FullID())
		return 0
	}

	id := e.scene.SpawnComponent(e.kinds.KindOf(snap.Type), snap)
	e.track(id, nil, snap.Clone())
	L.Push(lua.LString(snap.ID))
	return 1
}

func readNodes(L *lua.LState, t *lua.LTable) []component.Node {
	var nodes []component.Node
	t.ForEach(func(_, v lua.LValue) {
		pt, ok := v.(*lua.LTable)
		if !ok {
			L.RaiseError("node must be a {x, y} table")
			return
		}
		nodes = append(nodes, component.Node{
			X: int32(lua.LVAsNumber(pt.RawGetInt(1))),
			Y: int32(lua.LVAsNumber(pt.RawGetInt(2))),
		})
	})
	return nodes
}

// translate(ns, id, dx, dy)
func (e *Engine) luaTranslate(L *lua.LState) int {
	dx, dy := int32(L.CheckNumber(3)), int32(L.CheckNumber(4))
	return e.edit(L, func(s *component.Snapshot) *component.Snapshot { return s.Translate(dx, dy) })
}

// set_layer(ns, id, layer)
func (e *Engine) luaSetLayer(L *lua.LState) int {
	layer := float64(L.CheckNumber(3))
	return e.edit(L, func(s *component.Snapshot) *component.Snapshot { return s.WithLayer(layer) })
}

// set_name(ns, id, name)
func (e *Engine) luaSetName(L *lua.LState) int {
	name := L.CheckString(3)
	return e.edit(L, func(s *component.Snapshot) *component.Snapshot { return s.WithDisplayName(name) })
}

// delete(ns, id)
func (e *Engine) luaDelete(L *lua.LState) int {
	id, snap := e.mustLookup(L)
	e.track(id, snap, nil)
	return 0
}

func (e *Engine) edit(L *lua.LState, fn func(*component.Snapshot) *component.Snapshot) int {
	id, before := e.mustLookup(L)
	after := fn(before)
	if err := e.scene.UpdateComponentData(id, after); err != nil {
		L.RaiseError("edit %s: %s", before.FullID(), err)
		return 0
	}
	if err := e.scene.RefreshVisual(id, after, e.scene.Selected(id)); err != nil {
		L.RaiseError("edit %s: %s", before.FullID(), err)
		return 0
	}
	e.track(id, before, after)
	return 0
}

func (e *Engine) lookup(ns, cid string) (ecs.EntityID, *component.Snapshot, bool) {
	id, ok := e.scene.Find(component.FullID{Namespace: ns, ID: cid})
	if !ok || e.deleted(id) {
		return 0, nil, false
	}
	snap, ok := e.scene.Snapshot(id)
	return id, snap, ok
}

func (e *Engine) mustLookup(L *lua.LState) (ecs.EntityID, *component.Snapshot) {
	ns, cid := L.CheckString(1), L.CheckString(2)
	id, snap, ok := e.lookup(ns, cid)
	if !ok {
		L.RaiseError("no component %s-%s", ns, cid)
	}
	return id, snap
}

// Globals lists the script API, for help output.
func Globals() []string {
	g := []string{"components", "get", "spawn", "translate", "set_layer", "set_name", "delete"}
	sort.Strings(g)
	return g
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
