package render

import (
	"errors"
	"fmt"
	"sort"

	"github.com/stencil3/editor/internal/component"
	"github.com/stencil3/editor/internal/core/ecs"
	"github.com/stencil3/editor/internal/data"
	"go.uber.org/zap"
)

// ErrNotAlive is returned for operations on despawned or unknown entities.
var ErrNotAlive = errors.New("entity not alive")

// Scene owns the live map components: their data, their drawable form and the
// selection. It is the rendering side the history engine drives.
// Accessed only from the tick goroutine, so no locks.
type Scene struct {
	world *ecs.World
	skin  *data.Skin
	log   *zap.Logger

	Data      *ecs.Store[component.Data]
	Visual    *ecs.Store[component.Visual]
	Selection *ecs.Store[component.Selected]
	Hidden    *ecs.Store[component.Hidden]

	byID map[component.FullID]ecs.EntityID
}

func NewScene(world *ecs.World, skin *data.Skin, log *zap.Logger) *Scene {
	s := &Scene{
		world:     world,
		skin:      skin,
		log:       log,
		Data:      ecs.NewStore[component.Data](),
		Visual:    ecs.NewStore[component.Visual](),
		Selection: ecs.NewStore[component.Selected](),
		Hidden:    ecs.NewStore[component.Hidden](),
		byID:      make(map[component.FullID]ecs.EntityID, 256),
	}
	reg := world.Registry()
	reg.Register(s.Data)
	reg.Register(s.Visual)
	reg.Register(s.Selection)
	reg.Register(s.Hidden)
	return s
}

func (s *Scene) World() *ecs.World { return s.world }

// SpawnComponent creates an entity holding a copy of snap and its visual.
func (s *Scene) SpawnComponent(kind component.Kind, snap *component.Snapshot) ecs.EntityID {
	id := s.world.CreateEntity()
	snap = snap.Clone()
	s.Data.Set(id, &component.Data{Snapshot: snap})
	v := s.buildVisual(snap, false)
	v.Kind = kind
	s.Visual.Set(id, v)
	s.byID[snap.FullID()] = id
	s.log.Debug("spawned component", zap.Stringer("entity", id), zap.Stringer("component", snap), zap.Stringer("kind", kind))
	return id
}

// Despawn queues the entity for destruction at the end of the tick.
func (s *Scene) Despawn(id ecs.EntityID) error {
	d, err := s.data(id)
	if err != nil {
		return fmt.Errorf("despawn: %w", err)
	}
	if cur, ok := s.byID[d.Snapshot.FullID()]; ok && cur == id {
		delete(s.byID, d.Snapshot.FullID())
	}
	s.Selection.Remove(id)
	s.world.MarkForDestruction(id)
	s.log.Debug("despawned component", zap.Stringer("entity", id), zap.Stringer("component", d.Snapshot))
	return nil
}

// UpdateComponentData overwrites the live component with snap.
func (s *Scene) UpdateComponentData(id ecs.EntityID, snap *component.Snapshot) error {
	d, err := s.data(id)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if old := d.Snapshot.FullID(); old != snap.FullID() {
		if cur, ok := s.byID[old]; ok && cur == id {
			delete(s.byID, old)
		}
	}
	d.Snapshot = snap.Clone()
	s.byID[snap.FullID()] = id
	return nil
}

// RefreshVisual rebuilds the drawable form, with the selection highlight if selected.
func (s *Scene) RefreshVisual(id ecs.EntityID, snap *component.Snapshot, selected bool) error {
	if _, err := s.data(id); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	rev := 0
	if old, ok := s.Visual.Get(id); ok {
		rev = old.Revision
	}
	v := s.buildVisual(snap, selected)
	v.Revision = rev + 1
	s.Visual.Set(id, v)
	return nil
}

func (s *Scene) Selected(id ecs.EntityID) bool {
	return s.Selection.Has(id)
}

// Exists reports whether id was spawned and not yet freed by cleanup.
func (s *Scene) Exists(id ecs.EntityID) bool {
	return s.world.Pool().Alive(id) && s.Data.Has(id)
}

// Select makes id the only selected component.
func (s *Scene) Select(id ecs.EntityID) error {
	d, err := s.data(id)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	s.Deselect()
	s.Selection.Set(id, &component.Selected{})
	return s.RefreshVisual(id, d.Snapshot, true)
}

// Deselect clears the selection and its highlight.
func (s *Scene) Deselect() {
	ecs.Each2(s.Selection, s.Data, func(id ecs.EntityID, _ *component.Selected, d *component.Data) {
		s.Selection.Remove(id)
		_ = s.RefreshVisual(id, d.Snapshot, false)
	})
}

// Find returns the live entity holding the component with the given full id.
func (s *Scene) Find(fid component.FullID) (ecs.EntityID, bool) {
	id, ok := s.byID[fid]
	if !ok || !s.world.Alive(id) {
		return 0, false
	}
	return id, true
}

// Snapshot returns a copy of the live component's data.
func (s *Scene) Snapshot(id ecs.EntityID) (*component.Snapshot, bool) {
	d, err := s.data(id)
	if err != nil {
		return nil, false
	}
	return d.Snapshot.Clone(), true
}

// InNamespace returns the live entities of ns ordered by component id.
func (s *Scene) InNamespace(ns string) []ecs.EntityID {
	ids := ecs.Filter(s.Data, func(id ecs.EntityID, d *component.Data) bool {
		return d.Snapshot.Namespace == ns && s.world.Alive(id)
	})
	sort.Slice(ids, func(i, j int) bool {
		a, _ := s.Data.Get(ids[i])
		b, _ := s.Data.Get(ids[j])
		return a.Snapshot.ID < b.Snapshot.ID
	})
	return ids
}

// SetHidden marks or unmarks every component of ns as hidden and returns how many it touched.
func (s *Scene) SetHidden(ns string, hidden bool) int {
	ids := s.InNamespace(ns)
	for _, id := range ids {
		if hidden {
			s.Hidden.Set(id, &component.Hidden{})
			s.Selection.Remove(id)
		} else {
			s.Hidden.Remove(id)
		}
	}
	return len(ids)
}

// Count returns the number of live components.
func (s *Scene) Count() int {
	n := 0
	s.Data.Each(func(id ecs.EntityID, _ *component.Data) {
		if s.world.Alive(id) {
			n++
		}
	})
	return n
}

func (s *Scene) data(id ecs.EntityID) (*component.Data, error) {
	if !s.world.Alive(id) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotAlive)
	}
	d, ok := s.Data.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s has no component data: %w", id, ErrNotAlive)
	}
	return d, nil
}

func (s *Scene) buildVisual(snap *component.Snapshot, selected bool) *component.Visual {
	colour, width := s.skin.Style(snap.Type)
	v := &component.Visual{
		Kind:        s.skin.KindOf(snap.Type),
		Points:      append([]component.Node(nil), snap.Nodes...),
		Colour:      colour,
		Width:       width,
		Highlighted: selected,
	}
	for i, n := range snap.Nodes {
		if i == 0 {
			v.Min, v.Max = n, n
			continue
		}
		v.Min.X, v.Min.Y = min(v.Min.X, n.X), min(v.Min.Y, n.Y)
		v.Max.X, v.Max.Y = max(v.Max.X, n.X), max(v.Max.Y, n.Y)
	}
	return v
}
