package history

import (
	"github.com/stencil3/editor/internal/component"
	"github.com/stencil3/editor/internal/core/ecs"
)

// Renderer owns live components. Implemented by render.Scene.
type Renderer interface {
	SpawnComponent(kind component.Kind, snap *component.Snapshot) ecs.EntityID
	Despawn(id ecs.EntityID) error
	UpdateComponentData(id ecs.EntityID, snap *component.Snapshot) error
	RefreshVisual(id ecs.EntityID, snap *component.Snapshot, selected bool) error
	Selected(id ecs.EntityID) bool
	// Exists reports whether id was spawned and not yet freed. An entity
	// despawned this tick still exists.
	Exists(id ecs.EntityID) bool
}

// Kinds classifies component type tags. Implemented by data.Skin.
type Kinds interface {
	KindOf(typeTag string) component.Kind
}

// Namespaces is the project side of namespace history. historyInvoked tells
// the implementation not to record the call again.
type Namespaces interface {
	ShowNamespace(ns string, historyInvoked bool)
	HideNamespace(ns string, historyInvoked bool)
	Register(ns string)
	Unregister(ns string)
	FilePath(ns string) string
}

// Backups moves namespace files in and out of the trash. Implemented by backup.Trash.
type Backups interface {
	Restore(backupPath, dest string) error
	// SafeDelete returns "" with no error when path does not exist.
	SafeDelete(path string) (string, error)
}

// Reporter receives user-facing messages. Implemented by status.Status.
type Reporter interface {
	SetStatus(msg string)
	Warn(msg string, err error)
}
