package history

import (
	"fmt"

	"github.com/stencil3/editor/internal/component"
	"github.com/stencil3/editor/internal/core/ecs"
)

// Coalescing labels for gesture edits. Any other non-empty label names the
// attribute an edit touched (e.g. "layer", "display_name").
const (
	LabelMove  = "move"
	LabelNodes = "nodes"
)

// Change is one reversible change as produced by a tool, before it enters
// history: either a ComponentEdit or a *NamespaceChange.
type Change interface {
	change()
}

// ComponentEdit describes a change to one live component. A nil Before means
// the tool created the component, a nil After means it deleted it.
type ComponentEdit struct {
	Entity ecs.EntityID
	Before *component.Snapshot
	After  *component.Snapshot
	Label  string
}

func (ComponentEdit) change() {}

// NewComponentEdit validates the edit before it can reach history.
func NewComponentEdit(id ecs.EntityID, before, after *component.Snapshot, label string) (ComponentEdit, error) {
	e := ComponentEdit{Entity: id, Before: before, After: after, Label: label}
	return e, e.validate()
}

func (e ComponentEdit) validate() error {
	if e.Before == nil && e.After == nil {
		return ErrEmptyChange
	}
	if e.Entity.IsZero() {
		return ErrNoIdentity
	}
	return nil
}

// Created records that id was spawned from snap.
func Created(id ecs.EntityID, snap *component.Snapshot) ComponentEdit {
	return ComponentEdit{Entity: id, After: snap}
}

// Deleted records that id, last holding snap, was despawned.
func Deleted(id ecs.EntityID, snap *component.Snapshot) ComponentEdit {
	return ComponentEdit{Entity: id, Before: snap}
}

// Edited records an in-place change of id under a coalescing label.
func Edited(id ecs.EntityID, before, after *component.Snapshot, label string) ComponentEdit {
	return ComponentEdit{Entity: id, Before: before, After: after, Label: label}
}

// Entry is one stored history record: *ComponentChange or *NamespaceChange.
type Entry interface {
	fmt.Stringer
	entry()
}

// ComponentChange is a component edit whose identity has been replaced by a Cell.
type ComponentChange struct {
	Cell   *Cell
	Before *component.Snapshot
	After  *component.Snapshot
	Label  string
}

func (*ComponentChange) entry() {}

// Snapshot returns whichever side is present, preferring After.
func (c *ComponentChange) Snapshot() *component.Snapshot {
	if c.After != nil {
		return c.After
	}
	return c.Before
}

func (c *ComponentChange) String() string {
	switch {
	case c.Before == nil:
		return "Create " + c.After.String()
	case c.After == nil:
		return "Delete " + c.Before.String()
	case c.Label != "":
		return fmt.Sprintf("Edit %s (%s)", c.After, c.Label)
	}
	return "Edit " + c.After.String()
}

// NamespaceAction is what happened to a namespace.
type NamespaceAction int

const (
	NamespaceShow NamespaceAction = iota
	NamespaceHide
	NamespaceCreate
	NamespaceDelete
)

func (a NamespaceAction) String() string {
	switch a {
	case NamespaceShow:
		return "show"
	case NamespaceHide:
		return "hide"
	case NamespaceCreate:
		return "create"
	case NamespaceDelete:
		return "delete"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Inverse returns the action that reverses a.
func (a NamespaceAction) Inverse() NamespaceAction {
	switch a {
	case NamespaceShow:
		return NamespaceHide
	case NamespaceHide:
		return NamespaceShow
	case NamespaceCreate:
		return NamespaceDelete
	}
	return NamespaceCreate
}

// BackupSlot holds where a namespace file was moved when it was safe-deleted.
// The engine rewrites it whenever it deletes the file again.
type BackupSlot struct {
	path string
}

func NewBackupSlot(path string) *BackupSlot {
	return &BackupSlot{path: path}
}

func (b *BackupSlot) Path() string {
	if b == nil {
		return ""
	}
	return b.path
}

func (b *BackupSlot) Set(path string) { b.path = path }

// NamespaceChange is both a Change and an Entry: namespaces are named by
// string, so no identity cell is needed. Backup is nil when the action never
// touched the namespace file.
type NamespaceChange struct {
	Namespace string
	Action    NamespaceAction
	Backup    *BackupSlot
}

func (*NamespaceChange) change() {}
func (*NamespaceChange) entry()  {}

func (n *NamespaceChange) String() string {
	var verb string
	switch n.Action {
	case NamespaceShow:
		verb = "Show"
	case NamespaceHide:
		verb = "Hide"
	case NamespaceCreate:
		verb = "Create"
	default:
		verb = "Delete"
	}
	return verb + " namespace " + n.Namespace
}
