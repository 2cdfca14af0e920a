package history

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Deps are the collaborators the engine drives.
type Deps struct {
	Renderer   Renderer
	Kinds      Kinds
	Namespaces Namespaces
	Backups    Backups
	Status     Reporter
	Log        *zap.Logger
	MaxUndo    int // 0 = unbounded
}

// Engine records edits and applies undo/redo. It is not safe for concurrent
// use: every call happens on the tick goroutine.
type Engine struct {
	history History
	ids     *IdentityMap
	deps    Deps
	log     *zap.Logger
}

func NewEngine(deps Deps) *Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		ids:  NewIdentityMap(),
		deps: deps,
		log:  log,
	}
}

func (e *Engine) History() *History        { return &e.history }
func (e *Engine) Identities() *IdentityMap { return e.ids }

// Outcome tells what Record did with a batch.
type Outcome int

const (
	Discarded Outcome = iota // no-op edit, stacks untouched
	Coalesced                // merged into the undo top
	Collapsed                // merged into the undo top, which became a no-op and was popped
	Pushed                   // new undo step, redo cleared
)

func (o Outcome) String() string {
	switch o {
	case Discarded:
		return "discarded"
	case Coalesced:
		return "coalesced"
	case Collapsed:
		return "collapsed"
	}
	return "pushed"
}

// Record adds the changes of one user action to history.
func (e *Engine) Record(changes []Change) (Outcome, error) {
	if err := validateBatch(changes); err != nil {
		return Discarded, err
	}
	if err := e.checkExists(changes); err != nil {
		return Discarded, err
	}
	if len(changes) == 1 {
		if ce, ok := changes[0].(ComponentEdit); ok && ce.Before != nil && ce.Before.Equal(ce.After) {
			e.log.Debug("discarded no-op edit", zap.Stringer("component", ce.Before))
			return Discarded, nil
		}
	}

	batch := make(Batch, 0, len(changes))
	for _, ch := range changes {
		switch ch := ch.(type) {
		case ComponentEdit:
			cell := e.ids.Acquire(ch.Entity)
			if ch.After == nil {
				e.ids.Forget(ch.Entity)
			}
			batch = append(batch, &ComponentChange{
				Cell:   cell,
				Before: ch.Before,
				After:  ch.After,
				Label:  ch.Label,
			})
		case *NamespaceChange:
			n := *ch
			batch = append(batch, &n)
		}
	}

	if outcome, ok := e.coalesce(batch); ok {
		e.log.Debug("coalesced edit", zap.Stringer("batch", batch), zap.Stringer("outcome", outcome))
		return outcome, nil
	}
	e.history.pushUndo(batch, e.deps.MaxUndo)
	e.log.Debug("added entry to undo stack", zap.Stringer("batch", batch), zap.Int("depth", e.history.UndoLen()))
	return Pushed, nil
}

func validateBatch(changes []Change) error {
	if len(changes) == 0 {
		return ErrEmptyBatch
	}
	var components, namespaces int
	for _, ch := range changes {
		switch ch := ch.(type) {
		case ComponentEdit:
			if err := ch.validate(); err != nil {
				return err
			}
			components++
		case *NamespaceChange:
			if ch == nil {
				return ErrEmptyChange
			}
			namespaces++
		default:
			return fmt.Errorf("history: unsupported change %T", ch)
		}
	}
	if components > 0 && namespaces > 0 {
		return ErrMixedBatch
	}
	return nil
}

// checkExists rejects edits and creations of freed entities. Deletions are
// exempt since the tool has already despawned the entity.
func (e *Engine) checkExists(changes []Change) error {
	for _, ch := range changes {
		ce, ok := ch.(ComponentEdit)
		if !ok || ce.After == nil {
			continue
		}
		if !e.deps.Renderer.Exists(ce.Entity) {
			return fmt.Errorf("%w: %s", ErrDeadEntity, ce.Entity)
		}
	}
	return nil
}

// coalesce merges a single component edit into the undo top when both touch
// the same cell under compatible labels and the edit continues from the top's
// after state. Nothing merges while a redo future exists.
func (e *Engine) coalesce(batch Batch) (Outcome, bool) {
	if len(batch) != 1 || e.history.RedoLen() > 0 {
		return Pushed, false
	}
	next, ok := batch[0].(*ComponentChange)
	if !ok || next.Before == nil || next.After == nil {
		return Pushed, false
	}
	top := e.history.topComponent()
	if top == nil || top.Cell != next.Cell || top.After == nil {
		return Pushed, false
	}
	if !mergeable(top.Label, next.Label) || !top.After.Equal(next.Before) {
		return Pushed, false
	}
	top.After = next.After
	if top.Before.Equal(top.After) {
		e.history.popUndo()
		return Collapsed, true
	}
	return Coalesced, true
}

func isGesture(label string) bool {
	return label == LabelMove || label == LabelNodes
}

// mergeable: gesture edits merge with each other, attribute edits only with
// the same attribute, unlabelled edits never.
func mergeable(prev, next string) bool {
	if prev == "" || next == "" {
		return false
	}
	if isGesture(prev) && isGesture(next) {
		return true
	}
	return prev == next
}

type direction int

const (
	dirUndo direction = iota
	dirRedo
)

func (d direction) String() string {
	if d == dirUndo {
		return "undo"
	}
	return "redo"
}

func (d direction) past() string {
	if d == dirUndo {
		return "Undid"
	}
	return "Redid"
}

// Undo reverses the newest undo batch and moves it onto the redo stack.
// A nil batch with a nil error means there was nothing to undo.
func (e *Engine) Undo() (Batch, error) {
	return e.step(dirUndo)
}

// Redo re-applies the newest redo batch and moves it onto the undo stack.
func (e *Engine) Redo() (Batch, error) {
	return e.step(dirRedo)
}

func (e *Engine) step(d direction) (Batch, error) {
	from, to := &e.history.undo, &e.history.redo
	if d == dirRedo {
		from, to = to, from
	}
	if len(*from) == 0 {
		e.report(fmt.Sprintf("Nothing to %s", d))
		return nil, nil
	}
	batch := (*from)[len(*from)-1]
	(*from)[len(*from)-1] = nil
	*from = (*from)[:len(*from)-1]

	descs := make([]string, 0, len(batch))
	for i := range batch {
		// Undo walks the batch backwards so later entries are reversed first.
		entry := batch[i]
		if d == dirUndo {
			entry = batch[len(batch)-1-i]
		}
		var (
			desc string
			err  error
		)
		switch entry := entry.(type) {
		case *ComponentChange:
			desc, err = e.applyComponent(d, entry)
		case *NamespaceChange:
			desc = e.applyNamespace(d, entry)
		}
		if err != nil {
			// The batch is dropped: re-queueing a half-applied batch would
			// replay the entries that did succeed.
			e.log.Error("history batch failed", zap.Stringer("direction", d), zap.Stringer("entry", entry), zap.Error(err))
			return nil, fmt.Errorf("%s %s: %w", d, entry, err)
		}
		e.log.Debug(desc)
		descs = append(descs, desc)
	}
	*to = append(*to, batch)
	e.report(strings.Join(descs, "; "))
	return batch, nil
}

func (e *Engine) applyComponent(d direction, c *ComponentChange) (string, error) {
	target, other := c.Before, c.After
	if d == dirRedo {
		target, other = c.After, c.Before
	}
	switch {
	case target != nil && other == nil:
		// undo of a deletion, or redo of a creation
		id := e.deps.Renderer.SpawnComponent(e.deps.Kinds.KindOf(target.Type), target)
		c.Cell.Rebind(id)
		e.ids.Register(id, c.Cell)
		what := "deletion"
		if d == dirRedo {
			what = "creation"
		}
		return fmt.Sprintf("%s %s of %s", d.past(), what, target), nil

	case target != nil:
		id := c.Cell.Resolve()
		if err := e.deps.Renderer.UpdateComponentData(id, target); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStaleIdentity, err)
		}
		if err := e.deps.Renderer.RefreshVisual(id, target, e.deps.Renderer.Selected(id)); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStaleIdentity, err)
		}
		return fmt.Sprintf("%s edit of %s", d.past(), target), nil

	case other != nil:
		// undo of a creation, or redo of a deletion
		id := c.Cell.Resolve()
		if err := e.deps.Renderer.Despawn(id); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStaleIdentity, err)
		}
		e.ids.Forget(id)
		what := "creation"
		if d == dirRedo {
			what = "deletion"
		}
		return fmt.Sprintf("%s %s of %s", d.past(), what, other), nil
	}
	return "", ErrEmptyChange
}

// applyNamespace drives the namespace towards the state the direction
// requires. File failures are reported but never abort the batch: the
// in-memory project is authoritative, the namespace file best effort.
func (e *Engine) applyNamespace(d direction, n *NamespaceChange) string {
	action := n.Action
	if d == dirUndo {
		action = action.Inverse()
	}
	ns := e.deps.Namespaces
	switch action {
	case NamespaceShow:
		e.restoreFile(n)
		ns.ShowNamespace(n.Namespace, true)
	case NamespaceHide:
		ns.HideNamespace(n.Namespace, true)
		if n.Backup != nil {
			e.backupFile(n)
		}
	case NamespaceCreate:
		e.restoreFile(n)
		ns.Register(n.Namespace)
	case NamespaceDelete:
		ns.Unregister(n.Namespace)
		if n.Backup == nil {
			n.Backup = &BackupSlot{}
		}
		e.backupFile(n)
	}
	return fmt.Sprintf("%s %s namespace %s", d.past(), n.Action, n.Namespace)
}

func (e *Engine) restoreFile(n *NamespaceChange) {
	backup := n.Backup.Path()
	if backup == "" {
		return
	}
	dest := e.deps.Namespaces.FilePath(n.Namespace)
	if err := e.deps.Backups.Restore(backup, dest); err != nil {
		e.warn(fmt.Sprintf("Could not restore namespace file %s", dest), err)
		return
	}
	n.Backup.Set("")
}

func (e *Engine) backupFile(n *NamespaceChange) {
	path := e.deps.Namespaces.FilePath(n.Namespace)
	backup, err := e.deps.Backups.SafeDelete(path)
	if err != nil {
		e.warn(fmt.Sprintf("Could not safe delete namespace file %s", path), err)
		return
	}
	if backup != "" {
		n.Backup.Set(backup)
	}
}

// Clear drops both stacks and every identity mapping, e.g. on project switch.
func (e *Engine) Clear() {
	e.history.clear()
	e.ids.Clear()
	e.log.Debug("history cleared")
}

func (e *Engine) report(msg string) {
	if e.deps.Status != nil {
		e.deps.Status.SetStatus(msg)
	}
}

func (e *Engine) warn(msg string, err error) {
	e.log.Warn(msg, zap.Error(err))
	if e.deps.Status != nil {
		e.deps.Status.Warn(msg, err)
	}
}
