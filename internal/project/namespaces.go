package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stencil3/editor/internal/config"
	"github.com/stencil3/editor/internal/core/event"
	"github.com/stencil3/editor/internal/history"
	"github.com/stencil3/editor/internal/render"
	"github.com/stencil3/editor/internal/status"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// FileExt is the extension of namespace files in the project directory.
const FileExt = ".pla3"

var (
	ErrInvalidName      = errors.New("invalid namespace name")
	ErrNamespaceExists  = errors.New("namespace already exists")
	ErrNamespaceMissing = errors.New("namespace does not exist")
	ErrNamespaceBusy    = errors.New("namespace is visible or still has components")
	ErrProtected        = errors.New("namespace is protected")
)

// Recorder accepts history requests. Implemented by system.HistorySystem.
type Recorder interface {
	Submit(req history.Request)
}

// Info is one row of the project's namespace table.
type Info struct {
	Name       string
	Visible    bool
	Components int
}

// Namespaces tracks which namespaces exist in the project directory and which
// are shown. Components of hidden namespaces stay spawned but carry the
// Hidden marker, so their identities in history stay valid.
type Namespaces struct {
	dir       string
	protected string
	visible   map[string]bool

	scene    *render.Scene
	backups  history.Backups
	status   *status.Status
	bus      *event.Bus
	recorder Recorder
	log      *zap.Logger
}

func NewNamespaces(cfg config.ProjectConfig, scene *render.Scene, backups history.Backups, st *status.Status, bus *event.Bus, log *zap.Logger) *Namespaces {
	return &Namespaces{
		dir:       cfg.Dir,
		protected: cfg.ProtectedNamespace,
		visible:   make(map[string]bool),
		scene:     scene,
		backups:   backups,
		status:    st,
		bus:       bus,
		log:       log,
	}
}

// SetRecorder wires the history sink. Without one, user actions are not recorded.
func (n *Namespaces) SetRecorder(r Recorder) { n.recorder = r }

func (n *Namespaces) Dir() string { return n.dir }

// Normalize trims and NFC-normalises a namespace name so visually identical
// names map to one file.
func Normalize(ns string) string {
	return norm.NFC.String(strings.TrimSpace(ns))
}

func validName(ns string) bool {
	return ns != "" && ns != "." && ns != ".." && !strings.ContainsAny(ns, `/\`)
}

// FilePath returns the namespace file location.
func (n *Namespaces) FilePath(ns string) string {
	return filepath.Join(n.dir, ns+FileExt)
}

// Scan registers every namespace file in the project directory as hidden.
// Already-known namespaces keep their visibility.
func (n *Namespaces) Scan() error {
	entries, err := os.ReadDir(n.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan project %s: %w", n.dir, err)
	}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), FileExt)
		if e.IsDir() || !ok {
			continue
		}
		name = Normalize(name)
		if _, known := n.visible[name]; !known {
			n.visible[name] = false
		}
	}
	return nil
}

// List returns every known namespace sorted by name.
func (n *Namespaces) List() []Info {
	out := make([]Info, 0, len(n.visible))
	for ns, vis := range n.visible {
		out = append(out, Info{Name: ns, Visible: vis, Components: len(n.scene.InNamespace(ns))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Visible reports the namespace's visibility and whether it exists at all.
func (n *Namespaces) Visible(ns string) (visible, exists bool) {
	visible, exists = n.visible[Normalize(ns)]
	return visible, exists
}

// Show is the user action of showing a namespace.
func (n *Namespaces) Show(ns string) error {
	ns = Normalize(ns)
	vis, ok := n.visible[ns]
	if !ok {
		return fmt.Errorf("show %s: %w", ns, ErrNamespaceMissing)
	}
	if vis {
		return nil
	}
	n.ShowNamespace(ns, false)
	return nil
}

// Hide is the user action of hiding a namespace.
func (n *Namespaces) Hide(ns string) error {
	ns = Normalize(ns)
	vis, ok := n.visible[ns]
	if !ok {
		return fmt.Errorf("hide %s: %w", ns, ErrNamespaceMissing)
	}
	if !vis {
		return nil
	}
	n.HideNamespace(ns, false)
	return nil
}

func (n *Namespaces) ShowNamespace(ns string, historyInvoked bool) {
	n.visible[ns] = true
	count := n.scene.SetHidden(ns, false)
	n.toggled(ns, true, true, historyInvoked)
	if !historyInvoked {
		n.record(&history.NamespaceChange{Namespace: ns, Action: history.NamespaceShow})
		n.status.SetStatus(fmt.Sprintf("Loaded namespace %s (%d components)", ns, count))
	}
}

func (n *Namespaces) HideNamespace(ns string, historyInvoked bool) {
	n.visible[ns] = false
	n.scene.SetHidden(ns, true)
	n.toggled(ns, false, true, historyInvoked)
	if !historyInvoked {
		n.record(&history.NamespaceChange{Namespace: ns, Action: history.NamespaceHide})
		n.status.SetStatus(fmt.Sprintf("Hid namespace %s", ns))
	}
}

// Register makes a namespace known again, hidden.
func (n *Namespaces) Register(ns string) {
	n.visible[ns] = false
	n.toggled(ns, false, true, true)
}

// Unregister forgets a namespace.
func (n *Namespaces) Unregister(ns string) {
	delete(n.visible, ns)
	n.toggled(ns, false, false, true)
}

// Create adds a new, empty, visible namespace and its file.
func (n *Namespaces) Create(ns string) error {
	ns = Normalize(ns)
	if !validName(ns) {
		return fmt.Errorf("create %q: %w", ns, ErrInvalidName)
	}
	if _, ok := n.visible[ns]; ok {
		return fmt.Errorf("create %s: %w", ns, ErrNamespaceExists)
	}
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", ns, err)
	}
	f, err := os.OpenFile(n.FilePath(ns), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", ns, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("create %s: %w", ns, err)
	}
	n.visible[ns] = true
	n.toggled(ns, true, true, false)
	n.record(&history.NamespaceChange{Namespace: ns, Action: history.NamespaceCreate})
	n.status.Notify(status.LevelSuccess, fmt.Sprintf("Created namespace `%s`", ns), nil)
	return nil
}

// Delete removes an empty, hidden namespace. Its file goes to the trash so the
// deletion can be undone.
func (n *Namespaces) Delete(ns string) error {
	ns = Normalize(ns)
	vis, ok := n.visible[ns]
	switch {
	case !ok:
		return fmt.Errorf("delete %s: %w", ns, ErrNamespaceMissing)
	case ns == n.protected:
		return fmt.Errorf("delete %s: %w", ns, ErrProtected)
	case vis || len(n.scene.InNamespace(ns)) > 0:
		return fmt.Errorf("delete %s: %w", ns, ErrNamespaceBusy)
	}
	backup, err := n.backups.SafeDelete(n.FilePath(ns))
	if err != nil {
		n.status.Warn(fmt.Sprintf("Could not safe delete namespace file for %s", ns), err)
	}
	delete(n.visible, ns)
	n.toggled(ns, false, false, false)
	n.record(&history.NamespaceChange{
		Namespace: ns,
		Action:    history.NamespaceDelete,
		Backup:    history.NewBackupSlot(backup),
	})
	n.status.Notify(status.LevelSuccess, fmt.Sprintf("Deleted namespace `%s`", ns), nil)
	return nil
}

func (n *Namespaces) record(change *history.NamespaceChange) {
	if n.recorder == nil {
		n.log.Debug("no history recorder, change not recorded", zap.Stringer("change", change))
		return
	}
	n.recorder.Submit(history.Record(change))
}

func (n *Namespaces) toggled(ns string, visible, exists, historyInvoked bool) {
	if n.bus == nil {
		return
	}
	event.Emit(n.bus, event.NamespaceToggled{
		Namespace:      ns,
		Visible:        visible,
		Exists:         exists,
		HistoryInvoked: historyInvoked,
	})
}
