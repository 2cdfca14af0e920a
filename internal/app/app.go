// Package app wires the editor's collaborators into one tick-driven runtime.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stencil3/editor/internal/backup"
	"github.com/stencil3/editor/internal/config"
	"github.com/stencil3/editor/internal/core/ecs"
	"github.com/stencil3/editor/internal/core/event"
	coresys "github.com/stencil3/editor/internal/core/system"
	"github.com/stencil3/editor/internal/data"
	"github.com/stencil3/editor/internal/history"
	"github.com/stencil3/editor/internal/persist"
	"github.com/stencil3/editor/internal/project"
	"github.com/stencil3/editor/internal/render"
	"github.com/stencil3/editor/internal/scripting"
	"github.com/stencil3/editor/internal/status"
	"github.com/stencil3/editor/internal/system"
	"go.uber.org/zap"
)

// maxSettleTicks bounds Settle; requests and events settle in two or three ticks.
const maxSettleTicks = 16

type App struct {
	Config  *config.Config
	Session string

	Bus        *event.Bus
	World      *ecs.World
	Skin       *data.Skin
	Scene      *render.Scene
	Status     *status.Status
	Trash      *backup.Trash
	Namespaces *project.Namespaces
	History    *system.HistorySystem
	Scripts    *scripting.Engine
	Journal    *persist.JournalRepo // nil when the journal is disabled

	db         *persist.DB
	journalSys *system.JournalSystem
	runner     *coresys.Runner
	log        *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Session: uuid.NewString(),
		Bus:     event.NewBus(),
		World:   ecs.NewWorld(),
		runner:  coresys.NewRunner(),
		log:     log.With(zap.String("component", "app")),
	}

	a.Skin = data.DefaultSkin()
	if cfg.Skin.Path != "" {
		skin, err := data.LoadSkin(cfg.Skin.Path)
		if err != nil {
			return nil, fmt.Errorf("load skin: %w", err)
		}
		a.Skin = skin
	}

	a.Scene = render.NewScene(a.World, a.Skin, log)
	a.Status = status.New(a.Bus, log, 0)
	a.Trash = backup.NewTrash(cfg.Project.TrashDir, log)
	a.Namespaces = project.NewNamespaces(cfg.Project, a.Scene, a.Trash, a.Status, a.Bus, log)
	if err := a.Namespaces.Scan(); err != nil {
		return nil, err
	}

	engine := history.NewEngine(history.Deps{
		Renderer:   a.Scene,
		Kinds:      a.Skin,
		Namespaces: a.Namespaces,
		Backups:    a.Trash,
		Status:     a.Status,
		Log:        log,
		MaxUndo:    cfg.History.MaxUndo,
	})
	a.History = system.NewHistorySystem(engine, a.Bus, a.Status, log)
	a.Namespaces.SetRecorder(a.History)

	a.Scripts = scripting.NewEngine(a.Scene, a.Skin, a.History, log)
	if cfg.Scripting.LibDir != "" {
		if err := a.Scripts.LoadLibrary(cfg.Scripting.LibDir); err != nil {
			a.Scripts.Close()
			return nil, fmt.Errorf("load script library: %w", err)
		}
	}

	a.runner.Register(system.NewEventDispatchSystem(a.Bus))
	a.runner.Register(a.History)
	a.runner.Register(system.NewCleanupSystem(a.World, log))

	if cfg.Journal.Enabled {
		db, repo, err := persist.OpenJournal(ctx, cfg.Journal, log)
		if err != nil {
			a.Scripts.Close()
			return nil, err
		}
		a.db, a.Journal = db, repo
		a.journalSys = system.NewJournalSystem(a.Bus, repo, a.Session, log, cfg.Journal.FlushIntervalTicks)
		a.runner.Register(a.journalSys)
	}

	a.log.Info("editor ready",
		zap.String("session", a.Session),
		zap.Int("namespaces", len(a.Namespaces.List())),
		zap.Int("skin_types", a.Skin.Count()),
		zap.Bool("journal", a.Journal != nil),
		zap.Strings("systems", a.runner.Describe()),
	)
	return a, nil
}

// Tick runs every system once.
func (a *App) Tick() {
	a.runner.Tick(a.Config.Editor.TickRate)
}

// Settle ticks until no history request or event is waiting.
func (a *App) Settle() {
	for i := 0; i < maxSettleTicks; i++ {
		if a.History.Pending() == 0 && a.Bus.Pending() == 0 {
			return
		}
		a.Tick()
	}
	a.log.Warn("editor did not settle", zap.Int("ticks", maxSettleTicks))
}

// Run ticks at the configured rate until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.Config.Editor.TickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Tick()
		}
	}
}

// Undo queues an undo and applies it.
func (a *App) Undo() {
	a.History.Undo()
	a.Settle()
}

// Redo queues a redo and applies it.
func (a *App) Redo() {
	a.History.Redo()
	a.Settle()
}

// Close settles pending work, flushes the journal and releases the Lua VM
// and the journal database.
func (a *App) Close() error {
	a.Settle()
	a.Scripts.Close()
	if a.journalSys == nil {
		return nil
	}
	a.journalSys.Flush()
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	a.log.Info("editor closed", zap.String("session", a.Session))
	return nil
}
