package system

import (
	"errors"
	"time"

	"github.com/stencil3/editor/internal/core/event"
	coresys "github.com/stencil3/editor/internal/core/system"
	"github.com/stencil3/editor/internal/history"
	"github.com/stencil3/editor/internal/status"
	"go.uber.org/zap"
)

// HistorySystem owns the history engine and feeds it the requests submitted
// since the last tick. Phase 2 (History).
//
// Records are handled before undo, redo and clear in the same tick, so an
// edit finished in the same frame as a shortcut press is on the stack before
// the shortcut acts on it.
type HistorySystem struct {
	engine *history.Engine
	bus    *event.Bus
	status *status.Status
	log    *zap.Logger
	now    func() time.Time

	queue []history.Request
}

func NewHistorySystem(engine *history.Engine, bus *event.Bus, st *status.Status, log *zap.Logger) *HistorySystem {
	return &HistorySystem{engine: engine, bus: bus, status: st, log: log, now: time.Now}
}

func (s *HistorySystem) Phase() coresys.Phase { return coresys.PhaseHistory }

// Submit queues a request for the next update.
func (s *HistorySystem) Submit(req history.Request) {
	s.queue = append(s.queue, req)
}

func (s *HistorySystem) Undo()  { s.Submit(history.RequestUndo{}) }
func (s *HistorySystem) Redo()  { s.Submit(history.RequestRedo{}) }
func (s *HistorySystem) Clear() { s.Submit(history.RequestClear{}) }

// Pending returns how many requests wait for the next update.
func (s *HistorySystem) Pending() int { return len(s.queue) }

func (s *HistorySystem) Engine() *history.Engine { return s.engine }

func (s *HistorySystem) Update(_ time.Duration) {
	if len(s.queue) == 0 {
		return
	}
	queue := s.queue
	s.queue = nil

	for _, req := range queue {
		if _, ok := req.(history.RequestRecord); ok {
			s.handle(req)
		}
	}
	for _, req := range queue {
		if _, ok := req.(history.RequestRecord); !ok {
			s.handle(req)
		}
	}
}

func (s *HistorySystem) handle(req history.Request) {
	res, err := s.engine.Handle(req)
	if err != nil {
		s.log.Error("history request failed", zap.String("action", res.Action), zap.Error(err))
		msg := "Could not " + res.Action
		if errors.Is(err, history.ErrStaleIdentity) {
			msg += ": the component is gone, the step was dropped"
		}
		s.status.Notify(status.LevelError, msg, err)
		return
	}
	if !applied(res) {
		return
	}
	event.Emit(s.bus, event.HistoryApplied{
		Action:      res.Action,
		Description: res.Description,
		Digest:      res.Digest,
		At:          s.now(),
	})
}

// applied reports whether the request changed the stacks.
func applied(res history.Result) bool {
	return res.Batch != nil || res.Action == "clear" || res.Outcome == history.Collapsed
}
