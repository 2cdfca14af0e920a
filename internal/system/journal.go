package system

import (
	"context"
	"time"

	"github.com/stencil3/editor/internal/core/event"
	coresys "github.com/stencil3/editor/internal/core/system"
	"github.com/stencil3/editor/internal/persist"
	"go.uber.org/zap"
)

// maxJournalBuffer bounds the entries kept while the journal is unreachable.
const maxJournalBuffer = 4096

// JournalWriter stores journal entries. Implemented by persist.JournalRepo.
type JournalWriter interface {
	Append(ctx context.Context, entries []persist.JournalEntry) error
}

// JournalSystem buffers applied history requests and writes them to the
// journal every interval ticks. Phase 4 (Persist).
type JournalSystem struct {
	repo      JournalWriter
	session   string
	log       *zap.Logger
	buf       []persist.JournalEntry
	tickCount int
	interval  int // flush every N ticks
}

func NewJournalSystem(bus *event.Bus, repo JournalWriter, session string, log *zap.Logger, intervalTicks int) *JournalSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	s := &JournalSystem{
		repo:     repo,
		session:  session,
		log:      log,
		interval: intervalTicks,
	}
	event.Subscribe(bus, s.onApplied)
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) onApplied(e event.HistoryApplied) {
	s.buf = append(s.buf, persist.JournalEntry{
		Session:     s.session,
		Action:      e.Action,
		Description: e.Description,
		Digest:      e.Digest,
		At:          e.At,
	})
	if len(s.buf) > maxJournalBuffer {
		dropped := len(s.buf) - maxJournalBuffer
		s.buf = append(s.buf[:0], s.buf[dropped:]...)
		s.log.Warn("journal buffer full, dropped oldest entries", zap.Int("dropped", dropped))
	}
}

func (s *JournalSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.Flush()
}

// Buffered returns how many entries wait for the next flush.
func (s *JournalSystem) Buffered() int { return len(s.buf) }

// Flush writes every buffered entry now. Called at shutdown as well.
// On failure the entries stay buffered for the next attempt.
func (s *JournalSystem) Flush() {
	if len(s.buf) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.Append(ctx, s.buf); err != nil {
		s.log.Error("journal flush failed", zap.Int("entries", len(s.buf)), zap.Error(err))
		return
	}
	s.log.Debug("journal flushed", zap.Int("entries", len(s.buf)))
	s.buf = nil
}
