package status

import (
	"time"

	"github.com/stencil3/editor/internal/core/event"
	"go.uber.org/zap"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	}
	return "error"
}

// Notification is one toast shown to the user.
type Notification struct {
	Level   Level
	Message string
	Err     error
	At      time.Time
}

// Status is the editor's user-facing message context: the status line and the
// notification list. It is owned by the app and handed to every collaborator
// that reports to the user.
type Status struct {
	line   string
	notifs []Notification
	limit  int
	bus    *event.Bus
	log    *zap.Logger
	now    func() time.Time
}

// New creates a Status keeping at most limit notifications. bus may be nil.
func New(bus *event.Bus, log *zap.Logger, limit int) *Status {
	if limit <= 0 {
		limit = 64
	}
	return &Status{limit: limit, bus: bus, log: log, now: time.Now}
}

// SetStatus replaces the status line.
func (s *Status) SetStatus(msg string) {
	s.line = msg
	s.log.Info(msg)
	if s.bus != nil {
		event.Emit(s.bus, event.StatusChanged{Text: msg})
	}
}

// Line returns the current status line.
func (s *Status) Line() string { return s.line }

// Notify appends a notification, dropping the oldest past the limit.
func (s *Status) Notify(level Level, msg string, err error) {
	n := Notification{Level: level, Message: msg, Err: err, At: s.now()}
	s.notifs = append(s.notifs, n)
	if len(s.notifs) > s.limit {
		s.notifs = append(s.notifs[:0], s.notifs[len(s.notifs)-s.limit:]...)
	}

	fields := []zap.Field{zap.Stringer("level", level)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	switch level {
	case LevelWarning:
		s.log.Warn(msg, fields...)
	case LevelError:
		s.log.Error(msg, fields...)
	default:
		s.log.Info(msg, fields...)
	}

	if s.bus != nil {
		ev := event.Notified{Level: level.String(), Message: msg}
		if err != nil {
			ev.Err = err.Error()
		}
		event.Emit(s.bus, ev)
	}
}

// Warn is Notify at warning level.
func (s *Status) Warn(msg string, err error) {
	s.Notify(LevelWarning, msg, err)
}

// Notifications returns the retained notifications, oldest first.
func (s *Status) Notifications() []Notification {
	return append([]Notification(nil), s.notifs...)
}
