package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: dispatch last tick's events
	PhaseUpdate               // 1: tools and scripts produce edits
	PhaseHistory              // 2: record, undo, redo
	PhaseRender               // 3: refresh visuals
	PhasePersist              // 4: journal flush
	PhaseCleanup              // 5: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseUpdate:
		return "update"
	case PhaseHistory:
		return "history"
	case PhaseRender:
		return "render"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
