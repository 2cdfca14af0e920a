package event

import "time"

// StatusChanged is emitted whenever the status line text changes.
type StatusChanged struct {
	Text string
}

// Notified is emitted for every toast-style notification.
type Notified struct {
	Level   string
	Message string
	Err     string
}

// HistoryApplied is emitted once per processed history request.
type HistoryApplied struct {
	Action      string // "record", "undo", "redo", "clear"
	Description string
	Digest      string // digest of the last component snapshot touched, if any
	At          time.Time
}

// NamespaceToggled is emitted when a namespace is shown, hidden, created or deleted.
type NamespaceToggled struct {
	Namespace      string
	Visible        bool
	Exists         bool
	HistoryInvoked bool
}
