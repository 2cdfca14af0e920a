package history

import "errors"

var (
	// ErrEmptyChange is returned for a component change with neither a before
	// nor an after snapshot.
	ErrEmptyChange = errors.New("history: component change has neither before nor after")
	// ErrNoIdentity is returned for a component change without a live entity.
	ErrNoIdentity = errors.New("history: component change has no entity")
	// ErrDeadEntity is returned when an edit or creation names an entity the
	// renderer has already freed.
	ErrDeadEntity = errors.New("history: component change names a freed entity")
	// ErrEmptyBatch is returned when recording zero changes.
	ErrEmptyBatch = errors.New("history: empty batch")
	// ErrMixedBatch is returned when one batch mixes component and namespace changes.
	ErrMixedBatch = errors.New("history: batch mixes component and namespace changes")
	// ErrStaleIdentity is returned when a cell resolves to an entity the
	// renderer no longer knows. It indicates a broken identity mapping.
	ErrStaleIdentity = errors.New("history: identity cell resolves to a dead entity")
)
