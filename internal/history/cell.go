package history

import (
	"sync"

	"github.com/stencil3/editor/internal/core/ecs"
)

// Cell names one logical map component across respawns. Undoing a deletion or
// redoing a creation spawns a new entity; the engine rebinds the cell so every
// entry on either stack that shares it follows the component to its new
// identity.
//
// Cells are shared by pointer and reclaimed by the collector once no entry and
// no IdentityMap slot references them. The lock only guards the identity
// value; all reads and writes happen on the tick goroutine.
type Cell struct {
	mu sync.RWMutex
	id ecs.EntityID
}

func NewCell(id ecs.EntityID) *Cell {
	return &Cell{id: id}
}

// Resolve returns the entity currently backing the component.
func (c *Cell) Resolve() ecs.EntityID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Rebind points the cell at a freshly spawned entity.
func (c *Cell) Rebind(id ecs.EntityID) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

// IdentityMap maps live entity ids to their cells so a new edit of an
// already-tracked component reuses the cell its earlier entries hold.
// It only holds live identities: despawned ids are forgotten.
type IdentityMap struct {
	cells map[ecs.EntityID]*Cell
}

func NewIdentityMap() *IdentityMap {
	return &IdentityMap{cells: make(map[ecs.EntityID]*Cell, 64)}
}

// Acquire returns the cell for id, allocating and registering one on first use.
func (m *IdentityMap) Acquire(id ecs.EntityID) *Cell {
	if c, ok := m.cells[id]; ok {
		return c
	}
	c := NewCell(id)
	m.cells[id] = c
	return c
}

// Lookup returns the cell registered for id, if any.
func (m *IdentityMap) Lookup(id ecs.EntityID) (*Cell, bool) {
	c, ok := m.cells[id]
	return c, ok
}

// Register maps a respawned entity to the cell that now resolves to it.
func (m *IdentityMap) Register(id ecs.EntityID, c *Cell) {
	m.cells[id] = c
}

// Forget drops the mapping for an entity that has been despawned.
func (m *IdentityMap) Forget(id ecs.EntityID) {
	delete(m.cells, id)
}

func (m *IdentityMap) Clear() {
	clear(m.cells)
}

func (m *IdentityMap) Len() int {
	return len(m.cells)
}
