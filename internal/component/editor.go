package component

// ECS components attached to a spawned map component.
// Pure data, zero methods. render.Scene and the history engine do all mutation.

// Data is the live copy of a component's fields.
type Data struct {
	Snapshot *Snapshot
}

// Visual is the drawable form derived from Data plus the skin.
type Visual struct {
	Kind        Kind
	Points      []Node
	Min         Node
	Max         Node
	Colour      string
	Width       float64
	Highlighted bool // drawn with the selection highlight
	Revision    int  // bumped on every refresh
}

// Selected marks the component currently under edit. At most one entity carries it.
type Selected struct{}

// Hidden marks components of a namespace that is currently not shown.
type Hidden struct{}
