package component

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"slices"

	"golang.org/x/crypto/blake2b"
)

// Kind is the geometry class a component is drawn as.
type Kind int

const (
	KindPoint Kind = iota
	KindLine
	KindArea
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindArea:
		return "area"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts the lower-case names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "point":
		return KindPoint, nil
	case "line":
		return KindLine, nil
	case "area":
		return KindArea, nil
	}
	return 0, fmt.Errorf("unknown component kind %q", s)
}

// Node is one coordinate of a component, in world units.
type Node struct {
	X int32
	Y int32
}

// FullID names a component across namespaces.
type FullID struct {
	Namespace string
	ID        string
}

func (f FullID) String() string {
	return f.Namespace + "-" + f.ID
}

// Snapshot is an immutable copy of a map component's fields.
// Once a Snapshot has been handed to history it must not be mutated;
// use Clone or the With* helpers to derive a new one.
type Snapshot struct {
	Namespace   string
	ID          string
	DisplayName string
	Description string
	Tags        []string
	Layer       float64
	Type        string
	Nodes       []Node
}

func (s *Snapshot) FullID() FullID {
	return FullID{Namespace: s.Namespace, ID: s.ID}
}

func (s *Snapshot) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.DisplayName == "" {
		return s.FullID().String()
	}
	return fmt.Sprintf("%s (%s)", s.FullID(), s.DisplayName)
}

// Equal reports whether every field of s and o is equal. Two nil snapshots are equal.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Namespace == o.Namespace &&
		s.ID == o.ID &&
		s.DisplayName == o.DisplayName &&
		s.Description == o.Description &&
		s.Layer == o.Layer &&
		s.Type == o.Type &&
		slices.Equal(s.Tags, o.Tags) &&
		slices.Equal(s.Nodes, o.Nodes)
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Tags = slices.Clone(s.Tags)
	c.Nodes = slices.Clone(s.Nodes)
	return &c
}

// Translate returns a clone with every node moved by (dx, dy).
func (s *Snapshot) Translate(dx, dy int32) *Snapshot {
	c := s.Clone()
	for i := range c.Nodes {
		c.Nodes[i].X += dx
		c.Nodes[i].Y += dy
	}
	return c
}

// WithLayer returns a clone on a different layer.
func (s *Snapshot) WithLayer(layer float64) *Snapshot {
	c := s.Clone()
	c.Layer = layer
	return c
}

// WithDisplayName returns a clone with a different display name.
func (s *Snapshot) WithDisplayName(name string) *Snapshot {
	c := s.Clone()
	c.DisplayName = name
	return c
}

// WithNodes returns a clone with its nodes replaced.
func (s *Snapshot) WithNodes(nodes []Node) *Snapshot {
	c := s.Clone()
	c.Nodes = slices.Clone(nodes)
	return c
}

// Digest returns a hex blake2b-256 digest over every field.
// Equal snapshots always have equal digests.
func (s *Snapshot) Digest() string {
	if s == nil {
		return ""
	}
	buf := make([]byte, 0, 128)
	putString := func(v string) {
		buf = binary.AppendUvarint(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	putString(s.Namespace)
	putString(s.ID)
	putString(s.DisplayName)
	putString(s.Description)
	buf = binary.AppendUvarint(buf, uint64(len(s.Tags)))
	for _, t := range s.Tags {
		putString(t)
	}
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(s.Layer))
	putString(s.Type)
	buf = binary.AppendUvarint(buf, uint64(len(s.Nodes)))
	for _, n := range s.Nodes {
		buf = binary.BigEndian.AppendUint32(buf, uint32(n.X))
		buf = binary.BigEndian.AppendUint32(buf, uint32(n.Y))
	}
	sum := blake2b.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
