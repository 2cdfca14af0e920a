package data

import (
	"fmt"
	"os"
	"strings"

	"github.com/stencil3/editor/internal/component"
	"gopkg.in/yaml.v3"
)

// SkinType describes how one component type tag is drawn.
type SkinType struct {
	Name   string  `yaml:"name"`
	Kind   string  `yaml:"kind"` // point, line or area
	Colour string  `yaml:"colour"`
	Width  float64 `yaml:"width"`

	kind component.Kind
}

// Skin provides lookup of drawing rules by component type tag.
type Skin struct {
	types map[string]*SkinType
}

const (
	defaultColour = "#00ffff"
	defaultWidth  = 8
)

// LoadSkin loads a skin YAML file (a list of SkinType).
func LoadSkin(path string) (*Skin, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skin: %w", err)
	}
	return ParseSkin(raw)
}

// ParseSkin parses skin YAML.
func ParseSkin(raw []byte) (*Skin, error) {
	var entries []SkinType
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse skin: %w", err)
	}
	s := &Skin{types: make(map[string]*SkinType, len(entries))}
	for i := range entries {
		t := &entries[i]
		if t.Name == "" {
			return nil, fmt.Errorf("skin entry %d has no name", i)
		}
		k, err := component.ParseKind(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("skin type %s: %w", t.Name, err)
		}
		t.kind = k
		if t.Colour == "" {
			t.Colour = defaultColour
		}
		if t.Width == 0 {
			t.Width = defaultWidth
		}
		s.types[t.Name] = t
	}
	return s, nil
}

// DefaultSkin returns the built-in simplePoint/simpleLine/simpleArea skin.
func DefaultSkin() *Skin {
	s, err := ParseSkin([]byte(`
- {name: simplePoint, kind: point, colour: "#00ffff", width: 10}
- {name: simpleLine, kind: line, colour: "#00ffff", width: 8}
- {name: simpleArea, kind: area, colour: "#00ffff", width: 4}
`))
	if err != nil {
		panic(err) // built-in table is static
	}
	return s
}

// KindOf returns the geometry class for a type tag. Unknown tags fall back
// on their simplePoint/simpleLine/simpleArea prefix, otherwise line.
func (s *Skin) KindOf(typeTag string) component.Kind {
	if t, ok := s.types[typeTag]; ok {
		return t.kind
	}
	switch {
	case strings.HasPrefix(typeTag, "simplePoint"):
		return component.KindPoint
	case strings.HasPrefix(typeTag, "simpleArea"):
		return component.KindArea
	}
	return component.KindLine
}

// Style returns the colour and stroke width for a type tag.
func (s *Skin) Style(typeTag string) (colour string, width float64) {
	if t, ok := s.types[typeTag]; ok {
		return t.Colour, t.Width
	}
	return defaultColour, defaultWidth
}

// Count returns the number of skin types loaded.
func (s *Skin) Count() int {
	return len(s.types)
}
