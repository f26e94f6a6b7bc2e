package main

import (
	"fmt"
	"image"
)

// Side names a screen edge that carries LEDs.
type Side string

const (
	SideRight  Side = "right"
	SideTop    Side = "top"
	SideLeft   Side = "left"
	SideBottom Side = "bottom"
)

// Direction is the order in which an edge's lights are wired. Ascending
// runs top to bottom on vertical edges and left to right on horizontal
// ones; descending is the reverse.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// Edge is one run of lights along a screen side.
type Edge struct {
	Side      Side      `yaml:"side"`
	Lights    int       `yaml:"lights"`
	Direction Direction `yaml:"direction,omitempty"`
}

// Layout describes the physical LED strip as an ordered list of edges.
// The strip's first light is the first light of Edges[0].
type Layout struct {
	Border int    `yaml:"border"`
	Edges  []Edge `yaml:"edges"`
}

// DefaultLayout is a strip running up the right side, across the top from
// right to left and down the left side.
func DefaultLayout() Layout {
	return Layout{
		Border: 150,
		Edges: []Edge{
			{Side: SideRight, Lights: 20, Direction: Descending},
			{Side: SideTop, Lights: 30, Direction: Descending},
			{Side: SideLeft, Lights: 20, Direction: Ascending},
		},
	}
}

// Lights returns the total number of lights on the strip.
func (l Layout) Lights() int {
	n := 0
	for _, e := range l.Edges {
		n += e.Lights
	}
	return n
}

func (e Edge) direction() Direction {
	if e.Direction != "" {
		return e.Direction
	}
	switch e.Side {
	case SideRight, SideTop:
		return Descending
	default:
		return Ascending
	}
}

func (e Edge) vertical() bool {
	return e.Side == SideRight || e.Side == SideLeft
}

// Validate checks the layout without reference to a screen size.
func (l Layout) Validate() error {
	if l.Border <= 0 {
		return fmt.Errorf("border must be positive (got %d)", l.Border)
	}
	if len(l.Edges) == 0 {
		return fmt.Errorf("layout has no edges")
	}
	for i, e := range l.Edges {
		switch e.Side {
		case SideRight, SideTop, SideLeft, SideBottom:
		default:
			return fmt.Errorf("edge %d: unknown side %q", i, e.Side)
		}
		switch e.direction() {
		case Ascending, Descending:
		default:
			return fmt.Errorf("edge %d: unknown direction %q", i, e.Direction)
		}
		if e.Lights < 0 {
			return fmt.Errorf("edge %d: negative light count %d", i, e.Lights)
		}
	}
	return nil
}

// Plan maps every light to its sampling region on a width x height screen.
// Regions are returned in wiring order. Each edge's band is split into
// equal parts using floor division so that consecutive regions share a
// boundary and together cover the band exactly.
func Plan(width, height int, l Layout) ([]image.Rectangle, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l.Border > width || l.Border > height {
		return nil, fmt.Errorf("border %d does not fit a %dx%d screen", l.Border, width, height)
	}

	regions := make([]image.Rectangle, 0, l.Lights())
	for _, e := range l.Edges {
		if e.Lights == 0 {
			continue
		}
		length := width
		if e.vertical() {
			length = height
		}
		if e.Lights > length {
			return nil, fmt.Errorf("%s edge: %d lights on %d pixels", e.Side, e.Lights, length)
		}

		for i := 0; i < e.Lights; i++ {
			k := i
			if e.direction() == Descending {
				k = e.Lights - 1 - i
			}
			lo := length * k / e.Lights
			hi := length * (k + 1) / e.Lights
			regions = append(regions, edgeBand(e.Side, lo, hi, width, height, l.Border))
		}
	}
	return regions, nil
}

// edgeBand returns the rectangle spanning [lo, hi) along side, border
// pixels deep.
func edgeBand(side Side, lo, hi, width, height, border int) image.Rectangle {
	switch side {
	case SideRight:
		return image.Rect(width-border, lo, width, hi)
	case SideLeft:
		return image.Rect(0, lo, border, hi)
	case SideTop:
		return image.Rect(lo, 0, hi, border)
	default:
		return image.Rect(lo, height-border, hi, height)
	}
}
