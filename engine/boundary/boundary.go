// Package boundary compiles the geometric regions that constrain where an
// encounter's activity is valid. Regions are read-only once built.
package boundary

import (
	"fmt"
	"math"

	"github.com/nathoo/instancecore/types"
)

// Shape is a point-containment predicate.
type Shape interface {
	Contains(p types.Position) bool
}

// Circle is a disc on the XY plane.
type Circle struct {
	X, Y, R float64
}

func (c Circle) Contains(p types.Position) bool {
	dx, dy := p.X-c.X, p.Y-c.Y
	return dx*dx+dy*dy <= c.R*c.R
}

// Rectangle is an axis-aligned box on the XY plane.
type Rectangle struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rectangle) Contains(p types.Position) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Ellipse is an axis-aligned ellipse on the XY plane.
type Ellipse struct {
	X, Y, RX, RY float64
}

func (e Ellipse) Contains(p types.Position) bool {
	dx, dy := (p.X-e.X)/e.RX, (p.Y-e.Y)/e.RY
	return dx*dx+dy*dy <= 1
}

// Parallelogram is spanned by corner A and the neighbouring corners B and D.
type Parallelogram struct {
	AX, AY, BX, BY, DX, DY float64
}

func (g Parallelogram) Contains(p types.Position) bool {
	ux, uy := g.BX-g.AX, g.BY-g.AY
	vx, vy := g.DX-g.AX, g.DY-g.AY
	wx, wy := p.X-g.AX, p.Y-g.AY
	det := ux*vy - uy*vx
	if det == 0 {
		return false
	}
	s := (wx*vy - wy*vx) / det
	t := (ux*wy - uy*wx) / det
	return s >= 0 && s <= 1 && t >= 0 && t <= 1
}

// ZRange is a horizontal slab.
type ZRange struct {
	MinZ, MaxZ float64
}

func (z ZRange) Contains(p types.Position) bool {
	return p.Z >= z.MinZ && p.Z <= z.MaxZ
}

// Inverted negates a shape.
type Inverted struct {
	Shape
}

func (i Inverted) Contains(p types.Position) bool {
	return !i.Shape.Contains(p)
}

// Compile turns a boundary definition into a shape.
func Compile(def types.BoundaryDef) (Shape, error) {
	get := func(keys ...string) ([]float64, error) {
		out := make([]float64, len(keys))
		for i, k := range keys {
			v, ok := def.Params[k]
			if !ok {
				return nil, fmt.Errorf("%s boundary: missing %q", def.Shape, k)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%s boundary: %q is not finite", def.Shape, k)
			}
			out[i] = v
		}
		return out, nil
	}

	var shape Shape
	switch def.Shape {
	case "circle":
		v, err := get("x", "y", "r")
		if err != nil {
			return nil, err
		}
		if v[2] < 0 {
			return nil, fmt.Errorf("circle boundary: negative radius")
		}
		shape = Circle{X: v[0], Y: v[1], R: v[2]}
	case "rectangle":
		v, err := get("min_x", "min_y", "max_x", "max_y")
		if err != nil {
			return nil, err
		}
		if v[0] > v[2] || v[1] > v[3] {
			return nil, fmt.Errorf("rectangle boundary: min exceeds max")
		}
		shape = Rectangle{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	case "ellipse":
		v, err := get("x", "y", "rx", "ry")
		if err != nil {
			return nil, err
		}
		if v[2] <= 0 || v[3] <= 0 {
			return nil, fmt.Errorf("ellipse boundary: radii must be positive")
		}
		shape = Ellipse{X: v[0], Y: v[1], RX: v[2], RY: v[3]}
	case "parallelogram":
		v, err := get("ax", "ay", "bx", "by", "dx", "dy")
		if err != nil {
			return nil, err
		}
		g := Parallelogram{AX: v[0], AY: v[1], BX: v[2], BY: v[3], DX: v[4], DY: v[5]}
		if (g.BX-g.AX)*(g.DY-g.AY)-(g.BY-g.AY)*(g.DX-g.AX) == 0 {
			return nil, fmt.Errorf("parallelogram boundary: corners are collinear")
		}
		shape = g
	case "zrange":
		v, err := get("min_z", "max_z")
		if err != nil {
			return nil, err
		}
		if v[0] > v[1] {
			return nil, fmt.Errorf("zrange boundary: min exceeds max")
		}
		shape = ZRange{MinZ: v[0], MaxZ: v[1]}
	default:
		return nil, fmt.Errorf("unknown boundary shape %q", def.Shape)
	}

	if def.Inverted {
		return Inverted{Shape: shape}, nil
	}
	return shape, nil
}

// Registry associates encounters with their boundaries.
type Registry struct {
	shapes map[types.EncounterID][]Shape
}

// New compiles the boundaries of every encounter.
func New(encounters []types.EncounterDef) (*Registry, error) {
	r := &Registry{shapes: make(map[types.EncounterID][]Shape)}
	for _, enc := range encounters {
		for i, def := range enc.Boundaries {
			s, err := Compile(def)
			if err != nil {
				return nil, fmt.Errorf("encounter %q boundary %d: %w", enc.Name, i+1, err)
			}
			r.shapes[enc.ID] = append(r.shapes[enc.ID], s)
		}
	}
	return r, nil
}

// IsWithin reports whether pos lies inside every boundary of the encounter.
// An encounter without boundaries is unrestricted.
func (r *Registry) IsWithin(id types.EncounterID, pos types.Position) bool {
	for _, s := range r.shapes[id] {
		if !s.Contains(pos) {
			return false
		}
	}
	return true
}

// Count returns how many boundaries restrict the encounter.
func (r *Registry) Count(id types.EncounterID) int {
	return len(r.shapes[id])
}
