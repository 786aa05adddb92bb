package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/instancecore/types"
)

func pos(x, y, z float64) types.Position { return types.Position{X: x, Y: y, Z: z} }

func TestShapes_Contains(t *testing.T) {
	cases := []struct {
		name  string
		shape Shape
		in    []types.Position
		out   []types.Position
	}{
		{
			name:  "circle",
			shape: Circle{X: 0, Y: 0, R: 10},
			in:    []types.Position{pos(0, 0, 0), pos(10, 0, 0), pos(6, 8, 0)},
			out:   []types.Position{pos(8, 8, 0), pos(-11, 0, 0)},
		},
		{
			name:  "rectangle",
			shape: Rectangle{MinX: -5, MinY: 0, MaxX: 5, MaxY: 20},
			in:    []types.Position{pos(0, 10, 0), pos(-5, 0, 0), pos(5, 20, 0)},
			out:   []types.Position{pos(6, 10, 0), pos(0, -1, 0)},
		},
		{
			name:  "ellipse",
			shape: Ellipse{X: 0, Y: 0, RX: 20, RY: 5},
			in:    []types.Position{pos(19, 0, 0), pos(0, 5, 0)},
			out:   []types.Position{pos(0, 6, 0), pos(15, 4, 0)},
		},
		{
			name: "parallelogram",
			// sheared: A(0,0) B(10,0) D(5,10)
			shape: Parallelogram{AX: 0, AY: 0, BX: 10, BY: 0, DX: 5, DY: 10},
			in:    []types.Position{pos(1, 1, 0), pos(14, 9, 0), pos(7.5, 5, 0)},
			out:   []types.Position{pos(0, 9, 0), pos(11, 1, 0), pos(5, -1, 0)},
		},
		{
			name:  "zrange",
			shape: ZRange{MinZ: 30, MaxZ: 50},
			in:    []types.Position{pos(999, -999, 30), pos(0, 0, 50)},
			out:   []types.Position{pos(0, 0, 29.9), pos(0, 0, 51)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, p := range tc.in {
				assert.True(t, tc.shape.Contains(p), "%+v should be inside", p)
				assert.False(t, Inverted{Shape: tc.shape}.Contains(p))
			}
			for _, p := range tc.out {
				assert.False(t, tc.shape.Contains(p), "%+v should be outside", p)
				assert.True(t, Inverted{Shape: tc.shape}.Contains(p))
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	bad := []types.BoundaryDef{
		{Shape: "hexagon"},
		{Shape: "circle", Params: map[string]float64{"x": 0, "y": 0}},
		{Shape: "circle", Params: map[string]float64{"x": 0, "y": 0, "r": -1}},
		{Shape: "rectangle", Params: map[string]float64{"min_x": 5, "min_y": 0, "max_x": 0, "max_y": 1}},
		{Shape: "ellipse", Params: map[string]float64{"x": 0, "y": 0, "rx": 0, "ry": 1}},
		{Shape: "parallelogram", Params: map[string]float64{"ax": 0, "ay": 0, "bx": 1, "by": 1, "dx": 2, "dy": 2}},
		{Shape: "zrange", Params: map[string]float64{"min_z": 10, "max_z": 0}},
	}
	for _, def := range bad {
		_, err := Compile(def)
		assert.Error(t, err, "%+v", def)
	}
}

func TestRegistry_IsWithinAll(t *testing.T) {
	encs := []types.EncounterDef{
		{ID: 0, Name: "open"},
		{ID: 1, Name: "arena", Boundaries: []types.BoundaryDef{
			{Shape: "circle", Params: map[string]float64{"x": 0, "y": 0, "r": 50}},
			{Shape: "zrange", Params: map[string]float64{"min_z": 0, "max_z": 10}},
			{Shape: "circle", Params: map[string]float64{"x": 0, "y": 0, "r": 5}, Inverted: true},
		}},
	}
	r, err := New(encs)
	require.NoError(t, err)

	assert.True(t, r.IsWithin(0, pos(1e6, 1e6, 1e6)), "no boundaries means unrestricted")
	assert.True(t, r.IsWithin(1, pos(20, 0, 5)))
	assert.False(t, r.IsWithin(1, pos(2, 0, 5)), "inside the inverted hole")
	assert.False(t, r.IsWithin(1, pos(20, 0, 15)), "above the slab")
	assert.False(t, r.IsWithin(1, pos(60, 0, 5)))
	assert.Equal(t, 3, r.Count(1))
}

func TestNew_PropagatesCompileError(t *testing.T) {
	_, err := New([]types.EncounterDef{{ID: 0, Name: "x", Boundaries: []types.BoundaryDef{{Shape: "blob"}}}})
	assert.ErrorContains(t, err, `encounter "x" boundary 1`)
}
