// Package geom holds the lattice vocabulary shared by the tile model and the
// solver: axis directions, integer coordinates and grid shapes.
package geom

import (
	"fmt"
	"strings"

	"voxelwfc.ai/internal/wfc/mathx"
)

// Direction is one of the six axis-aligned unit steps.
type Direction uint8

const (
	PosX Direction = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

// NumDirections is the number of Direction values.
const NumDirections = 6

// Directions lists every direction in declaration order.
var Directions = [NumDirections]Direction{PosX, NegX, PosY, NegY, PosZ, NegZ}

var dirNames = [NumDirections]string{"+x", "-x", "+y", "-y", "+z", "-z"}

var dirDeltas = [NumDirections]Coord{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

func (d Direction) String() string {
	if int(d) < NumDirections {
		return dirNames[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

func (d Direction) Valid() bool { return int(d) < NumDirections }

// Opposite returns -d. Pairs differ only in the lowest bit.
func (d Direction) Opposite() Direction { return d ^ 1 }

// Axis returns 0, 1 or 2 for X, Y or Z.
func (d Direction) Axis() int { return int(d) / 2 }

func (d Direction) Delta() Coord { return dirDeltas[d] }

// ParseDirection accepts "+x", "-y", "pos_z", "NEG_X" and similar spellings.
func ParseDirection(s string) (Direction, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("pos_", "+", "neg_", "-", "pos", "+", "neg", "-").Replace(v)
	if len(v) == 1 {
		v = "+" + v
	}
	for i, n := range dirNames {
		if n == v {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("geom: bad direction %q", s)
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (c Coord) Add(o Coord) Coord { return Coord{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z} }

func (c Coord) Get(axis int) int {
	switch axis {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

func (c *Coord) Set(axis, v int) {
	switch axis {
	case 0:
		c.X = v
	case 1:
		c.Y = v
	default:
		c.Z = v
	}
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z) }

// Shape is a grid extent [W, H, D] along X, Y and Z.
type Shape [3]int

func (s Shape) Valid() bool { return s[0] > 0 && s[1] > 0 && s[2] > 0 }

func (s Shape) Volume() int { return s[0] * s[1] * s[2] }

func (s Shape) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < s[0] && c.Y >= 0 && c.Y < s[1] && c.Z >= 0 && c.Z < s[2]
}

// Index flattens c x-fastest, then z, then y, so one Y layer is contiguous.
func (s Shape) Index(c Coord) int {
	return c.X + c.Z*s[0] + c.Y*s[0]*s[2]
}

func (s Shape) Coord(i int) Coord {
	layer := s[0] * s[2]
	y := i / layer
	r := i % layer
	return Coord{X: r % s[0], Y: y, Z: r / s[0]}
}

// Neighbor returns the cell one step from c in direction d. With wrap the
// lattice is toroidal; otherwise ok is false past the boundary.
func (s Shape) Neighbor(c Coord, d Direction, wrap bool) (Coord, bool) {
	n := c.Add(d.Delta())
	if s.InBounds(n) {
		return n, true
	}
	if !wrap {
		return n, false
	}
	return Coord{X: mathx.Mod(n.X, s[0]), Y: mathx.Mod(n.Y, s[1]), Z: mathx.Mod(n.Z, s[2])}, true
}

func (s Shape) String() string { return fmt.Sprintf("%dx%dx%d", s[0], s[1], s[2]) }

// Range is a half-open interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

func (r Range) Len() int {
	if r.Hi <= r.Lo {
		return 0
	}
	return r.Hi - r.Lo
}

// Within reports whether r is non-empty and fits inside [0, n).
func (r Range) Within(n int) bool {
	return r.Lo >= 0 && r.Hi <= n && r.Lo < r.Hi
}

// ResolveIndex maps a possibly negative index onto [0, n): -1 is the last
// slot, -n the first.
func ResolveIndex(i, n int) (int, bool) {
	if i < 0 {
		i += n
	}
	return i, i >= 0 && i < n
}
