package solver

import (
	"fmt"

	"voxelwfc.ai/internal/wfc/bitset"
	"voxelwfc.ai/internal/wfc/geom"
)

// Region is the half-open box [Min, Max).
type Region struct {
	Min, Max geom.Coord
}

func (r Region) within(s geom.Shape) bool {
	for axis := 0; axis < 3; axis++ {
		if !(geom.Range{Lo: r.Min.Get(axis), Hi: r.Max.Get(axis)}).Within(s[axis]) {
			return false
		}
	}
	return true
}

func (r Region) each(f func(c geom.Coord)) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for z := r.Min.Z; z < r.Max.Z; z++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				f(geom.Coord{X: x, Y: y, Z: z})
			}
		}
	}
}

// Restrict intersects every cell of region with mask and propagates from
// those cells.
func (s *Solver) Restrict(region Region, mask bitset.Domain) error {
	if s.state == Failed {
		return s.failure
	}
	if mask.Len() != s.model.Len() {
		return fmt.Errorf("%w: got %d want %d", ErrDomainSize, mask.Len(), s.model.Len())
	}
	shape := s.grid.Shape()
	if !region.within(shape) {
		return fmt.Errorf("%w: region %v-%v in %v", ErrOutOfRange, region.Min, region.Max, shape)
	}
	empty := -1
	region.each(func(c geom.Coord) {
		i := shape.Index(c)
		cell := s.grid.Cell(i)
		cell.IntersectWith(mask)
		if empty < 0 && cell.IsEmpty() {
			empty = i
		}
		s.enqueue(i)
	})
	if empty >= 0 {
		return s.fail(empty)
	}
	return s.propagate()
}

// CollapseAlongAxis intersects mask into the layer perpendicular to dir's
// axis at index (negative counts from the far end), limited to a and b on
// the two remaining axes in X, Y, Z order. For a Y layer a spans X and b
// spans Z.
func (s *Solver) CollapseAlongAxis(mask bitset.Domain, index int, dir geom.Direction, a, b geom.Range) error {
	if !dir.Valid() {
		return fmt.Errorf("%w %d", ErrDirection, dir)
	}
	shape := s.grid.Shape()
	axis := dir.Axis()
	at, ok := geom.ResolveIndex(index, shape[axis])
	if !ok {
		return fmt.Errorf("%w: index %d on axis of length %d", ErrOutOfRange, index, shape[axis])
	}
	var region Region
	region.Min.Set(axis, at)
	region.Max.Set(axis, at+1)
	rest := [2]geom.Range{a, b}
	k := 0
	for other := 0; other < 3; other++ {
		if other == axis {
			continue
		}
		if !rest[k].Within(shape[other]) {
			return fmt.Errorf("%w: range [%d,%d) on axis of length %d", ErrOutOfRange, rest[k].Lo, rest[k].Hi, shape[other])
		}
		region.Min.Set(other, rest[k].Lo)
		region.Max.Set(other, rest[k].Hi)
		k++
	}
	return s.Restrict(region, mask)
}

// AttachAlongAxis narrows the same layer to the tiles that may sit next to
// anchor in direction dir. Attaching the bottom layer to a "full" anchor
// with +y keeps only tiles observed resting on solid ground.
func (s *Solver) AttachAlongAxis(anchor bitset.Domain, index int, dir geom.Direction, a, b geom.Range) error {
	if anchor.Len() != s.model.Len() {
		return fmt.Errorf("%w: got %d want %d", ErrDomainSize, anchor.Len(), s.model.Len())
	}
	if !dir.Valid() {
		return fmt.Errorf("%w %d", ErrDirection, dir)
	}
	return s.CollapseAlongAxis(s.model.Allowed(anchor, dir), index, dir, a, b)
}

// FullRange returns the whole extent of the axes crossing dir's axis, ready
// to pass as a and b.
func (s *Solver) FullRange(dir geom.Direction) (a, b geom.Range, err error) {
	if !dir.Valid() {
		return geom.Range{}, geom.Range{}, fmt.Errorf("%w %d", ErrDirection, dir)
	}
	shape := s.grid.Shape()
	rest := make([]geom.Range, 0, 2)
	for other := 0; other < 3; other++ {
		if other != dir.Axis() {
			rest = append(rest, geom.Range{Lo: 0, Hi: shape[other]})
		}
	}
	return rest[0], rest[1], nil
}
