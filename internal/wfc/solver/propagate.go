package solver

import (
	"voxelwfc.ai/internal/wfc/geom"
)

// Propagate restores arc consistency starting from cells, which are usually
// the ones whose domain just changed. The fixed point does not depend on the
// order of cells.
func (s *Solver) Propagate(cells ...geom.Coord) error {
	if s.state == Failed {
		return s.failure
	}
	shape := s.grid.Shape()
	for _, c := range cells {
		if !shape.InBounds(c) {
			return ErrOutOfRange
		}
	}
	for _, c := range cells {
		s.enqueue(shape.Index(c))
	}
	return s.propagate()
}

// PropagateAll enqueues every cell and runs to the fixed point.
func (s *Solver) PropagateAll() error {
	if s.state == Failed {
		return s.failure
	}
	for i := 0; i < s.grid.Cells(); i++ {
		s.enqueue(i)
	}
	return s.propagate()
}

func (s *Solver) enqueue(i int) {
	if s.queued[i] {
		return
	}
	s.queued[i] = true
	s.queue = append(s.queue, i)
}

func (s *Solver) propagate() error {
	prev := s.state
	s.state = Propagating
	shape := s.grid.Shape()

	for head := 0; head < len(s.queue); head++ {
		i := s.queue[head]
		s.queued[i] = false
		cur := s.grid.Cell(i)
		if cur.IsEmpty() {
			return s.fail(i)
		}
		c := shape.Coord(i)
		for _, d := range geom.Directions {
			nc, ok := shape.Neighbor(c, d, s.wrap)
			if !ok {
				continue
			}
			s.model.AllowedInto(s.scratch, cur, d)
			ni := shape.Index(nc)
			if !s.grid.Cell(ni).IntersectWith(s.scratch) {
				continue
			}
			if s.grid.Cell(ni).IsEmpty() {
				return s.fail(ni)
			}
			s.enqueue(ni)
		}
	}
	s.queue = s.queue[:0]
	s.state = prev
	return nil
}

func (s *Solver) fail(i int) error {
	for _, q := range s.queue {
		s.queued[q] = false
	}
	s.queue = s.queue[:0]
	s.state = Failed
	s.failure = &ContradictionError{Cell: s.grid.Shape().Coord(i)}
	return s.failure
}
