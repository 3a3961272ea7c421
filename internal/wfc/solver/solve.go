package solver

import (
	"voxelwfc.ai/internal/wfc/bitset"
	"voxelwfc.ai/internal/wfc/tiles"
)

// Solve runs propagation over every cell, then repeatedly collapses the
// undetermined cell with the fewest candidates until all cells hold exactly
// one tile. Ties between cells and the tile choice both draw from rng, so a
// given seed always yields the same grid.
//
// On contradiction the solver is left Failed and every later call returns
// the same *ContradictionError.
func (s *Solver) Solve(rng Rand) (*SolvedGrid, error) {
	if s.state == Failed {
		return nil, s.failure
	}
	s.state = Solving
	if err := s.PropagateAll(); err != nil {
		return nil, err
	}
	for {
		i := s.lowestEntropy(rng)
		if i < 0 {
			break
		}
		cell := s.grid.Cell(i)
		id := s.pick(rng, cell)
		cell.Clear()
		cell.Add(id)
		s.enqueue(i)
		if err := s.propagate(); err != nil {
			return nil, err
		}
	}
	s.state = Solved
	return s.result(), nil
}

// Step collapses a single cell and propagates. It reports false once no
// undetermined cell is left. The first Step on a Seeded solver runs the same
// full propagation pass as Solve, so an inconsistent initial grid fails
// instead of being reported Solved.
func (s *Solver) Step(rng Rand) (bool, error) {
	if s.state == Failed {
		return false, s.failure
	}
	if s.state == Seeded {
		s.state = Solving
		if err := s.PropagateAll(); err != nil {
			return false, err
		}
	}
	i := s.lowestEntropy(rng)
	if i < 0 {
		s.state = Solved
		return false, nil
	}
	s.state = Solving
	cell := s.grid.Cell(i)
	id := s.pick(rng, cell)
	cell.Clear()
	cell.Add(id)
	s.enqueue(i)
	if err := s.propagate(); err != nil {
		return false, err
	}
	return true, nil
}

// lowestEntropy returns the undetermined cell with the fewest candidates,
// choosing uniformly among ties, or -1 when every cell is determined.
func (s *Solver) lowestEntropy(rng Rand) int {
	best, bestCount, ties := -1, 0, 0
	for i := 0; i < s.grid.Cells(); i++ {
		n := s.grid.Cell(i).Count()
		if n <= 1 {
			continue
		}
		switch {
		case best < 0 || n < bestCount:
			best, bestCount, ties = i, n, 1
		case n == bestCount:
			ties++
			if rng.Intn(ties) == 0 {
				best = i
			}
		}
	}
	return best
}

func (s *Solver) pick(rng Rand, d bitset.Domain) int {
	count := d.Count()
	if s.weighting == Uniform {
		return d.Nth(rng.Intn(count))
	}
	total := 0
	d.Each(func(id int) { total += s.model.Weight(id) })
	if total <= 0 {
		return d.Nth(rng.Intn(count))
	}
	r := rng.Intn(total)
	chosen := -1
	d.Each(func(id int) {
		if chosen >= 0 {
			return
		}
		r -= s.model.Weight(id)
		if r < 0 {
			chosen = id
		}
	})
	return chosen
}

func (s *Solver) result() *SolvedGrid {
	out := &SolvedGrid{
		Shape: s.grid.Shape(),
		Tiles: make([]tiles.TileID, s.grid.Cells()),
	}
	for i := range out.Tiles {
		id, _ := s.grid.Cell(i).Single()
		out.Tiles[i] = tiles.TileID(id)
	}
	return out
}
