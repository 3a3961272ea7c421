// Package solver fills a voxel grid with tiles so every neighbouring pair is
// allowed by a tiles.Model: arc-consistency propagation plus lowest-count
// collapse.
//
// A Solver is single-goroutine. The model it points at is shared and
// read-only; Clone copies only the grid, which is how callers keep a seeded
// baseline around for repeated attempts.
package solver

import (
	"fmt"
	"strings"

	"voxelwfc.ai/internal/wfc/bitset"
	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/grid"
	"voxelwfc.ai/internal/wfc/tiles"
)

type State uint8

const (
	Seeded State = iota
	Propagating
	Solving
	Solved
	Failed
)

func (s State) String() string {
	switch s {
	case Seeded:
		return "seeded"
	case Propagating:
		return "propagating"
	case Solving:
		return "solving"
	case Solved:
		return "solved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Weighting selects how a collapsing cell picks among its candidates.
type Weighting uint8

const (
	// Uniform gives every remaining candidate the same chance.
	Uniform Weighting = iota
	// Frequency weights candidates by how often the examples showed them.
	Frequency
)

func (w Weighting) String() string {
	if w == Frequency {
		return "frequency"
	}
	return "uniform"
}

func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "uniform":
		return Uniform, nil
	case "frequency":
		return Frequency, nil
	default:
		return Uniform, fmt.Errorf("solver: unknown weighting %q", s)
	}
}

// Rand is the randomness a solve consumes. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

type Solver struct {
	model     *tiles.Model
	grid      *grid.Grid
	wrap      bool
	weighting Weighting

	state   State
	failure *ContradictionError

	// propagation scratch, never shared between clones
	queue   []int
	queued  []bool
	scratch bitset.Domain
}

// New returns a Seeded solver whose every cell holds initial. With wrap the
// grid is toroidal; otherwise edge cells simply have fewer neighbours.
func New(shape geom.Shape, initial bitset.Domain, model *tiles.Model, wrap bool) (*Solver, error) {
	if initial.Len() != model.Len() {
		return nil, fmt.Errorf("%w: got %d want %d", ErrDomainSize, initial.Len(), model.Len())
	}
	g, err := grid.New(shape, model.Len())
	if err != nil {
		return nil, err
	}
	g.Fill(initial)
	return &Solver{
		model:   model,
		grid:    g,
		wrap:    wrap,
		state:   Seeded,
		queued:  make([]bool, g.Cells()),
		scratch: bitset.New(model.Len()),
	}, nil
}

// WithWeighting sets the candidate weighting and returns s.
func (s *Solver) WithWeighting(w Weighting) *Solver {
	s.weighting = w
	return s
}

// Clone deep-copies the grid and shares the model.
func (s *Solver) Clone() *Solver {
	return &Solver{
		model:     s.model,
		grid:      s.grid.Clone(),
		wrap:      s.wrap,
		weighting: s.weighting,
		state:     s.state,
		failure:   s.failure,
		queued:    make([]bool, s.grid.Cells()),
		scratch:   bitset.New(s.model.Len()),
	}
}

func (s *Solver) Shape() geom.Shape { return s.grid.Shape() }
func (s *Solver) Model() *tiles.Model { return s.model }
func (s *Solver) Wrap() bool { return s.wrap }
func (s *Solver) State() State { return s.state }
func (s *Solver) Weighting() Weighting { return s.weighting }

// Err returns the contradiction that failed the solver, if any.
func (s *Solver) Err() error {
	if s.failure == nil {
		return nil
	}
	return s.failure
}

// Domain returns a copy of the domain at c.
func (s *Solver) Domain(c geom.Coord) (bitset.Domain, error) {
	d, err := s.grid.At(c)
	if err != nil {
		return bitset.Domain{}, err
	}
	return d.Clone(), nil
}

// Undetermined counts cells that still have two or more candidates.
func (s *Solver) Undetermined() int {
	n := 0
	for i := 0; i < s.grid.Cells(); i++ {
		if s.grid.Cell(i).Count() > 1 {
			n++
		}
	}
	return n
}
