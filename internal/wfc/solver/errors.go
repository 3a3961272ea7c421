package solver

import (
	"errors"
	"fmt"

	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/grid"
)

var (
	// ErrContradiction matches every *ContradictionError.
	ErrContradiction = errors.New("solver: contradiction")
	// ErrOutOfRange reports a coordinate, index or range outside the grid.
	ErrOutOfRange = grid.ErrOutOfRange
	ErrBadShape   = grid.ErrBadShape
	// ErrDomainSize reports a domain whose width differs from the model's.
	ErrDomainSize = errors.New("solver: domain width does not match the tile model")
	// ErrDirection reports a direction outside the six axis directions.
	ErrDirection = errors.New("solver: invalid direction")
	// ErrInvalidGrid is returned by Solved.Validate.
	ErrInvalidGrid = errors.New("solver: solved grid breaks adjacency")
)

// ContradictionError names the first cell whose domain became empty. The
// attempt that produced it cannot succeed; retry from a clone of the seeded
// solver.
type ContradictionError struct {
	Cell geom.Coord
}

func (e *ContradictionError) Error() string {
	return fmt.Sprintf("solver: contradiction at %v", e.Cell)
}

func (e *ContradictionError) Is(target error) bool { return target == ErrContradiction }
