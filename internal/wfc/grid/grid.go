// Package grid stores one tile domain per cell of a W x H x D lattice in a
// single flat word slice.
package grid

import (
	"errors"
	"fmt"

	"voxelwfc.ai/internal/wfc/bitset"
	"voxelwfc.ai/internal/wfc/geom"
)

var (
	ErrBadShape   = errors.New("grid: shape dimensions must be positive")
	ErrOutOfRange = errors.New("grid: coordinate out of range")
)

type Grid struct {
	shape geom.Shape
	n     int // domain width
	w     int // words per cell
	words []uint64
}

// New allocates an all-empty grid whose cells are domains of width n.
func New(shape geom.Shape, n int) (*Grid, error) {
	if !shape.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrBadShape, shape)
	}
	w := bitset.Words(n)
	return &Grid{
		shape: shape,
		n:     n,
		w:     w,
		words: make([]uint64, shape.Volume()*w),
	}, nil
}

func (g *Grid) Shape() geom.Shape { return g.shape }

// Width is the domain width of every cell.
func (g *Grid) Width() int { return g.n }

func (g *Grid) Cells() int { return g.shape.Volume() }

// Cell returns an aliasing view of cell i. Writes through the view change the
// grid.
func (g *Grid) Cell(i int) bitset.Domain {
	lo := i * g.w
	return bitset.View(g.n, g.words[lo:lo+g.w:lo+g.w])
}

// At is Cell with a bounds-checked coordinate.
func (g *Grid) At(c geom.Coord) (bitset.Domain, error) {
	if !g.shape.InBounds(c) {
		return bitset.Domain{}, fmt.Errorf("%w: %v not in %v", ErrOutOfRange, c, g.shape)
	}
	return g.Cell(g.shape.Index(c)), nil
}

// Fill sets every cell to d.
func (g *Grid) Fill(d bitset.Domain) {
	for i := 0; i < g.Cells(); i++ {
		g.Cell(i).CopyFrom(d)
	}
}

// Clone deep-copies the cell storage.
func (g *Grid) Clone() *Grid {
	words := make([]uint64, len(g.words))
	copy(words, g.words)
	return &Grid{shape: g.shape, n: g.n, w: g.w, words: words}
}

// Equal reports whether both grids hold the same domains.
func (g *Grid) Equal(o *Grid) bool {
	if g.shape != o.shape || g.n != o.n || len(g.words) != len(o.words) {
		return false
	}
	for i := range g.words {
		if g.words[i] != o.words[i] {
			return false
		}
	}
	return true
}
