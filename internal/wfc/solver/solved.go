package solver

import (
	"fmt"

	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/tiles"
)

// SolvedGrid is the output of a successful solve: one tile per cell in
// geom.Shape.Index order.
type SolvedGrid struct {
	Shape geom.Shape
	Tiles []tiles.TileID
}

func (g *SolvedGrid) At(c geom.Coord) (tiles.TileID, bool) {
	if !g.Shape.InBounds(c) {
		return 0, false
	}
	return g.Tiles[g.Shape.Index(c)], true
}

// IDs returns the tiles as plain uint16 for encoders.
func (g *SolvedGrid) IDs() []uint16 {
	out := make([]uint16, len(g.Tiles))
	for i, t := range g.Tiles {
		out[i] = uint16(t)
	}
	return out
}

// Names maps every cell to its tile name.
func (g *SolvedGrid) Names(m *tiles.Model) ([]string, error) {
	out := make([]string, len(g.Tiles))
	for i, t := range g.Tiles {
		name, err := m.AssetName(t)
		if err != nil {
			return nil, err
		}
		out[i] = name
	}
	return out, nil
}

// CountGroup counts cells whose tile belongs to group.
func (g *SolvedGrid) CountGroup(m *tiles.Model, group string) (int, error) {
	bits, err := m.AssetBits(group)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range g.Tiles {
		if bits.Has(int(t)) {
			n++
		}
	}
	return n, nil
}

// Validate checks every neighbouring pair against m.
func (g *SolvedGrid) Validate(m *tiles.Model, wrap bool) error {
	if len(g.Tiles) != g.Shape.Volume() {
		return fmt.Errorf("%w: %d tiles for shape %v", ErrInvalidGrid, len(g.Tiles), g.Shape)
	}
	for i, t := range g.Tiles {
		if int(t) >= m.Len() {
			return fmt.Errorf("%w: tile %d at %v: %v", ErrInvalidGrid, t, g.Shape.Coord(i), tiles.ErrOutOfRange)
		}
	}
	for i, t := range g.Tiles {
		c := g.Shape.Coord(i)
		for _, d := range geom.Directions {
			nc, ok := g.Shape.Neighbor(c, d, wrap)
			if !ok {
				continue
			}
			allowed, err := m.Compatible(t, d)
			if err != nil {
				return err
			}
			if n := g.Tiles[g.Shape.Index(nc)]; !allowed.Has(int(n)) {
				return fmt.Errorf("%w: %d at %v and %d at %v (%v)", ErrInvalidGrid, t, c, n, nc, d)
			}
		}
	}
	return nil
}
