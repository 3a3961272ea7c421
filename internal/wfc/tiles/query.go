package tiles

import (
	"fmt"
	"sort"

	"voxelwfc.ai/internal/wfc/bitset"
	"voxelwfc.ai/internal/wfc/geom"
)

// Len is the number of distinct tiles, N.
func (m *Model) Len() int { return len(m.tiles) }

// Span is the tile_span the model was built with.
func (m *Model) Span() int { return m.span }

// Digest identifies the corpus, span and group options.
func (m *Model) Digest() string { return m.digest }

// Examples is the number of example files (before rotation).
func (m *Model) Examples() int { return m.examples }

// BitMask returns a fresh domain holding every tile.
func (m *Model) BitMask() bitset.Domain { return m.all.Clone() }

// AssetBits returns the tiles tagged with group. Every tile name is a group
// of its own.
func (m *Model) AssetBits(group string) (bitset.Domain, error) {
	d, ok := m.groups[group]
	if !ok {
		return bitset.Domain{}, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	return d.Clone(), nil
}

// AssetName returns the semantic name of id.
func (m *Model) AssetName(id TileID) (string, error) {
	if int(id) >= len(m.tiles) {
		return "", fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, id, len(m.tiles))
	}
	return m.tiles[id].Name, nil
}

func (m *Model) Tile(id TileID) (Tile, bool) {
	if int(id) >= len(m.tiles) {
		return Tile{}, false
	}
	t := m.tiles[id]
	t.Groups = append([]string(nil), t.Groups...)
	return t, true
}

// Tiles returns a copy of the vocabulary in id order.
func (m *Model) Tiles() []Tile {
	out := make([]Tile, len(m.tiles))
	for i := range m.tiles {
		out[i], _ = m.Tile(TileID(i))
	}
	return out
}

// Palette returns the name of every tile in id order.
func (m *Model) Palette() []string {
	out := make([]string, len(m.tiles))
	for i, t := range m.tiles {
		out[i] = t.Name
	}
	return out
}

// Groups lists every group name in sorted order.
func (m *Model) Groups() []string {
	out := make([]string, 0, len(m.groups))
	for g := range m.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Weight is the observation count of id, at least 1 for any valid id.
func (m *Model) Weight(id int) int {
	if id < 0 || id >= len(m.tiles) {
		return 0
	}
	return m.tiles[id].Count
}

// Compatible returns the tiles allowed in the d-neighbour cell of id. A tile
// never observed with a neighbour in d yields the empty domain.
func (m *Model) Compatible(id TileID, d geom.Direction) (bitset.Domain, error) {
	if int(id) >= len(m.tiles) || !d.Valid() {
		return bitset.Domain{}, fmt.Errorf("%w: %d %s", ErrOutOfRange, id, d)
	}
	return m.adj[d][id].Clone(), nil
}

// Allowed returns the union of Compatible(t, d) over every t in from.
func (m *Model) Allowed(from bitset.Domain, d geom.Direction) bitset.Domain {
	dst := bitset.New(len(m.tiles))
	m.AllowedInto(dst, from, d)
	return dst
}

// AllowedInto is Allowed writing into a caller-owned dst of width Len().
func (m *Model) AllowedInto(dst, from bitset.Domain, d geom.Direction) {
	if from.Count() == len(m.tiles) {
		dst.CopyFrom(m.reach[d])
		return
	}
	dst.Clear()
	adj := m.adj[d]
	from.Each(func(id int) {
		if id < len(adj) {
			dst.UnionWith(adj[id])
		}
	})
}
