// Package tiles derives the tile vocabulary and the per-direction adjacency
// relation from a corpus of example patterns.
//
// A Model is built once and never mutated afterwards: every query either
// returns a copy or writes into a caller-owned destination, so one Model can
// back any number of solvers on any number of goroutines.
package tiles

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"voxelwfc.ai/internal/wfc/bitset"
	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/mathx"
	"voxelwfc.ai/internal/wfc/pattern"
)

// TileID is a dense id in [0, Model.Len()).
type TileID uint16

// MaxTiles bounds the vocabulary so ids fit a TileID.
const MaxTiles = 1 << 16

type Tile struct {
	ID       TileID   `json:"id"`
	Name     string   `json:"name"`
	Rotation int      `json:"rotation,omitempty"`
	Key      string   `json:"key"`
	Groups   []string `json:"groups"`
	// Count is how many example cells (over all rotations) produced the tile.
	Count int `json:"count"`
}

// Options is the caller-supplied part of the vocabulary.
type Options struct {
	// Groups tags marker names with extra groups: group -> names.
	Groups map[string][]string
}

type Model struct {
	span     int
	digest   string
	examples int

	tiles  []Tile
	groups map[string]bitset.Domain
	all    bitset.Domain

	// adj[d][a] is the set of tiles observed at the d-neighbour of tile a.
	adj [geom.NumDirections][]bitset.Domain
	// reach[d] is the union of adj[d][*].
	reach [geom.NumDirections]bitset.Domain
}

// New loads every example pattern in dir and builds the model. tile_span
// fixes the side of the cube window that distinguishes tile variants.
func New(span int, dir string, opts Options) (*Model, error) {
	corpus, err := pattern.LoadDir(dir)
	if err != nil {
		return nil, &DataError{Source: dir, Err: err}
	}
	return Build(span, corpus, opts)
}

type tileInfo struct {
	name     string
	rotation int
	count    int
}

// Build derives the model from an already decoded corpus.
func Build(span int, corpus *pattern.Corpus, opts Options) (*Model, error) {
	if span < 1 {
		return nil, &DataError{Source: corpus.Dir, Err: fmt.Errorf("tile span %d < 1", span)}
	}
	if len(corpus.Examples) == 0 {
		return nil, &DataError{Source: corpus.Dir, Err: pattern.ErrNoExamples}
	}

	var variants []*pattern.Example
	markerGroups := map[string][]string{}
	for _, ex := range corpus.Examples {
		variants = append(variants, ex)
		if ex.Rotations {
			for r := 1; r < 4; r++ {
				variants = append(variants, ex.Rotate(r))
			}
		}
		for name, gs := range ex.Groups {
			markerGroups[name] = appendUnique(markerGroups[name], gs...)
		}
	}

	cellKeys := make([][]string, len(variants))
	infos := map[string]*tileInfo{}
	for vi, ex := range variants {
		keys := make([]string, len(ex.Cells))
		for i, m := range ex.Cells {
			k := signature(ex, ex.Shape.Coord(i), span)
			keys[i] = k
			inf := infos[k]
			if inf == nil {
				inf = &tileInfo{name: m.Name}
				if m.Directional {
					inf.rotation = m.Rotation
				}
				infos[k] = inf
			}
			inf.count++
		}
		cellKeys[vi] = keys
	}
	if len(infos) > MaxTiles {
		return nil, &DataError{Source: corpus.Dir, Err: fmt.Errorf("%d tile variants exceed the limit of %d", len(infos), MaxTiles)}
	}

	keys := make([]string, 0, len(infos))
	for k := range infos {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := infos[keys[i]], infos[keys[j]]
		if a.name != b.name {
			return a.name < b.name
		}
		return keys[i] < keys[j]
	})

	n := len(keys)
	m := &Model{
		span:     span,
		examples: len(corpus.Examples),
		tiles:    make([]Tile, n),
		groups:   map[string]bitset.Domain{},
		all:      bitset.Full(n),
	}
	index := make(map[string]int, n)
	extra := invertGroups(opts.Groups)
	for id, k := range keys {
		inf := infos[k]
		index[k] = id
		gs := appendUnique([]string{inf.name}, markerGroups[inf.name]...)
		gs = appendUnique(gs, extra[inf.name]...)
		sort.Strings(gs)
		m.tiles[id] = Tile{
			ID:       TileID(id),
			Name:     inf.name,
			Rotation: inf.rotation,
			Key:      k,
			Groups:   gs,
			Count:    inf.count,
		}
		for _, g := range gs {
			d, ok := m.groups[g]
			if !ok {
				d = bitset.New(n)
				m.groups[g] = d
			}
			d.Add(id)
		}
	}

	for d := range m.adj {
		m.adj[d] = make([]bitset.Domain, n)
		for id := range m.adj[d] {
			m.adj[d][id] = bitset.New(n)
		}
	}
	for vi, ex := range variants {
		keys := cellKeys[vi]
		for i := range ex.Cells {
			c := ex.Shape.Coord(i)
			a := index[keys[i]]
			for _, d := range geom.Directions {
				nc, ok := ex.Shape.Neighbor(c, d, ex.Periodic)
				if !ok {
					continue
				}
				b := index[keys[ex.Shape.Index(nc)]]
				m.adj[d][a].Add(b)
				m.adj[d.Opposite()][b].Add(a)
			}
		}
	}
	for d := range m.adj {
		m.reach[d] = bitset.New(n)
		for _, s := range m.adj[d] {
			m.reach[d].UnionWith(s)
		}
	}

	m.digest = digest(corpus.Digest, span, opts.Groups)
	return m, nil
}

// signature is the identity key of the cell at c: its own marker plus, for
// spans above one, the markers of the surrounding cube window.
func signature(ex *pattern.Example, c geom.Coord, span int) string {
	center := ex.At(c).Key()
	if span == 1 {
		return center
	}
	var b strings.Builder
	b.WriteString(center)
	b.WriteByte('#')
	off := (span - 1) / 2
	for dy := 0; dy < span; dy++ {
		for dz := 0; dz < span; dz++ {
			for dx := 0; dx < span; dx++ {
				if dx+dy+dz > 0 {
					b.WriteByte('|')
				}
				p := geom.Coord{X: c.X + dx - off, Y: c.Y + dy - off, Z: c.Z + dz - off}
				if !ex.Shape.InBounds(p) {
					if !ex.Periodic {
						b.WriteByte('~')
						continue
					}
					p = wrapCoord(p, ex.Shape)
				}
				b.WriteString(ex.At(p).Key())
			}
		}
	}
	return b.String()
}

func wrapCoord(p geom.Coord, s geom.Shape) geom.Coord {
	for axis := 0; axis < 3; axis++ {
		p.Set(axis, mathx.Mod(p.Get(axis), s[axis]))
	}
	return p
}

func invertGroups(groups map[string][]string) map[string][]string {
	out := map[string][]string{}
	for g, names := range groups {
		for _, n := range names {
			out[n] = appendUnique(out[n], g)
		}
	}
	return out
}

func appendUnique(dst []string, vals ...string) []string {
outer:
	for _, v := range vals {
		for _, have := range dst {
			if have == v {
				continue outer
			}
		}
		dst = append(dst, v)
	}
	return dst
}

func digest(corpusDigest string, span int, groups map[string][]string) string {
	h := sha256.New()
	fmt.Fprintf(h, "corpus=%s\nspan=%d\n", corpusDigest, span)
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)
	for _, g := range names {
		members := append([]string(nil), groups[g]...)
		sort.Strings(members)
		fmt.Fprintf(h, "group=%s:%s\n", g, strings.Join(members, ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}
