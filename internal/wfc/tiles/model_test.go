package tiles

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"voxelwfc.ai/internal/wfc/bitset"
	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/pattern"
)

func corpusOf(t *testing.T, docs ...string) *pattern.Corpus {
	t.Helper()
	c := &pattern.Corpus{Dir: "mem", Digest: "test"}
	for i, d := range docs {
		ex, err := pattern.Parse(filepath.Join("mem", string(rune('a'+i))+".json"), []byte(d))
		require.NoError(t, err)
		c.Examples = append(c.Examples, ex)
	}
	return c
}

func build(t *testing.T, span int, docs ...string) *Model {
	t.Helper()
	m, err := Build(span, corpusOf(t, docs...), Options{})
	require.NoError(t, err)
	return m
}

func idOf(t *testing.T, m *Model, name string) TileID {
	t.Helper()
	d, err := m.AssetBits(name)
	require.NoError(t, err)
	id, ok := d.Single()
	require.True(t, ok, "name %q has %d variants", name, d.Count())
	return TileID(id)
}

const stacked = `{"id":"stack","size":[1,2,1],
 "legend":{"a":{"name":"A"},"b":{"name":"B"}},
 "layers":[["b"],["a"]]}`

func TestStackedPairAdjacency(t *testing.T) {
	m := build(t, 1, stacked)
	require.Equal(t, 2, m.Len())
	a, b := idOf(t, m, "A"), idOf(t, m, "B")

	up, err := m.Compatible(b, geom.PosY)
	require.NoError(t, err)
	require.Equal(t, []int{int(a)}, up.IDs(), "A sits above B")

	down, err := m.Compatible(a, geom.NegY)
	require.NoError(t, err)
	require.Equal(t, []int{int(b)}, down.IDs(), "mirrored relation")

	above, err := m.Compatible(a, geom.PosY)
	require.NoError(t, err)
	require.True(t, above.IsEmpty(), "nothing observed above A")

	side, err := m.Compatible(b, geom.PosX)
	require.NoError(t, err)
	require.True(t, side.IsEmpty())
}

const cottage = `{"id":"cottage","size":[3,3,2],"rotations":true,
 "legend":{
  "#":{"name":"full","groups":["solid"]},
  ".":{"name":"air"},
  "g":{"name":"grass"},
  "h":{"name":"house_free_side","directional":true},
  "r":{"name":"house_roof"}},
 "layers":[
  ["###","###"],
  ["ghg","g.g"],
  [".r.","..."]]}`

func TestAdjacencyIsSymmetric(t *testing.T) {
	m := build(t, 1, cottage, stacked)
	for a := 0; a < m.Len(); a++ {
		for _, d := range geom.Directions {
			ca, err := m.Compatible(TileID(a), d)
			require.NoError(t, err)
			for b := 0; b < m.Len(); b++ {
				cb, err := m.Compatible(TileID(b), d.Opposite())
				require.NoError(t, err)
				require.Equal(t, ca.Has(b), cb.Has(a), "tiles %d,%d direction %s", a, b, d)
			}
		}
	}
}

func TestBitMaskEqualsUnionOfGroups(t *testing.T) {
	m, err := Build(1, corpusOf(t, cottage), Options{Groups: map[string][]string{"ground": {"grass", "house_free_side"}}})
	require.NoError(t, err)

	union := bitset.New(m.Len())
	for _, g := range m.Groups() {
		d, err := m.AssetBits(g)
		require.NoError(t, err)
		union.UnionWith(d)
	}
	require.True(t, union.Equal(m.BitMask()))

	ground, err := m.AssetBits("ground")
	require.NoError(t, err)
	require.Equal(t, 5, ground.Count(), "grass plus four house rotations")

	solid, err := m.AssetBits("solid")
	require.NoError(t, err)
	full, err := m.AssetBits("full")
	require.NoError(t, err)
	require.True(t, solid.Equal(full))
}

func TestLookupErrors(t *testing.T) {
	m := build(t, 1, stacked)

	_, err := m.AssetBits("lava")
	require.ErrorIs(t, err, ErrUnknownGroup)

	_, err = m.AssetName(TileID(m.Len()))
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = m.Compatible(TileID(m.Len()), geom.PosX)
	require.ErrorIs(t, err, ErrOutOfRange)

	name, err := m.AssetName(idOf(t, m, "B"))
	require.NoError(t, err)
	require.Equal(t, "B", name)
}

func TestQueriesDoNotExposeState(t *testing.T) {
	m := build(t, 1, stacked)
	mask := m.BitMask()
	mask.Clear()
	require.Equal(t, 2, m.BitMask().Count())

	c, err := m.Compatible(idOf(t, m, "B"), geom.PosY)
	require.NoError(t, err)
	c.Clear()
	again, err := m.Compatible(idOf(t, m, "B"), geom.PosY)
	require.NoError(t, err)
	require.Equal(t, 1, again.Count())
}

func TestSpanDistinguishesContext(t *testing.T) {
	row := `{"id":"row","size":[3,1,1],"legend":{"a":{"name":"a"}},"layers":[["aaa"]]}`

	require.Equal(t, 1, build(t, 1, row).Len())

	m := build(t, 3, row)
	require.Equal(t, 3, m.Len(), "left edge, middle and right edge differ")
	for _, tl := range m.Tiles() {
		require.Equal(t, "a", tl.Name)
	}
	d, err := m.AssetBits("a")
	require.NoError(t, err)
	require.Equal(t, 3, d.Count())
}

func TestRotationsProduceDirectionalVariants(t *testing.T) {
	m := build(t, 1, cottage)
	d, err := m.AssetBits("house_free_side")
	require.NoError(t, err)
	require.Equal(t, 4, d.Count())
	rots := map[int]bool{}
	d.Each(func(id int) {
		tl, ok := m.Tile(TileID(id))
		require.True(t, ok)
		rots[tl.Rotation] = true
	})
	require.Len(t, rots, 4)
}

func TestMoreExamplesOnlyAddCompatibilities(t *testing.T) {
	ab := `{"id":"ab","size":[2,1,1],"legend":{"a":{"name":"a"},"b":{"name":"b"}},"layers":[["ab"]]}`
	aa := `{"id":"aa","size":[2,1,1],"legend":{"a":{"name":"a"}},"layers":[["aa"]]}`

	small := build(t, 1, ab)
	big := build(t, 1, ab, aa)
	for id := 0; id < small.Len(); id++ {
		for _, d := range geom.Directions {
			s, err := small.Compatible(TileID(id), d)
			require.NoError(t, err)
			b, err := big.Compatible(TileID(id), d)
			require.NoError(t, err)
			require.True(t, s.SubsetOf(b), "tile %d direction %s", id, d)
		}
	}
	right, err := big.Compatible(idOf(t, big, "a"), geom.PosX)
	require.NoError(t, err)
	require.Equal(t, 2, right.Count())
}

func TestPeriodicExampleWraps(t *testing.T) {
	ab := `{"id":"ab","size":[2,1,1],"periodic":true,"legend":{"a":{"name":"a"},"b":{"name":"b"}},"layers":[["ab"]]}`
	m := build(t, 1, ab)
	right, err := m.Compatible(idOf(t, m, "b"), geom.PosX)
	require.NoError(t, err)
	require.True(t, right.Has(int(idOf(t, m, "a"))))
}

func TestAllowedIsUnionOfCompatible(t *testing.T) {
	m := build(t, 1, cottage)
	from, err := m.AssetBits("grass")
	require.NoError(t, err)
	from.UnionWith(mustBits(t, m, "air"))

	want := bitset.New(m.Len())
	from.Each(func(id int) {
		c, err := m.Compatible(TileID(id), geom.PosX)
		require.NoError(t, err)
		want.UnionWith(c)
	})
	require.True(t, want.Equal(m.Allowed(from, geom.PosX)))

	all := m.Allowed(m.BitMask(), geom.NegY)
	manual := bitset.New(m.Len())
	for id := 0; id < m.Len(); id++ {
		c, _ := m.Compatible(TileID(id), geom.NegY)
		manual.UnionWith(c)
	}
	require.True(t, manual.Equal(all))
}

func mustBits(t *testing.T, m *Model, g string) bitset.Domain {
	t.Helper()
	d, err := m.AssetBits(g)
	require.NoError(t, err)
	return d
}

func TestDataErrors(t *testing.T) {
	_, err := New(1, filepath.Join(t.TempDir(), "missing"), Options{})
	var de *DataError
	require.True(t, errors.As(err, &de))

	_, err = New(1, t.TempDir(), Options{})
	require.True(t, errors.As(err, &de))
	require.ErrorIs(t, err, pattern.ErrNoExamples)

	_, err = Build(0, corpusOf(t, stacked), Options{})
	require.True(t, errors.As(err, &de))
}

func TestDigestDependsOnSpan(t *testing.T) {
	c := corpusOf(t, stacked)
	m1, err := Build(1, c, Options{})
	require.NoError(t, err)
	m1b, err := Build(1, c, Options{})
	require.NoError(t, err)
	m3, err := Build(3, c, Options{})
	require.NoError(t, err)
	require.Equal(t, m1.Digest(), m1b.Digest())
	require.NotEqual(t, m1.Digest(), m3.Digest())
}
