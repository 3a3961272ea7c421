package generate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"voxelwfc.ai/internal/config"
	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/pattern"
	"voxelwfc.ai/internal/wfc/solver"
	"voxelwfc.ai/internal/wfc/tiles"
)

type memRecorder struct {
	mu       sync.Mutex
	attempts []AttemptRecord
	runs     []RunRecord
}

func (m *memRecorder) RecordAttempt(r AttemptRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, r)
}

func (m *memRecorder) RecordRun(r RunRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
}

func sample(t *testing.T) (*tiles.Model, config.Config) {
	t.Helper()
	cfg, err := config.Load("../../configs/generator.yaml")
	require.NoError(t, err)
	m, err := tiles.New(cfg.TileSpan, cfg.ExamplesDir, tiles.Options{Groups: cfg.Groups})
	require.NoError(t, err)
	return m, cfg
}

// layered only admits exactly three layers: ground, grass, air.
const layered = `{"id":"layered","size":[2,3,2],
 "legend":{"#":{"name":"full"},"g":{"name":"grass"},".":{"name":"air"}},
 "layers":[["##","##"],["gg","gg"],["..",".."]]}`

func layeredModel(t *testing.T) *tiles.Model {
	t.Helper()
	ex, err := pattern.Parse("layered.json", []byte(layered))
	require.NoError(t, err)
	m, err := tiles.Build(1, &pattern.Corpus{Dir: "mem", Examples: []*pattern.Example{ex}}, tiles.Options{})
	require.NoError(t, err)
	return m
}

func TestGenerateSolvesSampleCorpus(t *testing.T) {
	m, cfg := sample(t)
	rec := &memRecorder{}
	g, err := New(m, cfg, nil, rec)
	require.NoError(t, err)

	res, err := g.Generate(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, res.Grid.Validate(m, cfg.Wrap))
	require.Equal(t, cfg.GridShape(), res.Grid.Shape)
	require.Equal(t, int64(7), res.Seed)

	full, err := res.Grid.CountGroup(m, "full")
	require.NoError(t, err)
	require.Zero(t, full)

	air, err := m.AssetBits("air")
	require.NoError(t, err)
	shape := res.Grid.Shape
	for x := 0; x < shape[0]; x++ {
		for z := 0; z < shape[2]; z++ {
			id, ok := res.Grid.At(geom.Coord{X: x, Y: shape[1] - 1, Z: z})
			require.True(t, ok)
			require.True(t, air.Has(int(id)), "top layer must be open sky")
		}
	}

	require.Len(t, rec.runs, 1)
	require.True(t, rec.runs[0].OK)
	require.Equal(t, res.RunID, rec.runs[0].RunID)
	require.Equal(t, m.Digest(), rec.runs[0].Digest)
	require.GreaterOrEqual(t, len(rec.attempts), res.Attempts)
	require.True(t, rec.attempts[res.Attempt].OK)
}

func TestGenerateIgnoresWorkerCount(t *testing.T) {
	m, cfg := sample(t)
	var grids [][]tiles.TileID
	var wins []int
	for _, w := range []int{1, 3} {
		cfg.Workers = w
		g, err := New(m, cfg, nil)
		require.NoError(t, err)
		res, err := g.Generate(context.Background(), 99)
		require.NoError(t, err)
		grids = append(grids, res.Grid.Tiles)
		wins = append(wins, res.Attempt)
	}
	require.Equal(t, grids[0], grids[1])
	require.Equal(t, wins[0], wins[1])
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	m := layeredModel(t)
	cfg := config.Defaults()
	cfg.Shape = []int{2, 4, 2}
	cfg.ExcludeGroups = nil
	cfg.Boundaries = nil
	cfg.MaxAttempts = 3
	cfg.Workers = 2
	rec := &memRecorder{}
	g, err := New(m, cfg, nil, rec)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), 1)
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.Len(t, rec.attempts, 3)
	for i, a := range rec.attempts {
		require.Equal(t, i, a.Attempt)
		require.False(t, a.OK)
		require.NotNil(t, a.Cell)
	}
	require.Equal(t, int64(1), rec.attempts[0].AttemptSeed)
	require.Len(t, rec.runs, 1)
	require.False(t, rec.runs[0].OK)
	require.Equal(t, 3, rec.runs[0].Attempts)
}

func TestGenerateStopsOnCancel(t *testing.T) {
	m := layeredModel(t)
	cfg := config.Defaults()
	cfg.Shape = []int{2, 3, 2}
	cfg.ExcludeGroups = nil
	cfg.Boundaries = nil
	g, err := New(m, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, 1)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestNewRejectsBadSeeding(t *testing.T) {
	m := layeredModel(t)
	cfg := config.Defaults()
	cfg.Shape = []int{2, 3, 2}
	cfg.Boundaries = nil
	cfg.ExcludeGroups = []string{"lava"}
	_, err := New(m, cfg, nil)
	require.ErrorIs(t, err, tiles.ErrUnknownGroup)

	// grass pinned in the middle forces full underneath
	cfg.ExcludeGroups = nil
	cfg.Boundaries = []config.BoundarySpec{
		{Group: "grass", Mode: config.ModePin, Index: 1, Direction: "+y"},
		{Group: "air", Mode: config.ModePin, Index: 0, Direction: "+y"},
	}
	_, err = New(m, cfg, nil)
	require.ErrorIs(t, err, solver.ErrContradiction)
}

func TestBaselineSurvivesGenerate(t *testing.T) {
	m, cfg := sample(t)
	g, err := New(m, cfg, nil)
	require.NoError(t, err)
	before := g.Baseline().Undetermined()
	_, err = g.Generate(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, before, g.Baseline().Undetermined())
	require.Equal(t, solver.Seeded, g.Baseline().State())
}
