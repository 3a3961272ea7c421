// Package generate runs solve attempts against a seeded baseline until one
// succeeds, reporting every attempt to the configured recorders.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"voxelwfc.ai/internal/config"
	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/mathx"
	"voxelwfc.ai/internal/wfc/solver"
	"voxelwfc.ai/internal/wfc/tiles"
)

var ErrAttemptsExhausted = errors.New("generate: attempts exhausted")

// Recorder receives attempt and run records. Implementations must be safe
// for concurrent use; one Generator may serve several goroutines.
type Recorder interface {
	RecordAttempt(AttemptRecord)
	RecordRun(RunRecord)
}

type AttemptRecord struct {
	RunID       string      `json:"run_id"`
	Seed        int64       `json:"seed"`
	Attempt     int         `json:"attempt"`
	AttemptSeed int64       `json:"attempt_seed"`
	OK          bool        `json:"ok"`
	Cell        *geom.Coord `json:"cell,omitempty"`
	Error       string      `json:"error,omitempty"`
	DurationMS  int64       `json:"duration_ms"`
	StartedAt   int64       `json:"started_at"`
}

type RunRecord struct {
	RunID      string `json:"run_id"`
	Seed       int64  `json:"seed"`
	Digest     string `json:"corpus_digest"`
	Shape      string `json:"shape"`
	OK         bool   `json:"ok"`
	Attempt    int    `json:"attempt"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	StartedAt  int64  `json:"started_at"`
}

type Result struct {
	RunID    string
	Seed     int64
	Attempt  int // index of the winning attempt
	Attempts int // attempts consumed up to and including the winner
	Grid     *solver.SolvedGrid
	Duration time.Duration
}

type Generator struct {
	model       *tiles.Model
	baseline    *solver.Solver
	wrap        bool
	maxAttempts int
	workers     int

	log       *log.Logger
	recorders []Recorder
	runs      atomic.Uint64
}

// New builds the seeded baseline described by cfg. A boundary that already
// contradicts is reported here rather than on every Generate.
func New(model *tiles.Model, cfg config.Config, logger *log.Logger, recorders ...Recorder) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	initial := model.BitMask()
	for _, g := range cfg.ExcludeGroups {
		bits, err := model.AssetBits(g)
		if err != nil {
			return nil, fmt.Errorf("exclude_groups: %w", err)
		}
		initial.DifferenceWith(bits)
	}
	s, err := solver.New(cfg.GridShape(), initial, model, cfg.Wrap)
	if err != nil {
		return nil, err
	}
	s.WithWeighting(cfg.SolverWeighting())

	bounds, err := cfg.ResolveBoundaries()
	if err != nil {
		return nil, err
	}
	for i, b := range bounds {
		bits, err := model.AssetBits(b.Group)
		if err != nil {
			return nil, fmt.Errorf("boundaries[%d]: %w", i, err)
		}
		if b.Attach {
			err = s.AttachAlongAxis(bits, b.Index, b.Dir, b.A, b.B)
		} else {
			err = s.CollapseAlongAxis(bits, b.Index, b.Dir, b.A, b.B)
		}
		if err != nil {
			return nil, fmt.Errorf("boundaries[%d]: %w", i, err)
		}
	}

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Generator{
		model:       model,
		baseline:    s,
		wrap:        cfg.Wrap,
		maxAttempts: cfg.MaxAttempts,
		workers:     cfg.Workers,
		log:         logger,
		recorders:   recorders,
	}, nil
}

func (g *Generator) Model() *tiles.Model { return g.model }

func (g *Generator) Shape() geom.Shape { return g.baseline.Shape() }

// Baseline returns a clone of the seeded, unsolved solver.
func (g *Generator) Baseline() *solver.Solver { return g.baseline.Clone() }

type outcome struct {
	rec  AttemptRecord
	grid *solver.SolvedGrid
	err  error
}

// Generate solves clones of the baseline with seeds derived from seed until
// one attempt succeeds. Attempts run in batches of the configured worker
// count; the lowest successful attempt index wins, so the result for a seed
// does not depend on the worker count.
func (g *Generator) Generate(ctx context.Context, seed int64) (*Result, error) {
	start := time.Now()
	run := RunRecord{
		RunID:     fmt.Sprintf("run_%d_%d", start.UnixMilli(), g.runs.Add(1)),
		Seed:      seed,
		Digest:    g.model.Digest(),
		Shape:     g.baseline.Shape().String(),
		StartedAt: start.UnixMilli(),
	}
	res, err := g.attempts(ctx, &run)
	run.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		run.Error = err.Error()
		g.log.Printf("run %s seed=%d failed after %d attempts: %v", run.RunID, seed, run.Attempts, err)
	} else {
		run.OK = true
		res.Duration = time.Since(start)
		g.log.Printf("run %s seed=%d ok attempt=%d/%d in %s", run.RunID, seed, res.Attempt+1, res.Attempts, res.Duration)
	}
	for _, r := range g.recorders {
		r.RecordRun(run)
	}
	return res, err
}

func (g *Generator) attempts(ctx context.Context, run *RunRecord) (*Result, error) {
	var last error
	for next := 0; next < g.maxAttempts; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := g.workers
		if rest := g.maxAttempts - next; n > rest {
			n = rest
		}
		batch := make([]outcome, n)
		var wg sync.WaitGroup
		for k := 0; k < n; k++ {
			wg.Add(1)
			go func(k int) {
				defer wg.Done()
				batch[k] = g.attempt(run, next+k)
			}(k)
		}
		wg.Wait()

		var win *outcome
		for k := range batch {
			o := &batch[k]
			for _, r := range g.recorders {
				r.RecordAttempt(o.rec)
			}
			if win != nil {
				continue
			}
			switch {
			case o.err == nil:
				win = o
			case errors.Is(o.err, solver.ErrContradiction):
				last = o.err
			default:
				run.Attempts = o.rec.Attempt + 1
				return nil, o.err
			}
		}
		if win != nil {
			run.Attempt = win.rec.Attempt
			run.Attempts = win.rec.Attempt + 1
			return &Result{
				RunID:    run.RunID,
				Seed:     run.Seed,
				Attempt:  win.rec.Attempt,
				Attempts: win.rec.Attempt + 1,
				Grid:     win.grid,
			}, nil
		}
		next += n
		run.Attempts = next
	}
	return nil, fmt.Errorf("%w: %d attempts, last: %v", ErrAttemptsExhausted, g.maxAttempts, last)
}

func (g *Generator) attempt(run *RunRecord, i int) outcome {
	start := time.Now()
	aseed := mathx.AttemptSeed(run.Seed, i)
	rec := AttemptRecord{
		RunID:       run.RunID,
		Seed:        run.Seed,
		Attempt:     i,
		AttemptSeed: aseed,
		StartedAt:   start.UnixMilli(),
	}
	s := g.baseline.Clone()
	grid, err := s.Solve(rand.New(rand.NewSource(aseed)))
	if err == nil {
		err = grid.Validate(g.model, g.wrap)
	}
	rec.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
		var ce *solver.ContradictionError
		if errors.As(err, &ce) {
			cell := ce.Cell
			rec.Cell = &cell
		}
		return outcome{rec: rec, err: err}
	}
	rec.OK = true
	return outcome{rec: rec, grid: grid}
}
