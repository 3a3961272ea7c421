package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"voxelwfc.ai/internal/config"
	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/persistence/runlog"
	"voxelwfc.ai/internal/wfc/tiles"
)

// replay re-runs every logged run with its seed and checks that the same
// attempts fail at the same cells and the same attempt wins.
func main() {
	var (
		configPath  = flag.String("config", "./configs/generator.yaml", "generator config the runs were made with")
		examplesDir = flag.String("examples", "", "example pattern directory (overrides examples_dir)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		runID       = flag.String("run", "", "only this run_id")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if v := strings.TrimSpace(*examplesDir); v != "" {
		cfg.ExamplesDir = v
	}
	model, err := tiles.New(cfg.TileSpan, cfg.ExamplesDir, tiles.Options{Groups: cfg.Groups})
	if err != nil {
		fmt.Fprintln(os.Stderr, "load corpus:", err)
		os.Exit(1)
	}
	capture := newCapture()
	gen, err := generate.New(model, cfg, nil, capture)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generator:", err)
		os.Exit(1)
	}

	paths := flag.Args()
	if len(paths) == 0 {
		paths, err = runlog.Files(*dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list logs:", err)
			os.Exit(1)
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "no attempt logs found in", filepath.Join(*dataDir, "runs"))
		os.Exit(1)
	}

	var entries []runlog.Entry
	for _, p := range paths {
		es, err := runlog.ReadAll(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read log:", err)
			os.Exit(1)
		}
		entries = append(entries, es...)
	}

	sum, err := replayRuns(context.Background(), gen, capture, entries, strings.TrimSpace(*runID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: runs=%d attempts=%d skipped=%d (corpus %s)\n", sum.Runs, sum.Attempts, sum.Skipped, model.Digest())
}

type summary struct {
	Runs     int
	Attempts int
	// Skipped counts runs made against another corpus or cut short by
	// cancellation.
	Skipped int
}

// capture keeps the attempt records of the replayed runs.
type capture struct {
	mu   sync.Mutex
	byID map[string][]generate.AttemptRecord
	last string
}

func newCapture() *capture {
	return &capture{byID: map[string][]generate.AttemptRecord{}}
}

func (c *capture) RecordAttempt(r generate.AttemptRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[r.RunID] = append(c.byID[r.RunID], r)
}

func (c *capture) RecordRun(r generate.RunRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = r.RunID
}

// takeLast returns and forgets the attempts of the most recent run.
func (c *capture) takeLast() []generate.AttemptRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.byID[c.last]
	delete(c.byID, c.last)
	return out
}

func replayRuns(ctx context.Context, gen *generate.Generator, rec *capture, entries []runlog.Entry, only string) (summary, error) {
	var sum summary
	attempts := map[string]map[int]generate.AttemptRecord{}
	var runs []generate.RunRecord
	for _, e := range entries {
		switch {
		case e.Attempt != nil:
			m := attempts[e.Attempt.RunID]
			if m == nil {
				m = map[int]generate.AttemptRecord{}
				attempts[e.Attempt.RunID] = m
			}
			m[e.Attempt.Attempt] = *e.Attempt
		case e.Run != nil:
			if only == "" || e.Run.RunID == only {
				runs = append(runs, *e.Run)
			}
		}
	}

	digest := gen.Model().Digest()
	for _, run := range runs {
		if run.Digest != digest || (!run.OK && isCancel(run.Error)) {
			sum.Skipped++
			continue
		}
		res, err := gen.Generate(ctx, run.Seed)
		got := rec.takeLast()
		switch {
		case err == nil:
			if !run.OK {
				return sum, fmt.Errorf("run %s seed=%d: logged failure %q, replay succeeded at attempt %d", run.RunID, run.Seed, run.Error, res.Attempt)
			}
			if res.Attempt != run.Attempt {
				return sum, fmt.Errorf("run %s seed=%d: logged winner %d, replay winner %d", run.RunID, run.Seed, run.Attempt, res.Attempt)
			}
		case errors.Is(err, generate.ErrAttemptsExhausted):
			if run.OK {
				return sum, fmt.Errorf("run %s seed=%d: logged success, replay: %v", run.RunID, run.Seed, err)
			}
		default:
			return sum, fmt.Errorf("run %s seed=%d: %w", run.RunID, run.Seed, err)
		}

		for _, a := range got {
			want, ok := attempts[run.RunID][a.Attempt]
			if !ok {
				continue
			}
			if err := sameAttempt(want, a); err != nil {
				return sum, fmt.Errorf("run %s attempt %d: %w", run.RunID, a.Attempt, err)
			}
			sum.Attempts++
		}
		sum.Runs++
	}
	return sum, nil
}

func sameAttempt(want, got generate.AttemptRecord) error {
	if want.AttemptSeed != got.AttemptSeed {
		return fmt.Errorf("attempt seed %d, replay %d", want.AttemptSeed, got.AttemptSeed)
	}
	if want.OK != got.OK {
		return fmt.Errorf("ok=%v, replay ok=%v", want.OK, got.OK)
	}
	if (want.Cell == nil) != (got.Cell == nil) || (want.Cell != nil && *want.Cell != *got.Cell) {
		return fmt.Errorf("contradiction at %v, replay at %v", want.Cell, got.Cell)
	}
	return nil
}

func isCancel(msg string) bool {
	return strings.Contains(msg, context.Canceled.Error()) || strings.Contains(msg, context.DeadlineExceeded.Error())
}
