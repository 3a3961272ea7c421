package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"voxelwfc.ai/internal/config"
	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/persistence/indexdb"
	"voxelwfc.ai/internal/persistence/runlog"
	"voxelwfc.ai/internal/wfc/tiles"
)

func main() {
	var (
		configPath  = flag.String("config", "./configs/generator.yaml", "generator config path (empty for built-in defaults)")
		seed        = flag.Int64("seed", 0, "run seed (overrides config; 0 picks one from the clock)")
		examplesDir = flag.String("examples", "", "example pattern directory (overrides examples_dir)")
		outPath     = flag.String("out", "", "write the result JSON here (zstd-compressed when the name ends in .zst)")
		printGrid   = flag.Bool("print", true, "print every layer as text")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "do not record the run in the sqlite index")
		timeout     = flag.Duration("timeout", 2*time.Minute, "give up after this long")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[wfcgen] ", log.LstdFlags|log.Lmicroseconds)

	seedSet := false
	flag.Visit(func(f *flag.Flag) { seedSet = seedSet || f.Name == "seed" })

	err := run(logger, runOptions{
		ConfigPath:  *configPath,
		Seed:        *seed,
		SeedSet:     seedSet,
		ExamplesDir: *examplesDir,
		OutPath:     *outPath,
		Print:       *printGrid,
		DataDir:     *dataDir,
		DisableDB:   *disableDB,
		Timeout:     *timeout,
	})
	if err != nil {
		logger.Fatalf("%v", err)
	}
}

type runOptions struct {
	ConfigPath  string
	Seed        int64
	SeedSet     bool
	ExamplesDir string
	OutPath     string
	Print       bool
	DataDir     string
	DisableDB   bool
	Timeout     time.Duration
}

func run(logger *log.Logger, o runOptions) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(o.ExamplesDir); v != "" {
		cfg.ExamplesDir = v
	}
	if o.SeedSet {
		cfg.Seed = o.Seed
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	model, err := tiles.New(cfg.TileSpan, cfg.ExamplesDir, tiles.Options{Groups: cfg.Groups})
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	logger.Printf("corpus=%s examples=%d tiles=%d span=%d", cfg.ExamplesDir, model.Examples(), model.Len(), model.Span())

	attemptLog := runlog.NewAttemptLogger(o.DataDir, func(err error) {
		logger.Printf("attempt log: %v", err)
	})
	defer attemptLog.Close()
	recorders := []generate.Recorder{attemptLog}

	if !o.DisableDB {
		idx, err := indexdb.OpenSQLite(indexPath(o.DataDir))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		if err := idx.UpsertCorpus(cfg.ExamplesDir, model); err != nil {
			logger.Printf("index: upsert corpus: %v", err)
		}
		recorders = append(recorders, idx)
	}

	gen, err := generate.New(model, cfg, logger, recorders...)
	if err != nil {
		return fmt.Errorf("generator: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.Timeout)
	defer cancel()
	res, err := gen.Generate(ctx, cfg.Seed)
	if err != nil {
		return fmt.Errorf("generate seed=%d: %w", cfg.Seed, err)
	}
	logger.Printf("run=%s seed=%d attempt=%d/%d took=%s", res.RunID, res.Seed, res.Attempt, res.Attempts, res.Duration)

	if o.Print {
		if err := writeLayers(os.Stdout, res.Grid, model); err != nil {
			return fmt.Errorf("print: %w", err)
		}
	}
	if p := strings.TrimSpace(o.OutPath); p != "" {
		if err := writeResult(p, newResultFile(res, model)); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		logger.Printf("wrote %s", p)
	}
	return nil
}
