package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"voxelwfc.ai/internal/config"
	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/persistence/indexdb"
	"voxelwfc.ai/internal/persistence/runlog"
	"voxelwfc.ai/internal/transport/ws"
	"voxelwfc.ai/internal/wfc/tiles"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configPath  = flag.String("config", "./configs/generator.yaml", "generator config path")
		examplesDir = flag.String("examples", "", "example pattern directory (overrides examples_dir)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "disable the run index")
		maxConc     = flag.Int("max_concurrent", 4, "max generations in flight across all connections")
		timeout     = flag.Duration("request_timeout", 30*time.Second, "per-request generation timeout")
		rateWindow  = flag.Duration("rate_window", 10*time.Second, "per-connection GENERATE rate window (0 disables)")
		rateMax     = flag.Int("rate_max", 20, "GENERATE requests allowed per connection in each rate window")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if v := strings.TrimSpace(*examplesDir); v != "" {
		cfg.ExamplesDir = v
	}

	model, err := tiles.New(cfg.TileSpan, cfg.ExamplesDir, tiles.Options{Groups: cfg.Groups})
	if err != nil {
		logger.Fatalf("load corpus: %v", err)
	}
	logger.Printf("corpus=%s examples=%d tiles=%d span=%d digest=%.12s",
		cfg.ExamplesDir, model.Examples(), model.Len(), model.Span(), model.Digest())

	// Optional read-model index; the attempt log below stays authoritative.
	idx, err := openRuntimeIndex(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCorpus(cfg.ExamplesDir, model); err != nil {
			logger.Printf("index backend: upsert corpus: %v", err)
		}
	}

	attemptLog := runlog.NewAttemptLogger(*dataDir, func(err error) {
		logger.Printf("attempt log: %v", err)
	})
	defer attemptLog.Close()

	recorders := []generate.Recorder{attemptLog}
	if idx != nil {
		recorders = append(recorders, idx)
	}
	genLogger := log.New(os.Stdout, "[generate] ", log.LstdFlags|log.Lmicroseconds)
	gen, err := generate.New(model, cfg, genLogger, recorders...)
	if err != nil {
		logger.Fatalf("generator: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	wsSrv := ws.NewServer(gen, ws.Options{
		Wrap:           cfg.Wrap,
		MaxAttempts:    cfg.MaxAttempts,
		MaxConcurrent:  *maxConc,
		RequestTimeout: *timeout,
		RateWindow:     *rateWindow,
		RateMax:        *rateMax,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":            true,
			"corpus_digest": model.Digest(),
			"tiles":         model.Len(),
			"shape":         gen.Shape(),
		})
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "# HELP voxelwfc_tiles Tile vocabulary size.\n")
		fmt.Fprintf(rw, "# TYPE voxelwfc_tiles gauge\n")
		fmt.Fprintf(rw, "voxelwfc_tiles %d\n", model.Len())
		writeIndexMetrics(rw, idx)
	})
	if envBool("WFC_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (WFC_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func writeIndexMetrics(rw http.ResponseWriter, idx runtimeIndex) {
	switch v := idx.(type) {
	case *indexdb.SQLiteIndex:
		s := v.Stats()
		fmt.Fprintf(rw, "# HELP voxelwfc_index_queue_depth Current index writer queue depth.\n")
		fmt.Fprintf(rw, "# TYPE voxelwfc_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelwfc_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP voxelwfc_index_queue_capacity Index writer queue capacity.\n")
		fmt.Fprintf(rw, "# TYPE voxelwfc_index_queue_capacity gauge\n")
		fmt.Fprintf(rw, "voxelwfc_index_queue_capacity %d\n", s.QueueCapacity)
		fmt.Fprintf(rw, "# HELP voxelwfc_index_dropped_total Records dropped while the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE voxelwfc_index_dropped_total counter\n")
		fmt.Fprintf(rw, "voxelwfc_index_dropped_total{kind=%q} %d\n", "attempt", s.DropAttemptTotal)
		fmt.Fprintf(rw, "voxelwfc_index_dropped_total{kind=%q} %d\n", "run", s.DropRunTotal)
	case *indexdb.HTTPIndex:
		s := v.Stats()
		fmt.Fprintf(rw, "# HELP voxelwfc_index_queue_depth Current index writer queue depth.\n")
		fmt.Fprintf(rw, "# TYPE voxelwfc_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelwfc_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP voxelwfc_index_queue_capacity Index writer queue capacity.\n")
		fmt.Fprintf(rw, "# TYPE voxelwfc_index_queue_capacity gauge\n")
		fmt.Fprintf(rw, "voxelwfc_index_queue_capacity %d\n", s.QueueCapacity)
		fmt.Fprintf(rw, "# HELP voxelwfc_index_dropped_total Records dropped while the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE voxelwfc_index_dropped_total counter\n")
		fmt.Fprintf(rw, "voxelwfc_index_dropped_total %d\n", s.QueueDroppedTotal)
		fmt.Fprintf(rw, "# HELP voxelwfc_index_flush_fail_total Failed batch sends.\n")
		fmt.Fprintf(rw, "# TYPE voxelwfc_index_flush_fail_total counter\n")
		fmt.Fprintf(rw, "voxelwfc_index_flush_fail_total %d\n", s.FlushFailTotal)
	}
}
