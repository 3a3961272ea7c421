package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/persistence/indexdb"
	"voxelwfc.ai/internal/wfc/tiles"
)

type runtimeIndex interface {
	generate.Recorder
	Close() error
	UpsertCorpus(dir string, m *tiles.Model) error
}

func openRuntimeIndex(dataDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("WFC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "wfc.sqlite")
		return indexdb.OpenSQLite(dbPath)
	case "http":
		endpoint := strings.TrimSpace(os.Getenv("WFC_INDEX_HTTP_URL"))
		token := strings.TrimSpace(os.Getenv("WFC_INDEX_HTTP_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("WFC_INDEX_BACKEND=http but WFC_INDEX_HTTP_URL is empty")
		}
		flushMS := envInt("WFC_INDEX_HTTP_FLUSH_MS", 500)
		batchSize := envInt("WFC_INDEX_HTTP_BATCH_SIZE", 128)
		source, _ := os.Hostname()
		return indexdb.OpenHTTP(indexdb.HTTPConfig{
			Endpoint:      endpoint,
			Token:         token,
			Source:        source,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported WFC_INDEX_BACKEND: %s", backend)
	}
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
