package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelwfc.ai/internal/config"
	"voxelwfc.ai/internal/encoding"
	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/persistence/runlog"
	"voxelwfc.ai/internal/wfc/tiles"
)

func readResult(t *testing.T, path string) resultFile {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd: %v", err)
		}
		defer dec.Close()
		r = dec
	}
	var out resultFile
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestRun_WritesResultAndAttemptLog(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"grid.json", "grid.json.zst"} {
		out := filepath.Join(dir, name)
		err := run(log.New(io.Discard, "", 0), runOptions{
			ConfigPath: "../../configs/generator.yaml",
			Seed:       42,
			SeedSet:    true,
			OutPath:    out,
			DataDir:    dir,
			DisableDB:  true,
			Timeout:    time.Minute,
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		res := readResult(t, out)
		if res.Seed != 42 || res.Encoding != encoding.Name {
			t.Fatalf("%s: unexpected header %+v", name, res)
		}
		ids, err := encoding.DecodeRLE(res.Data, res.Shape[0]*res.Shape[1]*res.Shape[2])
		if err != nil {
			t.Fatalf("%s: decode grid: %v", name, err)
		}
		for i, id := range ids {
			if int(id) >= len(res.Palette) {
				t.Fatalf("%s: cell %d id %d outside palette", name, i, id)
			}
		}
	}

	files, err := runlog.Files(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected an attempt log under %s", dir)
	}
}

func TestWriteLayers(t *testing.T) {
	cfg, err := config.Load("../../configs/generator.yaml")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	m, err := tiles.New(cfg.TileSpan, cfg.ExamplesDir, tiles.Options{Groups: cfg.Groups})
	if err != nil {
		t.Fatalf("tiles: %v", err)
	}
	g, err := generate.New(m, cfg, nil)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	res, err := g.Generate(context.Background(), 9)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var buf bytes.Buffer
	if err := writeLayers(&buf, res.Grid, m); err != nil {
		t.Fatalf("writeLayers: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	s := res.Grid.Shape
	if want := s[1]*(s[2]+1) + 1; len(lines) != want {
		t.Fatalf("got %d lines, want %d", len(lines), want)
	}
	if lines[0] != "y=0" || len(lines[1]) != s[0] {
		t.Fatalf("unexpected layout: %q %q", lines[0], lines[1])
	}
}

func TestInitialsAreDistinct(t *testing.T) {
	cfg, err := config.Load("../../configs/generator.yaml")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	m, err := tiles.New(cfg.TileSpan, cfg.ExamplesDir, tiles.Options{Groups: cfg.Groups})
	if err != nil {
		t.Fatalf("tiles: %v", err)
	}
	marks := initials(m)
	if marks["air"] != '.' {
		t.Fatalf("air should print as '.', got %q", marks["air"])
	}
	seen := map[rune]string{}
	for name, r := range marks {
		if other, ok := seen[r]; ok {
			t.Fatalf("%s and %s share %q", name, other, r)
		}
		seen[r] = name
	}
}
