package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelwfc.ai/internal/encoding"
	"voxelwfc.ai/internal/generate"
	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/solver"
	"voxelwfc.ai/internal/wfc/tiles"
)

func indexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "wfc.sqlite")
}

type resultFile struct {
	RunID        string   `json:"run_id"`
	Seed         int64    `json:"seed"`
	Attempt      int      `json:"attempt"`
	Attempts     int      `json:"attempts"`
	CorpusDigest string   `json:"corpus_digest"`
	Shape        [3]int   `json:"shape"`
	Palette      []string `json:"palette"`
	Encoding     string   `json:"encoding"`
	Data         string   `json:"data"`
}

func newResultFile(res *generate.Result, m *tiles.Model) resultFile {
	return resultFile{
		RunID:        res.RunID,
		Seed:         res.Seed,
		Attempt:      res.Attempt,
		Attempts:     res.Attempts,
		CorpusDigest: m.Digest(),
		Shape:        res.Grid.Shape,
		Palette:      m.Palette(),
		Encoding:     encoding.Name,
		Data:         encoding.EncodeRLE(res.Grid.IDs()),
	}
}

func writeResult(path string, r resultFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	var w io.Writer = f
	var zw *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		zw, err = zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return err
		}
		w = zw
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		if zw != nil {
			_ = zw.Close()
		}
		_ = f.Close()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			_ = f.Close()
			return err
		}
	}
	return f.Close()
}

// initials assigns one distinct printable rune per tile name, preferring the
// name's own letters. air prints as '.'.
func initials(m *tiles.Model) map[string]rune {
	names := map[string]bool{}
	for _, n := range m.Palette() {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	out := map[string]rune{}
	used := map[rune]bool{'.': true}
	if names["air"] {
		out["air"] = '.'
	}
	for _, n := range sorted {
		if _, ok := out[n]; ok {
			continue
		}
		r := pickRune(n, used)
		out[n] = r
		used[r] = true
	}
	return out
}

func pickRune(name string, used map[rune]bool) rune {
	for _, r := range name {
		if r >= 'a' && r <= 'z' && !used[r] {
			return r
		}
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			if u := r - 'a' + 'A'; !used[u] {
				return u
			}
		}
	}
	for r := '0'; r <= '9'; r++ {
		if !used[r] {
			return r
		}
	}
	return '?'
}

// writeLayers prints the grid bottom-up, one block of D rows of W runes per
// Y layer, followed by a legend.
func writeLayers(w io.Writer, g *solver.SolvedGrid, m *tiles.Model) error {
	names, err := g.Names(m)
	if err != nil {
		return err
	}
	marks := initials(m)
	bw := bufio.NewWriter(w)
	s := g.Shape
	for y := 0; y < s[1]; y++ {
		fmt.Fprintf(bw, "y=%d\n", y)
		for z := 0; z < s[2]; z++ {
			for x := 0; x < s[0]; x++ {
				bw.WriteRune(marks[names[s.Index(geom.Coord{X: x, Y: y, Z: z})]])
			}
			bw.WriteByte('\n')
		}
	}
	legend := make([]string, 0, len(marks))
	for n, r := range marks {
		legend = append(legend, fmt.Sprintf("%c=%s", r, n))
	}
	sort.Strings(legend)
	fmt.Fprintf(bw, "%s\n", strings.Join(legend, " "))
	return bw.Flush()
}
