package pattern

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelwfc.ai/internal/wfc/geom"
)

const towerJSON = `{
  "id": "tower",
  "size": [2, 2, 1],
  "rotations": true,
  "legend": {
    "#": {"name": "full", "groups": ["solid"]},
    ".": {"name": "air"},
    "h": {"name": "house_free_side", "directional": true}
  },
  "layers": [["h#"], [".."]]
}`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestParse_DecodesLayers(t *testing.T) {
	ex, err := Parse("tower.json", []byte(towerJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ex.Shape != (geom.Shape{2, 2, 1}) {
		t.Fatalf("shape = %v", ex.Shape)
	}
	if got := ex.At(geom.Coord{X: 1}).Name; got != "full" {
		t.Fatalf("cell (1,0,0) = %q want full", got)
	}
	if got := ex.At(geom.Coord{X: 0, Y: 1}).Name; got != "air" {
		t.Fatalf("cell (0,1,0) = %q want air", got)
	}
	if !ex.At(geom.Coord{}).Directional {
		t.Fatalf("house marker should be directional")
	}
	if g := ex.Groups["full"]; len(g) != 1 || g[0] != "solid" {
		t.Fatalf("groups[full] = %v", g)
	}
}

func TestParse_RejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{`,
		"schema":         `{"id":"x","size":[1,1],"legend":{".":{"name":"air"}},"layers":[["."]]}`,
		"extra field":    `{"id":"x","size":[1,1,1],"legend":{".":{"name":"air"}},"layers":[["."]],"colour":1}`,
		"layer count":    `{"id":"x","size":[1,2,1],"legend":{".":{"name":"air"}},"layers":[["."]]}`,
		"row count":      `{"id":"x","size":[1,1,2],"legend":{".":{"name":"air"}},"layers":[["."]]}`,
		"row width":      `{"id":"x","size":[2,1,1],"legend":{".":{"name":"air"}},"layers":[["."]]}`,
		"unknown marker": `{"id":"x","size":[1,1,1],"legend":{".":{"name":"air"}},"layers":[["?"]]}`,
		"long key":       `{"id":"x","size":[1,1,1],"legend":{"ab":{"name":"air"}},"layers":[["a"]]}`,
	}
	for name, body := range cases {
		if _, err := Parse(name, []byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestRotate_TurnsShapeAndDirectionalMarkers(t *testing.T) {
	ex, err := Parse("tower.json", []byte(towerJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := ex.Rotate(1)
	if r.Shape != (geom.Shape{1, 2, 2}) {
		t.Fatalf("rotated shape = %v", r.Shape)
	}
	counts := map[string]int{}
	for _, m := range r.Cells {
		counts[m.Key()]++
	}
	if counts["house_free_side/1"] != 1 || counts["full"] != 1 || counts["air"] != 2 {
		t.Fatalf("rotated markers = %v", counts)
	}
	if ex.Rotate(4) != ex {
		t.Fatalf("a full turn should return the example itself")
	}
	back := r.Rotate(3)
	for i := range ex.Cells {
		if back.Cells[i] != ex.Cells[i] {
			t.Fatalf("four quarter turns should restore cell %d: %v vs %v", i, back.Cells[i], ex.Cells[i])
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_tower.json", towerJSON)
	writeFile(t, dir, "a_flat.json", `{"id":"flat","size":[1,1,1],"legend":{"g":{"name":"grass"}},"layers":[["g"]]}`)
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(c.Examples) != 2 || c.Examples[0].ID != "flat" || c.Examples[1].ID != "tower" {
		t.Fatalf("examples not loaded in file order: %+v", c.Examples)
	}
	if len(c.Digest) != 64 {
		t.Fatalf("digest = %q", c.Digest)
	}

	again, err := LoadDir(dir)
	if err != nil || again.Digest != c.Digest {
		t.Fatalf("digest not stable: %v", err)
	}
}

func TestLoadDir_Errors(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}

	empty := t.TempDir()
	if _, err := LoadDir(empty); !errors.Is(err, ErrNoExamples) {
		t.Fatalf("empty dir: got %v want ErrNoExamples", err)
	}

	dup := t.TempDir()
	writeFile(t, dup, "a.json", towerJSON)
	writeFile(t, dup, "b.json", towerJSON)
	if _, err := LoadDir(dup); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("duplicate ids: got %v", err)
	}

	mixed := t.TempDir()
	writeFile(t, mixed, "a.json", towerJSON)
	writeFile(t, mixed, "b.json", `{"id":"b","size":[1,1,1],"legend":{"h":{"name":"house_free_side"}},"layers":[["h"]]}`)
	if _, err := LoadDir(mixed); err == nil || !strings.Contains(err.Error(), "directional") {
		t.Fatalf("mixed directional: got %v", err)
	}
}
