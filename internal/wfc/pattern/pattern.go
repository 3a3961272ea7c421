// Package pattern reads example voxel patterns: small hand-made structures
// whose cells are named markers. The tile model learns tile identity and
// adjacency from them.
package pattern

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelwfc.ai/internal/wfc/geom"
)

//go:embed pattern.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("https://voxelwfc.ai/schemas/pattern.schema.json", schemaJSON)

// ErrNoExamples is returned when a corpus directory holds no pattern files.
var ErrNoExamples = errors.New("pattern: no example files")

// LegendEntry is one marker declaration of a pattern file.
type LegendEntry struct {
	Name        string   `json:"name"`
	Groups      []string `json:"groups,omitempty"`
	Directional bool     `json:"directional,omitempty"`
}

// File is the on-disk form of an example.
type File struct {
	ID        string                 `json:"id"`
	Size      [3]int                 `json:"size"`
	Periodic  bool                   `json:"periodic,omitempty"`
	Rotations bool                   `json:"rotations,omitempty"`
	Legend    map[string]LegendEntry `json:"legend"`
	Layers    [][]string             `json:"layers"`
}

// Marker is a cell of an example after legend lookup.
type Marker struct {
	Name        string
	Directional bool
	Rotation    int // quarter turns, only meaningful when Directional
}

// Key identifies the marker inside tile signatures.
func (m Marker) Key() string {
	if m.Directional {
		return fmt.Sprintf("%s/%d", m.Name, m.Rotation)
	}
	return m.Name
}

// Example is a decoded pattern. Cells are indexed with geom.Shape.Index.
type Example struct {
	ID       string
	Source   string
	Shape    geom.Shape
	Periodic bool
	// Rotations asks the tile model to learn from the three other Y-axis
	// quarter turns as well.
	Rotations bool
	Cells     []Marker
	// Groups maps a marker name to the groups its legend entry declared.
	Groups map[string][]string
}

func (e *Example) At(c geom.Coord) Marker { return e.Cells[e.Shape.Index(c)] }

// Rotate returns the example turned rot quarter turns around Y. Directional
// markers turn with it.
func (e *Example) Rotate(rot int) *Example {
	rot = geom.NormalizeRotation(rot)
	if rot == 0 {
		return e
	}
	rs := geom.RotateShape(e.Shape, rot)
	out := &Example{
		ID:        fmt.Sprintf("%s@r%d", e.ID, rot),
		Source:    e.Source,
		Shape:     rs,
		Periodic:  e.Periodic,
		Rotations: false,
		Cells:     make([]Marker, len(e.Cells)),
		Groups:    e.Groups,
	}
	for i, m := range e.Cells {
		c := e.Shape.Coord(i)
		if m.Directional {
			m.Rotation = (m.Rotation + rot) & 3
		}
		out.Cells[rs.Index(geom.RotateInShape(c, e.Shape, rot))] = m
	}
	return out
}

// Corpus is every example loaded from one directory.
type Corpus struct {
	Dir      string
	Examples []*Example
	Digest   string
}

// LoadDir reads every *.json file of dir in file-name order. Any problem with
// a file fails the whole corpus.
func LoadDir(dir string) (*Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoExamples, dir)
	}
	sort.Strings(files)

	c := &Corpus{Dir: dir}
	seen := map[string]string{}
	directional := map[string]bool{}
	var concat bytes.Buffer
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		concat.Write(raw)
		concat.WriteByte('\n')

		ex, err := Parse(filepath.Base(p), raw)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[ex.ID]; ok {
			return nil, fmt.Errorf("%s: duplicate example id %q (also in %s)", ex.Source, ex.ID, prev)
		}
		seen[ex.ID] = ex.Source
		for _, m := range ex.Cells {
			if d, ok := directional[m.Name]; ok && d != m.Directional {
				return nil, fmt.Errorf("%s: marker %q is directional in one example and not in another", ex.Source, m.Name)
			}
			directional[m.Name] = m.Directional
		}
		c.Examples = append(c.Examples, ex)
	}
	sum := sha256.Sum256(concat.Bytes())
	c.Digest = hex.EncodeToString(sum[:])
	return c, nil
}

// Parse validates raw against the pattern schema and decodes it. source names
// the file in error messages.
func Parse(source string, raw []byte) (*Example, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return f.decode(source)
}

func (f *File) decode(source string) (*Example, error) {
	shape := geom.Shape(f.Size)
	if !shape.Valid() {
		return nil, fmt.Errorf("%s: bad size %v", source, f.Size)
	}

	legend := make(map[rune]Marker, len(f.Legend))
	groups := map[string][]string{}
	for k, v := range f.Legend {
		r, n := utf8.DecodeRuneInString(k)
		if r == utf8.RuneError || n != len(k) {
			return nil, fmt.Errorf("%s: legend key %q must be a single character", source, k)
		}
		legend[r] = Marker{Name: v.Name, Directional: v.Directional}
		groups[v.Name] = mergeGroups(groups[v.Name], v.Groups)
	}

	if len(f.Layers) != shape[1] {
		return nil, fmt.Errorf("%s: %d layers, size says %d", source, len(f.Layers), shape[1])
	}
	ex := &Example{
		ID:        f.ID,
		Source:    source,
		Shape:     shape,
		Periodic:  f.Periodic,
		Rotations: f.Rotations,
		Cells:     make([]Marker, shape.Volume()),
		Groups:    groups,
	}
	for y, layer := range f.Layers {
		if len(layer) != shape[2] {
			return nil, fmt.Errorf("%s: layer %d has %d rows, size says %d", source, y, len(layer), shape[2])
		}
		for z, row := range layer {
			if n := utf8.RuneCountInString(row); n != shape[0] {
				return nil, fmt.Errorf("%s: layer %d row %d has %d cells, size says %d", source, y, z, n, shape[0])
			}
			x := 0
			for _, r := range row {
				m, ok := legend[r]
				if !ok {
					return nil, fmt.Errorf("%s: layer %d row %d col %d: unknown marker %q", source, y, z, x, r)
				}
				ex.Cells[shape.Index(geom.Coord{X: x, Y: y, Z: z})] = m
				x++
			}
		}
	}
	return ex, nil
}

func mergeGroups(have, add []string) []string {
	for _, g := range add {
		dup := false
		for _, h := range have {
			if h == g {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, g)
		}
	}
	return have
}
