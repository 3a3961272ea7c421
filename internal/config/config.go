// Package config loads the generator settings (configs/generator.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelwfc.ai/internal/wfc/geom"
	"voxelwfc.ai/internal/wfc/solver"
)

const (
	ModeAttach = "attach"
	ModePin    = "pin"
)

type Config struct {
	// ExamplesDir is resolved against the directory of the YAML file when
	// relative.
	ExamplesDir string              `yaml:"examples_dir"`
	TileSpan    int                 `yaml:"tile_span"`
	Groups      map[string][]string `yaml:"groups,omitempty"`

	Shape []int `yaml:"shape"`
	Wrap  bool  `yaml:"wrap"`

	Seed        int64  `yaml:"seed"`
	MaxAttempts int    `yaml:"max_attempts"`
	Workers     int    `yaml:"workers"`
	Weighting   string `yaml:"weighting"`

	ExcludeGroups []string       `yaml:"exclude_groups"`
	Boundaries    []BoundarySpec `yaml:"boundaries"`
}

// BoundarySpec narrows one layer before solving. attach keeps the tiles that
// may sit in Direction of Group; pin intersects the layer with Group itself.
type BoundarySpec struct {
	Group     string `yaml:"group"`
	Mode      string `yaml:"mode"`
	Index     int    `yaml:"index"`
	Direction string `yaml:"direction"`
	A         []int  `yaml:"a,omitempty"`
	B         []int  `yaml:"b,omitempty"`
}

// Boundary is a validated BoundarySpec against a concrete shape.
type Boundary struct {
	Group  string
	Attach bool
	Index  int
	Dir    geom.Direction
	A, B   geom.Range
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("generator.yaml: %w", err)
	}
	if cfg.ExamplesDir != "" && !filepath.IsAbs(cfg.ExamplesDir) {
		cfg.ExamplesDir = filepath.Join(filepath.Dir(path), cfg.ExamplesDir)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("generator.yaml: %w", err)
	}
	return cfg, nil
}

// Defaults mirror the prelim shell: a 12x3x12 grid, solid ground below and
// open sky above.
func Defaults() Config {
	return Config{
		ExamplesDir:   filepath.Join("configs", "prelim"),
		TileSpan:      1,
		Shape:         []int{12, 3, 12},
		MaxAttempts:   32,
		Workers:       1,
		Weighting:     "uniform",
		ExcludeGroups: []string{"full"},
		Boundaries: []BoundarySpec{
			{Group: "full", Mode: ModeAttach, Index: 0, Direction: "+y"},
			{Group: "air", Mode: ModeAttach, Index: -1, Direction: "-y"},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExamplesDir = strings.TrimSpace(c.ExamplesDir)
	if c.TileSpan <= 0 {
		c.TileSpan = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	c.Weighting = strings.ToLower(strings.TrimSpace(c.Weighting))
	if c.Weighting == "" {
		c.Weighting = "uniform"
	}
	for i := range c.ExcludeGroups {
		c.ExcludeGroups[i] = strings.TrimSpace(c.ExcludeGroups[i])
	}
	for i := range c.Boundaries {
		b := &c.Boundaries[i]
		b.Group = strings.TrimSpace(b.Group)
		b.Mode = strings.ToLower(strings.TrimSpace(b.Mode))
		if b.Mode == "" {
			b.Mode = ModeAttach
		}
		b.Direction = strings.TrimSpace(b.Direction)
	}
}

func (c Config) Validate() error {
	if c.ExamplesDir == "" {
		return fmt.Errorf("examples_dir must not be empty")
	}
	if c.TileSpan < 1 {
		return fmt.Errorf("tile_span must be >= 1")
	}
	if len(c.Shape) != 3 {
		return fmt.Errorf("shape must have 3 entries, got %d", len(c.Shape))
	}
	if !c.GridShape().Valid() {
		return fmt.Errorf("shape %v must be positive", c.Shape)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if _, err := solver.ParseWeighting(c.Weighting); err != nil {
		return err
	}
	for i, g := range c.ExcludeGroups {
		if g == "" {
			return fmt.Errorf("exclude_groups[%d] must not be empty", i)
		}
	}
	_, err := c.ResolveBoundaries()
	return err
}

// GridShape returns Shape as a geom.Shape; missing entries are zero.
func (c Config) GridShape() geom.Shape {
	var s geom.Shape
	copy(s[:], c.Shape)
	return s
}

func (c Config) SolverWeighting() solver.Weighting {
	w, _ := solver.ParseWeighting(c.Weighting)
	return w
}

// ResolveBoundaries checks every boundary against the grid shape and fills
// omitted ranges with the whole axis.
func (c Config) ResolveBoundaries() ([]Boundary, error) {
	shape := c.GridShape()
	out := make([]Boundary, 0, len(c.Boundaries))
	for i, b := range c.Boundaries {
		if b.Group == "" {
			return nil, fmt.Errorf("boundaries[%d] group must not be empty", i)
		}
		if b.Mode != ModeAttach && b.Mode != ModePin {
			return nil, fmt.Errorf("boundaries[%d] mode %q must be %s or %s", i, b.Mode, ModeAttach, ModePin)
		}
		dir, err := geom.ParseDirection(b.Direction)
		if err != nil {
			return nil, fmt.Errorf("boundaries[%d]: %w", i, err)
		}
		if _, ok := geom.ResolveIndex(b.Index, shape[dir.Axis()]); !ok {
			return nil, fmt.Errorf("boundaries[%d] index %d outside axis of length %d", i, b.Index, shape[dir.Axis()])
		}
		var lens []int
		for axis := 0; axis < 3; axis++ {
			if axis != dir.Axis() {
				lens = append(lens, shape[axis])
			}
		}
		a, err := parseRange(b.A, lens[0])
		if err != nil {
			return nil, fmt.Errorf("boundaries[%d] a: %w", i, err)
		}
		bb, err := parseRange(b.B, lens[1])
		if err != nil {
			return nil, fmt.Errorf("boundaries[%d] b: %w", i, err)
		}
		out = append(out, Boundary{
			Group:  b.Group,
			Attach: b.Mode == ModeAttach,
			Index:  b.Index,
			Dir:    dir,
			A:      a,
			B:      bb,
		})
	}
	return out, nil
}

func parseRange(v []int, n int) (geom.Range, error) {
	if len(v) == 0 {
		return geom.Range{Lo: 0, Hi: n}, nil
	}
	if len(v) != 2 {
		return geom.Range{}, fmt.Errorf("range must be [lo, hi], got %v", v)
	}
	r := geom.Range{Lo: v[0], Hi: v[1]}
	if !r.Within(n) {
		return geom.Range{}, fmt.Errorf("range [%d,%d) outside axis of length %d", r.Lo, r.Hi, n)
	}
	return r, nil
}
