package geom

import "testing"

func TestDirectionOppositeAndAxis(t *testing.T) {
	for _, d := range Directions {
		o := d.Opposite()
		if o.Opposite() != d {
			t.Fatalf("%s: opposite is not an involution", d)
		}
		if o.Axis() != d.Axis() {
			t.Fatalf("%s: opposite on another axis", d)
		}
		if d.Delta().Add(o.Delta()) != (Coord{}) {
			t.Fatalf("%s: deltas do not cancel", d)
		}
	}
	if PosY.Opposite() != NegY || NegZ.Opposite() != PosZ {
		t.Fatalf("unexpected opposite pairing")
	}
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{
		"+x": PosX, "-x": NegX, "y": PosY, "NEG_Y": NegY, "pos_z": PosZ, " -z ": NegZ,
	}
	for in, want := range cases {
		got, err := ParseDirection(in)
		if err != nil {
			t.Fatalf("ParseDirection(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseDirection(%q)=%s want %s", in, got, want)
		}
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestShapeIndexRoundTrip(t *testing.T) {
	s := Shape{4, 3, 5}
	seen := make([]bool, s.Volume())
	for y := 0; y < s[1]; y++ {
		for z := 0; z < s[2]; z++ {
			for x := 0; x < s[0]; x++ {
				c := Coord{X: x, Y: y, Z: z}
				i := s.Index(c)
				if seen[i] {
					t.Fatalf("index %d reused", i)
				}
				seen[i] = true
				if s.Coord(i) != c {
					t.Fatalf("Coord(Index(%v)) = %v", c, s.Coord(i))
				}
			}
		}
	}
}

func TestNeighborBoundedAndWrapped(t *testing.T) {
	s := Shape{3, 2, 3}
	if _, ok := s.Neighbor(Coord{X: 0}, NegX, false); ok {
		t.Fatalf("bounded grid should have no neighbour past the edge")
	}
	n, ok := s.Neighbor(Coord{X: 0}, NegX, true)
	if !ok || n != (Coord{X: 2}) {
		t.Fatalf("wrapped neighbour = %v,%v", n, ok)
	}
	n, ok = s.Neighbor(Coord{Y: 1}, PosY, true)
	if !ok || n != (Coord{}) {
		t.Fatalf("wrapped Y neighbour = %v,%v", n, ok)
	}
}

func TestResolveIndex(t *testing.T) {
	if i, ok := ResolveIndex(-1, 3); !ok || i != 2 {
		t.Fatalf("ResolveIndex(-1,3)=%d,%v", i, ok)
	}
	if _, ok := ResolveIndex(3, 3); ok {
		t.Fatalf("index 3 of 3 should be out of range")
	}
	if _, ok := ResolveIndex(-4, 3); ok {
		t.Fatalf("index -4 of 3 should be out of range")
	}
}

func TestRotateInShapeIsBijection(t *testing.T) {
	s := Shape{3, 1, 2}
	for rot := 0; rot < 4; rot++ {
		rs := RotateShape(s, rot)
		seen := map[Coord]bool{}
		for z := 0; z < s[2]; z++ {
			for x := 0; x < s[0]; x++ {
				r := RotateInShape(Coord{X: x, Z: z}, s, rot)
				if !rs.InBounds(r) {
					t.Fatalf("rot %d: %v mapped outside %v: %v", rot, Coord{X: x, Z: z}, rs, r)
				}
				if seen[r] {
					t.Fatalf("rot %d: %v hit twice", rot, r)
				}
				seen[r] = true
			}
		}
	}
}

func TestNormalizeRotation(t *testing.T) {
	for in, want := range map[int]int{0: 0, 1: 1, -1: 3, 90: 1, 180: 2, 270: 3, -90: 3, 360: 0} {
		if got := NormalizeRotation(in); got != want {
			t.Fatalf("NormalizeRotation(%d)=%d want %d", in, got, want)
		}
	}
}
