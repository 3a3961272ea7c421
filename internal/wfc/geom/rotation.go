package geom

// NormalizeRotation converts a rotation value into a stable quarter-turn
// count in [0,3].
//
// It accepts either quarter-turns (0..3) or degrees (multiples of 90).
func NormalizeRotation(r int) int {
	// Treat large multiples of 90 as degrees.
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}

// RotateXZ rotates an (x,z) offset around the Y axis by rot*90 degrees
// clockwise. rot must be a normalized quarter-turn count in [0,3].
func RotateXZ(x, z, rot int) (rx, rz int) {
	switch rot & 3 {
	case 0:
		return x, z
	case 1:
		return z, -x
	case 2:
		return -x, -z
	default: // 3
		return -z, x
	}
}

// RotateInShape maps cell c of a box with extent s onto the box obtained by
// rotating it rot quarter turns around Y. The rotated box is RotateShape(s, rot).
func RotateInShape(c Coord, s Shape, rot int) Coord {
	rx, rz := RotateXZ(c.X, c.Z, rot)
	switch rot & 3 {
	case 1:
		rz += s[0] - 1
	case 2:
		rx += s[0] - 1
		rz += s[2] - 1
	case 3:
		rx += s[2] - 1
	}
	return Coord{X: rx, Y: c.Y, Z: rz}
}

// RotateShape swaps the X and Z extents for odd quarter turns.
func RotateShape(s Shape, rot int) Shape {
	if rot&1 == 1 {
		return Shape{s[2], s[1], s[0]}
	}
	return s
}
