// Package mathx holds the integer helpers shared by the lattice and the
// generator.
package mathx

// Mod returns a modulo b in [0,b). Used for toroidal neighbour lookups.
func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// mix64 is the splitmix64 finalizer.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// AttemptSeed derives the rng seed of one solve attempt from a run seed.
// Attempt 0 keeps the run seed so a single-attempt run is reproducible from
// the seed alone. Derived seeds are never negative.
func AttemptSeed(seed int64, attempt int) int64 {
	if attempt == 0 {
		return seed
	}
	v := uint64(seed) ^ (uint64(uint32(int32(attempt))) * 0x9e3779b97f4a7c15)
	return int64(mix64(v) >> 1)
}
