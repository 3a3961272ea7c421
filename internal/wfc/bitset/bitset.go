// Package bitset implements Domain, a fixed-width set over a dense id space
// [0, n). A Domain is a small header over a word slice, so the solver grid can
// keep every cell in one flat []uint64 and hand out aliasing views.
package bitset

import (
	"math/bits"
	"strconv"
	"strings"
)

// Domain is a set of ids in [0, Len()). The zero value is an empty domain of
// width 0. Mutating methods write through to the backing words, which may be
// shared with a grid (see View).
type Domain struct {
	n     int
	words []uint64
}

// Words returns how many uint64 words a domain of width n needs.
func Words(n int) int { return (n + 63) / 64 }

// New returns an empty domain of width n.
func New(n int) Domain {
	if n < 0 {
		n = 0
	}
	return Domain{n: n, words: make([]uint64, Words(n))}
}

// Full returns the domain containing every id in [0, n).
func Full(n int) Domain {
	d := New(n)
	for i := range d.words {
		d.words[i] = ^uint64(0)
	}
	d.trim()
	return d
}

// FromIDs returns a domain of width n holding ids. Ids outside [0, n) are
// ignored.
func FromIDs(n int, ids ...int) Domain {
	d := New(n)
	for _, id := range ids {
		d.Add(id)
	}
	return d
}

// View wraps words without copying. len(words) must be Words(n).
func View(n int, words []uint64) Domain {
	return Domain{n: n, words: words}
}

func (d *Domain) trim() {
	if rem := d.n % 64; rem != 0 && len(d.words) > 0 {
		d.words[len(d.words)-1] &= (uint64(1) << uint(rem)) - 1
	}
}

// Len is the width of the id space, not the number of members.
func (d Domain) Len() int { return d.n }

func (d Domain) Words() []uint64 { return d.words }

func (d Domain) Has(id int) bool {
	if id < 0 || id >= d.n {
		return false
	}
	return (d.words[id/64]>>uint(id%64))&1 == 1
}

func (d Domain) Add(id int) {
	if id < 0 || id >= d.n {
		return
	}
	d.words[id/64] |= 1 << uint(id%64)
}

func (d Domain) Remove(id int) {
	if id < 0 || id >= d.n {
		return
	}
	d.words[id/64] &^= 1 << uint(id%64)
}

// Count returns the number of members (popcount).
func (d Domain) Count() int {
	c := 0
	for _, w := range d.words {
		c += bits.OnesCount64(w)
	}
	return c
}

func (d Domain) IsEmpty() bool {
	for _, w := range d.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Single returns the only member when Count() == 1.
func (d Domain) Single() (int, bool) {
	id := -1
	for i, w := range d.words {
		if w == 0 {
			continue
		}
		if id >= 0 || w&(w-1) != 0 {
			return -1, false
		}
		id = i*64 + bits.TrailingZeros64(w)
	}
	return id, id >= 0
}

// Nth returns the k-th smallest member (0-based), or -1.
func (d Domain) Nth(k int) int {
	if k < 0 {
		return -1
	}
	for i, w := range d.words {
		c := bits.OnesCount64(w)
		if k >= c {
			k -= c
			continue
		}
		for ; k > 0; k-- {
			w &= w - 1
		}
		return i*64 + bits.TrailingZeros64(w)
	}
	return -1
}

// Each calls f for every member in ascending order.
func (d Domain) Each(f func(id int)) {
	for i, w := range d.words {
		for w != 0 {
			off := bits.TrailingZeros64(w)
			f(i*64 + off)
			w &= w - 1
		}
	}
}

func (d Domain) IDs() []int {
	out := make([]int, 0, d.Count())
	d.Each(func(id int) { out = append(out, id) })
	return out
}

func (d Domain) Clone() Domain {
	words := make([]uint64, len(d.words))
	copy(words, d.words)
	return Domain{n: d.n, words: words}
}

// CopyFrom overwrites d with o. Both must have the same width.
func (d Domain) CopyFrom(o Domain) {
	copy(d.words, o.words)
}

func (d Domain) Clear() {
	for i := range d.words {
		d.words[i] = 0
	}
}

func (d Domain) Equal(o Domain) bool {
	if d.n != o.n {
		return false
	}
	for i := range d.words {
		if d.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every member of d is in o.
func (d Domain) SubsetOf(o Domain) bool {
	for i, w := range d.words {
		var ow uint64
		if i < len(o.words) {
			ow = o.words[i]
		}
		if w&^ow != 0 {
			return false
		}
	}
	return true
}

// UnionWith adds every member of o to d in place.
func (d Domain) UnionWith(o Domain) {
	for i := range d.words {
		if i < len(o.words) {
			d.words[i] |= o.words[i]
		}
	}
}

// IntersectWith removes from d every id missing from o and reports whether d
// changed.
func (d Domain) IntersectWith(o Domain) bool {
	changed := false
	for i, w := range d.words {
		var ow uint64
		if i < len(o.words) {
			ow = o.words[i]
		}
		nw := w & ow
		if nw != w {
			d.words[i] = nw
			changed = true
		}
	}
	return changed
}

// DifferenceWith removes every member of o from d in place.
func (d Domain) DifferenceWith(o Domain) {
	for i := range d.words {
		if i < len(o.words) {
			d.words[i] &^= o.words[i]
		}
	}
}

func (d Domain) Union(o Domain) Domain {
	r := d.Clone()
	r.UnionWith(o)
	return r
}

func (d Domain) Intersect(o Domain) Domain {
	r := d.Clone()
	r.IntersectWith(o)
	return r
}

func (d Domain) Difference(o Domain) Domain {
	r := d.Clone()
	r.DifferenceWith(o)
	return r
}

func (d Domain) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	d.Each(func(id int) {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.Itoa(id))
	})
	b.WriteByte('}')
	return b.String()
}
