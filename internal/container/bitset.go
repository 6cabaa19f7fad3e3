package container

import "math/bits"

const wordBits = 64

// Bitset is a growable set of bit positions backed by 64-bit words,
// generalizing the fixed 256-bit component signature (see ecs.Signature)
// to arbitrary length for uses like a job system type_mask or an event
// bus's registered-type set.
type Bitset struct {
	words []uint64
}

// NewBitset creates a Bitset with room for at least nBits bits.
func NewBitset(nBits int) *Bitset {
	n := (nBits + wordBits - 1) / wordBits
	if n == 0 {
		n = 1
	}
	return &Bitset{words: make([]uint64, n)}
}

func (b *Bitset) ensure(word int) {
	if word >= len(b.words) {
		grown := make([]uint64, word+1)
		copy(grown, b.words)
		b.words = grown
	}
}

// Set turns bit i on.
func (b *Bitset) Set(i int) {
	word, bit := i/wordBits, uint(i%wordBits)
	b.ensure(word)
	b.words[word] |= 1 << bit
}

// Clear turns bit i off.
func (b *Bitset) Clear(i int) {
	word, bit := i/wordBits, uint(i%wordBits)
	if word >= len(b.words) {
		return
	}
	b.words[word] &^= 1 << bit
}

// Test reports whether bit i is set.
func (b *Bitset) Test(i int) bool {
	word, bit := i/wordBits, uint(i%wordBits)
	if word >= len(b.words) {
		return false
	}
	return b.words[word]&(1<<bit) != 0
}

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// ContainsAll reports whether every bit set in other is also set in b
// (b ⊇ other), the "include" test a query's signature mask needs.
func (b *Bitset) ContainsAll(other *Bitset) bool {
	for i, w := range other.words {
		if i >= len(b.words) {
			if w != 0 {
				return false
			}
			continue
		}
		if b.words[i]&w != w {
			return false
		}
	}
	return true
}

// Intersects reports whether b and other share any set bit (used for the
// "exclude" test: sig ∩ exclude = ∅ means Intersects is false).
func (b *Bitset) Intersects(other *Bitset) bool {
	n := len(b.words)
	if len(other.words) < n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		if b.words[i]&other.words[i] != 0 {
			return true
		}
	}
	return false
}

// Equal reports bitwise equality.
func (b *Bitset) Equal(other *Bitset) bool {
	n := len(b.words)
	if len(other.words) > n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		var a, o uint64
		if i < len(b.words) {
			a = b.words[i]
		}
		if i < len(other.words) {
			o = other.words[i]
		}
		if a != o {
			return false
		}
	}
	return true
}

// Key returns a comparable, fixed-shape copy of the words suitable for use
// as a map key (archetype registries key on exactly this).
func (b *Bitset) Key() string {
	buf := make([]byte, len(b.words)*8)
	for i, w := range b.words {
		for j := 0; j < 8; j++ {
			buf[i*8+j] = byte(w >> (8 * j))
		}
	}
	return string(buf)
}
