package graph

import (
	"math/bits"
	"sync/atomic"

	"github.com/jamieb133/jamcore/internal/constants"
)

const maskWords = (constants.MaxProcessors + 63) / 64

// Mask is a fixed-capacity bitset over processor IDs [0, MaxProcessors),
// implemented as an array of word-sized atomics. Every mutation is a single
// atomic word update (a compare-and-swap retry loop, since a plain OR/AND
// would race two concurrent control-thread writers), so the RT thread can
// read any word with a plain atomic load and never blocks on a control
// thread mutation in flight.
type Mask struct {
	w [maskWords]atomic.Uint64
}

func setBit(w *atomic.Uint64, bit uint) {
	m := uint64(1) << bit
	for {
		old := w.Load()
		if old&m != 0 {
			return
		}
		if w.CompareAndSwap(old, old|m) {
			return
		}
	}
}

func clearBit(w *atomic.Uint64, bit uint) {
	m := uint64(1) << bit
	for {
		old := w.Load()
		if old&m == 0 {
			return
		}
		if w.CompareAndSwap(old, old&^m) {
			return
		}
	}
}

// Set marks id as present.
func (m *Mask) Set(id int) { setBit(&m.w[id/64], uint(id%64)) }

// Clear marks id as absent.
func (m *Mask) Clear(id int) { clearBit(&m.w[id/64], uint(id%64)) }

// Has reports whether id is set.
func (m *Mask) Has(id int) bool {
	return m.w[id/64].Load()&(uint64(1)<<uint(id%64)) != 0
}

// IsZero reports whether no bits are set. Used by the RT traversal to
// detect leaf/sink processors.
func (m *Mask) IsZero() bool {
	for i := range m.w {
		if m.w[i].Load() != 0 {
			return false
		}
	}
	return true
}

// Bits appends the set bit indices, in ascending order, onto scratch and
// returns the result. scratch is caller-owned (typically a field on the
// owning Table, sliced to length 0) so that repeated calls from the RT
// thread during traversal never grow the backing array and never touch the
// general allocator; cap(scratch) must be at least the number of bits that
// could be set.
func (m *Mask) Bits(scratch []int) []int {
	out := scratch[:0]
	for wi := range m.w {
		word := m.w[wi].Load()
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, wi*64+bit)
			word &= word - 1
		}
	}
	return out
}

// FirstUnset returns the lowest bit index not set, or -1 if the mask is
// fully occupied. Used by CreateProcessor to find a free slot.
func (m *Mask) FirstUnset() int {
	for wi := range m.w {
		word := m.w[wi].Load()
		if word == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^word)
		id := wi*64 + bit
		if id >= constants.MaxProcessors {
			return -1
		}
		return id
	}
	return -1
}
