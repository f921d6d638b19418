package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 encapsulates a float64 for non-locking atomic operations. The value is stored
// as its IEEE-754 bits in an atomic.Uint64, so no unsafe pointer casts are needed.
// The zero value holds 0.0 and is ready to use.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.bits.Store(math.Float64bits(val))
	return af
}

// AtomicRead atomically reads the float64.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// AtomicSet unconditionally stores the float64.
func (af *AtomicFloat64) AtomicSet(val float64) {
	af.bits.Store(math.Float64bits(val))
}

// AtomicAdd makes a single attempt to add @addend. If the pointee changed in between the read
// and the swap the add is rejected and the caller decides whether to retry, drop, or recalculate.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.bits.Load()
	newVal = math.Float64frombits(old) + addend
	succeeded = af.bits.CompareAndSwap(old, math.Float64bits(newVal))
	return
}

// AtomicMax raises the stored value to @candidate if it is larger, retrying until either the
// swap lands or another writer has already stored something at least as large.
// NaN candidates are ignored.
func (af *AtomicFloat64) AtomicMax(candidate float64) (stored float64) {
	for {
		old := af.bits.Load()
		cur := math.Float64frombits(old)
		if !(candidate > cur) {
			return cur
		}
		if af.bits.CompareAndSwap(old, math.Float64bits(candidate)) {
			return candidate
		}
	}
}
