// Package register keeps the SY-1000 switch registers and maps them onto
// individual boolean parameters.
//
// Register A (10000312) holds 32 effect switch bits, register B (1000031A)
// holds 8. Both are sent and received as full 8 byte values.
package register

import (
	"sync/atomic"

	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

// Width is the wire width of a register message
const Width = 8

// Well known register addresses
var (
	AddressA = sysex.Address{0x10, 0x00, 0x03, 0x12}
	AddressB = sysex.Address{0x10, 0x00, 0x03, 0x1A}
)

// Register is a lock-free bitmask cell bound to a device address
type Register struct {
	Address sysex.Address
	Bits    int
	value   atomic.Uint32
}

// New creates a register with the given number of bits (1..32)
func New(addr sysex.Address, bits int) *Register {
	return &Register{Address: addr, Bits: bits}
}

func (r *Register) mask() uint32 {
	if r.Bits >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<r.Bits - 1
}

// Load returns the current register value
func (r *Register) Load() uint32 { return r.value.Load() }

// Store replaces the register value. Bits above the register size are dropped.
func (r *Register) Store(v uint32) { r.value.Store(v & r.mask()) }

// Bit reports whether bit i is set
func (r *Register) Bit(i int) bool {
	return r.value.Load()>>uint(i)&1 == 1
}

// SetBit sets or clears bit i and returns the new register value. Bits
// outside the register size are ignored.
func (r *Register) SetBit(i int, on bool) uint32 {
	m := uint32(1) << uint(i) & r.mask()
	for {
		old := r.value.Load()
		v := old &^ m
		if on {
			v = old | m
		}
		if r.value.CompareAndSwap(old, v) {
			return v
		}
	}
}

// Frame returns the width 8 message frame carrying the full register value
func (r *Register) Frame() sysex.Frame {
	return sysex.Frame{Address: r.Address, Width: Width, Value: r.Load()}
}

// Expand resolves the RegisterBit parameter for every bit of the register
// and calls push with the bit value (0 or 1). Bits without a catalog entry
// are skipped.
func Expand(cat *catalog.Catalog, r *Register, push func(def catalog.Definition, bit int)) {
	v := r.Load()
	for i := 0; i < r.Bits; i++ {
		def, ok := cat.LookupBit(r.Address, i)
		if !ok {
			continue
		}
		push(def, int(v>>uint(i)&1))
	}
}

// Rebuild sets every bit that has a RegisterBit entry from value (non zero
// is on), stores the result and returns it. Bits without an entry keep
// their state.
func Rebuild(cat *catalog.Catalog, r *Register, value func(def catalog.Definition) int) uint32 {
	v := r.Load()
	for i := 0; i < r.Bits; i++ {
		def, ok := cat.LookupBit(r.Address, i)
		if !ok {
			continue
		}
		m := uint32(1) << uint(i)
		if value(def) != 0 {
			v |= m
		} else {
			v &^= m
		}
	}
	r.Store(v)
	return r.Load()
}

// Collapse applies a single bit change and returns the frame that carries
// the updated register to the device
func Collapse(r *Register, bit int, on bool) sysex.Frame {
	v := r.SetBit(bit, on)
	return sysex.Frame{Address: r.Address, Width: Width, Value: v}
}

// Bank holds the registers of one session
type Bank struct {
	A *Register
	B *Register
}

// NewBank creates register A (32 bit) and register B (8 bit), both zero
func NewBank() *Bank {
	return &Bank{
		A: New(AddressA, 32),
		B: New(AddressB, 8),
	}
}

// Lookup returns the register at addr
func (b *Bank) Lookup(addr sysex.Address) (*Register, bool) {
	switch addr {
	case b.A.Address:
		return b.A, true
	case b.B.Address:
		return b.B, true
	}
	return nil, false
}

// All returns the registers in address order
func (b *Bank) All() []*Register {
	return []*Register{b.A, b.B}
}
