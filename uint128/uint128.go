// Copyright (c) 2023 Colin McRae

// Package uint128 implements a fixed-width 128-bit unsigned integer on
// four 32-bit limbs. It exists so that arithmetic which can overflow 64
// bits -- the product of two 64-bit moduli, or a Montgomery reduction
// accumulator -- never has to round-trip through math/big.
package uint128

import (
	"math/bits"
)

const limbMask = 0xFFFFFFFF

// Uint128 is an unsigned 128-bit integer stored as four 32-bit limbs,
// least significant first.
type Uint128 struct {
	w [4]uint32
}

// Zero returns the zero value.
func Zero() Uint128 {
	return Uint128{}
}

// FromUint64 returns x as a Uint128.
func FromUint64(x uint64) Uint128 {
	return Uint128{w: [4]uint32{uint32(x), uint32(x >> 32), 0, 0}}
}

// FromHiLo returns hi*2^64 + lo.
func FromHiLo(hi, lo uint64) Uint128 {
	return Uint128{w: [4]uint32{
		uint32(lo), uint32(lo >> 32), uint32(hi), uint32(hi >> 32),
	}}
}

// FromLimbs returns the value with the given little-endian 32-bit limbs.
func FromLimbs(limbs [4]uint32) Uint128 {
	return Uint128{w: limbs}
}

// Limbs returns the four little-endian 32-bit limbs of x.
func (x Uint128) Limbs() [4]uint32 {
	return x.w
}

// Lo returns the low 64 bits of x.
func (x Uint128) Lo() uint64 {
	return uint64(x.w[0]) | uint64(x.w[1])<<32
}

// Hi returns the high 64 bits of x.
func (x Uint128) Hi() uint64 {
	return uint64(x.w[2]) | uint64(x.w[3])<<32
}

// Uint64 returns the low 64 bits of x; the caller asserts that the high
// 64 bits are zero.
func (x Uint128) Uint64() uint64 {
	return x.Lo()
}

// IsZero reports whether x == 0.
func (x Uint128) IsZero() bool {
	return x.w[0]|x.w[1]|x.w[2]|x.w[3] == 0
}

// IsUint64 reports whether x fits in 64 bits.
func (x Uint128) IsUint64() bool {
	return x.w[2]|x.w[3] == 0
}

// BitLen returns the number of bits required to represent x.
func (x Uint128) BitLen() int {
	for i := 3; i >= 0; i-- {
		if x.w[i] != 0 {
			return 32*i + bits.Len32(x.w[i])
		}
	}
	return 0
}

// Cmp returns -1, 0 or +1 depending on whether x < y, x == y or x > y.
func (x Uint128) Cmp(y Uint128) int {
	for i := 3; i >= 0; i-- {
		if x.w[i] != y.w[i] {
			if x.w[i] < y.w[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Add returns x + y mod 2^128.
func (x Uint128) Add(y Uint128) Uint128 {
	var z Uint128
	var carry uint64
	for i := 0; i < 4; i++ {
		s := uint64(x.w[i]) + uint64(y.w[i]) + carry
		z.w[i] = uint32(s)
		carry = s >> 32
	}
	return z
}

// AddUint64 returns x + y mod 2^128.
func (x Uint128) AddUint64(y uint64) Uint128 {
	return x.Add(FromUint64(y))
}

// Sub returns x - y mod 2^128.
func (x Uint128) Sub(y Uint128) Uint128 {
	var z Uint128
	var borrow uint64
	for i := 0; i < 4; i++ {
		d := uint64(x.w[i]) - uint64(y.w[i]) - borrow
		z.w[i] = uint32(d)
		borrow = (d >> 32) & 1
	}
	return z
}

// Mul64 returns the full 128-bit product of two 64-bit operands, by
// schoolbook multiplication on 32-bit limbs with 64-bit accumulators.
func Mul64(a, b uint64) Uint128 {
	a0 := a & limbMask
	a1 := a >> 32
	b0 := b & limbMask
	b1 := b >> 32

	p00 := a0 * b0
	p01 := a0 * b1
	p10 := a1 * b0
	p11 := a1 * b1

	var z Uint128
	z.w[0] = uint32(p00)
	mid := (p00 >> 32) + (p01 & limbMask) + (p10 & limbMask)
	z.w[1] = uint32(mid)
	mid = (mid >> 32) + (p01 >> 32) + (p10 >> 32) + (p11 & limbMask)
	z.w[2] = uint32(mid)
	z.w[3] = uint32((mid >> 32) + (p11 >> 32))
	return z
}

// Mul returns x * y mod 2^128.
func (x Uint128) Mul(y Uint128) Uint128 {
	var z Uint128
	for i := 0; i < 4; i++ {
		if y.w[i] == 0 {
			continue
		}
		var carry uint64
		for j := 0; i+j < 4; j++ {
			t := uint64(x.w[j])*uint64(y.w[i]) + uint64(z.w[i+j]) + carry
			z.w[i+j] = uint32(t)
			carry = t >> 32
		}
	}
	return z
}

// Lsh returns x << k. Shifts of 128 or more return zero.
func (x Uint128) Lsh(k uint) Uint128 {
	if k >= 128 {
		return Uint128{}
	}
	var z Uint128
	limbShift := int(k / 32)
	bitShift := k % 32
	for i := 3; i >= limbShift; i-- {
		v := x.w[i-limbShift] << bitShift
		if bitShift > 0 && i-limbShift-1 >= 0 {
			v |= x.w[i-limbShift-1] >> (32 - bitShift)
		}
		z.w[i] = v
	}
	return z
}

// Rsh returns x >> k. Shifts of 128 or more return zero.
func (x Uint128) Rsh(k uint) Uint128 {
	if k >= 128 {
		return Uint128{}
	}
	var z Uint128
	limbShift := int(k / 32)
	bitShift := k % 32
	for i := 0; i+limbShift < 4; i++ {
		v := x.w[i+limbShift] >> bitShift
		if bitShift > 0 && i+limbShift+1 < 4 {
			v |= x.w[i+limbShift+1] << (32 - bitShift)
		}
		z.w[i] = v
	}
	return z
}

// DivMod32 returns the quotient and remainder of x / d for a 32-bit
// divisor, by limb-at-a-time long division. d must be nonzero.
func (x Uint128) DivMod32(d uint32) (Uint128, uint32) {
	if d == 0 {
		panic("uint128: division by zero")
	}
	var q Uint128
	var r uint64
	for i := 3; i >= 0; i-- {
		cur := r<<32 | uint64(x.w[i])
		q.w[i] = uint32(cur / uint64(d))
		r = cur % uint64(d)
	}
	return q, uint32(r)
}

// DivMod64 returns the quotient and remainder of x / d for a 64-bit
// divisor. The divisor is normalized so that the top limb has bit 31
// set, then one 3-by-2 quotient estimation step runs per quotient
// digit, with at most two correction subtractions. d must be nonzero.
func (x Uint128) DivMod64(d uint64) (Uint128, uint64) {
	if d == 0 {
		panic("uint128: division by zero")
	}
	if d <= limbMask {
		q, r := x.DivMod32(uint32(d))
		return q, uint64(r)
	}
	if x.Hi() == 0 {
		lo := x.Lo()
		return FromUint64(lo / d), lo % d
	}

	// Normalize: shift divisor and dividend left so that the divisor's
	// high limb has its top bit set (Knuth 4.3.1, Algorithm D).
	s := uint(bits.LeadingZeros32(uint32(d >> 32)))
	dn := d << s
	v0 := uint32(dn)
	v1 := uint32(dn >> 32)

	var u [5]uint32
	if s == 0 {
		copy(u[:4], x.w[:])
	} else {
		u[4] = x.w[3] >> (32 - s)
		for i := 3; i > 0; i-- {
			u[i] = x.w[i]<<s | x.w[i-1]>>(32-s)
		}
		u[0] = x.w[0] << s
	}

	var q Uint128
	for j := 2; j >= 0; j-- {
		// 3-by-2 quotient digit estimate from the top three limbs.
		num := uint64(u[j+2])<<32 | uint64(u[j+1])
		qhat := num / uint64(v1)
		rhat := num % uint64(v1)
		for qhat > limbMask || qhat*uint64(v0) > rhat<<32|uint64(u[j]) {
			qhat--
			rhat += uint64(v1)
			if rhat > limbMask {
				break
			}
		}

		// Multiply and subtract qhat * divisor from u[j..j+2].
		vl := [2]uint32{v0, v1}
		var k uint64
		var t int64
		for i := 0; i < 2; i++ {
			p := qhat * uint64(vl[i])
			t = int64(uint64(u[i+j])) - int64(k) - int64(p&limbMask)
			u[i+j] = uint32(t)
			k = (p >> 32) - uint64(t>>32)
		}
		t = int64(uint64(u[j+2])) - int64(k)
		u[j+2] = uint32(t)

		if t < 0 {
			// Estimate was one too large; add the divisor back.
			qhat--
			var carry uint64
			for i := 0; i < 2; i++ {
				c := uint64(u[i+j]) + uint64(vl[i]) + carry
				u[i+j] = uint32(c)
				carry = c >> 32
			}
			u[j+2] += uint32(carry)
		}
		q.w[j] = uint32(qhat)
	}

	r := (uint64(u[1])<<32 | uint64(u[0])) >> s
	return q, r
}

// Mod64 returns x mod d.
func (x Uint128) Mod64(d uint64) uint64 {
	_, r := x.DivMod64(d)
	return r
}

// MulMod returns a*b mod m, computed through the full 128-bit product
// followed by a 128/64 division. m must be nonzero.
func MulMod(a, b, m uint64) uint64 {
	if m == 0 {
		panic("uint128: modulus is zero")
	}
	if a >= m {
		a %= m
	}
	if b >= m {
		b %= m
	}
	if a|b <= limbMask {
		return a * b % m
	}
	return Mul64(a, b).Mod64(m)
}

// ModAdd returns a+b mod m for a, b < m.
func ModAdd(a, b, m uint64) uint64 {
	s := a + b
	if s < a || s >= m {
		s -= m
	}
	return s
}

// ModSub returns a-b mod m for a, b < m.
func ModSub(a, b, m uint64) uint64 {
	d := a - b
	if a < b {
		d += m
	}
	return d
}

// String returns the decimal representation of x.
func (x Uint128) String() string {
	if x.IsZero() {
		return "0"
	}
	var buf [45]byte
	pos := len(buf)
	for !x.IsZero() {
		var r uint32
		x, r = x.DivMod32(1_000_000_000)
		for i := 0; i < 9; i++ {
			pos--
			buf[pos] = byte('0' + r%10)
			r /= 10
		}
	}
	for pos < len(buf)-1 && buf[pos] == '0' {
		pos++
	}
	return string(buf[pos:])
}
