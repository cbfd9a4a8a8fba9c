// Copyright (c) 2023 Colin McRae

// Package modmath provides the modular-arithmetic primitives under the
// sieve: modular exponentiation, the Jacobi symbol, modular square
// roots, modular inverses, and integer roots of big integers.
package modmath

import (
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/montgomery"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/uint128"
)

// MulMod returns a*b mod m.
func MulMod(a, b, m uint64) uint64 {
	return uint128.MulMod(a, b, m)
}

// PowMod returns a^e mod m by square-and-multiply. Odd moduli dispatch
// through a Montgomery reducer; even moduli use the division-based
// fallback. m must be nonzero.
func PowMod(a, e, m uint64) uint64 {
	if m == 0 {
		panic("modmath: modulus is zero")
	}
	if m == 1 {
		return 0
	}
	r := montgomery.For(m)
	return r.FromResidue(r.Pow(r.ToResidue(a), e))
}

// Jacobi returns the Jacobi symbol (a/n) in {-1, 0, +1} for odd n > 0,
// by the iterative quadratic-reciprocity rules.
func Jacobi(a, n uint64) int {
	if n == 0 || n&1 == 0 {
		panic("modmath: Jacobi requires odd n > 0")
	}
	a %= n
	result := 1
	for a != 0 {
		for a&1 == 0 {
			a >>= 1
			if r := n % 8; r == 3 || r == 5 {
				result = -result
			}
		}
		a, n = n, a
		if a%4 == 3 && n%4 == 3 {
			result = -result
		}
		a %= n
	}
	if n == 1 {
		return result
	}
	return 0
}

// SqrtMod returns r with r*r = a mod p for an odd prime p, using
// Tonelli-Shanks. The precondition is Jacobi(a, p) != -1; results are
// unspecified when p is composite or a is a non-residue. Of the two
// roots r and p-r, the smaller is returned.
func SqrtMod(a, p uint64) uint64 {
	if p == 2 {
		return a & 1
	}
	a %= p
	if a == 0 {
		return 0
	}

	// Write p-1 = s * 2^e with s odd.
	s := p - 1
	e := 0
	for s&1 == 0 {
		s >>= 1
		e++
	}

	red := montgomery.For(p)
	if e == 1 {
		// p = 3 mod 4: the root is a^((p+1)/4).
		r := red.FromResidue(red.Pow(red.ToResidue(a), (p+1)/4))
		if r > p-r {
			r = p - r
		}
		return r
	}

	// Find a quadratic non-residue to seed the descent.
	n := uint64(2)
	for Jacobi(n, p) != -1 {
		n++
	}

	one := red.One()
	x := red.Pow(red.ToResidue(a), (s+1)/2)
	b := red.Pow(red.ToResidue(a), s)
	g := red.Pow(red.ToResidue(n), s)
	height := e
	for {
		// Least m with b^(2^m) = 1; capped by the descent height, which
		// a violated precondition would otherwise run past.
		m := 0
		for t := b; t != one; m++ {
			if m >= height {
				return 0
			}
			t = red.Square(t)
		}
		if m == 0 {
			r := red.FromResidue(x)
			if r > p-r {
				r = p - r
			}
			return r
		}
		gs := g
		for i := 0; i < height-m-1; i++ {
			gs = red.Square(gs)
		}
		g = red.Square(gs)
		x = red.Mul(x, gs)
		b = red.Mul(b, g)
		height = m
	}
}

// InvMod returns a^-1 mod m, or 0 when a and m are not coprime. Odd
// moduli use the extended binary GCD; even moduli fall back to the
// classical extended Euclid with coefficients kept mod m.
func InvMod(a, m uint64) uint64 {
	if m == 0 {
		panic("modmath: modulus is zero")
	}
	if m == 1 {
		return 0
	}
	a %= m
	if a == 0 {
		return 0
	}
	if m&1 == 1 {
		return invModOdd(a, m)
	}
	return invModEuclid(a, m)
}

// invModOdd is the extended binary GCD for odd m. Halving an odd
// coefficient adds m first; (x+m)/2 is computed without overflow as
// x/2 + m/2 + 1 since both x and m are odd at that point.
func invModOdd(a, m uint64) uint64 {
	u, v := a, m
	x1, x2 := uint64(1), uint64(0)
	for u != 1 && v != 1 {
		for u&1 == 0 {
			u >>= 1
			if x1&1 == 0 {
				x1 >>= 1
			} else {
				x1 = x1>>1 + m>>1 + 1
			}
		}
		for v&1 == 0 {
			v >>= 1
			if x2&1 == 0 {
				x2 >>= 1
			} else {
				x2 = x2>>1 + m>>1 + 1
			}
		}
		if u >= v {
			u -= v
			x1 = uint128.ModSub(x1, x2, m)
			if u == 0 {
				return 0 // gcd(a, m) = v > 1
			}
		} else {
			v -= u
			x2 = uint128.ModSub(x2, x1, m)
		}
	}
	if u == 1 {
		return x1
	}
	return x2
}

func invModEuclid(a, m uint64) uint64 {
	r0, r1 := m, a
	t0, t1 := uint64(0), uint64(1)
	for r1 != 0 {
		q := r0 / r1
		r0, r1 = r1, r0-q*r1
		t0, t1 = t1, uint128.ModSub(t0, uint128.MulMod(q%m, t1, m), m)
	}
	if r0 != 1 {
		return 0
	}
	return t0
}
