// Copyright (c) 2023 Colin McRae

package qsieve

import (
	"math/big"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/montgomery"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/util"
)

// rho64 finds a nontrivial divisor of an odd composite n < 2^62 by
// Brent's variant of Pollard rho, iterating x <- x^2 + c in the
// Montgomery domain and batching differences between GCD checks.
// Returns 0 only if every polynomial fails, which does not happen for
// composite n in this range in practice.
func rho64(n uint64) uint64 {
	red := montgomery.Cached(n)
	for c := uint64(1); c < 64; c++ {
		if d := rhoBrent64(n, red, c); d != 0 {
			return d
		}
	}
	return 0
}

const rhoBatch = 128

func rhoBrent64(n uint64, red montgomery.Reducer, c uint64) uint64 {
	cR := red.ToResidue(c)
	step := func(x uint64) uint64 {
		return red.Add(red.Square(x), cR)
	}

	y := red.ToResidue(2)
	q := red.One()
	var x, ys uint64
	for r := 1; r <= 1<<21; r <<= 1 {
		x = y
		for i := 0; i < r; i++ {
			y = step(y)
		}
		for k := 0; k < r; k += rhoBatch {
			ys = y
			count := rhoBatch
			if r-k < count {
				count = r - k
			}
			for i := 0; i < count; i++ {
				y = step(y)
				// gcd is unchanged by the Montgomery factor R, so
				// residues feed it directly.
				q = red.Mul(q, red.Sub(x, y))
			}
			g := util.GCD64(q, n)
			if g == 1 {
				continue
			}
			if g == n {
				// The batch overshot; replay one step at a time.
				for {
					ys = step(ys)
					g = util.GCD64(red.Sub(x, ys), n)
					if g > 1 {
						break
					}
				}
			}
			if g == n {
				return 0 // cycle degenerate for this c
			}
			return g
		}
	}
	return 0
}

// rhoBigBudget bounds the cheap big-integer rho pass that runs before
// the quadratic sieve; it reliably pulls out factors up to ~10 digits.
const rhoBigBudget = 1 << 19

// rhoBig is Brent's rho over big integers, used to strip small-ish
// prime factors from inputs too large for the 64-bit path before the
// sieve machinery spins up. Returns nil when the budget expires.
func rhoBig(n *big.Int) *big.Int {
	for c := int64(1); c <= 3; c++ {
		if d := rhoBrentBig(n, c); d != nil {
			return d
		}
	}
	return nil
}

func rhoBrentBig(n *big.Int, c int64) *big.Int {
	bigC := big.NewInt(c)
	y := big.NewInt(2)
	step := func(x *big.Int) {
		x.Mul(x, x)
		x.Add(x, bigC)
		x.Mod(x, n)
	}

	x := new(big.Int)
	ys := new(big.Int)
	diff := new(big.Int)
	q := big.NewInt(1)
	g := new(big.Int)
	steps := 0
	for r := 1; steps < rhoBigBudget; r <<= 1 {
		x.Set(y)
		for i := 0; i < r; i++ {
			step(y)
		}
		for k := 0; k < r; k += rhoBatch {
			ys.Set(y)
			count := rhoBatch
			if r-k < count {
				count = r - k
			}
			for i := 0; i < count; i++ {
				step(y)
				diff.Sub(x, y)
				q.Mul(q, diff)
				q.Mod(q, n)
			}
			steps += count
			g.GCD(nil, nil, n, new(big.Int).Abs(q))
			if g.Cmp(bigOne) == 0 {
				if steps >= rhoBigBudget {
					return nil
				}
				continue
			}
			if g.Cmp(n) == 0 {
				for {
					step(ys)
					diff.Sub(x, ys)
					g.GCD(nil, nil, n, diff.Abs(diff))
					if g.Cmp(bigOne) > 0 {
						break
					}
				}
			}
			if g.Cmp(n) == 0 {
				return nil
			}
			return new(big.Int).Set(g)
		}
	}
	return nil
}
