// Copyright (c) 2023 Colin McRae

package primes

import (
	"fmt"
	"math"
	"math/big"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/modmath"
)

// Entry is one factor-base prime with its two square roots of n and an
// integer log approximation. Root and RootNeg satisfy
// Root^2 = RootNeg^2 = n (mod P) with RootNeg = P - Root, so the sieve
// can walk both progressions without recomputing.
type Entry struct {
	P       uint32
	Root    uint32
	RootNeg uint32
	Log     uint8 // ceil(10 * ln P); base 10 lets 16-bit counters accumulate
}

// FactorBase is the ordered set of primes against which smoothness of
// Q(x) = x^2 - n is tested. It is immutable after construction and may
// be shared read-only between sieve workers.
type FactorBase struct {
	N       *big.Int // the (possibly multiplier-adjusted) composite
	Entries []Entry
	// MaxPrime is the largest prime in the base, cached for the
	// large-prime bound.
	MaxPrime uint32
}

// LogApprox returns ceil(10 * ln p), the per-prime contribution added
// to the sieve counters.
func LogApprox(p uint64) uint8 {
	return uint8(math.Ceil(10 * math.Log(float64(p))))
}

// NewFactorBase selects size primes p with Jacobi(n, p) = 1 (always
// including 2 when n is odd) and computes for each the square roots of
// n mod p. n must be odd and greater than 1.
func NewFactorBase(n *big.Int, size int) (*FactorBase, error) {
	if size < 1 {
		return nil, fmt.Errorf("NewFactorBase: size %d must be positive", size)
	}
	if n.Sign() <= 0 || n.Cmp(big.NewInt(1)) == 0 {
		return nil, fmt.Errorf("NewFactorBase: n must exceed 1")
	}
	if n.Bit(0) == 0 {
		return nil, fmt.Errorf("NewFactorBase: n must be odd")
	}

	fb := &FactorBase{
		N:       new(big.Int).Set(n),
		Entries: make([]Entry, 0, size),
	}

	// Keep roughly one prime in two; double the sieve bound until the
	// base fills up.
	bound := uint64(size) * 32
	if bound < 1024 {
		bound = 1024
	}
	pBig := new(big.Int)
	mBig := new(big.Int)
	for {
		fb.Entries = fb.Entries[:0]
		Visit(bound, func(p uint64) bool {
			if p == 2 {
				fb.Entries = append(fb.Entries, Entry{
					P: 2, Root: 1, RootNeg: 1, Log: LogApprox(2),
				})
				return len(fb.Entries) < size
			}
			pBig.SetUint64(p)
			m := mBig.Mod(n, pBig).Uint64()
			if m == 0 || modmath.Jacobi(m, p) != 1 {
				return true
			}
			root := modmath.SqrtMod(m, p)
			fb.Entries = append(fb.Entries, Entry{
				P:       uint32(p),
				Root:    uint32(root),
				RootNeg: uint32(p - root),
				Log:     LogApprox(p),
			})
			return len(fb.Entries) < size
		})
		if len(fb.Entries) >= size {
			break
		}
		bound *= 2
	}

	fb.MaxPrime = fb.Entries[len(fb.Entries)-1].P
	return fb, nil
}

// Size returns the number of primes in the base.
func (fb *FactorBase) Size() int {
	return len(fb.Entries)
}
