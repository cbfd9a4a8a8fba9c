// Copyright (c) 2023 Colin McRae

// Package strategy selects the tunable parameters of a quadratic-sieve
// run from the shape of the input: factor-base size, the small
// multiplier, the relation surplus, and how to grow the base when a
// run comes up short. The constants are empirical; they trade sieve
// time against linear-algebra size and have no sharper invariant than
// "find enough candidates without too many false positives".
package strategy

import (
	"math"
	"math/big"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/modmath"
)

// baseSizeAnchors maps decimal digit counts to factor-base sizes;
// between anchors the size is interpolated linearly and rounded up.
var baseSizeAnchors = []struct {
	digits int
	size   int
}{
	{1, 2}, {6, 5}, {10, 30}, {20, 60}, {30, 500},
	{40, 1200}, {50, 5000}, {60, 12000}, {90, 60000},
}

// BaseSize returns the factor-base size for a composite with the given
// number of decimal digits. Digit counts beyond the last anchor
// extrapolate linearly.
func BaseSize(digits int) int {
	if digits <= baseSizeAnchors[0].digits {
		return baseSizeAnchors[0].size
	}
	last := len(baseSizeAnchors) - 1
	for i := 1; i <= last; i++ {
		a := baseSizeAnchors[i-1]
		b := baseSizeAnchors[i]
		if digits <= b.digits {
			span := b.digits - a.digits
			rise := b.size - a.size
			return a.size + (rise*(digits-a.digits)+span-1)/span
		}
	}
	a := baseSizeAnchors[last-1]
	b := baseSizeAnchors[last]
	slope := (b.size - a.size) / (b.digits - a.digits)
	return b.size + slope*(digits-b.digits)
}

// Grow returns the factor-base size for the next attempt after an
// unproductive run.
func Grow(size int) int {
	next := size + size/4
	if next <= size {
		next = size + 1
	}
	return next
}

// Surplus returns how many full relations beyond the base size to
// gather before solving, between 10 and 64. A higher merge limit
// collapses more rows, so a larger cushion is worth carrying.
func Surplus(mergeLimit int) int {
	s := 10 + 4*mergeLimit
	if s < 10 {
		s = 10
	}
	if s > 64 {
		s = 64
	}
	return s
}

// multiplierCandidates are the square-free odd multipliers scored by
// ChooseMultiplier.
var multiplierCandidates = []uint64{
	1, 3, 5, 7, 11, 13, 15, 17, 19, 21, 23, 29, 31, 33, 35, 37, 41, 43, 47,
	51, 53, 55, 57, 59, 61, 65, 67, 69, 71, 73,
}

// ChooseMultiplier scores small odd multipliers k by the
// Knuth-Schroeppel function -- the expected log contribution of the
// first scored primes to Q(x) over k*n, less the cost of the larger
// input -- and returns the best candidate not exceeding max. max <= 1
// disables the search.
func ChooseMultiplier(n *big.Int, max uint64) uint64 {
	if max <= 1 {
		return 1
	}
	const scoredPrimes = 300

	best := uint64(1)
	bestScore := math.Inf(-1)
	pBig := new(big.Int)
	mBig := new(big.Int)
	for _, k := range multiplierCandidates {
		if k > max {
			break
		}
		kn := new(big.Int).Mul(n, new(big.Int).SetUint64(k))
		if kn.Bit(0) == 0 {
			continue
		}

		score := -0.5*math.Log(float64(k)) + two8Score(kn)
		count := 0
		for p := uint64(3); count < scoredPrimes; p += 2 {
			if !isSmallOddPrime(p) {
				continue
			}
			count++
			m := mBig.Mod(kn, pBig.SetUint64(p)).Uint64()
			if m == 0 {
				score += math.Log(float64(p)) / float64(p)
			} else if modmath.Jacobi(m, p) == 1 {
				// Both root progressions hit the sieve.
				score += 2 * math.Log(float64(p)) / float64(p-1)
			}
		}
		if score > bestScore {
			bestScore = score
			best = k
		}
	}
	return best
}

// two8Score is the Knuth-Schroeppel contribution of the prime 2,
// keyed by kn mod 8.
func two8Score(kn *big.Int) float64 {
	ln2 := math.Log(2)
	m8 := kn.Bit(0) | kn.Bit(1)<<1 | kn.Bit(2)<<2
	switch m8 {
	case 1:
		return 2 * ln2
	case 5:
		return ln2
	case 3, 7:
		return ln2 / 2
	}
	return 0
}

func isSmallOddPrime(p uint64) bool {
	for d := uint64(3); d*d <= p; d += 2 {
		if p%d == 0 {
			return false
		}
	}
	return true
}
