// Copyright (c) 2023 Colin McRae

// Package primes supplies primality testing, a segmented sieve of
// Eratosthenes, and the factor-base builder for the quadratic sieve.
package primes

import (
	"crypto/rand"
	"math/big"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/montgomery"
)

// witnesses is deterministic for every 64-bit input (Sorenson-Webster).
var witnesses = [...]uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}

// IsPrime reports whether n is prime, by Miller-Rabin over the fixed
// witness set, powered through a Montgomery reducer.
func IsPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	for _, p := range witnesses {
		if n%p == 0 {
			return n == p
		}
	}
	d := n - 1
	s := 0
	for d&1 == 0 {
		d >>= 1
		s++
	}
	red := montgomery.For(n)
	one := red.One()
	minusOne := red.Sub(0, one)
	for _, a := range witnesses {
		x := red.Pow(red.ToResidue(a), d)
		if x == one || x == minusOne {
			continue
		}
		composite := true
		for i := 1; i < s; i++ {
			x = red.Square(x)
			if x == minusOne {
				composite = false
				break
			}
		}
		if composite {
			return false
		}
	}
	return true
}

const bigRounds = 16

// IsPrimeBig reports whether n is a probable prime. Inputs that fit in
// 64 bits get the deterministic test; larger inputs run Miller-Rabin
// with the fixed witnesses plus random bases, for bigRounds in total.
// Callers treat a false positive as astronomically improbable.
func IsPrimeBig(n *big.Int) bool {
	if n.Sign() <= 0 {
		return false
	}
	if n.IsUint64() {
		return IsPrime(n.Uint64())
	}
	if n.Bit(0) == 0 {
		return false
	}

	nMinusOne := new(big.Int).Sub(n, big.NewInt(1))
	d := new(big.Int).Set(nMinusOne)
	s := 0
	for d.Bit(0) == 0 {
		d.Rsh(d, 1)
		s++
	}

	tryBase := func(a *big.Int) bool {
		x := new(big.Int).Exp(a, d, n)
		if x.Cmp(big.NewInt(1)) == 0 || x.Cmp(nMinusOne) == 0 {
			return true
		}
		for i := 1; i < s; i++ {
			x.Mul(x, x).Mod(x, n)
			if x.Cmp(nMinusOne) == 0 {
				return true
			}
		}
		return false
	}

	rounds := 0
	for _, w := range witnesses {
		if !tryBase(new(big.Int).SetUint64(w)) {
			return false
		}
		rounds++
	}
	span := new(big.Int).Sub(n, big.NewInt(4))
	for ; rounds < bigRounds; rounds++ {
		a, err := rand.Int(rand.Reader, span)
		if err != nil {
			// The crypto source failing leaves the fixed witnesses,
			// which already ran.
			break
		}
		a.Add(a, big.NewInt(2))
		if !tryBase(a) {
			return false
		}
	}
	return true
}

const segmentSize = 1 << 16

// Visit streams the primes <= bound in increasing order, stopping early
// when visit returns false. The sieve is segmented so memory stays
// proportional to sqrt(bound).
func Visit(bound uint64, visit func(p uint64) bool) {
	if bound < 2 {
		return
	}
	if !visit(2) {
		return
	}

	// Odd base primes up to sqrt(bound), by a plain sieve.
	root := uint64(1)
	for (root+1)*(root+1) <= bound {
		root++
	}
	composite := make([]bool, root+1)
	var base []uint64
	for p := uint64(3); p <= root; p += 2 {
		if composite[p] {
			continue
		}
		base = append(base, p)
		for q := p * p; q <= root; q += 2 * p {
			composite[q] = true
		}
	}
	for _, p := range base {
		if !visit(p) {
			return
		}
	}

	// Sieve odd numbers in segments above the base primes.
	mark := make([]bool, segmentSize)
	for low := root + 1; low <= bound; low += segmentSize {
		high := low + segmentSize - 1
		if high > bound || high < low {
			high = bound
		}
		width := int(high - low + 1)
		for i := 0; i < width; i++ {
			mark[i] = false
		}
		for _, p := range base {
			start := p * p
			if start < low {
				start = (low + p - 1) / p * p
			}
			for q := start; q <= high; q += p {
				mark[q-low] = true
			}
		}
		start := low
		if start&1 == 0 {
			start++
		}
		for q := start; q <= high; q += 2 {
			if !mark[q-low] && !visit(q) {
				return
			}
		}
	}
}
