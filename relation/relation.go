// Copyright (c) 2023 Colin McRae

// Package relation holds the smooth relations discovered by the sieve:
// full relations ready for the linear-algebra stage, and partial
// (one-large-prime) relations combined into full ones through cycles
// in an undirected cofactor graph.
package relation

import (
	"math/big"
	"sort"
)

// PrimePower records one factor-base prime dividing |Q(x)|, by its
// index in the base.
type PrimePower struct {
	Index int32
	Power int32
}

// Relation is one smooth value discovered by the sieve, satisfying
// |Q(X)| = Cofactor * prod P[Factors[i].Index]^Factors[i].Power, with
// Negative recording the sign of Q(X).
type Relation struct {
	X        *big.Int
	Negative bool
	Factors  []PrimePower
	Cofactor uint64
}

// IsFull reports whether the relation factored completely over the
// base.
func (r *Relation) IsFull() bool {
	return r.Cofactor == 1
}

// Group is one column of the exponent-parity matrix: a set of
// relations whose product is used as a unit. Sieved full relations
// have one member; groups built from a partial-relation cycle carry
// every edge of the cycle, so their large primes pair off evenly.
type Group struct {
	Members []*Relation
}

// OddRows returns the sorted matrix row indexes with odd exponent over
// the whole group. Row 0 is the sign row; prime index i maps to row
// i+1.
func (g *Group) OddRows() []int32 {
	parity := make(map[int32]struct{})
	toggle := func(row int32) {
		if _, ok := parity[row]; ok {
			delete(parity, row)
		} else {
			parity[row] = struct{}{}
		}
	}
	for _, r := range g.Members {
		if r.Negative {
			toggle(0)
		}
		for _, f := range r.Factors {
			if f.Power&1 == 1 {
				toggle(f.Index + 1)
			}
		}
	}
	rows := make([]int32, 0, len(parity))
	for row := range parity {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
	return rows
}
