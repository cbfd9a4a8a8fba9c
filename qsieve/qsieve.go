// Copyright (c) 2023 Colin McRae

// Package qsieve is the driver of the factorization engine. Factor
// splits a composite into primes, running trial division by small
// primes first; FindDivisor produces one nontrivial divisor,
// dispatching between Pollard rho and the quadratic sieve by the size
// of the input. The sieve uses the single polynomial Q(x) = x^2 - kn.
package qsieve

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/bitmatrix"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/modmath"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/primes"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/relation"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/sieve"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/strategy"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/util"
)

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// trialDivisionBound caps the small-prime pass that runs before any
// heavier machinery.
const trialDivisionBound = 10000

// rho64Bound is the largest input handled by the 64-bit Pollard rho
// path; beyond it FindDivisor dispatches to the quadratic sieve.
var rho64Bound = new(big.Int).Lsh(bigOne, 62)

// Options carries every recognized tuning knob. For most fields the
// zero value selects the default; the exceptions are Multiplier, where
// 0 asks for the Knuth-Schroeppel choice, and ProcessPartialRelations,
// where false turns partials off. DefaultOptions spells the defaults out.
type Options struct {
	// Threads is the sieve worker count; 0 selects the hardware
	// default.
	Threads int
	// FactorBaseSize overrides the digit-count table when positive.
	FactorBaseSize int
	// LowerBoundPercent is the sieve threshold percent; default 85.
	LowerBoundPercent int
	// IntervalSize is the sieve window width; default 200000.
	IntervalSize int
	// Multiplier is the small odd k prepended to n to improve
	// factor-base quality: 1 leaves n alone, 0 lets the
	// Knuth-Schroeppel score choose.
	Multiplier uint64
	// ThresholdExponent tunes the candidate threshold calibration.
	ThresholdExponent float64
	// ProcessPartialRelations enables one-large-prime cycles.
	ProcessPartialRelations bool
	// MergeLimit caps row weight in structured elimination.
	MergeLimit int
	// SieveTimeLimit bounds one sieve phase; expiry triggers a retry
	// with a larger factor base. Zero means unlimited.
	SieveTimeLimit time.Duration
	// ReportingInterval spaces sieve progress log lines.
	ReportingInterval time.Duration
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Multiplier:              1,
		LowerBoundPercent:       85,
		IntervalSize:            200_000,
		ThresholdExponent:       2,
		ProcessPartialRelations: true,
		MergeLimit:              8,
	}
}

func (o Options) mergeLimit() int {
	if o.MergeLimit <= 0 {
		return 8
	}
	return o.MergeLimit
}

func (o Options) sieveOptions() sieve.Options {
	return sieve.Options{
		Threads:           o.Threads,
		IntervalSize:      o.IntervalSize,
		LowerBoundPercent: o.LowerBoundPercent,
		ThresholdExponent: o.ThresholdExponent,
		ProcessPartials:   o.ProcessPartialRelations,
		TimeLimit:         o.SieveTimeLimit,
		ReportingInterval: o.ReportingInterval,
	}
}

// Factor returns the prime factors of n in ascending order, with
// multiplicity; their product is n. Factor(1) returns no factors.
// On cancellation the primes found so far are returned together with
// the unfactored remainder and ErrCancelled.
func Factor(ctx context.Context, n *big.Int, opts Options) ([]*big.Int, error) {
	if n == nil || n.Sign() <= 0 {
		return nil, errors.Wrap(ErrInvalidInput, "Factor")
	}

	var factors []*big.Int
	m := new(big.Int).Set(n)

	// Even short-circuit: strip every factor of 2 before anything
	// else, so powers of two never reach the odd-only machinery.
	for util.IsEven(m) {
		factors = append(factors, big.NewInt(2))
		m.Rsh(m, 1)
	}

	// Small-prime pass.
	rem := new(big.Int)
	quo := new(big.Int)
	pBig := new(big.Int)
	primes.Visit(trialDivisionBound, func(p uint64) bool {
		pBig.SetUint64(p)
		for {
			quo.QuoRem(m, pBig, rem)
			if rem.Sign() != 0 {
				return true
			}
			factors = append(factors, new(big.Int).SetUint64(p))
			m.Set(quo)
		}
	})

	pending := []*big.Int{m}
	for len(pending) > 0 {
		m := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if m.Cmp(bigOne) == 0 {
			continue
		}
		if primes.IsPrimeBig(m) {
			factors = append(factors, m)
			continue
		}
		if base, k := perfectPower(m); k > 1 {
			for i := 0; i < k; i++ {
				pending = append(pending, new(big.Int).Set(base))
			}
			continue
		}
		d, err := FindDivisor(ctx, m, opts)
		if err != nil {
			// Carry the partial factorization out with the error.
			factors = append(factors, m)
			factors = append(factors, pending...)
			sortFactors(factors)
			return factors, err
		}
		pending = append(pending, d, new(big.Int).Quo(m, d))
	}

	sortFactors(factors)
	return factors, nil
}

func sortFactors(factors []*big.Int) {
	sort.Slice(factors, func(i, j int) bool {
		return factors[i].Cmp(factors[j]) < 0
	})
}

// perfectPower returns (b, k) with b^k = m for the largest k > 1, or
// (nil, 1) when m is no perfect power.
func perfectPower(m *big.Int) (*big.Int, int) {
	for k := m.BitLen(); k >= 2; k-- {
		b := modmath.Root(m, k)
		if b.Cmp(bigOne) <= 0 {
			continue
		}
		if new(big.Int).Exp(b, big.NewInt(int64(k)), nil).Cmp(m) == 0 {
			return b, k
		}
	}
	return nil, 1
}

// FindDivisor returns a nontrivial divisor of the composite n.
// Preconditions: n > 1 and n composite; violations return
// ErrInvalidInput. Cancellation returns ErrCancelled.
func FindDivisor(ctx context.Context, n *big.Int, opts Options) (*big.Int, error) {
	if n == nil || n.Cmp(bigOne) <= 0 {
		return nil, errors.Wrap(ErrInvalidInput, "FindDivisor")
	}
	if util.IsEven(n) && n.Cmp(bigTwo) != 0 {
		return big.NewInt(2), nil
	}
	if primes.IsPrimeBig(n) {
		return nil, errors.Wrap(ErrInvalidInput, "FindDivisor: input is prime")
	}

	if n.Cmp(rho64Bound) < 0 {
		d := rho64(n.Uint64())
		if d == 0 {
			return nil, errors.Wrap(ErrInsufficientRelations, "FindDivisor: rho failed")
		}
		return new(big.Int).SetUint64(d), nil
	}

	// A bounded rho pass strips factors small enough that spinning up
	// the sieve would be a waste.
	if d := rhoBig(n); d != nil {
		return d, nil
	}

	return quadraticSieve(ctx, n, opts)
}

// quadraticSieve runs the E -> F -> G -> H -> I loop: build the factor
// base, sieve until enough relations accumulate, solve the parity
// matrix, and reconstruct a divisor from null-space vectors. An
// unproductive solve re-enters the sieve with a higher target; a
// stubborn base is regrown from scratch.
func quadraticSieve(ctx context.Context, n *big.Int, opts Options) (*big.Int, error) {
	k := opts.Multiplier
	if k == 0 {
		k = strategy.ChooseMultiplier(n, 73)
	}
	kn := new(big.Int).Mul(n, new(big.Int).SetUint64(k))

	size := opts.FactorBaseSize
	if size <= 0 {
		size = strategy.BaseSize(util.Digits(kn))
	}
	surplus := strategy.Surplus(opts.mergeLimit())

	for {
		fb, err := primes.NewFactorBase(kn, size)
		if err != nil {
			return nil, errors.Wrap(err, "quadraticSieve")
		}
		store := relation.NewStore(fb.Size()+surplus, opts.ProcessPartialRelations)
		sv := sieve.New(kn, fb, store, opts.sieveOptions())
		klog.Infof("qsieve: n has %d digits, multiplier %d, factor base %d, target %d",
			util.Digits(n), k, fb.Size(), store.Target())

		// A few unproductive solves sieve further against the same
		// base before the base itself is regrown.
		for retry := 0; retry < 3; retry++ {
			if err := sv.Run(ctx); err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					// Sieve budget expired: treat as cancellation
					// followed by a retry with a larger base.
					break
				}
				return nil, errors.Wrap(ErrCancelled, err.Error())
			}
			d := reconstruct(n, kn, fb, store, opts.mergeLimit())
			if d != nil {
				return d, nil
			}
			klog.Infof("qsieve: null space exhausted, raising relation target")
			store.Raise(store.Target() + surplus)
		}
		size = strategy.Grow(size)
	}
}

// reconstruct builds the exponent-parity matrix from the stored
// groups and walks its null space. For each vector it forms
// x = prod x_j mod kn and y = sqrt(prod Q(x_j)) mod kn and tests
// gcd(x-y, n) and gcd(x+y, n). Nil means the vectors ran dry.
func reconstruct(n, kn *big.Int, fb *primes.FactorBase, store *relation.Store, mergeLimit int) *big.Int {
	groups := store.Groups()
	m, err := bitmatrix.New(fb.Size() + 1)
	if err != nil {
		return nil
	}
	for _, g := range groups {
		if err := m.AddColumn(g.OddRows()); err != nil {
			return nil
		}
	}

	ns := m.Solve(mergeLimit)
	for v := ns.Next(); v != nil; v = ns.Next() {
		if d := tryVector(n, kn, groups, v); d != nil {
			return d
		}
	}
	return nil
}

func tryVector(n, kn *big.Int, groups []*relation.Group, v []int32) *big.Int {
	x := big.NewInt(1)
	ySquared := big.NewInt(1)
	q := new(big.Int)
	for _, j := range v {
		for _, r := range groups[j].Members {
			x.Mul(x, r.X)
			x.Mod(x, kn)
			q.Mul(r.X, r.X)
			q.Sub(q, kn)
			ySquared.Mul(ySquared, q)
		}
	}
	// The sign and prime parities all cancel, so the product is a
	// perfect square over the integers.
	y := modmath.Sqrt(ySquared)
	y.Mod(y, kn)

	d := new(big.Int)
	d.GCD(nil, nil, n, new(big.Int).Abs(new(big.Int).Sub(x, y)))
	if d.Cmp(bigOne) > 0 && d.Cmp(n) < 0 {
		return d
	}
	d.GCD(nil, nil, n, new(big.Int).Add(x, y))
	if d.Cmp(bigOne) > 0 && d.Cmp(n) < 0 {
		return d
	}
	return nil
}
