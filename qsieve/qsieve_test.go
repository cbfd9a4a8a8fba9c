// Copyright (c) 2023 Colin McRae

package qsieve

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/primes"
)

func mustBig(t *testing.T, s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad literal %q", s)
	return n
}

// checkFactorization verifies every returned value is prime and the
// product reassembles n.
func checkFactorization(t *testing.T, n *big.Int, factors []*big.Int) {
	product := big.NewInt(1)
	for i, f := range factors {
		require.True(t, primes.IsPrimeBig(f), "factor %s is not prime", f)
		if i > 0 {
			require.True(t, factors[i-1].Cmp(f) <= 0, "factors must be sorted")
		}
		product.Mul(product, f)
	}
	require.Equal(t, 0, product.Cmp(n), "product of factors must be n")
}

func TestFactorBoundaries(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()

	factors, err := Factor(ctx, big.NewInt(1), opts)
	require.NoError(t, err)
	assert.Empty(t, factors)

	factors, err = Factor(ctx, big.NewInt(17), opts)
	require.NoError(t, err)
	require.Len(t, factors, 1)
	assert.Equal(t, int64(17), factors[0].Int64())

	// 2^k short-circuits before any sieving.
	factors, err = Factor(ctx, new(big.Int).Lsh(big.NewInt(1), 20), opts)
	require.NoError(t, err)
	require.Len(t, factors, 20)
	for _, f := range factors {
		assert.Equal(t, int64(2), f.Int64())
	}

	_, err = Factor(ctx, big.NewInt(0), opts)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = Factor(ctx, big.NewInt(-12), opts)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFactorSmallComposites(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()
	for _, n := range []int64{4, 6, 36, 97 * 89, 1024 * 3, 999983 * 2, 1000003} {
		nBig := big.NewInt(n)
		factors, err := Factor(ctx, nBig, opts)
		require.NoError(t, err, "n=%d", n)
		checkFactorization(t, nBig, factors)
	}
}

func TestFactorPerfectPowers(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()

	// 1000003^3 exceeds the trial-division bound, so the perfect-power
	// detector must carry it.
	p := big.NewInt(1000003)
	n := new(big.Int).Exp(p, big.NewInt(3), nil)
	factors, err := Factor(ctx, n, opts)
	require.NoError(t, err)
	require.Len(t, factors, 3)
	checkFactorization(t, n, factors)
}

func TestFindDivisorRejects(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()

	_, err := FindDivisor(ctx, big.NewInt(1), opts)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = FindDivisor(ctx, big.NewInt(0), opts)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = FindDivisor(ctx, big.NewInt(101), opts)
	assert.ErrorIs(t, err, ErrInvalidInput)
	p := mustBig(t, "287288745765902964785862069919080712937")
	_, err = FindDivisor(ctx, p, opts)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFindDivisorEven(t *testing.T) {
	d, err := FindDivisor(context.Background(), big.NewInt(1000), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Int64())
}

func TestFindDivisorRho64(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()
	// Products of two primes below 2^31, well inside the rho range.
	cases := [][2]int64{
		{1073741789, 1073741827},
		{999999937, 999999893},
		{15485863, 32452843},
	}
	for _, c := range cases {
		n := new(big.Int).Mul(big.NewInt(c[0]), big.NewInt(c[1]))
		d, err := FindDivisor(ctx, n, opts)
		require.NoError(t, err)
		rem := new(big.Int).Mod(n, d)
		assert.Equal(t, 0, rem.Sign(), "divisor must divide n")
		assert.True(t, d.Cmp(bigOne) > 0 && d.Cmp(n) < 0)
	}
}

func TestRho64SquareOfPrime(t *testing.T) {
	p := uint64(1073741789)
	d := rho64(p * p)
	require.NotZero(t, d)
	assert.Equal(t, uint64(0), (p*p)%d)
}

// quadraticSieve called directly, bypassing the rho fast paths, so the
// sieve-matrix-reconstruct pipeline is exercised even where rho would
// win the race.
func TestQuadraticSieveDirect(t *testing.T) {
	ctx := context.Background()
	for _, s := range []string{
		"1000036000099",        // 1000003 * 1000033
		"10023859281455311421", // scenario 1, 20 digits
	} {
		n := mustBig(t, s)
		d, err := quadraticSieve(ctx, n, DefaultOptions())
		require.NoError(t, err, "n=%s", s)
		rem := new(big.Int).Mod(n, d)
		require.Equal(t, 0, rem.Sign(), "n=%s d=%s", s, d)
		require.True(t, d.Cmp(bigOne) > 0 && d.Cmp(n) < 0, "n=%s d=%s", s, d)
	}
}

// Scenario 1 of the end-to-end suite: a 20-digit semiprime. It exceeds
// the 64-bit rho range, so Factor splits it in the bounded big-integer
// rho pass; TestQuadraticSieveDirect sends the same input through the
// sieve.
func TestFactorScenario20Digits(t *testing.T) {
	n := mustBig(t, "10023859281455311421")
	factors, err := Factor(context.Background(), n, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, factors, 2)
	assert.Equal(t, "1308520867", factors[0].String())
	assert.Equal(t, "7660450463", factors[1].String())
	checkFactorization(t, n, factors)
}

// Scenario 2: a 10-digit prime times a 39-digit prime; the bounded
// big-integer rho pass pulls the small factor before any sieving.
func TestFactorScenarioSmallTimesLarge(t *testing.T) {
	p := mustBig(t, "287288745765902964785862069919080712937")
	n := new(big.Int).Mul(p, big.NewInt(7660450463))
	factors, err := Factor(context.Background(), n, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, factors, 2)
	assert.Equal(t, "7660450463", factors[0].String())
	assert.Equal(t, 0, factors[1].Cmp(p))
	checkFactorization(t, n, factors)
}

// Scenario 3: a 64-digit semiprime. Hours of sieving on one machine;
// kept out of the short suite.
func TestFactorScenario64Digits(t *testing.T) {
	if testing.Short() {
		t.Skip("64-digit quadratic sieve run is too slow for -short")
	}
	n := mustBig(t, "5382000000735683358022919837657883000000078236999000000000000063")
	factors, err := Factor(context.Background(), n, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, factors, 2)
	checkFactorization(t, n, factors)
}

// Scenario 4: 2^214 + 1 splits into several primes of mixed sizes.
func TestFactorScenarioFermatLike(t *testing.T) {
	if testing.Short() {
		t.Skip("2^214+1 factorization is too slow for -short")
	}
	n := new(big.Int).Lsh(big.NewInt(1), 214)
	n.Add(n, bigOne)
	factors, err := Factor(context.Background(), n, DefaultOptions())
	require.NoError(t, err)
	checkFactorization(t, n, factors)
}

func TestFactorRoundTrip(t *testing.T) {
	// factor(p*q) = sorted [p, q], and refactoring the product of the
	// result is idempotent.
	p := big.NewInt(1073741789)
	q := big.NewInt(2147483647)
	n := new(big.Int).Mul(p, q)
	factors, err := Factor(context.Background(), n, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, factors, 2)
	assert.Equal(t, 0, factors[0].Cmp(p))
	assert.Equal(t, 0, factors[1].Cmp(q))

	product := new(big.Int).Mul(factors[0], factors[1])
	again, err := Factor(context.Background(), product, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, 0, again[0].Cmp(factors[0]))
	assert.Equal(t, 0, again[1].Cmp(factors[1]))
}

func TestFactorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Large enough to dispatch to the sieve, where cancellation is
	// observed.
	n := mustBig(t, "5382000000735683358022919837657883000000078236999000000000000063")
	factors, err := Factor(ctx, n, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	// The partial factorization still multiplies back to n.
	product := big.NewInt(1)
	for _, f := range factors {
		product.Mul(product, f)
	}
	assert.Equal(t, 0, product.Cmp(n))
}

func TestFindDivisorSieveTimeLimitRetries(t *testing.T) {
	// A hopeless time limit must not wedge the driver: the outer
	// context stops the growth loop.
	opts := DefaultOptions()
	opts.SieveTimeLimit = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n := mustBig(t, "5382000000735683358022919837657883000000078236999000000000000063")
	_, err := FindDivisor(ctx, n, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
}
