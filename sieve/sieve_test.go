// Copyright (c) 2023 Colin McRae

package sieve

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/primes"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/relation"
)

// 1000003 * 1000033, small enough to sieve quickly in tests.
func testComposite(t *testing.T) *big.Int {
	n, ok := new(big.Int).SetString("1000036000099", 10)
	require.True(t, ok)
	return n
}

func checkRelation(t *testing.T, n *big.Int, fb *primes.FactorBase, r *relation.Relation) {
	q := new(big.Int).Mul(r.X, r.X)
	q.Sub(q, n)
	if r.Negative {
		require.True(t, q.Sign() < 0, "x=%s", r.X)
		q.Neg(q)
	} else {
		require.True(t, q.Sign() > 0, "x=%s", r.X)
	}
	product := new(big.Int).SetUint64(r.Cofactor)
	for _, f := range r.Factors {
		p := new(big.Int).SetUint64(uint64(fb.Entries[f.Index].P))
		for e := int32(0); e < f.Power; e++ {
			product.Mul(product, p)
		}
	}
	require.Equal(t, 0, q.Cmp(product), "x=%s", r.X)
}

func TestOffsetFor(t *testing.T) {
	// x0=100, start=0, p=7, x0 mod 7 = 2; root 5 is 3 steps away.
	assert.Equal(t, 3, offsetFor(2, 0, 5, 7))
	// Negative starts wrap correctly.
	assert.Equal(t, 0, offsetFor(2, -2, 0, 7))
	assert.Equal(t, 6, offsetFor(2, -3, 5, 7))
	// Offset is always in [0, p).
	for start := int64(-50); start < 50; start++ {
		j := offsetFor(3, start, 1, 5)
		assert.True(t, j >= 0 && j < 5, "start=%d j=%d", start, j)
	}
}

func TestSmallCycleMatchesDirectSieve(t *testing.T) {
	n := testComposite(t)
	fb, err := primes.NewFactorBase(n, 30)
	require.NoError(t, err)
	store := relation.NewStore(1, false)
	s := New(n, fb, store, Options{Threads: 1})

	for t0 := int64(0); t0 < smallCycleLen; t0++ {
		var expected uint16
		for _, e := range fb.Entries {
			if e.P > smallPrimeCap {
				continue
			}
			r := uint32(t0 % int64(e.P))
			if r == e.Root || (e.P != 2 && r == e.RootNeg) {
				expected += uint16(e.Log)
			}
		}
		require.Equal(t, expected, s.smallCycle[t0], "t=%d", t0)
	}
}

func TestRunCollectsValidRelations(t *testing.T) {
	n := testComposite(t)
	fb, err := primes.NewFactorBase(n, 30)
	require.NoError(t, err)
	store := relation.NewStore(fb.Size()+10, true)
	s := New(n, fb, store, Options{
		Threads:         2,
		ProcessPartials: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	require.True(t, store.Done())

	groups := store.Groups()
	require.True(t, len(groups) >= fb.Size()+10)
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, r := range g.Members {
			checkRelation(t, n, fb, r)
		}
		if len(g.Members) == 1 {
			r := g.Members[0]
			assert.Equal(t, uint64(1), r.Cofactor)
			assert.False(t, seen[r.X.String()], "duplicate abscissa %s", r.X)
			seen[r.X.String()] = true
		} else {
			// Cycle groups pair their large primes evenly.
			parity := make(map[uint64]int)
			for _, r := range g.Members {
				parity[r.Cofactor]++
			}
			for c, count := range parity {
				assert.Equal(t, 0, count%2, "cofactor %d", c)
			}
		}
	}
}

func TestRunSerialForSmallInputs(t *testing.T) {
	n := big.NewInt(9_999_999_967) // below the parallel cutoff
	opts := Options{Threads: 8}
	resolved := opts.withDefaults(n)
	assert.Equal(t, 1, resolved.Threads)

	big20, ok := new(big.Int).SetString("10023859281455311421", 10)
	require.True(t, ok)
	resolved = opts.withDefaults(big20)
	assert.Equal(t, 8, resolved.Threads)
}

func TestOptionsClamp(t *testing.T) {
	n := testComposite(t)
	resolved := (&Options{IntervalSize: 100}).withDefaults(n)
	assert.Equal(t, minInterval, resolved.IntervalSize)
	resolved = (&Options{IntervalSize: 1 << 24}).withDefaults(n)
	assert.Equal(t, maxInterval, resolved.IntervalSize)
	resolved = (&Options{}).withDefaults(n)
	assert.Equal(t, 200_000, resolved.IntervalSize)
	assert.Equal(t, 85, resolved.LowerBoundPercent)
}

func TestRunCancelled(t *testing.T) {
	n := testComposite(t)
	fb, err := primes.NewFactorBase(n, 30)
	require.NoError(t, err)
	// An absurd target keeps the run alive until cancellation.
	store := relation.NewStore(1<<30, false)
	s := New(n, fb, store, Options{Threads: 1})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err = s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTimeLimit(t *testing.T) {
	n := testComposite(t)
	fb, err := primes.NewFactorBase(n, 30)
	require.NoError(t, err)
	store := relation.NewStore(1<<30, false)
	s := New(n, fb, store, Options{Threads: 1, TimeLimit: 50 * time.Millisecond})

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
