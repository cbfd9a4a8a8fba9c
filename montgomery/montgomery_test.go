// Copyright (c) 2023 Colin McRae

package montgomery

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModuli = []uint64{
	3, 5, 23, 97, 65537,
	4294967291,              // largest prime below 2^32
	4294967311,              // smallest prime above 2^32
	1308520867, 7660450463,  // factors from the end-to-end suite
	9223372036854775783,     // largest prime below 2^63
	18446744073709551557,    // largest prime below 2^64
	15, 255, 4294967295, 99999999977,
	// Even moduli exercise the native fallback.
	10, 4294967296, 2,
}

func TestNewRejectsBadModulus(t *testing.T) {
	_, err := New(10)
	assert.Error(t, err)
	_, err = New(1)
	assert.Error(t, err)
	r, err := New(9)
	assert.NoError(t, err)
	assert.Equal(t, uint64(9), r.Modulus())
}

func TestResidueRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(61))
	for _, m := range testModuli {
		r := For(m)
		for i := 0; i < 500; i++ {
			a := rnd.Uint64() % m
			assert.Equal(t, a, r.FromResidue(r.ToResidue(a)), "m=%d a=%d", m, a)
		}
	}
}

func TestMulAgreesWithBig(t *testing.T) {
	rnd := rand.New(rand.NewSource(67))
	for _, m := range testModuli {
		r := For(m)
		bm := new(big.Int).SetUint64(m)
		for i := 0; i < 500; i++ {
			a := rnd.Uint64() % m
			b := rnd.Uint64() % m
			expected := new(big.Int).Mul(
				new(big.Int).SetUint64(a), new(big.Int).SetUint64(b),
			)
			expected.Mod(expected, bm)
			got := r.FromResidue(r.Mul(r.ToResidue(a), r.ToResidue(b)))
			require.Equal(t, expected.Uint64(), got, "m=%d a=%d b=%d", m, a, b)
			gotSq := r.FromResidue(r.Square(r.ToResidue(a)))
			sq := new(big.Int).Mul(
				new(big.Int).SetUint64(a), new(big.Int).SetUint64(a),
			)
			sq.Mod(sq, bm)
			require.Equal(t, sq.Uint64(), gotSq, "m=%d a=%d", m, a)
		}
	}
}

func TestPowAgreesWithBig(t *testing.T) {
	rnd := rand.New(rand.NewSource(71))
	for _, m := range testModuli {
		r := For(m)
		bm := new(big.Int).SetUint64(m)
		for i := 0; i < 100; i++ {
			a := rnd.Uint64() % m
			e := rnd.Uint64() >> uint(rnd.Intn(40))
			expected := new(big.Int).Exp(
				new(big.Int).SetUint64(a), new(big.Int).SetUint64(e), bm,
			)
			got := r.FromResidue(r.Pow(r.ToResidue(a), e))
			require.Equal(t, expected.Uint64(), got, "m=%d a=%d e=%d", m, a, e)
		}
	}
}

func TestAddSub(t *testing.T) {
	rnd := rand.New(rand.NewSource(73))
	for _, m := range testModuli {
		r := For(m)
		bm := new(big.Int).SetUint64(m)
		for i := 0; i < 200; i++ {
			a := rnd.Uint64() % m
			b := rnd.Uint64() % m
			sum := new(big.Int).Add(
				new(big.Int).SetUint64(a), new(big.Int).SetUint64(b),
			)
			sum.Mod(sum, bm)
			assert.Equal(t, sum.Uint64(), r.Add(a, b))
			diff := new(big.Int).Sub(
				new(big.Int).SetUint64(a), new(big.Int).SetUint64(b),
			)
			diff.Mod(diff, bm)
			assert.Equal(t, diff.Uint64(), r.Sub(a, b))
		}
	}
}

func TestOneIsUnitOfMultiplication(t *testing.T) {
	for _, m := range testModuli {
		r := For(m)
		for _, a := range []uint64{0, 1, 2, m - 1, m / 2} {
			res := r.ToResidue(a)
			assert.Equal(t, res, r.Mul(res, r.One()), "m=%d a=%d", m, a)
		}
	}
}

func TestCachedReturnsSameInstance(t *testing.T) {
	a := Cached(1000003)
	b := Cached(1000003)
	assert.Same(t, a, b)
	c := Cached(1000033)
	assert.NotSame(t, a, c)
}
