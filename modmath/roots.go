// Copyright (c) 2023 Colin McRae

package modmath

import (
	"math/big"
)

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// Sqrt returns the integer square root of n by Newton iteration, so
// that r*r <= n < (r+1)*(r+1). n must be non-negative.
func Sqrt(n *big.Int) *big.Int {
	if n.Sign() < 0 {
		panic("modmath: Sqrt of negative number")
	}
	if n.BitLen() <= 1 {
		return new(big.Int).Set(n)
	}
	// Initial guess: 2^ceil(bits/2) >= sqrt(n), so the iteration
	// descends monotonically to the floor.
	x := new(big.Int).Lsh(bigOne, uint(n.BitLen()+1)/2)
	y := new(big.Int)
	tmp := new(big.Int)
	for {
		y.Quo(n, x)
		y.Add(y, x)
		y.Rsh(y, 1)
		if y.Cmp(x) >= 0 {
			if tmp.Mul(x, x).Cmp(n) > 0 {
				x.Sub(x, bigOne)
				continue
			}
			return x
		}
		x.Set(y)
	}
}

// Root returns the integer k-th root of n by Newton iteration, so that
// r^k <= n < (r+1)^k. n must be non-negative and k positive.
func Root(n *big.Int, k int) *big.Int {
	if k <= 0 {
		panic("modmath: Root with non-positive k")
	}
	if n.Sign() < 0 {
		panic("modmath: Root of negative number")
	}
	if k == 1 || n.BitLen() <= 1 {
		return new(big.Int).Set(n)
	}
	if n.BitLen() <= k {
		// 2^k > n means the root is 1.
		return big.NewInt(1)
	}

	bigK := big.NewInt(int64(k))
	bigKm1 := big.NewInt(int64(k - 1))
	x := new(big.Int).Lsh(bigOne, uint(n.BitLen()+k-1)/uint(k)+1)
	y := new(big.Int)
	pow := new(big.Int)
	for {
		// y = ((k-1)*x + n / x^(k-1)) / k
		pow.Exp(x, bigKm1, nil)
		y.Quo(n, pow)
		y.Add(y, pow.Mul(x, bigKm1))
		y.Quo(y, bigK)
		if y.Cmp(x) >= 0 {
			break
		}
		x.Set(y)
	}
	// Newton can land one off near perfect powers.
	for pow.Exp(x, bigK, nil).Cmp(n) > 0 {
		x.Sub(x, bigOne)
	}
	for {
		y.Add(x, bigOne)
		if pow.Exp(y, bigK, nil).Cmp(n) > 0 {
			break
		}
		x.Set(y)
	}
	return x
}
