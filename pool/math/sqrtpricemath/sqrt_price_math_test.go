package sqrtpricemath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRandInt draws a uniform big.Int below 2^bits.
func newRandInt(bits int) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return n
}

func TestAmount0Delta_RoundingInvariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtP := newRandInt(160)
		sqrtQ := newRandInt(160)
		liquidity := newRandInt(128)

		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if sqrtQ.Sign() == 0 {
			sqrtQ.SetInt64(1)
		}

		amount0Down := new(big.Int)
		require.NoError(t, Amount0Delta(amount0Down, sqrtP, sqrtQ, liquidity, false))

		amount0Up := new(big.Int)
		require.NoError(t, Amount0Delta(amount0Up, sqrtP, sqrtQ, liquidity, true))

		assert.True(t, amount0Down.Cmp(amount0Up) <= 0)

		diff := new(big.Int).Sub(amount0Up, amount0Down)
		assert.True(t, diff.Cmp(big.NewInt(2)) < 0)
	}
}

func TestAmount1Delta_RoundingInvariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtP := newRandInt(160)
		sqrtQ := newRandInt(160)
		liquidity := newRandInt(128)

		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if sqrtQ.Sign() == 0 {
			sqrtQ.SetInt64(1)
		}

		amount1Down := new(big.Int)
		Amount1Delta(amount1Down, sqrtP, sqrtQ, liquidity, false)

		amount1Up := new(big.Int)
		Amount1Delta(amount1Up, sqrtP, sqrtQ, liquidity, true)

		assert.True(t, amount1Down.Cmp(amount1Up) <= 0)

		diff := new(big.Int).Sub(amount1Up, amount1Down)
		assert.True(t, diff.Cmp(big.NewInt(2)) < 0)
	}
}

func TestAmount1Delta_KnownValue(t *testing.T) {
	// L * (sqrtQ - sqrtP) / 2^96 with L = 2^96 is just the price difference.
	sqrtP := new(big.Int).Set(Q96)
	sqrtQ := new(big.Int).Add(Q96, big.NewInt(1000))
	liquidity := new(big.Int).Set(Q96)

	amount1 := new(big.Int)
	Amount1Delta(amount1, sqrtP, sqrtQ, liquidity, false)
	assert.Equal(t, "1000", amount1.String())
}

func TestNextSqrtPriceFromInput_Invariants(t *testing.T) {
	for i := 0; i < 200; i++ {
		sqrtP := newRandInt(160)
		liquidity := newRandInt(128)
		amountIn := newRandInt(256)
		zeroForOne := i%2 == 0

		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if liquidity.Sign() == 0 {
			liquidity.SetInt64(1)
		}

		sqrtQ := new(big.Int)
		err := NextSqrtPriceFromInput(sqrtQ, sqrtP, liquidity, amountIn, zeroForOne)
		if err != nil {
			continue
		}

		if zeroForOne {
			// Selling token0 moves the price down, and the input must cover
			// the token0 delta of the move.
			assert.True(t, sqrtQ.Cmp(sqrtP) <= 0)
			delta := new(big.Int)
			if err := Amount0Delta(delta, sqrtQ, sqrtP, liquidity, true); err == nil {
				assert.True(t, amountIn.Cmp(delta) >= 0)
			}
		} else {
			assert.True(t, sqrtQ.Cmp(sqrtP) >= 0)
			delta := new(big.Int)
			Amount1Delta(delta, sqrtP, sqrtQ, liquidity, true)
			assert.True(t, amountIn.Cmp(delta) >= 0)
		}
	}
}

func TestNextSqrtPriceFromOutput_Invariants(t *testing.T) {
	for i := 0; i < 200; i++ {
		sqrtP := newRandInt(96)
		liquidity := newRandInt(100)
		amountOut := newRandInt(64)
		zeroForOne := i%2 == 0

		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if liquidity.Sign() == 0 {
			liquidity.SetInt64(1)
		}

		sqrtQ := new(big.Int)
		err := NextSqrtPriceFromOutput(sqrtQ, sqrtP, liquidity, amountOut, zeroForOne)
		if err != nil {
			continue
		}

		if zeroForOne {
			// Paying out token1 moves the price down, and the move must
			// produce at least the requested output.
			assert.True(t, sqrtQ.Cmp(sqrtP) <= 0)
			delta := new(big.Int)
			Amount1Delta(delta, sqrtQ, sqrtP, liquidity, false)
			assert.True(t, delta.Cmp(amountOut) >= 0)
		} else {
			assert.True(t, sqrtQ.Cmp(sqrtP) >= 0)
			delta := new(big.Int)
			if err := Amount0Delta(delta, sqrtP, sqrtQ, liquidity, false); err == nil {
				assert.True(t, delta.Cmp(amountOut) >= 0)
			}
		}
	}
}

func TestNextSqrtPriceFromInput_ZeroAmount(t *testing.T) {
	sqrtP := new(big.Int).Set(Q96)
	liquidity := big.NewInt(1e18)

	sqrtQ := new(big.Int)
	require.NoError(t, NextSqrtPriceFromInput(sqrtQ, sqrtP, liquidity, big.NewInt(0), true))
	assert.Zero(t, sqrtQ.Cmp(sqrtP))

	require.NoError(t, NextSqrtPriceFromInput(sqrtQ, sqrtP, liquidity, big.NewInt(0), false))
	assert.Zero(t, sqrtQ.Cmp(sqrtP))
}
