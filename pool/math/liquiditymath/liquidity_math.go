package liquiditymath

import (
	"errors"
	"math/big"

	"github.com/defistate/clamm-engine-go/pool/math/sqrtpricemath"
)

var (
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
)

// AddDelta adds a signed liquidity delta to an unsigned liquidity value,
// failing on uint128 overflow or a negative result.
func AddDelta(dest *big.Int, x *big.Int, y *big.Int) error {
	dest.Add(x, y)
	if dest.Sign() < 0 {
		return ErrLiquidityUnderflow
	}
	if dest.Cmp(maxUint128) > 0 {
		return ErrLiquidityOverflow
	}
	return nil
}

// LiquidityForAmount0 returns the liquidity purchasable with amount0 of
// token0 over the price range [sqrtRatioAX96, sqrtRatioBX96].
//
//	L = amount0 * (pA * pB / 2^96) / (pB - pA)
func LiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *big.Int) *big.Int {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	intermediate := new(big.Int).Mul(sqrtRatioAX96, sqrtRatioBX96)
	intermediate.Div(intermediate, sqrtpricemath.Q96)

	liquidity := new(big.Int).Mul(amount0, intermediate)
	return liquidity.Div(liquidity, new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// LiquidityForAmount1 returns the liquidity purchasable with amount1 of
// token1 over the price range [sqrtRatioAX96, sqrtRatioBX96].
//
//	L = amount1 * 2^96 / (pB - pA)
func LiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *big.Int) *big.Int {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	liquidity := new(big.Int).Mul(amount1, sqrtpricemath.Q96)
	return liquidity.Div(liquidity, new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// LiquidityForAmounts returns the largest liquidity funded by the desired
// token amounts given the current price and the range bounds. Ranges entirely
// below the price take only token1, ranges entirely above take only token0,
// and straddling ranges take the binding minimum of both.
func LiquidityForAmounts(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, amount0, amount1 *big.Int) *big.Int {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	switch {
	case sqrtRatioX96.Cmp(sqrtRatioAX96) <= 0:
		return LiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0)
	case sqrtRatioX96.Cmp(sqrtRatioBX96) < 0:
		liquidity0 := LiquidityForAmount0(sqrtRatioX96, sqrtRatioBX96, amount0)
		liquidity1 := LiquidityForAmount1(sqrtRatioAX96, sqrtRatioX96, amount1)
		if liquidity0.Cmp(liquidity1) < 0 {
			return liquidity0
		}
		return liquidity1
	default:
		return LiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1)
	}
}
