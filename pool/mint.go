package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/clamm-engine-go/pool/math/liquiditymath"
	"github.com/defistate/clamm-engine-go/pool/math/sqrtpricemath"
	"github.com/defistate/clamm-engine-go/pool/math/tickmath"
)

// MintParams describes a liquidity deposit sized by desired token amounts.
// LowerHint/UpperHint are the predecessor ticks for any boundary that is not
// yet initialized; they are ignored for boundaries that already exist.
type MintParams struct {
	Owner          common.Address
	Lower, Upper   int64
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	// MinLiquidity aborts the mint when the desired amounts buy less
	// liquidity than expected. Nil disables the guard.
	MinLiquidity *big.Int
	LowerHint    int64
	UpperHint    int64
	Now          uint64
}

// Mint deposits liquidity into [Lower, Upper). It returns the liquidity
// minted and the token amounts the caller owes, rounded up.
func (p *Pool) Mint(params MintParams) (liquidity, amount0, amount1 *big.Int, err error) {
	p.accrue(params.Now)

	if err := p.checkTicks(params.Lower, params.Upper); err != nil {
		return nil, nil, nil, err
	}

	sqrtLower, sqrtUpper := new(big.Int), new(big.Int)
	if err := tickmath.SqrtRatioAtTick(sqrtLower, params.Lower); err != nil {
		return nil, nil, nil, err
	}
	if err := tickmath.SqrtRatioAtTick(sqrtUpper, params.Upper); err != nil {
		return nil, nil, nil, err
	}

	liquidity = liquiditymath.LiquidityForAmounts(p.sqrtPriceX96, sqrtLower, sqrtUpper, params.Amount0Desired, params.Amount1Desired)
	if liquidity.Sign() == 0 {
		return nil, nil, nil, ErrLiquidityZero
	}
	if params.MinLiquidity != nil && liquidity.Cmp(params.MinLiquidity) < 0 {
		return nil, nil, nil, fmt.Errorf("%w: minted %s below minimum %s", ErrTooLittleReceived, liquidity, params.MinLiquidity)
	}

	amount0, amount1, err = p.amountsForLiquidity(params.Lower, params.Upper, sqrtLower, sqrtUpper, liquidity, true)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := p.applyLiquidity(params.Owner, params.Lower, params.Upper, liquidity, params.LowerHint, params.UpperHint); err != nil {
		return nil, nil, nil, err
	}

	p.reserve0.Add(p.reserve0, amount0)
	p.reserve1.Add(p.reserve1, amount1)
	return liquidity, amount0, amount1, nil
}

// AddLiquidityParams describes a deposit sized by an explicit liquidity
// amount, with optional caps on the token amounts the caller is willing to
// supply.
type AddLiquidityParams struct {
	Owner        common.Address
	Lower, Upper int64
	Liquidity    *big.Int
	Amount0Max   *big.Int
	Amount1Max   *big.Int
	LowerHint    int64
	UpperHint    int64
	Now          uint64
}

// AddLiquidity deposits an exact liquidity amount into [Lower, Upper),
// returning the token amounts owed (rounded up).
func (p *Pool) AddLiquidity(params AddLiquidityParams) (amount0, amount1 *big.Int, err error) {
	p.accrue(params.Now)

	if err := p.checkTicks(params.Lower, params.Upper); err != nil {
		return nil, nil, err
	}
	if params.Liquidity == nil || params.Liquidity.Sign() <= 0 {
		return nil, nil, ErrLiquidityZero
	}

	sqrtLower, sqrtUpper := new(big.Int), new(big.Int)
	if err := tickmath.SqrtRatioAtTick(sqrtLower, params.Lower); err != nil {
		return nil, nil, err
	}
	if err := tickmath.SqrtRatioAtTick(sqrtUpper, params.Upper); err != nil {
		return nil, nil, err
	}

	amount0, amount1, err = p.amountsForLiquidity(params.Lower, params.Upper, sqrtLower, sqrtUpper, params.Liquidity, true)
	if err != nil {
		return nil, nil, err
	}
	if params.Amount0Max != nil && amount0.Cmp(params.Amount0Max) > 0 {
		return nil, nil, fmt.Errorf("%w: token0 owes %s, cap %s", ErrTooLittleAmountIn, amount0, params.Amount0Max)
	}
	if params.Amount1Max != nil && amount1.Cmp(params.Amount1Max) > 0 {
		return nil, nil, fmt.Errorf("%w: token1 owes %s, cap %s", ErrTooLittleAmountIn, amount1, params.Amount1Max)
	}

	if err := p.applyLiquidity(params.Owner, params.Lower, params.Upper, params.Liquidity, params.LowerHint, params.UpperHint); err != nil {
		return nil, nil, err
	}

	p.reserve0.Add(p.reserve0, amount0)
	p.reserve1.Add(p.reserve1, amount1)
	return amount0, amount1, nil
}

// amountsForLiquidity computes the token amounts corresponding to a liquidity
// delta over a range, given the current price. roundUp selects obligation
// rounding (mint) versus payment rounding (burn).
func (p *Pool) amountsForLiquidity(lower, upper int64, sqrtLower, sqrtUpper, liquidity *big.Int, roundUp bool) (*big.Int, *big.Int, error) {
	amount0, amount1 := new(big.Int), new(big.Int)

	switch {
	case p.currentTick < lower:
		// Entirely above the price: token0 only.
		if err := sqrtpricemath.Amount0Delta(amount0, sqrtLower, sqrtUpper, liquidity, roundUp); err != nil {
			return nil, nil, err
		}
	case p.currentTick >= upper:
		// Entirely below the price: token1 only.
		sqrtpricemath.Amount1Delta(amount1, sqrtLower, sqrtUpper, liquidity, roundUp)
	default:
		if err := sqrtpricemath.Amount0Delta(amount0, p.sqrtPriceX96, sqrtUpper, liquidity, roundUp); err != nil {
			return nil, nil, err
		}
		sqrtpricemath.Amount1Delta(amount1, sqrtLower, p.sqrtPriceX96, liquidity, roundUp)
	}
	return amount0, amount1, nil
}

// applyLiquidity validates and then performs every state mutation of a
// deposit: boundary tick updates (insertion, seeding, gross/net), in-range
// pool liquidity, and position settlement. Validation runs fully before the
// first mutation so a failed deposit leaves no trace.
func (p *Pool) applyLiquidity(owner common.Address, lower, upper int64, liquidity *big.Int, lowerHint, upperHint int64) error {
	// Validate boundary tick capacity and insertion hints.
	scratch := new(big.Int)
	_, lowerExists := p.ticks.Get(lower)
	if t, ok := p.ticks.Get(lower); ok {
		if err := liquiditymath.AddDelta(scratch, t.LiquidityGross, liquidity); err != nil {
			return err
		}
	} else if err := p.ticks.ValidateInsert(lower, lowerHint); err != nil {
		return err
	}
	if t, ok := p.ticks.Get(upper); ok {
		if err := liquiditymath.AddDelta(scratch, t.LiquidityGross, liquidity); err != nil {
			return err
		}
	} else {
		// When lower is about to be inserted between upperHint and upper,
		// the hint is validated against the gap that will hold both.
		hint := upperHint
		if !lowerExists && hint == lower {
			hint = lowerHint
		}
		if err := p.ticks.ValidateInsert(upper, hint); err != nil {
			return err
		}
	}
	inRange := lower <= p.currentTick && p.currentTick < upper
	if inRange {
		if err := liquiditymath.AddDelta(scratch, p.liquidity, liquidity); err != nil {
			return err
		}
	}

	// All checks passed; mutations below cannot fail.
	lowerTick, err := p.getOrCreateTick(lower, lowerHint)
	if err != nil {
		return err
	}
	// Inserting lower may have become upper's true predecessor.
	upperPrev := upperHint
	if upperPrev < lower {
		upperPrev = lower
	}
	upperTick, err := p.getOrCreateTick(upper, upperPrev)
	if err != nil {
		return err
	}

	lowerTick.LiquidityGross.Add(lowerTick.LiquidityGross, liquidity)
	upperTick.LiquidityGross.Add(upperTick.LiquidityGross, liquidity)
	lowerTick.LiquidityNet.Add(lowerTick.LiquidityNet, liquidity)
	upperTick.LiquidityNet.Sub(upperTick.LiquidityNet, liquidity)

	if inRange {
		p.liquidity.Add(p.liquidity, liquidity)
	}

	key := PositionKey{Owner: owner, Lower: lower, Upper: upper}
	pos, ok := p.positions[key]
	if !ok {
		pos = newPosition()
		p.positions[key] = pos
	}
	// Settle against the pre-deposit liquidity before growing the stake.
	pos.settle(p.rangeGrowthInside(lowerTick, upperTick))
	pos.Liquidity.Add(pos.Liquidity, liquidity)
	return nil
}
