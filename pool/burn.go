package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/clamm-engine-go/pool/math/tickmath"
)

// BurnParams describes a liquidity withdrawal. Amount0Min/Amount1Min guard
// the total payout (burned principal plus previously owed amounts).
type BurnParams struct {
	Owner        common.Address
	Lower, Upper int64
	Liquidity    *big.Int
	Amount0Min   *big.Int
	Amount1Min   *big.Int
	Now          uint64
}

// Burn removes liquidity from a position and pays out the corresponding token
// amounts (rounded down) together with everything previously owed. Boundary
// ticks whose gross liquidity reaches zero are pruned.
func (p *Pool) Burn(params BurnParams) (amount0, amount1 *big.Int, err error) {
	p.accrue(params.Now)

	if err := p.checkTicks(params.Lower, params.Upper); err != nil {
		return nil, nil, err
	}
	if params.Liquidity == nil || params.Liquidity.Sign() < 0 {
		return nil, nil, ErrLiquidityZero
	}

	key := PositionKey{Owner: params.Owner, Lower: params.Lower, Upper: params.Upper}
	pos, ok := p.positions[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: range [%d, %d]", ErrNoPosition, params.Lower, params.Upper)
	}
	if params.Liquidity.Cmp(pos.Liquidity) > 0 {
		return nil, nil, fmt.Errorf("%w: burn exceeds position liquidity", ErrOverflow)
	}

	lowerTick, okLower := p.ticks.Get(params.Lower)
	upperTick, okUpper := p.ticks.Get(params.Upper)
	if !okLower || !okUpper {
		return nil, nil, fmt.Errorf("%w: position boundary tick missing", ErrInvalidTick)
	}

	sqrtLower, sqrtUpper := new(big.Int), new(big.Int)
	if err := tickmath.SqrtRatioAtTick(sqrtLower, params.Lower); err != nil {
		return nil, nil, err
	}
	if err := tickmath.SqrtRatioAtTick(sqrtUpper, params.Upper); err != nil {
		return nil, nil, err
	}

	// Payment to the caller rounds down.
	amount0, amount1, err = p.amountsForLiquidity(params.Lower, params.Upper, sqrtLower, sqrtUpper, params.Liquidity, false)
	if err != nil {
		return nil, nil, err
	}

	// Project the total payout without touching the position, so a rejected
	// burn leaves no trace.
	inside := p.rangeGrowthInside(lowerTick, upperTick)
	payout0 := new(big.Int).Add(amount0, pos.TokensOwed0)
	payout1 := new(big.Int).Add(amount1, pos.TokensOwed1)
	if pos.Liquidity.Sign() > 0 {
		payout0.Add(payout0, owedDelta(pos.Liquidity, inside.fee0, pos.FeeGrowthInside0Last))
		payout0.Add(payout0, owedDelta(pos.Liquidity, inside.airdrop0, pos.AirdropGrowthInside0Last))
		payout1.Add(payout1, owedDelta(pos.Liquidity, inside.fee1, pos.FeeGrowthInside1Last))
		payout1.Add(payout1, owedDelta(pos.Liquidity, inside.airdrop1, pos.AirdropGrowthInside1Last))
	}
	if params.Amount0Min != nil && payout0.Cmp(params.Amount0Min) < 0 {
		return nil, nil, fmt.Errorf("%w: token0 payout %s below minimum %s", ErrTooLittleReceived, payout0, params.Amount0Min)
	}
	if params.Amount1Min != nil && payout1.Cmp(params.Amount1Min) < 0 {
		return nil, nil, fmt.Errorf("%w: token1 payout %s below minimum %s", ErrTooLittleReceived, payout1, params.Amount1Min)
	}

	// Settle fees and rewards against the liquidity held before the decrease.
	pos.settle(inside)

	if params.Liquidity.Sign() > 0 {
		lowerTick.LiquidityGross.Sub(lowerTick.LiquidityGross, params.Liquidity)
		upperTick.LiquidityGross.Sub(upperTick.LiquidityGross, params.Liquidity)
		lowerTick.LiquidityNet.Sub(lowerTick.LiquidityNet, params.Liquidity)
		upperTick.LiquidityNet.Add(upperTick.LiquidityNet, params.Liquidity)

		if params.Lower <= p.currentTick && p.currentTick < params.Upper {
			p.liquidity.Sub(p.liquidity, params.Liquidity)
		}
		pos.Liquidity.Sub(pos.Liquidity, params.Liquidity)

		p.pruneTick(lowerTick)
		p.pruneTick(upperTick)
	}

	pos.TokensOwed0.SetInt64(0)
	pos.TokensOwed1.SetInt64(0)

	p.reserve0.Sub(p.reserve0, payout0)
	p.reserve1.Sub(p.reserve1, payout1)
	return payout0, payout1, nil
}

// CollectParams identifies a position whose owed amounts should be paid out.
type CollectParams struct {
	Owner        common.Address
	Lower, Upper int64
	Now          uint64
}

// Collect settles a position and pays out everything it is owed: swap fees
// and airdrops in the pool tokens, plus the reward-token amount.
func (p *Pool) Collect(params CollectParams) (amount0, amount1, reward *big.Int, err error) {
	p.accrue(params.Now)

	key := PositionKey{Owner: params.Owner, Lower: params.Lower, Upper: params.Upper}
	pos, ok := p.positions[key]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: range [%d, %d]", ErrNoPosition, params.Lower, params.Upper)
	}

	// Boundary ticks exist while the position has liquidity; a drained
	// position settles against its last snapshots.
	lowerTick, okLower := p.ticks.Get(params.Lower)
	upperTick, okUpper := p.ticks.Get(params.Upper)
	if okLower && okUpper {
		pos.settle(p.rangeGrowthInside(lowerTick, upperTick))
	}

	amount0 = new(big.Int).Set(pos.TokensOwed0)
	amount1 = new(big.Int).Set(pos.TokensOwed1)
	reward = new(big.Int).Set(pos.RewardOwed)

	pos.TokensOwed0.SetInt64(0)
	pos.TokensOwed1.SetInt64(0)
	pos.RewardOwed.SetInt64(0)

	p.reserve0.Sub(p.reserve0, amount0)
	p.reserve1.Sub(p.reserve1, amount1)
	return amount0, amount1, reward, nil
}

// CollectProtocolFee pays out the swap fees accrued to the protocol.
func (p *Pool) CollectProtocolFee(now uint64) (amount0, amount1 *big.Int) {
	p.accrue(now)

	amount0 = new(big.Int).Set(p.protocolFees0)
	amount1 = new(big.Int).Set(p.protocolFees1)
	p.protocolFees0.SetInt64(0)
	p.protocolFees1.SetInt64(0)

	p.reserve0.Sub(p.reserve0, amount0)
	p.reserve1.Sub(p.reserve1, amount1)
	return amount0, amount1
}
