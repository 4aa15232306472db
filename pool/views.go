package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/clamm-engine-go/pool/ticklist"
)

// PriceAndNearestTicks returns the current sqrt price together with the
// nearest initialized ticks at or below and above the current tick
// (sentinels included).
func (p *Pool) PriceAndNearestTicks() (sqrtPriceX96 *big.Int, nearestBelow, nearestAbove int64) {
	return new(big.Int).Set(p.sqrtPriceX96), p.ticks.AtOrBelow(p.currentTick).Index, p.ticks.Above(p.currentTick).Index
}

// Reserves returns the pool's token balances: principal plus collected fees
// minus everything paid out.
func (p *Pool) Reserves() (reserve0, reserve1 *big.Int) {
	return new(big.Int).Set(p.reserve0), new(big.Int).Set(p.reserve1)
}

// ProtocolFees returns the swap fees accrued to the protocol and not yet
// collected.
func (p *Pool) ProtocolFees() (fee0, fee1 *big.Int) {
	return new(big.Int).Set(p.protocolFees0), new(big.Int).Set(p.protocolFees1)
}

// FeeGrowthGlobal returns both global fee-growth accumulators.
func (p *Pool) FeeGrowthGlobal() (fee0, fee1 *uint256.Int) {
	return new(uint256.Int).Set(p.feeGrowthGlobal0), new(uint256.Int).Set(p.feeGrowthGlobal1)
}

// Ticks exposes the tick index for read-only traversal. Callers must not
// mutate it; mutations go through mint, burn, and swap.
func (p *Pool) Ticks() *ticklist.List { return p.ticks }

// RewardGrowthGlobal returns the reward stream's global accumulator.
func (p *Pool) RewardGrowthGlobal() *uint256.Int {
	return new(uint256.Int).Set(p.reward.growthGlobal)
}

// AirdropGrowthGlobal returns the global accumulator of one airdrop stream.
func (p *Pool) AirdropGrowthGlobal(token int) *uint256.Int {
	return new(uint256.Int).Set(p.airdrop[token].growthGlobal)
}

// RangeFeeGrowth returns the current fee growth inside [lower, upper]. Both
// boundary ticks must be initialized.
func (p *Pool) RangeFeeGrowth(lower, upper int64) (fee0, fee1 *uint256.Int, err error) {
	lowerTick, okLower := p.ticks.Get(lower)
	upperTick, okUpper := p.ticks.Get(upper)
	if !okLower || !okUpper {
		return nil, nil, fmt.Errorf("%w: range [%d, %d] has uninitialized boundary", ErrInvalidTick, lower, upper)
	}
	fee0 = growthInside(p.feeGrowthGlobal0, lowerTick.FeeGrowthOutside0, upperTick.FeeGrowthOutside0, lower, upper, p.currentTick)
	fee1 = growthInside(p.feeGrowthGlobal1, lowerTick.FeeGrowthOutside1, upperTick.FeeGrowthOutside1, lower, upper, p.currentTick)
	return fee0, fee1, nil
}

// PositionFees returns the token amounts a position could collect right now:
// already-settled owed amounts plus unsettled fee and airdrop growth. It does
// not mutate the position.
func (p *Pool) PositionFees(key PositionKey) (amount0, amount1 *big.Int, err error) {
	pos, ok := p.positions[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: range [%d, %d]", ErrNoPosition, key.Lower, key.Upper)
	}

	amount0 = new(big.Int).Set(pos.TokensOwed0)
	amount1 = new(big.Int).Set(pos.TokensOwed1)

	lowerTick, okLower := p.ticks.Get(key.Lower)
	upperTick, okUpper := p.ticks.Get(key.Upper)
	if okLower && okUpper && pos.Liquidity.Sign() > 0 {
		inside := p.rangeGrowthInside(lowerTick, upperTick)
		amount0.Add(amount0, owedDelta(pos.Liquidity, inside.fee0, pos.FeeGrowthInside0Last))
		amount0.Add(amount0, owedDelta(pos.Liquidity, inside.airdrop0, pos.AirdropGrowthInside0Last))
		amount1.Add(amount1, owedDelta(pos.Liquidity, inside.fee1, pos.FeeGrowthInside1Last))
		amount1.Add(amount1, owedDelta(pos.Liquidity, inside.airdrop1, pos.AirdropGrowthInside1Last))
	}
	return amount0, amount1, nil
}

// PositionRewardAmount returns the reward tokens a position could collect if
// the stream were accrued to now, without mutating anything.
func (p *Pool) PositionRewardAmount(key PositionKey, now uint64) (*big.Int, error) {
	pos, ok := p.positions[key]
	if !ok {
		return nil, fmt.Errorf("%w: range [%d, %d]", ErrNoPosition, key.Lower, key.Upper)
	}

	reward := new(big.Int).Set(pos.RewardOwed)

	lowerTick, okLower := p.ticks.Get(key.Lower)
	upperTick, okUpper := p.ticks.Get(key.Upper)
	if okLower && okUpper && pos.Liquidity.Sign() > 0 {
		projected := p.reward.projectedGrowth(now, now, p.liquidity)
		inside := growthInside(projected, lowerTick.RewardGrowthOutside, upperTick.RewardGrowthOutside, key.Lower, key.Upper, p.currentTick)
		reward.Add(reward, owedDelta(pos.Liquidity, inside, pos.RewardGrowthInsideLast))
	}
	return reward, nil
}
