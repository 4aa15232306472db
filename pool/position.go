package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/clamm-engine-go/pool/ticklist"
)

// Position is one provider's claim over a tick range. Snapshots hold the
// growth-inside values observed at the last touch; owed amounts are settled
// but uncollected. A zero-liquidity position with owed amounts stays valid
// until collected.
type Position struct {
	Liquidity *big.Int

	FeeGrowthInside0Last     *uint256.Int
	FeeGrowthInside1Last     *uint256.Int
	RewardGrowthInsideLast   *uint256.Int
	AirdropGrowthInside0Last *uint256.Int
	AirdropGrowthInside1Last *uint256.Int

	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
	RewardOwed  *big.Int
}

func newPosition() *Position {
	return &Position{
		Liquidity:                new(big.Int),
		FeeGrowthInside0Last:     new(uint256.Int),
		FeeGrowthInside1Last:     new(uint256.Int),
		RewardGrowthInsideLast:   new(uint256.Int),
		AirdropGrowthInside0Last: new(uint256.Int),
		AirdropGrowthInside1Last: new(uint256.Int),
		TokensOwed0:              new(big.Int),
		TokensOwed1:              new(big.Int),
		RewardOwed:               new(big.Int),
	}
}

// growthInside derives the accumulator growth that happened strictly inside
// [lower, upper] from the global value and the two outside snapshots. The
// subtraction wraps mod 2^256; an out-of-range position's inside value may
// appear to move backwards as the global grows, which the snapshot delta
// algebra absorbs.
func growthInside(global, lowerOutside, upperOutside *uint256.Int, lower, upper, current int64) *uint256.Int {
	r := new(uint256.Int)
	switch {
	case current < lower:
		r.Sub(lowerOutside, upperOutside)
	case current >= upper:
		r.Sub(upperOutside, lowerOutside)
	default:
		r.Sub(global, lowerOutside)
		r.Sub(r, upperOutside)
	}
	return r
}

// insideSet bundles the five growth-inside values of one range.
type insideSet struct {
	fee0     *uint256.Int
	fee1     *uint256.Int
	reward   *uint256.Int
	airdrop0 *uint256.Int
	airdrop1 *uint256.Int
}

func (p *Pool) rangeGrowthInside(lower, upper *ticklist.Tick) insideSet {
	return insideSet{
		fee0:     growthInside(p.feeGrowthGlobal0, lower.FeeGrowthOutside0, upper.FeeGrowthOutside0, lower.Index, upper.Index, p.currentTick),
		fee1:     growthInside(p.feeGrowthGlobal1, lower.FeeGrowthOutside1, upper.FeeGrowthOutside1, lower.Index, upper.Index, p.currentTick),
		reward:   growthInside(p.reward.growthGlobal, lower.RewardGrowthOutside, upper.RewardGrowthOutside, lower.Index, upper.Index, p.currentTick),
		airdrop0: growthInside(p.airdrop[0].growthGlobal, lower.AirdropGrowthOutside0, upper.AirdropGrowthOutside0, lower.Index, upper.Index, p.currentTick),
		airdrop1: growthInside(p.airdrop[1].growthGlobal, lower.AirdropGrowthOutside1, upper.AirdropGrowthOutside1, lower.Index, upper.Index, p.currentTick),
	}
}

// owedDelta converts a growth-inside delta (Q128 per unit liquidity, wrapping)
// into a token amount for the given liquidity, rounding down.
func owedDelta(liquidity *big.Int, insideNow, insideLast *uint256.Int) *big.Int {
	delta := new(uint256.Int).Sub(insideNow, insideLast)
	amount := new(big.Int).Mul(liquidity, delta.ToBig())
	return amount.Rsh(amount, 128)
}

// settle credits everything the position accrued since its last touch, using
// the liquidity it held over that interval, then refreshes the snapshots.
// Callers must settle before changing the position's liquidity.
func (pos *Position) settle(inside insideSet) {
	if pos.Liquidity.Sign() > 0 {
		pos.TokensOwed0.Add(pos.TokensOwed0, owedDelta(pos.Liquidity, inside.fee0, pos.FeeGrowthInside0Last))
		pos.TokensOwed1.Add(pos.TokensOwed1, owedDelta(pos.Liquidity, inside.fee1, pos.FeeGrowthInside1Last))
		pos.RewardOwed.Add(pos.RewardOwed, owedDelta(pos.Liquidity, inside.reward, pos.RewardGrowthInsideLast))
		// Airdrops pay out in the pool's own tokens.
		pos.TokensOwed0.Add(pos.TokensOwed0, owedDelta(pos.Liquidity, inside.airdrop0, pos.AirdropGrowthInside0Last))
		pos.TokensOwed1.Add(pos.TokensOwed1, owedDelta(pos.Liquidity, inside.airdrop1, pos.AirdropGrowthInside1Last))
	}
	pos.FeeGrowthInside0Last.Set(inside.fee0)
	pos.FeeGrowthInside1Last.Set(inside.fee1)
	pos.RewardGrowthInsideLast.Set(inside.reward)
	pos.AirdropGrowthInside0Last.Set(inside.airdrop0)
	pos.AirdropGrowthInside1Last.Set(inside.airdrop1)
}

// Position returns the live position for key, if any.
func (p *Pool) Position(key PositionKey) (*Position, bool) {
	pos, ok := p.positions[key]
	return pos, ok
}
