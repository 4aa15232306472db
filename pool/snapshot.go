package pool

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Snapshot returns a deep copy of the pool. Quote and simulation callers run
// against snapshots concurrently with no locking; a snapshot never observes a
// partially mutated pool because the owner serializes mutations.
func (p *Pool) Snapshot() *Pool {
	c := &Pool{
		cfg:              p.cfg,
		sqrtPriceX96:     new(big.Int).Set(p.sqrtPriceX96),
		currentTick:      p.currentTick,
		liquidity:        new(big.Int).Set(p.liquidity),
		feeGrowthGlobal0: new(uint256.Int).Set(p.feeGrowthGlobal0),
		feeGrowthGlobal1: new(uint256.Int).Set(p.feeGrowthGlobal1),
		protocolFees0:    new(big.Int).Set(p.protocolFees0),
		protocolFees1:    new(big.Int).Set(p.protocolFees1),
		reserve0:         new(big.Int).Set(p.reserve0),
		reserve1:         new(big.Int).Set(p.reserve1),
		ticks:            p.ticks.Clone(),
		positions:        make(map[PositionKey]*Position, len(p.positions)),
		reward:           p.reward.clone(),
	}
	c.airdrop[0] = p.airdrop[0].clone()
	c.airdrop[1] = p.airdrop[1].clone()

	for key, pos := range p.positions {
		c.positions[key] = pos.clone()
	}
	return c
}

func (s rewardStream) clone() rewardStream {
	return rewardStream{
		rateX128:     new(uint256.Int).Set(s.rateX128),
		growthGlobal: new(uint256.Int).Set(s.growthGlobal),
		carryX128:    new(uint256.Int).Set(s.carryX128),
		lastAccrual:  s.lastAccrual,
	}
}

func (s airdropStream) clone() airdropStream {
	return airdropStream{
		rewardStream: s.rewardStream.clone(),
		epochStart:   s.epochStart,
		epochEnd:     s.epochEnd,
	}
}

func (pos *Position) clone() *Position {
	return &Position{
		Liquidity:                new(big.Int).Set(pos.Liquidity),
		FeeGrowthInside0Last:     new(uint256.Int).Set(pos.FeeGrowthInside0Last),
		FeeGrowthInside1Last:     new(uint256.Int).Set(pos.FeeGrowthInside1Last),
		RewardGrowthInsideLast:   new(uint256.Int).Set(pos.RewardGrowthInsideLast),
		AirdropGrowthInside0Last: new(uint256.Int).Set(pos.AirdropGrowthInside0Last),
		AirdropGrowthInside1Last: new(uint256.Int).Set(pos.AirdropGrowthInside1Last),
		TokensOwed0:              new(big.Int).Set(pos.TokensOwed0),
		TokensOwed1:              new(big.Int).Set(pos.TokensOwed1),
		RewardOwed:               new(big.Int).Set(pos.RewardOwed),
	}
}
