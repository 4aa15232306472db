package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// rewardStream is a continuously running token emission. The rate is Q128
// tokens per second; growthGlobal follows the fee-growth algebra (Q128 per
// unit liquidity, wrapping mod 2^256). Seconds that elapse while no liquidity
// is in range accumulate in carryX128 and are credited at the first accrual
// with positive liquidity, so a liquidity gap defers rewards but never burns
// them.
type rewardStream struct {
	rateX128     *uint256.Int
	growthGlobal *uint256.Int
	carryX128    *uint256.Int
	lastAccrual  uint64
}

func newRewardStream(now uint64) rewardStream {
	return rewardStream{
		rateX128:     new(uint256.Int),
		growthGlobal: new(uint256.Int),
		carryX128:    new(uint256.Int),
		lastAccrual:  now,
	}
}

// accrue integrates the stream up to now against the given liquidity.
func (s *rewardStream) accrue(now uint64, liquidity *big.Int) {
	elapsed := s.advance(now, now)
	s.credit(elapsed, liquidity)
}

// advance moves lastAccrual forward to now and returns the seconds to
// integrate, clamped so the stream never emits past cutoff.
func (s *rewardStream) advance(now, cutoff uint64) uint64 {
	if now <= s.lastAccrual {
		return 0
	}
	from := s.lastAccrual
	s.lastAccrual = now
	to := now
	if to > cutoff {
		to = cutoff
	}
	if to <= from {
		return 0
	}
	return to - from
}

// credit adds elapsed seconds of emission either to the global growth (when
// liquidity is in range) or to the zero-liquidity carry.
func (s *rewardStream) credit(elapsed uint64, liquidity *big.Int) {
	if elapsed > 0 {
		pending := new(uint256.Int).Mul(s.rateX128, uint256.NewInt(elapsed))
		s.carryX128.Add(s.carryX128, pending)
	}
	if liquidity.Sign() <= 0 || s.carryX128.IsZero() {
		return
	}
	liq, overflow := uint256.FromBig(liquidity)
	if overflow {
		return
	}
	delta := new(uint256.Int).Div(s.carryX128, liq)
	rem := new(uint256.Int).Mod(s.carryX128, liq)
	s.growthGlobal.Add(s.growthGlobal, delta)
	// The division remainder stays carried; it belongs to future accruals.
	s.carryX128.Set(rem)
}

// airdropStream is a rewardStream bounded to an epoch window. Emission stops
// at epochEnd; a new deposit folds any undistributed remainder into the new
// rate.
type airdropStream struct {
	rewardStream
	epochStart uint64
	epochEnd   uint64
}

func newAirdropStream(now uint64) airdropStream {
	return airdropStream{rewardStream: newRewardStream(now)}
}

func (s *airdropStream) accrue(now uint64, liquidity *big.Int) {
	elapsed := s.advance(now, s.epochEnd)
	s.credit(elapsed, liquidity)
}

// deposit schedules amount for linear emission over [now, endTime], combining
// the undistributed remainder of any live epoch rather than resetting it.
func (s *airdropStream) deposit(now uint64, amount *big.Int, endTime uint64, liquidity *big.Int) error {
	if endTime <= now {
		return fmt.Errorf("%w: end %d not after now %d", ErrEpochInvalid, endTime, now)
	}

	s.accrue(now, liquidity)

	total, overflow := uint256.FromBig(amount)
	if overflow {
		return fmt.Errorf("%w: airdrop amount exceeds 256 bits", ErrOverflow)
	}
	totalX128 := new(uint256.Int).Lsh(total, 128)

	// Project the unexpired remainder of the previous epoch forward.
	if s.epochEnd > now {
		remainder := new(uint256.Int).Mul(s.rateX128, uint256.NewInt(s.epochEnd-now))
		totalX128.Add(totalX128, remainder)
	}

	duration := uint256.NewInt(endTime - now)
	s.rateX128.Div(totalX128, duration)
	s.epochStart = now
	s.epochEnd = endTime
	s.lastAccrual = now
	return nil
}

// DepositReward accrues the reward stream up to now and replaces its emission
// rate. rateX128 is Q128 reward tokens per second; the funding transfer is the
// caller's concern.
func (p *Pool) DepositReward(now uint64, rateX128 *uint256.Int) {
	p.accrue(now)
	p.reward.rateX128.Set(rateX128)
}

// DepositAirdrop schedules amount of the given pool token (0 or 1) for linear
// distribution until endTime. Depositing while a previous epoch is live folds
// its undistributed remainder into the new rate.
func (p *Pool) DepositAirdrop(now uint64, token int, amount *big.Int, endTime uint64) error {
	if token != 0 && token != 1 {
		return fmt.Errorf("airdrop token index %d out of range", token)
	}
	if amount.Sign() <= 0 {
		return ErrAmountZero
	}
	p.accrue(now)
	if err := p.airdrop[token].deposit(now, amount, endTime, p.liquidity); err != nil {
		return err
	}
	// Airdrops pay out of the pool's own reserves; the deposit funds them.
	if token == 0 {
		p.reserve0.Add(p.reserve0, amount)
	} else {
		p.reserve1.Add(p.reserve1, amount)
	}
	return nil
}

// RewardRateX128 returns the live reward emission rate.
func (p *Pool) RewardRateX128() *uint256.Int {
	return new(uint256.Int).Set(p.reward.rateX128)
}

// AirdropEpoch returns the live epoch window for the given airdrop token.
func (p *Pool) AirdropEpoch(token int) (start, end uint64) {
	return p.airdrop[token].epochStart, p.airdrop[token].epochEnd
}

// projectedGrowth returns what a stream's growthGlobal would be if accrued to
// now at the current liquidity, without mutating the stream. Used by views.
func (s *rewardStream) projectedGrowth(now, cutoff uint64, liquidity *big.Int) *uint256.Int {
	growth := new(uint256.Int).Set(s.growthGlobal)
	if liquidity.Sign() <= 0 {
		return growth
	}
	liq, overflow := uint256.FromBig(liquidity)
	if overflow {
		return growth
	}

	pending := new(uint256.Int).Set(s.carryX128)
	from := s.lastAccrual
	to := now
	if to > cutoff {
		to = cutoff
	}
	if to > from {
		pending.Add(pending, new(uint256.Int).Mul(s.rateX128, uint256.NewInt(to-from)))
	}
	return growth.Add(growth, pending.Div(pending, liq))
}
