package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/defistate/clamm-engine-go/pool/math/tickmath"
	"github.com/defistate/clamm-engine-go/pool/ticklist"
)

// Config fixes the immutable parameters of a pool.
type Config struct {
	// SwapFeePpm is the swap fee in parts per million of the input amount.
	SwapFeePpm uint64
	// ProtocolFeePpm is the share of each swap fee retained for the protocol,
	// in parts per million of the fee.
	ProtocolFeePpm uint64
	// TickSpacing constrains which tick indices may carry liquidity.
	TickSpacing int64
	// StrictTickParity additionally requires lower boundaries to sit on even
	// multiples of TickSpacing and upper boundaries on odd multiples, so the
	// orientation of a boundary is readable off its index.
	StrictTickParity bool
	// RejectUnservedDemand makes swaps fail instead of settling partially when
	// the initialized range runs out of liquidity.
	RejectUnservedDemand bool
}

func (c Config) validate() error {
	if c.SwapFeePpm >= 1_000_000 {
		return fmt.Errorf("config: swap fee %d ppm out of range", c.SwapFeePpm)
	}
	if c.ProtocolFeePpm > 1_000_000 {
		return fmt.Errorf("config: protocol fee share %d ppm out of range", c.ProtocolFeePpm)
	}
	if c.TickSpacing <= 0 {
		return fmt.Errorf("config: tick spacing must be positive, got %d", c.TickSpacing)
	}
	return nil
}

// Pool is the single-writer state machine for one traded pair. Every mutating
// call runs to completion under the owner's serialization; intermediate
// tick-crossing state is never observable. All growth accumulators are Q128
// and wrap mod 2^256 by construction.
type Pool struct {
	cfg Config

	sqrtPriceX96 *big.Int
	currentTick  int64
	liquidity    *big.Int

	feeGrowthGlobal0 *uint256.Int
	feeGrowthGlobal1 *uint256.Int

	protocolFees0 *big.Int
	protocolFees1 *big.Int

	reserve0 *big.Int
	reserve1 *big.Int

	ticks     *ticklist.List
	positions map[PositionKey]*Position

	reward  rewardStream
	airdrop [2]airdropStream
}

// New creates a pool at the given starting sqrt price. now seeds the reward
// stream clocks; callers must never pass an earlier time to later calls.
func New(cfg Config, sqrtPriceX96 *big.Int, now uint64) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	tick, err := tickmath.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:              cfg,
		sqrtPriceX96:     new(big.Int).Set(sqrtPriceX96),
		currentTick:      tick,
		liquidity:        new(big.Int),
		feeGrowthGlobal0: new(uint256.Int),
		feeGrowthGlobal1: new(uint256.Int),
		protocolFees0:    new(big.Int),
		protocolFees1:    new(big.Int),
		reserve0:         new(big.Int),
		reserve1:         new(big.Int),
		ticks:            ticklist.New(),
		positions:        make(map[PositionKey]*Position),
	}
	p.reward = newRewardStream(now)
	p.airdrop[0] = newAirdropStream(now)
	p.airdrop[1] = newAirdropStream(now)
	return p, nil
}

// Config returns the pool's immutable parameters.
func (p *Pool) Config() Config { return p.cfg }

// SqrtPriceX96 returns the current sqrt price.
func (p *Pool) SqrtPriceX96() *big.Int { return new(big.Int).Set(p.sqrtPriceX96) }

// CurrentTick returns the tick containing the current price.
func (p *Pool) CurrentTick() int64 { return p.currentTick }

// Liquidity returns the aggregate in-range liquidity.
func (p *Pool) Liquidity() *big.Int { return new(big.Int).Set(p.liquidity) }

// checkTicks validates a position range against bounds, spacing, and parity.
func (p *Pool) checkTicks(lower, upper int64) error {
	if lower >= upper {
		return fmt.Errorf("%w: lower %d not below upper %d", ErrInvalidTick, lower, upper)
	}
	if lower < tickmath.MinTick || upper > tickmath.MaxTick {
		return fmt.Errorf("%w: range [%d, %d] out of bounds", ErrInvalidTick, lower, upper)
	}
	if lower%p.cfg.TickSpacing != 0 || upper%p.cfg.TickSpacing != 0 {
		return fmt.Errorf("%w: range [%d, %d] not aligned to spacing %d", ErrInvalidTick, lower, upper, p.cfg.TickSpacing)
	}
	if p.cfg.StrictTickParity {
		if mod2(lower/p.cfg.TickSpacing) != 0 {
			return fmt.Errorf("%w: lower %d must be an even multiple of spacing", ErrInvalidTick, lower)
		}
		if mod2(upper/p.cfg.TickSpacing) != 1 {
			return fmt.Errorf("%w: upper %d must be an odd multiple of spacing", ErrInvalidTick, upper)
		}
	}
	return nil
}

// mod2 is the non-negative parity of n.
func mod2(n int64) int64 {
	return ((n % 2) + 2) % 2
}

// NearestTickBelow returns the highest initialized tick strictly below index.
// Callers use it to build insertion hints off the hot path.
func (p *Pool) NearestTickBelow(index int64) int64 {
	return p.ticks.AtOrBelow(index - 1).Index
}

// accrue integrates pending time-weighted reward and airdrop growth. It runs
// at the head of every mutating call, before any other effect, using the
// liquidity level that held during the elapsed interval.
func (p *Pool) accrue(now uint64) {
	p.reward.accrue(now, p.liquidity)
	p.airdrop[0].accrue(now, p.liquidity)
	p.airdrop[1].accrue(now, p.liquidity)
}

// Touch integrates pending reward accrual without any other effect.
func (p *Pool) Touch(now uint64) {
	p.accrue(now)
}

// getOrCreateTick returns the tick at index, inserting and seeding it when it
// is not yet initialized. A freshly created tick at or below the current tick
// is seeded with the current global growth values so "outside" is well-defined
// from its own point of view; ticks above start at zero.
func (p *Pool) getOrCreateTick(index int64, hintPrev int64) (*ticklist.Tick, error) {
	if t, ok := p.ticks.Get(index); ok {
		return t, nil
	}
	t, err := p.ticks.Insert(index, hintPrev)
	if err != nil {
		return nil, err
	}
	if index <= p.currentTick {
		t.FeeGrowthOutside0.Set(p.feeGrowthGlobal0)
		t.FeeGrowthOutside1.Set(p.feeGrowthGlobal1)
		t.RewardGrowthOutside.Set(p.reward.growthGlobal)
		t.AirdropGrowthOutside0.Set(p.airdrop[0].growthGlobal)
		t.AirdropGrowthOutside1.Set(p.airdrop[1].growthGlobal)
	}
	return t, nil
}

// pruneTick drops a boundary tick whose gross liquidity returned to zero.
func (p *Pool) pruneTick(t *ticklist.Tick) {
	if t.Sentinel() {
		return
	}
	if t.LiquidityGross.Sign() == 0 {
		_ = p.ticks.Remove(t.Index)
	}
}

// PositionKey identifies a position by owner and range; repeated deposits
// into the same range merge into one position.
type PositionKey struct {
	Owner common.Address
	Lower int64
	Upper int64
}
