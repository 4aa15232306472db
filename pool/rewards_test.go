package pool

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rateX128 builds an emission rate of n whole tokens per second.
func rateX128(n uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(n), 128)
}

func collectReward(t *testing.T, p *Pool, owner PositionKey, now uint64) *big.Int {
	t.Helper()
	_, _, reward, err := p.Collect(CollectParams{Owner: owner.Owner, Lower: owner.Lower, Upper: owner.Upper, Now: now})
	require.NoError(t, err)
	return reward
}

func TestRewardSingleProvider(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 1000, 0)

	p.DepositReward(0, rateX128(10))

	reward := collectReward(t, p, PositionKey{Owner: alice, Lower: -100, Upper: 100}, 100)
	assert.Equal(t, "1000", reward.String(), "10 tokens/sec over 100 sec")
}

func TestRewardEqualSplit(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 1000, 0)
	mustAddLiquidity(t, p, bob, -100, 100, 1000, 0)

	p.DepositReward(0, rateX128(10))

	rewardAlice := collectReward(t, p, PositionKey{Owner: alice, Lower: -100, Upper: 100}, 100)
	rewardBob := collectReward(t, p, PositionKey{Owner: bob, Lower: -100, Upper: 100}, 100)

	assert.Equal(t, "500", rewardAlice.String())
	assert.Equal(t, "500", rewardBob.String())
}

func TestRewardProportionalSplit(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 1000, 0)
	mustAddLiquidity(t, p, bob, -100, 100, 2000, 0)

	p.DepositReward(0, rateX128(3))

	rewardAlice := collectReward(t, p, PositionKey{Owner: alice, Lower: -100, Upper: 100}, 1000)
	rewardBob := collectReward(t, p, PositionKey{Owner: bob, Lower: -100, Upper: 100}, 1000)

	assert.Equal(t, "1000", rewardAlice.String(), "one third of 3000")
	assert.Equal(t, "2000", rewardBob.String(), "two thirds of 3000")
}

func TestRewardOutOfRangeEarnsNothing(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 1000, 0)
	// Bob's range sits entirely above the price and stays out of range.
	mustAddLiquidity(t, p, bob, 200, 300, 1000, 0)

	p.DepositReward(0, rateX128(10))

	rewardAlice := collectReward(t, p, PositionKey{Owner: alice, Lower: -100, Upper: 100}, 100)
	rewardBob := collectReward(t, p, PositionKey{Owner: bob, Lower: 200, Upper: 300}, 100)

	assert.Equal(t, "1000", rewardAlice.String(), "in-range provider takes the full emission")
	assert.Equal(t, "0", rewardBob.String())
}

// Emission while nobody is in range is deferred, not burned: the first
// provider to enter the range picks up the carried seconds.
func TestRewardZeroLiquidityCarry(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	p.DepositReward(0, rateX128(5))

	// 100 seconds pass with an empty pool.
	mustAddLiquidity(t, p, alice, -100, 100, 1000, 100)

	reward := collectReward(t, p, PositionKey{Owner: alice, Lower: -100, Upper: 100}, 200)
	assert.Equal(t, "1000", reward.String(), "500 carried plus 500 live")
}

func TestRewardRateReplacement(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 100, 0)

	p.DepositReward(0, rateX128(10))
	// Accrues 10*100 at the old rate, then switches.
	p.DepositReward(100, rateX128(1))

	reward := collectReward(t, p, PositionKey{Owner: alice, Lower: -100, Upper: 100}, 200)
	assert.Equal(t, "1100", reward.String(), "1000 at the old rate, 100 at the new")
	assert.True(t, p.RewardRateX128().Eq(rateX128(1)))
}

func TestRewardRangeEntryAndExit(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	// Wide backstop so the pool always has in-range liquidity.
	mustAddLiquidity(t, p, alice, -10000, 10000, 1000, 0)
	mustAddLiquidity(t, p, bob, -100, 100, 1000, 0)

	p.DepositReward(0, rateX128(10))

	// Push the price out of bob's range at t=100; alice keeps earning alone.
	_, _, err := p.Swap(SwapParams{
		ZeroForOne:      true,
		AmountSpecified: big.NewInt(100_000),
		Now:             100,
	})
	require.NoError(t, err)
	require.True(t, p.CurrentTick() < -100, "swap must push the price below bob's range, tick %d", p.CurrentTick())

	rewardBob := collectReward(t, p, PositionKey{Owner: bob, Lower: -100, Upper: 100}, 200)

	// Bob earned half of the first 100 seconds and nothing after.
	assert.Equal(t, "500", rewardBob.String())
}

func TestAirdropSingleEpoch(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 1000, 0)

	require.NoError(t, p.DepositAirdrop(0, 0, big.NewInt(1000), 100))

	t.Run("mid epoch", func(t *testing.T) {
		amount0, _, err := p.PositionFees(PositionKey{Owner: alice, Lower: -100, Upper: 100})
		require.NoError(t, err)
		assert.Zero(t, amount0.Sign(), "nothing accrued before time passes")
	})

	t.Run("emission stops at the epoch end", func(t *testing.T) {
		// Collect far past the end: only the scheduled 1000 exist.
		amount0, amount1, _, err := p.Collect(CollectParams{Owner: alice, Lower: -100, Upper: 100, Now: 10_000})
		require.NoError(t, err)
		assert.Equal(t, "1000", amount0.String())
		assert.Zero(t, amount1.Sign())
	})
}

func TestAirdropPaysInPoolTokens(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 100, 0)

	require.NoError(t, p.DepositAirdrop(0, 0, big.NewInt(500), 100))
	require.NoError(t, p.DepositAirdrop(0, 1, big.NewInt(800), 100))

	amount0, amount1, reward, err := p.Collect(CollectParams{Owner: alice, Lower: -100, Upper: 100, Now: 100})
	require.NoError(t, err)
	assert.Equal(t, "500", amount0.String())
	assert.Equal(t, "800", amount1.String())
	assert.Zero(t, reward.Sign(), "airdrops do not touch the reward token")
}

// Depositing into a live epoch folds the undistributed remainder forward.
func TestAirdropTopUp(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 1000, 0)

	// 1000 over [0, 100): at t=50 half is distributed, half remains.
	require.NoError(t, p.DepositAirdrop(0, 0, big.NewInt(1000), 100))
	require.NoError(t, p.DepositAirdrop(50, 0, big.NewInt(500), 150))

	start, end := p.AirdropEpoch(0)
	assert.Equal(t, uint64(50), start)
	assert.Equal(t, uint64(150), end)

	amount0, _, _, err := p.Collect(CollectParams{Owner: alice, Lower: -100, Upper: 100, Now: 150})
	require.NoError(t, err)
	assert.Equal(t, "1500", amount0.String(), "both deposits fully distributed")
}

func TestAirdropValidation(t *testing.T) {
	p := newTestPool(t, defaultConfig())

	assert.ErrorIs(t, p.DepositAirdrop(100, 0, big.NewInt(1000), 100), ErrEpochInvalid)
	assert.ErrorIs(t, p.DepositAirdrop(100, 0, big.NewInt(1000), 50), ErrEpochInvalid)
	assert.ErrorIs(t, p.DepositAirdrop(0, 0, big.NewInt(0), 100), ErrAmountZero)
	assert.Error(t, p.DepositAirdrop(0, 2, big.NewInt(1000), 100))
}

// Airdrops pay out of the reserves, so the deposit must fund them: a full
// distribution cycle returns the reserves exactly to their pre-deposit level.
func TestAirdropDepositFundsReserves(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	spent0, spent1 := mustAddLiquidity(t, p, alice, -100, 100, 100, 0)

	require.NoError(t, p.DepositAirdrop(0, 0, big.NewInt(100_000), 100))

	reserve0, reserve1 := p.Reserves()
	assert.Zero(t, reserve0.Cmp(new(big.Int).Add(spent0, big.NewInt(100_000))), "deposit credits the paying reserve")
	assert.Zero(t, reserve1.Cmp(spent1))

	amount0, _, _, err := p.Collect(CollectParams{Owner: alice, Lower: -100, Upper: 100, Now: 200})
	require.NoError(t, err)
	assert.Equal(t, "100000", amount0.String())

	reserve0, _ = p.Reserves()
	assert.Zero(t, reserve0.Cmp(spent0), "payout draws down exactly the deposit")
	assert.True(t, reserve0.Sign() >= 0, "reserves never go negative")
}

func TestPositionRewardAmountView(t *testing.T) {
	p := newTestPool(t, defaultConfig())
	mustAddLiquidity(t, p, alice, -100, 100, 1000, 0)
	p.DepositReward(0, rateX128(10))

	key := PositionKey{Owner: alice, Lower: -100, Upper: 100}

	projected, err := p.PositionRewardAmount(key, 100)
	require.NoError(t, err)
	assert.Equal(t, "1000", projected.String())

	// The view must not have accrued anything.
	assert.True(t, p.RewardGrowthGlobal().IsZero())

	// And a later projection still agrees with an actual collect.
	reward := collectReward(t, p, key, 100)
	assert.Zero(t, reward.Cmp(projected))
}
