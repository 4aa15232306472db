package pooldiff

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/clamm-engine-go/pool"
)

var owner = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.New(pool.Config{SwapFeePpm: 3000, TickSpacing: 10}, new(big.Int).Lsh(big.NewInt(1), 96), 0)
	require.NoError(t, err)
	return p
}

func mint(t *testing.T, p *pool.Pool, lower, upper int64) {
	t.Helper()
	_, _, _, err := p.Mint(pool.MintParams{
		Owner:          owner,
		Lower:          lower,
		Upper:          upper,
		Amount0Desired: big.NewInt(1_000_000),
		Amount1Desired: big.NewInt(1_000_000),
		LowerHint:      p.NearestTickBelow(lower),
		UpperHint:      p.NearestTickBelow(upper),
	})
	require.NoError(t, err)
}

func TestComputeEmpty(t *testing.T) {
	p := newTestPool(t)
	mint(t, p, -100, 100)

	d := Compute(p.Snapshot(), p.Snapshot())
	assert.True(t, d.IsEmpty())
}

func TestComputeMint(t *testing.T) {
	p := newTestPool(t)
	before := p.Snapshot()
	mint(t, p, -100, 100)

	d := Compute(before, p)
	require.False(t, d.IsEmpty())

	require.Len(t, d.TicksAdded, 2)
	assert.Equal(t, int64(-100), d.TicksAdded[0].Index)
	assert.Equal(t, int64(100), d.TicksAdded[1].Index)
	assert.Equal(t, 1, d.TicksAdded[0].LiquidityNet.Sign())
	assert.Equal(t, -1, d.TicksAdded[1].LiquidityNet.Sign())
	assert.Empty(t, d.TicksUpdated)
	assert.Empty(t, d.TicksRemoved)

	// An in-range mint raises active liquidity but moves no price.
	require.NotNil(t, d.NewLiquidity)
	assert.Equal(t, 1, d.NewLiquidity.Sign())
	assert.Zero(t, d.OldLiquidity.Sign())
	assert.Nil(t, d.NewSqrtPriceX96)
	assert.Nil(t, d.NewTick)
}

func TestComputeBurnRemovesTicks(t *testing.T) {
	p := newTestPool(t)
	mint(t, p, -100, 100)
	before := p.Snapshot()

	liquidity := p.Liquidity()
	_, _, err := p.Burn(pool.BurnParams{Owner: owner, Lower: -100, Upper: 100, Liquidity: liquidity})
	require.NoError(t, err)

	d := Compute(before, p)
	assert.Equal(t, []int64{-100, 100}, d.TicksRemoved)
	assert.Empty(t, d.TicksAdded)
}

func TestComputeSwap(t *testing.T) {
	p := newTestPool(t)
	mint(t, p, -10000, 10000)
	before := p.Snapshot()

	_, _, err := p.Swap(pool.SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(100_000)})
	require.NoError(t, err)

	d := Compute(before, p)
	require.NotNil(t, d.NewSqrtPriceX96)
	assert.True(t, d.NewSqrtPriceX96.Cmp(d.OldSqrtPriceX96) < 0, "selling token0 lowers the price")
	require.NotNil(t, d.FeeGrowthDelta0X128)
	assert.False(t, d.FeeGrowthDelta0X128.IsZero())
	assert.Nil(t, d.FeeGrowthDelta1X128)
	assert.Nil(t, d.OldLiquidity, "no tick crossed inside one wide range")
}

func TestComputeSecondMintUpdatesTick(t *testing.T) {
	p := newTestPool(t)
	mint(t, p, -100, 100)
	before := p.Snapshot()
	mint(t, p, -100, 100)

	d := Compute(before, p)
	assert.Empty(t, d.TicksAdded)
	require.Len(t, d.TicksUpdated, 2)
	assert.Equal(t, int64(-100), d.TicksUpdated[0].Index)
	assert.Equal(t, int64(100), d.TicksUpdated[1].Index)
}
