package ticklist

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/clamm-engine-go/pool/math/tickmath"
)

func TestNew(t *testing.T) {
	l := New()
	assert.Equal(t, 2, l.Len())

	head, tail := l.Head(), l.Tail()
	assert.Equal(t, tickmath.MinTick, head.Index)
	assert.Equal(t, tickmath.MaxTick, tail.Index)
	assert.True(t, head.Sentinel())
	assert.True(t, tail.Sentinel())
	assert.Same(t, tail, head.Next())
	assert.Same(t, head, tail.Prev())
}

func TestInsert(t *testing.T) {
	t.Run("between sentinels", func(t *testing.T) {
		l := New()
		tick, err := l.Insert(100, tickmath.MinTick)
		require.NoError(t, err)
		assert.Equal(t, int64(100), tick.Index)
		assert.Same(t, l.Head(), tick.Prev())
		assert.Same(t, l.Tail(), tick.Next())
		assert.Equal(t, 3, l.Len())
	})

	t.Run("ordered chain", func(t *testing.T) {
		l := New()
		_, err := l.Insert(-200, tickmath.MinTick)
		require.NoError(t, err)
		_, err = l.Insert(300, -200)
		require.NoError(t, err)
		mid, err := l.Insert(50, -200)
		require.NoError(t, err)

		assert.Equal(t, int64(-200), mid.Prev().Index)
		assert.Equal(t, int64(300), mid.Next().Index)
	})

	t.Run("duplicate", func(t *testing.T) {
		l := New()
		_, err := l.Insert(100, tickmath.MinTick)
		require.NoError(t, err)
		_, err = l.Insert(100, tickmath.MinTick)
		assert.ErrorIs(t, err, ErrTickExists)
	})

	t.Run("stale hint fails closed", func(t *testing.T) {
		l := New()
		_, err := l.Insert(100, tickmath.MinTick)
		require.NoError(t, err)

		// MinTick is no longer the predecessor of 200.
		_, err = l.Insert(200, tickmath.MinTick)
		assert.ErrorIs(t, err, ErrInvalidTickHint)
		assert.Equal(t, 3, l.Len())
	})

	t.Run("hint not initialized", func(t *testing.T) {
		l := New()
		_, err := l.Insert(200, 100)
		assert.ErrorIs(t, err, ErrInvalidTickHint)
	})

	t.Run("hint after insertion point", func(t *testing.T) {
		l := New()
		_, err := l.Insert(100, tickmath.MinTick)
		require.NoError(t, err)
		_, err = l.Insert(50, 100)
		assert.ErrorIs(t, err, ErrInvalidTickHint)
	})
}

func TestValidateInsert(t *testing.T) {
	l := New()
	_, err := l.Insert(100, tickmath.MinTick)
	require.NoError(t, err)

	assert.NoError(t, l.ValidateInsert(50, tickmath.MinTick))
	assert.ErrorIs(t, l.ValidateInsert(100, tickmath.MinTick), ErrTickExists)
	assert.ErrorIs(t, l.ValidateInsert(200, tickmath.MinTick), ErrInvalidTickHint)
	assert.NoError(t, l.ValidateInsert(200, 100))

	// Validation must not mutate.
	assert.Equal(t, 3, l.Len())
}

func TestRemove(t *testing.T) {
	t.Run("empty tick", func(t *testing.T) {
		l := New()
		_, err := l.Insert(100, tickmath.MinTick)
		require.NoError(t, err)

		require.NoError(t, l.Remove(100))
		assert.Equal(t, 2, l.Len())
		assert.Same(t, l.Tail(), l.Head().Next())
	})

	t.Run("not initialized", func(t *testing.T) {
		l := New()
		assert.ErrorIs(t, l.Remove(100), ErrTickNotFound)
	})

	t.Run("non-empty tick", func(t *testing.T) {
		l := New()
		tick, err := l.Insert(100, tickmath.MinTick)
		require.NoError(t, err)
		tick.LiquidityGross.SetInt64(5)

		assert.ErrorIs(t, l.Remove(100), ErrTickNotEmpty)
	})

	t.Run("sentinels are permanent", func(t *testing.T) {
		l := New()
		assert.ErrorIs(t, l.Remove(tickmath.MinTick), ErrTickSentinel)
		assert.ErrorIs(t, l.Remove(tickmath.MaxTick), ErrTickSentinel)
	})
}

func TestAtOrBelowAndAbove(t *testing.T) {
	l := New()
	for _, idx := range []int64{-500, -100, 0, 250} {
		_, err := l.Insert(idx, l.AtOrBelow(idx).Index)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(-100), l.AtOrBelow(-100).Index)
	assert.Equal(t, int64(-100), l.AtOrBelow(-1).Index)
	assert.Equal(t, int64(0), l.AtOrBelow(100).Index)
	assert.Equal(t, tickmath.MinTick, l.AtOrBelow(-600).Index)
	assert.Equal(t, int64(250), l.AtOrBelow(tickmath.MaxTick-1).Index)

	assert.Equal(t, int64(0), l.Above(-100).Index)
	assert.Equal(t, int64(250), l.Above(0).Index)
	assert.Equal(t, tickmath.MaxTick, l.Above(250).Index)
	assert.Equal(t, int64(-500), l.Above(tickmath.MinTick).Index)
}

func TestClone(t *testing.T) {
	l := New()
	tick, err := l.Insert(100, tickmath.MinTick)
	require.NoError(t, err)
	tick.LiquidityGross.SetInt64(77)
	tick.LiquidityNet.SetInt64(-77)
	tick.FeeGrowthOutside0.SetUint64(12345)

	clone := l.Clone()
	require.Equal(t, l.Len(), clone.Len())

	cloned, ok := clone.Get(100)
	require.True(t, ok)
	assert.Equal(t, "77", cloned.LiquidityGross.String())
	assert.Equal(t, "-77", cloned.LiquidityNet.String())
	assert.Equal(t, uint64(12345), cloned.FeeGrowthOutside0.Uint64())

	// Mutating the clone leaves the original untouched.
	cloned.LiquidityGross.SetInt64(0)
	cloned.FeeGrowthOutside0.SetUint64(0)
	assert.Equal(t, "77", tick.LiquidityGross.String())
	assert.Equal(t, uint64(12345), tick.FeeGrowthOutside0.Uint64())

	// Clone links are internally consistent.
	require.NoError(t, clone.Remove(100))
	assert.Equal(t, 2, clone.Len())
	assert.Equal(t, 3, l.Len())
}

func TestAscend(t *testing.T) {
	l := New()
	for _, idx := range []int64{10, 20, 30} {
		_, err := l.Insert(idx, l.AtOrBelow(idx).Index)
		require.NoError(t, err)
	}

	var seen []int64
	l.Ascend(func(tick *Tick) bool {
		seen = append(seen, tick.Index)
		return true
	})
	assert.Equal(t, []int64{tickmath.MinTick, 10, 20, 30, tickmath.MaxTick}, seen)

	seen = seen[:0]
	l.Ascend(func(tick *Tick) bool {
		seen = append(seen, tick.Index)
		return tick.Index < 20
	})
	assert.Equal(t, []int64{tickmath.MinTick, 10, 20}, seen)
}

func TestSentinelLiquidity(t *testing.T) {
	l := New()
	head := l.Head()
	head.LiquidityGross.Set(big.NewInt(1000))
	head.LiquidityNet.Set(big.NewInt(1000))

	// Sentinels can carry liquidity but still refuse removal.
	assert.ErrorIs(t, l.Remove(tickmath.MinTick), ErrTickSentinel)
}
