// Package pooldiff computes structural diffs between two pool snapshots.
// The output is JSON-friendly so scenario runs can log exactly what each
// operation changed.
package pooldiff

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"github.com/defistate/clamm-engine-go/pool"
	"github.com/defistate/clamm-engine-go/pool/ticklist"
)

// TickState is the comparable view of one initialized tick.
type TickState struct {
	Index          int64    `json:"index"`
	LiquidityGross *big.Int `json:"liquidityGross"`
	LiquidityNet   *big.Int `json:"liquidityNet"`
}

// Diff summarizes changes between two snapshots of the same pool.
type Diff struct {
	OldSqrtPriceX96 *big.Int `json:"oldSqrtPriceX96,omitempty"`
	NewSqrtPriceX96 *big.Int `json:"newSqrtPriceX96,omitempty"`

	OldTick *int64 `json:"oldTick,omitempty"`
	NewTick *int64 `json:"newTick,omitempty"`

	OldLiquidity *big.Int `json:"oldLiquidity,omitempty"`
	NewLiquidity *big.Int `json:"newLiquidity,omitempty"`

	// Accumulator deltas are wrapping differences, new minus old mod 2^256.
	FeeGrowthDelta0X128 *uint256.Int `json:"feeGrowthDelta0X128,omitempty"`
	FeeGrowthDelta1X128 *uint256.Int `json:"feeGrowthDelta1X128,omitempty"`

	TicksAdded   []TickState `json:"ticksAdded,omitempty"`
	TicksUpdated []TickState `json:"ticksUpdated,omitempty"`
	TicksRemoved []int64     `json:"ticksRemoved,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d *Diff) IsEmpty() bool {
	return d.OldSqrtPriceX96 == nil && d.OldTick == nil && d.OldLiquidity == nil &&
		d.FeeGrowthDelta0X128 == nil && d.FeeGrowthDelta1X128 == nil &&
		len(d.TicksAdded) == 0 && len(d.TicksUpdated) == 0 && len(d.TicksRemoved) == 0
}

func tickChanged(before, after TickState) bool {
	if before.LiquidityGross.Cmp(after.LiquidityGross) != 0 {
		return true
	}
	if before.LiquidityNet.Cmp(after.LiquidityNet) != 0 {
		return true
	}
	return false
}

func collectTicks(l *ticklist.List) map[int64]TickState {
	out := make(map[int64]TickState, l.Len())
	l.Ascend(func(t *ticklist.Tick) bool {
		if t.Sentinel() && t.LiquidityGross.Sign() == 0 {
			return true
		}
		out[t.Index] = TickState{
			Index:          t.Index,
			LiquidityGross: new(big.Int).Set(t.LiquidityGross),
			LiquidityNet:   new(big.Int).Set(t.LiquidityNet),
		}
		return true
	})
	return out
}

// Compute diffs two snapshots of the same pool. Both arguments are read-only.
func Compute(before, after *pool.Pool) *Diff {
	d := &Diff{}

	if before.SqrtPriceX96().Cmp(after.SqrtPriceX96()) != 0 {
		d.OldSqrtPriceX96 = before.SqrtPriceX96()
		d.NewSqrtPriceX96 = after.SqrtPriceX96()
	}
	if before.CurrentTick() != after.CurrentTick() {
		oldTick, newTick := before.CurrentTick(), after.CurrentTick()
		d.OldTick, d.NewTick = &oldTick, &newTick
	}
	if before.Liquidity().Cmp(after.Liquidity()) != 0 {
		d.OldLiquidity = before.Liquidity()
		d.NewLiquidity = after.Liquidity()
	}

	oldFee0, oldFee1 := before.FeeGrowthGlobal()
	newFee0, newFee1 := after.FeeGrowthGlobal()
	if !oldFee0.Eq(newFee0) {
		d.FeeGrowthDelta0X128 = new(uint256.Int).Sub(newFee0, oldFee0)
	}
	if !oldFee1.Eq(newFee1) {
		d.FeeGrowthDelta1X128 = new(uint256.Int).Sub(newFee1, oldFee1)
	}

	oldTicks := collectTicks(before.Ticks())
	newTicks := collectTicks(after.Ticks())

	for index, newState := range newTicks {
		oldState, exists := oldTicks[index]
		if !exists {
			d.TicksAdded = append(d.TicksAdded, newState)
			continue
		}
		if tickChanged(oldState, newState) {
			d.TicksUpdated = append(d.TicksUpdated, newState)
		}
	}
	for index := range oldTicks {
		if _, exists := newTicks[index]; !exists {
			d.TicksRemoved = append(d.TicksRemoved, index)
		}
	}

	sort.Slice(d.TicksAdded, func(i, j int) bool { return d.TicksAdded[i].Index < d.TicksAdded[j].Index })
	sort.Slice(d.TicksUpdated, func(i, j int) bool { return d.TicksUpdated[i].Index < d.TicksUpdated[j].Index })
	sort.Slice(d.TicksRemoved, func(i, j int) bool { return d.TicksRemoved[i] < d.TicksRemoved[j] })

	return d
}
