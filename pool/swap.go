package pool

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/clamm-engine-go/pool/math/liquiditymath"
	"github.com/defistate/clamm-engine-go/pool/math/swapmath"
	"github.com/defistate/clamm-engine-go/pool/math/tickmath"
	"github.com/defistate/clamm-engine-go/pool/ticklist"
)

// ErrInvalidPriceLimit rejects price limits outside the reachable range or on
// the wrong side of the current price.
var ErrInvalidPriceLimit = errors.New("invalid sqrt price limit")

// SwapParams describes one swap. AmountSpecified > 0 requests exact input,
// < 0 exact output. SqrtPriceLimitX96 is optional; nil means the direction
// extreme. AmountLimit is the slippage guard: minimum output for exact-input
// swaps, maximum input for exact-output swaps.
type SwapParams struct {
	ZeroForOne        bool
	AmountSpecified   *big.Int
	SqrtPriceLimitX96 *big.Int
	AmountLimit       *big.Int
	Now               uint64
}

// swapState accumulates one swap's effects so the pool mutates only on
// commit. A failed swap leaves the pool untouched.
type swapState struct {
	remaining   *big.Int
	calculated  *big.Int
	sqrtPrice   *big.Int
	tick        int64
	liquidity   *big.Int
	feeGrowth   *uint256.Int // running growth of the input token
	protocolFee *big.Int
	crossings   []crossing

	sqrtPriceStart *big.Int
	sqrtPriceNext  *big.Int
	target         *big.Int
	stepIn         *big.Int
	stepOut        *big.Int
	stepFee        *big.Int
	temp           *big.Int
}

// crossing records a boundary tick crossed mid-swap together with the input
// token's fee growth at that moment; flips are applied at commit.
type crossing struct {
	tick           *ticklist.Tick
	feeInputGrowth *uint256.Int
}

// Swap executes an exact-input or exact-output swap against the pool. It
// returns the realized input (fee included) and output amounts.
func (p *Pool) Swap(params SwapParams) (amountIn, amountOut *big.Int, err error) {
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return nil, nil, ErrAmountZero
	}

	// Time elapsed before this swap belongs to the pre-swap liquidity level.
	p.accrue(params.Now)

	limit, err := p.swapPriceLimit(params)
	if err != nil {
		return nil, nil, err
	}

	exactInput := params.AmountSpecified.Sign() > 0
	var inputFeeGrowth *uint256.Int
	if params.ZeroForOne {
		inputFeeGrowth = p.feeGrowthGlobal0
	} else {
		inputFeeGrowth = p.feeGrowthGlobal1
	}

	state := &swapState{
		remaining:      new(big.Int).Set(params.AmountSpecified),
		calculated:     new(big.Int),
		sqrtPrice:      new(big.Int).Set(p.sqrtPriceX96),
		tick:           p.currentTick,
		liquidity:      new(big.Int).Set(p.liquidity),
		feeGrowth:      new(uint256.Int).Set(inputFeeGrowth),
		protocolFee:    new(big.Int),
		sqrtPriceStart: new(big.Int),
		sqrtPriceNext:  new(big.Int),
		target:         new(big.Int),
		stepIn:         new(big.Int),
		stepOut:        new(big.Int),
		stepFee:        new(big.Int),
		temp:           new(big.Int),
	}

	// Cursor into the tick list for the direction of travel.
	var node *ticklist.Tick
	if params.ZeroForOne {
		node = p.ticks.AtOrBelow(state.tick)
	} else {
		node = p.ticks.Above(state.tick)
	}

	for state.remaining.Sign() != 0 && state.sqrtPrice.Cmp(limit) != 0 {
		state.sqrtPriceStart.Set(state.sqrtPrice)

		if err := tickmath.SqrtRatioAtTick(state.sqrtPriceNext, node.Index); err != nil {
			return nil, nil, err
		}
		if (params.ZeroForOne && state.sqrtPriceNext.Cmp(limit) < 0) ||
			(!params.ZeroForOne && state.sqrtPriceNext.Cmp(limit) > 0) {
			state.target.Set(limit)
		} else {
			state.target.Set(state.sqrtPriceNext)
		}

		if state.liquidity.Sign() == 0 {
			// Nothing priced in this span: jump straight to the step
			// boundary with zero amounts.
			state.sqrtPrice.Set(state.target)
		} else {
			if err := p.swapStep(state); err != nil {
				return nil, nil, err
			}
			if exactInput {
				state.remaining.Sub(state.remaining, state.temp.Add(state.stepIn, state.stepFee))
				state.calculated.Add(state.calculated, state.stepOut)
			} else {
				state.remaining.Add(state.remaining, state.stepOut)
				state.calculated.Add(state.calculated, state.temp.Add(state.stepIn, state.stepFee))
			}
		}

		if state.sqrtPrice.Cmp(state.sqrtPriceNext) == 0 {
			// Boundary reached: cross the tick.
			if node.Sentinel() {
				break
			}
			state.crossings = append(state.crossings, crossing{
				tick:           node,
				feeInputGrowth: new(uint256.Int).Set(state.feeGrowth),
			})

			net := state.temp.Set(node.LiquidityNet)
			if params.ZeroForOne {
				net.Neg(net)
			}
			if err := liquiditymath.AddDelta(state.liquidity, state.liquidity, net); err != nil {
				return nil, nil, err
			}

			if params.ZeroForOne {
				state.tick = node.Index - 1
				node = node.Prev()
			} else {
				state.tick = node.Index
				node = node.Next()
			}
		} else if state.sqrtPrice.Cmp(state.sqrtPriceStart) != 0 {
			if state.tick, err = tickmath.TickAtSqrtRatio(state.sqrtPrice); err != nil {
				return nil, nil, err
			}
		}
	}

	if exactInput {
		amountIn = new(big.Int).Sub(params.AmountSpecified, state.remaining)
		amountOut = new(big.Int).Set(state.calculated)
	} else {
		amountIn = new(big.Int).Set(state.calculated)
		amountOut = new(big.Int).Sub(state.remaining, params.AmountSpecified)
	}

	// A caller-chosen price limit makes a partial fill intentional; demand
	// left unserved for any other reason is a liquidity shortfall.
	if p.cfg.RejectUnservedDemand && state.remaining.Sign() != 0 &&
		(params.SqrtPriceLimitX96 == nil || state.sqrtPrice.Cmp(limit) != 0) {
		return nil, nil, ErrLiquidityInsufficient
	}
	if exactInput && params.AmountLimit != nil && amountOut.Cmp(params.AmountLimit) < 0 {
		return nil, nil, fmt.Errorf("%w: output %s below minimum %s", ErrTooLittleReceived, amountOut, params.AmountLimit)
	}
	if !exactInput && params.AmountLimit != nil && amountIn.Cmp(params.AmountLimit) > 0 {
		return nil, nil, fmt.Errorf("%w: input %s above maximum %s", ErrTooLittleAmountIn, amountIn, params.AmountLimit)
	}

	p.commitSwap(params.ZeroForOne, state, amountIn, amountOut)
	return amountIn, amountOut, nil
}

// swapStep runs one constant-liquidity step and folds its fee into the
// running accumulators: the protocol share by amount, the remainder into the
// input token's fee growth scaled by current liquidity.
func (p *Pool) swapStep(state *swapState) error {
	err := swapmath.ComputeStep(
		state.sqrtPrice, state.stepIn, state.stepOut, state.stepFee,
		state.sqrtPriceStart, state.target, state.liquidity, state.remaining,
		state.temp.SetUint64(p.cfg.SwapFeePpm),
	)
	if err != nil {
		return err
	}

	if state.stepFee.Sign() > 0 {
		protocolPart := new(big.Int).Mul(state.stepFee, new(big.Int).SetUint64(p.cfg.ProtocolFeePpm))
		protocolPart.Div(protocolPart, swapmath.FeeDenominator)
		state.protocolFee.Add(state.protocolFee, protocolPart)

		lpPart := new(big.Int).Sub(state.stepFee, protocolPart)
		if lpPart.Sign() > 0 && state.liquidity.Sign() > 0 {
			growth := new(big.Int).Lsh(lpPart, 128)
			growth.Div(growth, state.liquidity)
			delta, _ := uint256.FromBig(growth)
			state.feeGrowth.Add(state.feeGrowth, delta)
		}
	}
	return nil
}

// commitSwap applies the accumulated swap effects. Tick flips use the input
// token's fee growth recorded at each crossing; the other accumulators did
// not move during the swap.
func (p *Pool) commitSwap(zeroForOne bool, state *swapState, amountIn, amountOut *big.Int) {
	for _, c := range state.crossings {
		if zeroForOne {
			c.tick.FeeGrowthOutside0.Sub(c.feeInputGrowth, c.tick.FeeGrowthOutside0)
			c.tick.FeeGrowthOutside1.Sub(p.feeGrowthGlobal1, c.tick.FeeGrowthOutside1)
		} else {
			c.tick.FeeGrowthOutside0.Sub(p.feeGrowthGlobal0, c.tick.FeeGrowthOutside0)
			c.tick.FeeGrowthOutside1.Sub(c.feeInputGrowth, c.tick.FeeGrowthOutside1)
		}
		c.tick.RewardGrowthOutside.Sub(p.reward.growthGlobal, c.tick.RewardGrowthOutside)
		c.tick.AirdropGrowthOutside0.Sub(p.airdrop[0].growthGlobal, c.tick.AirdropGrowthOutside0)
		c.tick.AirdropGrowthOutside1.Sub(p.airdrop[1].growthGlobal, c.tick.AirdropGrowthOutside1)
	}

	p.sqrtPriceX96.Set(state.sqrtPrice)
	p.currentTick = state.tick
	p.liquidity.Set(state.liquidity)
	if zeroForOne {
		p.feeGrowthGlobal0.Set(state.feeGrowth)
	} else {
		p.feeGrowthGlobal1.Set(state.feeGrowth)
	}

	if zeroForOne {
		p.protocolFees0.Add(p.protocolFees0, state.protocolFee)
		p.reserve0.Add(p.reserve0, amountIn)
		p.reserve1.Sub(p.reserve1, amountOut)
	} else {
		p.protocolFees1.Add(p.protocolFees1, state.protocolFee)
		p.reserve1.Add(p.reserve1, amountIn)
		p.reserve0.Sub(p.reserve0, amountOut)
	}
}

// swapPriceLimit resolves and validates the price limit for a swap.
func (p *Pool) swapPriceLimit(params SwapParams) (*big.Int, error) {
	if params.SqrtPriceLimitX96 == nil {
		if params.ZeroForOne {
			return new(big.Int).Add(tickmath.MinSqrtRatio, big.NewInt(1)), nil
		}
		return new(big.Int).Sub(tickmath.MaxSqrtRatio, big.NewInt(1)), nil
	}

	limit := new(big.Int).Set(params.SqrtPriceLimitX96)
	if params.ZeroForOne {
		if limit.Cmp(p.sqrtPriceX96) >= 0 || limit.Cmp(tickmath.MinSqrtRatio) <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPriceLimit, limit)
		}
	} else {
		if limit.Cmp(p.sqrtPriceX96) <= 0 || limit.Cmp(tickmath.MaxSqrtRatio) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPriceLimit, limit)
		}
	}
	return limit, nil
}
