package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/clamm-engine-go/pool/math/swapmath"
)

// Flash settles a completed borrow-and-repay of amount0/amount1: the caller
// has returned the principal plus the pool fee on each amount, and this call
// books the fees. The LP share lands in fee growth, the protocol share in the
// protocol accrual, and reserves rise by exactly the total fee.
func (p *Pool) Flash(now uint64, amount0, amount1 *big.Int) (fee0, fee1 *big.Int, err error) {
	p.accrue(now)

	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return nil, nil, ErrAmountZero
	}
	if p.liquidity.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: flash requires in-range liquidity", ErrLiquidityInsufficient)
	}

	fee0 = flashFee(amount0, p.cfg.SwapFeePpm)
	fee1 = flashFee(amount1, p.cfg.SwapFeePpm)

	p.bookFee(fee0, p.feeGrowthGlobal0, p.protocolFees0)
	p.bookFee(fee1, p.feeGrowthGlobal1, p.protocolFees1)

	p.reserve0.Add(p.reserve0, fee0)
	p.reserve1.Add(p.reserve1, fee1)
	return fee0, fee1, nil
}

// flashFee is ceil(amount * feePpm / 1e6); the borrower's obligation rounds up.
func flashFee(amount *big.Int, feePpm uint64) *big.Int {
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(feePpm))
	rem := new(big.Int)
	fee.DivMod(fee, swapmath.FeeDenominator, rem)
	if rem.Sign() > 0 {
		fee.Add(fee, big.NewInt(1))
	}
	return fee
}

// bookFee splits one fee between the protocol accrual and LP fee growth.
func (p *Pool) bookFee(fee *big.Int, growth *uint256.Int, protocolAccrued *big.Int) {
	if fee.Sign() == 0 {
		return
	}
	protocolPart := new(big.Int).Mul(fee, new(big.Int).SetUint64(p.cfg.ProtocolFeePpm))
	protocolPart.Div(protocolPart, swapmath.FeeDenominator)
	protocolAccrued.Add(protocolAccrued, protocolPart)

	lpPart := new(big.Int).Sub(fee, protocolPart)
	if lpPart.Sign() > 0 && p.liquidity.Sign() > 0 {
		delta := new(big.Int).Lsh(lpPart, 128)
		delta.Div(delta, p.liquidity)
		d, _ := uint256.FromBig(delta)
		growth.Add(growth, d)
	}
}
