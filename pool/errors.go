package pool

import "errors"

var (
	// ErrInvalidTick covers out-of-range, misaligned, and wrong-parity ticks.
	ErrInvalidTick = errors.New("invalid tick")
	// ErrLiquidityZero means a mint would add zero liquidity.
	ErrLiquidityZero = errors.New("mint computes zero liquidity")
	// ErrOverflow means an amount exceeds what the position or an accumulator holds.
	ErrOverflow = errors.New("amount overflow")
	// ErrLiquidityInsufficient means swap demand cannot be served at any reachable price.
	ErrLiquidityInsufficient = errors.New("insufficient liquidity for swap")
	// ErrTooLittleReceived means a caller-specified minimum-output guard was violated.
	ErrTooLittleReceived = errors.New("too little received")
	// ErrTooLittleAmountIn means an exact-output swap would exceed the input cap.
	ErrTooLittleAmountIn = errors.New("amount in exceeds limit")
	// ErrNoPosition means the owner holds no position over the given range.
	ErrNoPosition = errors.New("position not found")
	// ErrAmountZero rejects zero-amount swaps and flashes.
	ErrAmountZero = errors.New("amount must be non-zero")
	// ErrEpochInvalid rejects airdrop epochs that do not extend past now.
	ErrEpochInvalid = errors.New("airdrop epoch must end in the future")
)
