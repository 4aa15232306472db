// Package scenario replays scripted operation sequences against a pool
// system and records per-step results as JSON lines.
package scenario

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
)

// Amount is a decimal big integer in JSON.
type Amount struct {
	*big.Int
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Int == nil {
		return []byte(`"0"`), nil
	}
	return json.Marshal(a.Int.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	a.Int = v
	return nil
}

// PoolSpec describes the pool a scenario runs against.
type PoolSpec struct {
	SwapFeePpm           int64  `json:"swapFeePpm"`
	ProtocolFeePpm       int64  `json:"protocolFeePpm,omitempty"`
	TickSpacing          int64  `json:"tickSpacing"`
	StrictTickParity     bool   `json:"strictTickParity,omitempty"`
	RejectUnservedDemand bool   `json:"rejectUnservedDemand,omitempty"`
	SqrtPriceX96         Amount `json:"sqrtPriceX96"`
	StartTime            uint64 `json:"startTime"`
}

// Step is one scripted operation. Kind selects which of the optional field
// groups applies.
type Step struct {
	Kind string `json:"kind"`
	Time uint64 `json:"time"`

	// Actors are short labels resolved to deterministic addresses.
	Actor    string `json:"actor,omitempty"`
	Position string `json:"position,omitempty"`

	Lower *int64 `json:"lower,omitempty"`
	Upper *int64 `json:"upper,omitempty"`

	Amount0   Amount `json:"amount0,omitempty"`
	Amount1   Amount `json:"amount1,omitempty"`
	Liquidity Amount `json:"liquidity,omitempty"`

	ZeroForOne      bool   `json:"zeroForOne,omitempty"`
	AmountSpecified Amount `json:"amountSpecified,omitempty"`
	PriceLimitX96   Amount `json:"priceLimitX96,omitempty"`
	// AmountLimit is the slippage guard: minimum output for exact-input
	// swaps, maximum input for exact-output swaps.
	AmountLimit Amount `json:"amountLimit,omitempty"`

	Amount   Amount `json:"amount,omitempty"`
	Token    int    `json:"token,omitempty"`
	Duration uint64 `json:"duration,omitempty"`
	EndTime  uint64 `json:"endTime,omitempty"`

	// ExpectError names the error substring a step is expected to fail with.
	ExpectError string `json:"expectError,omitempty"`
}

// Scenario is a pool spec plus an ordered step script.
type Scenario struct {
	Name  string   `json:"name"`
	Pool  PoolSpec `json:"pool"`
	Seed  Amount   `json:"seedBalance,omitempty"`
	Steps []Step   `json:"steps"`
}

// Load reads and decodes a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	return &sc, nil
}

// StepResult is what the runner records for every executed step.
type StepResult struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Time  uint64 `json:"time"`

	AmountIn  Amount `json:"amountIn,omitempty"`
	AmountOut Amount `json:"amountOut,omitempty"`
	Amount0   Amount `json:"amount0,omitempty"`
	Amount1   Amount `json:"amount1,omitempty"`
	Liquidity Amount `json:"liquidity,omitempty"`
	Reward    Amount `json:"reward,omitempty"`

	Error string `json:"error,omitempty"`

	Diff any `json:"diff,omitempty"`
}
