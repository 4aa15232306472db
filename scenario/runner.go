package scenario

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/clamm-engine-go/pool"
	"github.com/defistate/clamm-engine-go/pooldiff"
	"github.com/defistate/clamm-engine-go/system"
)

// Token addresses used by every scenario run. The ledger is in-memory, so
// fixed labels are enough.
var (
	scenarioToken0 = common.HexToAddress("0x0000000000000000000000000000000000000a00")
	scenarioToken1 = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	scenarioReward = common.HexToAddress("0x0000000000000000000000000000000000000a02")
)

// Runner replays one scenario against a fresh pool system.
type Runner struct {
	sys      *system.PoolSystem
	ledger   *system.MemoryLedger
	registry *system.MemoryRegistry
	logger   system.Logger

	poolID      common.Hash
	positions   map[string]common.Hash
	recordDiffs bool
}

// RunnerConfig configures a scenario runner.
type RunnerConfig struct {
	Logger      system.Logger
	Metrics     prometheus.Registerer
	RecordDiffs bool
}

// NewRunner builds a runner with its own ledger, registry, and pool system.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Metrics == nil {
		cfg.Metrics = prometheus.NewRegistry()
	}
	ledger := system.NewMemoryLedger()
	registry := system.NewMemoryRegistry()
	sys, err := system.NewPoolSystem(&system.Config{
		Ledger:   ledger,
		Registry: registry,
		Metrics:  cfg.Metrics,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Runner{
		sys:         sys,
		ledger:      ledger,
		registry:    registry,
		logger:      cfg.Logger,
		positions:   make(map[string]common.Hash),
		recordDiffs: cfg.RecordDiffs,
	}, nil
}

// actorAddress derives a deterministic address from a scenario actor label.
func actorAddress(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("scenario/actor/" + label))[12:])
}

func (r *Runner) positionID(label string) common.Hash {
	id, ok := r.positions[label]
	if !ok {
		id = crypto.Keccak256Hash([]byte("scenario/position/" + label))
		r.positions[label] = id
	}
	return id
}

// Run executes every step in order and returns all step results. Steps whose
// errors were declared expected do not abort the run.
func (r *Runner) Run(sc *Scenario) ([]StepResult, error) {
	if err := r.setup(sc); err != nil {
		return nil, err
	}

	results := make([]StepResult, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		res := r.runStep(i, step)
		results = append(results, res)

		if res.Error != "" {
			if step.ExpectError == "" {
				return results, fmt.Errorf("step %d (%s): %s", i, step.Kind, res.Error)
			}
			if !strings.Contains(res.Error, step.ExpectError) {
				return results, fmt.Errorf("step %d (%s): got error %q, expected %q", i, step.Kind, res.Error, step.ExpectError)
			}
		} else if step.ExpectError != "" {
			return results, fmt.Errorf("step %d (%s): expected error %q, got none", i, step.Kind, step.ExpectError)
		}
	}
	return results, nil
}

func (r *Runner) setup(sc *Scenario) error {
	r.poolID = crypto.Keccak256Hash([]byte("scenario/pool/" + sc.Name))

	cfg := pool.Config{
		SwapFeePpm:           uint64(sc.Pool.SwapFeePpm),
		ProtocolFeePpm:       uint64(sc.Pool.ProtocolFeePpm),
		TickSpacing:          sc.Pool.TickSpacing,
		StrictTickParity:     sc.Pool.StrictTickParity,
		RejectUnservedDemand: sc.Pool.RejectUnservedDemand,
	}
	tokens := system.PoolTokens{Token0: scenarioToken0, Token1: scenarioToken1, RewardToken: scenarioReward}
	if err := r.sys.CreatePool(r.poolID, tokens, cfg, sc.Pool.SqrtPriceX96.Int, sc.Pool.StartTime); err != nil {
		return err
	}

	seed := sc.Seed.Int
	if seed == nil {
		// Enough for any realistic script.
		seed = new(big.Int).Lsh(big.NewInt(1), 160)
	}
	seen := make(map[string]bool)
	for _, step := range sc.Steps {
		if step.Actor == "" || seen[step.Actor] {
			continue
		}
		seen[step.Actor] = true
		addr := actorAddress(step.Actor)
		r.ledger.Credit(scenarioToken0, addr, seed)
		r.ledger.Credit(scenarioToken1, addr, seed)
		r.ledger.Credit(scenarioReward, addr, seed)
	}
	return nil
}

// snapshotForDiff captures the live pool when diff recording is on.
func (r *Runner) snapshotForDiff() *pool.Pool {
	if !r.recordDiffs {
		return nil
	}
	var snap *pool.Pool
	_ = r.sys.View(r.poolID, func(p *pool.Pool) error {
		snap = p
		return nil
	})
	return snap
}

func (r *Runner) runStep(index int, step Step) StepResult {
	res := StepResult{Index: index, Kind: step.Kind, Time: step.Time}
	before := r.snapshotForDiff()

	actor := actorAddress(step.Actor)
	var err error

	switch step.Kind {
	case "mint":
		err = r.runMint(step, actor, &res)
	case "add-liquidity":
		err = r.runAddLiquidity(step, actor, &res)
	case "burn":
		var amount0, amount1 *big.Int
		amount0, amount1, err = r.sys.Burn(r.poolID, r.positionID(step.Position), actor, actor, orZero(step.Liquidity.Int), nil, nil, step.Time)
		res.Amount0, res.Amount1 = Amount{amount0}, Amount{amount1}
	case "collect":
		var amount0, amount1, reward *big.Int
		amount0, amount1, reward, err = r.sys.Collect(r.poolID, r.positionID(step.Position), actor, actor, step.Time)
		res.Amount0, res.Amount1, res.Reward = Amount{amount0}, Amount{amount1}, Amount{reward}
	case "swap":
		var amountIn, amountOut *big.Int
		amountIn, amountOut, err = r.sys.Swap(r.poolID, actor, pool.SwapParams{
			ZeroForOne:        step.ZeroForOne,
			AmountSpecified:   orZero(step.AmountSpecified.Int),
			SqrtPriceLimitX96: step.PriceLimitX96.Int,
			AmountLimit:       step.AmountLimit.Int,
			Now:               step.Time,
		})
		res.AmountIn, res.AmountOut = Amount{amountIn}, Amount{amountOut}
	case "quote":
		var amountIn, amountOut *big.Int
		amountIn, amountOut, err = r.sys.Quote(r.poolID, pool.SwapParams{
			ZeroForOne:        step.ZeroForOne,
			AmountSpecified:   orZero(step.AmountSpecified.Int),
			SqrtPriceLimitX96: step.PriceLimitX96.Int,
			AmountLimit:       step.AmountLimit.Int,
			Now:               step.Time,
		})
		res.AmountIn, res.AmountOut = Amount{amountIn}, Amount{amountOut}
	case "deposit-reward":
		err = r.sys.DepositReward(r.poolID, actor, orZero(step.Amount.Int), step.Duration, step.Time)
	case "deposit-airdrop":
		err = r.sys.DepositAirdrop(r.poolID, actor, step.Token, orZero(step.Amount.Int), step.EndTime, step.Time)
	case "collect-protocol-fee":
		var amount0, amount1 *big.Int
		amount0, amount1, err = r.sys.CollectProtocolFee(r.poolID, actor, step.Time)
		res.Amount0, res.Amount1 = Amount{amount0}, Amount{amount1}
	case "flash":
		var fee0, fee1 *big.Int
		fee0, fee1, err = r.sys.Flash(r.poolID, actor, orZero(step.Amount0.Int), orZero(step.Amount1.Int), step.Time)
		res.Amount0, res.Amount1 = Amount{fee0}, Amount{fee1}
	case "advance":
		// Time is carried by each step's own timestamp; nothing to do here.
	default:
		err = fmt.Errorf("unknown step kind %q", step.Kind)
	}

	if err != nil {
		res.Error = err.Error()
		return res
	}

	if before != nil {
		after := r.snapshotForDiff()
		if d := pooldiff.Compute(before, after); !d.IsEmpty() {
			res.Diff = d
		}
	}
	return res
}

func (r *Runner) runMint(step Step, actor common.Address, res *StepResult) error {
	if step.Lower == nil || step.Upper == nil {
		return fmt.Errorf("mint step needs lower and upper")
	}
	lowerHint, upperHint, err := r.hints(*step.Lower, *step.Upper)
	if err != nil {
		return err
	}
	liquidity, amount0, amount1, err := r.sys.Mint(r.poolID, pool.MintParams{
		Owner:          actor,
		Lower:          *step.Lower,
		Upper:          *step.Upper,
		Amount0Desired: orZero(step.Amount0.Int),
		Amount1Desired: orZero(step.Amount1.Int),
		LowerHint:      lowerHint,
		UpperHint:      upperHint,
		Now:            step.Time,
	})
	if err != nil {
		return err
	}
	res.Liquidity = Amount{liquidity}
	res.Amount0, res.Amount1 = Amount{amount0}, Amount{amount1}
	r.registerPosition(step, actor)
	return nil
}

func (r *Runner) runAddLiquidity(step Step, actor common.Address, res *StepResult) error {
	if step.Lower == nil || step.Upper == nil {
		return fmt.Errorf("add-liquidity step needs lower and upper")
	}
	lowerHint, upperHint, err := r.hints(*step.Lower, *step.Upper)
	if err != nil {
		return err
	}
	amount0, amount1, err := r.sys.AddLiquidity(r.poolID, pool.AddLiquidityParams{
		Owner:     actor,
		Lower:     *step.Lower,
		Upper:     *step.Upper,
		Liquidity: step.Liquidity.Int,
		LowerHint: lowerHint,
		UpperHint: upperHint,
		Now:       step.Time,
	})
	if err != nil {
		return err
	}
	res.Liquidity = step.Liquidity
	res.Amount0, res.Amount1 = Amount{amount0}, Amount{amount1}
	r.registerPosition(step, actor)
	return nil
}

func (r *Runner) registerPosition(step Step, actor common.Address) {
	if step.Position == "" {
		return
	}
	r.registry.Register(r.positionID(step.Position), system.PositionRecord{
		PoolID: r.poolID,
		Owner:  actor,
		Lower:  *step.Lower,
		Upper:  *step.Upper,
	})
}

func (r *Runner) hints(lower, upper int64) (lowerHint, upperHint int64, err error) {
	err = r.sys.View(r.poolID, func(p *pool.Pool) error {
		lowerHint = p.NearestTickBelow(lower)
		upperHint = p.NearestTickBelow(upper)
		return nil
	})
	return lowerHint, upperHint, err
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
