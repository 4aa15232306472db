package system

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/clamm-engine-go/pool"
)

// Config holds the collaborators every pool system needs.
type Config struct {
	Ledger   TokenLedger
	Registry OwnerRegistry
	Metrics  prometheus.Registerer
	Logger   Logger
}

func (c *Config) validate() error {
	if c.Ledger == nil {
		return errors.New("config: Ledger cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Metrics == nil {
		return errors.New("config: Metrics cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// PoolTokens names the assets one pool trades and emits.
type PoolTokens struct {
	Token0      common.Address
	Token1      common.Address
	RewardToken common.Address
}

// poolEntry serializes all mutations of one pool. A mutating call works on a
// deep copy and swaps it in only after the ledger transfers succeed, so a
// failed call leaves no partial state behind.
type poolEntry struct {
	mu     sync.Mutex
	pool   *pool.Pool
	tokens PoolTokens
}

// PoolSystem is the serialized, authorized front end over many independent
// pools. Mutating calls are fully serialized per pool; quotes run lock-free
// against snapshots.
type PoolSystem struct {
	mu    sync.RWMutex
	pools map[common.Hash]*poolEntry

	ledger   TokenLedger
	registry OwnerRegistry
	metrics  *Metrics
	logger   Logger
}

// NewPoolSystem constructs a pool system from a configuration.
func NewPoolSystem(cfg *Config) (*PoolSystem, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &PoolSystem{
		pools:    make(map[common.Hash]*poolEntry),
		ledger:   cfg.Ledger,
		registry: cfg.Registry,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   cfg.Logger,
	}, nil
}

// CreatePool registers a new pool under id at the given starting price.
func (s *PoolSystem) CreatePool(id common.Hash, tokens PoolTokens, cfg pool.Config, sqrtPriceX96 *big.Int, now uint64) error {
	p, err := pool.New(cfg, sqrtPriceX96, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pools[id]; exists {
		return fmt.Errorf("%w: %s", ErrPoolExists, id)
	}
	s.pools[id] = &poolEntry{pool: p, tokens: tokens}
	s.metrics.poolCount.Inc()
	s.logger.Info("pool created", "pool", id, "tickSpacing", cfg.TickSpacing, "feePpm", cfg.SwapFeePpm)
	return nil
}

func (s *PoolSystem) entry(id common.Hash) (*poolEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return e, nil
}

// mutate runs fn against a deep copy of the pool and commits the copy only
// when fn succeeds. fn performs its ledger transfers before returning.
func (s *PoolSystem) mutate(op string, id common.Hash, fn func(p *pool.Pool, tokens PoolTokens) error) error {
	timer := prometheus.NewTimer(s.metrics.opDuration.WithLabelValues(op))
	defer timer.ObserveDuration()

	e, err := s.entry(id)
	if err != nil {
		s.metrics.opErrors.WithLabelValues(op).Inc()
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.pool.Snapshot()
	if err := fn(work, e.tokens); err != nil {
		s.metrics.opErrors.WithLabelValues(op).Inc()
		return err
	}
	e.pool = work
	return nil
}

// Mint deposits liquidity sized by desired amounts, pulling the owed tokens
// from the owner.
func (s *PoolSystem) Mint(id common.Hash, params pool.MintParams) (liquidity, amount0, amount1 *big.Int, err error) {
	err = s.mutate("mint", id, func(p *pool.Pool, tokens PoolTokens) error {
		var innerErr error
		liquidity, amount0, amount1, innerErr = p.Mint(params)
		if innerErr != nil {
			return innerErr
		}
		if innerErr = s.ledger.TransferIn(tokens.Token0, params.Owner, amount0); innerErr != nil {
			return innerErr
		}
		return s.ledger.TransferIn(tokens.Token1, params.Owner, amount1)
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return liquidity, amount0, amount1, nil
}

// AddLiquidity deposits an exact liquidity amount, pulling the owed tokens
// from the owner.
func (s *PoolSystem) AddLiquidity(id common.Hash, params pool.AddLiquidityParams) (amount0, amount1 *big.Int, err error) {
	err = s.mutate("add_liquidity", id, func(p *pool.Pool, tokens PoolTokens) error {
		var innerErr error
		amount0, amount1, innerErr = p.AddLiquidity(params)
		if innerErr != nil {
			return innerErr
		}
		if innerErr = s.ledger.TransferIn(tokens.Token0, params.Owner, amount0); innerErr != nil {
			return innerErr
		}
		return s.ledger.TransferIn(tokens.Token1, params.Owner, amount1)
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// resolvePosition authorizes caller against the registry record for id.
func (s *PoolSystem) resolvePosition(poolID common.Hash, positionID common.Hash, caller common.Address) (PositionRecord, error) {
	rec, ok := s.registry.Lookup(positionID)
	if !ok {
		return PositionRecord{}, fmt.Errorf("%w: %s", ErrPositionGone, positionID)
	}
	if rec.PoolID != poolID {
		return PositionRecord{}, fmt.Errorf("%w: position %s", ErrPoolMismatch, positionID)
	}
	if rec.Owner != caller {
		return PositionRecord{}, fmt.Errorf("%w: position %s", ErrNotOwner, positionID)
	}
	return rec, nil
}

// Burn removes liquidity from a registered position and pays the proceeds to
// the recipient.
func (s *PoolSystem) Burn(id common.Hash, positionID common.Hash, caller, recipient common.Address, liquidity, amount0Min, amount1Min *big.Int, now uint64) (amount0, amount1 *big.Int, err error) {
	rec, err := s.resolvePosition(id, positionID, caller)
	if err != nil {
		return nil, nil, err
	}
	err = s.mutate("burn", id, func(p *pool.Pool, tokens PoolTokens) error {
		var innerErr error
		amount0, amount1, innerErr = p.Burn(pool.BurnParams{
			Owner:      rec.Owner,
			Lower:      rec.Lower,
			Upper:      rec.Upper,
			Liquidity:  liquidity,
			Amount0Min: amount0Min,
			Amount1Min: amount1Min,
			Now:        now,
		})
		if innerErr != nil {
			return innerErr
		}
		if innerErr = s.ledger.TransferOut(tokens.Token0, recipient, amount0); innerErr != nil {
			return innerErr
		}
		return s.ledger.TransferOut(tokens.Token1, recipient, amount1)
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Collect pays out a registered position's owed fees, airdrops, and rewards.
func (s *PoolSystem) Collect(id common.Hash, positionID common.Hash, caller, recipient common.Address, now uint64) (amount0, amount1, reward *big.Int, err error) {
	rec, err := s.resolvePosition(id, positionID, caller)
	if err != nil {
		return nil, nil, nil, err
	}
	err = s.mutate("collect", id, func(p *pool.Pool, tokens PoolTokens) error {
		var innerErr error
		amount0, amount1, reward, innerErr = p.Collect(pool.CollectParams{
			Owner: rec.Owner,
			Lower: rec.Lower,
			Upper: rec.Upper,
			Now:   now,
		})
		if innerErr != nil {
			return innerErr
		}
		if innerErr = s.ledger.TransferOut(tokens.Token0, recipient, amount0); innerErr != nil {
			return innerErr
		}
		if innerErr = s.ledger.TransferOut(tokens.Token1, recipient, amount1); innerErr != nil {
			return innerErr
		}
		return s.ledger.TransferOut(tokens.RewardToken, recipient, reward)
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return amount0, amount1, reward, nil
}

// Swap executes a swap for trader, settling both transfer legs.
func (s *PoolSystem) Swap(id common.Hash, trader common.Address, params pool.SwapParams) (amountIn, amountOut *big.Int, err error) {
	err = s.mutate("swap", id, func(p *pool.Pool, tokens PoolTokens) error {
		var innerErr error
		amountIn, amountOut, innerErr = p.Swap(params)
		if innerErr != nil {
			return innerErr
		}
		tokenIn, tokenOut := tokens.Token0, tokens.Token1
		if !params.ZeroForOne {
			tokenIn, tokenOut = tokens.Token1, tokens.Token0
		}
		if innerErr = s.ledger.TransferIn(tokenIn, trader, amountIn); innerErr != nil {
			return innerErr
		}
		return s.ledger.TransferOut(tokenOut, trader, amountOut)
	})
	if err != nil {
		return nil, nil, err
	}
	return amountIn, amountOut, nil
}

// Quote simulates a swap against a snapshot; the live pool is untouched and
// concurrent quotes never block mutations.
func (s *PoolSystem) Quote(id common.Hash, params pool.SwapParams) (amountIn, amountOut *big.Int, err error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	snap := e.pool.Snapshot()
	e.mu.Unlock()

	return snap.Swap(params)
}

// DepositReward funds the reward stream with amount vested linearly over
// duration seconds, pulling the reward tokens from funder.
func (s *PoolSystem) DepositReward(id common.Hash, funder common.Address, amount *big.Int, duration uint64, now uint64) error {
	if amount.Sign() <= 0 || duration == 0 {
		return pool.ErrAmountZero
	}
	return s.mutate("deposit_reward", id, func(p *pool.Pool, tokens PoolTokens) error {
		total, overflow := uint256.FromBig(amount)
		if overflow {
			return pool.ErrOverflow
		}
		rate := new(uint256.Int).Lsh(total, 128)
		rate.Div(rate, uint256.NewInt(duration))
		p.DepositReward(now, rate)
		return s.ledger.TransferIn(tokens.RewardToken, funder, amount)
	})
}

// DepositAirdrop schedules an airdrop of one pool token until endTime,
// pulling the amount from funder.
func (s *PoolSystem) DepositAirdrop(id common.Hash, funder common.Address, token int, amount *big.Int, endTime, now uint64) error {
	return s.mutate("deposit_airdrop", id, func(p *pool.Pool, tokens PoolTokens) error {
		if err := p.DepositAirdrop(now, token, amount, endTime); err != nil {
			return err
		}
		asset := tokens.Token0
		if token == 1 {
			asset = tokens.Token1
		}
		return s.ledger.TransferIn(asset, funder, amount)
	})
}

// CollectProtocolFee pays the protocol's accrued fee share to recipient.
func (s *PoolSystem) CollectProtocolFee(id common.Hash, recipient common.Address, now uint64) (amount0, amount1 *big.Int, err error) {
	err = s.mutate("collect_protocol_fee", id, func(p *pool.Pool, tokens PoolTokens) error {
		amount0, amount1 = p.CollectProtocolFee(now)
		if innerErr := s.ledger.TransferOut(tokens.Token0, recipient, amount0); innerErr != nil {
			return innerErr
		}
		return s.ledger.TransferOut(tokens.Token1, recipient, amount1)
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Flash lends amount0/amount1 to borrower and settles principal plus fee in
// the same call.
func (s *PoolSystem) Flash(id common.Hash, borrower common.Address, amount0, amount1 *big.Int, now uint64) (fee0, fee1 *big.Int, err error) {
	err = s.mutate("flash", id, func(p *pool.Pool, tokens PoolTokens) error {
		var innerErr error
		fee0, fee1, innerErr = p.Flash(now, amount0, amount1)
		if innerErr != nil {
			return innerErr
		}
		if innerErr = s.ledger.TransferOut(tokens.Token0, borrower, amount0); innerErr != nil {
			return innerErr
		}
		if innerErr = s.ledger.TransferOut(tokens.Token1, borrower, amount1); innerErr != nil {
			return innerErr
		}
		repay0 := new(big.Int).Add(amount0, fee0)
		repay1 := new(big.Int).Add(amount1, fee1)
		if innerErr = s.ledger.TransferIn(tokens.Token0, borrower, repay0); innerErr != nil {
			return innerErr
		}
		return s.ledger.TransferIn(tokens.Token1, borrower, repay1)
	})
	if err != nil {
		return nil, nil, err
	}
	return fee0, fee1, nil
}

// View runs fn against a snapshot of the pool.
func (s *PoolSystem) View(id common.Hash, fn func(p *pool.Pool) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	snap := e.pool.Snapshot()
	e.mu.Unlock()
	return fn(snap)
}
