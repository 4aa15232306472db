package system

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientBalance is returned when a transfer-in exceeds the payer's
// balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

type balanceKey struct {
	token   common.Address
	account common.Address
}

// MemoryLedger is an in-process token ledger. Simulations and tests use it in
// place of a real settlement layer.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[balanceKey]*big.Int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[balanceKey]*big.Int)}
}

// Credit seeds an account balance before a run.
func (l *MemoryLedger) Credit(token, account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{token, account}
	bal, ok := l.balances[key]
	if !ok {
		bal = new(big.Int)
		l.balances[key] = bal
	}
	bal.Add(bal, amount)
}

// Balance reports an account balance.
func (l *MemoryLedger) Balance(token, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[balanceKey{token, account}]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// TransferIn moves amount of token from the account into the pool system.
func (l *MemoryLedger) TransferIn(token, from common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{token, from}
	bal, ok := l.balances[key]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token %s account %s", ErrInsufficientBalance, token, from)
	}
	bal.Sub(bal, amount)
	return nil
}

// TransferOut moves amount of token from the pool system to the account.
func (l *MemoryLedger) TransferOut(token, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{token, to}
	bal, ok := l.balances[key]
	if !ok {
		bal = new(big.Int)
		l.balances[key] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// MemoryRegistry is an in-process position registry keyed by position ID.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[common.Hash]PositionRecord
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[common.Hash]PositionRecord)}
}

// Register stores a position record under id, replacing any prior record.
func (r *MemoryRegistry) Register(id common.Hash, rec PositionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = rec
}

// Unregister removes a position record.
func (r *MemoryRegistry) Unregister(id common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

// Lookup returns the record for id if present.
func (r *MemoryRegistry) Lookup(id common.Hash) (PositionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}
