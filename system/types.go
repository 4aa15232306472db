package system

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrPoolNotFound = errors.New("pool not found")
	ErrPoolExists   = errors.New("pool already exists")
	// ErrNotOwner means the caller does not own the position it is operating on.
	ErrNotOwner = errors.New("caller is not the position owner")
	// ErrPoolMismatch means a position belongs to a different pool.
	ErrPoolMismatch = errors.New("position does not belong to this pool")
	ErrPositionGone = errors.New("position not registered")
)

// Logger is the minimal structured, leveled logging contract the system
// depends on; cmd wires a zap-backed implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TokenLedger moves tokens between the pool system and its callers. Transfers
// are atomic: they fully succeed or return an error with no effect.
type TokenLedger interface {
	TransferIn(token common.Address, from common.Address, amount *big.Int) error
	TransferOut(token common.Address, to common.Address, amount *big.Int) error
}

// PositionRecord is the registry's view of one tokenized position.
type PositionRecord struct {
	PoolID common.Hash
	Owner  common.Address
	Lower  int64
	Upper  int64
}

// OwnerRegistry resolves opaque position identifiers. The system trusts it
// for authorization but implements no transfer logic itself.
type OwnerRegistry interface {
	Lookup(id common.Hash) (PositionRecord, bool)
}
