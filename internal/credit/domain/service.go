package domain

import (
	"context"
	"errors"
)

// Store owns raw ledger reads and writes. Every write is a versioned
// compare-and-swap, but composing GetState with a later write is not atomic;
// metered consumption must go through Gate.
type Store interface {
	// GetState returns the ledger, creating it with defaults on first access.
	GetState(ctx context.Context, accountID string) (State, error)
	Add(ctx context.Context, accountID string, amount int64) (State, error)
	SetAutoTopUp(ctx context.Context, accountID string, enabled bool) (State, error)
	// Debit subtracts amount only if the balance still covers it at write
	// time. The reason is ReasonOK or ReasonInsufficient.
	Debit(ctx context.Context, accountID string, amount int64) (State, Reason, error)
}

// Gate decides whether a metered action may proceed and debits the ledger.
type Gate interface {
	Consume(ctx context.Context, accountID string, amount int64) (ConsumeResult, error)
}

// Replenisher buys credits for an account whose balance cannot cover needed.
// Replenish returns ErrReplenishInProgress when another caller is already
// buying credits for the account.
type Replenisher interface {
	Replenish(ctx context.Context, accountID string, needed int64, current State) (State, error)
}

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrCorruptLedger  = errors.New("corrupt_ledger")

	ErrReplenishInProgress = errors.New("topup_in_progress")
)
