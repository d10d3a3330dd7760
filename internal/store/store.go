// Package store defines the persistence interface for the margin engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateEvent is returned when a liquidation event with the same
	// id already exists. Callers treat it as success of a prior run, not a
	// failure.
	ErrDuplicateEvent = errors.New("store: duplicate liquidation event")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Account equity and margin used
// are derived from the balance plus open positions at read time, so
// concurrent equity changes are always observed on the next read.
type Store interface {
	// --- Accounts ---

	// GetAccount returns one account with derived equity and margin used.
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)

	// ApplyBalanceChange atomically adjusts an account's cash balance by
	// the signed amount and appends the corresponding ledger entry with
	// balance-before/after stamped.
	ApplyBalanceChange(ctx context.Context, accountID string, amount decimal.Decimal, entryType, description, referenceID string) (*model.LedgerEntry, error)

	// GetLedgerEntries returns the append-only ledger for one account,
	// oldest first.
	GetLedgerEntries(ctx context.Context, accountID string) ([]model.LedgerEntry, error)

	// --- Positions ---

	// GetOpenPositions returns all open positions for one account.
	GetOpenPositions(ctx context.Context, accountID string) ([]model.Position, error)

	// GetAllOpenPositions returns every open position across accounts
	// (carry-cost accrual input).
	GetAllOpenPositions(ctx context.Context) ([]model.Position, error)

	// ClosePosition marks a position liquidated with its execution price,
	// realized P&L and close timestamp.
	ClosePosition(ctx context.Context, positionID string, execPrice, realizedPnL decimal.Decimal) error

	// --- Margin calls ---

	// ListPendingMarginCalls returns margin-call events awaiting
	// liquidation, oldest first.
	ListPendingMarginCalls(ctx context.Context) ([]model.MarginCallEvent, error)

	// MarkMarginCallProcessed flags a margin-call event as consumed.
	MarkMarginCallProcessed(ctx context.Context, id string) error

	// --- Liquidation audit trail ---

	// InsertLiquidationEvent persists the audit record of one run.
	// Returns ErrDuplicateEvent if the id already exists (retried
	// invocation), which callers treat as prior success.
	InsertLiquidationEvent(ctx context.Context, ev *model.LiquidationEvent) error

	// GetLiquidationEvents returns the liquidation history for one
	// account, newest first.
	GetLiquidationEvents(ctx context.Context, accountID string) ([]model.LiquidationEvent, error)
}
