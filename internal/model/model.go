// Package model defines the core domain records shared across the margin
// engine. All monetary values use shopspring/decimal — never float64 for
// money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position side.
const (
	SideLong  = "long"
	SideShort = "short"
)

// Position status.
const (
	PositionOpen       = "open"
	PositionLiquidated = "liquidated"
)

// Position is one open leveraged exposure. Quantity is always stored
// positive; Side carries the direction.
type Position struct {
	ID             string          `json:"id" db:"id"`
	AccountID      string          `json:"account_id" db:"account_id"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Side           string          `json:"side" db:"side"` // "long" or "short"
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
	EntryPrice     decimal.Decimal `json:"entry_price" db:"entry_price"`
	CurrentPrice   decimal.Decimal `json:"current_price" db:"current_price"` // last known mark
	Leverage       decimal.Decimal `json:"leverage" db:"leverage"`
	MarginRequired decimal.Decimal `json:"margin_required" db:"margin_required"`
	NotionalValue  decimal.Decimal `json:"notional_value" db:"notional_value"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl" db:"unrealized_pnl"`
	Status         string          `json:"status" db:"status"`
	OpenedAt       time.Time       `json:"opened_at" db:"opened_at"`

	// Stamped on liquidation.
	ClosedPrice *decimal.Decimal `json:"closed_price,omitempty" db:"closed_price"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty" db:"realized_pnl"`
	ClosedAt    *time.Time       `json:"closed_at,omitempty" db:"closed_at"`
}

// Account is the collateral pool for one user. Equity and free margin are
// derived from balance plus open-position P&L.
type Account struct {
	ID         string          `json:"id" db:"id"`
	Balance    decimal.Decimal `json:"balance" db:"balance"`
	Equity     decimal.Decimal `json:"equity" db:"equity"`
	MarginUsed decimal.Decimal `json:"margin_used" db:"margin_used"`
}

// Margin-call severity.
const (
	SeverityWarning            = "WARNING"
	SeverityCritical           = "CRITICAL"
	SeverityLiquidationTrigger = "LIQUIDATION_TRIGGER"
)

// MarginCallEvent is the immutable trigger record produced by the external
// margin monitor. Consumed exactly once by the liquidation executor; retried
// deliveries are short-circuited against current account state.
type MarginCallEvent struct {
	ID          string          `json:"id" db:"id"`
	AccountID   string          `json:"account_id" db:"account_id"`
	Equity      decimal.Decimal `json:"equity" db:"equity"`
	MarginUsed  decimal.Decimal `json:"margin_used" db:"margin_used"`
	MarginLevel decimal.Decimal `json:"margin_level" db:"margin_level"`
	Severity    string          `json:"severity" db:"severity"`
	TriggeredAt time.Time       `json:"triggered_at" db:"triggered_at"`
}

// Liquidation reason.
const (
	ReasonMarginCallTimeout = "margin_call_timeout"
	ReasonCriticalThreshold = "critical_threshold"
	ReasonManualForced      = "manual_forced"
	ReasonRiskLimitBreach   = "risk_limit_breach"
)

// Liquidation run status. Transitions are forward-only:
// pending → in_progress → {completed, failed, partial, cancelled}.
const (
	RunPending    = "pending"
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
	RunFailed     = "failed"
	RunPartial    = "partial"
	RunCancelled  = "cancelled"
)

// ClosedPosition is the per-position success sub-record of a liquidation run.
type ClosedPosition struct {
	PositionID     string          `json:"position_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	SlippagePct    decimal.Decimal `json:"slippage_pct"`
	MarginFreed    decimal.Decimal `json:"margin_freed"`
	ClosedAt       time.Time       `json:"closed_at"`
}

// FailedPosition records one per-position failure inside a liquidation run.
// Failures are local: the run continues past them.
type FailedPosition struct {
	PositionID string `json:"position_id"`
	Symbol     string `json:"symbol"`
	Error      string `json:"error"`
}

// LiquidationEvent is the audit record of one liquidation run. Once a run
// reaches a terminal status the record is immutable.
type LiquidationEvent struct {
	ID                  string           `json:"id" db:"id"`
	AccountID           string           `json:"account_id" db:"account_id"`
	MarginCallID        string           `json:"margin_call_id,omitempty" db:"margin_call_id"`
	Reason              string           `json:"reason" db:"reason"`
	Status              string           `json:"status" db:"status"`
	InitialMarginLevel  decimal.Decimal  `json:"initial_margin_level" db:"initial_margin_level"`
	FinalMarginLevel    decimal.Decimal  `json:"final_margin_level" db:"final_margin_level"`
	InitialEquity       decimal.Decimal  `json:"initial_equity" db:"initial_equity"`
	FinalEquity         decimal.Decimal  `json:"final_equity" db:"final_equity"`
	PositionsLiquidated int              `json:"positions_liquidated" db:"positions_liquidated"`
	TotalRealizedPnL    decimal.Decimal  `json:"total_realized_pnl" db:"total_realized_pnl"`
	TotalSlippage       decimal.Decimal  `json:"total_slippage" db:"total_slippage"`
	ClosedPositions     []ClosedPosition `json:"closed_positions"`
	FailedPositions     []FailedPosition `json:"failed_positions"`
	StartedAt           time.Time        `json:"started_at" db:"started_at"`
	CompletedAt         time.Time        `json:"completed_at" db:"completed_at"`
}

// Ledger entry types.
const (
	EntryCarryCharge       = "carry_charge"
	EntryLiquidationDebit  = "liquidation_debit"
	EntryLiquidationCredit = "liquidation_credit"
)

// LedgerEntry is an append-only financial record. Once created, these are
// never modified or deleted.
type LedgerEntry struct {
	ID            string          `json:"id" db:"id"`
	AccountID     string          `json:"account_id" db:"account_id"`
	Type          string          `json:"type" db:"type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"` // signed: debit < 0
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	Description   string          `json:"description" db:"description"`
	ReferenceID   string          `json:"reference_id" db:"reference_id"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}

// Notification priority.
const (
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Notification is the structured payload handed to the notification sink.
// Delivery failure never rolls back the run that produced it.
type Notification struct {
	Type     string            `json:"type"`
	Priority string            `json:"priority"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
