// Package margin implements the pure margin calculator: required margin,
// free margin, margin level, liquidation price, slippage and position
// sizing for leveraged accounts.
//
// Every function is deterministic given its inputs, performs no I/O, and
// rounds results to fixed scales (4 decimals for money and size, 2 for
// percentages) so figures reproduce exactly across runs and hosts.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Invalid numeric domains return typed errors; values are never silently
// clamped.
package margin

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

var (
	// ErrInvalidLeverage is returned when leverage <= 0.
	ErrInvalidLeverage = errors.New("margin: leverage must be positive")

	// ErrInvalidPrice is returned when a price <= 0.
	ErrInvalidPrice = errors.New("margin: price must be positive")

	// ErrNegativeFreeMargin is returned when marginUsed exceeds equity.
	// Callers decide whether negative free margin is acceptable for
	// reporting; it is never silently clamped.
	ErrNegativeFreeMargin = errors.New("margin: margin used exceeds equity")

	// ErrNoMarginUsed is returned when a margin level is requested with
	// marginUsed <= 0. Callers treat "no margin used" as an unbounded,
	// very safe level rather than calling Level.
	ErrNoMarginUsed = errors.New("margin: margin used must be positive for level calculation")

	// ErrNegativeEquity is returned by sizing functions when equity < 0.
	ErrNegativeEquity = errors.New("margin: equity must not be negative")

	// ErrInvalidQuote is returned when a bid/ask pair is not positive or
	// crossed (ask < bid).
	ErrInvalidQuote = errors.New("margin: invalid bid/ask quote")
)

// Rounding scales. MoneyScale applies to money and size figures,
// PercentScale to percentages.
const (
	MoneyScale   int32 = 4
	PercentScale int32 = 2
)

// Margin level status bands, classified by Summary.
const (
	StatusSafe        = "safe"        // level >= 200%
	StatusWarning     = "warning"     // 100% <= level < 200%
	StatusCritical    = "critical"    // 50% <= level < 100%
	StatusLiquidation = "liquidation" // level < 50%
)

// LiquidationThreshold is the margin level (percent) below which forced
// liquidation is warranted.
var LiquidationThreshold = decimal.NewFromInt(50)

// LiquidationSlippageFactor amplifies observed market slippage during
// forced liquidation to reflect urgent, non-discretionary execution.
var LiquidationSlippageFactor = decimal.NewFromFloat(1.5)

var hundred = decimal.NewFromInt(100)

// Required computes the collateral reserved for a position:
// (|size| * price) / leverage, rounded to MoneyScale.
func Required(size, price, leverage decimal.Decimal) (decimal.Decimal, error) {
	if leverage.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidLeverage
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidPrice
	}
	return size.Abs().Mul(price).Div(leverage).Round(MoneyScale), nil
}

// FreeMargin computes equity - marginUsed, rounded to MoneyScale.
// Returns ErrNegativeFreeMargin (with the computed value) when marginUsed
// exceeds equity, so reporting callers may still use the figure.
func FreeMargin(equity, marginUsed decimal.Decimal) (decimal.Decimal, error) {
	free := equity.Sub(marginUsed).Round(MoneyScale)
	if marginUsed.GreaterThan(equity) {
		return free, ErrNegativeFreeMargin
	}
	return free, nil
}

// Level computes the margin level percentage: (equity / marginUsed) * 100,
// rounded to PercentScale. Fails with ErrNoMarginUsed when marginUsed <= 0.
func Level(equity, marginUsed decimal.Decimal) (decimal.Decimal, error) {
	if marginUsed.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrNoMarginUsed
	}
	return equity.Div(marginUsed).Mul(hundred).Round(PercentScale), nil
}

// PositionValue computes |size| * price, rounded to MoneyScale.
func PositionValue(size, price decimal.Decimal) decimal.Decimal {
	return size.Abs().Mul(price).Round(MoneyScale)
}

// Notional computes the full exposure of a position:
// |size| * price * contractSize, rounded to MoneyScale.
func Notional(size, price, contractSize decimal.Decimal) decimal.Decimal {
	return size.Abs().Mul(price).Mul(contractSize).Round(MoneyScale)
}

// UnrealizedPnL computes the mark-to-market P&L of a position, signed by
// direction: long (current - entry) * size, short (entry - current) * |size|.
// Zero at the entry price by construction.
func UnrealizedPnL(side string, size, entry, current decimal.Decimal) decimal.Decimal {
	if side == model.SideShort {
		return entry.Sub(current).Mul(size.Abs()).Round(MoneyScale)
	}
	return current.Sub(entry).Mul(size.Abs()).Round(MoneyScale)
}

// LiquidationPrice approximates the price at which a position's maintenance
// margin is exhausted: the entry price offset by the per-unit margin
// (entry / leverage) scaled by how much of it may be consumed before the
// maintenance ratio is hit. Long positions liquidate below entry, shorts
// above.
//
// This is a single-position, isolated-margin approximation; it ignores
// cross-position margin sharing.
func LiquidationPrice(side string, entry, leverage, maintenanceRatioPct decimal.Decimal) (decimal.Decimal, error) {
	if leverage.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidLeverage
	}
	if entry.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidPrice
	}
	consumable := decimal.NewFromInt(1).Sub(maintenanceRatioPct.Div(hundred))
	offset := entry.Div(leverage).Mul(consumable)
	if side == model.SideShort {
		return entry.Add(offset).Round(MoneyScale), nil
	}
	return entry.Sub(offset).Round(MoneyScale), nil
}

// MaxPositionSize computes the largest position size openable with the
// given equity: (equity * leverage) / price, rounded to MoneyScale.
func MaxPositionSize(equity, leverage, price decimal.Decimal) (decimal.Decimal, error) {
	if equity.IsNegative() {
		return decimal.Zero, ErrNegativeEquity
	}
	if leverage.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidLeverage
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidPrice
	}
	return equity.Mul(leverage).Div(price).Round(MoneyScale), nil
}

// SlippagePercent computes the half-spread-derived market slippage in
// percent: (ask - bid) / mid * 100, rounded to PercentScale.
func SlippagePercent(bid, ask decimal.Decimal) (decimal.Decimal, error) {
	if bid.LessThanOrEqual(decimal.Zero) || ask.LessThan(bid) {
		return decimal.Zero, ErrInvalidQuote
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	return ask.Sub(bid).Div(mid).Mul(hundred).Round(PercentScale), nil
}

// ExecutionPrice offsets the mid price by slippagePct in the adverse
// direction for a forced close: long positions close below mid, shorts
// above. Result rounded to MoneyScale.
func ExecutionPrice(side string, bid, ask, slippagePct decimal.Decimal) (decimal.Decimal, error) {
	if bid.LessThanOrEqual(decimal.Zero) || ask.LessThan(bid) {
		return decimal.Zero, ErrInvalidQuote
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	offset := mid.Mul(slippagePct.Div(hundred))
	if side == model.SideShort {
		return mid.Add(offset).Round(MoneyScale), nil
	}
	return mid.Sub(offset).Round(MoneyScale), nil
}

// RequiredToFree computes how much margin must be released for the account
// to climb back to the liquidation threshold: the excess of marginUsed over
// equity * (100 / threshold). Zero when the account is already at or above
// the threshold.
func RequiredToFree(equity, marginUsed decimal.Decimal) decimal.Decimal {
	sustainable := equity.Mul(hundred).Div(LiquidationThreshold)
	excess := marginUsed.Sub(sustainable)
	if excess.IsNegative() {
		return decimal.Zero
	}
	return excess.Round(MoneyScale)
}

// Summary is the composed margin health snapshot for one account.
type Summary struct {
	Equity             decimal.Decimal `json:"equity"`
	MarginUsed         decimal.Decimal `json:"margin_used"`
	FreeMargin         decimal.Decimal `json:"free_margin"`
	Level              decimal.Decimal `json:"level"` // percent; meaningless when NoMarginUsed
	NoMarginUsed       bool            `json:"no_margin_used"`
	Status             string          `json:"status"`
	CanOpenNewPosition bool            `json:"can_open_new_position"`
}

// Summarize composes free margin, level and status classification.
// An account with zero margin used is unconditionally safe; its level is
// unbounded and reported via NoMarginUsed instead of a number.
func Summarize(equity, marginUsed decimal.Decimal) Summary {
	s := Summary{
		Equity:     equity.Round(MoneyScale),
		MarginUsed: marginUsed.Round(MoneyScale),
	}
	s.FreeMargin, _ = FreeMargin(equity, marginUsed)

	if marginUsed.LessThanOrEqual(decimal.Zero) {
		s.NoMarginUsed = true
		s.Status = StatusSafe
		s.CanOpenNewPosition = s.FreeMargin.IsPositive()
		return s
	}

	s.Level, _ = Level(equity, marginUsed)
	s.Status = classify(s.Level)
	s.CanOpenNewPosition = s.FreeMargin.IsPositive() && s.Status != StatusLiquidation
	return s
}

// classify maps a margin level to its status band. Bands are contiguous:
// [0,50) liquidation, [50,100) critical, [100,200) warning, [200,∞) safe.
func classify(level decimal.Decimal) string {
	switch {
	case level.LessThan(LiquidationThreshold):
		return StatusLiquidation
	case level.LessThan(hundred):
		return StatusCritical
	case level.LessThan(decimal.NewFromInt(200)):
		return StatusWarning
	default:
		return StatusSafe
	}
}

// LiquidationSlippage amplifies observed market slippage by the forced
// execution factor, rounded to PercentScale.
func LiquidationSlippage(marketSlippagePct decimal.Decimal) decimal.Decimal {
	return marketSlippagePct.Mul(LiquidationSlippageFactor).Round(PercentScale)
}
