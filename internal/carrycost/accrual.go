// Package carrycost applies overnight financing charges to open leveraged
// positions, once per scheduled cycle.
package carrycost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/asset"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/margin"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/metrics"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/store"
)

// Job computes and debits the daily carry charge for every open position.
// Per-position failures are logged and skipped; a cycle always processes
// the full position set and reports an aggregate result.
type Job struct {
	store    store.Store
	assets   *asset.Table
	interval time.Duration
}

// NewJob creates an accrual job. The interval is conceptually once daily;
// shorter intervals are for development and tests.
func NewJob(st store.Store, assets *asset.Table, interval time.Duration) *Job {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Job{store: st, assets: assets, interval: interval}
}

// Failure records one skipped position within a cycle.
type Failure struct {
	PositionID string `json:"position_id"`
	AccountID  string `json:"account_id"`
	Error      string `json:"error"`
}

// CycleResult is the aggregate outcome of one accrual cycle.
// Processed always equals the number of open positions, regardless of
// individual failures.
type CycleResult struct {
	Processed    int             `json:"processed"`
	Charged      int             `json:"charged"`
	TotalCharged decimal.Decimal `json:"total_charged"`
	Failures     []Failure       `json:"failures,omitempty"`
	RanAt        time.Time       `json:"ran_at"`
}

// ChargeFor computes the daily carry charge for one position: the
// class-keyed annual rate for its side, converted to a daily rate, applied
// to current notional value. Zero notional yields a zero charge.
func ChargeFor(p model.Position, cfg asset.Config, rate asset.CarryRate) decimal.Decimal {
	annual := rate.LongAnnualPct
	if p.Side == model.SideShort {
		annual = rate.ShortAnnualPct
	}
	return p.NotionalValue.Mul(asset.DailyRate(annual)).Round(margin.MoneyScale)
}

// RunCycle processes every open position once.
func (j *Job) RunCycle(ctx context.Context) (*CycleResult, error) {
	positions, err := j.store.GetAllOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("carrycost: list open positions: %w", err)
	}

	result := &CycleResult{
		Processed:    len(positions),
		TotalCharged: decimal.Zero,
		RanAt:        time.Now().UTC(),
	}

	for _, p := range positions {
		cfg := j.assets.Lookup(p.Symbol)
		rate := j.assets.CarryRateFor(cfg.Class)

		charge := ChargeFor(p, cfg, rate)
		if charge.IsZero() {
			continue
		}

		desc := fmt.Sprintf("overnight carry charge for %s %s", p.Side, p.Symbol)
		_, err := j.store.ApplyBalanceChange(ctx, p.AccountID, charge.Neg(),
			model.EntryCarryCharge, desc, p.ID)
		if err != nil {
			slog.Warn("carry charge skipped",
				"position", p.ID, "account", p.AccountID, "err", err)
			result.Failures = append(result.Failures, Failure{
				PositionID: p.ID,
				AccountID:  p.AccountID,
				Error:      err.Error(),
			})
			metrics.CarryAccrualFailures.Inc()
			continue
		}

		result.Charged++
		result.TotalCharged = result.TotalCharged.Add(charge)
		metrics.CarryChargesApplied.WithLabelValues(cfg.Class).Inc()
	}

	slog.Info("carry-cost cycle finished",
		"processed", result.Processed,
		"charged", result.Charged,
		"total_charged", result.TotalCharged.String(),
		"failures", len(result.Failures),
	)
	return result, nil
}

// Start runs cycles on the configured interval until the context is
// cancelled. Must be called in a goroutine.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	slog.Info("carry-cost accrual job started", "interval", j.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("carry-cost accrual job stopped")
			return
		case <-ticker.C:
			if _, err := j.RunCycle(ctx); err != nil {
				slog.Error("carry-cost cycle failed", "err", err)
			}
		}
	}
}
