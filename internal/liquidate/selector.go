// Package liquidate implements forced position closure: the pure selector
// that decides which positions to close, and the executor state machine
// that carries the closures out against the persistence and market-data
// collaborators.
package liquidate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

// priority scores a position for forced closure:
//
//	max(0, -unrealizedPnL) * notionalValue
//
// Larger losing, larger notional positions score highest — closing the most
// damaging exposure first reduces further loss risk fastest. Winning
// positions score zero.
func priority(p model.Position) decimal.Decimal {
	loss := p.UnrealizedPnL.Neg()
	if loss.IsNegative() {
		loss = decimal.Zero
	}
	return loss.Mul(p.NotionalValue)
}

// Select returns the ordered subset of positions to close to free at least
// marginToFree of reserved margin.
//
// Positions are ranked by priority descending; ties break on open time then
// id so the ordering is reproducible. Selection stops as soon as the
// accumulated margin meets the target — never over-liquidating. If the full
// set cannot meet the target, the full set is returned (best effort); the
// executor reports the shortfall as a partial outcome.
//
// Pure function: the input slice is not mutated, and an empty input yields
// an empty selection.
func Select(positions []model.Position, marginToFree decimal.Decimal) []model.Position {
	if len(positions) == 0 {
		return nil
	}

	ranked := make([]model.Position, len(positions))
	copy(ranked, positions)

	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := priority(ranked[i]), priority(ranked[j])
		if !pi.Equal(pj) {
			return pi.GreaterThan(pj)
		}
		if !ranked[i].OpenedAt.Equal(ranked[j].OpenedAt) {
			return ranked[i].OpenedAt.Before(ranked[j].OpenedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})

	accumulated := decimal.Zero
	for i, p := range ranked {
		accumulated = accumulated.Add(p.MarginRequired)
		if accumulated.GreaterThanOrEqual(marginToFree) {
			return ranked[:i+1]
		}
	}

	// Full set insufficient: best effort.
	return ranked
}
