package liquidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/asset"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/margin"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/marketdata"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/metrics"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/notify"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/store"
)

// Executor orchestrates one liquidation run end to end: validate the
// trigger, re-derive current risk state, select positions, close them
// sequentially, record the audit event and notify the account.
//
// Runs never panic past this boundary and never return a raw error for
// business failures: the caller (scheduler or HTTP trigger) always receives
// a structured Result.
type Executor struct {
	store    store.Store
	quotes   marketdata.Source
	assets   *asset.Table
	notifier notify.Sink
}

// NewExecutor creates a liquidation executor. Pass a notify.LogSink if no
// real notification sink is wired.
func NewExecutor(st store.Store, quotes marketdata.Source, assets *asset.Table, notifier notify.Sink) *Executor {
	return &Executor{
		store:    st,
		quotes:   quotes,
		assets:   assets,
		notifier: notifier,
	}
}

// Result is the structured outcome of one liquidation run.
// Success is true iff at least one position was closed.
type Result struct {
	RunID        string                  `json:"run_id"`
	AccountID    string                  `json:"account_id"`
	MarginCallID string                  `json:"margin_call_id,omitempty"`
	Success      bool                    `json:"success"`
	Status       string                  `json:"status"`
	Message      string                  `json:"message"`
	Event        *model.LiquidationEvent `json:"event,omitempty"`
}

// BatchResult aggregates the outcomes of processing all pending
// margin-call events.
type BatchResult struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Results   []Result `json:"results"`
}

// runIDFor derives a deterministic run identifier from the margin-call id,
// so a redelivered trigger collides with the prior run's audit record
// instead of liquidating twice. Manual runs without a margin call get a
// random id.
func runIDFor(marginCallID string) string {
	if marginCallID == "" {
		return uuid.New().String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("margin-call:"+marginCallID)).String()
}

// reasonFor maps margin-call severity to the recorded liquidation reason.
func reasonFor(severity string) string {
	switch severity {
	case model.SeverityLiquidationTrigger, model.SeverityCritical:
		return model.ReasonCriticalThreshold
	default:
		return model.ReasonMarginCallTimeout
	}
}

// Run executes one liquidation for the given margin-call event.
func (e *Executor) Run(ctx context.Context, ev *model.MarginCallEvent) Result {
	res := Result{
		RunID:        runIDFor(ev.ID),
		AccountID:    ev.AccountID,
		MarginCallID: ev.ID,
		Status:       model.RunFailed,
	}

	log := slog.With("run_id", res.RunID, "account", ev.AccountID, "margin_call", ev.ID)

	// Step 1 — precondition validation. No mutation on failure.
	if ev.MarginLevel.GreaterThanOrEqual(margin.LiquidationThreshold) {
		res.Message = fmt.Sprintf("precondition failed: margin level %s not below liquidation threshold %s",
			ev.MarginLevel, margin.LiquidationThreshold)
		metrics.LiquidationRuns.WithLabelValues(res.Status).Inc()
		return res
	}
	if ev.Equity.LessThanOrEqual(decimal.Zero) {
		res.Message = "precondition failed: account equity must be positive"
		metrics.LiquidationRuns.WithLabelValues(res.Status).Inc()
		return res
	}

	// Step 2 — fetch open positions.
	positions, err := e.store.GetOpenPositions(ctx, ev.AccountID)
	if err != nil {
		res.Message = fmt.Sprintf("fetch positions: %v", err)
		metrics.LiquidationRuns.WithLabelValues(res.Status).Inc()
		return res
	}
	if len(positions) == 0 {
		res.Message = "no open positions to liquidate"
		metrics.LiquidationRuns.WithLabelValues(res.Status).Inc()
		return res
	}

	// Step 3 — recompute the deficit from current account state, not the
	// possibly-stale event snapshot. Guards against acting on stale
	// triggers and makes redelivered events naturally idempotent.
	account, err := e.store.GetAccount(ctx, ev.AccountID)
	if err != nil {
		res.Message = fmt.Sprintf("fetch account: %v", err)
		metrics.LiquidationRuns.WithLabelValues(res.Status).Inc()
		return res
	}

	recovered := account.MarginUsed.LessThanOrEqual(decimal.Zero)
	currentLevel := decimal.Zero
	if !recovered {
		currentLevel, _ = margin.Level(account.Equity, account.MarginUsed)
		recovered = currentLevel.GreaterThanOrEqual(margin.LiquidationThreshold)
	}
	if recovered {
		// Benign no-action outcome, not a failure. Consuming the event
		// here is what short-circuits redelivered triggers.
		res.Status = model.RunCancelled
		res.Message = "margin level recovered, liquidation not needed"
		e.consumeMarginCall(ctx, ev.ID, log)
		metrics.LiquidationRuns.WithLabelValues(res.Status).Inc()
		log.Info("liquidation not needed", "current_level", currentLevel.String())
		return res
	}

	marginToFree := margin.RequiredToFree(account.Equity, account.MarginUsed)

	// Step 4 — selection.
	selected := Select(positions, marginToFree)

	log.Info("liquidation starting",
		"margin_level", currentLevel.String(),
		"margin_to_free", marginToFree.String(),
		"positions", len(positions),
		"selected", len(selected),
	)

	// Steps 5–6 — sequential closure in selector order, early exit once the
	// target is met. Per-position failure is local; it never aborts the run.
	startedAt := time.Now().UTC()
	var (
		closed      []model.ClosedPosition
		failed      []model.FailedPosition
		totalPnL    = decimal.Zero
		totalSlip   = decimal.Zero
		marginFreed = decimal.Zero
	)

	for _, p := range selected {
		if marginFreed.GreaterThanOrEqual(marginToFree) {
			break // target met; unprocessed positions stay open
		}

		cp, perr := e.closeOne(ctx, p)
		if perr != nil {
			log.Warn("position closure failed", "position", p.ID, "symbol", p.Symbol, "err", perr)
			failed = append(failed, model.FailedPosition{
				PositionID: p.ID,
				Symbol:     p.Symbol,
				Error:      perr.Error(),
			})
			metrics.PositionFailures.Inc()
			continue
		}

		closed = append(closed, *cp)
		totalPnL = totalPnL.Add(cp.RealizedPnL)
		totalSlip = totalSlip.Add(cp.SlippagePct)
		marginFreed = marginFreed.Add(cp.MarginFreed)
		metrics.PositionsLiquidated.Inc()
		metrics.LiquidationSlippage.Observe(cp.SlippagePct.InexactFloat64())
	}

	// Step 7 — final figures, audit record, notification.
	finalEquity := account.Equity.Add(totalPnL).Round(margin.MoneyScale)
	finalMarginUsed := account.MarginUsed.Sub(marginFreed)
	finalLevel := decimal.Zero
	if finalMarginUsed.IsPositive() {
		finalLevel, _ = margin.Level(finalEquity, finalMarginUsed)
	}

	switch {
	case len(closed) > 0 && len(failed) == 0:
		res.Status = model.RunCompleted
		res.Message = fmt.Sprintf("liquidated %d position(s)", len(closed))
	case len(closed) > 0:
		res.Status = model.RunPartial
		res.Message = fmt.Sprintf("liquidated %d position(s), %d failed", len(closed), len(failed))
	default:
		res.Status = model.RunFailed
		res.Message = "no positions could be closed"
	}
	res.Success = len(closed) > 0

	event := &model.LiquidationEvent{
		ID:                  res.RunID,
		AccountID:           ev.AccountID,
		MarginCallID:        ev.ID,
		Reason:              reasonFor(ev.Severity),
		Status:              res.Status,
		InitialMarginLevel:  currentLevel,
		FinalMarginLevel:    finalLevel,
		InitialEquity:       account.Equity.Round(margin.MoneyScale),
		FinalEquity:         finalEquity,
		PositionsLiquidated: len(closed),
		TotalRealizedPnL:    totalPnL.Round(margin.MoneyScale),
		TotalSlippage:       totalSlip.Round(margin.PercentScale),
		ClosedPositions:     closed,
		FailedPositions:     failed,
		StartedAt:           startedAt,
		CompletedAt:         time.Now().UTC(),
	}

	if err := e.store.InsertLiquidationEvent(ctx, event); err != nil {
		if err == store.ErrDuplicateEvent {
			// A prior invocation already recorded this run. Retried
			// triggers land here; report the prior success, do not
			// notify again.
			res.Status = model.RunCompleted
			res.Success = false
			res.Message = "already recorded by a prior run"
			res.Event = nil
			e.consumeMarginCall(ctx, ev.ID, log)
			metrics.LiquidationRuns.WithLabelValues("duplicate").Inc()
			log.Info("liquidation already recorded, skipping")
			return res
		}
		// Positions are closed; the audit insert failing is reported but
		// does not undo the closures (no cross-position atomicity).
		log.Error("failed to persist liquidation event", "err", err)
		res.Message = res.Message + fmt.Sprintf(" (audit record failed: %v)", err)
	} else {
		res.Event = event
	}

	e.consumeMarginCall(ctx, ev.ID, log)
	metrics.LiquidationRuns.WithLabelValues(res.Status).Inc()

	log.Info("liquidation finished",
		"status", res.Status,
		"closed", len(closed),
		"failed", len(failed),
		"realized_pnl", totalPnL.String(),
		"final_level", finalLevel.String(),
	)

	e.notifyRun(ctx, ev.AccountID, event)
	return res
}

// closeOne walks one position through the per-position states:
// price_fetched → price_computed → pnl_computed → closed. Any failure is
// returned to the caller as a local, recordable error.
func (e *Executor) closeOne(ctx context.Context, p model.Position) (*model.ClosedPosition, error) {
	cfg := e.assets.Lookup(p.Symbol)

	// price_fetched
	quote, err := e.quotes.GetQuote(ctx, p.Symbol)
	if err != nil {
		return nil, err
	}

	// price_computed: amplified slippage, adverse directional offset.
	marketSlip, err := margin.SlippagePercent(quote.Bid, quote.Ask)
	if err != nil {
		return nil, err
	}
	slip := margin.LiquidationSlippage(marketSlip)

	execPrice, err := margin.ExecutionPrice(p.Side, quote.Bid, quote.Ask, slip)
	if err != nil {
		return nil, err
	}

	// pnl_computed: P&L over the contract-size-adjusted exposure.
	effectiveSize := p.Quantity.Mul(cfg.ContractSize)
	realized := margin.UnrealizedPnL(p.Side, effectiveSize, p.EntryPrice, execPrice)

	// closed
	if err := e.store.ClosePosition(ctx, p.ID, execPrice, realized); err != nil {
		return nil, err
	}

	// Settle the realized P&L against the cash balance. The position is
	// already closed at this point; a ledger failure is logged, not undone.
	if !realized.IsZero() {
		entryType := model.EntryLiquidationCredit
		if realized.IsNegative() {
			entryType = model.EntryLiquidationDebit
		}
		desc := fmt.Sprintf("forced liquidation of %s %s @ %s", p.Side, p.Symbol, execPrice)
		if _, err := e.store.ApplyBalanceChange(ctx, p.AccountID, realized, entryType, desc, p.ID); err != nil {
			slog.Warn("liquidation ledger entry failed", "position", p.ID, "err", err)
		}
	}

	return &model.ClosedPosition{
		PositionID:     p.ID,
		Symbol:         p.Symbol,
		Side:           p.Side,
		Quantity:       p.Quantity,
		ExecutionPrice: execPrice,
		RealizedPnL:    realized,
		SlippagePct:    slip,
		MarginFreed:    p.MarginRequired,
		ClosedAt:       time.Now().UTC(),
	}, nil
}

// consumeMarginCall flags the originating event processed. Missing ids
// (manual runs) and already-consumed events are fine.
func (e *Executor) consumeMarginCall(ctx context.Context, id string, log *slog.Logger) {
	if id == "" {
		return
	}
	if err := e.store.MarkMarginCallProcessed(ctx, id); err != nil && err != store.ErrNotFound {
		log.Warn("failed to mark margin call processed", "err", err)
	}
}

// notifyRun emits the single per-run notification. Runs that aborted during
// input validation never reach here.
func (e *Executor) notifyRun(ctx context.Context, accountID string, event *model.LiquidationEvent) {
	n := model.Notification{
		Type:     "liquidation",
		Priority: model.PriorityCritical,
		Title:    "Positions liquidated",
		Message: fmt.Sprintf("%d position(s) were forcibly closed (realized P&L %s). Margin level is now %s%%.",
			event.PositionsLiquidated, event.TotalRealizedPnL, event.FinalMarginLevel),
		Metadata: map[string]string{
			"account_id":           accountID,
			"liquidation_event_id": event.ID,
			"status":               event.Status,
			"positions_closed":     fmt.Sprintf("%d", event.PositionsLiquidated),
			"total_realized_pnl":   event.TotalRealizedPnL.String(),
			"final_margin_level":   event.FinalMarginLevel.String(),
		},
	}
	if event.Status == model.RunFailed {
		n.Title = "Liquidation attempt failed"
		n.Message = "A forced liquidation was attempted but no positions could be closed. Margin remains critically low."
	}

	if err := e.notifier.Send(ctx, n); err != nil {
		// Delivery failure does not roll back the liquidation.
		slog.Warn("liquidation notification failed", "account", accountID, "err", err)
	}
}

// RunPending processes every margin-call event currently flagged as
// awaiting liquidation and returns the aggregate outcome.
func (e *Executor) RunPending(ctx context.Context) (*BatchResult, error) {
	events, err := e.store.ListPendingMarginCalls(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending margin calls: %w", err)
	}

	batch := &BatchResult{Processed: len(events)}
	for i := range events {
		res := e.Run(ctx, &events[i])
		if res.Success {
			batch.Succeeded++
		}
		batch.Results = append(batch.Results, res)
	}
	return batch, nil
}
