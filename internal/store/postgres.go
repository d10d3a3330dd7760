package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// closed/failed sub-records of liquidation events are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Accounts ---

func (s *PostgresStore) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	var a model.Account
	var balance, pnl, marginUsed string

	err := s.pool.QueryRow(ctx,
		`SELECT a.id, a.balance::TEXT,
		        COALESCE(SUM(p.unrealized_pnl) FILTER (WHERE p.status = 'open'), 0)::TEXT,
		        COALESCE(SUM(p.margin_required) FILTER (WHERE p.status = 'open'), 0)::TEXT
		 FROM accounts a
		 LEFT JOIN positions p ON p.account_id = a.id
		 WHERE a.id = $1
		 GROUP BY a.id, a.balance`, accountID).
		Scan(&a.ID, &balance, &pnl, &marginUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}

	a.Balance, _ = decimal.NewFromString(balance)
	openPnL, _ := decimal.NewFromString(pnl)
	a.Equity = a.Balance.Add(openPnL)
	a.MarginUsed, _ = decimal.NewFromString(marginUsed)

	return &a, nil
}

func (s *PostgresStore) ApplyBalanceChange(ctx context.Context, accountID string, amount decimal.Decimal, entryType, description, referenceID string) (*model.LedgerEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin balance change: %w", err)
	}
	defer tx.Rollback(ctx)

	var before string
	err = tx.QueryRow(ctx,
		`SELECT balance::TEXT FROM accounts WHERE id = $1 FOR UPDATE`, accountID).
		Scan(&before)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account %s: %w", accountID, err)
	}

	balanceBefore, _ := decimal.NewFromString(before)
	balanceAfter := balanceBefore.Add(amount)

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $2::NUMERIC WHERE id = $1`,
		accountID, balanceAfter.String()); err != nil {
		return nil, fmt.Errorf("update balance %s: %w", accountID, err)
	}

	entry := &model.LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Description:   description,
		ReferenceID:   referenceID,
		Timestamp:     time.Now().UTC(),
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, account_id, type, amount, balance_before, balance_after, description, reference_id, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9)`,
		entry.ID, entry.AccountID, entry.Type,
		entry.Amount.String(), entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		entry.Description, entry.ReferenceID, entry.Timestamp); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit balance change: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) GetLedgerEntries(ctx context.Context, accountID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, type, amount::TEXT, balance_before::TEXT, balance_after::TEXT,
		        description, reference_id, timestamp
		 FROM ledger_entries WHERE account_id = $1 ORDER BY timestamp`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var amountS, beforeS, afterS string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type,
			&amountS, &beforeS, &afterS,
			&e.Description, &e.ReferenceID, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amountS)
		e.BalanceBefore, _ = decimal.NewFromString(beforeS)
		e.BalanceAfter, _ = decimal.NewFromString(afterS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Positions ---

const positionColumns = `id, account_id, symbol, side, quantity::TEXT, entry_price::TEXT,
	current_price::TEXT, leverage::TEXT, margin_required::TEXT, notional_value::TEXT,
	unrealized_pnl::TEXT, status, opened_at, closed_price::TEXT, realized_pnl::TEXT, closed_at`

func (s *PostgresStore) GetOpenPositions(ctx context.Context, accountID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions WHERE account_id = $1 AND status = 'open'
		 ORDER BY opened_at, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (s *PostgresStore) GetAllOpenPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions WHERE status = 'open'
		 ORDER BY opened_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (s *PostgresStore) ClosePosition(ctx context.Context, positionID string, execPrice, realizedPnL decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions
		 SET status = 'liquidated',
		     closed_price = $2::NUMERIC,
		     realized_pnl = $3::NUMERIC,
		     closed_at = $4
		 WHERE id = $1 AND status = 'open'`,
		positionID, execPrice.String(), realizedPnL.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("close position %s: %w", positionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Margin calls ---

func (s *PostgresStore) ListPendingMarginCalls(ctx context.Context) ([]model.MarginCallEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, equity::TEXT, margin_used::TEXT, margin_level::TEXT, severity, triggered_at
		 FROM margin_call_events WHERE processed = FALSE ORDER BY triggered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.MarginCallEvent
	for rows.Next() {
		var ev model.MarginCallEvent
		var equityS, usedS, levelS string
		if err := rows.Scan(&ev.ID, &ev.AccountID, &equityS, &usedS, &levelS,
			&ev.Severity, &ev.TriggeredAt); err != nil {
			return nil, err
		}
		ev.Equity, _ = decimal.NewFromString(equityS)
		ev.MarginUsed, _ = decimal.NewFromString(usedS)
		ev.MarginLevel, _ = decimal.NewFromString(levelS)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) MarkMarginCallProcessed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE margin_call_events SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark margin call %s processed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Liquidation audit trail ---

func (s *PostgresStore) InsertLiquidationEvent(ctx context.Context, ev *model.LiquidationEvent) error {
	closed, err := json.Marshal(ev.ClosedPositions)
	if err != nil {
		return fmt.Errorf("marshal closed positions: %w", err)
	}
	failed, err := json.Marshal(ev.FailedPositions)
	if err != nil {
		return fmt.Errorf("marshal failed positions: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO liquidation_events
		 (id, account_id, margin_call_id, reason, status,
		  initial_margin_level, final_margin_level, initial_equity, final_equity,
		  positions_liquidated, total_realized_pnl, total_slippage,
		  closed_positions, failed_positions, started_at, completed_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5,
		         $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
		         $10, $11::NUMERIC, $12::NUMERIC, $13, $14, $15, $16)`,
		ev.ID, ev.AccountID, ev.MarginCallID, ev.Reason, ev.Status,
		ev.InitialMarginLevel.String(), ev.FinalMarginLevel.String(),
		ev.InitialEquity.String(), ev.FinalEquity.String(),
		ev.PositionsLiquidated, ev.TotalRealizedPnL.String(), ev.TotalSlippage.String(),
		closed, failed, ev.StartedAt, ev.CompletedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("insert liquidation event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetLiquidationEvents(ctx context.Context, accountID string) ([]model.LiquidationEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, COALESCE(margin_call_id, ''), reason, status,
		        initial_margin_level::TEXT, final_margin_level::TEXT,
		        initial_equity::TEXT, final_equity::TEXT,
		        positions_liquidated, total_realized_pnl::TEXT, total_slippage::TEXT,
		        closed_positions, failed_positions, started_at, completed_at
		 FROM liquidation_events WHERE account_id = $1 ORDER BY started_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.LiquidationEvent
	for rows.Next() {
		var ev model.LiquidationEvent
		var initLevelS, finalLevelS, initEqS, finalEqS, pnlS, slipS string
		var closed, failed []byte
		if err := rows.Scan(&ev.ID, &ev.AccountID, &ev.MarginCallID, &ev.Reason, &ev.Status,
			&initLevelS, &finalLevelS, &initEqS, &finalEqS,
			&ev.PositionsLiquidated, &pnlS, &slipS,
			&closed, &failed, &ev.StartedAt, &ev.CompletedAt); err != nil {
			return nil, err
		}
		ev.InitialMarginLevel, _ = decimal.NewFromString(initLevelS)
		ev.FinalMarginLevel, _ = decimal.NewFromString(finalLevelS)
		ev.InitialEquity, _ = decimal.NewFromString(initEqS)
		ev.FinalEquity, _ = decimal.NewFromString(finalEqS)
		ev.TotalRealizedPnL, _ = decimal.NewFromString(pnlS)
		ev.TotalSlippage, _ = decimal.NewFromString(slipS)
		json.Unmarshal(closed, &ev.ClosedPositions)
		json.Unmarshal(failed, &ev.FailedPositions)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// scanPositions reads pgx rows into Position slices. Nullable close fields
// scan through string pointers.
func scanPositions(rows pgx.Rows) ([]model.Position, error) {
	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var qtyS, entryS, currentS, levS, marginS, notionalS, pnlS string
		var closedPriceS, realizedS *string

		if err := rows.Scan(&p.ID, &p.AccountID, &p.Symbol, &p.Side,
			&qtyS, &entryS, &currentS, &levS, &marginS, &notionalS, &pnlS,
			&p.Status, &p.OpenedAt, &closedPriceS, &realizedS, &p.ClosedAt); err != nil {
			return nil, err
		}

		p.Quantity, _ = decimal.NewFromString(qtyS)
		p.EntryPrice, _ = decimal.NewFromString(entryS)
		p.CurrentPrice, _ = decimal.NewFromString(currentS)
		p.Leverage, _ = decimal.NewFromString(levS)
		p.MarginRequired, _ = decimal.NewFromString(marginS)
		p.NotionalValue, _ = decimal.NewFromString(notionalS)
		p.UnrealizedPnL, _ = decimal.NewFromString(pnlS)

		if closedPriceS != nil {
			v, _ := decimal.NewFromString(*closedPriceS)
			p.ClosedPrice = &v
		}
		if realizedS != nil {
			v, _ := decimal.NewFromString(*realizedS)
			p.RealizedPnL = &v
		}

		positions = append(positions, p)
	}
	return positions, rows.Err()
}
