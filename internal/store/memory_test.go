package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestGetAccount_DerivesEquityAndMarginUsed(t *testing.T) {
	s := NewMemoryStore()
	s.PutAccount(&model.Account{ID: "acct-1", Balance: d(10000)})
	s.PutPosition(&model.Position{
		ID: "p1", AccountID: "acct-1", Status: model.PositionOpen,
		UnrealizedPnL: d(-2000), MarginRequired: d(14000),
	})
	s.PutPosition(&model.Position{
		ID: "p2", AccountID: "acct-1", Status: model.PositionOpen,
		UnrealizedPnL: d(500), MarginRequired: d(6000),
	})
	// Closed positions contribute nothing.
	s.PutPosition(&model.Position{
		ID: "p3", AccountID: "acct-1", Status: model.PositionLiquidated,
		UnrealizedPnL: d(-9999), MarginRequired: d(9999),
	})
	// Other accounts contribute nothing.
	s.PutPosition(&model.Position{
		ID: "p4", AccountID: "acct-2", Status: model.PositionOpen,
		UnrealizedPnL: d(777), MarginRequired: d(777),
	})

	a, err := s.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !a.Equity.Equal(d(8500)) {
		t.Errorf("equity = %s, want 8500", a.Equity)
	}
	if !a.MarginUsed.Equal(d(20000)) {
		t.Errorf("margin used = %s, want 20000", a.MarginUsed)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetAccount(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyBalanceChange(t *testing.T) {
	s := NewMemoryStore()
	s.PutAccount(&model.Account{ID: "acct-1", Balance: d(1000)})

	entry, err := s.ApplyBalanceChange(context.Background(), "acct-1", d(-14.4),
		model.EntryCarryCharge, "overnight carry charge for long BTC-USD", "p1")
	if err != nil {
		t.Fatalf("ApplyBalanceChange: %v", err)
	}

	if !entry.BalanceBefore.Equal(d(1000)) || !entry.BalanceAfter.Equal(d(985.6)) {
		t.Errorf("balance stamps = %s/%s, want 1000/985.6", entry.BalanceBefore, entry.BalanceAfter)
	}
	if entry.Type != model.EntryCarryCharge || entry.ReferenceID != "p1" {
		t.Errorf("entry metadata: %+v", entry)
	}
	if entry.ID == "" {
		t.Error("entry must get an id")
	}

	a, _ := s.GetAccount(context.Background(), "acct-1")
	if !a.Balance.Equal(d(985.6)) {
		t.Errorf("balance = %s, want 985.6", a.Balance)
	}

	entries, _ := s.GetLedgerEntries(context.Background(), "acct-1")
	if len(entries) != 1 {
		t.Errorf("expected 1 ledger entry, got %d", len(entries))
	}

	if _, err := s.ApplyBalanceChange(context.Background(), "missing", d(1), "x", "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing account, got %v", err)
	}
}

func TestClosePosition(t *testing.T) {
	s := NewMemoryStore()
	s.PutPosition(&model.Position{
		ID: "p1", AccountID: "acct-1", Status: model.PositionOpen,
	})

	if err := s.ClosePosition(context.Background(), "p1", d(47971.2), d(-2028.8)); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}

	open, _ := s.GetOpenPositions(context.Background(), "acct-1")
	if len(open) != 0 {
		t.Errorf("position should no longer be open, got %d", len(open))
	}

	// Closing again fails: the position is no longer open.
	if err := s.ClosePosition(context.Background(), "p1", d(1), d(0)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double close, got %v", err)
	}
}

func TestGetOpenPositions_Ordering(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.PutPosition(&model.Position{ID: "b", AccountID: "a", Status: model.PositionOpen, OpenedAt: t0})
	s.PutPosition(&model.Position{ID: "a", AccountID: "a", Status: model.PositionOpen, OpenedAt: t0})
	s.PutPosition(&model.Position{ID: "c", AccountID: "a", Status: model.PositionOpen, OpenedAt: t0.Add(-time.Hour)})

	got, _ := s.GetOpenPositions(context.Background(), "a")
	if len(got) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "a" || got[2].ID != "b" {
		t.Errorf("order = [%s %s %s], want [c a b]", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestMarginCallLifecycle(t *testing.T) {
	s := NewMemoryStore()
	s.PutMarginCall(&model.MarginCallEvent{ID: "mc-1", AccountID: "a", TriggeredAt: time.Now().UTC()})

	pending, _ := s.ListPendingMarginCalls(context.Background())
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}

	if err := s.MarkMarginCallProcessed(context.Background(), "mc-1"); err != nil {
		t.Fatalf("MarkMarginCallProcessed: %v", err)
	}
	pending, _ = s.ListPendingMarginCalls(context.Background())
	if len(pending) != 0 {
		t.Errorf("expected 0 pending after processing, got %d", len(pending))
	}

	if err := s.MarkMarginCallProcessed(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertLiquidationEvent_Duplicate(t *testing.T) {
	s := NewMemoryStore()
	ev := &model.LiquidationEvent{ID: "run-1", AccountID: "a", Status: model.RunCompleted, StartedAt: time.Now().UTC()}

	if err := s.InsertLiquidationEvent(context.Background(), ev); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.InsertLiquidationEvent(context.Background(), ev); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("expected ErrDuplicateEvent, got %v", err)
	}

	events, _ := s.GetLiquidationEvents(context.Background(), "a")
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}
