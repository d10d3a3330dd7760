package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*model.Account // Balance is authoritative; Equity/MarginUsed derived
	positions   map[string]*model.Position
	ledger      []model.LedgerEntry
	marginCalls map[string]*model.MarginCallEvent
	processed   map[string]bool
	liqEvents   map[string]*model.LiquidationEvent
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*model.Account),
		positions:   make(map[string]*model.Position),
		marginCalls: make(map[string]*model.MarginCallEvent),
		processed:   make(map[string]bool),
		liqEvents:   make(map[string]*model.LiquidationEvent),
	}
}

// --- Seed helpers (tests and development) ---

// PutAccount inserts or replaces an account. Only Balance is retained;
// derived fields are recomputed on read.
func (s *MemoryStore) PutAccount(a *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *a
	s.accounts[a.ID] = &copy
}

// PutPosition inserts or replaces a position.
func (s *MemoryStore) PutPosition(p *model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *p
	s.positions[p.ID] = &copy
}

// PutMarginCall inserts a margin-call event in the pending state.
func (s *MemoryStore) PutMarginCall(ev *model.MarginCallEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *ev
	s.marginCalls[ev.ID] = &copy
}

// --- Accounts ---

func (s *MemoryStore) GetAccount(_ context.Context, accountID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}

	out := *a
	out.Equity = a.Balance
	out.MarginUsed = decimal.Zero
	for _, p := range s.positions {
		if p.AccountID != accountID || p.Status != model.PositionOpen {
			continue
		}
		out.Equity = out.Equity.Add(p.UnrealizedPnL)
		out.MarginUsed = out.MarginUsed.Add(p.MarginRequired)
	}
	return &out, nil
}

func (s *MemoryStore) ApplyBalanceChange(_ context.Context, accountID string, amount decimal.Decimal, entryType, description, referenceID string) (*model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}

	before := a.Balance
	a.Balance = a.Balance.Add(amount)

	entry := model.LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  a.Balance,
		Description:   description,
		ReferenceID:   referenceID,
		Timestamp:     time.Now().UTC(),
	}
	s.ledger = append(s.ledger, entry)
	return &entry, nil
}

func (s *MemoryStore) GetLedgerEntries(_ context.Context, accountID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

// --- Positions ---

func (s *MemoryStore) GetOpenPositions(_ context.Context, accountID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.AccountID == accountID && p.Status == model.PositionOpen {
			result = append(result, *p)
		}
	}
	sortPositions(result)
	return result, nil
}

func (s *MemoryStore) GetAllOpenPositions(_ context.Context) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.Status == model.PositionOpen {
			result = append(result, *p)
		}
	}
	sortPositions(result)
	return result, nil
}

func (s *MemoryStore) ClosePosition(_ context.Context, positionID string, execPrice, realizedPnL decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[positionID]
	if !ok || p.Status != model.PositionOpen {
		return ErrNotFound
	}

	now := time.Now().UTC()
	p.Status = model.PositionLiquidated
	p.ClosedPrice = &execPrice
	p.RealizedPnL = &realizedPnL
	p.ClosedAt = &now
	return nil
}

// --- Margin calls ---

func (s *MemoryStore) ListPendingMarginCalls(_ context.Context) ([]model.MarginCallEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.MarginCallEvent
	for id, ev := range s.marginCalls {
		if !s.processed[id] {
			result = append(result, *ev)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TriggeredAt.Before(result[j].TriggeredAt)
	})
	return result, nil
}

func (s *MemoryStore) MarkMarginCallProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.marginCalls[id]; !ok {
		return ErrNotFound
	}
	s.processed[id] = true
	return nil
}

// --- Liquidation audit trail ---

func (s *MemoryStore) InsertLiquidationEvent(_ context.Context, ev *model.LiquidationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.liqEvents[ev.ID]; exists {
		return ErrDuplicateEvent
	}
	copy := *ev
	s.liqEvents[ev.ID] = &copy
	return nil
}

func (s *MemoryStore) GetLiquidationEvents(_ context.Context, accountID string) ([]model.LiquidationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LiquidationEvent
	for _, ev := range s.liqEvents {
		if ev.AccountID == accountID {
			result = append(result, *ev)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

// sortPositions orders by open time then id so read order is deterministic.
func sortPositions(ps []model.Position) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].OpenedAt.Equal(ps[j].OpenedAt) {
			return ps[i].OpenedAt.Before(ps[j].OpenedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
