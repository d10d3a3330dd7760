package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot reads of a liquidation run: account snapshots and open
// positions. Writes go to the primary store and invalidate the cache.
//
// TTLs are kept short: a cached snapshot can lag the primary by at most one
// TTL window, so a risk reading may be delayed by that long, never longer.
// Writes through this store invalidate the affected keys; mutations that
// bypass it age out with the TTL.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration

	mu       sync.RWMutex
	posOwner map[string]string // positionID → accountID, learned from reads
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary:  primary,
		rdb:      rdb,
		ttl:      ttl,
		posOwner: make(map[string]string),
	}
}

func accountKey(id string) string   { return "margin:account:" + id }
func positionsKey(id string) string { return "margin:positions:" + id }

// --- Accounts ---

func (s *CachedStore) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(accountID)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, accountKey(accountID), data, s.ttl)
	}
	return a, nil
}

func (s *CachedStore) ApplyBalanceChange(ctx context.Context, accountID string, amount decimal.Decimal, entryType, description, referenceID string) (*model.LedgerEntry, error) {
	entry, err := s.primary.ApplyBalanceChange(ctx, accountID, amount, entryType, description, referenceID)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, accountKey(accountID))
	return entry, nil
}

func (s *CachedStore) GetLedgerEntries(ctx context.Context, accountID string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntries(ctx, accountID)
}

// --- Positions ---

func (s *CachedStore) GetOpenPositions(ctx context.Context, accountID string) ([]model.Position, error) {
	data, err := s.rdb.Get(ctx, positionsKey(accountID)).Bytes()
	if err == nil {
		var positions []model.Position
		if json.Unmarshal(data, &positions) == nil {
			s.rememberOwners(positions)
			return positions, nil
		}
	}

	positions, err := s.primary.GetOpenPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.rememberOwners(positions)

	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, positionsKey(accountID), data, s.ttl)
	}
	return positions, nil
}

func (s *CachedStore) GetAllOpenPositions(ctx context.Context) ([]model.Position, error) {
	// Accrual-scale scan; always served by the primary.
	positions, err := s.primary.GetAllOpenPositions(ctx)
	if err != nil {
		return nil, err
	}
	s.rememberOwners(positions)
	return positions, nil
}

func (s *CachedStore) ClosePosition(ctx context.Context, positionID string, execPrice, realizedPnL decimal.Decimal) error {
	if err := s.primary.ClosePosition(ctx, positionID, execPrice, realizedPnL); err != nil {
		return err
	}

	s.mu.RLock()
	owner, ok := s.posOwner[positionID]
	s.mu.RUnlock()
	if ok {
		s.rdb.Del(ctx, positionsKey(owner), accountKey(owner))
	}
	return nil
}

// --- Pass-through (never cached) ---

func (s *CachedStore) ListPendingMarginCalls(ctx context.Context) ([]model.MarginCallEvent, error) {
	return s.primary.ListPendingMarginCalls(ctx)
}

func (s *CachedStore) MarkMarginCallProcessed(ctx context.Context, id string) error {
	return s.primary.MarkMarginCallProcessed(ctx, id)
}

func (s *CachedStore) InsertLiquidationEvent(ctx context.Context, ev *model.LiquidationEvent) error {
	return s.primary.InsertLiquidationEvent(ctx, ev)
}

func (s *CachedStore) GetLiquidationEvents(ctx context.Context, accountID string) ([]model.LiquidationEvent, error) {
	return s.primary.GetLiquidationEvents(ctx, accountID)
}

// rememberOwners records position → account ownership so position-keyed
// writes can invalidate account-keyed cache entries.
func (s *CachedStore) rememberOwners(positions []model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range positions {
		s.posOwner[p.ID] = p.AccountID
	}
}

var _ Store = (*CachedStore)(nil)
