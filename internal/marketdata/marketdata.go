// Package marketdata defines the read-only market price collaborator.
// The engine only needs the current bid/ask for a symbol; a missing quote
// is a reportable per-position failure, never fatal to a run.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned when no quote is available for a symbol.
var ErrNoQuote = errors.New("marketdata: no quote for symbol")

// Quote is one bid/ask snapshot. Quotes may be stale by the time an
// execution price is computed; the liquidation slippage model compensates
// for that staleness rather than eliminating it.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp time.Time       `json:"timestamp"`
}

// Mid returns the quote midpoint.
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// Source supplies current quotes.
type Source interface {
	// GetQuote returns the current bid/ask for a symbol, or ErrNoQuote.
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// --- Redis-backed source ---

// RedisSource reads quotes published to Redis by the external price feed,
// one JSON value per symbol under "margin:quote:{symbol}".
type RedisSource struct {
	rdb *redis.Client
}

// NewRedisSource creates a Redis-backed quote source.
func NewRedisSource(rdb *redis.Client) *RedisSource {
	return &RedisSource{rdb: rdb}
}

func quoteKey(symbol string) string { return "margin:quote:" + symbol }

func (s *RedisSource) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	data, err := s.rdb.Get(ctx, quoteKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("marketdata: read quote %s: %w", symbol, err)
	}

	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return Quote{}, fmt.Errorf("marketdata: decode quote %s: %w", symbol, err)
	}
	if q.Bid.LessThanOrEqual(decimal.Zero) || q.Ask.LessThan(q.Bid) {
		return Quote{}, fmt.Errorf("%w: %s (degenerate bid/ask)", ErrNoQuote, symbol)
	}
	return q, nil
}

// --- In-memory source ---

// StaticSource serves quotes from an in-memory map. Used for testing and
// development.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewStaticSource creates an empty in-memory quote source.
func NewStaticSource() *StaticSource {
	return &StaticSource{quotes: make(map[string]Quote)}
}

// SetQuote installs or replaces the quote for a symbol.
func (s *StaticSource) SetQuote(symbol string, bid, ask decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = Quote{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Timestamp: time.Now().UTC(),
	}
}

// RemoveQuote deletes the quote for a symbol, simulating missing data.
func (s *StaticSource) RemoveQuote(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, symbol)
}

func (s *StaticSource) GetQuote(_ context.Context, symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}
	return q, nil
}
