package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and refresh or invalidate the cache;
// single-record reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.UpdateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) CreateBet(ctx context.Context, b *model.Bet, m *model.Market) error {
	if err := s.primary.CreateBet(ctx, b, m); err != nil {
		return err
	}
	s.cacheBet(ctx, b)
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) SettleBet(ctx context.Context, betID ident.ID, m *model.Market) error {
	if err := s.primary.SettleBet(ctx, betID, m); err != nil {
		return err
	}
	// The bet row changed server-side; invalidate and let the next read
	// re-populate.
	s.rdb.Del(ctx, betCacheKey(betID))
	s.cacheMarket(ctx, m)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id ident.ID) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketCacheKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetBet(ctx context.Context, id ident.ID) (*model.Bet, error) {
	data, err := s.rdb.Get(ctx, betCacheKey(id)).Bytes()
	if err == nil {
		var b model.Bet
		if json.Unmarshal(data, &b) == nil {
			return &b, nil
		}
	}

	b, err := s.primary.GetBet(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheBet(ctx, b)
	return b, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) ListBetsByMarket(ctx context.Context, marketID ident.ID) ([]model.Bet, error) {
	return s.primary.ListBetsByMarket(ctx, marketID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketCacheKey(m.ID), data, s.ttl)
	}
}

func (s *CachedStore) cacheBet(ctx context.Context, b *model.Bet) {
	if data, err := json.Marshal(b); err == nil {
		s.rdb.Set(ctx, betCacheKey(b.ID), data, s.ttl)
	}
}

func marketCacheKey(id ident.ID) string { return "market:" + id.String() }
func betCacheKey(id ident.ID) string    { return "bet:" + id.String() }
