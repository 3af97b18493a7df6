package store

import (
	"context"
	"sort"
	"sync"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	markets map[ident.ID]*model.Market
	bets    map[ident.ID]*model.Bet
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets: make(map[ident.ID]*model.Market),
		bets:    make(map[ident.ID]*model.Bet),
	}
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.markets[m.ID]; exists {
		return ErrAlreadyExists
	}

	// Store a copy to avoid external mutation.
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id ident.ID) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *m)
	}
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].EndTime != markets[j].EndTime {
			return markets[i].EndTime < markets[j].EndTime
		}
		return markets[i].ID.String() < markets[j].ID.String()
	})
	return markets, nil
}

func (s *MemoryStore) UpdateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateBet(_ context.Context, b *model.Bet, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bets[b.ID]; exists {
		return ErrAlreadyExists
	}
	if _, ok := s.markets[m.ID]; !ok {
		return ErrNotFound
	}

	bcp := *b
	mcp := *m
	s.bets[b.ID] = &bcp
	s.markets[m.ID] = &mcp
	return nil
}

func (s *MemoryStore) GetBet(_ context.Context, id ident.ID) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) ListBetsByMarket(_ context.Context, marketID ident.ID) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bets []model.Bet
	for _, b := range s.bets {
		if b.Market == marketID {
			bets = append(bets, *b)
		}
	}
	sort.Slice(bets, func(i, j int) bool {
		return bets[i].ID.String() < bets[j].ID.String()
	})
	return bets, nil
}

func (s *MemoryStore) SettleBet(_ context.Context, betID ident.ID, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bets[betID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.markets[m.ID]; !ok {
		return ErrNotFound
	}

	b.Claimed = true
	mcp := *m
	s.markets[m.ID] = &mcp
	return nil
}
