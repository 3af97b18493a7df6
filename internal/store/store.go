// Package store defines the persistence interface for market and bet
// records. Implementations include PostgreSQL (source of truth for
// multi-node deployments), SQLite (single-node), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/model"
)

var (
	// ErrNotFound is returned on a record lookup miss.
	ErrNotFound = errors.New("store: record not found")

	// ErrAlreadyExists is returned when a market or bet key collides.
	ErrAlreadyExists = errors.New("store: record already exists")
)

// Store is the persistence interface. Writes are shaped after the
// engine's operations so each commits atomically: CreateBet persists
// the bet together with the market's updated totals, and SettleBet
// marks the claim together with the reduced escrow.
type Store interface {
	// --- Market records ---

	// CreateMarket persists a new market. Fails with ErrAlreadyExists
	// if the derived (creator, question_hash) key collides.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by its derived ID.
	GetMarket(ctx context.Context, id ident.ID) (*model.Market, error)

	// ListMarkets returns all markets, soonest deadline first.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// UpdateMarket overwrites a market's mutable fields (resolution
	// flags, totals, escrow).
	UpdateMarket(ctx context.Context, m *model.Market) error

	// --- Bet records ---

	// CreateBet persists a new bet and the market carrying its updated
	// totals and escrow in one atomic write. Fails with
	// ErrAlreadyExists if the (market, bettor) key collides.
	CreateBet(ctx context.Context, b *model.Bet, m *model.Market) error

	// GetBet retrieves a bet by its derived ID.
	GetBet(ctx context.Context, id ident.ID) (*model.Bet, error)

	// ListBetsByMarket returns all bets placed on a market.
	ListBetsByMarket(ctx context.Context, marketID ident.ID) ([]model.Bet, error)

	// SettleBet marks a bet claimed and writes the market's reduced
	// escrow in one atomic write.
	SettleBet(ctx context.Context, betID ident.ID, m *model.Market) error
}
