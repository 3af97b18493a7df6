package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/model"
	"github.com/paribook/settle-engine/internal/money"
)

// runStores runs a subtest against every Store implementation that
// needs no external service. Postgres is covered by the same engine
// paths in deployment; it needs a live server and is not tested here.
func runStores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(":memory:")
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func testID(t *testing.T, pattern string) ident.ID {
	t.Helper()
	id, err := ident.FromHex(strings.Repeat(pattern, 32))
	if err != nil {
		t.Fatalf("bad test id: %v", err)
	}
	return id
}

func testMarket(t *testing.T, creator ident.ID, question string) *model.Market {
	t.Helper()
	qhash := ident.HashQuestion(question)
	return &model.Market{
		ID:                  ident.MarketKey(creator, qhash),
		Creator:             creator,
		ResolutionAuthority: creator,
		Question:            question,
		QuestionHash:        qhash,
		EndTime:             1000,
		Outcome:             model.OutcomeUnset,
		FeeBps:              100,
	}
}

func TestMarketLifecycle(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := testMarket(t, testID(t, "11"), "Will it rain tomorrow?")

		if err := s.CreateMarket(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.CreateMarket(ctx, m); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("duplicate create: expected ErrAlreadyExists, got %v", err)
		}

		got, err := s.GetMarket(ctx, m.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if *got != *m {
			t.Errorf("get mismatch:\n got %+v\nwant %+v", got, m)
		}

		m.Resolved = true
		m.Outcome = model.OutcomeYes
		m.TotalYes = 300
		m.TotalNo = 100
		m.EscrowBalance = 400
		if err := s.UpdateMarket(ctx, m); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, err = s.GetMarket(ctx, m.ID)
		if err != nil {
			t.Fatalf("get after update: %v", err)
		}
		if *got != *m {
			t.Errorf("update not persisted:\n got %+v\nwant %+v", got, m)
		}
	})
}

func TestGetMarket_NotFound(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		if _, err := s.GetMarket(context.Background(), testID(t, "ff")); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpdateMarket_NotFound(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		m := testMarket(t, testID(t, "11"), "never created")
		if err := s.UpdateMarket(context.Background(), m); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListMarkets_OrderedByDeadline(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		late := testMarket(t, testID(t, "11"), "closes later")
		late.EndTime = 5000
		early := testMarket(t, testID(t, "22"), "closes sooner")
		early.EndTime = 2000

		for _, m := range []*model.Market{late, early} {
			if err := s.CreateMarket(ctx, m); err != nil {
				t.Fatalf("create: %v", err)
			}
		}

		markets, err := s.ListMarkets(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(markets) != 2 {
			t.Fatalf("listed %d markets, want 2", len(markets))
		}
		if markets[0].ID != early.ID || markets[1].ID != late.ID {
			t.Errorf("markets not ordered by end_time: %v then %v",
				markets[0].EndTime, markets[1].EndTime)
		}
	})
}

func TestCreateBet_PersistsBetAndTotals(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := testMarket(t, testID(t, "11"), "Will it rain tomorrow?")
		if err := s.CreateMarket(ctx, m); err != nil {
			t.Fatalf("create market: %v", err)
		}

		bettor := testID(t, "aa")
		b := &model.Bet{
			ID:      ident.BetKey(m.ID, bettor),
			Bettor:  bettor,
			Market:  m.ID,
			Amount:  250,
			Outcome: model.OutcomeYes,
		}
		m.TotalYes = 250
		m.EscrowBalance = 250

		if err := s.CreateBet(ctx, b, m); err != nil {
			t.Fatalf("create bet: %v", err)
		}

		gotBet, err := s.GetBet(ctx, b.ID)
		if err != nil {
			t.Fatalf("get bet: %v", err)
		}
		if *gotBet != *b {
			t.Errorf("bet mismatch:\n got %+v\nwant %+v", gotBet, b)
		}

		// The totals update rides the same write.
		gotMarket, err := s.GetMarket(ctx, m.ID)
		if err != nil {
			t.Fatalf("get market: %v", err)
		}
		if gotMarket.TotalYes != 250 || gotMarket.EscrowBalance != 250 {
			t.Errorf("market totals not persisted with bet: %+v", gotMarket)
		}
	})
}

func TestCreateBet_DuplicateKey(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := testMarket(t, testID(t, "11"), "Will it rain tomorrow?")
		if err := s.CreateMarket(ctx, m); err != nil {
			t.Fatalf("create market: %v", err)
		}

		bettor := testID(t, "aa")
		b := &model.Bet{
			ID:      ident.BetKey(m.ID, bettor),
			Bettor:  bettor,
			Market:  m.ID,
			Amount:  10,
			Outcome: model.OutcomeNo,
		}
		if err := s.CreateBet(ctx, b, m); err != nil {
			t.Fatalf("create bet: %v", err)
		}
		if err := s.CreateBet(ctx, b, m); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestListBetsByMarket(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := testMarket(t, testID(t, "11"), "Will it rain tomorrow?")
		other := testMarket(t, testID(t, "22"), "A different question")
		for _, mk := range []*model.Market{m, other} {
			if err := s.CreateMarket(ctx, mk); err != nil {
				t.Fatalf("create market: %v", err)
			}
		}

		for i, bettor := range []ident.ID{testID(t, "aa"), testID(t, "bb")} {
			b := &model.Bet{
				ID:      ident.BetKey(m.ID, bettor),
				Bettor:  bettor,
				Market:  m.ID,
				Amount:  money.Amount(10 * (i + 1)),
				Outcome: model.OutcomeYes,
			}
			if err := s.CreateBet(ctx, b, m); err != nil {
				t.Fatalf("create bet: %v", err)
			}
		}
		stray := testID(t, "cc")
		if err := s.CreateBet(ctx, &model.Bet{
			ID: ident.BetKey(other.ID, stray), Bettor: stray, Market: other.ID,
			Amount: 5, Outcome: model.OutcomeNo,
		}, other); err != nil {
			t.Fatalf("create stray bet: %v", err)
		}

		bets, err := s.ListBetsByMarket(ctx, m.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(bets) != 2 {
			t.Fatalf("listed %d bets, want 2", len(bets))
		}
		for _, b := range bets {
			if b.Market != m.ID {
				t.Errorf("bet %s belongs to market %s", b.ID, b.Market)
			}
		}
	})
}

func TestSettleBet_MarksClaimedAndWritesEscrow(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := testMarket(t, testID(t, "11"), "Will it rain tomorrow?")
		if err := s.CreateMarket(ctx, m); err != nil {
			t.Fatalf("create market: %v", err)
		}

		bettor := testID(t, "aa")
		b := &model.Bet{
			ID:      ident.BetKey(m.ID, bettor),
			Bettor:  bettor,
			Market:  m.ID,
			Amount:  100,
			Outcome: model.OutcomeYes,
		}
		m.TotalYes = 100
		m.EscrowBalance = 100
		if err := s.CreateBet(ctx, b, m); err != nil {
			t.Fatalf("create bet: %v", err)
		}

		m.EscrowBalance = 1 // post-payout residue
		if err := s.SettleBet(ctx, b.ID, m); err != nil {
			t.Fatalf("settle: %v", err)
		}

		gotBet, _ := s.GetBet(ctx, b.ID)
		if !gotBet.Claimed {
			t.Error("settle did not mark the bet claimed")
		}
		gotMarket, _ := s.GetMarket(ctx, m.ID)
		if gotMarket.EscrowBalance != 1 {
			t.Errorf("escrow = %s, want 1", gotMarket.EscrowBalance)
		}
	})
}

func TestSettleBet_NotFound(t *testing.T) {
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := testMarket(t, testID(t, "11"), "Will it rain tomorrow?")
		if err := s.CreateMarket(ctx, m); err != nil {
			t.Fatalf("create market: %v", err)
		}
		if err := s.SettleBet(ctx, testID(t, "ff"), m); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
