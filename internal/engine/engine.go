// Package engine implements the market lifecycle state machine: the
// four externally invoked operations, their authorization and phase
// guards, and the parimutuel settlement on claim.
//
// Every operation checks the signer, checks the market phase against
// the clock, runs its arithmetic through checked money ops, and commits
// record writes together with the matching ledger transfer. Errors are
// terminal for the operation; nothing partial commits.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/ledger"
	"github.com/paribook/settle-engine/internal/limits"
	"github.com/paribook/settle-engine/internal/model"
	"github.com/paribook/settle-engine/internal/money"
	"github.com/paribook/settle-engine/internal/pari"
	"github.com/paribook/settle-engine/internal/store"
)

var (
	// ErrInvalidEndTime is returned when a market's deadline is not in
	// the future at creation.
	ErrInvalidEndTime = errors.New("engine: end time must be in the future")

	// ErrHashMismatch is returned when the supplied question hash does
	// not match the question bytes.
	ErrHashMismatch = errors.New("engine: question hash mismatch")

	// ErrQuestionTooLong is returned when the question exceeds the
	// maximum length.
	ErrQuestionTooLong = errors.New("engine: question exceeds maximum length")

	// ErrMarketResolved is returned for a bet or resolution attempt on
	// an already resolved market.
	ErrMarketResolved = errors.New("engine: market already resolved")

	// ErrBettingEnded is returned for a bet at or after the deadline.
	ErrBettingEnded = errors.New("engine: betting period has ended")

	// ErrBettingNotEnded is returned for a resolution before the
	// deadline.
	ErrBettingNotEnded = errors.New("engine: betting period has not ended")

	// ErrInvalidAmount is returned for a zero-amount bet.
	ErrInvalidAmount = errors.New("engine: bet amount must be positive")

	// ErrInvalidOutcome is returned when an operation receives an
	// outcome that is not a bettable side.
	ErrInvalidOutcome = errors.New("engine: outcome must be yes or no")

	// ErrUnauthorizedResolution is returned when the resolver signer is
	// not the market's resolution authority.
	ErrUnauthorizedResolution = errors.New("engine: signer is not the resolution authority")

	// ErrMarketNotResolved is returned for a claim before resolution.
	ErrMarketNotResolved = errors.New("engine: market not resolved")

	// ErrNotAWinner is returned when the bet's side is not the resolved
	// outcome.
	ErrNotAWinner = errors.New("engine: bet is not on the winning side")

	// ErrAlreadyClaimed is returned for a second claim on the same bet.
	ErrAlreadyClaimed = errors.New("engine: winnings already claimed")

	// ErrInvalidBettor is returned when a bet's recorded bettor or
	// market does not match the caller context.
	ErrInvalidBettor = errors.New("engine: bet does not belong to signer")
)

// Clock supplies the engine's time. Operations read it exactly once at
// the start, so a guard never sees two different instants.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DefaultFeeBps is the fee stamped onto new markets: 100 bps = 1%.
const DefaultFeeBps uint16 = 100

// Params configures the engine.
type Params struct {
	// FeeBps is captured onto each market at creation. Later changes
	// never affect already-created markets. Zero is a valid value and
	// creates fee-free markets.
	FeeBps uint16

	// Limits are the optional pre-bet risk caps. The zero Policy
	// accepts everything.
	Limits limits.Policy
}

// DefaultParams returns the standard configuration: 1% fee, no caps.
func DefaultParams() Params {
	return Params{FeeBps: DefaultFeeBps}
}

// Engine executes the four operations against a store and a transfer
// ledger. A single mutex serializes operations (single-instance); for
// horizontal scaling, replace with database-level locking.
type Engine struct {
	store  store.Store
	ledger ledger.Transfer
	clock  Clock
	params Params
	mu     sync.Mutex
}

// New creates an engine. A nil clock defaults to the system clock.
func New(st store.Store, lg ledger.Transfer, clock Clock, params Params) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{store: st, ledger: lg, clock: clock, params: params}
}

// InitializeMarket creates a market. The signer becomes its creator and
// initial resolution authority. The supplied hash must match the
// question bytes, the deadline must be in the future, and no market by
// this creator over this question may already exist.
func (e *Engine) InitializeMarket(ctx context.Context, signer ident.ID, question string, endTime int64, questionHash ident.Digest) (*model.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().Unix()

	if endTime <= now {
		return nil, ErrInvalidEndTime
	}
	if ident.HashQuestion(question) != questionHash {
		return nil, ErrHashMismatch
	}
	if len(question) > model.MaxQuestionLength {
		return nil, ErrQuestionTooLong
	}

	m := &model.Market{
		ID:                  ident.MarketKey(signer, questionHash),
		Creator:             signer,
		ResolutionAuthority: signer,
		Question:            question,
		QuestionHash:        questionHash,
		EndTime:             endTime,
		Resolved:            false,
		Outcome:             model.OutcomeUnset,
		TotalYes:            0,
		TotalNo:             0,
		FeeBps:              e.params.FeeBps,
		EscrowBalance:       0,
	}

	if err := e.store.CreateMarket(ctx, m); err != nil {
		return nil, err
	}

	slog.Info("market initialized",
		"market", m.ID,
		"creator", signer,
		"end_time", endTime,
		"fee_bps", m.FeeBps,
	)
	return m, nil
}

// PlaceBet stakes amount on one side of an open market. The signer is
// the bettor; one bet per bettor per market. The stake moves into the
// market's escrow and the side total grows by the same amount, so
// until resolution escrow always equals total_yes + total_no.
func (e *Engine) PlaceBet(ctx context.Context, signer, marketID ident.ID, amount money.Amount, outcome model.Outcome) (*model.Bet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().Unix()

	if !outcome.IsSide() {
		return nil, ErrInvalidOutcome
	}

	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Resolved {
		return nil, ErrMarketResolved
	}
	if now >= m.EndTime {
		return nil, ErrBettingEnded
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	betID := ident.BetKey(marketID, signer)
	if _, err := e.store.GetBet(ctx, betID); err == nil {
		return nil, store.ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if outcome == model.OutcomeYes {
		m.TotalYes, err = money.Add(m.TotalYes, amount)
	} else {
		m.TotalNo, err = money.Add(m.TotalNo, amount)
	}
	if err != nil {
		return nil, err
	}
	m.EscrowBalance, err = money.Add(m.EscrowBalance, amount)
	if err != nil {
		return nil, err
	}

	pool, err := money.Add(m.TotalYes, m.TotalNo)
	if err != nil {
		return nil, err
	}
	if err := e.params.Limits.Check(amount, pool); err != nil {
		return nil, err
	}

	b := &model.Bet{
		ID:      betID,
		Bettor:  signer,
		Market:  marketID,
		Amount:  amount,
		Outcome: outcome,
		Claimed: false,
	}

	// Transfer first, then persist; compensate the transfer if the
	// write fails so funds and records stay consistent.
	if err := e.ledger.Deposit(ctx, signer, marketID, amount); err != nil {
		return nil, err
	}
	if err := e.store.CreateBet(ctx, b, m); err != nil {
		if rbErr := e.ledger.Withdraw(ctx, marketID, signer, amount); rbErr != nil {
			slog.Error("bet rollback failed, escrow and records diverged",
				"market", marketID, "bettor", signer, "amount", amount, "err", rbErr)
		}
		return nil, err
	}

	slog.Info("bet placed",
		"market", marketID,
		"bettor", signer,
		"amount", amount,
		"side", outcome,
		"total_yes", m.TotalYes,
		"total_no", m.TotalNo,
	)
	return b, nil
}

// ResolveMarket declares the outcome. Only the market's resolution
// authority may call it, and only at or after the deadline. Totals
// freeze from this point on.
func (e *Engine) ResolveMarket(ctx context.Context, signer, marketID ident.ID, outcome model.Outcome) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().Unix()

	if !outcome.IsSide() {
		return ErrInvalidOutcome
	}

	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return err
	}
	if m.Resolved {
		return ErrMarketResolved
	}
	if now < m.EndTime {
		return ErrBettingNotEnded
	}
	if signer != m.ResolutionAuthority {
		return ErrUnauthorizedResolution
	}

	m.Resolved = true
	m.Outcome = outcome
	if err := e.store.UpdateMarket(ctx, m); err != nil {
		return err
	}

	slog.Info("market resolved",
		"market", marketID,
		"outcome", outcome,
		"total_yes", m.TotalYes,
		"total_no", m.TotalNo,
	)
	return nil
}

// ClaimWinnings pays the signer's share of the after-fee pool for a
// winning bet, exactly once. The fee and any integer-division dust
// remain in the market escrow.
func (e *Engine) ClaimWinnings(ctx context.Context, signer, marketID ident.ID) (money.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if !m.Resolved || m.Outcome == model.OutcomeUnset {
		return 0, ErrMarketNotResolved
	}

	b, err := e.store.GetBet(ctx, ident.BetKey(marketID, signer))
	if err != nil {
		return 0, err
	}
	if b.Bettor != signer || b.Market != marketID {
		return 0, ErrInvalidBettor
	}
	if b.Outcome != m.Outcome {
		return 0, ErrNotAWinner
	}
	if b.Claimed {
		return 0, ErrAlreadyClaimed
	}

	pool := pari.Pool{TotalYes: m.TotalYes, TotalNo: m.TotalNo, FeeBps: m.FeeBps}
	payout, err := pool.Payout(b.Amount, m.Outcome)
	if err != nil {
		return 0, err
	}

	m.EscrowBalance, err = money.Sub(m.EscrowBalance, payout)
	if err != nil {
		return 0, err
	}

	if err := e.ledger.Withdraw(ctx, marketID, signer, payout); err != nil {
		return 0, err
	}
	if err := e.store.SettleBet(ctx, b.ID, m); err != nil {
		if rbErr := e.ledger.Deposit(ctx, signer, marketID, payout); rbErr != nil {
			slog.Error("claim rollback failed, escrow and records diverged",
				"market", marketID, "bettor", signer, "payout", payout, "err", rbErr)
		}
		return 0, err
	}

	slog.Info("winnings claimed",
		"market", marketID,
		"bettor", signer,
		"payout", payout,
		"escrow_left", m.EscrowBalance,
	)
	return payout, nil
}
