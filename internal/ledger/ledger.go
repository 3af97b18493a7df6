// Package ledger defines the value-transfer adapter the engine uses to
// move currency between bettor accounts and market escrow, plus an
// in-memory reference implementation.
//
// The engine treats a market's escrow_balance field as a logical
// counter; the ledger holds actual custody. The two are kept consistent
// by ordering transfer before record write inside each operation and
// compensating the transfer if the write fails.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/money"
)

// ErrInsufficientFunds is returned when the source account cannot cover
// the transfer.
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

// Transfer is the narrow interface the engine depends on. Deposit moves
// a bettor's stake into market escrow; Withdraw pays winnings out of
// escrow. Both either fully apply or leave balances untouched.
type Transfer interface {
	// Deposit moves amount from a bettor account into a market escrow
	// account.
	Deposit(ctx context.Context, from, to ident.ID, amount money.Amount) error

	// Withdraw moves amount from a market escrow account to a bettor
	// account.
	Withdraw(ctx context.Context, from, to ident.ID, amount money.Amount) error
}

// Entry is an immutable record of one executed transfer.
// Once created, these are never modified or deleted.
type Entry struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"` // "deposit" or "withdraw"
	From      ident.ID     `json:"from"`
	To        ident.ID     `json:"to"`
	Amount    money.Amount `json:"amount"`
	Timestamp time.Time    `json:"timestamp"`
}

// MemoryLedger implements Transfer with in-memory account balances and
// an append-only journal. Used for testing and single-node deployments;
// production custody lives in the hosting ledger.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[ident.ID]money.Amount
	journal  []Entry

	// openingBalance auto-funds first-seen debit accounts, so a dev
	// deployment can take bets without a faucet. Zero disables it.
	openingBalance money.Amount
}

// NewMemoryLedger creates an empty ledger. openingBalance > 0 credits
// that amount to any account the first time it is debited.
func NewMemoryLedger(openingBalance money.Amount) *MemoryLedger {
	return &MemoryLedger{
		balances:       make(map[ident.ID]money.Amount),
		openingBalance: openingBalance,
	}
}

// Fund credits an account directly. Tests use this instead of the
// opening-balance convenience.
func (l *MemoryLedger) Fund(account ident.ID, amount money.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := money.Add(l.balances[account], amount)
	if err != nil {
		return err
	}
	l.balances[account] = next
	return nil
}

// Balance returns the current balance of an account.
func (l *MemoryLedger) Balance(account ident.ID) money.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Journal returns a copy of the transfer journal.
func (l *MemoryLedger) Journal() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.journal))
	copy(out, l.journal)
	return out
}

func (l *MemoryLedger) Deposit(_ context.Context, from, to ident.ID, amount money.Amount) error {
	return l.move("deposit", from, to, amount, true)
}

func (l *MemoryLedger) Withdraw(_ context.Context, from, to ident.ID, amount money.Amount) error {
	// Escrow accounts are never auto-funded: every unit they hold came
	// in through a deposit.
	return l.move("withdraw", from, to, amount, false)
}

func (l *MemoryLedger) move(kind string, from, to ident.ID, amount money.Amount, autoFund bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if autoFund && l.openingBalance > 0 {
		if _, seen := l.balances[from]; !seen {
			l.balances[from] = l.openingBalance
		}
	}

	src, err := money.Sub(l.balances[from], amount)
	if err != nil {
		return ErrInsufficientFunds
	}
	dst, err := money.Add(l.balances[to], amount)
	if err != nil {
		return err
	}

	l.balances[from] = src
	l.balances[to] = dst
	l.journal = append(l.journal, Entry{
		ID:        uuid.New().String(),
		Kind:      kind,
		From:      from,
		To:        to,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
	return nil
}
