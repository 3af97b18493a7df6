// Package limits implements optional pre-bet risk caps: a per-bet
// stake ceiling and a per-market pool ceiling. Very large pools can
// push the fee or payout arithmetic into overflow at claim time and
// strand funds, so deployments bound inputs here at bet time instead.
package limits

import (
	"errors"

	"github.com/paribook/settle-engine/internal/money"
)

var (
	// ErrStakeLimitExceeded is returned when a single bet exceeds the
	// configured maximum stake.
	ErrStakeLimitExceeded = errors.New("limits: stake exceeds per-bet maximum")

	// ErrPoolLimitExceeded is returned when a bet would push the
	// market's combined pool beyond the configured maximum.
	ErrPoolLimitExceeded = errors.New("limits: market pool maximum exceeded")
)

// Policy holds the caps. A zero value means the cap is disabled, so the
// zero Policy accepts everything.
type Policy struct {
	// MaxStake is the maximum amount a single bet may stake.
	MaxStake money.Amount

	// MaxPool is the maximum combined pool (total_yes + total_no) a
	// market may reach after accepting a bet.
	MaxPool money.Amount
}

// Check validates a bet of the given stake that would leave the market
// with the given combined pool. Returns nil if within limits.
func (p Policy) Check(stake, poolAfter money.Amount) error {
	if p.MaxStake > 0 && stake > p.MaxStake {
		return ErrStakeLimitExceeded
	}
	if p.MaxPool > 0 && poolAfter > p.MaxPool {
		return ErrPoolLimitExceeded
	}
	return nil
}
