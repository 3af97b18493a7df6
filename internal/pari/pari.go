// Package pari implements the parimutuel settlement arithmetic for
// binary markets: winners divide the combined pool minus a fee,
// proportional to stake.
//
// All settlement math runs on checked integer money.Amount. The fee is
// expressed in basis points (1/10000) and deducted from the combined
// pool before distribution:
//
//	fee          = total_pool * fee_bps / 10000
//	payout(b)    = b.amount * (total_pool - fee) / winning_pool
//
// Integer division truncates toward zero; the residue ("dust") stays in
// the market escrow alongside the fee. Σ payouts never exceeds the
// after-fee pool.
//
// Implied odds for the read API use shopspring/decimal — never float64
// for money, even display-only quotients.
package pari

import (
	"github.com/shopspring/decimal"

	"github.com/paribook/settle-engine/internal/model"
	"github.com/paribook/settle-engine/internal/money"
)

// BpsDenominator converts basis points to a fraction.
const BpsDenominator = 10000

// OddsScale is the number of decimal places for implied-odds rounding.
const OddsScale int32 = 8

// Pool is a snapshot of one market's book: the running totals per side
// and the fee captured at creation. It is stateless — a pure input to
// the settlement functions, mirroring how the market record stores it.
type Pool struct {
	TotalYes money.Amount
	TotalNo  money.Amount
	FeeBps   uint16
}

// Total returns total_yes + total_no, checked.
func (p Pool) Total() (money.Amount, error) {
	return money.Add(p.TotalYes, p.TotalNo)
}

// WinningPool returns the side total backing the given outcome.
func (p Pool) WinningPool(winner model.Outcome) money.Amount {
	if winner == model.OutcomeYes {
		return p.TotalYes
	}
	return p.TotalNo
}

// Fee returns the fee taken from the combined pool. The intermediate
// total_pool * fee_bps product is widened to 128 bits, so the only
// failure mode is a quotient that does not fit 64 bits.
func (p Pool) Fee() (money.Amount, error) {
	total, err := p.Total()
	if err != nil {
		return 0, err
	}
	return money.MulDiv(total, money.Amount(p.FeeBps), BpsDenominator)
}

// Payout computes the winnings for a single bet of the given stake on
// the winning side:
//
//	stake * (total_pool - fee) / winning_pool
//
// A zero winning pool (nobody backed the winning side) fails with
// money.ErrOverflow: the pool is unclaimable and there is no refund
// path. Each winner's share uses the same denominator with their own
// numerator, so payouts across all winners sum to at most the
// after-fee pool.
func (p Pool) Payout(stake money.Amount, winner model.Outcome) (money.Amount, error) {
	total, err := p.Total()
	if err != nil {
		return 0, err
	}
	fee, err := money.MulDiv(total, money.Amount(p.FeeBps), BpsDenominator)
	if err != nil {
		return 0, err
	}
	afterFee, err := money.Sub(total, fee)
	if err != nil {
		return 0, err
	}
	return money.MulDiv(stake, afterFee, p.WinningPool(winner))
}

// Odds is the read-surface view of a pool: implied probabilities and
// the payout multiple per unit staked on each side, after fee.
type Odds struct {
	ImpliedYes    decimal.Decimal `json:"implied_yes"`
	ImpliedNo     decimal.Decimal `json:"implied_no"`
	MultiplierYes decimal.Decimal `json:"multiplier_yes"`
	MultiplierNo  decimal.Decimal `json:"multiplier_no"`
}

// ImpliedOdds derives display odds from the pool. With an empty book
// both probabilities read 0.5 and both multipliers read 0 (nothing to
// win yet). A one-sided book reads probability 1 on the funded side.
func (p Pool) ImpliedOdds() Odds {
	yes := decimal.NewFromUint64(uint64(p.TotalYes))
	no := decimal.NewFromUint64(uint64(p.TotalNo))
	total := yes.Add(no)

	half := decimal.NewFromFloat(0.5)
	odds := Odds{ImpliedYes: half, ImpliedNo: half}
	if total.IsZero() {
		odds.MultiplierYes = decimal.Zero
		odds.MultiplierNo = decimal.Zero
		return odds
	}

	odds.ImpliedYes = yes.Div(total).Round(OddsScale)
	odds.ImpliedNo = no.Div(total).Round(OddsScale)

	feeFrac := decimal.NewFromInt(int64(p.FeeBps)).
		Div(decimal.NewFromInt(BpsDenominator))
	afterFee := total.Mul(decimal.NewFromInt(1).Sub(feeFrac))

	odds.MultiplierYes = multiplier(afterFee, yes)
	odds.MultiplierNo = multiplier(afterFee, no)
	return odds
}

func multiplier(afterFee, side decimal.Decimal) decimal.Decimal {
	if side.IsZero() {
		return decimal.Zero
	}
	return afterFee.Div(side).Round(OddsScale)
}
