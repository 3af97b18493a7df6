// Package model defines the core domain records of the settlement
// engine: markets and bets. All monetary fields use money.Amount —
// checked integer units, never float64 for money.
package model

import (
	"errors"
	"fmt"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/money"
)

// MaxQuestionLength is the maximum question size in bytes.
const MaxQuestionLength = 200

// Outcome is the three-valued market outcome: unset until resolution,
// then yes or no. Bets carry only yes or no.
type Outcome uint8

const (
	OutcomeUnset Outcome = iota
	OutcomeNo
	OutcomeYes
)

// ErrInvalidOutcome is returned when parsing an outcome string that is
// neither "yes" nor "no" (nor "unset").
var ErrInvalidOutcome = errors.New("model: invalid outcome")

// ParseSide parses a bet side. Only "yes" and "no" are valid sides;
// "unset" is never a side a bettor can take.
func ParseSide(s string) (Outcome, error) {
	switch s {
	case "yes":
		return OutcomeYes, nil
	case "no":
		return OutcomeNo, nil
	}
	return OutcomeUnset, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
}

// String returns "unset", "no", or "yes".
func (o Outcome) String() string {
	switch o {
	case OutcomeNo:
		return "no"
	case OutcomeYes:
		return "yes"
	}
	return "unset"
}

// IsSide reports whether the outcome is a bettable side (yes or no).
func (o Outcome) IsSide() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unset", "":
		*o = OutcomeUnset
	case "no":
		*o = OutcomeNo
	case "yes":
		*o = OutcomeYes
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, text)
	}
	return nil
}

// Market is one binary prediction. Its identity is derived from
// (creator, question_hash), so a creator can open at most one market
// per question.
//
// Phase is encoded by (Resolved, Outcome): open while now < EndTime,
// implicitly closed at now >= EndTime with no state write, resolved
// once Resolved is set. Invariant: Resolved ⇔ Outcome != OutcomeUnset.
type Market struct {
	ID                  ident.ID     `json:"id" db:"id"`
	Creator             ident.ID     `json:"creator" db:"creator"`
	ResolutionAuthority ident.ID     `json:"resolution_authority" db:"resolution_authority"`
	Question            string       `json:"question" db:"question"`
	QuestionHash        ident.Digest `json:"question_hash" db:"question_hash"`
	EndTime             int64        `json:"end_time" db:"end_time"` // unix seconds
	Resolved            bool         `json:"resolved" db:"resolved"`
	Outcome             Outcome      `json:"outcome" db:"outcome"`
	TotalYes            money.Amount `json:"total_yes" db:"total_yes"`
	TotalNo             money.Amount `json:"total_no" db:"total_no"`
	FeeBps              uint16       `json:"fee_bps" db:"fee_bps"`
	EscrowBalance       money.Amount `json:"escrow_balance" db:"escrow_balance"`
}

// Bet is one bettor's stake in one market. Amount and Outcome are
// immutable after creation; Claimed flips false → true exactly once.
type Bet struct {
	ID      ident.ID     `json:"id" db:"id"`
	Bettor  ident.ID     `json:"bettor" db:"bettor"`
	Market  ident.ID     `json:"market" db:"market"`
	Amount  money.Amount `json:"amount" db:"amount"`
	Outcome Outcome      `json:"outcome" db:"outcome"`
	Claimed bool         `json:"claimed" db:"claimed"`
}
