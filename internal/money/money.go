// Package money implements overflow-checked arithmetic on the engine's
// currency unit: a non-negative 64-bit integer. Every add, sub, mul, and
// div is checked — never raw operators for money.
package money

import (
	"errors"
	"math"
	"math/bits"
	"strconv"
)

// ErrOverflow is returned on any arithmetic violation: overflow,
// underflow, division by zero, or a quotient that does not fit in 64
// bits. Callers surface it as a terminal failure of the operation.
var ErrOverflow = errors.New("money: arithmetic overflow")

// Amount is a quantity of currency units. The domain is [0, 2^64).
type Amount uint64

// MaxAmount is the largest representable amount.
const MaxAmount = Amount(math.MaxUint64)

// Add returns a + b, or ErrOverflow if the sum exceeds MaxAmount.
func Add(a, b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return Amount(sum), nil
}

// Sub returns a - b, or ErrOverflow if b > a.
func Sub(a, b Amount) (Amount, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return Amount(diff), nil
}

// Mul returns a * b, or ErrOverflow if the product exceeds MaxAmount.
func Mul(a, b Amount) (Amount, error) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 {
		return 0, ErrOverflow
	}
	return Amount(lo), nil
}

// Div returns a / b truncated toward zero, or ErrOverflow if b = 0.
func Div(a, b Amount) (Amount, error) {
	if b == 0 {
		return 0, ErrOverflow
	}
	return a / b, nil
}

// MulDiv returns a * b / d with the intermediate product widened to 128
// bits, so a*b may exceed 64 bits as long as the quotient fits. Returns
// ErrOverflow when d = 0 or the quotient does not fit in 64 bits. This
// is the payout primitive: stake * pool_after_fee / winning_pool.
func MulDiv(a, b, d Amount) (Amount, error) {
	if d == 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(d) {
		// Quotient would need more than 64 bits; bits.Div64 panics here.
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, uint64(d))
	return Amount(q), nil
}

// Parse converts a decimal string into an Amount. Stores persist
// amounts as decimal text (NUMERIC columns) and read them back here.
func Parse(s string) (Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrOverflow
	}
	return Amount(v), nil
}

// String returns the decimal representation.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// MarshalText implements encoding.TextMarshaler. Amounts travel as
// decimal strings in JSON so values above 2^53 survive JavaScript.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 10, 64)
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}
