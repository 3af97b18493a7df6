// Binary record codec. Field widths match the hosting ledger's layout:
// IDs are 32 raw bytes, amounts are u64 little-endian, end_time is i64
// little-endian, strings carry a u32 little-endian length prefix, and
// the outcome option is a 2-byte discriminant:
//
//	{0x00, 0x00} = unset   {0x01, 0x00} = no   {0x01, 0x01} = yes
//
// Derived record IDs are not serialized; decoding recomputes them from
// the key-derivation inputs, so encode/decode round-trips are identity.
package model

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/money"
)

var (
	// ErrShortRecord is returned when a record buffer truncates early.
	ErrShortRecord = errors.New("model: short record")

	// ErrBadDiscriminant is returned for an outcome discriminant that is
	// none of the three defined encodings.
	ErrBadDiscriminant = errors.New("model: bad outcome discriminant")
)

func encodeOutcome(o Outcome) [2]byte {
	switch o {
	case OutcomeNo:
		return [2]byte{0x01, 0x00}
	case OutcomeYes:
		return [2]byte{0x01, 0x01}
	}
	return [2]byte{0x00, 0x00}
}

func decodeOutcome(tag, val byte) (Outcome, error) {
	switch {
	case tag == 0x00 && val == 0x00:
		return OutcomeUnset, nil
	case tag == 0x01 && val == 0x00:
		return OutcomeNo, nil
	case tag == 0x01 && val == 0x01:
		return OutcomeYes, nil
	}
	return OutcomeUnset, fmt.Errorf("%w: {%#02x, %#02x}", ErrBadDiscriminant, tag, val)
}

// EncodeMarket serializes a market record.
func EncodeMarket(m *Market) []byte {
	buf := make([]byte, 0, 32+32+4+len(m.Question)+32+8+1+2+8+8+2+8)
	buf = append(buf, m.Creator[:]...)
	buf = append(buf, m.ResolutionAuthority[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Question)))
	buf = append(buf, m.Question...)
	buf = append(buf, m.QuestionHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(m.EndTime))
	if m.Resolved {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	disc := encodeOutcome(m.Outcome)
	buf = append(buf, disc[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(m.TotalYes))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(m.TotalNo))
	buf = binary.LittleEndian.AppendUint16(buf, m.FeeBps)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(m.EscrowBalance))
	return buf
}

// DecodeMarket deserializes a market record and recomputes its derived ID.
func DecodeMarket(buf []byte) (*Market, error) {
	r := reader{buf: buf}
	var m Market

	r.bytes(m.Creator[:])
	r.bytes(m.ResolutionAuthority[:])
	qlen := r.uint32()
	if qlen > MaxQuestionLength {
		return nil, fmt.Errorf("model: question length %d exceeds %d", qlen, MaxQuestionLength)
	}
	q := make([]byte, qlen)
	r.bytes(q)
	m.Question = string(q)
	r.bytes(m.QuestionHash[:])
	m.EndTime = int64(r.uint64())
	m.Resolved = r.byte() != 0
	tag, val := r.byte(), r.byte()
	m.TotalYes = money.Amount(r.uint64())
	m.TotalNo = money.Amount(r.uint64())
	m.FeeBps = r.uint16()
	m.EscrowBalance = money.Amount(r.uint64())
	if r.err != nil {
		return nil, r.err
	}

	outcome, err := decodeOutcome(tag, val)
	if err != nil {
		return nil, err
	}
	m.Outcome = outcome
	m.ID = ident.MarketKey(m.Creator, m.QuestionHash)
	return &m, nil
}

// EncodeBet serializes a bet record. The bet side uses a single byte
// (0 = no, 1 = yes) since a bet is never unset.
func EncodeBet(b *Bet) []byte {
	buf := make([]byte, 0, 32+32+8+1+1)
	buf = append(buf, b.Bettor[:]...)
	buf = append(buf, b.Market[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Amount))
	if b.Outcome == OutcomeYes {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if b.Claimed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeBet deserializes a bet record and recomputes its derived ID.
func DecodeBet(buf []byte) (*Bet, error) {
	r := reader{buf: buf}
	var b Bet

	r.bytes(b.Bettor[:])
	r.bytes(b.Market[:])
	b.Amount = money.Amount(r.uint64())
	side := r.byte()
	b.Claimed = r.byte() != 0
	if r.err != nil {
		return nil, r.err
	}

	if side != 0 {
		b.Outcome = OutcomeYes
	} else {
		b.Outcome = OutcomeNo
	}
	b.ID = ident.BetKey(b.Market, b.Bettor)
	return &b, nil
}

// reader is a cursor over a record buffer. The first short read latches
// err; subsequent reads return zero values.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = ErrShortRecord
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) bytes(dst []byte) {
	if src := r.take(len(dst)); src != nil {
		copy(dst, src)
	}
}

func (r *reader) byte() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) uint16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) uint32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) uint64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}
