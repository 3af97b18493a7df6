package model

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/paribook/settle-engine/internal/ident"
)

func testID(t *testing.T, pattern string) ident.ID {
	t.Helper()
	id, err := ident.FromHex(strings.Repeat(pattern, 32))
	if err != nil {
		t.Fatalf("bad test id: %v", err)
	}
	return id
}

func sampleMarket(t *testing.T) *Market {
	t.Helper()
	creator := testID(t, "11")
	qhash := ident.HashQuestion("Will the vote pass?")
	return &Market{
		ID:                  ident.MarketKey(creator, qhash),
		Creator:             creator,
		ResolutionAuthority: creator,
		Question:            "Will the vote pass?",
		QuestionHash:        qhash,
		EndTime:             1735689600,
		Resolved:            true,
		Outcome:             OutcomeYes,
		TotalYes:            300,
		TotalNo:             300,
		FeeBps:              100,
		EscrowBalance:       600,
	}
}

func TestMarketCodec_RoundTrip(t *testing.T) {
	m := sampleMarket(t)
	decoded, err := DecodeMarket(EncodeMarket(m))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *m {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, m)
	}
}

func TestMarketCodec_UnresolvedRoundTrip(t *testing.T) {
	m := sampleMarket(t)
	m.Resolved = false
	m.Outcome = OutcomeUnset

	decoded, err := DecodeMarket(EncodeMarket(m))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *m {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, m)
	}
}

func TestMarketCodec_OutcomeDiscriminant(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    [2]byte
	}{
		{OutcomeUnset, [2]byte{0x00, 0x00}},
		{OutcomeNo, [2]byte{0x01, 0x00}},
		{OutcomeYes, [2]byte{0x01, 0x01}},
	}
	for _, tt := range tests {
		m := sampleMarket(t)
		m.Resolved = tt.outcome != OutcomeUnset
		m.Outcome = tt.outcome

		buf := EncodeMarket(m)
		// Discriminant sits right after the resolved byte:
		// 32+32+4+len(question)+32+8+1 bytes in.
		off := 32 + 32 + 4 + len(m.Question) + 32 + 8 + 1
		got := [2]byte{buf[off], buf[off+1]}
		if got != tt.want {
			t.Errorf("outcome %s: discriminant %v, want %v", tt.outcome, got, tt.want)
		}
	}
}

func TestMarketCodec_LittleEndianAmounts(t *testing.T) {
	m := sampleMarket(t)
	m.TotalYes = 0x0102030405060708
	buf := EncodeMarket(m)

	off := 32 + 32 + 4 + len(m.Question) + 32 + 8 + 1 + 2
	want := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(buf[off:off+8], want) {
		t.Errorf("total_yes bytes %x, want %x", buf[off:off+8], want)
	}
}

func TestDecodeMarket_RejectsBadDiscriminant(t *testing.T) {
	m := sampleMarket(t)
	buf := EncodeMarket(m)
	off := 32 + 32 + 4 + len(m.Question) + 32 + 8 + 1
	buf[off], buf[off+1] = 0x02, 0x00

	if _, err := DecodeMarket(buf); !errors.Is(err, ErrBadDiscriminant) {
		t.Errorf("expected ErrBadDiscriminant, got %v", err)
	}
}

func TestDecodeMarket_RejectsShortBuffer(t *testing.T) {
	buf := EncodeMarket(sampleMarket(t))
	for _, n := range []int{0, 10, 63, len(buf) - 1} {
		if _, err := DecodeMarket(buf[:n]); !errors.Is(err, ErrShortRecord) {
			t.Errorf("truncated to %d bytes: expected ErrShortRecord, got %v", n, err)
		}
	}
}

func TestDecodeMarket_RejectsOversizedQuestion(t *testing.T) {
	m := sampleMarket(t)
	m.Question = strings.Repeat("q", MaxQuestionLength+1)
	if _, err := DecodeMarket(EncodeMarket(m)); err == nil {
		t.Error("expected error for question beyond maximum length")
	}
}

func TestDecodeMarket_RecomputesID(t *testing.T) {
	m := sampleMarket(t)
	m.ID = ident.ID{} // derived field, not serialized

	decoded, err := DecodeMarket(EncodeMarket(m))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := ident.MarketKey(m.Creator, m.QuestionHash)
	if decoded.ID != want {
		t.Errorf("decoded ID %s, want derived %s", decoded.ID, want)
	}
}

func TestBetCodec_RoundTrip(t *testing.T) {
	market := testID(t, "aa")
	bettor := testID(t, "bb")
	b := &Bet{
		ID:      ident.BetKey(market, bettor),
		Bettor:  bettor,
		Market:  market,
		Amount:  12345,
		Outcome: OutcomeNo,
		Claimed: true,
	}

	decoded, err := DecodeBet(EncodeBet(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *b {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, b)
	}
}

func TestBetCodec_FixedWidth(t *testing.T) {
	b := &Bet{
		Bettor:  testID(t, "bb"),
		Market:  testID(t, "aa"),
		Amount:  1,
		Outcome: OutcomeYes,
	}
	if got := len(EncodeBet(b)); got != 74 {
		t.Errorf("bet record width %d, want 74", got)
	}
}

func TestDecodeBet_RejectsShortBuffer(t *testing.T) {
	buf := EncodeBet(&Bet{Bettor: testID(t, "bb"), Market: testID(t, "aa"), Outcome: OutcomeYes, Amount: 1})
	if _, err := DecodeBet(buf[:40]); !errors.Is(err, ErrShortRecord) {
		t.Errorf("expected ErrShortRecord, got %v", err)
	}
}

func TestParseSide(t *testing.T) {
	if o, err := ParseSide("yes"); err != nil || o != OutcomeYes {
		t.Errorf("ParseSide(yes) = %v, %v", o, err)
	}
	if o, err := ParseSide("no"); err != nil || o != OutcomeNo {
		t.Errorf("ParseSide(no) = %v, %v", o, err)
	}
	for _, s := range []string{"", "unset", "YES", "maybe"} {
		if _, err := ParseSide(s); !errors.Is(err, ErrInvalidOutcome) {
			t.Errorf("ParseSide(%q): expected ErrInvalidOutcome, got %v", s, err)
		}
	}
}

func TestOutcome_TextRoundTrip(t *testing.T) {
	for _, o := range []Outcome{OutcomeUnset, OutcomeNo, OutcomeYes} {
		text, _ := o.MarshalText()
		var back Outcome
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if back != o {
			t.Errorf("text round trip: got %s, want %s", back, o)
		}
	}
}
