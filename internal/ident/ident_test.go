package ident

import (
	"crypto/sha256"
	"strings"
	"testing"
)

func TestFromHex_RoundTrip(t *testing.T) {
	hexID := strings.Repeat("ab", 32)
	id, err := FromHex(hexID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != hexID {
		t.Errorf("round trip: got %s, want %s", id.String(), hexID)
	}
}

func TestFromHex_Rejects(t *testing.T) {
	tests := []string{
		"",
		"abcd",
		strings.Repeat("ab", 31),
		strings.Repeat("ab", 33),
		strings.Repeat("zz", 32),
	}
	for _, s := range tests {
		if _, err := FromHex(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestID_IsZero(t *testing.T) {
	var zero ID
	if !zero.IsZero() {
		t.Error("zero ID should report IsZero")
	}
	id, _ := FromHex(strings.Repeat("01", 32))
	if id.IsZero() {
		t.Error("non-zero ID should not report IsZero")
	}
}

func TestHashQuestion_MatchesSHA256(t *testing.T) {
	q := "Will it rain in Lisbon tomorrow?"
	want := Digest(sha256.Sum256([]byte(q)))
	if got := HashQuestion(q); got != want {
		t.Errorf("HashQuestion mismatch: got %s, want %s", got, want)
	}
}

func TestHashQuestion_Distinct(t *testing.T) {
	if HashQuestion("a") == HashQuestion("b") {
		t.Error("different questions should hash differently")
	}
}

func TestMarketKey_Deterministic(t *testing.T) {
	creator, _ := FromHex(strings.Repeat("11", 32))
	qhash := HashQuestion("question")

	k1 := MarketKey(creator, qhash)
	k2 := MarketKey(creator, qhash)
	if k1 != k2 {
		t.Error("market key derivation should be deterministic")
	}
}

func TestMarketKey_SensitiveToInputs(t *testing.T) {
	alice, _ := FromHex(strings.Repeat("11", 32))
	bob, _ := FromHex(strings.Repeat("22", 32))
	qhash := HashQuestion("question")

	if MarketKey(alice, qhash) == MarketKey(bob, qhash) {
		t.Error("different creators should derive different market keys")
	}
	if MarketKey(alice, qhash) == MarketKey(alice, HashQuestion("other")) {
		t.Error("different questions should derive different market keys")
	}
}

func TestBetKey_SensitiveToInputs(t *testing.T) {
	market, _ := FromHex(strings.Repeat("aa", 32))
	alice, _ := FromHex(strings.Repeat("11", 32))
	bob, _ := FromHex(strings.Repeat("22", 32))

	if BetKey(market, alice) == BetKey(market, bob) {
		t.Error("different bettors should derive different bet keys")
	}
	// Swapping the argument roles must not collide either.
	if BetKey(market, alice) == BetKey(alice, market) {
		t.Error("bet key should be order-sensitive")
	}
}

func TestMarketKey_DisjointFromBetKey(t *testing.T) {
	a, _ := FromHex(strings.Repeat("11", 32))
	b, _ := FromHex(strings.Repeat("22", 32))
	if MarketKey(a, Digest(b)) == BetKey(a, b) {
		t.Error("market and bet key spaces should not collide on equal inputs")
	}
}

func TestID_TextMarshalling(t *testing.T) {
	id, _ := FromHex(strings.Repeat("5f", 32))
	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back ID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != id {
		t.Errorf("text round trip: got %s, want %s", back, id)
	}
}
