// Package ident defines the 32-byte identity tag used for principals
// (creators, bettors, resolvers) and the deterministic key derivation for
// market and bet records.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the width of an identity tag in bytes.
const Size = 32

var (
	// ErrInvalidID is returned when parsing an identity that is not
	// exactly 64 hex characters.
	ErrInvalidID = errors.New("ident: invalid id, want 64 hex chars")
)

// ID is an opaque 32-byte identity tag. It identifies principals and
// names market/bet records. IDs are comparable and usable as map keys.
type ID [Size]byte

// Digest is a 32-byte cryptographic digest, used for question hashes.
type Digest [Size]byte

// FromHex parses a 64-character hex string into an ID.
func FromHex(s string) (ID, error) {
	var id ID
	if hex.DecodedLen(len(s)) != Size {
		return id, fmt.Errorf("%w: got %d chars", ErrInvalidID, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %s", ErrInvalidID, s)
	}
	return id, nil
}

// String returns the lowercase hex encoding of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the ID is all zero bytes.
func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalText implements encoding.TextMarshaler (hex).
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler (hex).
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != Size {
		return fmt.Errorf("%w: got %d chars", ErrInvalidID, len(text))
	}
	_, err := hex.Decode(d[:], text)
	return err
}

// DigestFromHex parses a 64-character hex string into a Digest.
func DigestFromHex(s string) (Digest, error) {
	var d Digest
	err := d.UnmarshalText([]byte(s))
	return d, err
}

// HashQuestion computes the SHA-256 digest of the question bytes. Market
// creation requires the caller-supplied hash to match this value.
func HashQuestion(question string) Digest {
	return Digest(sha256.Sum256([]byte(question)))
}

// MarketKey derives the record key for a market:
//
//	H("market" ‖ creator ‖ question_hash)
//
// Two markets by the same creator over the same question collide here,
// which is what enforces the one-market-per-(creator, question) rule.
func MarketKey(creator ID, questionHash Digest) ID {
	h := sha256.New()
	h.Write([]byte("market"))
	h.Write(creator[:])
	h.Write(questionHash[:])
	var id ID
	h.Sum(id[:0])
	return id
}

// BetKey derives the record key for a bet:
//
//	H("bet" ‖ market ‖ bettor)
//
// One bet per (market, bettor) falls out of the key collision.
func BetKey(market, bettor ID) ID {
	h := sha256.New()
	h.Write([]byte("bet"))
	h.Write(market[:])
	h.Write(bettor[:])
	var id ID
	h.Sum(id[:0])
	return id
}
