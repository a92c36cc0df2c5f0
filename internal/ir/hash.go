package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainIntent = "ledgerunit/intent/v1"
	DomainKey    = "ledgerunit/key/v1"
	DomainCode   = "ledgerunit/code/v1"
)

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// String returns the lowercase hex form.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashWithDomain computes SHA256(domain || 0x00 || data).
// The null separator removes domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// IntentHash hashes the canonical JSON of a transaction intent. Signatures
// are made over this digest.
func IntentHash(intent IRObject) (Hash, error) {
	canonical, err := MarshalCanonical(intent)
	if err != nil {
		return Hash{}, fmt.Errorf("IntentHash: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainIntent, canonical), nil
}

// CodeHash identifies published package code.
func CodeHash(code []byte) Hash {
	return HashWithDomain(DomainCode, code)
}

// MustIntentHash is like IntentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustIntentHash(intent IRObject) Hash {
	h, err := IntentHash(intent)
	if err != nil {
		panic(err)
	}
	return h
}
