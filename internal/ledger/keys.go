package ledger

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/roach88/ledgerunit/internal/ir"
)

// PublicKey is a hex-encoded ed25519 public key.
type PublicKey string

// Bytes decodes the key.
func (p PublicKey) Bytes() ([]byte, error) {
	b, err := hex.DecodeString(string(p))
	if err != nil {
		return nil, fmt.Errorf("public key %q: %w", p, err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key %q: want %d bytes, got %d", p, ed25519.PublicKeySize, len(b))
	}
	return b, nil
}

// Verify reports whether sig is a valid signature of msg by p.
func (p PublicKey) Verify(msg, sig []byte) bool {
	b, err := p.Bytes()
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(b), msg, sig)
}

// KeyPair is a signing identity.
type KeyPair struct {
	Public  PublicKey
	private ed25519.PrivateKey
}

// NewKeyPairFromSeed derives a key pair from a 32-byte seed.
func NewKeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, fmt.Errorf("key seed: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{Public: PublicKey(hex.EncodeToString(pub)), private: priv}, nil
}

// deterministicKeyPair derives the n-th ledger-issued key.
func deterministicKeyPair(n uint64) KeyPair {
	seed := ir.HashWithDomain(ir.DomainKey, binary.BigEndian.AppendUint64(nil, n))
	kp, err := NewKeyPairFromSeed(seed[:])
	if err != nil {
		panic(err) // seed is always 32 bytes
	}
	return kp
}

// Sign signs msg. The zero KeyPair has no private key and cannot sign.
func (k KeyPair) Sign(msg []byte) ([]byte, error) {
	if len(k.private) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key pair %s has no private key", k.Public)
	}
	return ed25519.Sign(k.private, msg), nil
}

// AccountAddress is the account address owned by this key.
func (p PublicKey) AccountAddress() ir.Address {
	return ir.DeriveAddress(ir.KindAccount, []byte(p), 0)
}
