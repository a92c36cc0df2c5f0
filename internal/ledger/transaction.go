package ledger

import (
	"fmt"

	"github.com/roach88/ledgerunit/internal/ir"
)

// Intent is the signed content of a transaction.
type Intent struct {
	Manifest Manifest
	Nonce    uint64
	Signer   PublicKey
}

// Hash returns the intent hash that signatures cover.
func (i Intent) Hash() (ir.Hash, error) {
	if len(i.Manifest.Instructions) == 0 {
		return ir.Hash{}, fmt.Errorf("intent has no instructions")
	}
	if i.Nonce > 1<<63-1 {
		return ir.Hash{}, fmt.Errorf("intent nonce %d out of range", i.Nonce)
	}
	instructions := make(ir.IRArray, len(i.Manifest.Instructions))
	for n, ins := range i.Manifest.Instructions {
		if ins == nil {
			return ir.Hash{}, fmt.Errorf("instruction %d is nil", n)
		}
		instructions[n] = ins.describe()
	}
	return ir.IntentHash(ir.IRObject{
		"instructions": instructions,
		"nonce":        ir.IRInt(int64(i.Nonce)),
		"signer":       ir.IRString(i.Signer),
	})
}

// Signature is one signer's signature over an intent hash.
type Signature struct {
	PublicKey PublicKey
	Bytes     []byte
}

// SignedTransaction is an intent plus its signatures.
type SignedTransaction struct {
	Intent     Intent
	Signatures []Signature
}

// Sign hashes the intent and signs it with every key. The intent's Signer
// must be among the keys for the ledger to accept it.
func (i Intent) Sign(keys ...KeyPair) (*SignedTransaction, error) {
	hash, err := i.Hash()
	if err != nil {
		return nil, fmt.Errorf("sign intent: %w", err)
	}
	stx := &SignedTransaction{Intent: i}
	for _, k := range keys {
		sig, err := k.Sign(hash[:])
		if err != nil {
			return nil, fmt.Errorf("sign intent: %w", err)
		}
		stx.Signatures = append(stx.Signatures, Signature{PublicKey: k.Public, Bytes: sig})
	}
	return stx, nil
}

// verify checks every signature and returns the set of signing keys.
func (stx *SignedTransaction) verify(hash ir.Hash) (map[PublicKey]bool, error) {
	signers := make(map[PublicKey]bool, len(stx.Signatures))
	for n, sig := range stx.Signatures {
		if !sig.PublicKey.Verify(hash[:], sig.Bytes) {
			return nil, fmt.Errorf("signature %d by %s does not verify", n, sig.PublicKey)
		}
		signers[sig.PublicKey] = true
	}
	if !signers[stx.Intent.Signer] {
		return nil, fmt.Errorf("intent signer %s did not sign", stx.Intent.Signer)
	}
	return signers, nil
}
