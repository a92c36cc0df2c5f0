package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerunit/internal/ir"
)

func TestDeterministicKeyPair(t *testing.T) {
	a := deterministicKeyPair(1)
	b := deterministicKeyPair(1)
	c := deterministicKeyPair(2)

	assert.Equal(t, a.Public, b.Public)
	assert.NotEqual(t, a.Public, c.Public)
	assert.Len(t, string(a.Public), 64)
	assert.Equal(t, ir.KindAccount, a.Public.AccountAddress().Kind())

	sig, err := a.Sign([]byte("msg"))
	require.NoError(t, err)
	assert.True(t, a.Public.Verify([]byte("msg"), sig))
	assert.False(t, a.Public.Verify([]byte("other"), sig))
	assert.False(t, c.Public.Verify([]byte("msg"), sig))
}

func TestKeyPair_ZeroValueCannotSign(t *testing.T) {
	_, err := KeyPair{Public: deterministicKeyPair(1).Public}.Sign([]byte("msg"))
	assert.Error(t, err)
}

func TestNewKeyPairFromSeed(t *testing.T) {
	_, err := NewKeyPairFromSeed([]byte("short"))
	assert.Error(t, err)

	seed := make([]byte, 32)
	kp, err := NewKeyPairFromSeed(seed)
	require.NoError(t, err)
	_, err = kp.Public.Bytes()
	assert.NoError(t, err)
}

func TestPublicKey_Bytes(t *testing.T) {
	_, err := PublicKey("not-hex").Bytes()
	assert.Error(t, err)
	_, err = PublicKey("abcd").Bytes()
	assert.Error(t, err)
	assert.False(t, PublicKey("abcd").Verify([]byte("m"), []byte("s")))
}

func TestIntentHash(t *testing.T) {
	key := deterministicKeyPair(1)
	account := key.Public.AccountAddress()
	m := NewManifestBuilder().
		WithdrawFromAccount(account, ir.NativeToken, ir.MustDecimal("1.50")).
		DepositAll(account).
		Build()

	h1, err := Intent{Manifest: m, Nonce: 1, Signer: key.Public}.Hash()
	require.NoError(t, err)
	h2, err := Intent{Manifest: m, Nonce: 1, Signer: key.Public}.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// Equal decimals hash equally regardless of trailing zeros.
	same := NewManifestBuilder().
		WithdrawFromAccount(account, ir.NativeToken, ir.MustDecimal("1.5")).
		DepositAll(account).
		Build()
	h3, err := Intent{Manifest: same, Nonce: 1, Signer: key.Public}.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h3)

	h4, err := Intent{Manifest: m, Nonce: 2, Signer: key.Public}.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)

	_, err = Intent{Nonce: 1, Signer: key.Public}.Hash()
	assert.Error(t, err)

	_, err = Intent{Manifest: Manifest{Instructions: []Instruction{nil}}, Nonce: 1}.Hash()
	assert.Error(t, err)
}

func TestManifestBuilder(t *testing.T) {
	account := deterministicKeyPair(1).Public.AccountAddress()
	pkg := ir.DeriveAddress(ir.KindPackage, []byte("p"), 1)

	b := NewManifestBuilder().
		WithCaller(account).
		CallFunction(pkg, "Hello", "instantiate", ir.IRString("x")).
		CreateProofFromAccount(account, ir.NativeToken).
		DepositAll(account)
	assert.Equal(t, 3, b.Len())

	m := b.Build()
	require.Len(t, m.Instructions, 3)

	call, ok := m.Instructions[0].(CallFunction)
	require.True(t, ok)
	assert.Equal(t, account, call.Caller)
	assert.Equal(t, []ir.IRValue{ir.IRString("x")}, call.Args)

	proof, ok := m.Instructions[1].(CallMethod)
	require.True(t, ok)
	assert.Equal(t, AccountCreateProof, proof.Method)
	assert.Equal(t, account, proof.Component)

	_, ok = m.Instructions[2].(DepositAll)
	assert.True(t, ok)
}

func TestSignedTransaction_Verify(t *testing.T) {
	alice := deterministicKeyPair(1)
	bob := deterministicKeyPair(2)
	intent := Intent{
		Manifest: NewManifestBuilder().DepositAll(alice.Public.AccountAddress()).Build(),
		Nonce:    1,
		Signer:   alice.Public,
	}
	hash, err := intent.Hash()
	require.NoError(t, err)

	stx, err := intent.Sign(alice, bob)
	require.NoError(t, err)
	signers, err := stx.verify(hash)
	require.NoError(t, err)
	assert.True(t, signers[alice.Public])
	assert.True(t, signers[bob.Public])

	stx, err = intent.Sign(bob)
	require.NoError(t, err)
	_, err = stx.verify(hash)
	assert.ErrorContains(t, err, "did not sign")

	stx, err = intent.Sign(alice)
	require.NoError(t, err)
	stx.Signatures[0].Bytes[0] ^= 0xff
	_, err = stx.verify(hash)
	assert.ErrorContains(t, err, "does not verify")
}
