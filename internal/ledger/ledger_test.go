package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerunit/internal/codec"
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/store"
)

func TestCreateAccount_GenesisFunding(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	alice := createTestAccount(t, l)
	bob := createTestAccount(t, l)

	assert.NotEqual(t, alice.address, bob.address)
	assert.NotEqual(t, alice.key.Public, bob.key.Public)
	assert.Equal(t, ir.KindAccount, alice.address.Kind())
	assert.Equal(t, alice.key.Public.AccountAddress(), alice.address)
	assert.Equal(t, "1000000", balance(t, l, alice.address, ir.NativeToken))

	native, err := l.Resource(ctx, ir.NativeToken)
	require.NoError(t, err)
	assert.Equal(t, "2000000", native.TotalSupply.String())
	assert.Equal(t, "XRD", native.Metadata["symbol"])
}

func TestCreateAccount_CustomGenesis(t *testing.T) {
	l := newTestLedger(t, WithGenesisAmount(ir.Decimal{}))
	alice := createTestAccount(t, l)
	assert.Equal(t, "0", balance(t, l, alice.address, ir.NativeToken))
}

func TestCreateAccount_GenesisOverflow(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, WithGenesisAmount(ir.MaxDecimal))
	alice := createTestAccount(t, l)
	assert.Equal(t, ir.MaxDecimal.String(), balance(t, l, alice.address, ir.NativeToken))

	// A second grant would push the native supply past the decimal range.
	_, _, err := l.CreateAccount(ctx)
	require.ErrorIs(t, err, ir.ErrDecimalRange)

	native, err := l.Resource(ctx, ir.NativeToken)
	require.NoError(t, err)
	assert.Equal(t, 0, native.TotalSupply.Cmp(ir.MaxDecimal))
}

func TestNewAccount_RejectsDuplicateAndBadKey(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	alice := createTestAccount(t, l)

	_, err := l.NewAccount(ctx, alice.key.Public)
	assert.ErrorContains(t, err, "already exists")

	_, err = l.NewAccount(ctx, PublicKey("zz"))
	assert.Error(t, err)
}

func TestPublishPackage(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	first := publishCounter(t, l)
	second := publishCounter(t, l)
	assert.Equal(t, ir.KindPackage, first.Kind())
	assert.NotEqual(t, first, second, "every publish gets a fresh address")

	_, err := l.PublishPackage(ctx, []byte(`name: "x"
blueprints: Missing: native: "not.registered"`))
	assert.ErrorContains(t, err, "not.registered")

	_, err = l.PublishPackage(ctx, []byte(`name: `))
	assert.Error(t, err)
}

func TestCallFunction_Instantiate(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	alice := createTestAccount(t, l)
	pkg := publishCounter(t, l)

	r := submit(t, l, alice, NewManifestBuilder().
		WithCaller(alice.address).
		CallFunction(pkg, "Counter", "instantiate").
		DepositAll(alice.address).
		Build())

	require.True(t, r.IsSuccess(), r.String())
	require.NoError(t, r.Err())
	require.Len(t, r.NewComponents, 1)
	require.Len(t, r.NewResources, 2)
	require.Len(t, r.Outputs, 2)
	assert.Equal(t, int64(1), r.Seq)

	out, err := r.Output(0)
	require.NoError(t, err)
	assert.Equal(t, r.NewComponents[0], out)

	badge := r.NewResources[0]
	assert.Equal(t, "1", balance(t, l, alice.address, badge))

	data, err := l.ReadComponentState(ctx, r.NewComponents[0])
	require.NoError(t, err)
	state, err := codec.Decode(data)
	require.NoError(t, err)
	s := state.(ir.IRStruct)
	assert.Equal(t, "Counter", s.Name)
	assert.Equal(t, alice.address, s.Field("caller"))
	assert.Equal(t, badge, s.Field("admin_badge"))

	vault := s.Field("reserve").(ir.IRVault)
	res, amount, err := l.ReadVault(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, r.NewResources[1], res)
	assert.Equal(t, "500", amount.String())

	_, err = r.Output(5)
	assert.Error(t, err)
}

func TestCallMethod_StateAndLogs(t *testing.T) {
	l := newTestLedger(t)
	alice := createTestAccount(t, l)
	component, _ := instantiateCounter(t, l, alice, publishCounter(t, l))

	for i := 1; i <= 3; i++ {
		r := submit(t, l, alice, NewManifestBuilder().CallMethod(component, "increment").Build())
		require.True(t, r.IsSuccess(), r.String())
		out, err := r.Output(0)
		require.NoError(t, err)
		assert.Equal(t, ir.IRInt(i), out)
		assert.Equal(t, []string{"count is now " + string(rune('0'+i))}, r.Logs)
	}
}

func TestExecute_Failures(t *testing.T) {
	l := newTestLedger(t)
	alice := createTestAccount(t, l)
	pkg := publishCounter(t, l)
	component, _ := instantiateCounter(t, l, alice, pkg)
	missing := ir.DeriveAddress(ir.KindComponent, []byte("missing"), 1)

	tests := []struct {
		name     string
		manifest Manifest
		code     ErrorCode
		index    int
	}{
		{"unknown function", NewManifestBuilder().CallFunction(pkg, "Counter", "instantiate_other").Build(), ErrCodeUnknownFunction, 0},
		{"unknown blueprint", NewManifestBuilder().CallFunction(pkg, "Nope", "instantiate").Build(), ErrCodeUnknownBlueprint, 0},
		{"unknown package", NewManifestBuilder().CallFunction(ir.DeriveAddress(ir.KindPackage, []byte("x"), 1), "Counter", "instantiate").Build(), ErrCodeUnknownPackage, 0},
		{"unknown component", NewManifestBuilder().CallMethod(missing, "increment").Build(), ErrCodeUnknownComponent, 0},
		{"unknown method", NewManifestBuilder().CallMethod(component, "decrement").Build(), ErrCodeUnknownMethod, 0},
		{"protected method without proof", NewManifestBuilder().CallMethod(component, "reset").Build(), ErrCodeUnauthorized, 0},
		{"blueprint coded error", NewManifestBuilder().CallMethod(component, "increment").CallMethod(component, "fail").Build(), ErrCodeInvalidAmount, 1},
		{"blueprint panic", NewManifestBuilder().CallFunction(pkg, "Counter", "boom").Build(), ErrCodeBlueprintError, 0},
		{"dropped bucket", NewManifestBuilder().CallFunction(pkg, "Counter", "leak").Build(), ErrCodeResourceLeak, 0},
		{"worktop not emptied", NewManifestBuilder().CreateFixedSupply(ir.DecimalFromInt(10), 0, nil).Build(), ErrCodeResourceLeak, NoInstruction},
		{"zero supply", NewManifestBuilder().CreateFixedSupply(ir.Decimal{}, 0, nil).DepositAll(alice.address).Build(), ErrCodeInvalidAmount, 0},
		{"supply beyond divisibility", NewManifestBuilder().CreateFixedSupply(ir.MustDecimal("1.5"), 0, nil).DepositAll(alice.address).Build(), ErrCodeInvalidAmount, 0},
		{"bad argument type", NewManifestBuilder().CallMethod(component, "payout", ir.IRInt(1)).Build(), ErrCodeBlueprintError, 0},
		{"payout beyond reserve", NewManifestBuilder().CallMethod(component, "payout", ir.DecimalFromInt(501)).DepositAll(alice.address).Build(), ErrCodeInsufficientBalance, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := l.NextNonce(context.Background(), alice.key.Public)
			require.NoError(t, err)

			r := submit(t, l, alice, tt.manifest)

			assert.Equal(t, StatusCommittedFailure, r.Status)
			require.NotNil(t, r.Error)
			assert.Equal(t, tt.code, r.Error.Code, r.Error.Message)
			assert.Equal(t, tt.index, r.Error.Instruction)
			assert.True(t, IsCode(r.Err(), tt.code))
			assert.Empty(t, r.NewComponents)
			assert.Empty(t, r.NewResources)

			after, err := l.NextNonce(context.Background(), alice.key.Public)
			require.NoError(t, err)
			assert.Equal(t, before+1, after, "committed failures consume the nonce")
		})
	}
}

func TestExecute_FailureRollsBackState(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	alice := createTestAccount(t, l)
	component, _ := instantiateCounter(t, l, alice, publishCounter(t, l))

	r := submit(t, l, alice, NewManifestBuilder().
		CallMethod(component, "increment").
		CreateFixedSupply(ir.DecimalFromInt(100), 0, nil).
		Build())
	require.Equal(t, StatusCommittedFailure, r.Status)

	data, err := l.ReadComponentState(ctx, component)
	require.NoError(t, err)
	state, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(0), state.(ir.IRStruct).Field("count"))

	// The next resource allocated reuses nothing from the failed attempt,
	// and the ledger stays usable.
	r = submit(t, l, alice, NewManifestBuilder().CallMethod(component, "increment").Build())
	assert.True(t, r.IsSuccess(), r.String())
}

func TestExecute_ProtectedMethodWithProof(t *testing.T) {
	l := newTestLedger(t)
	alice := createTestAccount(t, l)
	bob := createTestAccount(t, l)
	component, badge := instantiateCounter(t, l, alice, publishCounter(t, l))

	r := submit(t, l, alice, NewManifestBuilder().
		CreateProofFromAccount(alice.address, badge).
		CallMethod(component, "reset").
		Build())
	assert.True(t, r.IsSuccess(), r.String())

	// Bob holds no badge.
	r = submit(t, l, bob, NewManifestBuilder().
		CreateProofFromAccount(bob.address, badge).
		CallMethod(component, "reset").
		Build())
	require.Equal(t, StatusCommittedFailure, r.Status)
	assert.Equal(t, ErrCodeInsufficientBalance, r.Error.Code)

	// Bob cannot borrow Alice's account to build a proof.
	r = submit(t, l, bob, NewManifestBuilder().
		CreateProofFromAccount(alice.address, badge).
		CallMethod(component, "reset").
		Build())
	require.Equal(t, StatusCommittedFailure, r.Status)
	assert.Equal(t, ErrCodeUnauthorized, r.Error.Code)
}

func TestExecute_Transfer(t *testing.T) {
	l := newTestLedger(t)
	alice := createTestAccount(t, l)
	bob := createTestAccount(t, l)

	r := submit(t, l, alice, NewManifestBuilder().
		CreateFixedSupply(ir.DecimalFromInt(10000), 18, map[string]string{"symbol": "TKN"}).
		DepositAll(alice.address).
		Build())
	require.True(t, r.IsSuccess(), r.String())
	require.Len(t, r.NewResources, 1)
	token := r.NewResources[0]
	assert.Equal(t, "10000", balance(t, l, alice.address, token))

	r = submit(t, l, alice, NewManifestBuilder().
		WithdrawFromAccount(alice.address, token, ir.DecimalFromInt(10)).
		DepositAll(bob.address).
		Build())
	require.True(t, r.IsSuccess(), r.String())

	assert.Equal(t, "9990", balance(t, l, alice.address, token))
	assert.Equal(t, "10", balance(t, l, bob.address, token))

	// Amount validation.
	for name, tc := range map[string]struct {
		amount ir.Decimal
		code   ErrorCode
	}{
		"zero":         {ir.Decimal{}, ErrCodeInvalidAmount},
		"negative":     {ir.MustDecimal("-1"), ErrCodeInvalidAmount},
		"over balance": {ir.DecimalFromInt(10001), ErrCodeInsufficientBalance},
	} {
		t.Run(name, func(t *testing.T) {
			r := submit(t, l, alice, NewManifestBuilder().
				WithdrawFromAccount(alice.address, token, tc.amount).
				DepositAll(bob.address).
				Build())
			require.Equal(t, StatusCommittedFailure, r.Status)
			assert.Equal(t, tc.code, r.Error.Code)
		})
	}

	// Resources the account never held.
	unknown := ir.DeriveAddress(ir.KindResource, []byte("nope"), 1)
	r = submit(t, l, alice, NewManifestBuilder().
		WithdrawFromAccount(alice.address, unknown, ir.DecimalFromInt(1)).
		DepositAll(bob.address).
		Build())
	assert.Equal(t, ErrCodeUnknownResource, r.Error.Code)

	assert.Equal(t, "9990", balance(t, l, alice.address, token))
	assert.Equal(t, "10", balance(t, l, bob.address, token))
}

func TestExecute_Rejections(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	alice := createTestAccount(t, l)
	mallory := createTestAccount(t, l)
	m := NewManifestBuilder().CreateFixedSupply(ir.DecimalFromInt(1), 0, nil).DepositAll(alice.address).Build()

	// Signed by the wrong key.
	forged, err := Intent{Manifest: m, Nonce: 1, Signer: alice.key.Public}.Sign(mallory.key)
	require.NoError(t, err)
	r := l.Execute(ctx, forged)
	assert.Equal(t, StatusRejected, r.Status)
	assert.Equal(t, ErrCodeInvalidSignature, r.Error.Code)

	// Tampered after signing.
	stx, err := Intent{Manifest: m, Nonce: 1, Signer: alice.key.Public}.Sign(alice.key)
	require.NoError(t, err)
	tampered := *stx
	tampered.Intent.Nonce = 2
	r = l.Execute(ctx, &tampered)
	assert.Equal(t, ErrCodeInvalidSignature, r.Error.Code)

	nonce, err := l.NextNonce(ctx, alice.key.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce, "rejections do not consume the nonce")

	r = l.Execute(ctx, stx)
	require.True(t, r.IsSuccess(), r.String())

	// Replay.
	r = l.Execute(ctx, stx)
	assert.Equal(t, StatusRejected, r.Status)
	assert.Equal(t, ErrCodeInvalidNonce, r.Error.Code)
	assert.True(t, r.Error.Code.IsRejection())

	// Empty manifest.
	empty, err := Intent{Nonce: 5, Signer: alice.key.Public}.Sign(alice.key)
	assert.Error(t, err)
	assert.Nil(t, empty)
	r = l.Execute(ctx, &SignedTransaction{Intent: Intent{Nonce: 5, Signer: alice.key.Public}})
	assert.Equal(t, ErrCodeInvalidTransaction, r.Error.Code)

	r = l.Execute(ctx, nil)
	assert.Equal(t, StatusRejected, r.Status)

	log, err := l.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, string(StatusCommittedSuccess), log[0].Status)
}

func TestExecute_TransactionLog(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	alice := createTestAccount(t, l)
	pkg := publishCounter(t, l)

	submit(t, l, alice, NewManifestBuilder().CallFunction(pkg, "Counter", "instantiate_other").Build())
	instantiateCounter(t, l, alice, pkg)

	log, err := l.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, int64(1), log[0].Seq)
	assert.Equal(t, string(StatusCommittedFailure), log[0].Status)
	assert.Equal(t, string(ErrCodeUnknownFunction), log[0].ErrorCode)
	assert.Equal(t, uint64(1), log[0].Nonce)
	assert.Equal(t, int64(2), log[1].Seq)
	assert.Equal(t, string(StatusCommittedSuccess), log[1].Status)
}

func TestLedger_Deterministic(t *testing.T) {
	run := func() (ir.Address, ir.Address, ir.Hash) {
		l := newTestLedger(t)
		alice := createTestAccount(t, l)
		pkg := publishCounter(t, l)
		r := submit(t, l, alice, NewManifestBuilder().
			WithCaller(alice.address).
			CallFunction(pkg, "Counter", "instantiate").
			DepositAll(alice.address).
			Build())
		require.True(t, r.IsSuccess())
		return alice.address, r.NewComponents[0], r.Hash
	}

	a1, c1, h1 := run()
	a2, c2, h2 := run()
	assert.Equal(t, a1, a2)
	assert.Equal(t, c1, c2)
	assert.Equal(t, h1, h2)
}

func TestLedger_ReopenPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := store.Open(path)
	require.NoError(t, err)
	l, err := New(ctx, s, WithBlueprints(testRegistry()))
	require.NoError(t, err)
	alice := createTestAccount(t, l)
	component, _ := instantiateCounter(t, l, alice, publishCounter(t, l))
	require.NoError(t, s.Close())

	s, err = store.Open(path)
	require.NoError(t, err)
	defer s.Close()
	l, err = New(ctx, s, WithBlueprints(testRegistry()))
	require.NoError(t, err)

	native, err := l.Resource(ctx, ir.NativeToken)
	require.NoError(t, err)
	assert.Equal(t, "1000000", native.TotalSupply.String(), "bootstrap runs once")

	r := submit(t, l, alice, NewManifestBuilder().CallMethod(component, "increment").Build())
	require.True(t, r.IsSuccess(), r.String())
	assert.Equal(t, int64(2), r.Seq, "clock resumes from the log")
}

func TestReadAPIs_NotFound(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.ReadComponentState(ctx, ir.NativeToken)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, _, err = l.ReadVault(ctx, ir.IRVault("vault_sim1missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = l.AccountBalance(ctx, ir.DeriveAddress(ir.KindAccount, []byte("x"), 1), ir.NativeToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
