package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/store"
)

const counterManifest = `
name: "counter"
version: "0.1.0"
blueprints: Counter: {
	native: "test.Counter"
	description: "counts calls"
}
`

// counterBlueprint is a small blueprint exercising state, vaults, access
// rules and failure paths.
func counterBlueprint() *Blueprint {
	return &Blueprint{
		Name: "Counter",
		Functions: map[string]Function{
			"instantiate": func(rt *Runtime, args []ir.IRValue) (*Output, error) {
				badge, err := rt.NewFungible(ir.DecimalFromInt(1), 0, map[string]string{"name": "counter admin"})
				if err != nil {
					return nil, err
				}
				reserve, err := rt.NewFungible(ir.DecimalFromInt(500), 18, nil)
				if err != nil {
					return nil, err
				}
				vault, err := rt.NewVault(reserve)
				if err != nil {
					return nil, err
				}
				var caller ir.IRValue = ir.IRNull{}
				if rt.Caller() != "" {
					caller = rt.Caller()
				}
				state := ir.NewStruct("Counter",
					ir.O("count", ir.IRInt(0)),
					ir.O("admin_badge", badge.Resource),
					ir.O("reserve", vault),
					ir.O("caller", caller),
				)
				component, err := rt.Instantiate(state, AccessRules{"reset": badge.Resource})
				if err != nil {
					return nil, err
				}
				return Return(component, badge), nil
			},
			"leak": func(rt *Runtime, args []ir.IRValue) (*Output, error) {
				if _, err := rt.NewFungible(ir.DecimalFromInt(5), 0, nil); err != nil {
					return nil, err
				}
				return Return(ir.IRNull{}), nil
			},
			"boom": func(rt *Runtime, args []ir.IRValue) (*Output, error) {
				panic("boom")
			},
		},
		Methods: map[string]Function{
			"increment": func(rt *Runtime, args []ir.IRValue) (*Output, error) {
				state, err := rt.State()
				if err != nil {
					return nil, err
				}
				count := state.Field("count").(ir.IRInt) + 1
				rt.Log("count is now %d", count)
				return Return(count), rt.SetState(state.With("count", count))
			},
			"reset": func(rt *Runtime, args []ir.IRValue) (*Output, error) {
				state, err := rt.State()
				if err != nil {
					return nil, err
				}
				return Return(ir.IRNull{}), rt.SetState(state.With("count", ir.IRInt(0)))
			},
			"payout": func(rt *Runtime, args []ir.IRValue) (*Output, error) {
				amount, err := Arg[ir.Decimal](args, 0)
				if err != nil {
					return nil, err
				}
				state, err := rt.State()
				if err != nil {
					return nil, err
				}
				b, err := rt.Take(state.Field("reserve").(ir.IRVault), amount)
				if err != nil {
					return nil, err
				}
				return Return(ir.IRNull{}, b), nil
			},
			"fail": func(rt *Runtime, args []ir.IRValue) (*Output, error) {
				return nil, Errorf(ErrCodeInvalidAmount, "always fails")
			},
		},
	}
}

func testRegistry() *Registry {
	return NewRegistry().MustRegister("test.Counter", counterBlueprint())
}

// newTestLedger opens an in-memory ledger with the counter blueprint.
func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	l, err := New(context.Background(), s, append([]Option{WithBlueprints(testRegistry())}, opts...)...)
	require.NoError(t, err)
	return l
}

type testAccount struct {
	key     KeyPair
	address ir.Address
}

func createTestAccount(t *testing.T, l *Ledger) testAccount {
	t.Helper()
	kp, addr, err := l.CreateAccount(context.Background())
	require.NoError(t, err)
	return testAccount{key: kp, address: addr}
}

// submit signs m with the account's key at its next nonce and executes it.
func submit(t *testing.T, l *Ledger, acct testAccount, m Manifest) *Receipt {
	t.Helper()
	ctx := context.Background()
	nonce, err := l.NextNonce(ctx, acct.key.Public)
	require.NoError(t, err)
	stx, err := Intent{Manifest: m, Nonce: nonce, Signer: acct.key.Public}.Sign(acct.key)
	require.NoError(t, err)
	return l.Execute(ctx, stx)
}

func publishCounter(t *testing.T, l *Ledger) ir.Address {
	t.Helper()
	pkg, err := l.PublishPackage(context.Background(), []byte(counterManifest))
	require.NoError(t, err)
	return pkg
}

// instantiateCounter returns the component and its badge, deposited into acct.
func instantiateCounter(t *testing.T, l *Ledger, acct testAccount, pkg ir.Address) (ir.Address, ir.Address) {
	t.Helper()
	r := submit(t, l, acct, NewManifestBuilder().
		WithCaller(acct.address).
		CallFunction(pkg, "Counter", "instantiate").
		DepositAll(acct.address).
		Build())
	require.True(t, r.IsSuccess(), r.String())
	require.Len(t, r.NewComponents, 1)
	require.Len(t, r.NewResources, 2)
	return r.NewComponents[0], r.NewResources[0]
}

func balance(t *testing.T, l *Ledger, account, resource ir.Address) string {
	t.Helper()
	amount, err := l.AccountBalance(context.Background(), account, resource)
	require.NoError(t, err)
	return amount.String()
}
