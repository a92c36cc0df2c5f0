// Package testutil provides blueprint fixtures and helpers shared by the
// harness, inspector and CLI tests.
package testutil

import (
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/ledger"
)

// Native implementation IDs of the fixture blueprints.
const (
	HelloNative    = "fixtures.Hello"
	TreasuryNative = "fixtures.Treasury"
)

// HelloManifest is the package code publishing the Hello blueprint.
const HelloManifest = `
name:    "hello-world"
version: "1.0.0"
blueprints: Hello: {
	native:      "fixtures.Hello"
	description: "stores a value; protected updates need the admin badge"
}
`

// TreasuryManifest publishes the Treasury blueprint.
const TreasuryManifest = `
name: "treasury"
blueprints: Treasury: native: "fixtures.Treasury"
`

// Hello is a minimal component with an admin badge:
//
//	instantiate()                  -> component, admin badge bucket
//	update_state(value)            -> previous value
//	protected_update_state(value)  -> previous value, needs the badge
//	get_state()                    -> current value
func Hello() *ledger.Blueprint {
	return &ledger.Blueprint{
		Name: "Hello",
		Functions: map[string]ledger.Function{
			"instantiate": helloInstantiate,
		},
		Methods: map[string]ledger.Function{
			"update_state":           helloUpdate,
			"protected_update_state": helloUpdate,
			"get_state":              helloGet,
		},
	}
}

func helloInstantiate(rt *ledger.Runtime, args []ir.IRValue) (*ledger.Output, error) {
	if err := ledger.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	badge, err := rt.NewFungible(ir.DecimalFromInt(1), 0, map[string]string{"name": "Hello admin badge"})
	if err != nil {
		return nil, err
	}
	state := ir.NewStruct("Hello",
		ir.O("state", ir.IRInt(0)),
		ir.O("admin_badge", badge.Resource),
	)
	component, err := rt.Instantiate(state, ledger.AccessRules{"protected_update_state": badge.Resource})
	if err != nil {
		return nil, err
	}
	rt.Log("instantiated Hello at %s", component.Short())
	return ledger.Return(component, badge), nil
}

func helloUpdate(rt *ledger.Runtime, args []ir.IRValue) (*ledger.Output, error) {
	if err := ledger.ExpectArgs(args, 1); err != nil {
		return nil, err
	}
	state, err := rt.State()
	if err != nil {
		return nil, err
	}
	previous := state.Field("state")
	if err := rt.SetState(state.With("state", args[0])); err != nil {
		return nil, err
	}
	return ledger.Return(previous), nil
}

func helloGet(rt *ledger.Runtime, args []ir.IRValue) (*ledger.Output, error) {
	state, err := rt.State()
	if err != nil {
		return nil, err
	}
	return ledger.Return(state.Field("state")), nil
}

// Treasury spreads two resources over vaults nested at several depths:
//
//	main              TreasuryToken 500
//	pots[0].vault     TreasuryBonus 50
//	reserves["cold"]  TreasuryToken 400
//	reserves["hot"]   TreasuryToken 100
//
// instantiate() returns the component; nothing leaves the component.
func Treasury() *ledger.Blueprint {
	return &ledger.Blueprint{
		Name: "Treasury",
		Functions: map[string]ledger.Function{
			"instantiate": treasuryInstantiate,
		},
		Methods: map[string]ledger.Function{
			"withdraw_hot": treasuryWithdrawHot,
		},
	}
}

func treasuryInstantiate(rt *ledger.Runtime, args []ir.IRValue) (*ledger.Output, error) {
	token, err := rt.NewFungible(ir.DecimalFromInt(1000), 18, map[string]string{"symbol": "TRS"})
	if err != nil {
		return nil, err
	}
	bonus, err := rt.NewFungible(ir.DecimalFromInt(50), 0, map[string]string{"symbol": "BNS"})
	if err != nil {
		return nil, err
	}

	mainVault, err := rt.NewVault(token)
	if err != nil {
		return nil, err
	}
	reserves := ir.IRMap{}
	for _, r := range []struct {
		name   string
		amount int64
	}{{"cold", 400}, {"hot", 100}} {
		b, err := rt.Take(mainVault, ir.DecimalFromInt(r.amount))
		if err != nil {
			return nil, err
		}
		v, err := rt.NewVault(b)
		if err != nil {
			return nil, err
		}
		reserves = reserves.Set(ir.IRString(r.name), v)
	}
	bonusVault, err := rt.NewVault(bonus)
	if err != nil {
		return nil, err
	}

	state := ir.NewStruct("Treasury",
		ir.O("token", token.Resource),
		ir.O("bonus", bonus.Resource),
		ir.O("main", mainVault),
		ir.O("reserves", reserves),
		ir.O("pots", ir.IRArray{ir.NewStruct("Pot", ir.O("vault", bonusVault))}),
	)
	component, err := rt.Instantiate(state, nil)
	if err != nil {
		return nil, err
	}
	return ledger.Return(component), nil
}

// withdraw_hot(amount) hands out tokens from the hot reserve.
func treasuryWithdrawHot(rt *ledger.Runtime, args []ir.IRValue) (*ledger.Output, error) {
	amount, err := ledger.Arg[ir.Decimal](args, 0)
	if err != nil {
		return nil, err
	}
	state, err := rt.State()
	if err != nil {
		return nil, err
	}
	reserves, ok := state.Field("reserves").(ir.IRMap)
	if !ok {
		return nil, ledger.Errorf(ledger.ErrCodeBlueprintError, "treasury has no reserves")
	}
	hot, ok := reserves.Get(ir.IRString("hot"))
	if !ok {
		return nil, ledger.Errorf(ledger.ErrCodeBlueprintError, "treasury has no hot reserve")
	}
	b, err := rt.Take(hot.(ir.IRVault), amount)
	if err != nil {
		return nil, err
	}
	return ledger.Return(ir.IRNull{}, b), nil
}

// Blueprints returns a registry holding every fixture blueprint.
func Blueprints() *ledger.Registry {
	return ledger.NewRegistry().
		MustRegister(HelloNative, Hello()).
		MustRegister(TreasuryNative, Treasury())
}
