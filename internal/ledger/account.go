package ledger

import (
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/store"
)

// Account method names.
const (
	AccountWithdraw    = "withdraw"
	AccountCreateProof = "create_proof"
	AccountBalance     = "balance"
)

// accountBlueprintImpl is the native blueprint behind every account. Buckets
// reach accounts only through the DepositAll instruction.
func accountBlueprintImpl() *Blueprint {
	return &Blueprint{
		Name: accountBlueprint,
		Methods: map[string]Function{
			AccountWithdraw:    accountWithdraw,
			AccountCreateProof: accountCreateProof,
			AccountBalance:     accountBalanceMethod,
		},
	}
}

func requireOwner(rt *Runtime) (ir.IRStruct, error) {
	state, err := rt.State()
	if err != nil {
		return ir.IRStruct{}, err
	}
	owner, err := accountOwner(state)
	if err != nil {
		return ir.IRStruct{}, err
	}
	if !rt.IsSigner(owner) {
		return ir.IRStruct{}, Errorf(ErrCodeUnauthorized, "account %s requires a signature from its owner", rt.Self())
	}
	return state, nil
}

// accountWithdraw(resource, amount) returns a bucket.
func accountWithdraw(rt *Runtime, args []ir.IRValue) (*Output, error) {
	if err := ExpectArgs(args, 2); err != nil {
		return nil, err
	}
	resource, err := Arg[ir.Address](args, 0)
	if err != nil {
		return nil, err
	}
	amount, err := Arg[ir.Decimal](args, 1)
	if err != nil {
		return nil, err
	}
	state, err := requireOwner(rt)
	if err != nil {
		return nil, err
	}
	vault, ok, err := accountVault(state, resource)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := rt.exec.checkAmount(resource, amount); err != nil {
			return nil, err
		}
		return nil, Errorf(ErrCodeInsufficientBalance, "account %s holds no %s", rt.Self(), resource)
	}
	b, err := rt.Take(vault, amount)
	if err != nil {
		return nil, err
	}
	return Return(ir.IRNull{}, b), nil
}

// accountCreateProof(resource) puts a proof of the held amount in the
// auth zone.
func accountCreateProof(rt *Runtime, args []ir.IRValue) (*Output, error) {
	if err := ExpectArgs(args, 1); err != nil {
		return nil, err
	}
	resource, err := Arg[ir.Address](args, 0)
	if err != nil {
		return nil, err
	}
	state, err := requireOwner(rt)
	if err != nil {
		return nil, err
	}
	amount := ir.Decimal{}
	if vault, ok, err := accountVault(state, resource); err != nil {
		return nil, err
	} else if ok {
		if amount, err = rt.VaultAmount(vault); err != nil {
			return nil, err
		}
	}
	if !amount.IsPositive() {
		return nil, Errorf(ErrCodeInsufficientBalance, "account %s holds no %s to prove", rt.Self(), resource)
	}
	return &Output{Value: ir.IRNull{}, Proofs: []Proof{{Resource: resource, Amount: amount}}}, nil
}

// accountBalanceMethod(resource) returns the held amount. Public.
func accountBalanceMethod(rt *Runtime, args []ir.IRValue) (*Output, error) {
	if err := ExpectArgs(args, 1); err != nil {
		return nil, err
	}
	resource, err := Arg[ir.Address](args, 0)
	if err != nil {
		return nil, err
	}
	state, err := rt.State()
	if err != nil {
		return nil, err
	}
	vault, ok, err := accountVault(state, resource)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Return(ir.Decimal{}), nil
	}
	amount, err := rt.VaultAmount(vault)
	if err != nil {
		return nil, err
	}
	return Return(amount), nil
}

// depositIntoAccount moves a bucket into the account's vault for its
// resource, creating the vault on first deposit.
func (e *execution) depositIntoAccount(account ir.Address, b *Bucket) error {
	state, err := e.componentState(account)
	if err != nil {
		return err
	}
	if _, err := accountOwner(state); err != nil {
		return Errorf(ErrCodeUnknownComponent, "%s is not an account", account)
	}
	vault, ok, err := accountVault(state, b.Resource)
	if err != nil {
		return storageErr("%w", err)
	}
	if ok {
		return e.deposit(vault, b)
	}

	vault, err = nextVault(e.ctx, e.tx)
	if err != nil {
		return storageErr("allocate vault: %w", err)
	}
	rec := vaultRecord{Resource: b.Resource, Amount: b.Amount}
	if err := saveStruct(e.ctx, e.tx, string(vault), store.KindVault, rec.toStruct()); err != nil {
		return storageErr("%w", err)
	}
	b.Amount = ir.Decimal{}

	vaults, err := accountVaults(state)
	if err != nil {
		return storageErr("%w", err)
	}
	return e.writeComponentState(account, state.With("vaults", vaults.Set(b.Resource, vault)))
}
