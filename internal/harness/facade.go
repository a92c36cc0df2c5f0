package harness

import (
	"github.com/roach88/ledgerunit/internal/inspect"
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/ledger"
)

// DefaultTokenDivisibility is the divisibility of tokens created through
// the harness.
const DefaultTokenDivisibility = ir.DecimalScale

// CallFunction calls a blueprint function of the current package as the
// current user and deposits whatever it returns into the user's account.
func (h *Harness) CallFunction(blueprint, function string, args ...ir.IRValue) *ledger.Receipt {
	h.tb.Helper()
	user := h.CurrentUser()
	pkg := h.CurrentPackage()
	return h.callFunction(user, pkg, blueprint, function, args)
}

// CallFunctionIn is CallFunction against the package registered under
// packageName instead of the current package.
func (h *Harness) CallFunctionIn(packageName, blueprint, function string, args ...ir.IRValue) *ledger.Receipt {
	h.tb.Helper()
	user := h.CurrentUser()
	pkg := h.GetPackage(packageName)
	return h.callFunction(user, pkg, blueprint, function, args)
}

func (h *Harness) callFunction(user User, pkg ir.Address, blueprint, function string, args []ir.IRValue) *ledger.Receipt {
	h.tb.Helper()
	b := ledger.NewManifestBuilder().
		WithCaller(user.Account).
		CallFunction(pkg, blueprint, function, args...).
		DepositAll(user.Account)
	return h.submitAs(user, b, "call_function", blueprint+"::"+function)
}

// CallMethod calls a component method as the current user and deposits
// whatever it returns into the user's account.
func (h *Harness) CallMethod(component ir.Address, method string, args ...ir.IRValue) *ledger.Receipt {
	h.tb.Helper()
	user := h.CurrentUser()
	b := ledger.NewManifestBuilder().
		WithCaller(user.Account).
		CallMethod(component, method, args...).
		DepositAll(user.Account)
	return h.submitAs(user, b, "call_method", method)
}

// CallMethodWithAuth proves the current user holds badge, then calls the
// method.
func (h *Harness) CallMethodWithAuth(component ir.Address, method string, badge ir.Address, args ...ir.IRValue) *ledger.Receipt {
	h.tb.Helper()
	user := h.CurrentUser()
	b := ledger.NewManifestBuilder().
		WithCaller(user.Account).
		CreateProofFromAccount(user.Account, badge).
		CallMethod(component, method, args...).
		DepositAll(user.Account)
	return h.submitAs(user, b, "call_method_auth", method)
}

// CreateToken mints a fungible token and deposits the whole supply into the
// current user's account.
func (h *Harness) CreateToken(supply ir.Decimal, metadata map[string]string) *ledger.Receipt {
	h.tb.Helper()
	user := h.CurrentUser()
	b := ledger.NewManifestBuilder().
		CreateFixedSupply(supply, DefaultTokenDivisibility, metadata).
		DepositAll(user.Account)
	return h.submitAs(user, b, "create_token", supply.String())
}

// CreateFixedSupplyToken is CreateToken without metadata that returns the
// new resource address. A failed mint aborts, since there is no address to
// return.
func (h *Harness) CreateFixedSupplyToken(supply ir.Decimal) ir.Address {
	h.tb.Helper()
	r := h.CreateToken(supply, nil)
	if !r.IsSuccess() || len(r.NewResources) != 1 {
		h.fatalf("create fixed supply token %s: %s", supply, r)
		return ""
	}
	return r.NewResources[0]
}

// TransferResource moves amount of resource from the current user's
// account to the recipient's.
func (h *Harness) TransferResource(amount ir.Decimal, resource ir.Address, recipient User) *ledger.Receipt {
	h.tb.Helper()
	user := h.CurrentUser()
	b := ledger.NewManifestBuilder().
		WithdrawFromAccount(user.Account, resource, amount).
		DepositAll(recipient.Account)
	return h.submitAs(user, b, "transfer", recipient.Name)
}

// Submit signs and executes an arbitrary manifest as the current user.
// Nothing is appended to it.
func (h *Harness) Submit(b *ledger.ManifestBuilder) *ledger.Receipt {
	h.tb.Helper()
	return h.submitAs(h.CurrentUser(), b, "submit", "")
}

// submitAs fetches the user's next nonce, signs and executes. The receipt
// is returned unmodified.
func (h *Harness) submitAs(user User, b *ledger.ManifestBuilder, op, target string) *ledger.Receipt {
	h.tb.Helper()
	nonce, err := h.ledger.NextNonce(h.ctx, user.PublicKey())
	if err != nil {
		h.fatalf("%s: next nonce for %q: %v", op, user.Name, err)
		return nil
	}
	stx, err := ledger.Intent{Manifest: b.Build(), Nonce: nonce, Signer: user.PublicKey()}.Sign(user.Keys)
	if err != nil {
		h.fatalf("%s: sign as %q: %v", op, user.Name, err)
		return nil
	}

	r := h.ledger.Execute(h.ctx, stx)
	attrs := []any{"op", op, "user", user.Name, "nonce", nonce, "status", r.Status, "seq", r.Seq}
	if target != "" {
		attrs = append(attrs, "target", target)
	}
	if r.Error != nil {
		attrs = append(attrs, "code", r.Error.Code)
	}
	h.logger.Info("transaction executed", attrs...)
	return r
}

// GetBalance returns the amount of resource held in the first vault found
// in address's state, or zero.
func (h *Harness) GetBalance(address, resource ir.Address) ir.Decimal {
	h.tb.Helper()
	bal, err := h.inspector.Balance(h.ctx, address, resource)
	if err != nil {
		h.fatalf("get balance: %v", err)
		return ir.Decimal{}
	}
	return bal
}

// GetAllBalances maps every resource held in address's state to its
// amount. When several vaults hold one resource the last one wins; see
// SumAllBalances.
func (h *Harness) GetAllBalances(address ir.Address) map[ir.Address]ir.Decimal {
	h.tb.Helper()
	all, err := h.inspector.AllBalances(h.ctx, address)
	if err != nil {
		h.fatalf("get all balances: %v", err)
		return nil
	}
	return all
}

// SumAllBalances is GetAllBalances with amounts of the same resource added.
func (h *Harness) SumAllBalances(address ir.Address) map[ir.Address]ir.Decimal {
	h.tb.Helper()
	all, err := h.inspector.SumBalances(h.ctx, address)
	if err != nil {
		h.fatalf("sum balances: %v", err)
		return nil
	}
	return all
}

// Vaults lists every vault in address's state.
func (h *Harness) Vaults(address ir.Address) []inspect.VaultSnapshot {
	h.tb.Helper()
	vaults, err := h.inspector.Vaults(h.ctx, address)
	if err != nil {
		h.fatalf("vaults: %v", err)
		return nil
	}
	return vaults
}

// AccountBalance asks the ledger for an account balance directly, without
// walking state.
func (h *Harness) AccountBalance(account, resource ir.Address) ir.Decimal {
	h.tb.Helper()
	bal, err := h.ledger.AccountBalance(h.ctx, account, resource)
	if err != nil {
		h.fatalf("account balance: %v", err)
		return ir.Decimal{}
	}
	return bal
}

// ComponentState returns the decoded state of a component or account.
func (h *Harness) ComponentState(address ir.Address) ir.IRValue {
	h.tb.Helper()
	state, err := h.inspector.State(h.ctx, address)
	if err != nil {
		h.fatalf("component state: %v", err)
		return nil
	}
	return state
}
