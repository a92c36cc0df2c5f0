package ledger

import (
	"github.com/roach88/ledgerunit/internal/ir"
)

// Instruction is one step of a transaction manifest. Sealed: only the types
// in this file implement it.
type Instruction interface {
	instruction()
	describe() ir.IRObject
}

// CallFunction invokes a blueprint function of a published package.
// Caller is the acting account, exposed to the blueprint as Runtime.Caller.
type CallFunction struct {
	Package   ir.Address
	Blueprint string
	Function  string
	Args      []ir.IRValue
	Caller    ir.Address
}

// CallMethod invokes a method on a component or account.
type CallMethod struct {
	Component ir.Address
	Method    string
	Args      []ir.IRValue
	Caller    ir.Address
}

// CreateFixedSupply mints a new fungible resource; the whole supply lands
// on the worktop.
type CreateFixedSupply struct {
	Supply       ir.Decimal
	Divisibility uint8
	Metadata     map[string]string
}

// DepositAll moves every bucket on the worktop into an account.
type DepositAll struct {
	Account ir.Address
}

func (CallFunction) instruction()      {}
func (CallMethod) instruction()        {}
func (CreateFixedSupply) instruction() {}
func (DepositAll) instruction()        {}

func (i CallFunction) describe() ir.IRObject {
	return ir.IRObject{
		"op":        ir.IRString("call_function"),
		"package":   i.Package,
		"blueprint": ir.IRString(i.Blueprint),
		"function":  ir.IRString(i.Function),
		"args":      argsArray(i.Args),
		"caller":    i.Caller,
	}
}

func (i CallMethod) describe() ir.IRObject {
	return ir.IRObject{
		"op":        ir.IRString("call_method"),
		"component": i.Component,
		"method":    ir.IRString(i.Method),
		"args":      argsArray(i.Args),
		"caller":    i.Caller,
	}
}

func (i CreateFixedSupply) describe() ir.IRObject {
	meta := make(ir.IRObject, len(i.Metadata))
	for k, v := range i.Metadata {
		meta[k] = ir.IRString(v)
	}
	return ir.IRObject{
		"op":           ir.IRString("create_fixed_supply"),
		"supply":       i.Supply,
		"divisibility": ir.IRInt(i.Divisibility),
		"metadata":     meta,
	}
}

func (i DepositAll) describe() ir.IRObject {
	return ir.IRObject{
		"op":      ir.IRString("deposit_all"),
		"account": i.Account,
	}
}

func argsArray(args []ir.IRValue) ir.IRArray {
	out := make(ir.IRArray, len(args))
	copy(out, args)
	return out
}

// Manifest is the ordered instruction list of a transaction.
type Manifest struct {
	Instructions []Instruction
}

// ManifestBuilder assembles a Manifest fluently:
//
//	m := NewManifestBuilder().
//		CreateProofFromAccount(admin, badge).
//		CallMethod(component, "protected_update_state", ir.IRInt(42)).
//		DepositAll(admin).
//		Build()
type ManifestBuilder struct {
	instructions []Instruction
	caller       ir.Address
}

// NewManifestBuilder starts an empty manifest.
func NewManifestBuilder() *ManifestBuilder {
	return &ManifestBuilder{}
}

// WithCaller records the acting account on subsequent calls.
func (b *ManifestBuilder) WithCaller(account ir.Address) *ManifestBuilder {
	b.caller = account
	return b
}

// CallFunction appends a blueprint function call.
func (b *ManifestBuilder) CallFunction(pkg ir.Address, blueprint, function string, args ...ir.IRValue) *ManifestBuilder {
	return b.add(CallFunction{Package: pkg, Blueprint: blueprint, Function: function, Args: args, Caller: b.caller})
}

// CallMethod appends a component method call.
func (b *ManifestBuilder) CallMethod(component ir.Address, method string, args ...ir.IRValue) *ManifestBuilder {
	return b.add(CallMethod{Component: component, Method: method, Args: args, Caller: b.caller})
}

// CreateFixedSupply appends a fungible resource mint.
func (b *ManifestBuilder) CreateFixedSupply(supply ir.Decimal, divisibility uint8, metadata map[string]string) *ManifestBuilder {
	return b.add(CreateFixedSupply{Supply: supply, Divisibility: divisibility, Metadata: metadata})
}

// WithdrawFromAccount appends a withdrawal onto the worktop. The account
// owner must sign.
func (b *ManifestBuilder) WithdrawFromAccount(account, resource ir.Address, amount ir.Decimal) *ManifestBuilder {
	return b.CallMethod(account, AccountWithdraw, resource, amount)
}

// CreateProofFromAccount appends a proof of a resource held by the account
// into the auth zone. The account owner must sign.
func (b *ManifestBuilder) CreateProofFromAccount(account, resource ir.Address) *ManifestBuilder {
	return b.CallMethod(account, AccountCreateProof, resource)
}

// DepositAll appends a deposit of the whole worktop into account.
func (b *ManifestBuilder) DepositAll(account ir.Address) *ManifestBuilder {
	return b.add(DepositAll{Account: account})
}

// Len returns the number of instructions added so far.
func (b *ManifestBuilder) Len() int {
	return len(b.instructions)
}

// Build returns the manifest.
func (b *ManifestBuilder) Build() Manifest {
	out := make([]Instruction, len(b.instructions))
	copy(out, b.instructions)
	return Manifest{Instructions: out}
}

func (b *ManifestBuilder) add(ins Instruction) *ManifestBuilder {
	b.instructions = append(b.instructions, ins)
	return b
}
