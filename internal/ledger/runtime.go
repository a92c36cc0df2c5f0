package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/ledgerunit/internal/codec"
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/store"
)

// Bucket is a transient container of a fungible resource. Buckets must end
// up in a vault, on the worktop or in an account by the end of the call
// that holds them.
type Bucket struct {
	Resource ir.Address
	Amount   ir.Decimal
}

// Proof attests that the signer controls some amount of a resource.
type Proof struct {
	Resource ir.Address
	Amount   ir.Decimal
}

// execution is the state of one transaction being executed.
type execution struct {
	ctx      context.Context
	ledger   *Ledger
	tx       *store.Tx
	signers  map[PublicKey]bool
	worktop  []*Bucket
	authZone []Proof
	receipt  *Receipt
}

// Runtime is the blueprint's view of the ledger during one call.
type Runtime struct {
	exec      *execution
	self      ir.Address
	pkg       ir.Address
	blueprint string
	caller    ir.Address
	buckets   []*Bucket
}

// Context returns the transaction's context.
func (rt *Runtime) Context() context.Context { return rt.exec.ctx }

// Self returns the component being called, or "" inside a function.
func (rt *Runtime) Self() ir.Address { return rt.self }

// Package returns the package the blueprint belongs to.
func (rt *Runtime) Package() ir.Address { return rt.pkg }

// Blueprint returns the blueprint name.
func (rt *Runtime) Blueprint() string { return rt.blueprint }

// Caller returns the acting account named in the instruction, if any.
func (rt *Runtime) Caller() ir.Address { return rt.caller }

// IsSigner reports whether key signed the transaction.
func (rt *Runtime) IsSigner(key PublicKey) bool { return rt.exec.signers[key] }

// HasProof reports whether the auth zone holds a proof of resource.
func (rt *Runtime) HasProof(resource ir.Address) bool {
	return rt.exec.hasProof(resource)
}

// Log appends a line to the receipt's log.
func (rt *Runtime) Log(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	rt.exec.receipt.Logs = append(rt.exec.receipt.Logs, line)
	rt.exec.ledger.logger.Debug("blueprint log", "blueprint", rt.blueprint, "line", line)
}

// State loads the component's state.
func (rt *Runtime) State() (ir.IRStruct, error) {
	if rt.self == "" {
		return ir.IRStruct{}, fmt.Errorf("state is only available to methods")
	}
	return rt.exec.componentState(rt.self)
}

// SetState replaces the component's state.
func (rt *Runtime) SetState(state ir.IRStruct) error {
	if rt.self == "" {
		return fmt.Errorf("state is only available to methods")
	}
	return rt.exec.writeComponentState(rt.self, state)
}

// Instantiate creates a component of the calling blueprint with the given
// initial state and method access rules.
func (rt *Runtime) Instantiate(state ir.IRStruct, rules AccessRules) (ir.Address, error) {
	for method, res := range rules {
		if _, err := loadResource(rt.exec.ctx, rt.exec.tx, res); err != nil {
			if isNotFound(err) {
				return "", Errorf(ErrCodeUnknownResource, "access rule for %q names unknown resource %s", method, res)
			}
			return "", storageErr("access rule for %q: %w", method, err)
		}
	}
	if state.Name == "" {
		state.Name = rt.blueprint
	}
	addr, err := nextAddress(rt.exec.ctx, rt.exec.tx, ir.KindComponent)
	if err != nil {
		return "", storageErr("allocate component: %w", err)
	}
	info := componentInfo{Package: rt.pkg, Blueprint: rt.blueprint, AccessRules: rules}
	if err := saveStruct(rt.exec.ctx, rt.exec.tx, infoKey(addr), store.KindComponentInfo, info.toStruct()); err != nil {
		return "", storageErr("%w", err)
	}
	if err := rt.exec.writeComponentState(addr, state); err != nil {
		return "", err
	}
	rt.exec.receipt.NewComponents = append(rt.exec.receipt.NewComponents, addr)
	return addr, nil
}

// NewFungible mints a new resource and returns its whole supply in a bucket.
func (rt *Runtime) NewFungible(supply ir.Decimal, divisibility uint8, metadata map[string]string) (*Bucket, error) {
	b, err := rt.exec.createResource(supply, divisibility, metadata)
	if err != nil {
		return nil, err
	}
	rt.buckets = append(rt.buckets, b)
	return b, nil
}

// NewVault creates a vault holding the bucket's contents. The bucket is
// emptied.
func (rt *Runtime) NewVault(b *Bucket) (ir.IRVault, error) {
	vault, err := nextVault(rt.exec.ctx, rt.exec.tx)
	if err != nil {
		return "", storageErr("allocate vault: %w", err)
	}
	rec := vaultRecord{Resource: b.Resource, Amount: b.Amount}
	if err := saveStruct(rt.exec.ctx, rt.exec.tx, string(vault), store.KindVault, rec.toStruct()); err != nil {
		return "", storageErr("%w", err)
	}
	b.Amount = ir.Decimal{}
	return vault, nil
}

// Put moves a bucket's contents into a vault of the same resource.
func (rt *Runtime) Put(vault ir.IRVault, b *Bucket) error {
	return rt.exec.deposit(vault, b)
}

// Take withdraws amount from a vault into a new bucket.
func (rt *Runtime) Take(vault ir.IRVault, amount ir.Decimal) (*Bucket, error) {
	b, err := rt.exec.withdraw(vault, amount)
	if err != nil {
		return nil, err
	}
	rt.buckets = append(rt.buckets, b)
	return b, nil
}

// VaultAmount returns the amount held by a vault.
func (rt *Runtime) VaultAmount(vault ir.IRVault) (ir.Decimal, error) {
	rec, err := rt.exec.vault(vault)
	if err != nil {
		return ir.Decimal{}, err
	}
	return rec.Amount, nil
}

// checkBuckets fails the call if a bucket it created or took was neither
// returned nor emptied.
func (rt *Runtime) checkBuckets(out *Output) error {
	returned := make(map[*Bucket]bool)
	if out != nil {
		for _, b := range out.Buckets {
			returned[b] = true
		}
	}
	for _, b := range rt.buckets {
		if !returned[b] && !b.Amount.IsZero() {
			return Errorf(ErrCodeResourceLeak, "%s %s dropped by %s", b.Amount, b.Resource, rt.blueprint)
		}
	}
	return nil
}

func (e *execution) hasProof(resource ir.Address) bool {
	for _, p := range e.authZone {
		if p.Resource == resource && p.Amount.IsPositive() {
			return true
		}
	}
	return false
}

func (e *execution) componentState(component ir.Address) (ir.IRStruct, error) {
	s, err := loadStruct(e.ctx, e.tx, string(component), store.KindComponent)
	if err != nil {
		if isNotFound(err) {
			return ir.IRStruct{}, Errorf(ErrCodeUnknownComponent, "component %s not found", component)
		}
		return ir.IRStruct{}, storageErr("%w", err)
	}
	return s, nil
}

func (e *execution) writeComponentState(component ir.Address, state ir.IRStruct) error {
	if err := saveStruct(e.ctx, e.tx, string(component), store.KindComponent, state); err != nil {
		return storageErr("%w", err)
	}
	return nil
}

func (e *execution) vault(vault ir.IRVault) (vaultRecord, error) {
	rec, err := loadVault(e.ctx, e.tx, vault)
	if err != nil {
		if isNotFound(err) {
			return vaultRecord{}, Errorf(ErrCodeBlueprintError, "vault %s not found", vault)
		}
		return vaultRecord{}, storageErr("%w", err)
	}
	return rec, nil
}

func (e *execution) createResource(supply ir.Decimal, divisibility uint8, metadata map[string]string) (*Bucket, error) {
	if !supply.IsPositive() {
		return nil, Errorf(ErrCodeInvalidAmount, "supply must be positive, got %s", supply)
	}
	if divisibility > ir.DecimalScale {
		return nil, Errorf(ErrCodeInvalidAmount, "divisibility %d exceeds %d", divisibility, ir.DecimalScale)
	}
	if !supply.FitsDivisibility(divisibility) {
		return nil, Errorf(ErrCodeInvalidAmount, "supply %s exceeds divisibility %d", supply, divisibility)
	}
	addr, err := nextAddress(e.ctx, e.tx, ir.KindResource)
	if err != nil {
		return nil, storageErr("allocate resource: %w", err)
	}
	rec := resourceRecord{Divisibility: divisibility, TotalSupply: supply, Metadata: metadata}
	if err := saveStruct(e.ctx, e.tx, string(addr), store.KindResource, rec.toStruct()); err != nil {
		return nil, storageErr("%w", err)
	}
	e.receipt.NewResources = append(e.receipt.NewResources, addr)
	e.ledger.logger.Debug("resource created", "resource", addr, "supply", supply.String())
	return &Bucket{Resource: addr, Amount: supply}, nil
}

func (e *execution) withdraw(vault ir.IRVault, amount ir.Decimal) (*Bucket, error) {
	rec, err := e.vault(vault)
	if err != nil {
		return nil, err
	}
	if err := e.checkAmount(rec.Resource, amount); err != nil {
		return nil, err
	}
	if rec.Amount.Cmp(amount) < 0 {
		return nil, Errorf(ErrCodeInsufficientBalance, "vault holds %s %s, need %s", rec.Amount, rec.Resource, amount)
	}
	left, err := rec.Amount.Sub(amount)
	if err != nil {
		return nil, Errorf(ErrCodeInvalidAmount, "withdraw from %s: %v", vault, err)
	}
	rec.Amount = left
	if err := saveStruct(e.ctx, e.tx, string(vault), store.KindVault, rec.toStruct()); err != nil {
		return nil, storageErr("%w", err)
	}
	return &Bucket{Resource: rec.Resource, Amount: amount}, nil
}

func (e *execution) deposit(vault ir.IRVault, b *Bucket) error {
	rec, err := e.vault(vault)
	if err != nil {
		return err
	}
	if rec.Resource != b.Resource {
		return Errorf(ErrCodeBlueprintError, "cannot put %s into a vault of %s", b.Resource, rec.Resource)
	}
	total, err := rec.Amount.Add(b.Amount)
	if err != nil {
		return Errorf(ErrCodeInvalidAmount, "deposit into %s: %v", vault, err)
	}
	rec.Amount = total
	if err := saveStruct(e.ctx, e.tx, string(vault), store.KindVault, rec.toStruct()); err != nil {
		return storageErr("%w", err)
	}
	b.Amount = ir.Decimal{}
	return nil
}

// checkAmount enforces amount > 0 and the resource's divisibility.
func (e *execution) checkAmount(resource ir.Address, amount ir.Decimal) error {
	if !amount.IsPositive() {
		return Errorf(ErrCodeInvalidAmount, "amount must be positive, got %s", amount)
	}
	res, err := loadResource(e.ctx, e.tx, resource)
	if err != nil {
		if isNotFound(err) {
			return Errorf(ErrCodeUnknownResource, "resource %s not found", resource)
		}
		return storageErr("%w", err)
	}
	if !amount.FitsDivisibility(res.Divisibility) {
		return Errorf(ErrCodeInvalidAmount, "amount %s exceeds divisibility %d of %s", amount, res.Divisibility, resource)
	}
	return nil
}

// putOnWorktop merges a bucket into the worktop.
func (e *execution) putOnWorktop(b *Bucket) error {
	if b == nil || b.Amount.IsZero() {
		return nil
	}
	for _, w := range e.worktop {
		if w.Resource == b.Resource {
			total, err := w.Amount.Add(b.Amount)
			if err != nil {
				return Errorf(ErrCodeInvalidAmount, "worktop %s: %v", b.Resource, err)
			}
			w.Amount = total
			b.Amount = ir.Decimal{}
			return nil
		}
	}
	e.worktop = append(e.worktop, &Bucket{Resource: b.Resource, Amount: b.Amount})
	b.Amount = ir.Decimal{}
	return nil
}

// invoke runs a native function with panic recovery and bucket accounting.
func (e *execution) invoke(rt *Runtime, fn Function, args []ir.IRValue) (out *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Errorf(ErrCodeBlueprintError, "panic in %s: %v", rt.blueprint, r)
		}
	}()
	out, err = fn(rt, args)
	if err != nil {
		return nil, err
	}
	if err := rt.checkBuckets(out); err != nil {
		return nil, err
	}
	return out, nil
}

// collect records an output value and moves its buckets and proofs.
func (e *execution) collect(out *Output) error {
	var value ir.IRValue = ir.IRNull{}
	if out != nil && out.Value != nil {
		value = out.Value
	}
	data, err := codec.Encode(value)
	if err != nil {
		return Errorf(ErrCodeBlueprintError, "encode output: %v", err)
	}
	e.receipt.Outputs = append(e.receipt.Outputs, data)
	if out == nil {
		return nil
	}
	for _, b := range out.Buckets {
		if err := e.putOnWorktop(b); err != nil {
			return err
		}
	}
	e.authZone = append(e.authZone, out.Proofs...)
	return nil
}

func (e *execution) logger() *slog.Logger {
	return e.ledger.logger
}
