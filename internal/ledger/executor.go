package ledger

import (
	"context"

	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/store"
)

// Execute validates and runs a signed transaction.
//
// Rejected transactions (bad signature, stale nonce, malformed intent) leave
// state and nonce untouched. Transactions that fail during execution roll
// back every state change but still consume the nonce and are logged.
// Execute never returns nil.
func (l *Ledger) Execute(ctx context.Context, stx *SignedTransaction) *Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	receipt := &Receipt{}
	if stx == nil {
		return receipt.fail(StatusRejected, Errorf(ErrCodeInvalidTransaction, "nil transaction"))
	}

	hash, err := stx.Intent.Hash()
	if err != nil {
		return l.reject(receipt, Errorf(ErrCodeInvalidTransaction, "%v", err))
	}
	receipt.Hash = hash

	signers, err := stx.verify(hash)
	if err != nil {
		return l.reject(receipt, Errorf(ErrCodeInvalidSignature, "%v", err))
	}

	last, err := l.store.ReadNonce(ctx, string(stx.Intent.Signer))
	if err != nil {
		return l.reject(receipt, Errorf(ErrCodeInternal, "%v", err))
	}
	if stx.Intent.Nonce <= last {
		return l.reject(receipt, Errorf(ErrCodeInvalidNonce, "nonce %d already used (last %d)", stx.Intent.Nonce, last))
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return l.reject(receipt, Errorf(ErrCodeInternal, "%v", err))
	}
	defer tx.Rollback()

	exec := &execution{
		ctx:     ctx,
		ledger:  l,
		tx:      tx,
		signers: signers,
		receipt: receipt,
	}
	if execErr := exec.run(stx.Intent.Manifest); execErr != nil {
		tx.Rollback()
		receipt.fail(StatusCommittedFailure, execErr)
		if err := l.commitFailure(ctx, stx, receipt); err != nil {
			return l.reject(receipt, Errorf(ErrCodeInternal, "record failed transaction: %v", err))
		}
		return receipt
	}

	receipt.Status = StatusCommittedSuccess
	receipt.Seq = l.clock.Next()
	if err := l.finish(ctx, tx, stx, receipt); err != nil {
		tx.Rollback()
		return l.reject(receipt, Errorf(ErrCodeInternal, "commit: %v", err))
	}
	l.logger.Info("transaction committed",
		"tx", hash.String(),
		"seq", receipt.Seq,
		"status", receipt.Status,
		"new_components", len(receipt.NewComponents),
		"new_resources", len(receipt.NewResources),
	)
	return receipt
}

func (l *Ledger) reject(receipt *Receipt, err *ExecutionError) *Receipt {
	receipt.fail(StatusRejected, err)
	l.logger.Warn("transaction rejected", "tx", receipt.Hash.String(), "code", err.Code, "error", err.Message)
	return receipt
}

// commitFailure consumes the nonce and logs a failed transaction in a fresh
// store transaction, after the execution's writes were rolled back.
func (l *Ledger) commitFailure(ctx context.Context, stx *SignedTransaction, receipt *Receipt) error {
	receipt.Seq = l.clock.Next()
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		return l.record(ctx, tx, stx, receipt)
	})
	if err != nil {
		return err
	}
	l.logger.Info("transaction failed",
		"tx", receipt.Hash.String(),
		"seq", receipt.Seq,
		"code", receipt.Error.Code,
		"instruction", receipt.Error.Instruction,
		"error", receipt.Error.Message,
	)
	return nil
}

func (l *Ledger) finish(ctx context.Context, tx *store.Tx, stx *SignedTransaction, receipt *Receipt) error {
	if err := l.record(ctx, tx, stx, receipt); err != nil {
		return err
	}
	return tx.Commit()
}

func (l *Ledger) record(ctx context.Context, tx *store.Tx, stx *SignedTransaction, receipt *Receipt) error {
	if err := tx.WriteNonce(ctx, string(stx.Intent.Signer), stx.Intent.Nonce); err != nil {
		return err
	}
	rec := store.TransactionRecord{
		Seq:    receipt.Seq,
		Hash:   receipt.Hash.String(),
		Signer: string(stx.Intent.Signer),
		Nonce:  stx.Intent.Nonce,
		Status: string(receipt.Status),
	}
	if receipt.Error != nil {
		rec.ErrorCode = string(receipt.Error.Code)
		rec.ErrorMessage = receipt.Error.Message
	}
	return tx.AppendTransaction(ctx, rec)
}

// run executes every instruction, then requires an empty worktop.
func (e *execution) run(m Manifest) *ExecutionError {
	for i, ins := range m.Instructions {
		if err := e.step(ins); err != nil {
			ee := asExecutionError(err, i)
			e.logger().Debug("instruction failed", "index", i, "code", ee.Code, "error", ee.Message)
			return ee
		}
	}
	if len(e.worktop) > 0 {
		left := e.worktop[0]
		return Errorf(ErrCodeResourceLeak, "%d bucket(s) left on the worktop, first %s %s", len(e.worktop), left.Amount, left.Resource)
	}
	return nil
}

func (e *execution) step(ins Instruction) error {
	switch ins := ins.(type) {
	case CallFunction:
		return e.callFunction(ins)
	case CallMethod:
		return e.callMethod(ins)
	case CreateFixedSupply:
		b, err := e.createResource(ins.Supply, ins.Divisibility, ins.Metadata)
		if err != nil {
			return err
		}
		return e.collect(&Output{Value: b.Resource, Buckets: []*Bucket{b}})
	case DepositAll:
		worktop := e.worktop
		e.worktop = nil
		for _, b := range worktop {
			if err := e.depositIntoAccount(ins.Account, b); err != nil {
				return err
			}
		}
		return e.collect(nil)
	default:
		return Errorf(ErrCodeInvalidTransaction, "unknown instruction %T", ins)
	}
}

func (e *execution) callFunction(ins CallFunction) error {
	pkg, err := loadPackage(e.ctx, e.tx, ins.Package)
	if err != nil {
		if isNotFound(err) {
			return Errorf(ErrCodeUnknownPackage, "package %s not found", ins.Package)
		}
		return storageErr("%w", err)
	}
	bp, err := e.resolveBlueprint(ins.Package, pkg, ins.Blueprint)
	if err != nil {
		return err
	}
	fn, ok := bp.Functions[ins.Function]
	if !ok {
		return Errorf(ErrCodeUnknownFunction, "blueprint %s has no function %q", ins.Blueprint, ins.Function)
	}

	rt := &Runtime{exec: e, pkg: ins.Package, blueprint: ins.Blueprint, caller: ins.Caller}
	e.logger().Debug("call function", "package", ins.Package, "blueprint", ins.Blueprint, "function", ins.Function)
	out, err := e.invoke(rt, fn, ins.Args)
	if err != nil {
		return err
	}
	return e.collect(out)
}

func (e *execution) callMethod(ins CallMethod) error {
	info, err := loadComponentInfo(e.ctx, e.tx, ins.Component)
	if err != nil {
		if isNotFound(err) {
			return Errorf(ErrCodeUnknownComponent, "component %s not found", ins.Component)
		}
		return storageErr("%w", err)
	}

	var bp *Blueprint
	if info.Package == ir.SystemPackage && info.Blueprint == accountBlueprint {
		bp = e.ledger.account
	} else {
		pkg, err := loadPackage(e.ctx, e.tx, info.Package)
		if err != nil {
			return storageErr("package of component %s: %w", ins.Component, err)
		}
		if bp, err = e.resolveBlueprint(info.Package, pkg, info.Blueprint); err != nil {
			return err
		}
	}
	fn, ok := bp.Methods[ins.Method]
	if !ok {
		return Errorf(ErrCodeUnknownMethod, "blueprint %s has no method %q", info.Blueprint, ins.Method)
	}

	if badge, protected := info.AccessRules[ins.Method]; protected && !e.hasProof(badge) {
		return Errorf(ErrCodeUnauthorized, "method %q of %s requires a proof of %s", ins.Method, ins.Component, badge)
	}

	rt := &Runtime{exec: e, self: ins.Component, pkg: info.Package, blueprint: info.Blueprint, caller: ins.Caller}
	e.logger().Debug("call method", "component", ins.Component, "method", ins.Method)
	out, err := e.invoke(rt, fn, ins.Args)
	if err != nil {
		return err
	}
	return e.collect(out)
}

func (e *execution) resolveBlueprint(addr ir.Address, pkg packageRecord, name string) (*Blueprint, error) {
	native, ok := pkg.native(name)
	if !ok {
		return nil, Errorf(ErrCodeUnknownBlueprint, "package %s has no blueprint %q", addr, name)
	}
	bp, ok := e.ledger.blueprints.Lookup(native)
	if !ok {
		return nil, Errorf(ErrCodeUnknownBlueprint, "blueprint %q: native implementation %q is not registered", name, native)
	}
	return bp, nil
}
