package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/store"
)

// DefaultGenesisAmount is the XRD balance minted into every new account.
var DefaultGenesisAmount = ir.DecimalFromInt(1_000_000)

// Ledger is a deterministic single-node ledger: packages of native
// blueprints, components, fungible resources held in vaults, and accounts
// owned by ed25519 keys. It has no consensus, networking or fees.
type Ledger struct {
	mu         sync.Mutex
	store      *store.Store
	blueprints *Registry
	account    *Blueprint
	clock      *Clock
	logger     *slog.Logger
	genesis    ir.Decimal
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger. Default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBlueprints sets the native blueprints packages may reference.
func WithBlueprints(reg *Registry) Option {
	return func(l *Ledger) {
		if reg != nil {
			l.blueprints = reg
		}
	}
}

// WithGenesisAmount sets the XRD minted into each new account.
func WithGenesisAmount(amount ir.Decimal) Option {
	return func(l *Ledger) {
		l.genesis = amount
	}
}

// New opens a ledger over s, writing the native token and system package
// on first use. Reopening a persisted store resumes its logical clock.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:      s,
		blueprints: NewRegistry(),
		account:    accountBlueprintImpl(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		genesis:    DefaultGenesisAmount,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.genesis.Sign() < 0 {
		return nil, fmt.Errorf("genesis amount must not be negative, got %s", l.genesis)
	}

	if err := l.bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap ledger: %w", err)
	}

	seq, err := s.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	l.clock = NewClockAt(seq)
	return l, nil
}

func (l *Ledger) bootstrap(ctx context.Context) error {
	return l.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := loadResource(ctx, tx, ir.NativeToken); err == nil {
			return nil
		} else if !isNotFound(err) {
			return err
		}
		native := resourceRecord{
			Divisibility: ir.DecimalScale,
			Metadata:     map[string]string{"symbol": "XRD", "name": "Native token"},
		}
		if err := saveStruct(ctx, tx, string(ir.NativeToken), store.KindResource, native.toStruct()); err != nil {
			return err
		}
		system := packageRecord{
			Name:       "system",
			Blueprints: []BlueprintRef{{Name: accountBlueprint, Native: "ledger.Account"}},
		}
		return saveStruct(ctx, tx, string(ir.SystemPackage), store.KindPackage, system.toStruct())
	})
}

// Blueprints returns the native blueprint registry.
func (l *Ledger) Blueprints() *Registry {
	return l.blueprints
}

// PublishPackage validates package code and stores it under a new address.
// Every blueprint the manifest names must be registered.
func (l *Ledger) PublishPackage(ctx context.Context, code []byte) (ir.Address, error) {
	manifest, err := ParseManifest(code)
	if err != nil {
		return "", fmt.Errorf("publish package: %w", err)
	}
	for _, ref := range manifest.Blueprints {
		if _, ok := l.blueprints.Lookup(ref.Native); !ok {
			return "", fmt.Errorf("publish package %s: blueprint %s: no native implementation %q", manifest.Name, ref.Name, ref.Native)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var addr ir.Address
	err = l.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		if addr, err = nextAddress(ctx, tx, ir.KindPackage); err != nil {
			return err
		}
		rec := packageRecord{
			Name:       manifest.Name,
			CodeHash:   ir.CodeHash(code).String(),
			Blueprints: manifest.Blueprints,
		}
		return saveStruct(ctx, tx, string(addr), store.KindPackage, rec.toStruct())
	})
	if err != nil {
		return "", fmt.Errorf("publish package %s: %w", manifest.Name, err)
	}
	l.logger.Info("package published", "package", addr, "name", manifest.Name, "blueprints", len(manifest.Blueprints))
	return addr, nil
}

// NewKeyPair issues the next deterministic key pair.
func (l *Ledger) NewKeyPair(ctx context.Context) (KeyPair, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var kp KeyPair
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		n, err := tx.NextCounter(ctx, "keys")
		if err != nil {
			return err
		}
		kp = deterministicKeyPair(n)
		return nil
	})
	if err != nil {
		return KeyPair{}, fmt.Errorf("new key pair: %w", err)
	}
	return kp, nil
}

// NewAccount creates the account owned by key and funds it with the
// genesis amount of XRD.
func (l *Ledger) NewAccount(ctx context.Context, key PublicKey) (ir.Address, error) {
	if _, err := key.Bytes(); err != nil {
		return "", fmt.Errorf("new account: %w", err)
	}
	addr := key.AccountAddress()

	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.ReadSubstate(ctx, string(addr)); err == nil {
			return fmt.Errorf("account %s already exists", addr)
		} else if !isNotFound(err) {
			return err
		}
		info := componentInfo{Package: ir.SystemPackage, Blueprint: accountBlueprint}
		if err := saveStruct(ctx, tx, infoKey(addr), store.KindComponentInfo, info.toStruct()); err != nil {
			return err
		}
		if err := saveStruct(ctx, tx, string(addr), store.KindComponent, newAccountState(key)); err != nil {
			return err
		}
		if !l.genesis.IsPositive() {
			return nil
		}
		return l.mintGenesis(ctx, tx, addr)
	})
	if err != nil {
		return "", fmt.Errorf("new account: %w", err)
	}
	l.logger.Info("account created", "account", addr, "owner", key)
	return addr, nil
}

func (l *Ledger) mintGenesis(ctx context.Context, tx *store.Tx, account ir.Address) error {
	native, err := loadResource(ctx, tx, ir.NativeToken)
	if err != nil {
		return err
	}
	supply, err := native.TotalSupply.Add(l.genesis)
	if err != nil {
		return err
	}
	native.TotalSupply = supply
	if err := saveStruct(ctx, tx, string(ir.NativeToken), store.KindResource, native.toStruct()); err != nil {
		return err
	}
	exec := &execution{ctx: ctx, ledger: l, tx: tx, receipt: &Receipt{}}
	if err := exec.depositIntoAccount(account, &Bucket{Resource: ir.NativeToken, Amount: l.genesis}); err != nil {
		return err
	}
	return nil
}

// CreateAccount issues a key pair and its funded account.
func (l *Ledger) CreateAccount(ctx context.Context) (KeyPair, ir.Address, error) {
	kp, err := l.NewKeyPair(ctx)
	if err != nil {
		return KeyPair{}, "", err
	}
	addr, err := l.NewAccount(ctx, kp.Public)
	if err != nil {
		return KeyPair{}, "", err
	}
	return kp, addr, nil
}

// NextNonce returns the nonce the signer's next transaction must carry.
func (l *Ledger) NextNonce(ctx context.Context, key PublicKey) (uint64, error) {
	last, err := l.store.ReadNonce(ctx, string(key))
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// ReadComponentState returns the encoded state of a component or account.
func (l *Ledger) ReadComponentState(ctx context.Context, component ir.Address) ([]byte, error) {
	sub, err := l.store.ReadSubstate(ctx, string(component))
	if err != nil {
		return nil, fmt.Errorf("read component state: %w", err)
	}
	if sub.Kind != store.KindComponent {
		return nil, fmt.Errorf("read component state: %s is a %s: %w", component, sub.Kind, store.ErrNotFound)
	}
	return sub.Data, nil
}

// ReadVault returns the resource and amount a vault holds.
func (l *Ledger) ReadVault(ctx context.Context, vault ir.IRVault) (ir.Address, ir.Decimal, error) {
	rec, err := loadVault(ctx, l.store, vault)
	if err != nil {
		return "", ir.Decimal{}, fmt.Errorf("read vault: %w", err)
	}
	return rec.Resource, rec.Amount, nil
}

// AccountBalance reads an account's vault index directly. Zero when the
// account holds none of the resource.
func (l *Ledger) AccountBalance(ctx context.Context, account, resource ir.Address) (ir.Decimal, error) {
	state, err := loadStruct(ctx, l.store, string(account), store.KindComponent)
	if err != nil {
		return ir.Decimal{}, fmt.Errorf("account balance: %w", err)
	}
	if _, err := accountOwner(state); err != nil {
		return ir.Decimal{}, fmt.Errorf("account balance: %s: %w", account, err)
	}
	vault, ok, err := accountVault(state, resource)
	if err != nil {
		return ir.Decimal{}, fmt.Errorf("account balance: %w", err)
	}
	if !ok {
		return ir.Decimal{}, nil
	}
	_, amount, err := l.ReadVault(ctx, vault)
	return amount, err
}

// ResourceInfo describes a resource.
type ResourceInfo struct {
	Address      ir.Address
	Divisibility uint8
	TotalSupply  ir.Decimal
	Metadata     map[string]string
}

// Resource returns a resource's divisibility, supply and metadata.
func (l *Ledger) Resource(ctx context.Context, resource ir.Address) (ResourceInfo, error) {
	rec, err := loadResource(ctx, l.store, resource)
	if err != nil {
		return ResourceInfo{}, fmt.Errorf("resource: %w", err)
	}
	return ResourceInfo{
		Address:      resource,
		Divisibility: rec.Divisibility,
		TotalSupply:  rec.TotalSupply,
		Metadata:     rec.Metadata,
	}, nil
}

// Transactions returns the committed transaction log.
func (l *Ledger) Transactions(ctx context.Context) ([]store.TransactionRecord, error) {
	return l.store.ReadTransactions(ctx)
}
