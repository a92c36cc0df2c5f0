package inspect

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ledgerunit/internal/codec"
	"github.com/roach88/ledgerunit/internal/ir"
)

// StateReader is the read side of the ledger the inspector needs.
type StateReader interface {
	ReadComponentState(ctx context.Context, component ir.Address) ([]byte, error)
	ReadVault(ctx context.Context, vault ir.IRVault) (ir.Address, ir.Decimal, error)
}

// VaultSnapshot is a point-in-time read of one vault.
type VaultSnapshot struct {
	Vault    ir.IRVault
	Resource ir.Address
	Amount   ir.Decimal

	// Path locates the vault reference in the component state.
	Path string
}

// Inspector resolves balances held anywhere in a component's state.
type Inspector struct {
	reader   StateReader
	maxDepth int
	logger   *slog.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithMaxDepth bounds the state walk. Values <= 0 select DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(i *Inspector) {
		if depth > 0 {
			i.maxDepth = depth
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inspector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an inspector over reader.
func New(reader StateReader, opts ...Option) *Inspector {
	i := &Inspector{
		reader:   reader,
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// State reads and decodes the state of a component or account.
func (i *Inspector) State(ctx context.Context, address ir.Address) (ir.IRValue, error) {
	data, err := i.reader.ReadComponentState(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", address, err)
	}
	v, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", address, err)
	}
	return v, nil
}

// Vaults lists every vault reachable from the address's state.
func (i *Inspector) Vaults(ctx context.Context, address ir.Address) ([]VaultSnapshot, error) {
	state, err := i.State(ctx, address)
	if err != nil {
		return nil, err
	}
	refs, err := CollectVaults(state, i.maxDepth)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", address, err)
	}

	out := make([]VaultSnapshot, 0, len(refs))
	for _, ref := range refs {
		resource, amount, err := i.reader.ReadVault(ctx, ref.Vault)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: vault at %s: %w", address, ref.Path, err)
		}
		out = append(out, VaultSnapshot{Vault: ref.Vault, Resource: resource, Amount: amount, Path: ref.Path})
	}
	i.logger.Debug("vaults resolved", "address", address, "count", len(out))
	return out, nil
}

// Balance returns the amount of resource in the first vault that holds it,
// or zero when none does.
func (i *Inspector) Balance(ctx context.Context, address, resource ir.Address) (ir.Decimal, error) {
	vaults, err := i.Vaults(ctx, address)
	if err != nil {
		return ir.Decimal{}, err
	}
	for _, v := range vaults {
		if v.Resource == resource {
			return v.Amount, nil
		}
	}
	return ir.Decimal{}, nil
}

// AllBalances maps each resource to the amount of the last vault seen for
// it. Use SumBalances when a component may hold one resource in several
// vaults.
func (i *Inspector) AllBalances(ctx context.Context, address ir.Address) (map[ir.Address]ir.Decimal, error) {
	vaults, err := i.Vaults(ctx, address)
	if err != nil {
		return nil, err
	}
	out := make(map[ir.Address]ir.Decimal, len(vaults))
	for _, v := range vaults {
		out[v.Resource] = v.Amount
	}
	return out, nil
}

// SumBalances maps each resource to the total across all its vaults.
func (i *Inspector) SumBalances(ctx context.Context, address ir.Address) (map[ir.Address]ir.Decimal, error) {
	vaults, err := i.Vaults(ctx, address)
	if err != nil {
		return nil, err
	}
	out := make(map[ir.Address]ir.Decimal, len(vaults))
	for _, v := range vaults {
		sum, err := out[v.Resource].Add(v.Amount)
		if err != nil {
			return nil, fmt.Errorf("sum balances of %s: %w", address, err)
		}
		out[v.Resource] = sum
	}
	return out, nil
}
