package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerunit/internal/inspect"
	"github.com/roach88/ledgerunit/internal/ir"
)

// BalancesOptions holds flags for the balances command.
type BalancesOptions struct {
	*RootOptions
	Database string
}

// VaultEntry is one vault found in the inspected state.
type VaultEntry struct {
	Path     string `json:"path"`
	Vault    string `json:"vault"`
	Resource string `json:"resource"`
	Symbol   string `json:"symbol,omitempty"`
	Amount   string `json:"amount"`
}

// ResourceTotal is the amount of one resource summed across vaults.
type ResourceTotal struct {
	Resource string `json:"resource"`
	Symbol   string `json:"symbol,omitempty"`
	Amount   string `json:"amount"`
}

// BalancesResult holds the balances of one account or component.
type BalancesResult struct {
	Address string          `json:"address"`
	Vaults  []VaultEntry    `json:"vaults"`
	Totals  []ResourceTotal `json:"totals"`
}

// NewBalancesCommand creates the balances command.
func NewBalancesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BalancesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "balances <address>",
		Short: "Show every vault an account or component holds",
		Long: `Walk the state of an account or component in a persisted ledger and
list each vault it references, then the total per resource.

Example:
  ledgerunit balances --db ./ledger.db component_sim1...
  ledgerunit balances --db ./ledger.db account_sim1... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalances(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runBalances(opts *BalancesOptions, arg string, cmd *cobra.Command) error {
	ctx := context.Background()

	address, err := ir.ParseAddress(arg)
	if err != nil {
		return exitf(ExitCommandError, "invalid address: %w", err)
	}

	path, logger, err := databasePath(opts.Database, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	l, st, err := openLedger(ctx, path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	inspector := inspect.New(l, inspect.WithMaxDepth(opts.Config.MaxWalkDepth), inspect.WithLogger(logger))
	vaults, err := inspector.Vaults(ctx, address)
	if err != nil {
		return exitf(ExitFailure, "failed to read balances: %w", err)
	}

	symbols := make(map[ir.Address]string)
	symbol := func(resource ir.Address) string {
		if s, ok := symbols[resource]; ok {
			return s
		}
		info, err := l.Resource(ctx, resource)
		if err != nil {
			logger.Debug("resource metadata unavailable", "resource", resource, "error", err)
		}
		symbols[resource] = info.Metadata["symbol"]
		return symbols[resource]
	}

	result := BalancesResult{
		Address: string(address),
		Vaults:  make([]VaultEntry, 0, len(vaults)),
		Totals:  []ResourceTotal{},
	}
	sums := make(map[ir.Address]ir.Decimal)
	for _, v := range vaults {
		result.Vaults = append(result.Vaults, VaultEntry{
			Path:     v.Path,
			Vault:    string(v.Vault),
			Resource: string(v.Resource),
			Symbol:   symbol(v.Resource),
			Amount:   v.Amount.String(),
		})
		sum, err := sums[v.Resource].Add(v.Amount)
		if err != nil {
			return exitf(ExitFailure, "failed to total balances: %w", err)
		}
		sums[v.Resource] = sum
	}

	resources := make([]ir.Address, 0, len(sums))
	for r := range sums {
		resources = append(resources, r)
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i] < resources[j] })
	for _, r := range resources {
		result.Totals = append(result.Totals, ResourceTotal{
			Resource: string(r),
			Symbol:   symbol(r),
			Amount:   sums[r].String(),
		})
	}

	return emit(newPrinter(cmd, opts.RootOptions), result, nil)
}

func (r BalancesResult) writeText(w io.Writer) {
	fmt.Fprintf(w, "Balances: %s\n", r.Address)
	if len(r.Vaults) == 0 {
		fmt.Fprintln(w, "\nNo vaults.")
		return
	}

	fmt.Fprintln(w, "\nVaults:")
	for _, v := range r.Vaults {
		fmt.Fprintf(w, "  %-24s %s %s\n", v.Path, v.Amount, label(v.Resource, v.Symbol))
	}

	fmt.Fprintln(w, "\nTotals:")
	for _, t := range r.Totals {
		fmt.Fprintf(w, "  %s %s\n", t.Amount, label(t.Resource, t.Symbol))
	}
}

func label(resource, symbol string) string {
	if symbol == "" {
		return resource
	}
	return fmt.Sprintf("%s (%s)", symbol, resource)
}
