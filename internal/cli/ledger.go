package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerunit/internal/ledger"
	"github.com/roach88/ledgerunit/internal/store"
	"github.com/roach88/ledgerunit/internal/testutil"
)

// databasePath picks --db, then the config file's database. A ledger in
// memory has nothing to read, so one of them must name a file that exists.
func databasePath(flag string, opts *RootOptions, cmd *cobra.Command) (string, *slog.Logger, error) {
	cfg, logger, err := opts.settings(cmd)
	if err != nil {
		return "", nil, err
	}
	path := flag
	if path == "" {
		path = cfg.Database
	}
	if path == "" || path == store.MemoryPath {
		return "", nil, exitf(ExitCommandError, "no database: pass --db or set database in the config file")
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil, exitf(ExitCommandError, "database not found: %s", path)
	}
	return path, logger, nil
}

// openLedger opens a persisted ledger for reading. The caller closes the
// returned store.
func openLedger(ctx context.Context, path string, logger *slog.Logger) (*ledger.Ledger, *store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, exitf(ExitCommandError, "failed to open database: %w", err)
	}
	l, err := ledger.New(ctx, st,
		ledger.WithBlueprints(testutil.Blueprints()),
		ledger.WithLogger(logger),
	)
	if err != nil {
		st.Close()
		return nil, nil, exitf(ExitCommandError, "failed to open ledger: %w", err)
	}
	return l, st, nil
}
