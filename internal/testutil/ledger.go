package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerunit/internal/ledger"
	"github.com/roach88/ledgerunit/internal/store"
)

// NewLedger opens an in-memory ledger with the fixture blueprints. The
// store is closed when the test ends.
func NewLedger(tb testing.TB, opts ...ledger.Option) *ledger.Ledger {
	tb.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(tb, err)
	tb.Cleanup(func() { s.Close() })

	l, err := ledger.New(context.Background(), s, append([]ledger.Option{ledger.WithBlueprints(Blueprints())}, opts...)...)
	require.NoError(tb, err)
	return l
}
