package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writeTestSubstate commits one substate in its own transaction.
func writeTestSubstate(t *testing.T, s *Store, address, kind string, data []byte) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.WriteSubstate(context.Background(), Substate{Address: address, Kind: kind, Data: data})
	})
	if err != nil {
		t.Fatalf("WriteSubstate(%s) failed: %v", address, err)
	}
}
