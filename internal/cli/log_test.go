package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogJSON(t *testing.T) {
	db, _ := persistTreasury(t)

	out, err := execute(t, "--format", "json", "log", "--db", db)
	require.NoError(t, err)

	var response struct {
		Status string    `json:"status"`
		Data   LogResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)

	// instantiate, withdraw, failed withdraw
	require.Len(t, response.Data.Transactions, 3)
	assert.Equal(t, LogStats{Total: 3, Succeeded: 2, Failed: 1, LastSeq: 3}, response.Data.Stats)

	for i, tx := range response.Data.Transactions {
		assert.Equal(t, int64(i+1), tx.Seq)
		assert.Equal(t, uint64(i+1), tx.Nonce)
		assert.NotEmpty(t, tx.Hash)
	}
	failed := response.Data.Transactions[2]
	assert.Equal(t, "CommittedFailure", failed.Status)
	assert.Equal(t, "INSUFFICIENT_BALANCE", failed.ErrorCode)
	assert.NotEmpty(t, failed.ErrorMessage)
}

func TestLogText(t *testing.T) {
	db, _ := persistTreasury(t)

	out, err := execute(t, "log", "--db", db, "--status", "CommittedFailure")
	require.NoError(t, err)

	assert.Contains(t, out, "[3] ")
	assert.NotContains(t, out, "[1] ")
	assert.Contains(t, out, "INSUFFICIENT_BALANCE")
	assert.Contains(t, out, "3 transaction(s): 2 succeeded, 1 failed, last seq 3")
}

func TestLogEmpty(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "users.yaml", `name: users
description: accounts only, no transactions
steps:
  - create_user: alice
`)
	db := filepath.Join(dir, "ledger.db")
	_, err := execute(t, "run", "--db", db, scenario)
	require.NoError(t, err)

	out, err := execute(t, "log", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions.")
}

func TestLogInvalidStatus(t *testing.T) {
	_, err := execute(t, "log", "--db", "ledger.db", "--status", "Rejected")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.Contains(t, err.Error(), `invalid status "Rejected"`)
}
