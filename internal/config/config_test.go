package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerunit/internal/harness"
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/registry"
	"github.com/roach88/ledgerunit/internal/store"
	"github.com/roach88/ledgerunit/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledgerunit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, registry.FirstWriteWins, cfg.SelectionPolicy)
	assert.Equal(t, store.MemoryPath, cfg.Database)
	assert.Equal(t, 512, cfg.MaxWalkDepth)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, FormatText, cfg.Log.Format)
	assert.Equal(t, "1000000", cfg.Genesis.InitialXRD.String())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
selection_policy: last-write-wins
database: ./ledger.db
max_walk_depth: 64
log:
  level: debug
  format: json
genesis:
  initial_xrd: 250.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, registry.LastWriteWins, cfg.SelectionPolicy)
	assert.Equal(t, "./ledger.db", cfg.Database)
	assert.Equal(t, 64, cfg.MaxWalkDepth)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, FormatJSON, cfg.Log.Format)
	assert.Equal(t, "250.5", cfg.Genesis.InitialXRD.String())
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "selection_policy: last\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, registry.LastWriteWins, cfg.SelectionPolicy)
	assert.Equal(t, store.MemoryPath, cfg.Database)
	assert.Equal(t, "1000000", cfg.Genesis.InitialXRD.String())
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "databse: x\n", "failed to parse config"},
		{"bad policy", "selection_policy: random\n", "unknown selection policy"},
		{"bad decimal", "genesis: {initial_xrd: lots}\n", "parse decimal"},
		{"negative genesis", "genesis: {initial_xrd: -1}\n", "must not be negative"},
		{"zero depth", "max_walk_depth: 0\n", "max_walk_depth must be positive"},
		{"empty database", "database: \"\"\n", "database must not be empty"},
		{"bad level", "log: {level: loud}\n", "log.level"},
		{"bad format", "log: {format: xml}\n", `log.format must be text or json, got "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.Log = LogConfig{Level: "warn", Format: FormatJSON}

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	cfg.Log.Format = FormatText
	logger, err = cfg.Logger(&buf)
	require.NoError(t, err)
	logger.Error("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestHarnessOptions(t *testing.T) {
	cfg := Default()
	cfg.SelectionPolicy = registry.LastWriteWins
	cfg.Genesis.InitialXRD = ir.MustDecimal("42")

	opts := append(cfg.HarnessOptions(nil), harness.WithBlueprints(testutil.Blueprints()))
	h := harness.NewInMemory(t, opts...)
	assert.Equal(t, registry.LastWriteWins, h.Policy())

	h.CreateUser("alice")
	bob := h.CreateUser("bob")
	assert.Equal(t, "bob", h.CurrentUser().Name)
	assert.Equal(t, "42", h.AccountBalance(bob.Account, ir.NativeToken).String())
}
