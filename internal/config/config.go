// Package config loads ledgerunit settings: defaults, then an optional YAML
// file, then command-line flags applied by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerunit/internal/harness"
	"github.com/roach88/ledgerunit/internal/inspect"
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/ledger"
	"github.com/roach88/ledgerunit/internal/registry"
	"github.com/roach88/ledgerunit/internal/store"
)

// Log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds runtime settings for the harness and the CLI.
//
//	selection_policy: last-write-wins
//	database: ./ledger.db
//	max_walk_depth: 64
//	log: {level: debug, format: json}
//	genesis: {initial_xrd: "500"}
type Config struct {
	// SelectionPolicy decides whether newly created users and packages
	// become current.
	SelectionPolicy registry.SelectionPolicy `yaml:"selection_policy"`

	// Database is the SQLite path of the ledger. ":memory:" keeps nothing.
	Database string `yaml:"database"`

	// MaxWalkDepth bounds the state walk behind balance queries.
	MaxWalkDepth int `yaml:"max_walk_depth"`

	Log     LogConfig     `yaml:"log"`
	Genesis GenesisConfig `yaml:"genesis"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GenesisConfig configures new accounts.
type GenesisConfig struct {
	// InitialXRD is minted into every new account.
	InitialXRD ir.Decimal `yaml:"initial_xrd"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		SelectionPolicy: registry.FirstWriteWins,
		Database:        store.MemoryPath,
		MaxWalkDepth:    inspect.DefaultMaxDepth,
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Genesis: GenesisConfig{
			InitialXRD: ledger.DefaultGenesisAmount,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown fields are rejected.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings for values the harness cannot use.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database must not be empty")
	}
	if c.MaxWalkDepth <= 0 {
		return fmt.Errorf("max_walk_depth must be positive, got %d", c.MaxWalkDepth)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("log.format must be %s or %s, got %q", FormatText, FormatJSON, c.Log.Format)
	}
	if c.Genesis.InitialXRD.Sign() < 0 {
		return fmt.Errorf("genesis.initial_xrd must not be negative, got %s", c.Genesis.InitialXRD)
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Logger builds the slog logger the settings describe, writing to w.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := c.Log.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// HarnessOptions translates the settings into harness options.
func (c *Config) HarnessOptions(logger *slog.Logger) []harness.Option {
	return []harness.Option{
		harness.WithSelectionPolicy(c.SelectionPolicy),
		harness.WithDatabase(c.Database),
		harness.WithMaxWalkDepth(c.MaxWalkDepth),
		harness.WithGenesisAmount(c.Genesis.InitialXRD),
		harness.WithLogger(logger),
	}
}
