package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerunit/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config and Logger are set before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ledgerunit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledgerunit",
		Short: "ledgerunit - transaction test harness",
		Long:  "Run scenario files against a simulated ledger and inspect the state they leave behind.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")

	// Add subcommands
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewBalancesCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

// load reads the config file and builds the logger. Logs go to stderr so
// JSON output on stdout stays parseable; --verbose forces debug level.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return exitf(ExitCommandError, "failed to load config: %w", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return exitf(ExitCommandError, "failed to configure logging: %w", err)
	}
	o.Config = cfg
	o.Logger = logger
	return nil
}

// settings returns the loaded config, loading defaults when a subcommand
// runs without the root command (as in tests).
func (o *RootOptions) settings(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if o.Config == nil || o.Logger == nil {
		if err := o.load(cmd); err != nil {
			return nil, nil, err
		}
	}
	return o.Config, o.Logger, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
