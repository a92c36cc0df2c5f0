package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerunit/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file>",
		Short: "Run one scenario and print its trace",
		Long: `Run a single scenario file and print every step, the values bound by
save clauses and any failed expectation or assertion.

With --db the ledger is kept in a SQLite file, so balances and log can
read it afterwards. The database setting of the config file applies
when --db is not given.

Example:
  ledgerunit run ./scenarios/hello_badge.yaml
  ledgerunit run --db ./ledger.db ./scenarios/treasury_vaults.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

// RunReport is the result of one scenario run.
type RunReport struct {
	Scenario string `json:"scenario"`
	*harness.Result
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	p := newPrinter(cmd, opts.RootOptions)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return p.fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("scenario file not found: %s", path))
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return p.fail(ExitCommandError, ErrCodeInvalidFile, fmt.Errorf("failed to load scenario: %w", err))
	}

	cfg, logger, err := opts.settings(cmd)
	if err != nil {
		return err
	}
	harnessOpts := cfg.HarnessOptions(logger)
	if opts.Database != "" {
		harnessOpts = append(harnessOpts, harness.WithDatabase(opts.Database))
	}
	p.notef("Running %s (%d steps)", scenario.Name, len(scenario.Steps))

	result, err := harness.Run(scenario, harnessOpts...)
	if err != nil {
		return p.fail(ExitFailure, ErrCodeGeneric, fmt.Errorf("scenario aborted: %w", err))
	}

	rep := RunReport{Scenario: scenario.Name, Result: result}
	if result.Pass {
		return emit(p, rep, nil)
	}
	failed := fmt.Sprintf("scenario %s failed", scenario.Name)
	if err := emit(p, rep, &ResponseError{Code: ErrCodeTestFailed, Message: failed}); err != nil {
		return err
	}
	return exitf(ExitFailure, "%s", failed)
}

func (r RunReport) writeText(w io.Writer) {
	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(w, "Session:  %s\n\n", r.Session)

	for _, ev := range r.Trace {
		fmt.Fprintf(w, "  [%d] %s", ev.Step, ev.Action)
		if ev.Target != "" {
			fmt.Fprintf(w, " %s", ev.Target)
		}
		if ev.Status != "" {
			fmt.Fprintf(w, " -> %s (seq %d)", ev.Status, ev.Seq)
		}
		if ev.Code != "" {
			fmt.Fprintf(w, " %s", ev.Code)
		}
		fmt.Fprintln(w)
	}

	if len(r.Vars) > 0 {
		names := make([]string, 0, len(r.Vars))
		for n := range r.Vars {
			names = append(names, n)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "\nVariables:")
		for _, n := range names {
			fmt.Fprintf(w, "  $%s = %s\n", n, r.Vars[n])
		}
	}

	fmt.Fprintln(w)
	if r.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintf(w, "✗ Scenario failed (%d error(s))\n", len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
