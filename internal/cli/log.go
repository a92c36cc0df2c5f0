package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerunit/internal/ledger"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Database string
	Status   string // optional - filter to one status
}

// LogEntry is one committed transaction.
type LogEntry struct {
	Seq          int64  `json:"seq"`
	Hash         string `json:"hash"`
	Signer       string `json:"signer"`
	Nonce        uint64 `json:"nonce"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// LogResult holds the transaction log.
type LogResult struct {
	Transactions []LogEntry `json:"transactions"`
	Stats        LogStats   `json:"stats"`
}

// LogStats holds summary counts for the log.
type LogStats struct {
	Total     int   `json:"total"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	LastSeq   int64 `json:"last_seq"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List committed transactions of a persisted ledger",
		Long: `List the transaction log in seq order.

Every executed transaction is logged, successful or not. Rejected
transactions never executed and are not logged.

Examples:
  ledgerunit log --db ./ledger.db
  ledgerunit log --db ./ledger.db --status CommittedFailure
  ledgerunit log --db ./ledger.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter to CommittedSuccess or CommittedFailure")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	switch ledger.Status(opts.Status) {
	case "", ledger.StatusCommittedSuccess, ledger.StatusCommittedFailure:
	default:
		return exitf(ExitCommandError, "invalid status %q: must be %s or %s",
			opts.Status, ledger.StatusCommittedSuccess, ledger.StatusCommittedFailure)
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

	records, err := l.Transactions(ctx)
	if err != nil {
		return exitf(ExitCommandError, "failed to read transaction log: %w", err)
	}

	result := LogResult{Transactions: []LogEntry{}}
	for _, rec := range records {
		switch ledger.Status(rec.Status) {
		case ledger.StatusCommittedSuccess:
			result.Stats.Succeeded++
		case ledger.StatusCommittedFailure:
			result.Stats.Failed++
		}
		result.Stats.LastSeq = rec.Seq

		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		result.Transactions = append(result.Transactions, LogEntry{
			Seq:          rec.Seq,
			Hash:         rec.Hash,
			Signer:       rec.Signer,
			Nonce:        rec.Nonce,
			Status:       rec.Status,
			ErrorCode:    rec.ErrorCode,
			ErrorMessage: rec.ErrorMessage,
		})
	}
	result.Stats.Total = len(records)

	return emit(newPrinter(cmd, opts.RootOptions), result, nil)
}

func (r LogResult) writeText(w io.Writer) {
	if r.Stats.Total == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}

	for _, tx := range r.Transactions {
		fmt.Fprintf(w, "[%d] %s %s nonce=%d %s", tx.Seq, shortHash(tx.Hash), tx.Status, tx.Nonce, shortHash(tx.Signer))
		if tx.ErrorCode != "" {
			fmt.Fprintf(w, " %s: %s", tx.ErrorCode, tx.ErrorMessage)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%d transaction(s): %d succeeded, %d failed, last seq %d\n",
		r.Stats.Total, r.Stats.Succeeded, r.Stats.Failed, r.Stats.LastSeq)
}

func shortHash(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12]
}
