package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerunit/internal/harness"
	"github.com/roach88/ledgerunit/internal/ledger"
)

// FileError is a validation failure in one file.
type FileError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Files  int         `json:"files"`
	Errors []FileError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate scenario and package files without running them",
		Long: `Validate scenario files (.yaml, .yml) and package code (.cue).

Scenarios are parsed with unknown fields rejected and every step checked
for exactly one action. Package code is checked against the manifest
schema. Directories are searched recursively.

Example:
  ledgerunit validate ./scenarios
  ledgerunit validate ./packages/treasury.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	p := newPrinter(cmd, opts)

	files, err := collectFiles(paths)
	if err != nil {
		return p.fail(ExitCommandError, ErrCodeNotFound, err)
	}
	if len(files) == 0 {
		return p.fail(ExitCommandError, ErrCodeNotFound, errors.New("no scenario or package files found"))
	}

	result := ValidationResult{Valid: true, Files: len(files)}
	for _, file := range files {
		p.notef("Validating %s", file)
		if fe := validateFile(file); fe != nil {
			result.Errors = append(result.Errors, *fe)
		}
	}
	if len(result.Errors) == 0 {
		return emit(p, result, nil)
	}

	result.Valid = false
	first := result.Errors[0]
	if err := emit(p, result, &ResponseError{Code: first.Code, Message: first.Message}); err != nil {
		return err
	}
	return exitf(ExitFailure, "validation failed with %d error(s)", len(result.Errors))
}

// collectFiles expands directories into the scenario and package files
// under them. Files named explicitly are kept whatever their extension.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("path not found: %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && isValidatable(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error scanning directory: %w", err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func isValidatable(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// validateFile returns nil when the file is valid.
func validateFile(path string) *FileError {
	if filepath.Ext(path) == ".cue" {
		code, err := os.ReadFile(path)
		if err != nil {
			return &FileError{File: path, Code: ErrCodeNotFound, Message: err.Error()}
		}
		if _, err := ledger.ParseManifest(code); err != nil {
			fe := &FileError{File: path, Code: ErrCodeInvalidFile, Message: err.Error()}
			var me *ledger.ManifestError
			if errors.As(err, &me) {
				fe.Message = me.Field + ": " + me.Message
				if me.Pos.IsValid() {
					fe.Line = me.Pos.Line()
				}
			}
			return fe
		}
		return nil
	}

	if _, err := harness.LoadScenario(path); err != nil {
		return &FileError{File: path, Code: ErrCodeInvalidFile, Message: err.Error()}
	}
	return nil
}

func (r ValidationResult) writeText(w io.Writer) {
	if r.Valid {
		fmt.Fprintf(w, "✓ All files valid (%d checked)\n", r.Files)
		return
	}

	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, fe := range r.Errors {
		if fe.Line > 0 {
			fmt.Fprintf(w, "%s:%d\n", fe.File, fe.Line)
		} else {
			fmt.Fprintln(w, fe.File)
		}
		fmt.Fprintf(w, "  %s: %s\n\n", fe.Code, fe.Message)
	}
}
