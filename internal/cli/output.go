package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a scenario, assertion or file failed
	ExitCommandError = 2 // bad arguments, missing files or database
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeNotFound    = "E002"
	ErrCodeTestFailed  = "E003" // one or more scenarios failed
	ErrCodeInvalidFile = "E004" // scenario or package file failed validation
)

// ExitError is a command error with the process exit code it maps to.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// exitf formats like fmt.Errorf, %w included, and attaches an exit code.
func exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

// ExitCode returns the code carried by err: ExitSuccess for nil,
// ExitFailure for errors without one.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the envelope written by every command under --format json.
type Response[T any] struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   T              `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes why a command failed.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// report is a command result that can print itself for a terminal.
type report interface {
	writeText(w io.Writer)
}

// printer writes command output in the selected format. Verbose notes go
// to stderr so JSON on stdout stays parseable.
type printer struct {
	json    bool
	verbose bool
	out     io.Writer
	diag    io.Writer
}

func newPrinter(cmd *cobra.Command, opts *RootOptions) *printer {
	return &printer{
		json:    opts.Format == "json",
		verbose: opts.Verbose,
		out:     cmd.OutOrStdout(),
		diag:    cmd.ErrOrStderr(),
	}
}

// notef prints a progress note when --verbose is set.
func (p *printer) notef(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(p.diag, format+"\n", args...)
	}
}

// fail reports an error that left no result to show and returns it with
// the given exit code.
func (p *printer) fail(exit int, code string, err error) error {
	if p.json {
		if encErr := encodeJSON(p.out, Response[any]{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(p.out, "Error [%s]: %s\n", code, err)
	}
	return &ExitError{Code: exit, Err: err}
}

// emit writes a command result. A non-nil failure marks the response as
// an error; the caller still decides the exit code.
func emit[R report](p *printer, r R, failure *ResponseError) error {
	if !p.json {
		r.writeText(p.out)
		return nil
	}
	status := "ok"
	if failure != nil {
		status = "error"
	}
	return encodeJSON(p.out, Response[R]{Status: status, Data: r, Error: failure})
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
