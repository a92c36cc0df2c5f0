package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countReport struct {
	Count int `json:"count"`
}

func (r countReport) writeText(w io.Writer) {
	fmt.Fprintf(w, "%d item(s)\n", r.Count)
}

func newTestPrinter(jsonOut, verbose bool) (*printer, *bytes.Buffer, *bytes.Buffer) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	return &printer{json: jsonOut, verbose: verbose, out: out, diag: diag}, out, diag
}

func TestEmit(t *testing.T) {
	tests := []struct {
		name       string
		json       bool
		failure    *ResponseError
		wantStatus string
	}{
		{"ok", true, nil, "ok"},
		{"failure", true, &ResponseError{Code: ErrCodeTestFailed, Message: "1 scenario(s) failed"}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out, _ := newTestPrinter(tt.json, false)
			require.NoError(t, emit(p, countReport{Count: 3}, tt.failure))

			var resp Response[countReport]
			require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, 3, resp.Data.Count)
			assert.Equal(t, tt.failure, resp.Error)
		})
	}
}

func TestEmit_Text(t *testing.T) {
	p, out, _ := newTestPrinter(false, false)
	require.NoError(t, emit(p, countReport{Count: 2}, &ResponseError{Code: ErrCodeGeneric}))
	assert.Equal(t, "2 item(s)\n", out.String())
}

func TestPrinterFail(t *testing.T) {
	cause := errors.New("scenario file not found: x.yaml")

	t.Run("json", func(t *testing.T) {
		p, out, _ := newTestPrinter(true, false)
		err := p.fail(ExitCommandError, ErrCodeNotFound, cause)
		assert.Equal(t, ExitCommandError, ExitCode(err))
		assert.ErrorIs(t, err, cause)

		var resp Response[any]
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Nil(t, resp.Data)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
		assert.Equal(t, cause.Error(), resp.Error.Message)
		assert.NotContains(t, out.String(), `"data"`)
	})

	t.Run("text", func(t *testing.T) {
		p, out, _ := newTestPrinter(false, false)
		err := p.fail(ExitFailure, ErrCodeGeneric, cause)
		assert.Equal(t, ExitFailure, ExitCode(err))
		assert.Equal(t, "Error [E001]: scenario file not found: x.yaml\n", out.String())
	})
}

func TestPrinterNotef(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out, diag := newTestPrinter(true, tt.verbose)
			p.notef("reading %s", "ledger.db")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "reading ledger.db\n", diag.String())
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	base := errors.New("no such file")

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"plain", exitf(ExitFailure, "%d scenario(s) failed", 2), ExitFailure, "2 scenario(s) failed"},
		{"wrapped", exitf(ExitCommandError, "failed to load config: %w", base), ExitCommandError, "failed to load config: no such file"},
		{"nested", fmt.Errorf("outer: %w", exitf(ExitCommandError, "bad")), ExitCommandError, "outer: bad"},
		{"foreign", errors.New("boom"), ExitFailure, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, ExitCode(tt.err))
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}

	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.ErrorIs(t, exitf(ExitCommandError, "x: %w", base), base)
}
