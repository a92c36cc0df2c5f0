package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const treasuryPackage = `name: "treasury"
blueprints: Treasury: native: "fixtures.Treasury"
`

func TestValidateValidFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.yaml", helloScenario)
	writeFile(t, dir, "nested/treasury.yml", treasuryScenario)
	writeFile(t, dir, "packages/treasury.cue", treasuryPackage)
	writeFile(t, dir, "README.md", "not checked")

	cmd, buf := newCommand(NewValidateCommand, "text")
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ All files valid (3 checked)")
}

func TestValidateValidFilesJSON(t *testing.T) {
	dir := t.TempDir()
	pkg := writeFile(t, dir, "treasury.cue", treasuryPackage)

	cmd, buf := newCommand(NewValidateCommand, "json")
	cmd.SetArgs([]string{pkg})

	require.NoError(t, cmd.Execute())

	var response struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.True(t, response.Data.Valid)
	assert.Equal(t, 1, response.Data.Files)
}

func TestValidateNonExistentPath(t *testing.T) {
	cmd, buf := newCommand(NewValidateCommand, "text")
	cmd.SetArgs([]string{"/nonexistent/scenarios"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.Contains(t, buf.String(), "path not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	cmd, buf := newCommand(NewValidateCommand, "text")
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.Contains(t, buf.String(), "no scenario or package files found")
}

func TestValidateInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.yaml", helloScenario)
	writeFile(t, dir, "two_actions.yaml", "name: two\ndescription: d\nsteps:\n  - create_user: a\n    acting_as: a\n")
	writeFile(t, dir, "bad_name.cue", "name: \"Bad Name\"\nblueprints: X: native: \"fixtures.Hello\"\n")
	writeFile(t, dir, "empty.cue", "name: \"empty\"\nblueprints: {}\n")

	cmd, buf := newCommand(NewValidateCommand, "text")
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 3 error(s)")

	out := buf.String()
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, filepath.Join(dir, "two_actions.yaml"))
	assert.Contains(t, out, "bad_name.cue")
	assert.Contains(t, out, "at least one blueprint is required")
}

func TestValidateInvalidFileJSON(t *testing.T) {
	dir := t.TempDir()
	pkg := writeFile(t, dir, "broken.cue", "name: \"ok\"\nblueprints: Hello: native: 42\n")

	cmd, buf := newCommand(NewValidateCommand, "json")
	cmd.SetArgs([]string{pkg})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))

	var response Response[ValidationResult]
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "error", response.Status)
	assert.False(t, response.Data.Valid)
	require.Len(t, response.Data.Errors, 1)
	assert.Equal(t, pkg, response.Data.Errors[0].File)
	assert.Equal(t, ErrCodeInvalidFile, response.Data.Errors[0].Code)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeInvalidFile, response.Error.Code)
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := t.TempDir()
	pkg := writeFile(t, dir, "treasury.cue", treasuryPackage)

	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{pkg})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "Validating "+pkg)
	assert.NotContains(t, out.String(), "Validating")
}

func TestIsValidatable(t *testing.T) {
	assert.True(t, isValidatable("a.yaml"))
	assert.True(t, isValidatable("a.yml"))
	assert.True(t, isValidatable("a.cue"))
	assert.False(t, isValidatable("a.golden"))
	assert.False(t, isValidatable("a.json"))
}
