package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const helloScenario = `name: hello
description: admin updates protected state with the badge
session: cli-hello
steps:
  - create_user: admin
  - publish_package: {name: hello, fixture: hello}
  - call_function: {blueprint: Hello, function: instantiate}
    save: {component: "component:0", badge: "resource:0"}
  - call_method_auth: {component: $component, method: protected_update_state, badge: $badge, args: [1]}
assertions:
  - {type: balance, account: "@admin", resource: $badge, equals: "1"}
`

const treasuryScenario = `name: treasury
description: withdraw from the hot reserve until it runs dry
session: cli-treasury
steps:
  - create_user: alice
  - publish_package: {name: treasury, fixture: treasury}
  - call_function: {blueprint: Treasury, function: instantiate}
    save: {treasury: "component:0", token: "resource:0"}
  - call_method: {component: $treasury, method: withdraw_hot, args: [{decimal: "30"}]}
  - call_method: {component: $treasury, method: withdraw_hot, args: [{decimal: "5000"}]}
    expect: failure
    error_code: INSUFFICIENT_BALANCE
assertions:
  - {type: balance, account: "@alice", resource: $token, equals: "30"}
`

const failingScenario = `name: failing
description: user count assertion that cannot hold
steps:
  - create_user: alice
assertions:
  - {type: user_count, count: 3}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func newCommand(fn func(*RootOptions) *cobra.Command, format string) (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := fn(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, buf
}
