package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertBalance,
		Expected: "@bob holds 5 of XRD",
		Actual:   "@bob holds 3",
		Trace: []TraceEvent{
			{Step: 0, Action: ActionCreateUser, Target: "bob"},
			{Step: 1, Action: ActionTransfer, Target: "bob", Status: "CommittedFailure", Code: "INSUFFICIENT_BALANCE"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: balance")
	assert.Contains(t, msg, "Expected: @bob holds 5 of XRD")
	assert.Contains(t, msg, "Actual: @bob holds 3")
	assert.Contains(t, msg, "[0] create_user bob\n")
	assert.Contains(t, msg, "[1] transfer bob -> CommittedFailure (INSUFFICIENT_BALANCE)\n")
}

func TestAssertions_Failures(t *testing.T) {
	s := mustParse(t, `
name: failing-assertions
description: every assertion type failing once
steps:
  - create_user: alice
  - create_token: {supply: "10"}
    save: {token: "resource:0"}
assertions:
  - {type: balance, account: "@alice", resource: $token, equals: "11"}
  - {type: balance, account: "@alice", resource: $token, equals: "12", mode: sum}
  - {type: balance, account: "@alice", resource: XRD, equals: "1", mode: direct}
  - {type: receipt_status, step: 1, status: failure}
  - {type: receipt_status, step: 1, status: success, code: INVALID_AMOUNT}
  - {type: receipt_status, step: 0, status: success}
  - {type: new_entities, step: 1, components: 1}
  - {type: new_entities, step: 1, resources: 2}
  - {type: user_count, count: 3}
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 9)

	want := []string{
		"assertions[0]: Assertion failed: balance",
		"assertions[1]: Assertion failed: balance",
		"assertions[2]: Assertion failed: balance",
		"assertions[3]: Assertion failed: receipt_status",
		"assertions[4]: Assertion failed: receipt_status",
		"assertions[5]: step 0 submitted no transaction",
		"assertions[6]: Assertion failed: new_entities",
		"assertions[7]: Assertion failed: new_entities",
		"assertions[8]: Assertion failed: user_count",
	}
	for i, prefix := range want {
		assert.Contains(t, result.Errors[i], prefix)
	}
	assert.Contains(t, result.Errors[0], "Actual: @alice holds 10")
	assert.Contains(t, result.Errors[3], "Expected: step 1: CommittedFailure")
	assert.Contains(t, result.Errors[4], "Expected: step 1: CommittedSuccess INVALID_AMOUNT")
	assert.Contains(t, result.Errors[8], "Actual: 1 users")
}

func TestAssertions_Pass(t *testing.T) {
	s := mustParse(t, `
name: passing-assertions
description: every assertion type holding
steps:
  - create_user: alice
  - create_user: bob
  - create_token: {supply: "10"}
    save: {token: "resource:0"}
  - transfer: {amount: "2.5", resource: $token, to: bob}
  - transfer: {amount: "100", resource: $token, to: "@bob"}
    expect: failure
    error_code: INSUFFICIENT_BALANCE
assertions:
  - {type: balance, account: "@alice", resource: $token, equals: "7.5"}
  - {type: balance, account: "@bob", resource: $token, equals: "2.50", mode: sum}
  - {type: balance, account: "@bob", resource: $token, equals: "2.5", mode: direct}
  - {type: receipt_status, step: 2, status: CommittedSuccess}
  - {type: receipt_status, step: 4, status: failure, code: INSUFFICIENT_BALANCE}
  - {type: new_entities, step: 2, components: 0, resources: 1}
  - {type: user_count, count: 2}
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
