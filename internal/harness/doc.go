// Package harness is a test environment for the ledger: named users and
// packages with a "current selection", a facade that turns high-level calls
// into signed, executed transactions, and balance queries over component
// state.
//
// Two kinds of failure are kept apart:
//
//   - Usage errors (unknown user or package, nothing selected, a ledger
//     that cannot be reached) abort the test through TB.Fatalf.
//   - Execution errors (missing authorization, insufficient balance, a
//     blueprint that fails) are returned in the receipt. The harness never
//     inspects or retries them.
//
// Typical use:
//
//	h := harness.NewInMemory(t, harness.WithBlueprints(testutil.Blueprints()))
//	h.CreateUser("admin")
//	h.PublishPackage("hello", []byte(testutil.HelloManifest))
//	r := h.CallFunction("Hello", "instantiate")
//	require.True(t, r.IsSuccess(), r.String())
//
// Scenarios (YAML, see LoadScenario) drive the same facade from files and
// produce a trace that can be compared against golden files.
package harness
