// Package ledger is a deterministic, single-node reference ledger used as
// the execution backend of the transaction harness.
//
// The model:
//   - Packages are CUE manifests naming native Go blueprints (see Registry)
//   - Components are blueprint instances with encoded IRStruct state
//   - Resources are fungible tokens; amounts live in vaults and move in
//     buckets via the worktop
//   - Accounts are components of the native Account blueprint, owned by an
//     ed25519 key and addressed by it
//
// A transaction is a Manifest of instructions plus a nonce, signed over its
// intent hash. Execute runs it inside one store transaction: a failure rolls
// everything back, and every receipt reports the outcome with a structured
// ExecutionError.
//
// Invariants:
//   - Committed seq numbers come from the logical Clock, never wall time
//   - Addresses and keys derive from store counters, so two ledgers fed the
//     same transactions reach identical state
//   - A transaction that ends with resources on the worktop fails with
//     RESOURCE_LEAK
package ledger
