// Package store provides SQLite-backed storage for the reference ledger.
//
// The store holds:
//   - Substates: one row per global entity (package, component, account,
//     resource) or vault, keyed by address, holding an opaque encoded blob
//   - Nonces: the last accepted nonce per signer public key
//   - Counters: monotonic counters used for deterministic address derivation
//   - Transactions: the committed transaction log
//
// # Atomicity
//
// The ledger executes each transaction inside one Tx. Every read and write
// method exists on both Store (autocommit) and Tx, so execution sees its own
// uncommitted writes and a failed transaction leaves nothing behind.
//
// # Determinism
//
//   - All log ordering uses seq INTEGER (logical clock), never timestamps
//   - Listing queries include ORDER BY on a unique key
//
// # Database Configuration
//
//   - Single connection (SQLite single writer, in-memory databases)
//   - WAL mode for file databases
//   - user_version pragma tracks the schema version
package store
