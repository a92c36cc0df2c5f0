// Package ir defines the value model shared by the ledger, the state codec
// and the harness.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - NO float types anywhere - amounts are Decimal (exact, 18 places)
//   - IRValue is sealed; component state is a tree of IRValues with no
//     pointers, so it cannot contain cycles
//   - Canonical JSON (RFC 8785) is the only encoding used for hashing
package ir
