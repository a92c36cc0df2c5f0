// Package inspect finds the vaults a component holds and resolves their
// balances.
//
// The ledger exposes component state only as an encoded blob. Walk decodes
// nothing itself: it visits an ir.IRValue tree depth-first (struct fields,
// map keys and values, array elements, object values) and reports every
// ir.IRVault it meets, at any depth. Inspector combines the walk with the
// ledger reads behind StateReader.
//
// Duplicate resources: AllBalances keeps the last vault seen for a resource;
// SumBalances adds them up.
package inspect
