// Package ledger implements the append-only inventory transaction ledger.
//
// Every state-changing event on an inventory item (creation, split,
// assignment, scan, label print, task state change) is recorded as an
// immutable hashed transaction. Transactions are grouped into blocks of
// bounded capacity; each block carries a Merkle root over its transactions
// and chains to its predecessor by hash, making any tampering detectable
// via Verify. Appending a transaction also materialises the item's current
// state as a snapshot row, so "what is this item right now" and "what was
// this item as of transaction X" are both single lookups.
//
// Two implementations of the Store interface are provided:
//   - MemoryStore: in-process, for testing and development.
//   - PostgresStore: durable, for production use.
//
// This is not a distributed blockchain: there is a single writer and no
// consensus. The Service serialises appends with a process-local mutex,
// and PostgresStore additionally takes a transaction-scoped advisory lock
// so multiple server instances cannot race the block capacity check.
package ledger
