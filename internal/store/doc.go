// Package store provides SQLite-backed durable storage for the flow
// graph: flux types, applications, flux instances, log entries, and
// cross-references.
//
// # Critical patterns
//
// Per-line atomicity: the ingestor wraps every mutation for one line
// in a single Tx via WithTx. A failure anywhere in that unit rolls
// back the whole line.
//
// Deterministic reads: every list-returning method orders its rows
// explicitly (by reference, by timestamp then id, ...) so that two
// reads against unchanged data return identical slices - every list
// the query layer exposes is sorted by a stable key, mechanically.
//
// Logical clock: Store.seq is a monotonically increasing counter
// stamped onto every LogEntry. Log reads do not order by it: entries
// that share a parsed timestamp are ordered by id.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes.
//   - synchronous=NORMAL: balance durability and throughput.
//   - busy_timeout=5000: wait for locks up to 5 seconds.
//   - foreign_keys=ON: enforce referential integrity.
//   - a single open connection: SQLite allows one writer at a time, and
//     the ingestor is a single-writer process.
package store
