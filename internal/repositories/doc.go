// Package repositories implements the SQLite run ledger.
//
// Key Implementations:
//   - [RunRepository] : one row per organize run, with its final counts
//   - [OutcomeRepository] : one row per dispatched unit, keyed by run
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
