// Package tasks persists download tasks in SQLite and enforces their
// lifecycle semantics.
//
// The Store manages database connections, schema initialization, the
// lifecycle transition graph, progress checkpoints, and the dedup invariant:
// a partial unique index guarantees at most one non-duplicate task per
// (fingerprint, destination) key, and CreateOrGet is the single atomic
// operation that inserts or returns the existing identity. Application code
// never implements dedup with read-then-write sequences.
//
// Treat this package as the single source of truth for task semantics; when
// you add states or columns, update schema.sql and bump schemaVersion.
package tasks
