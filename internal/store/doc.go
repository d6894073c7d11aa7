// Package store provides the SQLite-backed local backend.
//
// One database holds both sides of a reconciliation:
//   - source_versions: a versioned key/value vault. Every put of an
//     identifier allocates the next integer version, as KV v2 does.
//   - registry_entries: the sink registry. Names are unique, each entry
//     carries an opaque handle, a JSON value and a version tag.
//
// A *Store satisfies both engine.Source and engine.Sink.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// All listings are ordered with COLLATE BINARY so results are identical
// across runs.
package store
