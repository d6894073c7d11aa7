// Package engine implements the vaultsync reconciliation engine.
//
// The engine compares a snapshot of the source vault with a snapshot of the
// sink registry, plans one action per source identifier, applies the plan
// and reports per-identifier outcomes.
//
// Run Flow:
//  1. Snapshot: list source identifiers and sink records concurrently.
//     Either listing failing aborts the run (SOURCE_UNAVAILABLE or
//     SINK_UNAVAILABLE) before anything is planned.
//  2. Reconcile: identifiers without a sink record are CREATE; identifiers
//     with one get a metadata read and are UPDATE when the source version
//     differs from the sink's version tag, SKIP otherwise.
//  3. Apply: non-SKIP entries run on a bounded worker pool. Each entry
//     returns an outcome value; outcomes are merged in plan order.
//  4. Notify: a non-empty error list is sent to the Notifier, if any.
//
// Invariants:
//   - Sink entries absent from the source never receive an action
//   - For one identifier: fetch, then value write, then tag write
//   - An identifier is reported in exactly one of created, updated, errors
//   - Versions are compared as strings, equality only
//
// The update path is two sink calls with no transaction. A tag write failing
// after a successful value write is reported as an error; the next run sees
// the stale tag and rewrites both.
package engine
