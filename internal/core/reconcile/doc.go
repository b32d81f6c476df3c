// Package reconcile decides which lobby snapshots the session accepts.
//
// It contains:
//
//   - Deduplicator: suppresses the same snapshot arriving again on another
//     channel within a short window
//   - Reconciler: the staleness test and delta computation between the
//     current snapshot and a candidate, plus the one-shot "match ready" latch
//
// Both types are safe for concurrent use. Reconcile itself is a pure
// function of its two arguments.
package reconcile
