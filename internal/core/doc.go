// Package core implements the product catalog import pipeline.
//
// The package holds all domain logic independent of any transport. It is
// used by the HTTP server, the catalogctl CLI and tests without
// modification.
//
// # Pipeline
//
// A run moves through these stages, one chunk at a time:
//
//  1. [OpenSource] streams a CSV or XLSX file as bounded [Chunk] values.
//  2. [Normalize] maps source headers (and aliases) onto catalog fields.
//  3. [Validator] classifies each row as accepted, accepted with warnings,
//     salvaged or rejected, dropping invalid optional fields when it can.
//  4. [UpsertEngine] creates or updates the chunk's products in a single
//     transaction, retrying transient database errors.
//
// [Importer] drives the stages, writes every decision to an [EventSink] and
// checkpoints counters to the [RunLedger] after each chunk. A run ends
// completed unless it read rows and wrote none, or hit a run-fatal error.
//
// # Concurrency
//
// One run is processed sequentially by a single goroutine. [Service] runs
// distinct sources in parallel, bounded by an [ImportLimiter]. Concurrent
// runs meet only at the products natural key, where insert conflicts are
// applied as updates instead of failing.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each category has a code for support reference:
//
//   - DB002-DB007: database errors (constraints, connectivity, timeouts)
//   - FILE001-FILE004: source file errors (size, format, emptiness)
//   - IMP001-IMP004: run errors (capacity, lookup, shutdown)
//   - VAL001-VAL002: request validation
package core
