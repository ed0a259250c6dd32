// Package engine implements the extract synchronization engine.
//
// The engine ingests a batch of flat delimited extract files describing an
// institution's academic entities and reconciles them into a directory
// service, producing a consistent snapshot-of-record on every run.
//
// ARCHITECTURE:
//
// Single-run synchronous pipeline:
// One run at a time, guarded by an atomic flag. Within a run, entity kinds
// are processed strictly in dependency order (sessions before offerings,
// offerings before sections, and so on) so that each later kind can consult
// the valid-id sets populated by earlier kinds. Within a kind, lines are
// consumed sequentially from the input file. There is no intra-run
// concurrency.
//
// Processing flow per kind:
//  1. prepare: reset counters, record the start time
//  2. ingest: read the kind's file line by line, validate, upsert into the
//     directory, stamp the reconciliation ledger with the run timestamp
//  3. reconcile: page through ledger entries not stamped by this run and
//     apply the kind's removal action (mark and sweep)
//  4. finalize: publish stats, log a summary line
//
// Failure containment:
// A fatal error in one kind marks the whole batch as not-ok. Remaining
// kinds skip their ingest/reconcile work but still run finalize so stats
// stay consistent and the batch directory is always closed out. Batches
// have snapshot semantics: once a batch is corrupted there is no sense in
// continuing to mutate the directory, but resource cleanup must still
// happen. A corrected batch must be re-uploaded and the job re-triggered.
//
// Reconciliation:
// Every record successfully processed in a run has its ledger entry stamped
// with the run's single logical timestamp. The sweep selects, in bounded
// pages, entries whose stamp differs from the current run's: exactly the
// records missing from the new snapshot. A partially read file never
// triggers a sweep, so incomplete data can never be interpreted as a large
// set of deletions.
package engine
