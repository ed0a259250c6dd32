// Package store provides SQLite-backed durable storage for the
// synchronization engine's bookkeeping rows.
//
// The store holds three concerns, all independent of the directory's own
// record attributes:
//   - Ledger entries: one row per (kind, eid) the engine has ever
//     successfully processed, stamped with the logical timestamp of the
//     most recent run that re-affirmed it. The reconciliation sweep derives
//     deletions purely from these stamps - files are never diffed.
//   - Membership rows: (user, container, role, mode) delta-tracking rows
//     for course/section memberships and enrollments, stamped the same way.
//   - Audit rows: the persistent run log; every audited condition is
//     appended here.
//
// Duplicate ledger rows for the same (kind, eid) can arise from a rare
// double insert. Both the upsert and the sweep collapse them, keeping the
// most recently touched row, so duplicates can never be misread as a large
// set of stale records.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Stale-row queries are paged with a strictly advancing offset and ORDER BY
// id so the sweep terminates even if the underlying ordering is unstable.
package store
