// Package instance turns recurring definitions into per-date actionable
// instances and tracks them through their lifecycle.
//
// Components:
//   - LifecycleManager: pending/completed/skipped/deferred transitions and the
//     two reschedule flavours (same-day time change vs. cross-day deferral)
//   - Resolver: the set of instances actionable on a date, and the Agenda
//     that pairs it with the definitions due that day
//   - CoverageCoordinator: handoff requests between household members
//   - Notes: append-only comments on an instance
//
// # Materialization
//
// An instance row does not exist until the first write targeting its
// (entity type, entity id, date) key. Writes go through Store.CreateIfAbsent,
// which must be an atomic upsert: concurrent callers racing on one key all
// receive the same row. A read-then-insert is not acceptable.
//
// # Write semantics
//
// Each transition overwrites one field group (lifecycle or assignee) with a
// single store call. Writes to different groups do not conflict; writes to
// the same group resolve by write order. There is no version column.
//
// # Errors
//
// Every operation returns *Error with a Code. Mutations without a caller
// identity fail with NOT_AUTHENTICATED before touching the store. Store
// failures are surfaced as STORE_FAILURE and never retried here.
//
// Nothing in this package logs.
package instance
