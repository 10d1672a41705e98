// Package store provides the SQLite-backed instance.Store.
//
// Tables:
//   - instances: one row per (entity_type, entity_id, date), UNIQUE enforced
//   - instance_notes: append-only notes keyed by instance_id
//   - coverage_requests: append-only handoff requests keyed by instance_id
//
// # Critical Patterns
//
// Atomic materialization:
//   - CreateIfAbsent runs INSERT ... ON CONFLICT(entity_type, entity_id, date)
//     DO NOTHING followed by a select-by-key in one transaction
//   - Concurrent callers for one key all get the same row
//
// Single-statement transitions:
//   - UpdateLifecycle writes status and all lifecycle stamps in one UPDATE
//   - UpdateAssignee touches only assignee_override
//
// Deterministic query results:
//   - Every list query has a total ORDER BY
//   - Read helpers return empty slices, never nil
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as unix nanoseconds and read back in UTC.
package store
