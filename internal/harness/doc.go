// Package harness runs scripted household scenarios against the instance
// services and checks the outcome.
//
// # Scenario Format
//
//	name: weekly_trash
//	description: "Completing Monday's trash run does not carry over"
//	timezone: America/New_York
//	now: 2024-01-15T08:00
//	definitions:
//	  - id: trash
//	    pattern: {kind: weekly, weekdays: [mon]}
//	steps:
//	  - op: mark_done
//	    as: alice
//	    entity: routine/trash
//	    date: 2024-01-15
//	    expect: {status: completed}
//	  - op: request_coverage
//	    as: alice
//	    entity: routine/trash
//	    date: 2024-01-22
//	    save_as: handoff
//	  - op: respond_coverage
//	    as: bob
//	    request: handoff
//	    accept: true
//	    expect: {status: accepted, assignee: bob}
//	assertions:
//	  - type: day
//	    date: 2024-01-22
//	    present: [routine/trash]
//	  - type: instance
//	    entity: routine/trash
//	    date: 2024-01-15
//	    expect: {status: completed, notes: "0"}
//
// # Step Operations
//
//   - mark_done, undo_done, skip: lifecycle transitions on entity/date
//   - defer, reschedule: move to "to" (RFC 3339 or 2006-01-02T15:04 local)
//   - request_coverage, respond_coverage: handoffs; save_as names the request
//   - add_note: note on the stored instance for entity/date
//   - advance: move the frozen clock forward by "by"
//
// A step without expect must succeed. expect.error names the error code a
// step must fail with.
//
// # Assertion Types
//
//   - day: entries of Resolver.InstancesForDate (present, absent, order, count)
//   - agenda: entries of Resolver.Agenda over the scenario's definitions
//   - instance: fields of one instance (status, assignee, deferred_to,
//     notes, coverage, materialized)
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory SQLite store, a frozen clock starting at
// "now" and sequential ids, so traces are stable for golden comparison.
package harness
