package instance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/hearth/internal/recurrence"
)

// LifecycleManager owns the instance status machine.
//
// Transitions (any state to any state):
//
//	MarkDone    -> completed, CompletedAt=now, other stamps cleared
//	UndoDone    -> pending, all stamps cleared (no row: no-op)
//	Skip        -> skipped, SkippedAt=now, other stamps cleared
//	Defer       -> deferred, DeferredTo=target
//	Reschedule  -> same day as key.Date: pending with DeferredTo=target
//	               other day: same as Defer
//
// Every transition except UndoDone materializes the row first. Each
// transition is a single UpdateLifecycle call, so a failed write leaves the
// previous state intact.
//
// Concurrent transitions on one instance resolve by write order.
type LifecycleManager struct {
	store InstanceStore
	opts  options
}

// NewLifecycleManager creates a manager over store.
func NewLifecycleManager(store InstanceStore, opts ...Option) *LifecycleManager {
	return &LifecycleManager{store: store, opts: buildOptions(opts)}
}

// MarkDone completes the instance for key.
func (m *LifecycleManager) MarkDone(ctx context.Context, actor string, key Key) (Instance, error) {
	const op = "mark done"
	now := m.opts.clock.Now()
	return m.transition(ctx, op, actor, key, Lifecycle{
		Status:      StatusCompleted,
		CompletedAt: &now,
	}, now)
}

// UndoDone returns the instance for key to pending.
//
// If no row exists there is nothing to undo; the returned instance is the
// unmaterialized pending view of key with an empty ID.
func (m *LifecycleManager) UndoDone(ctx context.Context, actor string, key Key) (Instance, error) {
	const op = "undo done"
	if err := checkCall(op, actor, key); err != nil {
		return Instance{}, err
	}

	inst, err := m.store.Find(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Unmaterialized(key), nil
	}
	if err != nil {
		return Instance{}, storeFailure(op, err)
	}

	updated, err := m.store.UpdateLifecycle(ctx, inst.ID, Lifecycle{Status: StatusPending}, m.opts.clock.Now())
	if err != nil {
		return Instance{}, storeFailure(op, err)
	}
	return updated, nil
}

// Skip marks the instance for key as skipped.
func (m *LifecycleManager) Skip(ctx context.Context, actor string, key Key) (Instance, error) {
	const op = "skip"
	now := m.opts.clock.Now()
	return m.transition(ctx, op, actor, key, Lifecycle{
		Status:    StatusSkipped,
		SkippedAt: &now,
	}, now)
}

// Defer moves the instance originally due on key.Date to the target time.
// The instance disappears from key.Date and shows up on the target's day.
func (m *LifecycleManager) Defer(ctx context.Context, actor string, key Key, to time.Time) (Instance, error) {
	const op = "defer"
	if to.IsZero() {
		return Instance{}, newError(ErrCodeInvalidArgument, op, "target time is required", nil)
	}
	target := to
	return m.transition(ctx, op, actor, key, Lifecycle{
		Status:     StatusDeferred,
		DeferredTo: &target,
	}, m.opts.clock.Now())
}

// Reschedule picks between a same-day time change and a cross-day deferral.
//
// When the target falls on key.Date (in the configured location) the instance
// stays pending on key.Date with DeferredTo as its new time. Otherwise it is
// deferred exactly as Defer would.
func (m *LifecycleManager) Reschedule(ctx context.Context, actor string, key Key, to time.Time) (Instance, error) {
	const op = "reschedule"
	if to.IsZero() {
		return Instance{}, newError(ErrCodeInvalidArgument, op, "target time is required", nil)
	}
	if !m.SameDay(key.Date, to) {
		return m.Defer(ctx, actor, key, to)
	}

	target := to
	return m.transition(ctx, op, actor, key, Lifecycle{
		Status:     StatusPending,
		DeferredTo: &target,
	}, m.opts.clock.Now())
}

// SameDay reports whether t falls on date in the manager's location.
func (m *LifecycleManager) SameDay(date recurrence.Date, t time.Time) bool {
	return recurrence.DateOf(t.In(m.opts.location)) == date
}

func (m *LifecycleManager) transition(ctx context.Context, op, actor string, key Key, lc Lifecycle, at time.Time) (Instance, error) {
	if err := checkCall(op, actor, key); err != nil {
		return Instance{}, err
	}

	inst, err := materialize(ctx, m.store, m.opts, key)
	if err != nil {
		return Instance{}, storeFailure(op, err)
	}

	updated, err := m.store.UpdateLifecycle(ctx, inst.ID, lc, at)
	if err != nil {
		return Instance{}, storeFailure(op, err)
	}
	return updated, nil
}

// Unmaterialized returns the conceptual pending instance for a key that has
// no row yet.
func Unmaterialized(key Key) Instance {
	return Instance{
		EntityType: key.EntityType,
		EntityID:   key.EntityID,
		Date:       key.Date,
		Status:     StatusPending,
	}
}

// materialize returns the row for key, creating a pending one if absent.
func materialize(ctx context.Context, store InstanceStore, opts options, key Key) (Instance, error) {
	now := opts.clock.Now()
	candidate := Unmaterialized(key)
	candidate.ID = opts.ids.Generate()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	inst, _, err := store.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return Instance{}, fmt.Errorf("materialize %s: %w", key, err)
	}
	return inst, nil
}

// checkCall rejects calls without an actor or with a malformed key before
// any store access.
func checkCall(op, actor string, key Key) error {
	if actor == "" {
		return errNotAuthenticated(op)
	}
	if _, err := ParseEntityType(string(key.EntityType)); err != nil {
		return newError(ErrCodeInvalidArgument, op, fmt.Sprintf("unknown entity type %q", key.EntityType), nil)
	}
	if key.EntityID == "" {
		return newError(ErrCodeInvalidArgument, op, "entity id is required", nil)
	}
	if key.Date.IsZero() {
		return newError(ErrCodeInvalidArgument, op, "date is required", nil)
	}
	return nil
}
