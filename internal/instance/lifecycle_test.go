package instance_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hearth/internal/instance"
)

func TestMarkDone_MaterializesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")

	_, err := f.store.Find(ctx, key)
	require.ErrorIs(t, err, instance.ErrNotFound)

	inst, err := f.lifecycle.MarkDone(ctx, "alice", key)
	require.NoError(t, err)

	assert.NotEmpty(t, inst.ID)
	assert.Equal(t, instance.StatusCompleted, inst.Status)
	require.NotNil(t, inst.CompletedAt)
	assert.True(t, inst.CompletedAt.Equal(t0))
	assert.Nil(t, inst.SkippedAt)
	assert.Nil(t, inst.DeferredTo)

	stored, err := f.store.Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, stored.ID)
}

func TestMarkDone_ThenUndoDone_RestoresPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")

	done, err := f.lifecycle.MarkDone(ctx, "alice", key)
	require.NoError(t, err)

	undone, err := f.lifecycle.UndoDone(ctx, "alice", key)
	require.NoError(t, err)

	assert.Equal(t, done.ID, undone.ID)
	assert.Equal(t, instance.StatusPending, undone.Status)
	assert.Nil(t, undone.CompletedAt)
	assert.Nil(t, undone.DeferredTo)
	assert.Nil(t, undone.SkippedAt)
}

func TestUndoDone_NoRowIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")

	inst, err := f.lifecycle.UndoDone(ctx, "alice", key)
	require.NoError(t, err)
	assert.Empty(t, inst.ID)
	assert.Equal(t, instance.StatusPending, inst.Status)
	assert.Equal(t, key, inst.Key())

	_, err = f.store.Find(ctx, key)
	assert.ErrorIs(t, err, instance.ErrNotFound, "undo must not materialize")
}

func TestSkip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")

	_, err := f.lifecycle.MarkDone(ctx, "alice", key)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	inst, err := f.lifecycle.Skip(ctx, "alice", key)
	require.NoError(t, err)

	assert.Equal(t, instance.StatusSkipped, inst.Status)
	require.NotNil(t, inst.SkippedAt)
	assert.True(t, inst.SkippedAt.Equal(t0.Add(time.Hour)))
	assert.Nil(t, inst.CompletedAt, "skip clears completedAt")
}

func TestDefer_SetsTargetAndClearsStamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")
	target := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

	_, err := f.lifecycle.Skip(ctx, "alice", key)
	require.NoError(t, err)

	inst, err := f.lifecycle.Defer(ctx, "alice", key, target)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusDeferred, inst.Status)
	require.NotNil(t, inst.DeferredTo)
	assert.True(t, inst.DeferredTo.Equal(target))
	assert.Nil(t, inst.SkippedAt)

	done, err := f.lifecycle.MarkDone(ctx, "alice", key)
	require.NoError(t, err)
	assert.Nil(t, done.DeferredTo, "markDone clears deferredTo")
}

func TestReschedule_SameDayStaysOnOriginalDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")
	target := time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC)

	inst, err := f.lifecycle.Reschedule(ctx, "alice", key, target)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusPending, inst.Status)
	require.NotNil(t, inst.DeferredTo)
	assert.True(t, inst.DeferredTo.Equal(target))

	day, err := f.resolver.InstancesForDate(ctx, date("2024-06-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"vitamins"}, ids(day))
}

func TestReschedule_CrossDayMovesInstance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")
	target := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

	inst, err := f.lifecycle.Reschedule(ctx, "alice", key, target)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusDeferred, inst.Status)

	original, err := f.resolver.InstancesForDate(ctx, date("2024-06-10"))
	require.NoError(t, err)
	assert.Empty(t, original)

	moved, err := f.resolver.InstancesForDate(ctx, date("2024-06-12"))
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, inst.ID, moved[0].ID)
	assert.Equal(t, date("2024-06-10"), moved[0].Date, "original date is kept")
}

func TestReschedule_SameDayIsJudgedInHouseholdZone(t *testing.T) {
	newYork := time.FixedZone("EDT", -4*60*60)
	f := newFixture(t, instance.WithLocation(newYork))
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")

	// 01:00 UTC on the 11th is 21:00 on the 10th in New York.
	target := time.Date(2024, 6, 11, 1, 0, 0, 0, time.UTC)
	assert.True(t, f.lifecycle.SameDay(key.Date, target))

	inst, err := f.lifecycle.Reschedule(ctx, "alice", key, target)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusPending, inst.Status)

	day, err := f.resolver.InstancesForDate(ctx, date("2024-06-10"))
	require.NoError(t, err)
	assert.Len(t, day, 1)
}

func TestMutations_RequireCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")
	target := t0.Add(48 * time.Hour)

	ops := map[string]func() error{
		"mark done":  func() error { _, err := f.lifecycle.MarkDone(ctx, "", key); return err },
		"undo done":  func() error { _, err := f.lifecycle.UndoDone(ctx, "", key); return err },
		"skip":       func() error { _, err := f.lifecycle.Skip(ctx, "", key); return err },
		"defer":      func() error { _, err := f.lifecycle.Defer(ctx, "", key, target); return err },
		"reschedule": func() error { _, err := f.lifecycle.Reschedule(ctx, "", key, target); return err },
		"request":    func() error { _, err := f.coverage.RequestCoverage(ctx, "", key); return err },
		"respond":    func() error { _, err := f.coverage.RespondToCoverage(ctx, "", "req", true); return err },
		"add note":   func() error { _, err := f.notes.Add(ctx, "", "inst", "hello"); return err },
		"delete":     func() error { return f.notes.Delete(ctx, "", "note") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.True(t, instance.IsNotAuthenticated(err), "got %v", err)
		})
	}

	_, err := f.store.Find(ctx, key)
	assert.ErrorIs(t, err, instance.ErrNotFound, "rejected calls must not materialize")
}

func TestMutations_RejectMalformedInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.MarkDone(ctx, "alice", instance.Key{EntityType: "chore", EntityID: "x", Date: date("2024-06-10")})
	assert.True(t, instance.IsInvalidArgument(err), "unknown entity type: %v", err)

	_, err = f.lifecycle.MarkDone(ctx, "alice", instance.Key{EntityType: instance.Routine, Date: date("2024-06-10")})
	assert.True(t, instance.IsInvalidArgument(err), "empty entity id: %v", err)

	_, err = f.lifecycle.Defer(ctx, "alice", routine("vitamins", "2024-06-10"), time.Time{})
	assert.True(t, instance.IsInvalidArgument(err), "zero target: %v", err)

	_, err = f.lifecycle.Reschedule(ctx, "alice", routine("vitamins", "2024-06-10"), time.Time{})
	assert.True(t, instance.IsInvalidArgument(err), "zero target: %v", err)
}

func TestTransition_StoreFailureLeavesPriorState(t *testing.T) {
	flaky := &flakyStore{Store: openStore(t)}
	f := newFixtureOver(flaky)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")

	done, err := f.lifecycle.MarkDone(ctx, "alice", key)
	require.NoError(t, err)

	flaky.failUpdateLifecycle = true
	_, err = f.lifecycle.Skip(ctx, "alice", key)
	require.Error(t, err)
	assert.True(t, instance.IsStoreFailure(err))
	assert.ErrorIs(t, err, errBoom, "the cause is carried")

	stored, err := f.store.Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusCompleted, stored.Status)
	assert.Equal(t, done.CompletedAt, stored.CompletedAt)
	assert.Nil(t, stored.SkippedAt)
}

func TestTransition_MaterializeFailure(t *testing.T) {
	flaky := &flakyStore{Store: openStore(t), failCreate: true}
	f := newFixtureOver(flaky)

	_, err := f.lifecycle.MarkDone(context.Background(), "alice", routine("vitamins", "2024-06-10"))
	require.Error(t, err)
	assert.True(t, instance.IsStoreFailure(err))
}

// Two household members acting on the same routine at the same moment must
// end up sharing one row.
func TestMarkDone_ConcurrentCallersMaterializeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := routine("vitamins", "2024-06-10")

	const callers = 10
	var wg sync.WaitGroup
	results := make([]instance.Instance, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := fmt.Sprintf("member-%d", i)
			if i%2 == 0 {
				results[i], errs[i] = f.lifecycle.MarkDone(ctx, actor, key)
			} else {
				results[i], errs[i] = f.lifecycle.Skip(ctx, actor, key)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}

	day, err := f.store.QueryByDate(ctx, key.Date)
	require.NoError(t, err)
	require.Len(t, day, 1)
	// Last writer wins; either terminal state is acceptable.
	assert.Contains(t, []instance.Status{instance.StatusCompleted, instance.StatusSkipped}, day[0].Status)
}
