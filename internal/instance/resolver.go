package instance

import (
	"context"
	"time"

	"github.com/roach88/hearth/internal/recurrence"
)

// Resolver answers "what is actionable on date D".
//
// A day's view needs two queries because one date column cannot say both
// "this moved away from D" and "this moved onto D":
//
//	A: rows originally due on D, minus rows deferred to another day
//	B: deferred rows whose DeferredTo falls on D
//
// The result is A followed by B, deduplicated by id with A winning. The
// resolver never materializes rows and never evaluates recurrence.
type Resolver struct {
	store InstanceStore
	opts  options
}

// NewResolver creates a resolver over store.
func NewResolver(store InstanceStore, opts ...Option) *Resolver {
	return &Resolver{store: store, opts: buildOptions(opts)}
}

// InstancesForDate returns the instances actionable on date.
// Returns an empty slice (not nil) when nothing is stored for the day.
func (r *Resolver) InstancesForDate(ctx context.Context, date recurrence.Date) ([]Instance, error) {
	const op = "instances for date"
	start, end := date.Window(r.opts.location)

	original, err := r.store.QueryByDate(ctx, date)
	if err != nil {
		return nil, storeFailure(op, err)
	}
	movedHere, err := r.store.QueryByDeferredTo(ctx, start, end)
	if err != nil {
		return nil, storeFailure(op, err)
	}

	return merge(original, movedHere, start, end), nil
}

// merge builds the day's view from set A (original) and set B (movedHere).
func merge(original, movedHere []Instance, start, end time.Time) []Instance {
	seen := make(map[string]struct{}, len(original)+len(movedHere))
	out := make([]Instance, 0, len(original)+len(movedHere))
	for _, inst := range original {
		if movedAway(inst, start, end) {
			continue
		}
		seen[inst.ID] = struct{}{}
		out = append(out, inst)
	}
	for _, inst := range movedHere {
		if _, dup := seen[inst.ID]; dup {
			continue
		}
		seen[inst.ID] = struct{}{}
		out = append(out, inst)
	}
	return out
}

// movedAway reports whether a row due on the window's day has been deferred
// to a different day.
func movedAway(inst Instance, start, end time.Time) bool {
	if inst.Status != StatusDeferred || inst.DeferredTo == nil {
		return false
	}
	t := *inst.DeferredTo
	return t.Before(start) || !t.Before(end)
}
