package instance

import (
	"context"
	"sort"
	"time"

	"github.com/roach88/hearth/internal/recurrence"
)

// AgendaItem is one line of a rendered day.
type AgendaItem struct {
	// Definition is nil when the instance's definition is unknown to the
	// caller (e.g. removed since the instance was created).
	Definition *Definition

	// Instance is the stored row, or the unmaterialized pending view when
	// Materialized is false.
	Instance     Instance
	Materialized bool

	// When is the scheduled time on the day, if any.
	When *time.Time
}

// Agenda merges the definitions due on date with the instances actionable on
// date. Due definitions without a row appear as unmaterialized pending items;
// nothing is written. Definitions whose row for date was deferred elsewhere
// are left out.
//
// Items are ordered by scheduled time, untimed items last.
func (r *Resolver) Agenda(ctx context.Context, defs []Definition, date recurrence.Date) ([]AgendaItem, error) {
	const op = "agenda"
	start, end := date.Window(r.opts.location)

	original, err := r.store.QueryByDate(ctx, date)
	if err != nil {
		return nil, storeFailure(op, err)
	}
	movedHere, err := r.store.QueryByDeferredTo(ctx, start, end)
	if err != nil {
		return nil, storeFailure(op, err)
	}
	visible := merge(original, movedHere, start, end)

	stored := make(map[Key]Instance, len(original))
	for _, inst := range original {
		stored[inst.Key()] = inst
	}

	items := make([]AgendaItem, 0, len(defs)+len(visible))
	used := make(map[string]struct{}, len(visible))
	for i := range defs {
		def := &defs[i]
		if !def.DueOn(date) {
			continue
		}
		key := def.KeyOn(date)
		inst, ok := stored[key]
		switch {
		case !ok:
			items = append(items, AgendaItem{
				Definition: def,
				Instance:   Unmaterialized(key),
				When:       scheduledAt(def, nil, date, r.opts.location),
			})
		case movedAway(inst, start, end):
		default:
			used[inst.ID] = struct{}{}
			items = append(items, AgendaItem{
				Definition:   def,
				Instance:     inst,
				Materialized: true,
				When:         scheduledAt(def, &inst, date, r.opts.location),
			})
		}
	}

	for _, inst := range visible {
		if _, ok := used[inst.ID]; ok {
			continue
		}
		def := findDefinition(defs, inst)
		items = append(items, AgendaItem{
			Definition:   def,
			Instance:     inst,
			Materialized: true,
			When:         scheduledAt(def, &inst, date, r.opts.location),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].When, items[j].When
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return items, nil
}

func findDefinition(defs []Definition, inst Instance) *Definition {
	for i := range defs {
		if defs[i].Kind == inst.EntityType && defs[i].ID == inst.EntityID {
			return &defs[i]
		}
	}
	return nil
}

// scheduledAt prefers an instance's DeferredTo (same-day override or deferral
// onto date) over the definition's time of day.
func scheduledAt(def *Definition, inst *Instance, date recurrence.Date, loc *time.Location) *time.Time {
	if inst != nil && inst.DeferredTo != nil {
		t := inst.DeferredTo.In(loc)
		return &t
	}
	if def != nil && def.TimeOfDay != nil {
		t := def.TimeOfDay.On(date, loc)
		return &t
	}
	return nil
}
