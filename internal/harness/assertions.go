package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %s", ev.Step, ev.Op, ev.Entity, ev.Date)
		switch {
		case ev.Error != "":
			fmt.Fprintf(&buf, " -> %s", ev.Error)
		case ev.Status != "":
			fmt.Fprintf(&buf, " -> %s", ev.Status)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the harness state and
// returns one message per failure.
func (h *Harness) EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertDay:
			err = h.assertDay(ctx, result.Trace, a)
		case AssertAgenda:
			err = h.assertAgenda(ctx, result.Trace, a)
		case AssertInstance:
			err = h.assertInstance(ctx, result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func (h *Harness) assertDay(ctx context.Context, trace []TraceEvent, a Assertion) error {
	date, err := recurrence.ParseDate(a.Date)
	if err != nil {
		return err
	}
	insts, err := h.resolver.InstancesForDate(ctx, date)
	if err != nil {
		return err
	}
	refs := make([]string, 0, len(insts))
	for _, inst := range insts {
		refs = append(refs, entityRef{Kind: inst.EntityType, ID: inst.EntityID}.String())
	}
	return checkRefs(AssertDay+" "+a.Date, refs, a, trace)
}

func (h *Harness) assertAgenda(ctx context.Context, trace []TraceEvent, a Assertion) error {
	date, err := recurrence.ParseDate(a.Date)
	if err != nil {
		return err
	}
	items, err := h.resolver.Agenda(ctx, h.defs, date)
	if err != nil {
		return err
	}
	refs := make([]string, 0, len(items))
	for _, it := range items {
		refs = append(refs, entityRef{Kind: it.Instance.EntityType, ID: it.Instance.EntityID}.String())
	}
	return checkRefs(AssertAgenda+" "+a.Date, refs, a, trace)
}

// checkRefs applies the present, absent, order and count checks to the
// entity refs listed for a day.
func checkRefs(what string, refs []string, a Assertion, trace []TraceEvent) error {
	listed := make(map[string]bool, len(refs))
	for _, r := range refs {
		listed[r] = true
	}
	fail := func(expected string) error {
		return &AssertionError{Type: what, Expected: expected, Actual: fmt.Sprintf("%v", refs), Trace: trace}
	}

	for _, r := range a.Present {
		if !listed[r] {
			return fail(r + " present")
		}
	}
	for _, r := range a.Absent {
		if listed[r] {
			return fail(r + " absent")
		}
	}
	if len(a.Order) > 0 && strings.Join(a.Order, ",") != strings.Join(refs, ",") {
		return fail(fmt.Sprintf("%v", a.Order))
	}
	if a.Count != nil && *a.Count != len(refs) {
		return fail(fmt.Sprintf("%d entries", *a.Count))
	}
	return nil
}

func (h *Harness) assertInstance(ctx context.Context, trace []TraceEvent, a Assertion) error {
	key, err := h.key(Step{Entity: a.Entity, Date: a.Date})
	if err != nil {
		return err
	}
	got, err := h.instanceFields(ctx, key)
	if err != nil {
		return err
	}

	fields := make([]string, 0, len(a.Expect))
	for f := range a.Expect {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		if got[f] != a.Expect[f] {
			return &AssertionError{
				Type:     fmt.Sprintf("instance %s %s", a.Entity, a.Date),
				Expected: fmt.Sprintf("%s = %q", f, a.Expect[f]),
				Actual:   fmt.Sprintf("%s = %q", f, got[f]),
				Trace:    trace,
			}
		}
	}
	return nil
}

// instanceFields renders the checkable fields of the instance for key.
func (h *Harness) instanceFields(ctx context.Context, key instance.Key) (map[string]string, error) {
	inst, err := h.store.Find(ctx, key)
	materialized := true
	if errors.Is(err, instance.ErrNotFound) {
		inst, materialized = instance.Unmaterialized(key), false
	} else if err != nil {
		return nil, err
	}

	fields := map[string]string{
		"status":       string(inst.Status),
		"assignee":     assigneeOf(inst),
		"deferred_to":  "none",
		"notes":        "0",
		"coverage":     "none",
		"materialized": strconv.FormatBool(materialized),
	}
	if inst.DeferredTo != nil {
		fields["deferred_to"] = inst.DeferredTo.In(h.loc).Format("2006-01-02T15:04")
	}
	if !materialized {
		return fields, nil
	}

	notes, err := h.notes.List(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	fields["notes"] = strconv.Itoa(len(notes))

	history, err := h.coverage.History(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		fields["coverage"] = string(history[len(history)-1].Status)
	}
	return fields, nil
}
