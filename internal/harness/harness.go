package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hearth/internal/definitions"
	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
	"github.com/roach88/hearth/internal/store"
	"github.com/roach88/hearth/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios against real services with a frozen clock and
// sequential ids, so the same scenario always produces the same trace.
type Harness struct {
	store     *store.Store
	clock     *testutil.FixedClock
	loc       *time.Location
	defs      []instance.Definition
	lifecycle *instance.LifecycleManager
	resolver  *instance.Resolver
	coverage  *instance.CoverageCoordinator
	notes     *instance.Notes
	saved     map[string]string
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Step outcomes that contradict an expectation and failed assertions are
// reported in the result; the returned error is reserved for problems
// running the scenario at all.
func Run(scenario *Scenario) (*Result, error) {
	loc, err := scenario.location()
	if err != nil {
		return nil, err
	}
	now, err := parseTime(scenario.Now, loc)
	if err != nil {
		return nil, fmt.Errorf("now: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	defs, err := loadDefinitions(scenario, loc, logger)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewFixedClock(now)
	opts := []instance.Option{
		instance.WithClock(clock),
		instance.WithIDGenerator(testutil.NewSequentialIDs("id")),
		instance.WithLocation(loc),
	}
	h := &Harness{
		store:     st,
		clock:     clock,
		loc:       loc,
		defs:      defs,
		lifecycle: instance.NewLifecycleManager(st, opts...),
		resolver:  instance.NewResolver(st, opts...),
		coverage:  instance.NewCoverageCoordinator(st, opts...),
		notes:     instance.NewNotes(st, opts...),
		saved:     make(map[string]string),
		logger:    logger,
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	for _, msg := range h.EvaluateAssertions(ctx, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func loadDefinitions(s *Scenario, loc *time.Location, logger *slog.Logger) ([]instance.Definition, error) {
	if s.Definitions.Kind == 0 {
		return nil, nil
	}
	data, err := yaml.Marshal(map[string]*yaml.Node{"definitions": &s.Definitions})
	if err != nil {
		return nil, fmt.Errorf("definitions: %w", err)
	}
	loader := &definitions.Loader{Logger: logger, Location: loc}
	return loader.Parse(s.Name+" definitions", definitions.FormatYAML, data)
}

// executeStep runs one step, records it in the trace and checks its
// expectation.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	ev := TraceEvent{Step: i, Op: step.Op, As: step.As, Entity: step.Entity, Date: step.Date}

	if step.Op == OpAdvance {
		d, err := time.ParseDuration(step.By)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
		result.AddTrace(ev)
		return nil
	}

	var (
		inst  *instance.Instance
		req   *instance.CoverageRequest
		opErr error
	)
	switch step.Op {
	case OpMarkDone, OpUndoDone, OpSkip, OpDefer, OpReschedule:
		key, err := h.key(step)
		if err != nil {
			return err
		}
		to, err := h.target(step)
		if err != nil {
			return err
		}
		got, err := h.lifecycleOp(ctx, step, key, to)
		inst, opErr = &got, err

	case OpRequestCoverage:
		key, err := h.key(step)
		if err != nil {
			return err
		}
		got, err := h.coverage.RequestCoverage(ctx, step.As, key)
		req, opErr = &got, err

	case OpRespondCoverage:
		id, ok := h.saved[step.Request]
		if !ok {
			return fmt.Errorf("request %q was never saved", step.Request)
		}
		got, err := h.coverage.RespondToCoverage(ctx, step.As, id, step.Accept)
		req, opErr = &got, err
		if opErr != nil {
			ev.RequestID = id
		}

	case OpAddNote:
		key, err := h.key(step)
		if err != nil {
			return err
		}
		instanceID, err := h.instanceID(ctx, key)
		if err != nil {
			return err
		}
		_, opErr = h.notes.Add(ctx, step.As, instanceID, step.Body)
		ev.InstanceID = instanceID

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if opErr != nil {
		ev.Error = errorCode(opErr)
	} else {
		switch {
		case inst != nil:
			ev.InstanceID = inst.ID
			ev.Status = string(inst.Status)
		case req != nil:
			ev.InstanceID = req.InstanceID
			ev.RequestID = req.ID
			ev.Status = string(req.Status)
		}
		if step.SaveAs != "" {
			if req != nil {
				h.saved[step.SaveAs] = req.ID
			} else {
				h.saved[step.SaveAs] = ev.InstanceID
			}
		}
	}
	result.AddTrace(ev)

	h.logger.Info("step completed",
		"step", i,
		"op", step.Op,
		"instance_id", ev.InstanceID,
		"status", ev.Status,
		"error", ev.Error,
	)

	return h.checkExpect(ctx, i, step, ev, opErr, result)
}

func (h *Harness) lifecycleOp(ctx context.Context, step Step, key instance.Key, to time.Time) (instance.Instance, error) {
	switch step.Op {
	case OpMarkDone:
		return h.lifecycle.MarkDone(ctx, step.As, key)
	case OpUndoDone:
		return h.lifecycle.UndoDone(ctx, step.As, key)
	case OpSkip:
		return h.lifecycle.Skip(ctx, step.As, key)
	case OpDefer:
		return h.lifecycle.Defer(ctx, step.As, key, to)
	default:
		return h.lifecycle.Reschedule(ctx, step.As, key, to)
	}
}

func (h *Harness) checkExpect(ctx context.Context, i int, step Step, ev TraceEvent, opErr error, result *Result) error {
	exp := step.Expect
	label := fmt.Sprintf("steps[%d] %s", i, step.Op)

	if exp != nil && exp.Error != "" {
		switch {
		case opErr == nil:
			result.AddError(fmt.Sprintf("%s: expected error %s, step succeeded", label, exp.Error))
		case ev.Error != exp.Error:
			result.AddError(fmt.Sprintf("%s: expected error %s, got %v", label, exp.Error, opErr))
		}
		return nil
	}
	if opErr != nil {
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, opErr))
		return nil
	}
	if exp == nil {
		return nil
	}

	if exp.Status != "" && exp.Status != ev.Status {
		result.AddError(fmt.Sprintf("%s: status = %q, want %q", label, ev.Status, exp.Status))
	}
	if exp.Assignee != "" {
		got := "none"
		if ev.InstanceID != "" {
			inst, err := h.store.Get(ctx, ev.InstanceID)
			if err != nil {
				return fmt.Errorf("read instance %s: %w", ev.InstanceID, err)
			}
			got = assigneeOf(inst)
		}
		if got != exp.Assignee {
			result.AddError(fmt.Sprintf("%s: assignee = %q, want %q", label, got, exp.Assignee))
		}
	}
	return nil
}

func (h *Harness) key(step Step) (instance.Key, error) {
	ref, err := parseRef(step.Entity)
	if err != nil {
		return instance.Key{}, err
	}
	date, err := recurrence.ParseDate(step.Date)
	if err != nil {
		return instance.Key{}, err
	}
	return instance.Key{EntityType: ref.Kind, EntityID: ref.ID, Date: date}, nil
}

// target parses step.To. An empty To yields the zero time, which the
// services reject.
func (h *Harness) target(step Step) (time.Time, error) {
	if step.To == "" {
		return time.Time{}, nil
	}
	return parseTime(step.To, h.loc)
}

// instanceID returns the stored id for key, or "" when it has no row.
func (h *Harness) instanceID(ctx context.Context, key instance.Key) (string, error) {
	inst, err := h.store.Find(ctx, key)
	if errors.Is(err, instance.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return inst.ID, nil
}

func errorCode(err error) string {
	if code := instance.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func assigneeOf(inst instance.Instance) string {
	if inst.AssigneeOverride == nil {
		return "none"
	}
	return *inst.AssigneeOverride
}
