package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
)

// Scenario is a scripted sequence of household actions with checks on the
// resulting days and instances.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Timezone is the IANA zone days are computed in. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Now is the frozen wall clock at the start of the run, RFC 3339 or
	// "2006-01-02T15:04" in Timezone.
	Now string `yaml:"now"`

	// Definitions uses the same shape as a definitions YAML file's
	// "definitions" list. Only agenda assertions need them.
	Definitions yaml.Node `yaml:"definitions,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action by a household member.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// As is the acting member. Empty means an unauthenticated call.
	As string `yaml:"as,omitempty"`

	// Entity and Date name the instance, e.g. "routine/trash" and
	// "2024-01-15".
	Entity string `yaml:"entity,omitempty"`
	Date   string `yaml:"date,omitempty"`

	// To is the target time for defer and reschedule.
	To string `yaml:"to,omitempty"`

	// Request references a coverage request saved by an earlier step.
	Request string `yaml:"request,omitempty"`
	Accept  bool   `yaml:"accept,omitempty"`

	// Body is the note text for add_note.
	Body string `yaml:"body,omitempty"`

	// By is the clock advance for advance, as a Go duration.
	By string `yaml:"by,omitempty"`

	// SaveAs names the request (request_coverage) or instance (other ops)
	// produced by this step for later reference.
	SaveAs string `yaml:"save_as,omitempty"`

	// Expect checks the step outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a single step.
type Expect struct {
	// Status is the instance status after a lifecycle op, or the request
	// status after a coverage op.
	Status string `yaml:"status,omitempty"`

	// Assignee is the instance's assignee override after the step. Use
	// "none" for no override.
	Assignee string `yaml:"assignee,omitempty"`

	// Error is the expected error code, e.g. ALREADY_RESOLVED.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Date is the day to inspect (day, agenda, instance).
	Date string `yaml:"date"`

	// Present and Absent list entity refs that must or must not be
	// listed on Date (day, agenda).
	Present []string `yaml:"present,omitempty"`
	Absent  []string `yaml:"absent,omitempty"`

	// Order is the exact sequence of entity refs (day, agenda).
	Order []string `yaml:"order,omitempty"`

	// Count is the exact number of entries (day, agenda).
	Count *int `yaml:"count,omitempty"`

	// Entity names the instance (instance).
	Entity string `yaml:"entity,omitempty"`

	// Expect maps instance fields to expected values (instance).
	// Fields: status, assignee, deferred_to, notes, coverage, materialized.
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpMarkDone        = "mark_done"
	OpUndoDone        = "undo_done"
	OpSkip            = "skip"
	OpDefer           = "defer"
	OpReschedule      = "reschedule"
	OpRequestCoverage = "request_coverage"
	OpRespondCoverage = "respond_coverage"
	OpAddNote         = "add_note"
	OpAdvance         = "advance"
)

// Assertion types.
const (
	AssertDay      = "day"
	AssertAgenda   = "agenda"
	AssertInstance = "instance"
)

var instanceFields = map[string]bool{
	"status": true, "assignee": true, "deferred_to": true,
	"notes": true, "coverage": true, "materialized": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and well formed.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	loc, err := s.location()
	if err != nil {
		return err
	}
	if s.Now == "" {
		return fmt.Errorf("now is required")
	}
	if _, err := parseTime(s.Now, loc); err != nil {
		return fmt.Errorf("now: %w", err)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	saved := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, loc, saved); err != nil {
			return err
		}
		if step.SaveAs != "" {
			saved[step.SaveAs] = true
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, loc *time.Location, saved map[string]bool) error {
	needsKey := func() error {
		if _, err := parseRef(step.Entity); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if _, err := recurrence.ParseDate(step.Date); err != nil {
			return fmt.Errorf("steps[%d]: date: %w", i, err)
		}
		return nil
	}

	switch step.Op {
	case OpMarkDone, OpUndoDone, OpSkip, OpRequestCoverage, OpAddNote:
		if err := needsKey(); err != nil {
			return err
		}
	case OpDefer, OpReschedule:
		if err := needsKey(); err != nil {
			return err
		}
		if step.To != "" {
			if _, err := parseTime(step.To, loc); err != nil {
				return fmt.Errorf("steps[%d]: to: %w", i, err)
			}
		}
	case OpRespondCoverage:
		if step.Request == "" {
			return fmt.Errorf("steps[%d]: request is required for %s", i, step.Op)
		}
		if !saved[step.Request] {
			return fmt.Errorf("steps[%d]: request %q is not saved by an earlier step", i, step.Request)
		}
	case OpAdvance:
		if _, err := time.ParseDuration(step.By); err != nil {
			return fmt.Errorf("steps[%d]: by: %w", i, err)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if _, err := recurrence.ParseDate(a.Date); err != nil {
		return fmt.Errorf("assertions[%d]: date: %w", index, err)
	}

	switch a.Type {
	case AssertDay, AssertAgenda:
		if len(a.Present) == 0 && len(a.Absent) == 0 && len(a.Order) == 0 && a.Count == nil {
			return fmt.Errorf("assertions[%d]: %s needs present, absent, order or count", index, a.Type)
		}
		for _, refs := range [][]string{a.Present, a.Absent, a.Order} {
			for _, ref := range refs {
				if _, err := parseRef(ref); err != nil {
					return fmt.Errorf("assertions[%d]: %w", index, err)
				}
			}
		}
	case AssertInstance:
		if _, err := parseRef(a.Entity); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for instance", index)
		}
		for field := range a.Expect {
			if !instanceFields[field] {
				return fmt.Errorf("assertions[%d]: unknown instance field %q", index, field)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func (s *Scenario) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// entityRef is a parsed "kind/id" reference.
type entityRef struct {
	Kind instance.EntityType
	ID   string
}

func (r entityRef) String() string { return string(r.Kind) + "/" + r.ID }

func parseRef(s string) (entityRef, error) {
	kind, id, ok := strings.Cut(s, "/")
	if !ok || id == "" {
		return entityRef{}, fmt.Errorf("entity %q: want kind/id", s)
	}
	k, err := instance.ParseEntityType(kind)
	if err != nil {
		return entityRef{}, fmt.Errorf("entity %q: %w", s, err)
	}
	return entityRef{Kind: k, ID: id}, nil
}

// parseTime accepts RFC 3339 or a zone-less "2006-01-02T15:04" read in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: want RFC 3339 or 2006-01-02T15:04", s)
	}
	return t, nil
}
