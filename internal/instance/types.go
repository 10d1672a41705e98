package instance

import (
	"fmt"
	"time"

	"github.com/roach88/hearth/internal/recurrence"
)

// EntityType identifies which kind of recurring definition an instance
// belongs to.
type EntityType string

const (
	Routine       EntityType = "routine"
	CalendarEvent EntityType = "calendar_event"
)

// ParseEntityType converts an external string into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case Routine:
		return Routine, nil
	case CalendarEvent:
		return CalendarEvent, nil
	default:
		return "", newError(ErrCodeInvalidArgument, "parse entity type", fmt.Sprintf("unknown entity type %q", s), nil)
	}
}

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusDeferred  Status = "deferred"
)

// Key identifies the single instance allowed per (entity, date).
type Key struct {
	EntityType EntityType
	EntityID   string
	Date       recurrence.Date
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s", k.EntityType, k.EntityID, k.Date)
}

// Lifecycle is the field group written by every status transition.
//
// CompletedAt, SkippedAt and DeferredTo are mutually exclusive. DeferredTo is
// also set on a pending instance after a same-day reschedule, where it acts as
// a time override for the original date.
type Lifecycle struct {
	Status      Status
	CompletedAt *time.Time
	SkippedAt   *time.Time
	DeferredTo  *time.Time
}

// Instance is the materialised record for one (entity, date) pair.
type Instance struct {
	ID               string
	EntityType       EntityType
	EntityID         string
	Date             recurrence.Date
	Status           Status
	AssigneeOverride *string
	DeferredTo       *time.Time
	CompletedAt      *time.Time
	SkippedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Key returns the instance's identity triple.
func (i Instance) Key() Key {
	return Key{EntityType: i.EntityType, EntityID: i.EntityID, Date: i.Date}
}

// Lifecycle returns the instance's lifecycle field group.
func (i Instance) Lifecycle() Lifecycle {
	return Lifecycle{
		Status:      i.Status,
		CompletedAt: i.CompletedAt,
		SkippedAt:   i.SkippedAt,
		DeferredTo:  i.DeferredTo,
	}
}

// Note is an append-only comment attached to an instance.
type Note struct {
	ID         string
	InstanceID string
	Author     string
	Body       string
	CreatedAt  time.Time
}

// CoverageStatus is the state of a coverage request.
type CoverageStatus string

const (
	CoveragePending  CoverageStatus = "pending"
	CoverageAccepted CoverageStatus = "accepted"
	CoverageDeclined CoverageStatus = "declined"
)

// CoverageRequest asks another household member to take over one instance.
type CoverageRequest struct {
	ID          string
	InstanceID  string
	RequestedBy string
	CoveredBy   *string
	Status      CoverageStatus
	RequestedAt time.Time
	RespondedAt *time.Time
}

// Definition is a recurring routine or calendar obligation supplied by the
// surrounding application. This package never persists definitions.
type Definition struct {
	ID        string
	Kind      EntityType
	Name      string
	Pattern   recurrence.Pattern
	TimeOfDay *recurrence.TimeOfDay
	Assignee  string
}

// KeyOn returns the instance key for d on date.
func (d Definition) KeyOn(date recurrence.Date) Key {
	return Key{EntityType: d.Kind, EntityID: d.ID, Date: date}
}

// DueOn reports whether the definition's pattern matches date.
func (d Definition) DueOn(date recurrence.Date) bool {
	return recurrence.IsDue(d.Pattern, date)
}
