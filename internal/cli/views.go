package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
)

// Views are the JSON payloads of the commands. In text mode they render
// through String.

const clockLayout = "2006-01-02 15:04"

type instanceView struct {
	ID          string          `json:"id,omitempty"`
	Entity      string          `json:"entity"`
	Date        recurrence.Date `json:"date"`
	Status      instance.Status `json:"status"`
	Assignee    string          `json:"assignee,omitempty"`
	DeferredTo  *time.Time      `json:"deferred_to,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	SkippedAt   *time.Time      `json:"skipped_at,omitempty"`
}

func newInstanceView(inst instance.Instance, loc *time.Location) instanceView {
	v := instanceView{
		ID:          inst.ID,
		Entity:      entityRef(inst.EntityType, inst.EntityID),
		Date:        inst.Date,
		Status:      inst.Status,
		DeferredTo:  inLoc(inst.DeferredTo, loc),
		CompletedAt: inLoc(inst.CompletedAt, loc),
		SkippedAt:   inLoc(inst.SkippedAt, loc),
	}
	if inst.AssigneeOverride != nil {
		v.Assignee = *inst.AssigneeOverride
	}
	return v
}

func (v instanceView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", v.Entity, v.Date, v.Status)
	if v.DeferredTo != nil {
		fmt.Fprintf(&b, " -> %s", v.DeferredTo.Format(clockLayout))
	}
	if v.Assignee != "" {
		fmt.Fprintf(&b, " (assignee %s)", v.Assignee)
	}
	return b.String()
}

type dayView struct {
	Date      recurrence.Date `json:"date"`
	Instances []instanceView  `json:"instances"`
}

func (v dayView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", v.Date, v.Date.Weekday())
	if len(v.Instances) == 0 {
		b.WriteString("\n  nothing recorded")
	}
	for _, inst := range v.Instances {
		fmt.Fprintf(&b, "\n  %s", inst)
	}
	return b.String()
}

type agendaItemView struct {
	instanceView
	Name         string `json:"name,omitempty"`
	Time         string `json:"time,omitempty"`
	Materialized bool   `json:"materialized"`
}

type agendaView struct {
	Date  recurrence.Date  `json:"date"`
	Items []agendaItemView `json:"items"`
}

func newAgendaView(date recurrence.Date, items []instance.AgendaItem, loc *time.Location) agendaView {
	v := agendaView{Date: date, Items: make([]agendaItemView, 0, len(items))}
	for _, it := range items {
		item := agendaItemView{
			instanceView: newInstanceView(it.Instance, loc),
			Materialized: it.Materialized,
		}
		if it.Definition != nil {
			item.Name = it.Definition.Name
			if item.Assignee == "" {
				item.Assignee = it.Definition.Assignee
			}
		}
		if it.When != nil {
			item.Time = it.When.In(loc).Format("15:04")
		}
		v.Items = append(v.Items, item)
	}
	return v
}

func (v agendaView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", v.Date, v.Date.Weekday())
	if len(v.Items) == 0 {
		b.WriteString("\n  nothing due")
	}
	for _, it := range v.Items {
		when := it.Time
		if when == "" {
			when = "--:--"
		}
		name := it.Name
		if name == "" {
			name = it.Entity
		}
		fmt.Fprintf(&b, "\n  %s  %-10s %s", when, it.Status, name)
		if it.Assignee != "" {
			fmt.Fprintf(&b, " (%s)", it.Assignee)
		}
	}
	return b.String()
}

type coverageView struct {
	ID          string                  `json:"id"`
	InstanceID  string                  `json:"instance_id"`
	RequestedBy string                  `json:"requested_by"`
	CoveredBy   string                  `json:"covered_by,omitempty"`
	Status      instance.CoverageStatus `json:"status"`
	RequestedAt time.Time               `json:"requested_at"`
	RespondedAt *time.Time              `json:"responded_at,omitempty"`
}

func newCoverageView(req instance.CoverageRequest, loc *time.Location) coverageView {
	v := coverageView{
		ID:          req.ID,
		InstanceID:  req.InstanceID,
		RequestedBy: req.RequestedBy,
		Status:      req.Status,
		RequestedAt: req.RequestedAt.In(loc),
		RespondedAt: inLoc(req.RespondedAt, loc),
	}
	if req.CoveredBy != nil {
		v.CoveredBy = *req.CoveredBy
	}
	return v
}

func (v coverageView) String() string {
	s := fmt.Sprintf("%s %s requested by %s at %s", v.ID, v.Status, v.RequestedBy, v.RequestedAt.Format(clockLayout))
	if v.CoveredBy != "" {
		s += ", covered by " + v.CoveredBy
	}
	return s
}

type coverageListView struct {
	Entity  string          `json:"entity"`
	Date    recurrence.Date `json:"date"`
	Active  *coverageView   `json:"active,omitempty"`
	History []coverageView  `json:"history"`
}

func (v coverageListView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", v.Entity, v.Date)
	if v.Active != nil {
		fmt.Fprintf(&b, "\n  active: %s", v.Active.ID)
	} else {
		b.WriteString("\n  no pending request")
	}
	for _, r := range v.History {
		fmt.Fprintf(&b, "\n  %s", r)
	}
	return b.String()
}

type noteView struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Author     string    `json:"author"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

func newNoteView(n instance.Note, loc *time.Location) noteView {
	return noteView{
		ID:         n.ID,
		InstanceID: n.InstanceID,
		Author:     n.Author,
		Body:       n.Body,
		CreatedAt:  n.CreatedAt.In(loc),
	}
}

func (v noteView) String() string {
	return fmt.Sprintf("%s %s %s: %s", v.ID, v.CreatedAt.Format(clockLayout), v.Author, v.Body)
}

type noteListView struct {
	Entity string          `json:"entity"`
	Date   recurrence.Date `json:"date"`
	Notes  []noteView      `json:"notes"`
}

func (v noteListView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", v.Entity, v.Date)
	if len(v.Notes) == 0 {
		b.WriteString("\n  no notes")
	}
	for _, n := range v.Notes {
		fmt.Fprintf(&b, "\n  %s", n)
	}
	return b.String()
}

type messageView struct {
	Message string `json:"message"`
}

func (v messageView) String() string { return v.Message }

func entityRef(kind instance.EntityType, id string) string {
	return string(kind) + "/" + id
}

func inLoc(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	local := t.In(loc)
	return &local
}
