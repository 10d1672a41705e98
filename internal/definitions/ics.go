package definitions

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
)

// parseICS turns each VEVENT into a calendar_event definition. Recurring
// events keep their RRULE, anchored at the DTSTART date; single events are
// due on their start date only. Overrides (RECURRENCE-ID) and events without
// a UID or DTSTART are skipped.
func (l *Loader) parseICS(name string, data []byte) ([]instance.Definition, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: parse ICS: %w", name, err)
	}

	loc := l.location()
	var out []instance.Definition
	for _, ev := range cal.Events() {
		def, err := icsDefinition(ev, loc)
		if err != nil {
			l.logger().Warn("skipping calendar event", "file", name, "error", err)
			continue
		}
		if def == nil {
			continue
		}
		out = append(out, *def)
	}
	return out, nil
}

func icsDefinition(ev *ical.VEvent, loc *time.Location) (*instance.Definition, error) {
	uid := ev.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return nil, fmt.Errorf("event without UID")
	}
	if ev.GetProperty("RECURRENCE-ID") != nil {
		return nil, nil
	}

	dtStart := ev.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return nil, fmt.Errorf("event %s has no DTSTART", uid.Value)
	}

	var (
		start     recurrence.Date
		timeOfDay *recurrence.TimeOfDay
	)
	if allDay(dtStart) {
		t, err := time.Parse("20060102", strings.TrimSpace(dtStart.Value))
		if err != nil {
			return nil, fmt.Errorf("event %s: DTSTART: %w", uid.Value, err)
		}
		start = recurrence.DateOf(t)
	} else {
		t, err := ev.GetStartAt()
		if err != nil {
			return nil, fmt.Errorf("event %s: DTSTART: %w", uid.Value, err)
		}
		local := t.In(loc)
		start = recurrence.DateOf(local)
		timeOfDay = &recurrence.TimeOfDay{Hour: local.Hour(), Minute: local.Minute()}
	}

	def := &instance.Definition{
		ID:        uid.Value,
		Kind:      instance.CalendarEvent,
		Name:      uid.Value,
		TimeOfDay: timeOfDay,
	}
	if summary := ev.GetProperty(ical.ComponentPropertySummary); summary != nil && summary.Value != "" {
		def.Name = summary.Value
	}

	if rule := ev.GetProperty(ical.ComponentPropertyRrule); rule != nil && rule.Value != "" {
		def.Pattern = recurrence.Pattern{Kind: recurrence.KindRRule, RRule: rule.Value, Start: start}
	} else {
		def.Pattern = recurrence.SpecificDays(start)
	}
	return def, nil
}

// allDay reports whether a DTSTART carries a date without a time.
func allDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
