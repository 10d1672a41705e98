package recurrence

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// IsDue reports whether p is due on d.
//
// IsDue is total: patterns that fail Validate (including unknown kinds read
// from an external source) are never due.
func IsDue(p Pattern, d Date) bool {
	if p.Validate() != nil {
		return false
	}
	if !p.Start.IsZero() && d.Before(p.Start) {
		return false
	}
	if !matchesBase(p, d) {
		return false
	}
	return matchesInterval(p, d)
}

func matchesBase(p Pattern, d Date) bool {
	switch p.Kind {
	case KindDaily:
		return true
	case KindWeekly:
		wd := d.Weekday()
		for _, day := range p.Weekdays {
			if day == wd {
				return true
			}
		}
		return false
	case KindMonthly:
		// No clamping: a 31st-of-month pattern never fires in 30-day months.
		return d.Day == p.DayOfMonth
	case KindQuarterly:
		anchor := p.anchorMonth()
		return d.Day == p.DayOfMonth && monthsBetween(anchor, d.Month)%3 == 0
	case KindYearly:
		return d.Day == p.DayOfMonth && d.Month == p.anchorMonth()
	case KindSpecificDays:
		for _, date := range p.Dates {
			if date == d {
				return true
			}
		}
		return false
	case KindRRule:
		return matchesRRule(p, d)
	default:
		return false
	}
}

// anchorMonth picks the month quarterly and yearly patterns align to.
func (p Pattern) anchorMonth() time.Month {
	switch {
	case p.Month != 0:
		return p.Month
	case !p.Start.IsZero():
		return p.Start.Month
	default:
		return time.January
	}
}

// monthsBetween returns the non-negative distance from anchor to m within a
// year, so that monthsBetween(anchor, m)%3 == 0 selects anchor's quarter slot.
func monthsBetween(anchor, m time.Month) int {
	return ((int(m)-int(anchor))%12 + 12) % 12
}

func matchesInterval(p Pattern, d Date) bool {
	if p.Interval <= 1 || p.Start.IsZero() {
		return true
	}

	var periods int
	switch p.Kind {
	case KindDaily:
		periods = d.DaysSince(p.Start)
	case KindWeekly:
		periods = mondayOf(d).DaysSince(mondayOf(p.Start)) / 7
	case KindMonthly:
		periods = monthIndex(d) - monthIndex(p.Start)
	case KindQuarterly:
		periods = (monthIndex(d) - monthIndex(p.Start)) / 3
	case KindYearly:
		periods = d.Year - p.Start.Year
	default:
		// specific_days and rrule carry their own cadence.
		return true
	}
	return periods%p.Interval == 0
}

func mondayOf(d Date) Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func monthIndex(d Date) int {
	return d.Year*12 + int(d.Month) - 1
}

func matchesRRule(p Pattern, d Date) bool {
	r, err := rrule.StrToRRule(normalizeRRule(p.RRule))
	if err != nil {
		return false
	}
	r.DTStart(p.Start.In(time.UTC))

	start, end := d.Window(time.UTC)
	return len(r.Between(start, end.Add(-time.Nanosecond), true)) > 0
}

// normalizeRRule strips an optional "RRULE:" property prefix.
func normalizeRRule(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 6 && strings.EqualFold(s[:6], "RRULE:") {
		return s[6:]
	}
	return s
}
