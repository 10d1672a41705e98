package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrInvalidPattern marks a pattern the evaluator cannot interpret.
// Such patterns are never due.
var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// Kind tags the variant of a Pattern.
type Kind string

const (
	KindDaily        Kind = "daily"
	KindWeekly       Kind = "weekly"
	KindMonthly      Kind = "monthly"
	KindQuarterly    Kind = "quarterly"
	KindYearly       Kind = "yearly"
	KindSpecificDays Kind = "specific_days"

	// KindRRule evaluates an RFC 5545 RRULE anchored at Start. Used for
	// calendar events imported from ICS feeds.
	KindRRule Kind = "rrule"
)

// Kinds lists every kind the evaluator understands.
var Kinds = []Kind{
	KindDaily, KindWeekly, KindMonthly, KindQuarterly, KindYearly,
	KindSpecificDays, KindRRule,
}

// Known reports whether k is one of Kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Pattern describes when a recurring definition is due.
//
// Only the fields relevant to Kind are consulted:
//
//	weekly         Weekdays
//	monthly        DayOfMonth
//	quarterly      DayOfMonth, Month (anchor; falls back to Start.Month, then January)
//	yearly         DayOfMonth, Month (falls back to Start.Month)
//	specific_days  Dates
//	rrule          RRule, Start (required)
//
// Interval and Start restrict any periodic kind to every Nth period counted
// from Start. Without Start, Interval is ignored.
type Pattern struct {
	Kind       Kind
	Weekdays   []time.Weekday
	DayOfMonth int
	Month      time.Month
	Dates      []Date
	RRule      string
	Interval   int
	Start      Date
}

// Daily returns a pattern due every day.
func Daily() Pattern { return Pattern{Kind: KindDaily} }

// Weekly returns a pattern due on the given weekdays.
func Weekly(days ...time.Weekday) Pattern {
	return Pattern{Kind: KindWeekly, Weekdays: days}
}

// Monthly returns a pattern due on the given day of every month.
func Monthly(dayOfMonth int) Pattern {
	return Pattern{Kind: KindMonthly, DayOfMonth: dayOfMonth}
}

// SpecificDays returns a pattern due only on the listed dates.
func SpecificDays(dates ...Date) Pattern {
	return Pattern{Kind: KindSpecificDays, Dates: dates}
}

// Every returns a copy of p restricted to every n-th period from start.
func (p Pattern) Every(n int, start Date) Pattern {
	p.Interval = n
	p.Start = start
	return p
}

// Validate reports structural problems. The returned error wraps
// ErrInvalidPattern.
func (p Pattern) Validate() error {
	switch p.Kind {
	case KindDaily:
	case KindWeekly:
		if len(p.Weekdays) == 0 {
			return invalid(p, "weekly pattern needs at least one weekday")
		}
	case KindMonthly, KindQuarterly:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return invalid(p, "day of month must be 1..31")
		}
	case KindYearly:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return invalid(p, "day of month must be 1..31")
		}
		if p.Month == 0 && p.Start.IsZero() {
			return invalid(p, "yearly pattern needs a month or a start date")
		}
	case KindSpecificDays:
		if len(p.Dates) == 0 {
			return invalid(p, "specific_days pattern needs at least one date")
		}
	case KindRRule:
		if p.Start.IsZero() {
			return invalid(p, "rrule pattern needs a start date")
		}
		if _, err := rrule.StrToRRule(normalizeRRule(p.RRule)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	default:
		return invalid(p, "unknown kind")
	}
	if p.Month < 0 || p.Month > 12 {
		return invalid(p, "month must be 1..12")
	}
	if p.Interval < 0 {
		return invalid(p, "interval must not be negative")
	}
	return nil
}

func invalid(p Pattern, msg string) error {
	return fmt.Errorf("%w: %s (kind=%q)", ErrInvalidPattern, msg, p.Kind)
}
