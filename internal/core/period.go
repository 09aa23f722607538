package core

import (
	"strings"
	"time"
)

const (
	PeriodWeek    Period = "WEEK"
	PeriodMonth   Period = "MONTH"
	PeriodQuarter Period = "QUARTER"
	PeriodYear    Period = "YEAR"
)

// Period is the granularity of a transaction summary.
type Period string

var Periods = []Period{PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear}

// ParsePeriod parses a period name; an empty string means MONTH.
func ParsePeriod(s string) (Period, error) {
	if strings.TrimSpace(s) == "" {
		return PeriodMonth, nil
	}
	return parseEnum("period", s, Periods)
}

// PeriodRange is a resolved calendar window. Records belong to it when
// Start <= t < EndExclusive; End is EndExclusive minus one nanosecond and is
// what callers see as the inclusive bound.
type PeriodRange struct {
	Start        time.Time
	End          time.Time
	EndExclusive time.Time
}

// Contains reports whether t falls inside the half-open window.
func (r PeriodRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.EndExclusive)
}

// ResolvePeriod computes the window of the given kind that contains
// reference, using calendar rules in loc (time.Local when nil). Weeks start on
// Monday; quarters start in January, April, July and October.
func ResolvePeriod(p Period, reference time.Time, loc *time.Location) (PeriodRange, error) {
	if loc == nil {
		loc = time.Local
	}
	ref := reference.In(loc)
	y, m, d := ref.Date()

	var start, next time.Time
	switch p {
	case PeriodWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
		next = start.AddDate(0, 0, 7)
	case PeriodMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	case PeriodQuarter:
		first := time.Month(((int(m)-1)/3)*3 + 1)
		start = time.Date(y, first, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 3, 0)
	case PeriodYear:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	default:
		return PeriodRange{}, NewValidationError("period", "invalid period '%s'", p)
	}

	return PeriodRange{
		Start:        start,
		End:          next.Add(-time.Nanosecond),
		EndExclusive: next,
	}, nil
}
