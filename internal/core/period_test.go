package core

import (
	"testing"
	"time"
)

func TestResolvePeriodWeekStartsMonday(t *testing.T) {
	refs := []time.Time{
		time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),  // Monday
		time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC), // Wednesday
		time.Date(2024, 5, 19, 23, 0, 0, 0, time.UTC), // Sunday
	}
	for _, ref := range refs {
		r, err := ResolvePeriod(PeriodWeek, ref, time.UTC)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if r.Start.Weekday() != time.Monday || r.Start.Day() != 13 {
			t.Fatalf("%s: expected Monday 13th, got %s", ref, r.Start)
		}
		if !r.EndExclusive.Equal(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("%s: unexpected exclusive end %s", ref, r.EndExclusive)
		}
	}
}

func TestResolvePeriodMonthLeapYear(t *testing.T) {
	r, err := ResolvePeriod(PeriodMonth, time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.Start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", r.Start)
	}
	want := time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC)
	if !r.End.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, r.End)
	}
}

func TestResolvePeriodQuarterAndYear(t *testing.T) {
	q, err := ResolvePeriod(PeriodQuarter, time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if q.Start.Month() != time.July || q.End.Month() != time.September || q.End.Day() != 30 {
		t.Fatalf("unexpected quarter %s..%s", q.Start, q.End)
	}

	y, err := ResolvePeriod(PeriodYear, time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if y.Start.YearDay() != 1 || y.End.Month() != time.December || y.End.Day() != 31 {
		t.Fatalf("unexpected year %s..%s", y.Start, y.End)
	}

	if _, err := ResolvePeriod(Period("DAY"), time.Now(), time.UTC); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func TestPeriodRangeContainsIsHalfOpen(t *testing.T) {
	r, _ := ResolvePeriod(PeriodMonth, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), time.UTC)
	if !r.Contains(r.Start) {
		t.Fatalf("start must be inside")
	}
	if !r.Contains(r.End) {
		t.Fatalf("inclusive end must be inside")
	}
	if r.Contains(r.EndExclusive) {
		t.Fatalf("next period start must be outside")
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod(""); err != nil || p != PeriodMonth {
		t.Fatalf("expected MONTH default, got %q (err=%v)", p, err)
	}
	if p, err := ParsePeriod("quarter"); err != nil || p != PeriodQuarter {
		t.Fatalf("expected QUARTER, got %q (err=%v)", p, err)
	}
	if _, err := ParsePeriod("fortnight"); err == nil {
		t.Fatalf("expected error")
	}
}
