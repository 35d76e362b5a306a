package recurrence

import (
	"testing"
	"time"

	"rotinas/internal/model"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}

func TestNextOccurrence_None(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if _, ok := NextOccurrence(now, model.RecurrenceNone, "", now); ok {
		t.Fatal("NONE must not produce a next occurrence")
	}
}

func TestNextOccurrence_StrictlyAfterNow(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC) // Wednesday
	types := []model.RecurrenceType{
		model.RecurrenceDaily, model.RecurrenceWeekly, model.RecurrenceWeekdays,
		model.RecurrenceCustom, model.RecurrenceBiweekly, model.RecurrenceMonthly,
	}
	dues := []time.Time{
		now,
		now.Add(-time.Minute),
		now.Add(time.Hour),
		now.AddDate(-2, 0, 0),
	}
	for _, typ := range types {
		for _, due := range dues {
			next, ok := NextOccurrence(due, typ, "2,6", now)
			if !ok {
				t.Errorf("%s from %v: no occurrence", typ, due)
				continue
			}
			if !next.After(now) {
				t.Errorf("%s from %v: next %v not after now", typ, due, next)
			}
			if next.Hour() != due.Hour() || next.Minute() != due.Minute() {
				t.Errorf("%s from %v: wall clock changed to %v", typ, due, next)
			}
		}
	}
}

func TestNextOccurrence_Cases(t *testing.T) {
	tests := []struct {
		name string
		due  time.Time
		typ  model.RecurrenceType
		days string
		now  time.Time
		want time.Time
	}{
		{
			name: "daily fired on time",
			due:  time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
			typ:  model.RecurrenceDaily,
			now:  time.Date(2025, 3, 10, 8, 0, 1, 0, time.UTC),
			want: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "daily offline three days",
			due:  time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
			typ:  model.RecurrenceDaily,
			now:  time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly",
			due:  time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC),
			typ:  model.RecurrenceWeekly,
			now:  time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "biweekly",
			due:  time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC),
			typ:  model.RecurrenceBiweekly,
			now:  time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "weekdays skip weekend",
			due:  time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC), // Friday
			typ:  model.RecurrenceWeekdays,
			now:  time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC), // Monday
		},
		{
			name: "custom tuesday and saturday",
			due:  time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC), // Tuesday
			typ:  model.RecurrenceCustom,
			days: "2,6",
			now:  time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC), // Saturday
		},
		{
			name: "monthly clamps to february",
			due:  time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC),
			typ:  model.RecurrenceMonthly,
			now:  time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly keeps anchor day after short month",
			due:  time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC),
			typ:  model.RecurrenceMonthly,
			now:  time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 31, 8, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(tt.due, tt.typ, tt.days, tt.now)
			if !ok {
				t.Fatal("no occurrence")
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextOccurrence_CustomWithoutDays(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if _, ok := NextOccurrence(now, model.RecurrenceCustom, "", now); ok {
		t.Fatal("CUSTOM without days must not produce an occurrence")
	}
	if _, ok := NextOccurrence(now, model.RecurrenceCustom, "0,8,x", now); ok {
		t.Fatal("CUSTOM with only invalid days must not produce an occurrence")
	}
}

func TestNextOccurrence_FarPastConverges(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	due := time.Date(1995, 6, 1, 7, 15, 0, 0, time.UTC)
	for _, typ := range []model.RecurrenceType{model.RecurrenceDaily, model.RecurrenceWeekly} {
		next, ok := NextOccurrence(due, typ, "", now)
		if !ok || !next.After(now) {
			t.Fatalf("%s: next = %v, %v", typ, next, ok)
		}
		step := 24 * time.Hour
		if typ == model.RecurrenceWeekly {
			step *= 7
		}
		if next.Sub(now) > step {
			t.Errorf("%s: next %v overshoots now by more than one period", typ, next)
		}
		again, _ := NextOccurrence(next, typ, "", now)
		if !again.After(next) {
			t.Errorf("%s: repeated advancement did not move forward", typ)
		}
	}
}

func TestNextOccurrence_DSTKeepsWallClock(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	// Clocks spring forward on 2025-03-09.
	due := time.Date(2025, 3, 8, 8, 0, 0, 0, loc)
	now := time.Date(2025, 3, 8, 8, 0, 1, 0, loc)
	next, ok := NextOccurrence(due, model.RecurrenceDaily, "", now)
	if !ok {
		t.Fatal("no occurrence")
	}
	if next.Hour() != 8 || next.Day() != 9 {
		t.Errorf("next = %v, want 2025-03-09 08:00 local", next)
	}
	if next.Sub(due) != 23*time.Hour {
		t.Errorf("elapsed = %v, want 23h across spring-forward", next.Sub(due))
	}
}
