package recurrence

import (
	"time"

	"rotinas/internal/model"
)

// Period returns the inclusive bounds of the recurrence cycle containing now:
// the day for DAILY/WEEKDAYS/NONE, the week for WEEKLY/CUSTOM, an aligned
// two-week window for BIWEEKLY and the calendar month for MONTHLY.
func Period(typ model.RecurrenceType, now time.Time, weekStart time.Weekday) (start, end time.Time) {
	today := startOfDay(now)

	switch typ {
	case model.RecurrenceWeekly, model.RecurrenceCustom:
		start = startOfWeek(today, weekStart)
		return start, endOfDay(start.AddDate(0, 0, 6))
	case model.RecurrenceBiweekly:
		start = startOfWeek(today, weekStart)
		// Windows open on weeks with an odd count since biweeklyAnchor.
		if weeksSinceAnchor(start)%2 == 0 {
			start = start.AddDate(0, 0, -7)
		}
		return start, endOfDay(start.AddDate(0, 0, 13))
	case model.RecurrenceMonthly:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, endOfDay(start.AddDate(0, 1, -1))
	default:
		return today, endOfDay(today)
	}
}

// IsWithinPeriod reports whether t falls inside Period(typ, now, weekStart).
func IsWithinPeriod(t time.Time, typ model.RecurrenceType, now time.Time, weekStart time.Weekday) bool {
	start, end := Period(typ, now, weekStart)
	return !t.Before(start) && !t.After(end)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Millisecond), t.Location())
}

// biweeklyAnchor is the Monday all two-week windows are counted from.
var biweeklyAnchor = time.Date(1970, time.January, 5, 0, 0, 0, 0, time.UTC)

// weeksSinceAnchor counts whole calendar weeks from biweeklyAnchor to the date
// of day, rounding toward the past.
func weeksSinceAnchor(day time.Time) int {
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	days := int(date.Sub(biweeklyAnchor).Hours() / 24)
	weeks := days / 7
	if days%7 < 0 {
		weeks--
	}
	return weeks
}

func startOfWeek(day time.Time, weekStart time.Weekday) time.Time {
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}
