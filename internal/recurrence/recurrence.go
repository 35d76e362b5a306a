// Package recurrence computes next occurrences and active periods of recurring
// reminders. All arithmetic is calendar based in the location of the "now" value,
// so wall-clock times survive daylight-saving transitions.
package recurrence

import (
	"time"

	"rotinas/internal/model"
)

// NextOccurrence returns the first occurrence of a reminder due at due that is
// strictly after now. It reports false for NONE and when no valid day exists.
func NextOccurrence(due time.Time, typ model.RecurrenceType, customDays string, now time.Time) (time.Time, bool) {
	due = due.In(now.Location())

	switch typ {
	case model.RecurrenceDaily:
		return advanceByDays(due, 1, now), true
	case model.RecurrenceWeekly:
		return advanceByDays(due, 7, now), true
	case model.RecurrenceBiweekly:
		return advanceByDays(due, 14, now), true
	case model.RecurrenceMonthly:
		return advanceMonthly(due, now), true
	case model.RecurrenceWeekdays:
		return nextMatchingDay(due, now, isWeekday)
	case model.RecurrenceCustom:
		days := model.DecodeWeekdays(customDays)
		if len(days) == 0 {
			return time.Time{}, false
		}
		return nextMatchingDay(due, now, func(d time.Weekday) bool { return days[d] })
	default:
		return time.Time{}, false
	}
}

// advanceByDays adds step days at least once and until the result is after now.
func advanceByDays(due time.Time, step int, now time.Time) time.Time {
	next := due.AddDate(0, 0, step)
	if !next.After(now) {
		// Jump close to now in whole steps so long suspensions stay cheap.
		behind := int(now.Sub(next).Hours() / 24)
		if periods := behind/step - 1; periods > 0 {
			next = next.AddDate(0, 0, periods*step)
		}
	}
	for !next.After(now) {
		next = next.AddDate(0, 0, step)
	}
	return next
}

// advanceMonthly keeps the day-of-month of due, clamped to shorter months.
func advanceMonthly(due, now time.Time) time.Time {
	months := 1
	if due.Before(now) {
		months = (now.Year()-due.Year())*12 + int(now.Month()-due.Month())
		if months < 1 {
			months = 1
		}
	}
	for {
		next := addMonthsClamped(due, months)
		if next.After(now) {
			return next
		}
		months++
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := t.Day()
	if last := daysInMonth(first.Month(), first.Year()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// nextMatchingDay moves past now one day at a time, then on to the first
// weekday accepted by match.
func nextMatchingDay(due, now time.Time, match func(time.Weekday) bool) (time.Time, bool) {
	next := due.AddDate(0, 0, 1)
	if behind := int(now.Sub(next).Hours() / 24); behind > 1 {
		next = next.AddDate(0, 0, behind-1)
	}
	for !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for i := 0; i < 7; i++ {
		if match(next.Weekday()) {
			return next, true
		}
		next = next.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

func isWeekday(d time.Weekday) bool {
	return d != time.Saturday && d != time.Sunday
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
