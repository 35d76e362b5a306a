package model

import (
	"testing"
	"time"
)

func TestWeekdayEncoding(t *testing.T) {
	encoded := EncodeWeekdays([]time.Weekday{time.Sunday, time.Monday, time.Friday, time.Monday})
	if encoded != "1,5,7" {
		t.Fatalf("EncodeWeekdays = %q, want 1,5,7", encoded)
	}
	days := DecodeWeekdays(encoded + ",x,9")
	if len(days) != 3 || !days[time.Sunday] || !days[time.Monday] || !days[time.Friday] {
		t.Fatalf("DecodeWeekdays = %v", days)
	}
}

func TestNextTrigger(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	future := now.Add(15 * time.Minute)
	past := now.Add(-time.Minute)

	if got := (Reminder{DueAt: due}).NextTrigger(now); !got.Equal(due) {
		t.Errorf("no snooze: got %v", got)
	}
	if got := (Reminder{DueAt: due, SnoozedUntil: &future}).NextTrigger(now); !got.Equal(future) {
		t.Errorf("future snooze: got %v", got)
	}
	if got := (Reminder{DueAt: due, SnoozedUntil: &past}).NextTrigger(now); !got.Equal(due) {
		t.Errorf("expired snooze: got %v", got)
	}
}

func TestParseEnums(t *testing.T) {
	if typ, ok := ParseRecurrenceType(" weekly "); !ok || typ != RecurrenceWeekly {
		t.Errorf("ParseRecurrenceType = %v, %v", typ, ok)
	}
	if typ, ok := ParseRecurrenceType("hourly"); ok || typ != RecurrenceNone {
		t.Errorf("unknown recurrence = %v, %v", typ, ok)
	}
	if st, ok := ParseStatus("completed"); !ok || st != StatusCompleted {
		t.Errorf("ParseStatus = %v, %v", st, ok)
	}
	if p, ok := ParsePriority(""); ok || p != PriorityMedium {
		t.Errorf("ParsePriority default = %v, %v", p, ok)
	}
	if (Reminder{Status: StatusCancelled}).IsActive() {
		t.Error("cancelled reminder reported active")
	}
}
