package model

import (
	"strconv"
	"strings"
	"time"
)

// LocalUserID owns rows created before any account sign-in.
const LocalUserID = "local"

// RecurrenceType controls how a reminder advances after it fires.
type RecurrenceType string

const (
	RecurrenceNone     RecurrenceType = "NONE"
	RecurrenceDaily    RecurrenceType = "DAILY"
	RecurrenceWeekly   RecurrenceType = "WEEKLY"
	RecurrenceWeekdays RecurrenceType = "WEEKDAYS"
	RecurrenceCustom   RecurrenceType = "CUSTOM"
	RecurrenceBiweekly RecurrenceType = "BIWEEKLY"
	RecurrenceMonthly  RecurrenceType = "MONTHLY"
)

// ParseRecurrenceType maps raw to a known type; unknown values fall back to NONE.
func ParseRecurrenceType(raw string) (RecurrenceType, bool) {
	switch t := RecurrenceType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceWeekdays,
		RecurrenceCustom, RecurrenceBiweekly, RecurrenceMonthly:
		return t, true
	default:
		return RecurrenceNone, false
	}
}

// Status is the reminder lifecycle state. COMPLETED and CANCELLED are terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return s, true
	default:
		return StatusActive, false
	}
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func ParsePriority(raw string) (Priority, bool) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	default:
		return PriorityMedium, false
	}
}

// Reminder is a one-time or recurring reminder. A reminder with IsRoutine set is
// a Rotina; its generated tasks carry IsTask and ParentReminderID.
type Reminder struct {
	ID                    uint   `gorm:"primaryKey"`
	UserID                string `gorm:"index;not null;default:local"`
	Title                 string `gorm:"not null"`
	Notes                 string
	DueAt                 time.Time `gorm:"index;not null"`
	SnoozedUntil          *time.Time
	StartTime             *time.Time
	Type                  RecurrenceType `gorm:"type:text;not null;default:NONE"`
	CustomRecurrenceDays  string
	IsRoutine             bool      `gorm:"not null;default:false"`
	IsTask                bool      `gorm:"not null;default:false"`
	ParentReminderID      *uint     `gorm:"index"`
	CheckupFrequencyHours int       `gorm:"not null;default:0"`
	Status                Status    `gorm:"type:text;index;not null;default:ACTIVE"`
	CategoryID            *uint     `gorm:"index"`
	ListID                *uint     `gorm:"index"`
	Priority              Priority  `gorm:"type:text;not null;default:MEDIUM"`
	CreatedAt             time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime:false"`

	Tasks          []Reminder      `gorm:"foreignKey:ParentReminderID;constraint:OnDelete:CASCADE"`
	ChecklistItems []ChecklistItem `gorm:"foreignKey:ReminderID;constraint:OnDelete:CASCADE"`
}

// IsActive is the legacy boolean view of Status.
func (r Reminder) IsActive() bool {
	return r.Status == StatusActive
}

func (r Reminder) IsRecurring() bool {
	return r.Type != "" && r.Type != RecurrenceNone
}

// NextTrigger is the time the next alarm should fire: a future snooze wins over DueAt.
func (r Reminder) NextTrigger(now time.Time) time.Time {
	if r.SnoozedUntil != nil && r.SnoozedUntil.After(now) {
		return *r.SnoozedUntil
	}
	return r.DueAt
}

// EncodeWeekdays renders days as ISO weekday numbers (Monday=1 ... Sunday=7).
func EncodeWeekdays(days []time.Weekday) string {
	seen := make(map[int]bool, len(days))
	parts := make([]string, 0, len(days))
	for iso := 1; iso <= 7; iso++ {
		for _, d := range days {
			if isoWeekday(d) == iso && !seen[iso] {
				seen[iso] = true
				parts = append(parts, strconv.Itoa(iso))
			}
		}
	}
	return strings.Join(parts, ",")
}

// DecodeWeekdays parses the EncodeWeekdays format. Unknown tokens are ignored.
func DecodeWeekdays(raw string) map[time.Weekday]bool {
	days := make(map[time.Weekday]bool)
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > 7 {
			continue
		}
		days[time.Weekday(n%7)] = true
	}
	return days
}

func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// Millis truncates t to the millisecond precision used on the wire.
func Millis(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}
