package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const maxSnoozeMinutes = int(maxSnooze / time.Minute)

// PendingNotificationID identifies the hourly pending summary. Reminder
// notifications use the reminder id, which is never zero.
const PendingNotificationID int64 = 0

// Notifier displays and cancels user-facing notifications by id.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
	Dismiss(ctx context.Context, id int64) error
}

type Notification struct {
	ID      int64
	Title   string
	Body    string
	Actions []Action
}

type ActionKind string

const (
	ActionSnooze   ActionKind = "snooze"
	ActionComplete ActionKind = "complete"
	ActionSkip     ActionKind = "skip"
	ActionCheckup  ActionKind = "checkup"
	ActionDoing    ActionKind = "doing"
	ActionPending  ActionKind = "pending"
)

// Action is a button on a notification. Data() is what comes back when it is tapped.
type Action struct {
	Kind       ActionKind
	ReminderID uint
	Minutes    int
	Label      string
}

// SnoozePreset is one of the fixed snooze choices offered on a notification.
type SnoozePreset struct {
	Duration time.Duration
	Label    string
}

var SnoozePresets = []SnoozePreset{
	{5 * time.Minute, "5 min"},
	{10 * time.Minute, "10 min"},
	{15 * time.Minute, "15 min"},
	{30 * time.Minute, "30 min"},
	{time.Hour, "1 h"},
	{24 * time.Hour, "1 dia"},
}

// Data encodes the action as "kind[:id[:minutes]]".
func (a Action) Data() string {
	switch a.Kind {
	case ActionPending:
		return string(a.Kind)
	case ActionSnooze:
		return fmt.Sprintf("%s:%d:%d", a.Kind, a.ReminderID, a.Minutes)
	default:
		return fmt.Sprintf("%s:%d", a.Kind, a.ReminderID)
	}
}

// ParseAction decodes Action.Data output. Labels are not part of the payload.
func ParseAction(data string) (Action, error) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	kind := ActionKind(parts[0])

	switch kind {
	case ActionPending:
		if len(parts) != 1 {
			return Action{}, fmt.Errorf("invalid action %q", data)
		}
		return Action{Kind: kind}, nil
	case ActionSnooze:
		if len(parts) != 3 {
			return Action{}, fmt.Errorf("invalid action %q", data)
		}
	case ActionComplete, ActionSkip, ActionCheckup, ActionDoing:
		if len(parts) != 2 {
			return Action{}, fmt.Errorf("invalid action %q", data)
		}
	default:
		return Action{}, fmt.Errorf("unknown action %q", data)
	}

	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || id == 0 {
		return Action{}, fmt.Errorf("invalid reminder id in %q", data)
	}
	action := Action{Kind: kind, ReminderID: uint(id)}

	if kind == ActionSnooze {
		minutes, err := strconv.Atoi(parts[2])
		if err != nil || minutes <= 0 {
			return Action{}, fmt.Errorf("invalid snooze minutes in %q", data)
		}
		action.Minutes = min(minutes, maxSnoozeMinutes)
	}
	return action, nil
}

func snoozeActions(id uint) []Action {
	actions := make([]Action, 0, len(SnoozePresets))
	for _, p := range SnoozePresets {
		actions = append(actions, Action{
			Kind:       ActionSnooze,
			ReminderID: id,
			Minutes:    int(p.Duration / time.Minute),
			Label:      "⏰ " + p.Label,
		})
	}
	return actions
}
