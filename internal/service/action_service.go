package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rotinas/internal/model"
	"rotinas/internal/recurrence"
	"rotinas/internal/repository"
)

const (
	minSnooze = time.Minute
	maxSnooze = 30 * 24 * time.Hour
)

// ActionService reacts to fired alarms and notification actions. Every handler
// re-reads the reminder and only acts while it is ACTIVE; missing reminders are
// ignored.
type ActionService struct {
	reminders *repository.ReminderRepository
	alarms    *AlarmScheduler
	notifier  Notifier
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

func NewActionService(reminders *repository.ReminderRepository, alarms *AlarmScheduler, notifier Notifier, loc *time.Location, log *zap.Logger) *ActionService {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ActionService{
		reminders: reminders,
		alarms:    alarms,
		notifier:  notifier,
		loc:       loc,
		now:       time.Now,
		log:       log.Named("actions"),
	}
}

// Run handles fired alarms until ctx is cancelled.
func (s *ActionService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fire := <-s.alarms.Fired():
			if err := s.HandleAlarm(ctx, fire); err != nil {
				s.log.Error("handle alarm", zap.Uint("reminder_id", fire.ReminderID), zap.Error(err))
			}
		}
	}
}

// Dispatch routes a tapped notification action to its handler.
func (s *ActionService) Dispatch(ctx context.Context, a Action) error {
	switch a.Kind {
	case ActionSnooze:
		return s.Snooze(ctx, a.ReminderID, time.Duration(a.Minutes)*time.Minute)
	case ActionComplete:
		return s.Complete(ctx, a.ReminderID)
	case ActionSkip:
		return s.SkipDay(ctx, a.ReminderID)
	case ActionCheckup:
		return s.ContinueCheckup(ctx, a.ReminderID)
	case ActionDoing:
		return s.MarkDoing(ctx, a.ReminderID)
	default:
		return fmt.Errorf("unsupported action %q", a.Kind)
	}
}

// HandleAlarm shows the notification for a fired alarm. A main alarm of a
// recurring reminder also advances DueAt and re-arms it.
func (s *ActionService) HandleAlarm(ctx context.Context, fire AlarmFire) error {
	r, err := s.activeReminder(ctx, fire.ReminderID)
	if err != nil || r == nil {
		return err
	}
	now := s.now().In(s.loc)

	switch {
	case fire.IsTaskCheckup:
		return s.show(ctx, checkupNotification(r))
	case fire.IsFazendoFollowup:
		return s.show(ctx, doingNotification(r))
	}

	rearm := false
	changed := false
	if fire.IsSnoozeFire && r.SnoozedUntil != nil {
		r.SnoozedUntil = nil
		changed = true
	}
	if r.IsRecurring() && !fire.IsSnoozeFire {
		if next, ok := recurrence.NextOccurrence(r.DueAt, r.Type, r.CustomRecurrenceDays, now); ok {
			r.DueAt = model.Millis(next)
			changed = true
			rearm = true
		}
	}
	if changed {
		if err := s.reminders.Update(ctx, r); err != nil {
			return err
		}
	}

	if err := s.show(ctx, reminderNotification(r, fire.TriggerAt.In(s.loc))); err != nil {
		s.log.Warn("show notification", zap.Uint("reminder_id", r.ID), zap.Error(err))
	}

	if rearm {
		s.alarms.ScheduleReminder(mainRequest(r))
	}
	if r.IsTask && r.CheckupFrequencyHours > 0 && !fire.IsSnoozeFire {
		s.armCheckup(r, now)
	}
	return nil
}

// Snooze postpones the reminder by d, clamped to [1 minute, 30 days], leaving a
// single snooze alarm armed.
func (s *ActionService) Snooze(ctx context.Context, id uint, d time.Duration) error {
	r, err := s.activeReminder(ctx, id)
	if err != nil || r == nil {
		return err
	}

	if d < minSnooze {
		d = minSnooze
	}
	if d > maxSnooze {
		d = maxSnooze
	}

	until := model.Millis(s.now().Add(d))
	r.SnoozedUntil = &until
	if err := s.reminders.Update(ctx, r); err != nil {
		return err
	}

	s.alarms.cancelSnoozes(id)
	s.alarms.ScheduleReminder(snoozeRequest(r, until))
	s.dismiss(ctx, id)
	return nil
}

func (s *ActionService) Complete(ctx context.Context, id uint) error {
	r, err := s.activeReminder(ctx, id)
	if err != nil || r == nil {
		return err
	}

	r.Status = model.StatusCompleted
	r.SnoozedUntil = nil
	if err := s.reminders.Update(ctx, r); err != nil {
		return err
	}

	s.alarms.CancelReminder(id)
	s.dismiss(ctx, id)
	return nil
}

// SkipDay moves a recurring reminder to its next occurrence.
func (s *ActionService) SkipDay(ctx context.Context, id uint) error {
	r, err := s.activeReminder(ctx, id)
	if err != nil || r == nil {
		return err
	}
	if !r.IsRecurring() {
		return nil
	}

	next, ok := recurrence.NextOccurrence(r.DueAt, r.Type, r.CustomRecurrenceDays, s.now().In(s.loc))
	if !ok {
		return nil
	}
	r.DueAt = model.Millis(next)
	r.SnoozedUntil = nil
	if err := s.reminders.Update(ctx, r); err != nil {
		return err
	}

	s.alarms.cancelSnoozes(id)
	s.alarms.ScheduleReminder(mainRequest(r))
	s.dismiss(ctx, id)
	return nil
}

// ContinueCheckup arms the next checkup of a task after CheckupFrequencyHours.
func (s *ActionService) ContinueCheckup(ctx context.Context, id uint) error {
	r, err := s.activeReminder(ctx, id)
	if err != nil || r == nil {
		return err
	}
	if r.CheckupFrequencyHours <= 0 {
		return nil
	}

	s.armCheckup(r, s.now())
	s.dismiss(ctx, id)
	return nil
}

// MarkDoing arms a follow-up that asks again in 30 minutes.
func (s *ActionService) MarkDoing(ctx context.Context, id uint) error {
	r, err := s.activeReminder(ctx, id)
	if err != nil || r == nil {
		return err
	}

	s.alarms.ScheduleReminder(AlarmRequest{
		ReminderID:        r.ID,
		TriggerAt:         s.now().Add(doingFollowupDelay),
		Title:             r.Title,
		Notes:             r.Notes,
		RequestCodeOffset: OffsetDoingFollowup,
		IsFazendoFollowup: true,
	})
	s.dismiss(ctx, id)
	return nil
}

func (s *ActionService) armCheckup(r *model.Reminder, now time.Time) {
	s.alarms.ScheduleReminder(AlarmRequest{
		ReminderID:        r.ID,
		TriggerAt:         now.Add(time.Duration(r.CheckupFrequencyHours) * time.Hour),
		Title:             r.Title,
		Notes:             r.Notes,
		RequestCodeOffset: OffsetTaskCheckup,
		IsTaskCheckup:     true,
	})
}

// activeReminder returns nil without error when the row is gone or not ACTIVE.
func (s *ActionService) activeReminder(ctx context.Context, id uint) (*model.Reminder, error) {
	r, err := s.reminders.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			s.log.Debug("reminder gone", zap.Uint("reminder_id", id))
			return nil, nil
		}
		return nil, fmt.Errorf("load reminder %d: %w", id, err)
	}
	if !r.IsActive() {
		return nil, nil
	}
	return r, nil
}

func (s *ActionService) show(ctx context.Context, n Notification) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Show(ctx, n)
}

func (s *ActionService) dismiss(ctx context.Context, id uint) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dismiss(ctx, int64(id)); err != nil {
		s.log.Warn("dismiss notification", zap.Uint("reminder_id", id), zap.Error(err))
	}
}

func reminderNotification(r *model.Reminder, firedFor time.Time) Notification {
	var body strings.Builder
	body.WriteString(fmt.Sprintf("⏰ %s", firedFor.Format("02/01 15:04")))
	if notes := strings.TrimSpace(r.Notes); notes != "" {
		body.WriteString("\n")
		body.WriteString(notes)
	}

	actions := snoozeActions(r.ID)
	actions = append(actions, Action{Kind: ActionComplete, ReminderID: r.ID, Label: "✅ Concluir"})
	if r.IsRecurring() {
		actions = append(actions, Action{Kind: ActionSkip, ReminderID: r.ID, Label: "⏭ Pular dia"})
	}
	if r.IsTask {
		actions = append(actions, Action{Kind: ActionDoing, ReminderID: r.ID, Label: "▶️ Fazendo"})
	}

	return Notification{ID: int64(r.ID), Title: r.Title, Body: body.String(), Actions: actions}
}

func checkupNotification(r *model.Reminder) Notification {
	return Notification{
		ID:    int64(r.ID),
		Title: r.Title,
		Body:  "Como está indo esta tarefa?",
		Actions: []Action{
			{Kind: ActionCheckup, ReminderID: r.ID, Label: "🔁 Continuar"},
			{Kind: ActionComplete, ReminderID: r.ID, Label: "✅ Concluir"},
		},
	}
}

func doingNotification(r *model.Reminder) Notification {
	return Notification{
		ID:    int64(r.ID),
		Title: r.Title,
		Body:  "Ainda fazendo?",
		Actions: []Action{
			{Kind: ActionDoing, ReminderID: r.ID, Label: "▶️ Mais 30 min"},
			{Kind: ActionComplete, ReminderID: r.ID, Label: "✅ Concluir"},
		},
	}
}
