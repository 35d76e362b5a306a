package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rotinas/internal/model"
	"rotinas/internal/recurrence"
	"rotinas/internal/repository"
)

// Request code offsets. An alarm is identified by id*requestCodeStride + offset.
const (
	OffsetMain          = 0
	OffsetSnoozeFire    = 1
	OffsetSnoozePreset  = 2 // reserved per SnoozePresets entry; only ever disarmed
	OffsetTaskCheckup   = 20
	OffsetDoingFollowup = 30

	requestCodeStride = 100
)

const (
	minLeadTime        = 5 * time.Second
	doingFollowupDelay = 30 * time.Minute
)

// AlarmClock arms one-shot wake-ups identified by an integer request code.
type AlarmClock interface {
	ArmAt(code int64, at time.Time, job func()) error
	Disarm(code int64)
	CanScheduleExact() bool
}

type AlarmRequest struct {
	ReminderID        uint
	TriggerAt         time.Time
	Title             string
	Notes             string
	IsSnoozeFire      bool
	RequestCodeOffset int
	IsFazendoFollowup bool
	IsTaskCheckup     bool
}

// AlarmFire is delivered on AlarmScheduler.Fired when an armed alarm goes off.
type AlarmFire struct {
	AlarmRequest
	FiredAt time.Time
}

func RequestCode(id uint, offset int) int64 {
	return int64(id)*requestCodeStride + int64(offset)
}

// AlarmScheduler arms and cancels reminder alarms. It never returns scheduling
// errors to callers; failures are logged.
type AlarmScheduler struct {
	clock     AlarmClock
	reminders *repository.ReminderRepository
	prefs     *repository.PreferenceRepository
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
	fired     chan AlarmFire

	mu sync.Mutex
	// mainDue records the due time each main alarm was armed for.
	mainDue map[uint]time.Time
	// sweptAt is the lower bound of the next ArmChanged pass.
	sweptAt time.Time
}

func NewAlarmScheduler(clock AlarmClock, reminders *repository.ReminderRepository, prefs *repository.PreferenceRepository, loc *time.Location, log *zap.Logger) *AlarmScheduler {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AlarmScheduler{
		clock:     clock,
		reminders: reminders,
		prefs:     prefs,
		loc:       loc,
		now:       time.Now,
		log:       log.Named("alarms"),
		fired:     make(chan AlarmFire, 16),
		mainDue:   make(map[uint]time.Time),
	}
}

// Fired delivers alarms as they go off.
func (s *AlarmScheduler) Fired() <-chan AlarmFire {
	return s.fired
}

// ScheduleReminder arms exactly one alarm for (ReminderID, RequestCodeOffset),
// replacing any alarm already armed under that code.
func (s *AlarmScheduler) ScheduleReminder(req AlarmRequest) {
	due := req.TriggerAt
	if earliest := s.now().Add(minLeadTime); req.TriggerAt.Before(earliest) {
		req.TriggerAt = earliest
	}

	code := RequestCode(req.ReminderID, req.RequestCodeOffset)
	err := s.clock.ArmAt(code, req.TriggerAt, func() {
		s.fired <- AlarmFire{AlarmRequest: req, FiredAt: s.now()}
	})
	if err != nil {
		s.log.Warn("arm alarm failed",
			zap.Uint("reminder_id", req.ReminderID),
			zap.Int64("request_code", code),
			zap.Error(err))
		return
	}
	if req.RequestCodeOffset == OffsetMain {
		s.mu.Lock()
		s.mainDue[req.ReminderID] = due
		s.mu.Unlock()
	}
	if !s.clock.CanScheduleExact() {
		s.log.Warn("alarm armed while scheduler is not running",
			zap.Uint("reminder_id", req.ReminderID),
			zap.Int64("request_code", code))
	}
	s.log.Debug("alarm armed",
		zap.Uint("reminder_id", req.ReminderID),
		zap.Int64("request_code", code),
		zap.Time("trigger_at", req.TriggerAt))
}

// CancelReminder disarms every alarm variant of id. Unknown ids are a no-op.
func (s *AlarmScheduler) CancelReminder(id uint) {
	for _, offset := range []int{OffsetMain, OffsetDoingFollowup, OffsetTaskCheckup} {
		s.clock.Disarm(RequestCode(id, offset))
	}
	s.cancelSnoozes(id)

	s.mu.Lock()
	delete(s.mainDue, id)
	s.mu.Unlock()
}

func (s *AlarmScheduler) cancelSnoozes(id uint) {
	s.clock.Disarm(RequestCode(id, OffsetSnoozeFire))
	for i := range SnoozePresets {
		s.clock.Disarm(RequestCode(id, OffsetSnoozePreset+i))
	}
}

func (s *AlarmScheduler) CanScheduleExactAlarms() bool {
	return s.clock.CanScheduleExact()
}

// RescheduleAllUpcomingReminders re-arms ACTIVE reminders of the last known user.
// Recurring reminders whose due time has passed are advanced and persisted
// first. It returns the number of reminders armed.
func (s *AlarmScheduler) RescheduleAllUpcomingReminders(ctx context.Context) (int, error) {
	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("reschedule: %w", err)
	}

	reminders, err := s.reminders.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reschedule: %w", err)
	}

	now := s.now().In(s.loc)
	s.mu.Lock()
	if s.sweptAt.IsZero() {
		s.sweptAt = now
	}
	s.mu.Unlock()

	armed := 0
	for i := range reminders {
		if s.arm(ctx, &reminders[i], now, time.Time{}) {
			armed++
		}
	}

	s.log.Info("reminders rescheduled", zap.String("user_id", userID), zap.Int("armed", armed))
	return armed, nil
}

// ArmReminders arms the given reminders of the current user after they were
// written outside this scheduler, such as by a cloud merge. Reminders no
// longer ACTIVE are disarmed.
func (s *AlarmScheduler) ArmReminders(ctx context.Context, ids []uint) {
	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		s.log.Warn("arm reminders", zap.Error(err))
		return
	}

	now := s.now().In(s.loc)
	for _, id := range ids {
		r, err := s.reminders.FindByID(ctx, id)
		if err != nil {
			if !repository.IsNotFound(err) {
				s.log.Warn("arm reminder", zap.Uint("reminder_id", id), zap.Error(err))
			}
			continue
		}
		if r.UserID != userID {
			continue
		}
		if !r.IsActive() {
			s.CancelReminder(r.ID)
			continue
		}
		s.arm(ctx, r, now, time.Time{})
	}
}

// ArmChanged arms ACTIVE reminders of the current user written since the
// previous pass, including rows written by other processes. A one-shot
// reminder that came due since then and was never armed here is armed at once.
// The first call only records the starting point unless a reschedule did.
func (s *AlarmScheduler) ArmChanged(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	s.mu.Lock()
	since := s.sweptAt
	s.sweptAt = now
	s.mu.Unlock()
	if since.IsZero() {
		return 0, nil
	}

	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("arm changed: %w", err)
	}
	reminders, err := s.reminders.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("arm changed: %w", err)
	}

	armed := 0
	for i := range reminders {
		if reminders[i].UpdatedAt.Before(since) {
			continue
		}
		if s.arm(ctx, &reminders[i], now, since) {
			armed++
		}
	}
	if armed > 0 {
		s.log.Debug("changed reminders armed", zap.String("user_id", userID), zap.Int("armed", armed))
	}
	return armed, nil
}

// arm arms the snooze and main alarms of an ACTIVE reminder. A past-due
// recurring reminder is advanced and persisted first. A past-due one-shot
// reminder is armed only when it came due at or after catchUpSince and its
// main alarm was never armed for that due time.
func (s *AlarmScheduler) arm(ctx context.Context, r *model.Reminder, now, catchUpSince time.Time) bool {
	armed := false
	if r.SnoozedUntil != nil && r.SnoozedUntil.After(now) {
		s.cancelSnoozes(r.ID)
		s.ScheduleReminder(snoozeRequest(r, *r.SnoozedUntil))
		armed = true
	}

	if !r.DueAt.After(now) {
		if !r.IsRecurring() {
			if catchUpSince.IsZero() || r.DueAt.Before(catchUpSince) || s.armedForDue(r) {
				return armed
			}
			s.ScheduleReminder(mainRequest(r))
			return true
		}
		next, ok := recurrence.NextOccurrence(r.DueAt, r.Type, r.CustomRecurrenceDays, now)
		if !ok {
			return armed
		}
		r.DueAt = model.Millis(next)
		if r.SnoozedUntil != nil && !r.SnoozedUntil.After(now) {
			r.SnoozedUntil = nil
		}
		if err := s.reminders.Update(ctx, r); err != nil {
			s.log.Error("persist advanced reminder", zap.Uint("reminder_id", r.ID), zap.Error(err))
			return armed
		}
	}

	s.ScheduleReminder(mainRequest(r))
	return true
}

func (s *AlarmScheduler) armedForDue(r *model.Reminder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	due, ok := s.mainDue[r.ID]
	return ok && due.Equal(r.DueAt)
}

func mainRequest(r *model.Reminder) AlarmRequest {
	return AlarmRequest{
		ReminderID:        r.ID,
		TriggerAt:         r.DueAt,
		Title:             r.Title,
		Notes:             r.Notes,
		RequestCodeOffset: OffsetMain,
	}
}

// snoozeRequest builds the single snooze-fire alarm of r.
func snoozeRequest(r *model.Reminder, at time.Time) AlarmRequest {
	return AlarmRequest{
		ReminderID:        r.ID,
		TriggerAt:         at,
		Title:             r.Title,
		Notes:             r.Notes,
		IsSnoozeFire:      true,
		RequestCodeOffset: OffsetSnoozeFire,
	}
}
