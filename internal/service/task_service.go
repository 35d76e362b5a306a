package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"rotinas/internal/model"
	"rotinas/internal/recurrence"
	"rotinas/internal/repository"
)

var (
	ErrInvalidReminder = errors.New("invalid reminder")
	ErrOutsidePeriod   = errors.New("task time is outside the rotina period")
	ErrNotRoutine      = errors.New("reminder is not a rotina")
)

// ReminderInput represents data required to create a reminder or a Rotina task.
type ReminderInput struct {
	Title                 string `validate:"required,max=200"`
	Notes                 string `validate:"max=2000"`
	DueAt                 time.Time
	StartTime             *time.Time
	Type                  model.RecurrenceType `validate:"omitempty,recurrence_type"`
	CustomDays            []time.Weekday       `validate:"dive,min=0,max=6"`
	IsRoutine             bool
	CheckupFrequencyHours int            `validate:"gte=0,lte=168"`
	Category              string         `validate:"max=64"`
	Priority              model.Priority `validate:"omitempty,priority"`
}

// CloudReminders removes reminders from the signed-in user's cloud copy.
type CloudReminders interface {
	DeleteReminder(ctx context.Context, userID string, id uint) error
}

// TaskService wraps reminder and Rotina task business logic.
type TaskService struct {
	reminders  *repository.ReminderRepository
	categories *repository.CategoryRepository
	prefs      *repository.PreferenceRepository
	alarms     *AlarmScheduler
	notifier   Notifier
	cloud      CloudReminders
	validate   *validator.Validate
	loc        *time.Location
	weekStart  time.Weekday
	now        func() time.Time
	log        *zap.Logger
}

func NewTaskService(
	reminders *repository.ReminderRepository,
	categories *repository.CategoryRepository,
	prefs *repository.PreferenceRepository,
	alarms *AlarmScheduler,
	notifier Notifier,
	cloud CloudReminders,
	loc *time.Location,
	weekStart time.Weekday,
	log *zap.Logger,
) *TaskService {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{
		reminders:  reminders,
		categories: categories,
		prefs:      prefs,
		alarms:     alarms,
		notifier:   notifier,
		cloud:      cloud,
		validate:   newValidator(),
		loc:        loc,
		weekStart:  weekStart,
		now:        time.Now,
		log:        log.Named("tasks"),
	}
}

// Create stores a reminder for the current user and arms its alarm.
func (s *TaskService) Create(ctx context.Context, input ReminderInput) (*model.Reminder, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	reminder := s.build(input, userID)
	if name := strings.TrimSpace(input.Category); name != "" {
		category, err := s.categories.GetOrCreate(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if category != nil {
			reminder.CategoryID = &category.ID
		}
	}

	if err := s.reminders.Create(ctx, &reminder); err != nil {
		return nil, err
	}

	s.alarms.ScheduleReminder(mainRequest(&reminder))
	s.log.Info("reminder created", zap.Uint("reminder_id", reminder.ID), zap.String("user_id", userID))
	return &reminder, nil
}

// CreateRoutineTask adds a task under a Rotina. Its start and due times must
// fall within the Rotina's current period.
func (s *TaskService) CreateRoutineTask(ctx context.Context, parentID uint, input ReminderInput) (*model.Reminder, error) {
	input.Type = model.RecurrenceNone
	input.CustomDays = nil
	input.IsRoutine = false
	if err := s.check(input); err != nil {
		return nil, err
	}

	parent, err := s.reminders.FindByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("load rotina %d: %w", parentID, err)
	}
	if !parent.IsRoutine {
		return nil, ErrNotRoutine
	}

	now := s.now().In(s.loc)
	if !recurrence.IsWithinPeriod(input.DueAt.In(s.loc), parent.Type, now, s.weekStart) {
		return nil, ErrOutsidePeriod
	}
	if input.StartTime != nil && !recurrence.IsWithinPeriod(input.StartTime.In(s.loc), parent.Type, now, s.weekStart) {
		return nil, ErrOutsidePeriod
	}

	task := s.build(input, parent.UserID)
	task.IsTask = true
	task.ParentReminderID = &parent.ID
	task.CategoryID = parent.CategoryID

	if err := s.reminders.Create(ctx, &task); err != nil {
		return nil, err
	}

	s.alarms.ScheduleReminder(mainRequest(&task))
	s.log.Info("rotina task created", zap.Uint("reminder_id", task.ID), zap.Uint("parent_id", parent.ID))
	return &task, nil
}

// List returns every reminder of the current user, Rotinas before their tasks.
func (s *TaskService) List(ctx context.Context) ([]model.Reminder, error) {
	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.reminders.ListByUser(ctx, userID)
}

func (s *TaskService) ListActive(ctx context.Context) ([]model.Reminder, error) {
	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.reminders.ListActiveByUser(ctx, userID)
}

func (s *TaskService) Get(ctx context.Context, id uint) (*model.Reminder, error) {
	return s.reminders.FindByID(ctx, id)
}

// Delete removes a reminder with its tasks, cancels their alarms and
// notifications, and removes the cloud copies when signed in.
func (s *TaskService) Delete(ctx context.Context, id uint) error {
	reminder, err := s.reminders.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load reminder %d: %w", id, err)
	}

	tasks, err := s.reminders.ListTasks(ctx, id)
	if err != nil {
		return err
	}

	ids := make([]uint, 0, len(tasks)+1)
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	ids = append(ids, reminder.ID)

	for _, rid := range ids {
		s.alarms.CancelReminder(rid)
		if s.notifier != nil {
			if err := s.notifier.Dismiss(ctx, int64(rid)); err != nil {
				s.log.Warn("dismiss notification", zap.Uint("reminder_id", rid), zap.Error(err))
			}
		}
	}

	if err := s.reminders.Delete(ctx, id); err != nil {
		return err
	}

	if s.cloud == nil || reminder.UserID == model.LocalUserID {
		return nil
	}
	for _, rid := range ids {
		if err := s.cloud.DeleteReminder(ctx, reminder.UserID, rid); err != nil {
			return fmt.Errorf("delete cloud reminder %d: %w", rid, err)
		}
	}
	return nil
}

func (s *TaskService) check(input ReminderInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReminder, err)
	}
	if input.DueAt.IsZero() {
		return fmt.Errorf("%w: due time is required", ErrInvalidReminder)
	}
	typ, _ := model.ParseRecurrenceType(string(input.Type))
	if typ == model.RecurrenceCustom && len(input.CustomDays) == 0 {
		return fmt.Errorf("%w: custom recurrence needs at least one weekday", ErrInvalidReminder)
	}
	if input.IsRoutine && typ == model.RecurrenceNone {
		return fmt.Errorf("%w: a rotina must recur", ErrInvalidReminder)
	}
	return nil
}

func (s *TaskService) build(input ReminderInput, userID string) model.Reminder {
	typ, _ := model.ParseRecurrenceType(string(input.Type))
	priority, _ := model.ParsePriority(string(input.Priority))

	reminder := model.Reminder{
		UserID:                userID,
		Title:                 strings.TrimSpace(input.Title),
		Notes:                 strings.TrimSpace(input.Notes),
		DueAt:                 model.Millis(input.DueAt),
		Type:                  typ,
		IsRoutine:             input.IsRoutine,
		CheckupFrequencyHours: input.CheckupFrequencyHours,
		Status:                model.StatusActive,
		Priority:              priority,
	}
	if typ == model.RecurrenceCustom {
		reminder.CustomRecurrenceDays = model.EncodeWeekdays(input.CustomDays)
	}
	if input.StartTime != nil {
		start := model.Millis(*input.StartTime)
		reminder.StartTime = &start
	}
	return reminder
}

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("recurrence_type", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseRecurrenceType(fl.Field().String())
		return ok
	}); err != nil {
		panic(fmt.Sprintf("failed to register recurrence_type validator: %v", err))
	}
	if err := v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, ok := model.ParsePriority(fl.Field().String())
		return ok
	}); err != nil {
		panic(fmt.Sprintf("failed to register priority validator: %v", err))
	}
	return v
}
