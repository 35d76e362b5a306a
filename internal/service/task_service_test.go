package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rotinas/internal/model"
	"rotinas/internal/repository"
)

func newTaskService(f *fixture, cloud CloudReminders) *TaskService {
	s := NewTaskService(f.reminders, f.categories, f.prefs, f.alarms, f.notifier, cloud, time.UTC, time.Monday, nil)
	s.now = func() time.Time { return f.now }
	return s
}

func TestTaskService_CreateValidates(t *testing.T) {
	f := newFixture(t)
	s := newTaskService(f, nil)

	tests := []struct {
		name  string
		input ReminderInput
	}{
		{"missing title", ReminderInput{DueAt: f.now}},
		{"missing due", ReminderInput{Title: "x"}},
		{"unknown type", ReminderInput{Title: "x", DueAt: f.now, Type: "HOURLY"}},
		{"unknown priority", ReminderInput{Title: "x", DueAt: f.now, Priority: "CRITICAL"}},
		{"negative checkup", ReminderInput{Title: "x", DueAt: f.now, CheckupFrequencyHours: -1}},
		{"custom without days", ReminderInput{Title: "x", DueAt: f.now, Type: model.RecurrenceCustom}},
		{"rotina without recurrence", ReminderInput{Title: "x", DueAt: f.now, IsRoutine: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Create(f.ctx, tt.input); !errors.Is(err, ErrInvalidReminder) {
				t.Errorf("Create error = %v, want ErrInvalidReminder", err)
			}
		})
	}
}

func TestTaskService_CreateArmsAndOwns(t *testing.T) {
	f := newFixture(t)
	s := newTaskService(f, nil)
	if err := f.prefs.SetCurrentUser(f.ctx, "acct", ""); err != nil {
		t.Fatal(err)
	}

	due := f.now.Add(2 * time.Hour)
	r, err := s.Create(f.ctx, ReminderInput{
		Title:      "  yoga ",
		DueAt:      due,
		Type:       "custom",
		CustomDays: []time.Weekday{time.Wednesday, time.Monday},
		Category:   "Saúde",
		Priority:   "high",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got := f.reload(t, r.ID)
	if got.UserID != "acct" || got.Title != "yoga" || got.Type != model.RecurrenceCustom || got.Priority != model.PriorityHigh {
		t.Errorf("stored = %+v", got)
	}
	if got.CustomRecurrenceDays != "1,3" {
		t.Errorf("CustomRecurrenceDays = %q, want 1,3", got.CustomRecurrenceDays)
	}
	if got.CategoryID == nil {
		t.Fatal("category not assigned")
	}
	category, err := f.categories.GetByID(f.ctx, *got.CategoryID)
	if err != nil || category.Name != "Saúde" || category.UserID != "acct" {
		t.Errorf("category = %+v, %v", category, err)
	}
	if at := f.clock.armedFor(r.ID)[OffsetMain]; !at.Equal(due) {
		t.Errorf("armed at %v, want %v", at, due)
	}
}

func TestTaskService_CreateRoutineTask(t *testing.T) {
	f := newFixture(t) // Wednesday 2025-03-12
	s := newTaskService(f, nil)

	rotina, err := s.Create(f.ctx, ReminderInput{Title: "semana", DueAt: f.now, Type: model.RecurrenceWeekly, IsRoutine: true})
	if err != nil {
		t.Fatal(err)
	}

	inside := time.Date(2025, 3, 16, 18, 0, 0, 0, time.UTC) // Sunday, same week
	task, err := s.CreateRoutineTask(f.ctx, rotina.ID, ReminderInput{Title: "relatório", DueAt: inside, CheckupFrequencyHours: 2})
	if err != nil {
		t.Fatalf("CreateRoutineTask: %v", err)
	}
	if !task.IsTask || task.ParentReminderID == nil || *task.ParentReminderID != rotina.ID || task.Type != model.RecurrenceNone {
		t.Errorf("task = %+v", task)
	}

	outside := time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC) // next Monday
	if _, err := s.CreateRoutineTask(f.ctx, rotina.ID, ReminderInput{Title: "late", DueAt: outside}); !errors.Is(err, ErrOutsidePeriod) {
		t.Errorf("due outside period: err = %v", err)
	}
	before := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)
	if _, err := s.CreateRoutineTask(f.ctx, rotina.ID, ReminderInput{Title: "early", DueAt: inside, StartTime: &before}); !errors.Is(err, ErrOutsidePeriod) {
		t.Errorf("start outside period: err = %v", err)
	}

	if _, err := s.CreateRoutineTask(f.ctx, task.ID, ReminderInput{Title: "nested", DueAt: inside}); !errors.Is(err, ErrNotRoutine) {
		t.Errorf("parent is a task: err = %v", err)
	}
}

func TestTaskService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	cloud := &fakeCloud{}
	s := newTaskService(f, cloud)
	if err := f.prefs.SetCurrentUser(f.ctx, "acct", ""); err != nil {
		t.Fatal(err)
	}

	rotina, err := s.Create(f.ctx, ReminderInput{Title: "dia", DueAt: f.now.Add(time.Hour), Type: model.RecurrenceDaily, IsRoutine: true})
	if err != nil {
		t.Fatal(err)
	}
	task, err := s.CreateRoutineTask(f.ctx, rotina.ID, ReminderInput{Title: "passo", DueAt: f.now.Add(2 * time.Hour)})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(f.ctx, rotina.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, id := range []uint{rotina.ID, task.ID} {
		if _, err := f.reminders.FindByID(f.ctx, id); !repository.IsNotFound(err) {
			t.Errorf("reminder %d still present: %v", id, err)
		}
		if len(f.clock.armedFor(id)) != 0 {
			t.Errorf("alarms left for %d", id)
		}
	}
	if len(cloud.deleted) != 2 {
		t.Errorf("cloud deletes = %v, want rotina and task", cloud.deleted)
	}
	if len(f.notifier.dismissed) != 2 {
		t.Errorf("dismissed = %v", f.notifier.dismissed)
	}
}

func TestTaskService_DeleteLocalSkipsCloud(t *testing.T) {
	f := newFixture(t)
	cloud := &fakeCloud{DeleteReminderFunc: func(context.Context, string, uint) error {
		return errors.New("must not be called")
	}}
	s := newTaskService(f, cloud)

	r, err := s.Create(f.ctx, ReminderInput{Title: "local", DueAt: f.now.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(f.ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(cloud.deleted) != 0 {
		t.Errorf("cloud called for local data: %v", cloud.deleted)
	}
}

func TestCategoryService(t *testing.T) {
	f := newFixture(t)
	s := NewCategoryService(f.categories, f.prefs)

	first, err := s.GetOrCreate(f.ctx, "Casa")
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.GetOrCreate(f.ctx, "Casa")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != again.ID {
		t.Errorf("GetOrCreate created a duplicate: %d != %d", first.ID, again.ID)
	}
	if none, err := s.GetOrCreate(f.ctx, ""); err != nil || none != nil {
		t.Errorf("empty name = %v, %v", none, err)
	}

	list, err := s.List(f.ctx)
	if err != nil || len(list) != 1 || list[0].UserID != model.LocalUserID {
		t.Errorf("List = %+v, %v", list, err)
	}
}
