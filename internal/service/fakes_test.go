package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"rotinas/internal/model"
	"rotinas/internal/repository"
	"rotinas/internal/testutil"
)

type fakeClock struct {
	mu       sync.Mutex
	armed    map[int64]time.Time
	jobs     map[int64]func()
	disarmed []int64
	running  bool
	armErr   error
}

func newFakeClock() *fakeClock {
	return &fakeClock{armed: make(map[int64]time.Time), jobs: make(map[int64]func()), running: true}
}

func (c *fakeClock) ArmAt(code int64, at time.Time, job func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armErr != nil {
		return c.armErr
	}
	c.armed[code] = at
	c.jobs[code] = job
	return nil
}

func (c *fakeClock) Disarm(code int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.armed, code)
	delete(c.jobs, code)
	c.disarmed = append(c.disarmed, code)
}

func (c *fakeClock) CanScheduleExact() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// armedFor returns the alarms armed for a reminder id, keyed by offset.
func (c *fakeClock) armedFor(id uint) map[int]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]time.Time)
	for code, at := range c.armed {
		if code/requestCodeStride == int64(id) {
			out[int(code%requestCodeStride)] = at
		}
	}
	return out
}

type fakeNotifier struct {
	mu        sync.Mutex
	shown     []Notification
	dismissed []int64
	ShowFunc  func(n Notification) error
}

func (n *fakeNotifier) Show(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, notification)
	if n.ShowFunc != nil {
		return n.ShowFunc(notification)
	}
	return nil
}

func (n *fakeNotifier) Dismiss(_ context.Context, id int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dismissed = append(n.dismissed, id)
	return nil
}

type fakeCloud struct {
	DeleteReminderFunc func(ctx context.Context, userID string, id uint) error
	deleted            []uint
}

func (c *fakeCloud) DeleteReminder(ctx context.Context, userID string, id uint) error {
	c.deleted = append(c.deleted, id)
	if c.DeleteReminderFunc != nil {
		return c.DeleteReminderFunc(ctx, userID, id)
	}
	return nil
}

type fixture struct {
	ctx        context.Context
	now        time.Time
	reminders  *repository.ReminderRepository
	categories *repository.CategoryRepository
	prefs      *repository.PreferenceRepository
	clock      *fakeClock
	notifier   *fakeNotifier
	alarms     *AlarmScheduler
	actions    *ActionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)

	f := &fixture{
		ctx:        context.Background(),
		now:        time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
		reminders:  repository.NewReminderRepository(db),
		categories: repository.NewCategoryRepository(db),
		prefs:      repository.NewPreferenceRepository(db),
		clock:      newFakeClock(),
		notifier:   &fakeNotifier{},
	}
	clockNow := func() time.Time { return f.now }

	f.alarms = NewAlarmScheduler(f.clock, f.reminders, f.prefs, time.UTC, nil)
	f.alarms.now = clockNow
	f.actions = NewActionService(f.reminders, f.alarms, f.notifier, time.UTC, nil)
	f.actions.now = clockNow
	return f
}

func (f *fixture) create(t *testing.T, r model.Reminder) *model.Reminder {
	t.Helper()
	if r.UserID == "" {
		r.UserID = model.LocalUserID
	}
	if r.Type == "" {
		r.Type = model.RecurrenceNone
	}
	if r.Status == "" {
		r.Status = model.StatusActive
	}
	if r.Priority == "" {
		r.Priority = model.PriorityMedium
	}
	if err := f.reminders.Create(f.ctx, &r); err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	return &r
}

func (f *fixture) reload(t *testing.T, id uint) *model.Reminder {
	t.Helper()
	r, err := f.reminders.FindByID(f.ctx, id)
	if err != nil {
		t.Fatalf("reload reminder %d: %v", id, err)
	}
	return r
}
