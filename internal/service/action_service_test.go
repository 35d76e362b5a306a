package service

import (
	"context"
	"testing"
	"time"

	"rotinas/internal/model"
)

func TestSnooze_FifteenMinutes(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "call mom", DueAt: f.now})

	if err := f.actions.Snooze(f.ctx, r.ID, 15*time.Minute); err != nil {
		t.Fatalf("Snooze: %v", err)
	}

	want := f.now.Add(15 * time.Minute)
	got := f.reload(t, r.ID)
	if got.SnoozedUntil == nil || !got.SnoozedUntil.Equal(want) {
		t.Fatalf("SnoozedUntil = %v, want %v", got.SnoozedUntil, want)
	}

	armed := f.clock.armedFor(r.ID)
	if len(armed) != 1 {
		t.Fatalf("armed = %v, want exactly one alarm", armed)
	}
	for offset, at := range armed {
		if !at.Equal(want) {
			t.Errorf("alarm at %v, want %v", at, want)
		}
		if offset == OffsetMain {
			t.Errorf("snooze armed on the main offset")
		}
	}

	if len(f.notifier.dismissed) != 1 || f.notifier.dismissed[0] != int64(r.ID) {
		t.Errorf("dismissed = %v, want [%d]", f.notifier.dismissed, r.ID)
	}
}

func TestSnooze_ReplacesPreviousSnooze(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "water", DueAt: f.now})

	if err := f.actions.Snooze(f.ctx, r.ID, 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := f.actions.Snooze(f.ctx, r.ID, time.Hour); err != nil {
		t.Fatal(err)
	}

	armed := f.clock.armedFor(r.ID)
	if len(armed) != 1 {
		t.Fatalf("armed = %v, want exactly one alarm", armed)
	}
}

func TestSnooze_HourlyRescheduleKeepsSingleAlarm(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "call mom", DueAt: f.now})
	want := f.now.Add(15 * time.Minute)

	if err := f.actions.Snooze(f.ctx, r.ID, 15*time.Minute); err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(5 * time.Minute)
	if _, err := f.alarms.RescheduleAllUpcomingReminders(f.ctx); err != nil {
		t.Fatal(err)
	}

	armed := f.clock.armedFor(r.ID)
	if len(armed) != 1 {
		t.Fatalf("armed = %v, want a single snooze alarm", armed)
	}
	if at, ok := armed[OffsetSnoozeFire]; !ok || !at.Equal(want) {
		t.Errorf("snooze alarm = %v (%v), want %v", at, ok, want)
	}
}

func TestSnooze_Clamped(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"below minimum", 10 * time.Second, time.Minute},
		{"above maximum", 60 * 24 * time.Hour, 30 * 24 * time.Hour},
		{"within range", 42 * time.Minute, 42 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.create(t, model.Reminder{Title: "x", DueAt: f.now})
			if err := f.actions.Snooze(f.ctx, r.ID, tt.in); err != nil {
				t.Fatal(err)
			}
			got := f.reload(t, r.ID)
			if got.SnoozedUntil == nil || !got.SnoozedUntil.Equal(f.now.Add(tt.want)) {
				t.Errorf("SnoozedUntil = %v, want now+%v", got.SnoozedUntil, tt.want)
			}
		})
	}
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "pay rent", DueAt: f.now.Add(time.Hour)})
	f.alarms.ScheduleReminder(mainRequest(r))

	if err := f.actions.Complete(f.ctx, r.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := f.reload(t, r.ID)
	if got.Status != model.StatusCompleted || got.IsActive() {
		t.Errorf("Status = %s", got.Status)
	}
	if len(f.clock.armedFor(r.ID)) != 0 {
		t.Error("alarms still armed after completion")
	}
	if len(f.notifier.dismissed) != 1 {
		t.Errorf("dismissed = %v", f.notifier.dismissed)
	}
}

func TestHandlers_IgnoreMissingAndInactive(t *testing.T) {
	f := newFixture(t)
	done := f.create(t, model.Reminder{Title: "done", DueAt: f.now, Status: model.StatusCompleted})

	handlers := map[string]func(context.Context, uint) error{
		"complete": f.actions.Complete,
		"skip":     f.actions.SkipDay,
		"checkup":  f.actions.ContinueCheckup,
		"doing":    f.actions.MarkDoing,
		"snooze": func(ctx context.Context, id uint) error {
			return f.actions.Snooze(ctx, id, time.Minute)
		},
		"alarm": func(ctx context.Context, id uint) error {
			return f.actions.HandleAlarm(ctx, AlarmFire{AlarmRequest: AlarmRequest{ReminderID: id}})
		},
	}
	for name, h := range handlers {
		for _, id := range []uint{done.ID, 9999} {
			if err := h(f.ctx, id); err != nil {
				t.Errorf("%s(%d): %v", name, id, err)
			}
		}
	}

	if len(f.notifier.shown) != 0 || len(f.notifier.dismissed) != 0 {
		t.Errorf("notifier used: shown=%v dismissed=%v", f.notifier.shown, f.notifier.dismissed)
	}
	if got := f.reload(t, done.ID); got.Status != model.StatusCompleted || got.SnoozedUntil != nil {
		t.Errorf("inactive reminder mutated: %+v", got)
	}
}

func TestHandleAlarm_RecurringAdvancesAndRearms(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "journal", DueAt: f.now, Type: model.RecurrenceDaily, IsRoutine: true})

	fire := AlarmFire{AlarmRequest: mainRequest(r), FiredAt: f.now}
	if err := f.actions.HandleAlarm(f.ctx, fire); err != nil {
		t.Fatalf("HandleAlarm: %v", err)
	}

	want := f.now.AddDate(0, 0, 1)
	if got := f.reload(t, r.ID); !got.DueAt.Equal(want) {
		t.Errorf("DueAt = %v, want %v", got.DueAt, want)
	}
	if at := f.clock.armedFor(r.ID)[OffsetMain]; !at.Equal(want) {
		t.Errorf("main alarm at %v, want %v", at, want)
	}

	if len(f.notifier.shown) != 1 {
		t.Fatalf("shown = %d notifications, want 1", len(f.notifier.shown))
	}
	n := f.notifier.shown[0]
	if n.ID != int64(r.ID) || n.Title != "journal" {
		t.Errorf("notification = %+v", n)
	}
	kinds := make(map[ActionKind]int)
	for _, a := range n.Actions {
		kinds[a.Kind]++
	}
	if kinds[ActionSnooze] != len(SnoozePresets) || kinds[ActionComplete] != 1 || kinds[ActionSkip] != 1 {
		t.Errorf("actions = %v", kinds)
	}
}

func TestHandleAlarm_SnoozeFireClearsSnooze(t *testing.T) {
	f := newFixture(t)
	until := f.now
	r := f.create(t, model.Reminder{Title: "stretch", DueAt: f.now.Add(-time.Hour), SnoozedUntil: &until})

	fire := AlarmFire{AlarmRequest: snoozeRequest(r, until), FiredAt: f.now}
	if err := f.actions.HandleAlarm(f.ctx, fire); err != nil {
		t.Fatalf("HandleAlarm: %v", err)
	}

	got := f.reload(t, r.ID)
	if got.SnoozedUntil != nil {
		t.Errorf("SnoozedUntil = %v, want nil", got.SnoozedUntil)
	}
	if !got.DueAt.Equal(r.DueAt) {
		t.Errorf("one-shot DueAt changed to %v", got.DueAt)
	}
	if len(f.notifier.shown) != 1 {
		t.Errorf("shown = %d, want 1", len(f.notifier.shown))
	}
}

func TestHandleAlarm_TaskArmsCheckup(t *testing.T) {
	f := newFixture(t)
	parent := f.create(t, model.Reminder{Title: "week", DueAt: f.now, Type: model.RecurrenceWeekly, IsRoutine: true})
	task := f.create(t, model.Reminder{Title: "report", DueAt: f.now, IsTask: true, ParentReminderID: &parent.ID, CheckupFrequencyHours: 2})

	if err := f.actions.HandleAlarm(f.ctx, AlarmFire{AlarmRequest: mainRequest(task), FiredAt: f.now}); err != nil {
		t.Fatal(err)
	}
	if at := f.clock.armedFor(task.ID)[OffsetTaskCheckup]; !at.Equal(f.now.Add(2 * time.Hour)) {
		t.Errorf("checkup at %v, want now+2h", at)
	}

	hasDoing := false
	for _, a := range f.notifier.shown[0].Actions {
		if a.Kind == ActionDoing {
			hasDoing = true
		}
	}
	if !hasDoing {
		t.Error("task notification should offer the doing action")
	}
}

func TestContinueCheckup(t *testing.T) {
	f := newFixture(t)
	withCheckup := f.create(t, model.Reminder{Title: "a", DueAt: f.now, IsTask: true, CheckupFrequencyHours: 3})
	without := f.create(t, model.Reminder{Title: "b", DueAt: f.now, IsTask: true})

	if err := f.actions.ContinueCheckup(f.ctx, withCheckup.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.actions.ContinueCheckup(f.ctx, without.ID); err != nil {
		t.Fatal(err)
	}

	if at := f.clock.armedFor(withCheckup.ID)[OffsetTaskCheckup]; !at.Equal(f.now.Add(3 * time.Hour)) {
		t.Errorf("checkup at %v, want now+3h", at)
	}
	if len(f.clock.armedFor(without.ID)) != 0 {
		t.Error("no checkup expected without a frequency")
	}
}

func TestMarkDoing(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "essay", DueAt: f.now, IsTask: true})

	if err := f.actions.MarkDoing(f.ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if at := f.clock.armedFor(r.ID)[OffsetDoingFollowup]; !at.Equal(f.now.Add(30 * time.Minute)) {
		t.Errorf("follow-up at %v, want now+30m", at)
	}
}

func TestSkipDay(t *testing.T) {
	f := newFixture(t)
	until := f.now.Add(10 * time.Minute)
	r := f.create(t, model.Reminder{Title: "gym", DueAt: f.now.Add(-time.Hour), Type: model.RecurrenceDaily, IsRoutine: true, SnoozedUntil: &until})

	if err := f.actions.SkipDay(f.ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	want := f.now.Add(-time.Hour).AddDate(0, 0, 1)
	got := f.reload(t, r.ID)
	if !got.DueAt.Equal(want) || got.SnoozedUntil != nil {
		t.Errorf("after skip: DueAt=%v SnoozedUntil=%v", got.DueAt, got.SnoozedUntil)
	}
	armed := f.clock.armedFor(r.ID)
	if len(armed) != 1 || !armed[OffsetMain].Equal(want) {
		t.Errorf("armed = %v", armed)
	}
	if len(f.notifier.dismissed) != 1 {
		t.Errorf("dismissed = %v", f.notifier.dismissed)
	}
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "x", DueAt: f.now})

	action, err := ParseAction(Action{Kind: ActionSnooze, ReminderID: r.ID, Minutes: 10}.Data())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.actions.Dispatch(f.ctx, action); err != nil {
		t.Fatal(err)
	}
	if got := f.reload(t, r.ID); got.SnoozedUntil == nil || !got.SnoozedUntil.Equal(f.now.Add(10*time.Minute)) {
		t.Errorf("SnoozedUntil = %v", got.SnoozedUntil)
	}

	if err := f.actions.Dispatch(f.ctx, Action{Kind: ActionPending}); err == nil {
		t.Error("pending is not a reminder action")
	}
}

func TestRun_HandlesFiredAlarms(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "tea", DueAt: f.now})

	shown := make(chan Notification, 1)
	f.notifier.ShowFunc = func(n Notification) error {
		shown <- n
		return nil
	}

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	go f.actions.Run(ctx)

	f.alarms.ScheduleReminder(mainRequest(r))
	go f.clock.jobs[RequestCode(r.ID, OffsetMain)]()

	select {
	case n := <-shown:
		if n.ID != int64(r.ID) {
			t.Errorf("notification id = %d", n.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fired alarm was not handled")
	}
}
