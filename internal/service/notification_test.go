package service

import (
	"testing"

	"rotinas/internal/model"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		data    string
		want    Action
		wantErr bool
	}{
		{data: "snooze:12:15", want: Action{Kind: ActionSnooze, ReminderID: 12, Minutes: 15}},
		{data: "complete:3", want: Action{Kind: ActionComplete, ReminderID: 3}},
		{data: "skip:4", want: Action{Kind: ActionSkip, ReminderID: 4}},
		{data: "checkup:5", want: Action{Kind: ActionCheckup, ReminderID: 5}},
		{data: "doing:6", want: Action{Kind: ActionDoing, ReminderID: 6}},
		{data: "pending", want: Action{Kind: ActionPending}},
		{data: "snooze:12", wantErr: true},
		{data: "snooze:12:0", wantErr: true},
		{data: "complete:abc", wantErr: true},
		{data: "complete:0", wantErr: true},
		{data: "delete:1", wantErr: true},
		{data: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := ParseAction(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAction(%q) = %+v, want error", tt.data, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAction(%q): %v", tt.data, err)
			}
			if got != tt.want {
				t.Errorf("ParseAction(%q) = %+v, want %+v", tt.data, got, tt.want)
			}
			if got.Data() != tt.data {
				t.Errorf("Data() = %q, want %q", got.Data(), tt.data)
			}
		})
	}
}

func TestParseAction_CapsSnoozeMinutes(t *testing.T) {
	got, err := ParseAction("snooze:7:9223372036854775807")
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if got.Minutes != 30*24*60 {
		t.Errorf("Minutes = %d, want %d", got.Minutes, 30*24*60)
	}

	f := newFixture(t)
	r := f.create(t, model.Reminder{Title: "x", DueAt: f.now})
	got.ReminderID = r.ID
	if err := f.actions.Dispatch(f.ctx, got); err != nil {
		t.Fatal(err)
	}
	if until := f.reload(t, r.ID).SnoozedUntil; until == nil || !until.Equal(f.now.Add(maxSnooze)) {
		t.Errorf("SnoozedUntil = %v, want now+30d", until)
	}
}

func TestSnoozeActionsFitCallbackLimit(t *testing.T) {
	for _, a := range snoozeActions(^uint(0) >> 1) {
		if len(a.Data()) > 64 {
			t.Errorf("callback data %q exceeds 64 bytes", a.Data())
		}
	}
}
