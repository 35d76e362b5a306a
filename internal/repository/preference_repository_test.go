package repository_test

import (
	"context"
	"testing"

	"rotinas/internal/model"
	"rotinas/internal/repository"
	"rotinas/internal/testutil"
)

func TestPreferenceRepository_CurrentUser(t *testing.T) {
	ctx := context.Background()
	prefs := repository.NewPreferenceRepository(testutil.NewTestDB(t))

	uid, err := prefs.CurrentUser(ctx)
	if err != nil || uid != model.LocalUserID {
		t.Fatalf("CurrentUser = %q, %v; want local", uid, err)
	}

	if err := prefs.SetCurrentUser(ctx, "acct-1", "a@example.com"); err != nil {
		t.Fatal(err)
	}
	if err := prefs.SetCurrentUser(ctx, "acct-2", "b@example.com"); err != nil {
		t.Fatal(err)
	}
	uid, _ = prefs.CurrentUser(ctx)
	email, _ := prefs.CurrentEmail(ctx)
	if uid != "acct-2" || email != "b@example.com" {
		t.Errorf("current = %q %q", uid, email)
	}
}

func TestPreferenceRepository_DeviceIDIsStable(t *testing.T) {
	ctx := context.Background()
	prefs := repository.NewPreferenceRepository(testutil.NewTestDB(t))

	first, err := prefs.DeviceID(ctx)
	if err != nil || first == "" {
		t.Fatalf("DeviceID = %q, %v", first, err)
	}
	second, _ := prefs.DeviceID(ctx)
	if first != second {
		t.Errorf("DeviceID changed: %q -> %q", first, second)
	}
}

func TestPreferenceRepository_MigrationFlagIsPerUser(t *testing.T) {
	ctx := context.Background()
	prefs := repository.NewPreferenceRepository(testutil.NewTestDB(t))

	if err := prefs.SetMigrationCompleted(ctx, "acct-1"); err != nil {
		t.Fatal(err)
	}
	if err := prefs.SetMigrationCompleted(ctx, "acct-1"); err != nil {
		t.Fatalf("second SetMigrationCompleted: %v", err)
	}
	done, _ := prefs.MigrationCompleted(ctx, "acct-1")
	other, _ := prefs.MigrationCompleted(ctx, "acct-2")
	if !done || other {
		t.Errorf("flags: acct-1=%v acct-2=%v", done, other)
	}
}
