package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rotinas/internal/model"
	"rotinas/internal/service"
)

const (
	pendingCheckTimeout = 30 * time.Second
	dueLayout           = "2006-01-02 15:04"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run alarms, the hourly pending check and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.scheduler.ScheduleHourly(func() {
				jobCtx, cancel := context.WithTimeout(context.Background(), pendingCheckTimeout)
				defer cancel()
				if _, err := a.alarms.RescheduleAllUpcomingReminders(jobCtx); err != nil {
					a.log.Error("hourly reschedule", zap.Error(err))
				}
				if _, err := a.pending.CheckPending(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					a.log.Error("pending check", zap.Error(err))
				}
			}); err != nil {
				return fmt.Errorf("schedule pending check: %w", err)
			}
			if _, err := a.scheduler.ScheduleEveryMinute(func() {
				jobCtx, cancel := context.WithTimeout(context.Background(), pendingCheckTimeout)
				defer cancel()
				if _, err := a.alarms.ArmChanged(jobCtx); err != nil {
					a.log.Error("arm changed reminders", zap.Error(err))
				}
			}); err != nil {
				return fmt.Errorf("schedule change sweep: %w", err)
			}
			a.scheduler.Start()
			defer a.scheduler.Stop()

			armed, err := a.alarms.RescheduleAllUpcomingReminders(ctx)
			if err != nil {
				return err
			}
			a.log.Info("alarms restored", zap.Int("armed", armed))

			if err := a.account.Resume(ctx); err != nil {
				a.log.Warn("resume auto-sync", zap.Error(err))
			}

			go a.actions.Run(ctx)

			a.log.Info("rotinas started")
			if err := a.chatBot().Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("bot stopped: %w", err)
			}
			a.log.Info("shutdown complete")
			return nil
		},
	}
}

func newSignInCmd(configPath *string) *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "signin <id-token>",
		Short: "Sign in with a Firebase ID token and reconcile local data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.account.SignIn(ctx, args[0])
			if err != nil {
				return err
			}

			var chosen *model.MigrationStrategy
			if res.NeedsMigration {
				if strategy == "" {
					return fmt.Errorf("%w: choose --strategy %s, %s or %s", service.ErrMigrationRequired,
						model.MigrationUploadLocal, model.MigrationMergeWithCloud, model.MigrationStartFresh)
				}
				s := model.MigrationStrategy(strings.ToLower(strategy))
				chosen = &s
			}

			if err := a.account.CompleteSignIn(ctx, res.Account, chosen); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s)\n", res.Account.Email, res.Account.UID)
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "what to do with local-only data: upload, merge or fresh")
	return cmd
}

func newSignOutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and return to local-only data",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.account.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func newSyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Download, merge and upload the signed-in account's data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			if a.sync == nil {
				return service.ErrCloudDisabled
			}
			account, err := a.account.CurrentUser(ctx)
			if err != nil {
				return err
			}
			if account.UID == model.LocalUserID {
				return errors.New("not signed in")
			}
			if err := a.sync.SyncAll(ctx, account.UID); err != nil {
				return err
			}
			status := a.sync.Status()
			fmt.Printf("Synced at %s\n", status.LastSync.In(a.loc).Format(time.RFC3339))
			return nil
		},
	}
}

func newAddCmd(configPath *string) *cobra.Command {
	var (
		input    service.ReminderInput
		due      string
		start    string
		typ      string
		priority string
		days     []int
		parentID uint
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a reminder, a Rotina or a task under a Rotina",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			if input.DueAt, err = time.ParseInLocation(dueLayout, due, a.loc); err != nil {
				return fmt.Errorf("parse --due: %w", err)
			}
			if start != "" {
				t, err := time.ParseInLocation(dueLayout, start, a.loc)
				if err != nil {
					return fmt.Errorf("parse --start: %w", err)
				}
				input.StartTime = &t
			}
			input.Type = model.RecurrenceType(strings.ToUpper(typ))
			input.Priority = model.Priority(strings.ToUpper(priority))
			for _, d := range days {
				input.CustomDays = append(input.CustomDays, time.Weekday(d))
			}

			var r *model.Reminder
			if parentID > 0 {
				r, err = a.tasks.CreateRoutineTask(ctx, parentID, input)
			} else {
				r, err = a.tasks.Create(ctx, input)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Created #%d %q due %s\n", r.ID, r.Title, r.DueAt.In(a.loc).Format(dueLayout))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&input.Title, "title", "", "reminder title")
	f.StringVar(&input.Notes, "notes", "", "free-form notes")
	f.StringVar(&due, "due", "", "due time as \"2006-01-02 15:04\"")
	f.StringVar(&start, "start", "", "task start time as \"2006-01-02 15:04\"")
	f.StringVar(&typ, "type", string(model.RecurrenceNone), "recurrence: none, daily, weekly, weekdays, custom, biweekly, monthly")
	f.IntSliceVar(&days, "days", nil, "weekdays for custom recurrence, 0 (Sunday) to 6")
	f.BoolVar(&input.IsRoutine, "routine", false, "mark as a Rotina that owns tasks")
	f.UintVar(&parentID, "parent", 0, "create as a task of this Rotina")
	f.IntVar(&input.CheckupFrequencyHours, "checkup", 0, "re-notify a task every N hours")
	f.StringVar(&input.Category, "category", "", "category name, created when missing")
	f.StringVar(&priority, "priority", string(model.PriorityMedium), "low, medium, high or urgent")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func newListCmd(configPath *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders of the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			var reminders []model.Reminder
			if all {
				reminders, err = a.tasks.List(ctx)
			} else {
				reminders, err = a.tasks.ListActive(ctx)
			}
			if err != nil {
				return err
			}
			if len(reminders) == 0 {
				fmt.Println("No reminders")
				return nil
			}
			now := time.Now().In(a.loc)
			for _, r := range reminders {
				printReminder(r, now, a.loc)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include completed and cancelled reminders")
	return cmd
}

func newPendingCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List reminders past due and awaiting confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			pending, err := a.pending.Pending(ctx)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("Nothing pending")
				return nil
			}
			fmt.Println(service.PendingSummary(pending))
			return nil
		},
	}
}

func printReminder(r model.Reminder, now time.Time, loc *time.Location) {
	kind := "reminder"
	switch {
	case r.IsRoutine:
		kind = "rotina"
	case r.IsTask:
		kind = "task"
	}
	fmt.Printf("#%-4d %-9s %-10s %-9s %s  %s\n",
		r.ID, kind, r.Type, r.Status, r.NextTrigger(now).In(loc).Format(dueLayout), r.Title)
}
